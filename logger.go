// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/orchestrate"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// devices holds the devices of open runners so that SetLogger reaches them.
var (
	devicesMu sync.Mutex
	devices   = make(map[gpucore.Device]struct{})
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for computebench and its internal
// packages. By default computebench produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by computebench:
//   - [slog.LevelDebug]: per-pass dispatches, buffer sizes, kernel reflection
//   - [slog.LevelInfo]: adapter selected, run summaries
//   - [slog.LevelWarn]: simulated-device fallback, host timing fallback
//
// Example:
//
//	computebench.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	orchestrate.SetLogger(l)

	devicesMu.Lock()
	defer devicesMu.Unlock()
	for dev := range devices {
		propagateLogger(dev, l)
	}
}

// Logger returns the current logger used by computebench.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a device if it implements the
// loggerSetter interface.
func propagateLogger(dev gpucore.Device, l *slog.Logger) {
	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// trackDevice registers dev for logger propagation and hands it the
// current logger.
func trackDevice(dev gpucore.Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices[dev] = struct{}{}
	propagateLogger(dev, Logger())
}

func untrackDevice(dev gpucore.Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	delete(devices, dev)
}
