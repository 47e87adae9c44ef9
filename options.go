// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"fmt"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/orchestrate"
)

// Backend selects the kind of device a Runner opens.
type Backend string

const (
	// BackendAuto opens a GPU and falls back to the simulated device.
	BackendAuto Backend = "auto"

	// BackendGPU opens a GPU through gogpu/wgpu and fails without one.
	BackendGPU Backend = "gpu"

	// BackendSim uses the software simulated device.
	BackendSim Backend = "sim"

	// BackendNoop uses the wgpu noop backend: every command succeeds but
	// none executes. Results are meaningless; useful to exercise command
	// recording without a GPU.
	BackendNoop Backend = "noop"
)

// ParseBackend converts a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendAuto, BackendGPU, BackendSim, BackendNoop:
		return b, nil
	case "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("computebench: unknown backend %q (want auto, gpu, sim or noop)", s)
	}
}

// Option configures a Runner or a one-shot run.
//
// Example:
//
//	// Tile factor 2, any dataset length, device timing
//	r, err := computebench.NewRunner(
//	    computebench.WithTileFactor(2),
//	    computebench.WithPadding(true),
//	    computebench.WithProfiling(true),
//	)
type Option func(*options)

// options holds the configuration of a Runner.
type options struct {
	device  gpucore.Device
	backend Backend
	config  orchestrate.Config
}

// defaultOptions returns the default runner options.
func defaultOptions() options {
	return options{
		backend: BackendAuto,
		config: orchestrate.Config{
			Tile:          orchestrate.DefaultTile,
			SortWorkgroup: orchestrate.DefaultSortWorkgroup,
		},
	}
}

// WithDevice runs on dev instead of opening a device. The caller keeps
// ownership: Runner.Close does not close dev, and dev must not be used by
// anything else while the Runner is open.
func WithDevice(dev gpucore.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithBackend selects the device opened when WithDevice is not given.
// The default is BackendAuto.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithTileFactor sets the reduction tile factor G (default 8). Without
// padding the dataset length must be a power of G.
func WithTileFactor(g uint32) Option {
	return func(o *options) {
		o.config.Tile = g
	}
}

// WithPadding lets the reduction accept any dataset length by padding the
// grid with the minimum int32.
func WithPadding(enabled bool) Option {
	return func(o *options) {
		o.config.Pad = enabled
	}
}

// WithProfiling records device time for every dispatch. Devices without
// timestamp queries fall back to host time.
func WithProfiling(enabled bool) Option {
	return func(o *options) {
		o.config.Profile = enabled
	}
}

// WithWorkgroupSize sets the sort kernel's workgroup width (default 64).
func WithWorkgroupSize(w uint32) Option {
	return func(o *options) {
		o.config.SortWorkgroup = w
	}
}
