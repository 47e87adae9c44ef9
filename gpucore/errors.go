// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"strings"
)

// Sentinel errors for device and orchestration failures.
// Callers classify failures with errors.Is; all of them are fatal for the
// run that produced them and none are retried.
var (
	// ErrCompile indicates kernel source that failed to compile.
	// The concrete error is a *CompileError carrying the diagnostic text.
	ErrCompile = errors.New("gpucore: kernel compilation failed")

	// ErrUnknownParameter indicates a parameter name the kernel does not expose.
	ErrUnknownParameter = errors.New("gpucore: unknown kernel parameter")

	// ErrDispatchLimitExceeded indicates a dispatch larger than the device limits.
	ErrDispatchLimitExceeded = errors.New("gpucore: dispatch exceeds device limit")

	// ErrDeviceLost indicates the device failed mid-run.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrInvalidTileFactor indicates a tile factor incompatible with the dataset size.
	ErrInvalidTileFactor = errors.New("gpucore: invalid tile factor")

	// ErrInvalidDataLength indicates a dataset length the algorithm cannot accept.
	ErrInvalidDataLength = errors.New("gpucore: invalid data length")

	// ErrNoKernel indicates a parameter, bind or dispatch with no kernel selected.
	ErrNoKernel = errors.New("gpucore: no kernel selected")

	// ErrBindingMismatch indicates a buffer bound to a slot the kernel does not
	// declare, or bound for writing to a read-only slot.
	ErrBindingMismatch = errors.New("gpucore: buffer binding does not match kernel")

	// ErrInvalidBuffer indicates an unknown or destroyed buffer ID.
	ErrInvalidBuffer = errors.New("gpucore: invalid buffer")

	// ErrOutOfRange indicates a read or write past the end of a buffer.
	ErrOutOfRange = errors.New("gpucore: access out of buffer range")

	// ErrTimestampsUnsupported indicates the device cannot record timestamps.
	ErrTimestampsUnsupported = errors.New("gpucore: timestamp queries not supported")

	// ErrClosed indicates use of a device after Close.
	ErrClosed = errors.New("gpucore: device closed")
)

// Diagnostic is a single compiler message.
type Diagnostic struct {
	// Stage is the compiler stage that produced the message
	// ("parse", "lower", "validate", "reflect", "backend").
	Stage string

	// Message is the compiler's text.
	Message string
}

// CompileError reports kernel source that failed to compile.
// It matches ErrCompile under errors.Is.
type CompileError struct {
	// Label is the kernel label.
	Label string

	// Diagnostics holds the compiler messages, in the order produced.
	Diagnostics []Diagnostic
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("gpucore: compile ")
	if e.Label != "" {
		b.WriteString(e.Label)
	} else {
		b.WriteString("kernel")
	}
	for i, d := range e.Diagnostics {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		if d.Stage != "" {
			b.WriteString(d.Stage)
			b.WriteString(": ")
		}
		b.WriteString(d.Message)
	}
	return b.String()
}

// Unwrap returns ErrCompile.
func (e *CompileError) Unwrap() error { return ErrCompile }

// Diagnostic returns all messages joined by newlines.
func (e *CompileError) Diagnostic() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.Message
	}
	return strings.Join(lines, "\n")
}
