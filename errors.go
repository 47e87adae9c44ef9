// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"errors"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/executor"
)

// Errors reported by runs. They are the gpucore sentinels, re-exported so
// callers can classify failures with errors.Is without importing gpucore.
var (
	// ErrCompile indicates kernel source that failed to compile.
	// Use errors.As with *CompileError for the diagnostic text.
	ErrCompile = gpucore.ErrCompile

	// ErrUnknownParameter indicates a parameter name the kernel does not expose.
	ErrUnknownParameter = gpucore.ErrUnknownParameter

	// ErrDispatchLimitExceeded indicates a run larger than the device limits.
	ErrDispatchLimitExceeded = gpucore.ErrDispatchLimitExceeded

	// ErrDeviceLost indicates the device failed mid-run.
	ErrDeviceLost = gpucore.ErrDeviceLost

	// ErrInvalidTileFactor indicates a tile factor incompatible with the
	// dataset size.
	ErrInvalidTileFactor = gpucore.ErrInvalidTileFactor

	// ErrInvalidDataLength indicates an empty dataset, or a sort length
	// that is not a power of two.
	ErrInvalidDataLength = gpucore.ErrInvalidDataLength

	// ErrRunnerClosed is returned by runs submitted after Runner.Close.
	ErrRunnerClosed = executor.ErrClosed

	// ErrNoGPU indicates that no hardware device could be opened, either
	// because none is present or because the binary was built with the
	// nogpu tag.
	ErrNoGPU = errors.New("computebench: no GPU device available")
)

// CompileError reports kernel source that failed to compile.
type CompileError = gpucore.CompileError
