// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package computebench runs data-parallel algorithms on a GPU compute device
// and measures them against CPU baselines.
//
// # Overview
//
// Two algorithms are provided, each driven by a multi-pass orchestrator:
//
//   - ReduceMax finds the maximum of a dataset with a tiled reduction over a
//     square grid. Each pass collapses G x G tiles (the tile factor) into
//     single cells, ping-ponging between two device buffers.
//   - BitonicSort sorts a dataset of power-of-two length in place with the
//     bitonic network, one dispatch per (p, q) stage.
//
// A barrier follows every dispatch so that the next pass never reads data a
// previous pass has not finished writing.
//
// # Quick Start
//
//	import "github.com/gogpu/computebench"
//
//	maxVal, err := computebench.ReduceMax(ctx, data, computebench.WithTileFactor(2))
//	sorted, err := computebench.BitonicSort(ctx, data)
//
// For repeated runs create a Runner, which keeps the device and compiled
// kernels alive between calls:
//
//	r, err := computebench.NewRunner(computebench.WithProfiling(true))
//	defer r.Close()
//	maxVal, trace, err := r.ReduceMaxTrace(ctx, data)
//	fmt.Println(trace)
//
// # Devices
//
// By default a Runner opens the first discrete or integrated GPU through
// gogpu/wgpu (Vulkan) and falls back to the software simulated device when
// none is available. Build with -tags nogpu for a simulation-only binary.
// WithBackend and WithDevice select a device explicitly.
//
// # Threading
//
// Every device call is made from one goroutine owned by the Runner and
// locked to its OS thread. Runner methods are safe for concurrent use and
// are executed in submission order. A run is never interrupted once it has
// started: the context only prevents a queued run from starting and bounds
// how long the caller waits for its result.
//
// # Errors
//
// Failures are reported with the sentinel errors re-exported from package
// gpucore (ErrInvalidTileFactor, ErrInvalidDataLength, ErrDeviceLost, ...)
// and *CompileError for kernel compilation diagnostics. Nothing is retried
// and partial results are never returned.
package computebench
