// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"context"
	"fmt"
	"time"
)

// Algorithm selects what Bench runs.
type Algorithm uint8

const (
	// AlgorithmMax is the tiled max reduction.
	AlgorithmMax Algorithm = iota + 1

	// AlgorithmSort is the bitonic sort.
	AlgorithmSort
)

// String returns the algorithm name used on the command line.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmMax:
		return "max"
	case AlgorithmSort:
		return "sort"
	default:
		return fmt.Sprintf("Algorithm(%d)", a)
	}
}

// ParseAlgorithm converts "max" or "sort".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "max":
		return AlgorithmMax, nil
	case "sort":
		return AlgorithmSort, nil
	default:
		return 0, fmt.Errorf("computebench: unknown algorithm %q (want max or sort)", s)
	}
}

// BenchResult summarizes repeated runs of one algorithm.
type BenchResult struct {
	Algorithm Algorithm
	Len       int

	// Runs is the number of measured runs. The warm-up run is not counted.
	Runs int

	// Mean and Min are wall-clock times of the measured runs.
	Mean time.Duration
	Min  time.Duration

	// DeviceMS is the mean device time of the measured runs, in
	// milliseconds. It is host time when DeviceTimed is false.
	DeviceMS    float64
	DeviceTimed bool

	// Max is the result of the last max run.
	Max int32

	// Sorted is the result of the last sort run.
	Sorted []int32

	// Last is the trace of the last run.
	Last Trace
}

// String formats the result on one line.
func (b BenchResult) String() string {
	return fmt.Sprintf("%s n=%d runs=%d mean=%v min=%v device=%.4fms",
		b.Algorithm, b.Len, b.Runs, b.Mean, b.Min, b.DeviceMS)
}

// Bench runs alg on data runs+1 times and discards the first run, which
// pays for kernel compilation and first-use allocation. runs below one is
// treated as one.
func (r *Runner) Bench(ctx context.Context, alg Algorithm, data []int32, runs int) (BenchResult, error) {
	if runs < 1 {
		runs = 1
	}
	res := BenchResult{Algorithm: alg, Len: len(data), Runs: runs}

	var total time.Duration
	var deviceMS float64
	for i := 0; i <= runs; i++ {
		var (
			trace Trace
			err   error
		)
		switch alg {
		case AlgorithmMax:
			res.Max, trace, err = r.ReduceMaxTrace(ctx, data)
		case AlgorithmSort:
			res.Sorted, trace, err = r.BitonicSortTrace(ctx, data)
		default:
			return BenchResult{}, fmt.Errorf("computebench: unknown algorithm %v", alg)
		}
		if err != nil {
			return BenchResult{}, fmt.Errorf("bench %v run %d: %w", alg, i, err)
		}
		if i == 0 {
			continue
		}
		total += trace.Wall
		deviceMS += trace.DeviceMS
		if res.Min == 0 || trace.Wall < res.Min {
			res.Min = trace.Wall
		}
		res.Last = trace
		res.DeviceTimed = trace.DeviceTimed
	}
	res.Mean = total / time.Duration(runs)
	res.DeviceMS = deviceMS / float64(runs)
	slogger().Info("computebench: bench done", "result", res.String())
	return res, nil
}
