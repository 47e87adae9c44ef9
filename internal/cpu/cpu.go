// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cpu holds the host baselines the device results are compared
// against: single-threaded and pooled maximum, and the bitonic network run
// on the host.
package cpu

import (
	"math"

	"github.com/gogpu/computebench/internal/parallel"
	"github.com/gogpu/computebench/internal/plan"
)

// Max returns the maximum of data, or math.MinInt32 for empty data.
func Max(data []int32) int32 {
	best := int32(math.MinInt32)
	for _, v := range data {
		if v > best {
			best = v
		}
	}
	return best
}

// MaxParallel splits data into one chunk per worker, reduces the chunks
// concurrently and combines the partial maxima.
func MaxParallel(pool *parallel.Pool, data []int32) int32 {
	workers := pool.Workers()
	if len(data) < 2*workers {
		return Max(data)
	}
	chunk := (len(data) + workers - 1) / workers
	partial := make([]int32, workers)
	pool.For(workers, func(w int) {
		lo := w * chunk
		hi := min(lo+chunk, len(data))
		if lo >= hi {
			partial[w] = math.MinInt32
			return
		}
		partial[w] = Max(data[lo:hi])
	})
	return Max(partial)
}

// BitonicSort sorts data ascending in place. len(data) must be a power of
// two.
func BitonicSort(data []int32) error {
	logN, err := plan.Log2(len(data))
	if err != nil {
		return err
	}
	for _, s := range plan.SortStages(logN) {
		for i := range data {
			s.Compare(data, uint32(i))
		}
	}
	return nil
}

// BitonicSortParallel sorts data ascending in place, running each stage's
// comparators on the pool. Stages are separated by the pool's batch
// boundary.
func BitonicSortParallel(pool *parallel.Pool, data []int32) error {
	logN, err := plan.Log2(len(data))
	if err != nil {
		return err
	}
	for _, s := range plan.SortStages(logN) {
		pool.For(len(data), func(i int) {
			s.Compare(data, uint32(i))
		})
	}
	return nil
}
