// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/computebench/internal/plan"
)

// reducePasses returns the planned passes of an unpadded reduction.
func reducePasses(t *testing.T, n int, tile uint32) []plan.ReducePass {
	t.Helper()
	grid, err := plan.ReduceGrid(n, tile, false)
	if err != nil {
		t.Fatalf("ReduceGrid(%d, %d): %v", n, tile, err)
	}
	return plan.ReducePasses(grid.Columns, grid.Tile)
}

func TestBenchMax(t *testing.T) {
	r, _ := newSimRunner(t, WithTileFactor(4))
	data := RandomDataset(256, 1000, 1)

	res, err := r.Bench(ctx, AlgorithmMax, data, 3)
	if err != nil {
		t.Fatalf("Bench: %v", err)
	}
	if res.Max != 1000 {
		t.Errorf("Max = %d, want planted 1000", res.Max)
	}
	if res.Runs != 3 || res.Len != 256 {
		t.Errorf("Runs = %d, Len = %d", res.Runs, res.Len)
	}
	if res.Min > res.Mean {
		t.Errorf("Min %v > Mean %v", res.Min, res.Mean)
	}
	// 16 columns, 4 then 1 groups per side.
	want := reducePasses(t, 256, 4)
	if len(want) != 2 {
		t.Fatalf("planned %d passes for N=256, G=4, want 2", len(want))
	}
	if res.Last.Dispatches != len(want) {
		t.Errorf("last trace dispatches = %d, want %d", res.Last.Dispatches, len(want))
	}
	if !strings.HasPrefix(res.String(), "max n=256 runs=3") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestBenchSort(t *testing.T) {
	r, _ := newSimRunner(t)
	data := RandomDataset(64, 50, 9)

	res, err := r.Bench(ctx, AlgorithmSort, data, 0)
	if err != nil {
		t.Fatalf("Bench: %v", err)
	}
	if res.Runs != 1 {
		t.Errorf("Runs = %d, want 1 for runs < 1", res.Runs)
	}
	want := slices.Clone(data)
	slices.Sort(want)
	if !slices.Equal(res.Sorted, want) {
		t.Error("Sorted is not the sorted input")
	}
}

func TestBenchProfiling(t *testing.T) {
	r, _ := newSimRunner(t, WithTileFactor(2), WithProfiling(true))
	res, err := r.Bench(ctx, AlgorithmMax, RandomDataset(64, 10, 2), 2)
	if err != nil {
		t.Fatalf("Bench: %v", err)
	}
	if !res.DeviceTimed {
		t.Error("simulated device supports timestamps; DeviceTimed = false")
	}
	want := reducePasses(t, 64, 2)
	if len(res.Last.Passes) != len(want) {
		t.Errorf("passes = %d, want %d", len(res.Last.Passes), len(want))
	}
}

func TestBenchErrors(t *testing.T) {
	r, _ := newSimRunner(t)
	if _, err := r.Bench(ctx, Algorithm(9), []int32{1}, 1); err == nil {
		t.Error("Bench with unknown algorithm succeeded")
	}
	if _, err := r.Bench(ctx, AlgorithmSort, make([]int32, 3), 1); !errors.Is(err, ErrInvalidDataLength) {
		t.Errorf("Bench(sort, len 3) = %v, want ErrInvalidDataLength", err)
	}
}
