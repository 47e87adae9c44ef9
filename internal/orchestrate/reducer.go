// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package orchestrate

import (
	"fmt"
	"time"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/buffers"
	"github.com/gogpu/computebench/internal/plan"
	"github.com/gogpu/computebench/internal/profile"
)

// Reducer computes the maximum of a dataset with the tiled reduction
// kernel.
//
// The dataset is laid out row-major in a square grid whose side is a power
// of the tile factor (see plan.ReduceGrid). Each pass dispatches one work
// group per tile; the group writes the tile maximum into a grid that is
// smaller by the tile factor in each dimension. The result is cell 0 of the
// buffer written last.
type Reducer struct {
	dev    gpucore.Device
	kernel gpucore.Kernel
	tile   uint32
	pad    bool
	prof   *profile.Profiler

	slots    []gpucore.Slot // columns, tile, groups
	src, dst uint32

	// skipBarrier drops the barriers between passes, keeping only the one
	// before readback.
	skipBarrier bool
}

// NewReducer compiles the reduction kernel on dev.
func NewReducer(dev gpucore.Device, cfg Config) (*Reducer, error) {
	tile := cfg.Tile
	if tile == 0 {
		tile = DefaultTile
	}
	if tile < 2 {
		return nil, fmt.Errorf("%w: tile factor %d, need at least 2", gpucore.ErrInvalidTileFactor, tile)
	}

	k, err := dev.CompileKernel(ReduceMaxSource())
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	r := &Reducer{dev: dev, kernel: k, tile: tile, pad: cfg.Pad}
	if err := r.resolve(); err != nil {
		dev.DestroyKernel(k)
		return nil, fmt.Errorf("reduce: %w", err)
	}
	r.prof = newProfiler(dev, cfg.Profile)
	return r, nil
}

func (r *Reducer) resolve() error {
	s, err := slots(r.kernel, "columns", "tile", "groups")
	if err != nil {
		return err
	}
	src, err := storageBinding(r.kernel, "src")
	if err != nil {
		return err
	}
	dst, err := storageBinding(r.kernel, "dst")
	if err != nil {
		return err
	}
	if dst.ReadOnly {
		return fmt.Errorf("%w: dst is read-only", gpucore.ErrBindingMismatch)
	}
	r.slots, r.src, r.dst = s, src.Binding, dst.Binding
	return r.dev.Limits().CheckWorkgroup(r.kernel.WorkgroupSize())
}

// Tile returns the tile factor.
func (r *Reducer) Tile() uint32 {
	return r.tile
}

// Plan validates a reduction of n elements against the tile factor and
// the device limits and returns the grid and its passes. No device work is
// done.
func (r *Reducer) Plan(n int) (plan.Grid, []plan.ReducePass, error) {
	grid, err := plan.ReduceGrid(n, r.tile, r.pad)
	if err != nil {
		return plan.Grid{}, nil, err
	}
	passes := plan.ReducePasses(grid.Columns, r.tile)
	if len(passes) == 0 {
		return grid, nil, nil
	}

	limits := r.dev.Limits()
	if err := limits.CheckBufferSize(uint64(grid.Cells()) * 4); err != nil {
		return plan.Grid{}, nil, err
	}
	wg := r.kernel.WorkgroupSize()
	for _, p := range passes {
		if err := limits.CheckDispatch(p.Groups, p.Groups, 1, wg); err != nil {
			return plan.Grid{}, nil, fmt.Errorf("%v: %w", p, err)
		}
	}
	return grid, passes, nil
}

// Reduce returns the maximum of data.
func (r *Reducer) Reduce(data []int32) (int32, Trace, error) {
	start := time.Now()
	grid, passes, err := r.Plan(len(data))
	if err != nil {
		return 0, Trace{}, fmt.Errorf("reduce: %w", err)
	}
	rec := newRecorder("max", len(data), r.prof)
	if len(passes) == 0 {
		rec.trace.Wall = time.Since(start)
		return data[0], rec.trace, nil
	}

	set := buffers.NewSet(r.dev)
	defer set.Release()

	pair, err := set.NewPair("reduce", uint64(grid.Cells())*4)
	if err != nil {
		return 0, Trace{}, fmt.Errorf("reduce: %w", err)
	}
	if err := set.UploadInt32(pair.Src, data, plan.MinCell); err != nil {
		return 0, Trace{}, fmt.Errorf("reduce: upload: %w", err)
	}
	slogger().Debug("reduce: start",
		"n", len(data), "columns", grid.Columns, "tile", r.tile,
		"padding", grid.Padding(), "passes", len(passes))

	for _, p := range passes {
		pair, err = r.pass(rec, set, pair, p, p.Index == len(passes)-1)
		if err != nil {
			_, _ = rec.finish()
			return 0, Trace{}, fmt.Errorf("reduce: %v: %w", p, err)
		}
	}

	// After the final swap the last output is pair.Src.
	out, err := set.ReadbackInt32(pair.Src, 0, 1)
	if err != nil {
		_, _ = rec.finish()
		return 0, Trace{}, fmt.Errorf("reduce: %w", err)
	}
	trace, err := rec.finish()
	if err != nil {
		return 0, Trace{}, fmt.Errorf("reduce: %w", err)
	}
	trace.Wall = time.Since(start)
	slogger().Debug("reduce: done", "result", out[0], "dispatches", trace.Dispatches, "wall", trace.Wall)
	return out[0], trace, nil
}

// pass records one reduction pass and returns the swapped pair.
func (r *Reducer) pass(rec *recorder, set *buffers.Set, pair buffers.Pair, p plan.ReducePass, last bool) (buffers.Pair, error) {
	if err := r.dev.SetKernel(r.kernel); err != nil {
		return pair, err
	}
	if err := setParams(r.dev, r.slots, p.Columns, p.Tile, p.Groups); err != nil {
		return pair, err
	}
	if err := set.Bind(pair.Src, r.src, gpucore.AccessInput); err != nil {
		return pair, err
	}
	if err := set.Bind(pair.Dst, r.dst, gpucore.AccessOutput); err != nil {
		return pair, err
	}

	groups := [3]uint32{p.Groups, p.Groups, 1}
	err := rec.dispatch(p.String(), groups, r.kernel.WorkgroupSize(), func() error {
		return r.dev.Dispatch(groups[0], groups[1], groups[2])
	})
	if err != nil {
		return pair, err
	}
	if !r.skipBarrier || last {
		if err := r.dev.Barrier(); err != nil {
			return pair, err
		}
		rec.barrier()
	}
	slogger().Debug("reduce: pass", "pass", p.Index, "columns", p.Columns, "groups", p.Groups)
	return pair.Swap(), nil
}

// Close releases the kernel and profiler queries.
func (r *Reducer) Close() {
	if r.prof != nil {
		r.prof.Release()
	}
	r.dev.DestroyKernel(r.kernel)
}
