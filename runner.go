// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"context"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/executor"
	"github.com/gogpu/computebench/internal/orchestrate"
)

// Trace describes one run: the dispatches, barriers and invocations it
// issued and, when profiling, the device time of every pass.
type Trace = orchestrate.Trace

// PassTiming is the record of one dispatch in a Trace.
type PassTiming = orchestrate.PassTiming

// Runner owns a device and the compiled kernels of both algorithms.
//
// All device work runs on a single goroutine owned by the Runner. Runner
// methods are safe for concurrent use; runs execute one at a time in
// submission order.
type Runner struct {
	exec *executor.Executor
	cfg  orchestrate.Config

	// Fields below are only touched on the executor goroutine, except
	// info and limits, which are written once before NewRunner returns.
	dev     gpucore.Device
	owned   bool
	reducer *orchestrate.Reducer
	sorter  *orchestrate.Sorter

	info   gpucontext.AdapterInfo
	limits gpucore.Limits
}

// NewRunner opens a device (or adopts the one given with WithDevice) on a
// dedicated goroutine.
func NewRunner(opts ...Option) (*Runner, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Runner{cfg: o.config}

	exec, err := executor.New(func() error {
		dev := o.device
		if dev == nil {
			var err error
			if dev, err = OpenDevice(o.backend); err != nil {
				return err
			}
			r.owned = true
		}
		r.dev = dev
		r.info = dev.Info()
		r.limits = dev.Limits()
		trackDevice(dev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("computebench: %w", err)
	}
	r.exec = exec
	slogger().Info("computebench: runner ready",
		"adapter", r.info.Name,
		"type", r.info.Type,
		"tile", r.cfg.Tile,
		"profile", r.cfg.Profile)
	return r, nil
}

// Info describes the adapter the runner uses.
func (r *Runner) Info() gpucontext.AdapterInfo {
	return r.info
}

// Limits returns the limits of the runner's device.
func (r *Runner) Limits() gpucore.Limits {
	return r.limits
}

// TileFactor returns the configured reduction tile factor.
func (r *Runner) TileFactor() uint32 {
	return r.cfg.Tile
}

func (r *Runner) ensureReducer() (*orchestrate.Reducer, error) {
	if r.reducer == nil {
		red, err := orchestrate.NewReducer(r.dev, r.cfg)
		if err != nil {
			return nil, err
		}
		r.reducer = red
	}
	return r.reducer, nil
}

func (r *Runner) ensureSorter() (*orchestrate.Sorter, error) {
	if r.sorter == nil {
		s, err := orchestrate.NewSorter(r.dev, r.cfg)
		if err != nil {
			return nil, err
		}
		r.sorter = s
	}
	return r.sorter, nil
}

type maxResult struct {
	value int32
	trace Trace
}

type sortResult struct {
	sorted []int32
	trace  Trace
}

// ReduceMax returns the maximum of data.
func (r *Runner) ReduceMax(ctx context.Context, data []int32) (int32, error) {
	v, _, err := r.ReduceMaxTrace(ctx, data)
	return v, err
}

// ReduceMaxTrace returns the maximum of data and the trace of the run.
//
// data is not modified. Its length must be a power of the tile factor
// unless padding is enabled; otherwise the run fails with
// ErrInvalidTileFactor before anything is dispatched.
func (r *Runner) ReduceMaxTrace(ctx context.Context, data []int32) (int32, Trace, error) {
	res, err := executor.Do(ctx, r.exec, func() (maxResult, error) {
		red, err := r.ensureReducer()
		if err != nil {
			return maxResult{}, err
		}
		v, trace, err := red.Reduce(data)
		return maxResult{value: v, trace: trace}, err
	})
	if err != nil {
		return 0, Trace{}, err
	}
	return res.value, res.trace, nil
}

// BitonicSort returns data sorted ascending.
func (r *Runner) BitonicSort(ctx context.Context, data []int32) ([]int32, error) {
	out, _, err := r.BitonicSortTrace(ctx, data)
	return out, err
}

// BitonicSortTrace returns data sorted ascending and the trace of the run.
//
// data is not modified. Its length must be a power of two.
func (r *Runner) BitonicSortTrace(ctx context.Context, data []int32) ([]int32, Trace, error) {
	res, err := executor.Do(ctx, r.exec, func() (sortResult, error) {
		s, err := r.ensureSorter()
		if err != nil {
			return sortResult{}, err
		}
		out, trace, err := s.Sort(data)
		return sortResult{sorted: out, trace: trace}, err
	})
	if err != nil {
		return nil, Trace{}, err
	}
	return res.sorted, res.trace, nil
}

// Close releases the kernels and, unless it was supplied with WithDevice,
// the device. Runs already submitted complete first. Closing twice is a
// no-op.
func (r *Runner) Close() error {
	var err error
	r.exec.Close(func() {
		if r.reducer != nil {
			r.reducer.Close()
			r.reducer = nil
		}
		if r.sorter != nil {
			r.sorter.Close()
			r.sorter = nil
		}
		if r.dev == nil {
			return
		}
		untrackDevice(r.dev)
		if r.owned {
			err = r.dev.Close()
		}
		r.dev = nil
	})
	return err
}

// ReduceMax returns the maximum of data using a temporary Runner.
//
// Example: with WithTileFactor(2), [3 1 4 1 5 9 2 6] gives 9.
func ReduceMax(ctx context.Context, data []int32, opts ...Option) (int32, error) {
	r, err := NewRunner(opts...)
	if err != nil {
		return 0, err
	}
	v, err := r.ReduceMax(ctx, data)
	if cerr := r.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// BitonicSort returns data sorted ascending using a temporary Runner.
func BitonicSort(ctx context.Context, data []int32, opts ...Option) ([]int32, error) {
	r, err := NewRunner(opts...)
	if err != nil {
		return nil, err
	}
	out, err := r.BitonicSort(ctx, data)
	if cerr := r.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
