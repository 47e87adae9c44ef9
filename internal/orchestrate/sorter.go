// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package orchestrate

import (
	"fmt"
	"slices"
	"time"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/buffers"
	"github.com/gogpu/computebench/internal/plan"
	"github.com/gogpu/computebench/internal/profile"
)

// Sorter sorts datasets of power-of-two length ascending with the bitonic
// network.
//
// The data lives in one buffer, sorted in place: within a stage every
// invocation swaps only the pair it read, so stages need a barrier between
// them but never a second buffer.
type Sorter struct {
	dev    gpucore.Device
	kernel gpucore.Kernel
	prof   *profile.Profiler

	slots []gpucore.Slot // outer, inner, count, row
	data  uint32
	width uint32

	// skipBarrier drops the barriers between stages, keeping only the one
	// before readback.
	skipBarrier bool
}

// NewSorter compiles the sort kernel on dev.
func NewSorter(dev gpucore.Device, cfg Config) (*Sorter, error) {
	k, err := dev.CompileKernel(BitonicStepSource(cfg.SortWorkgroup))
	if err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}
	s := &Sorter{dev: dev, kernel: k}
	if err := s.resolve(); err != nil {
		dev.DestroyKernel(k)
		return nil, fmt.Errorf("sort: %w", err)
	}
	s.prof = newProfiler(dev, cfg.Profile)
	return s, nil
}

func (s *Sorter) resolve() error {
	sl, err := slots(s.kernel, "outer", "inner", "count", "row")
	if err != nil {
		return err
	}
	data, err := storageBinding(s.kernel, "data")
	if err != nil {
		return err
	}
	if data.ReadOnly {
		return fmt.Errorf("%w: data is read-only", gpucore.ErrBindingMismatch)
	}
	wg := s.kernel.WorkgroupSize()
	if err := s.dev.Limits().CheckWorkgroup(wg); err != nil {
		return err
	}
	s.slots, s.data = sl, data.Binding
	s.width = uint32(gpucore.Invocations(wg))
	return nil
}

// Plan validates a sort of n elements and returns its stages and the
// work group grid of every dispatch. No device work is done.
func (s *Sorter) Plan(n int) ([]plan.SortStage, [3]uint32, error) {
	logN, err := plan.Log2(n)
	if err != nil {
		return nil, [3]uint32{}, err
	}
	stages := plan.SortStages(logN)
	if len(stages) == 0 {
		return nil, [3]uint32{}, nil
	}

	limits := s.dev.Limits()
	if err := limits.CheckBufferSize(uint64(n) * 4); err != nil {
		return nil, [3]uint32{}, err
	}
	groups := (uint64(n) + uint64(s.width) - 1) / uint64(s.width)
	dims := foldGroups(groups, uint64(limits.MaxWorkgroupsPerDimension))
	if err := limits.CheckDispatch(dims[0], dims[1], dims[2], s.kernel.WorkgroupSize()); err != nil {
		return nil, [3]uint32{}, err
	}
	return stages, dims, nil
}

// foldGroups lays out total work groups along x, wrapping into rows along y
// when x alone would exceed maxPerDim. Zero maxPerDim means unlimited. The
// grid may hold a few more groups than total; the kernel skips invocations
// past the element count.
func foldGroups(total, maxPerDim uint64) [3]uint32 {
	if maxPerDim == 0 || total <= maxPerDim {
		return [3]uint32{uint32(total), 1, 1}
	}
	rows := (total + maxPerDim - 1) / maxPerDim
	cols := (total + rows - 1) / rows
	return [3]uint32{uint32(cols), uint32(rows), 1}
}

// Sort returns data sorted ascending. data is not modified.
func (s *Sorter) Sort(data []int32) ([]int32, Trace, error) {
	start := time.Now()
	stages, dims, err := s.Plan(len(data))
	if err != nil {
		return nil, Trace{}, fmt.Errorf("sort: %w", err)
	}
	rec := newRecorder("sort", len(data), s.prof)
	if len(stages) == 0 {
		rec.trace.Wall = time.Since(start)
		return slices.Clone(data), rec.trace, nil
	}

	set := buffers.NewSet(s.dev)
	defer set.Release()

	buf, err := set.AllocateInt32("sort", len(data))
	if err != nil {
		return nil, Trace{}, fmt.Errorf("sort: %w", err)
	}
	if err := set.UploadInt32(buf, data, 0); err != nil {
		return nil, Trace{}, fmt.Errorf("sort: upload: %w", err)
	}
	slogger().Debug("sort: start", "n", len(data), "stages", len(stages), "groups", dims)

	for _, st := range stages {
		if err := s.stage(rec, set, buf, st, uint32(len(data)), dims, st.Index == len(stages)-1); err != nil {
			_, _ = rec.finish()
			return nil, Trace{}, fmt.Errorf("sort: %v: %w", st, err)
		}
	}

	out, err := set.ReadbackInt32(buf, 0, len(data))
	if err != nil {
		_, _ = rec.finish()
		return nil, Trace{}, fmt.Errorf("sort: %w", err)
	}
	trace, err := rec.finish()
	if err != nil {
		return nil, Trace{}, fmt.Errorf("sort: %w", err)
	}
	trace.Wall = time.Since(start)
	slogger().Debug("sort: done", "n", len(data), "dispatches", trace.Dispatches, "wall", trace.Wall)
	return out, trace, nil
}

// stage records one (p, q) stage.
func (s *Sorter) stage(rec *recorder, set *buffers.Set, buf buffers.Handle, st plan.SortStage, n uint32, dims [3]uint32, last bool) error {
	if err := s.dev.SetKernel(s.kernel); err != nil {
		return err
	}
	// row is the number of invocations in one row of the grid.
	if err := setParams(s.dev, s.slots, st.P, st.Q, n, dims[0]*s.width); err != nil {
		return err
	}
	if err := set.Bind(buf, s.data, gpucore.AccessOutput); err != nil {
		return err
	}

	err := rec.dispatch(st.String(), dims, s.kernel.WorkgroupSize(), func() error {
		return s.dev.Dispatch(dims[0], dims[1], dims[2])
	})
	if err != nil {
		return err
	}
	if !s.skipBarrier || last {
		if err := s.dev.Barrier(); err != nil {
			return err
		}
		rec.barrier()
	}
	return nil
}

// Close releases the kernel and profiler queries.
func (s *Sorter) Close() {
	if s.prof != nil {
		s.prof.Release()
	}
	s.dev.DestroyKernel(s.kernel)
}
