// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package orchestrate drives the multi-pass compute algorithms on a
// gpucore.Device.
//
// A Reducer finds the maximum of a dataset with a tiled reduction over a
// square grid, ping-ponging between two buffers. A Sorter sorts a dataset
// of power-of-two length in place with the bitonic network, one dispatch
// per (p, q) stage. Both place a barrier after every dispatch so that the
// next pass, or the final readback, observes completed writes.
//
// Pass and stage sequences come from package plan as immutable values.
// Every size and limit check happens before the first device call, so a
// configuration error never leaves partial work on the device.
package orchestrate

import (
	"fmt"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/profile"
)

// Config configures an orchestrator.
type Config struct {
	// Tile is the reduction tile factor G. Zero selects DefaultTile.
	Tile uint32

	// Pad accepts reduction lengths that are not a power of Tile by
	// filling the grid with the minimum int32.
	Pad bool

	// SortWorkgroup is the sort kernel's workgroup width. Zero selects
	// DefaultSortWorkgroup.
	SortWorkgroup uint32

	// Profile records a timestamp span around every dispatch.
	Profile bool
}

// DefaultTile is the default reduction tile factor.
const DefaultTile = 8

// storageBinding resolves a kernel's storage binding by variable name.
func storageBinding(k gpucore.Kernel, name string) (gpucore.StorageBinding, error) {
	for _, b := range k.Storage() {
		if b.Name == name {
			return b, nil
		}
	}
	return gpucore.StorageBinding{}, fmt.Errorf("%w: %s declares no storage buffer %q",
		gpucore.ErrBindingMismatch, k.Label(), name)
}

// slots resolves parameter names of k in order.
func slots(k gpucore.Kernel, names ...string) ([]gpucore.Slot, error) {
	out := make([]gpucore.Slot, len(names))
	for i, name := range names {
		s, err := k.ParameterSlot(name)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// setParams assigns values to slots in order.
func setParams(dev gpucore.Device, slots []gpucore.Slot, values ...uint32) error {
	for i, s := range slots {
		if err := dev.SetParameter(s, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func newProfiler(dev gpucore.Device, enabled bool) *profile.Profiler {
	if !enabled {
		return nil
	}
	p := profile.New(dev)
	if !p.DeviceTimed() {
		slogger().Warn("orchestrate: device has no timestamp queries, timing on the host",
			"device", dev.Info().Name)
	}
	return p
}
