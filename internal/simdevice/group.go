// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package simdevice

import "github.com/gogpu/computebench/internal/kernel"

// Body executes one work group of a kernel. Invocations of the group run
// sequentially inside the call; work groups of a dispatch run concurrently
// and must write disjoint words.
type Body func(g *Group)

// Group is the state visible to one work group.
type Group struct {
	// ID is @builtin(workgroup_id).
	ID [3]uint32

	// Size is the kernel's @workgroup_size.
	Size [3]uint32

	params []uint32
	layout *kernel.Layout
	views  map[string]View
}

// Param returns the value of the named uniform parameter, or 0 if the
// kernel declares no such parameter.
func (g *Group) Param(name string) uint32 {
	slot, err := g.layout.Slot(name)
	if err != nil || int(slot) >= len(g.params) {
		return 0
	}
	return g.params[slot]
}

// Buffer returns the storage buffer declared under name. An undeclared
// name yields an empty view.
func (g *Group) Buffer(name string) View {
	return g.views[name]
}

// View is a work group's window on a bound storage buffer, as array<i32>.
//
// Loads return published contents. Stores are pending until the next
// barrier. Out-of-range loads return 0 and out-of-range stores are dropped,
// matching robust buffer access. Stores through a read-only binding are
// dropped.
type View struct {
	buf      *buffer
	writable bool
}

// Len returns the number of elements.
func (v View) Len() uint32 {
	if v.buf == nil {
		return 0
	}
	return v.buf.words()
}

// Load reads element i.
func (v View) Load(i uint32) int32 {
	if v.buf == nil {
		return 0
	}
	return int32(v.buf.load(i))
}

// Store writes element i.
func (v View) Store(i uint32, x int32) {
	if v.buf == nil || !v.writable {
		return
	}
	v.buf.store(i, uint32(x))
}
