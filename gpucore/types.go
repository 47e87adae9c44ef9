// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent device resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a storage buffer.
type BufferID uint64

// KernelID is an opaque handle to a compiled kernel.
type KernelID uint64

// QueryID is an opaque handle to a single timestamp query.
type QueryID uint64

// Submission identifies a batch of commands handed to the device by Flush.
// Submissions are ordered: a later submission completes after an earlier one.
type Submission uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Slot is the index of a scalar kernel parameter. Slots are resolved by
// name through [Kernel.ParameterSlot] and are only meaningful for the kernel
// that produced them.
type Slot uint32

// Access selects how a kernel sees a bound buffer.
type Access uint8

const (
	// AccessInput binds the buffer for reading only.
	AccessInput Access = iota + 1

	// AccessOutput binds the buffer for reading and writing.
	AccessOutput
)

// String returns a human-readable access name.
func (a Access) String() string {
	switch a {
	case AccessInput:
		return "input"
	case AccessOutput:
		return "output"
	default:
		return fmt.Sprintf("Access(%d)", a)
	}
}

// KernelSource describes a compute kernel to compile.
type KernelSource struct {
	// Label names the kernel. Simulated devices use it to select the
	// software body that stands in for the compiled program.
	Label string

	// WGSL is the kernel source text.
	WGSL string

	// EntryPoint is the compute entry point. Defaults to "main".
	EntryPoint string
}

// Entry returns the entry point name, applying the default.
func (s KernelSource) Entry() string {
	if s.EntryPoint == "" {
		return "main"
	}
	return s.EntryPoint
}

// StorageBinding describes a storage buffer declared by a kernel.
type StorageBinding struct {
	// Name is the variable name in the kernel source.
	Name string

	// Binding is the @binding index within group 0.
	Binding uint32

	// ReadOnly reports whether the kernel declares the buffer read-only.
	ReadOnly bool
}

// Kernel is a compiled compute program together with its parameter
// resolver.
type Kernel interface {
	// ID returns the device-local kernel handle.
	ID() KernelID

	// Label returns the label the kernel was compiled with.
	Label() string

	// ParameterSlot resolves a scalar parameter by name.
	// Returns an error wrapping ErrUnknownParameter if the kernel has no
	// parameter with that name.
	ParameterSlot(name string) (Slot, error)

	// ParameterCount returns the number of scalar parameter slots.
	ParameterCount() int

	// WorkgroupSize returns the declared @workgroup_size.
	WorkgroupSize() [3]uint32

	// Storage returns the storage buffers declared by the kernel, ordered
	// by binding index.
	Storage() []StorageBinding
}

// Invocations returns the number of invocations in one work group of size
// wg.
func Invocations(wg [3]uint32) uint64 {
	return uint64(wg[0]) * uint64(wg[1]) * uint64(wg[2])
}
