// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "github.com/gogpu/gpucontext"

// Device is the compute accelerator driven by the orchestrators.
//
// A Device is owned by a single goroutine. Implementations are not required
// to be safe for concurrent use; computebench confines every device to one
// executor goroutine.
//
// Resource lifecycle:
//   - Resources are created via Create*/Compile* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource referenced by unflushed commands is undefined
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// === Capabilities ===

	// Info describes the adapter backing this device.
	Info() gpucontext.AdapterInfo

	// Limits returns the limits queried when the device was opened.
	Limits() Limits

	// === Kernels ===

	// CompileKernel compiles a compute kernel.
	// Returns a *CompileError (matching ErrCompile) on malformed source.
	CompileKernel(src KernelSource) (Kernel, error)

	// DestroyKernel releases a compiled kernel.
	DestroyKernel(k Kernel)

	// === Buffers ===

	// CreateBuffer allocates a zero-filled storage buffer of size bytes.
	CreateBuffer(label string, size uint64) (BufferID, error)

	// DestroyBuffer releases a storage buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer uploads data at offset. The write is ordered before any
	// command recorded after it.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer flushes recorded commands, blocks until the device has
	// completed them and returns size bytes starting at offset.
	//
	// Data written by a dispatch is only guaranteed to be returned if a
	// Barrier was recorded after that dispatch. Reading earlier returns
	// stale data; this is not detected.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Command Recording ===

	// SetKernel selects the kernel used by subsequent dispatches and
	// clears parameter values and buffer bindings.
	SetKernel(k Kernel) error

	// SetParameter sets a scalar parameter of the selected kernel.
	SetParameter(slot Slot, value uint32) error

	// BindBuffer binds a buffer at a storage binding of the selected kernel.
	// Binding AccessOutput to a binding the kernel declares read-only
	// returns an error wrapping ErrBindingMismatch.
	BindBuffer(binding uint32, id BufferID, access Access) error

	// Dispatch records x*y*z work groups of the selected kernel, using the
	// current parameters and bindings. Returns an error wrapping
	// ErrDispatchLimitExceeded if the dispatch exceeds Limits.
	Dispatch(x, y, z uint32) error

	// Barrier records a full read/write barrier for storage buffers.
	Barrier() error

	// === Submission ===

	// Flush submits recorded commands without waiting for them.
	// Flushing with nothing recorded returns the last submission.
	Flush() (Submission, error)

	// Completed reports, without blocking, whether a submission finished.
	// Returns an error wrapping ErrDeviceLost if the device failed.
	Completed(s Submission) (bool, error)

	// Close waits for outstanding work and releases the device.
	Close() error
}

// Timestamps is implemented by devices that can record timestamps on the
// device clock, ordered with the command stream.
type Timestamps interface {
	// CreateQuery allocates a query. Returns ErrTimestampsUnsupported if
	// the device cannot time work.
	CreateQuery() (QueryID, error)

	// WriteTimestamp records a timestamp into q at the current position of
	// the command stream.
	WriteTimestamp(q QueryID) error

	// QueryReady reports, without blocking, whether q holds a result.
	// A query written after the last Flush is never ready.
	QueryReady(q QueryID) (bool, error)

	// ResolveQuery returns the device time recorded in q, in nanoseconds.
	// The query must be ready.
	ResolveQuery(q QueryID) (uint64, error)

	// DestroyQuery releases q.
	DestroyQuery(q QueryID)
}
