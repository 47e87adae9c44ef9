// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package simdevice implements gpucore.Device in software.
//
// Kernel sources are compiled and reflected with naga exactly as on a real
// backend, so compile errors, parameter names and binding declarations are
// checked against the WGSL. Execution is done by a Go body registered under
// the kernel label; each work group is one call of the body, and the work
// groups of a dispatch run concurrently on a worker pool.
//
// Storage buffers are not coherent between dispatches: a dispatch's stores
// stay pending until a Barrier publishes them. Loads always see the
// published contents. Leaving out a barrier therefore produces the same
// kind of wrong answer a real device would.
//
// Timestamps come from a virtual clock that advances by a fixed cost per
// dispatch plus a cost per invocation, which makes profiler results
// deterministic in tests.
package simdevice

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/kernel"
	"github.com/gogpu/computebench/internal/parallel"
)

// DeviceName is the adapter name reported by Info.
const DeviceName = "Simulated Device"

// DispatchRecord describes one executed dispatch.
type DispatchRecord struct {
	Kernel      string
	Groups      [3]uint32
	Params      []uint32
	Invocations uint64
}

type simKernel struct {
	id     gpucore.KernelID
	layout *kernel.Layout
	body   Body
}

func (k *simKernel) ID() gpucore.KernelID     { return k.id }
func (k *simKernel) Label() string            { return k.layout.Label }
func (k *simKernel) ParameterCount() int      { return k.layout.SlotCount() }
func (k *simKernel) WorkgroupSize() [3]uint32 { return k.layout.Workgroup }

func (k *simKernel) ParameterSlot(name string) (gpucore.Slot, error) {
	return k.layout.Slot(name)
}

func (k *simKernel) Storage() []gpucore.StorageBinding {
	return slices.Clone(k.layout.Storage)
}

type binding struct {
	buf      *buffer
	writable bool
}

type query struct {
	ns      uint64
	written bool
	ready   bool
}

// Device is a software compute device.
//
// Device is not safe for concurrent use; like any gpucore.Device it is
// driven from one goroutine.
type Device struct {
	opts options
	pool *parallel.Pool

	nextID  uint64
	kernels map[gpucore.KernelID]*simKernel
	buffers map[gpucore.BufferID]*buffer
	queries map[gpucore.QueryID]*query

	current *simKernel
	params  []uint32
	bound   map[uint32]binding

	clock     uint64
	recorded  bool
	submitted gpucore.Submission
	unflushed []*query

	log      []DispatchRecord
	barriers int
	lost     bool
	closed   bool
}

var _ gpucore.Device = (*Device)(nil)
var _ gpucore.Timestamps = (*Device)(nil)

// New creates a simulated device.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		opts:    o,
		pool:    parallel.NewPool(o.workers),
		kernels: make(map[gpucore.KernelID]*simKernel),
		buffers: make(map[gpucore.BufferID]*buffer),
		queries: make(map[gpucore.QueryID]*query),
		bound:   make(map[uint32]binding),
	}
	slogger().Debug("simdevice: created",
		"workers", d.pool.Workers(),
		"timestamps", o.limits.Timestamps,
		"maxWorkgroups", o.limits.MaxWorkgroupsPerDimension)
	return d
}

// Info describes the simulated adapter.
func (d *Device) Info() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: DeviceName, Type: gpucontext.AdapterTypeSoftware}
}

// Limits returns the configured limits.
func (d *Device) Limits() gpucore.Limits {
	return d.opts.limits
}

func (d *Device) alloc() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) check() error {
	if d.closed {
		return gpucore.ErrClosed
	}
	if d.lost {
		return fmt.Errorf("simdevice: %w", gpucore.ErrDeviceLost)
	}
	return nil
}

// CompileKernel validates src with naga and pairs it with the body
// registered under src.Label.
func (d *Device) CompileKernel(src gpucore.KernelSource) (gpucore.Kernel, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	layout, err := kernel.Reflect(src)
	if err != nil {
		return nil, err
	}
	body, ok := d.opts.bodies[src.Label]
	if !ok {
		return nil, &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: "link", Message: "no simulated body registered for " + src.Label}},
		}
	}
	k := &simKernel{id: gpucore.KernelID(d.alloc()), layout: layout, body: body}
	d.kernels[k.id] = k
	slogger().Debug("simdevice: kernel compiled",
		"label", src.Label, "params", len(layout.Params), "workgroup", layout.Workgroup)
	return k, nil
}

// DestroyKernel releases k.
func (d *Device) DestroyKernel(k gpucore.Kernel) {
	if k == nil {
		return
	}
	if d.current != nil && d.current.id == k.ID() {
		d.current = nil
	}
	delete(d.kernels, k.ID())
}

// CreateBuffer allocates a zero-filled buffer.
func (d *Device) CreateBuffer(label string, size uint64) (gpucore.BufferID, error) {
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: zero size", gpucore.ErrInvalidBuffer, label)
	}
	if err := d.opts.limits.CheckBufferSize(size); err != nil {
		return gpucore.InvalidID, fmt.Errorf("create %s: %w", label, err)
	}
	id := gpucore.BufferID(d.alloc())
	d.buffers[id] = newBuffer(label, size)
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	for slot, bd := range d.bound {
		if bd.buf == b {
			delete(d.bound, slot)
		}
	}
	delete(d.buffers, id)
}

func (d *Device) buffer(id gpucore.BufferID) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidBuffer, id)
	}
	return b, nil
}

// WriteBuffer uploads data at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	b, err := d.buffer(id)
	if err != nil {
		return err
	}
	if err := b.checkRange(offset, uint64(len(data))); err != nil {
		return err
	}
	b.write(offset, data)
	d.recorded = true
	return nil
}

// ReadBuffer flushes and returns the published contents of the range.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	b, err := d.buffer(id)
	if err != nil {
		return nil, err
	}
	if err := b.checkRange(offset, size); err != nil {
		return nil, err
	}
	if _, err := d.Flush(); err != nil {
		return nil, err
	}
	return b.read(offset, size), nil
}

// SetKernel selects k and clears parameters and bindings.
func (d *Device) SetKernel(k gpucore.Kernel) error {
	if err := d.check(); err != nil {
		return err
	}
	if k == nil {
		return gpucore.ErrNoKernel
	}
	sk, ok := d.kernels[k.ID()]
	if !ok {
		return fmt.Errorf("%w: kernel %d is not owned by this device", gpucore.ErrNoKernel, k.ID())
	}
	d.current = sk
	d.params = make([]uint32, sk.layout.SlotCount())
	clear(d.bound)
	return nil
}

// SetParameter sets a scalar parameter of the selected kernel.
func (d *Device) SetParameter(slot gpucore.Slot, value uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.current == nil {
		return gpucore.ErrNoKernel
	}
	if int(slot) >= len(d.params) {
		return fmt.Errorf("%w: slot %d of %s", gpucore.ErrUnknownParameter, slot, d.current.Label())
	}
	d.params[slot] = value
	return nil
}

// BindBuffer binds a buffer at a storage binding of the selected kernel.
func (d *Device) BindBuffer(index uint32, id gpucore.BufferID, access gpucore.Access) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.current == nil {
		return gpucore.ErrNoKernel
	}
	decl, ok := d.current.layout.StorageAt(index)
	if !ok {
		return fmt.Errorf("%w: %s has no storage binding %d", gpucore.ErrBindingMismatch, d.current.Label(), index)
	}
	if access == gpucore.AccessOutput && decl.ReadOnly {
		return fmt.Errorf("%w: %s binding %d (%s) is read-only", gpucore.ErrBindingMismatch,
			d.current.Label(), index, decl.Name)
	}
	b, err := d.buffer(id)
	if err != nil {
		return err
	}
	if err := d.opts.limits.CheckBufferSize(b.size); err != nil {
		return err
	}
	d.bound[index] = binding{buf: b, writable: access == gpucore.AccessOutput}
	return nil
}

// Dispatch executes x*y*z work groups of the selected kernel.
func (d *Device) Dispatch(x, y, z uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	k := d.current
	if k == nil {
		return gpucore.ErrNoKernel
	}
	wg := k.layout.Workgroup
	if err := d.opts.limits.CheckDispatch(x, y, z, wg); err != nil {
		return fmt.Errorf("dispatch %s: %w", k.Label(), err)
	}
	views := make(map[string]View, len(k.layout.Storage))
	for _, decl := range k.layout.Storage {
		bd, ok := d.bound[decl.Binding]
		if !ok {
			return fmt.Errorf("%w: %s binding %d (%s) is not bound", gpucore.ErrBindingMismatch,
				k.Label(), decl.Binding, decl.Name)
		}
		views[decl.Name] = View{buf: bd.buf, writable: bd.writable && !decl.ReadOnly}
	}
	if d.opts.failAfter >= 0 && len(d.log) >= d.opts.failAfter {
		d.lost = true
		slogger().Warn("simdevice: device lost", "dispatches", len(d.log))
		return fmt.Errorf("simdevice: dispatch %s: %w", k.Label(), gpucore.ErrDeviceLost)
	}

	groups := int(uint64(x) * uint64(y) * uint64(z))
	params := slices.Clone(d.params)
	d.pool.For(groups, func(i int) {
		g := &Group{
			ID:     [3]uint32{uint32(i) % x, uint32(i) / x % y, uint32(i) / (x * y)},
			Size:   wg,
			params: params,
			layout: k.layout,
			views:  views,
		}
		k.body(g)
	})

	inv := uint64(groups) * gpucore.Invocations(wg)
	d.clock += uint64(d.opts.dispatchCost) + inv*uint64(d.opts.invocationCost)
	d.recorded = true
	d.log = append(d.log, DispatchRecord{
		Kernel:      k.Label(),
		Groups:      [3]uint32{x, y, z},
		Params:      params,
		Invocations: inv,
	})
	return nil
}

// Barrier publishes pending stores of every buffer.
func (d *Device) Barrier() error {
	if err := d.check(); err != nil {
		return err
	}
	words := 0
	for _, b := range d.buffers {
		words += b.publish()
	}
	d.barriers++
	d.recorded = true
	slogger().Debug("simdevice: barrier", "words", words)
	return nil
}

// Flush submits recorded work. Execution is eager, so the submission is
// complete as soon as it exists.
func (d *Device) Flush() (gpucore.Submission, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	if !d.recorded && len(d.unflushed) == 0 {
		return d.submitted, nil
	}
	d.submitted++
	for _, q := range d.unflushed {
		q.ready = true
	}
	d.unflushed = d.unflushed[:0]
	d.recorded = false
	return d.submitted, nil
}

// Completed reports whether s has finished.
func (d *Device) Completed(s gpucore.Submission) (bool, error) {
	if d.lost {
		return false, fmt.Errorf("simdevice: %w", gpucore.ErrDeviceLost)
	}
	return s <= d.submitted, nil
}

// Close releases the worker pool. Buffers and kernels are dropped.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.pool.Close()
	clear(d.buffers)
	clear(d.kernels)
	clear(d.queries)
	return nil
}

// === Timestamps ===

// CreateQuery allocates a timestamp query.
func (d *Device) CreateQuery() (gpucore.QueryID, error) {
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if !d.opts.limits.Timestamps {
		return gpucore.InvalidID, gpucore.ErrTimestampsUnsupported
	}
	id := gpucore.QueryID(d.alloc())
	d.queries[id] = &query{}
	return id, nil
}

// WriteTimestamp records the virtual clock into q.
func (d *Device) WriteTimestamp(id gpucore.QueryID) error {
	if err := d.check(); err != nil {
		return err
	}
	q, ok := d.queries[id]
	if !ok {
		return fmt.Errorf("%w: query %d", gpucore.ErrInvalidBuffer, id)
	}
	q.ns = d.clock
	q.written = true
	q.ready = false
	d.unflushed = append(d.unflushed, q)
	return nil
}

// QueryReady reports whether q was written and flushed.
func (d *Device) QueryReady(id gpucore.QueryID) (bool, error) {
	if d.lost {
		return false, fmt.Errorf("simdevice: %w", gpucore.ErrDeviceLost)
	}
	q, ok := d.queries[id]
	if !ok {
		return false, fmt.Errorf("%w: query %d", gpucore.ErrInvalidBuffer, id)
	}
	return q.ready, nil
}

// ResolveQuery returns the recorded virtual time in nanoseconds.
func (d *Device) ResolveQuery(id gpucore.QueryID) (uint64, error) {
	q, ok := d.queries[id]
	if !ok {
		return 0, fmt.Errorf("%w: query %d", gpucore.ErrInvalidBuffer, id)
	}
	if !q.ready {
		return 0, errors.New("simdevice: query not ready")
	}
	return q.ns, nil
}

// DestroyQuery releases q.
func (d *Device) DestroyQuery(id gpucore.QueryID) {
	delete(d.queries, id)
}

// === Inspection ===

// Dispatches returns a copy of the dispatch log.
func (d *Device) Dispatches() []DispatchRecord {
	return slices.Clone(d.log)
}

// DispatchCount returns the number of dispatches executed.
func (d *Device) DispatchCount() int {
	return len(d.log)
}

// BarrierCount returns the number of barriers recorded.
func (d *Device) BarrierCount() int {
	return d.barriers
}

// ResetLog clears the dispatch log and barrier count.
func (d *Device) ResetLog() {
	d.log = d.log[:0]
	d.barriers = 0
}

// BufferCount returns the number of live buffers.
func (d *Device) BufferCount() int {
	return len(d.buffers)
}

// QueryCount returns the number of live queries.
func (d *Device) QueryCount() int {
	return len(d.queries)
}

// Clock returns the virtual device time.
func (d *Device) Clock() time.Duration {
	return time.Duration(d.clock)
}

// Lose marks the device as lost. Every later operation fails with
// gpucore.ErrDeviceLost.
func (d *Device) Lose() {
	d.lost = true
}
