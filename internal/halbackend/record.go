// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computebench/gpucore"
)

type opKind uint8

const (
	opDispatch opKind = iota + 1
	opBarrier
	opTimestamp
)

// op is one recorded command. Dispatches snapshot the parameters and
// bindings in effect when they were recorded.
type op struct {
	kind    opKind
	kernel  *halKernel
	params  []uint32
	bound   map[uint32]*halBuffer
	groups  [3]uint32
	buffers []hal.Buffer
	query   *halQuery
}

type recorder struct {
	kernel *halKernel
	params []uint32
	bound  map[uint32]*halBuffer
	ops    []op
}

func (r *recorder) pending() bool { return len(r.ops) > 0 }

func (r *recorder) reset() {
	r.kernel = nil
	r.params = nil
	clear(r.bound)
	r.ops = nil
}

// submission holds what a submitted command buffer still references.
type submission struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
	buffers []hal.Buffer
	groups  []hal.BindGroup
	queries []*halQuery
}

// SetKernel selects k and clears parameters and bindings.
func (d *Device) SetKernel(k gpucore.Kernel) error {
	if err := d.usable(); err != nil {
		return err
	}
	if k == nil {
		return gpucore.ErrNoKernel
	}
	hk, ok := d.kernels[k.ID()]
	if !ok {
		return fmt.Errorf("%w: kernel %d is not compiled on this device", gpucore.ErrNoKernel, k.ID())
	}
	d.rec.kernel = hk
	d.rec.params = make([]uint32, hk.layout.SlotCount())
	clear(d.rec.bound)
	return nil
}

// SetParameter sets a scalar parameter of the selected kernel.
func (d *Device) SetParameter(slot gpucore.Slot, value uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	if d.rec.kernel == nil {
		return gpucore.ErrNoKernel
	}
	if int(slot) >= len(d.rec.params) {
		return fmt.Errorf("%w: %s has no slot %d", gpucore.ErrUnknownParameter, d.rec.kernel.layout.Label, slot)
	}
	d.rec.params[slot] = value
	return nil
}

// BindBuffer binds a storage buffer to the selected kernel.
func (d *Device) BindBuffer(binding uint32, id gpucore.BufferID, access gpucore.Access) error {
	if err := d.usable(); err != nil {
		return err
	}
	if d.rec.kernel == nil {
		return gpucore.ErrNoKernel
	}
	b, err := d.buffer(id)
	if err != nil {
		return err
	}
	decl, ok := d.rec.kernel.layout.StorageAt(binding)
	if !ok {
		return fmt.Errorf("%w: %s declares no storage buffer at binding %d",
			gpucore.ErrBindingMismatch, d.rec.kernel.layout.Label, binding)
	}
	if access == gpucore.AccessOutput && decl.ReadOnly {
		return fmt.Errorf("%w: %s binding %d (%s) is read-only",
			gpucore.ErrBindingMismatch, d.rec.kernel.layout.Label, binding, decl.Name)
	}
	if err := d.limits.CheckBufferSize(b.size); err != nil {
		return fmt.Errorf("bind %s: %w", b.label, err)
	}
	d.rec.bound[binding] = b
	return nil
}

// Dispatch records x*y*z work groups of the selected kernel.
func (d *Device) Dispatch(x, y, z uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	k := d.rec.kernel
	if k == nil {
		return gpucore.ErrNoKernel
	}
	if err := d.limits.CheckDispatch(x, y, z, k.layout.Workgroup); err != nil {
		return fmt.Errorf("dispatch %s: %w", k.layout.Label, err)
	}
	for _, s := range k.layout.Storage {
		if _, ok := d.rec.bound[s.Binding]; !ok {
			return fmt.Errorf("%w: %s binding %d (%s) is not bound",
				gpucore.ErrBindingMismatch, k.layout.Label, s.Binding, s.Name)
		}
	}
	d.rec.ops = append(d.rec.ops, op{
		kind:   opDispatch,
		kernel: k,
		params: slices.Clone(d.rec.params),
		bound:  maps.Clone(d.rec.bound),
		groups: [3]uint32{x, y, z},
	})
	return nil
}

// Barrier records a storage barrier over every live buffer.
func (d *Device) Barrier() error {
	if err := d.usable(); err != nil {
		return err
	}
	bufs := make([]hal.Buffer, 0, len(d.buffers))
	for _, b := range d.buffers {
		bufs = append(bufs, b.raw)
	}
	d.rec.ops = append(d.rec.ops, op{kind: opBarrier, buffers: bufs})
	return nil
}

// Flush encodes the recorded ops into one command buffer and submits it.
func (d *Device) Flush() (gpucore.Submission, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	if !d.rec.pending() {
		return d.submitted, nil
	}
	ops := d.rec.ops
	d.rec.ops = nil

	idx, err := d.submit("computebench_flush", func(enc hal.CommandEncoder, sub *submission) error {
		for i := range ops {
			if err := d.encode(enc, &ops[i], sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slogger().Debug("halbackend: flushed", "ops", len(ops), "submission", idx)
	return d.submitted, nil
}

// submitOne records a single command buffer outside the op list.
func (d *Device) submitOne(label string, fn func(enc hal.CommandEncoder)) (uint64, error) {
	return d.submit(label, func(enc hal.CommandEncoder, _ *submission) error {
		fn(enc)
		return nil
	})
}

func (d *Device) submit(label string, encode func(hal.CommandEncoder, *submission) error) (uint64, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return 0, d.deviceErr("create command encoder", err)
	}
	sub := &submission{encoder: enc}
	if err := enc.BeginEncoding(label); err != nil {
		d.release(sub)
		return 0, d.deviceErr("begin encoding", err)
	}
	if err := encode(enc, sub); err != nil {
		enc.DiscardEncoding()
		d.release(sub)
		return 0, err
	}
	cmd, err := enc.EndEncoding()
	if err != nil {
		d.release(sub)
		return 0, d.deviceErr("end encoding", err)
	}
	sub.cmd = cmd
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.release(sub)
		return 0, d.deviceErr("submit", err)
	}
	sub.index = idx
	for _, q := range sub.queries {
		q.submission = idx
		q.flushed = true
	}
	d.inflight = append(d.inflight, sub)
	d.submitted = gpucore.Submission(idx)
	d.reclaim()
	return idx, nil
}

func (d *Device) encode(enc hal.CommandEncoder, o *op, sub *submission) error {
	switch o.kind {
	case opDispatch:
		return d.encodeDispatch(enc, o, sub)
	case opBarrier:
		barriers := make([]hal.BufferBarrier, len(o.buffers))
		for i, b := range o.buffers {
			barriers[i] = hal.BufferBarrier{
				Buffer: b,
				Usage: hal.BufferUsageTransition{
					OldUsage: gputypes.BufferUsageStorage,
					NewUsage: gputypes.BufferUsageStorage,
				},
			}
		}
		enc.TransitionBuffers(barriers)
	case opTimestamp:
		q := o.query
		first := uint32(0)
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{
			Label: "timestamp",
			TimestampWrites: &hal.ComputePassTimestampWrites{
				QuerySet:                  q.set,
				BeginningOfPassWriteIndex: &first,
			},
		})
		pass.End()
		enc.ResolveQuerySet(q.set, 0, 1, q.resolve, 0)
		enc.CopyBufferToBuffer(q.resolve, q.staging, []hal.BufferCopy{{Size: timestampSize}})
		sub.queries = append(sub.queries, q)
	}
	return nil
}

func (d *Device) encodeDispatch(enc hal.CommandEncoder, o *op, sub *submission) error {
	l := o.kernel.layout
	entries := make([]gputypes.BindGroupEntry, 0, len(l.Storage)+1)

	if l.HasUniform {
		size := l.UniformBufferSize()
		ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: l.Label + "_params",
			Size:  size,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return d.deviceErr("create uniform buffer", err)
		}
		sub.buffers = append(sub.buffers, ub)
		if err := d.queue.WriteBuffer(ub, 0, l.PackParams(o.params)); err != nil {
			return d.deviceErr("write uniform buffer", err)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  l.UniformBinding,
			Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Size: size},
		})
	}
	for _, s := range l.Storage {
		b := o.bound[s.Binding]
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  s.Binding,
			Resource: gputypes.BufferBinding{Buffer: b.raw.NativeHandle()},
		})
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   l.Label + "_bind_group",
		Layout:  o.kernel.bgl,
		Entries: entries,
	})
	if err != nil {
		return d.deviceErr("create bind group", err)
	}
	sub.groups = append(sub.groups, bg)

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: l.Label})
	pass.SetPipeline(o.kernel.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(o.groups[0], o.groups[1], o.groups[2])
	pass.End()
	return nil
}

// reclaim frees the transient resources of completed submissions.
func (d *Device) reclaim() {
	done := d.queue.PollCompleted()
	kept := d.inflight[:0]
	for _, s := range d.inflight {
		if s.index <= done {
			d.release(s)
		} else {
			kept = append(kept, s)
		}
	}
	clear(d.inflight[len(kept):])
	d.inflight = kept
}

func (d *Device) reclaimAll() {
	for _, s := range d.inflight {
		d.release(s)
	}
	d.inflight = nil
}

func (d *Device) release(s *submission) {
	for _, bg := range s.groups {
		d.device.DestroyBindGroup(bg)
	}
	for _, b := range s.buffers {
		d.device.DestroyBuffer(b)
	}
	if s.cmd != nil {
		d.device.FreeCommandBuffer(s.cmd)
	}
	if s.encoder != nil {
		s.encoder.Destroy()
	}
	*s = submission{index: s.index}
}
