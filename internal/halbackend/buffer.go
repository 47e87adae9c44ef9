// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computebench/gpucore"
)

const storageUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst

type halBuffer struct {
	id    gpucore.BufferID
	label string
	size  uint64
	raw   hal.Buffer
}

func (b *halBuffer) checkRange(offset, size uint64) error {
	if offset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("%w: %s: offset %d size %d not 4-byte aligned", gpucore.ErrOutOfRange, b.label, offset, size)
	}
	if offset > b.size || size > b.size-offset {
		return fmt.Errorf("%w: %s: [%d, %d) of %d bytes", gpucore.ErrOutOfRange, b.label, offset, offset+size, b.size)
	}
	return nil
}

func (d *Device) buffer(id gpucore.BufferID) (*halBuffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrInvalidBuffer, id)
	}
	return b, nil
}

// CreateBuffer allocates a zero-filled storage buffer.
func (d *Device) CreateBuffer(label string, size uint64) (gpucore.BufferID, error) {
	if err := d.usable(); err != nil {
		return gpucore.InvalidID, err
	}
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: zero size", gpucore.ErrInvalidBuffer, label)
	}
	if err := d.limits.CheckBufferSize(size); err != nil {
		return gpucore.InvalidID, fmt.Errorf("create %s: %w", label, err)
	}
	// Copies and bindings work in whole words.
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: (size + 3) &^ 3, Usage: storageUsage})
	if err != nil {
		return gpucore.InvalidID, d.deviceErr("create buffer "+label, err)
	}
	b := &halBuffer{id: gpucore.BufferID(d.alloc()), label: label, size: size, raw: raw}
	d.buffers[b.id] = b
	return b.id, nil
}

// DestroyBuffer releases a storage buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	for binding, bb := range d.rec.bound {
		if bb == b {
			delete(d.rec.bound, binding)
		}
	}
	d.device.DestroyBuffer(b.raw)
	delete(d.buffers, id)
}

// WriteBuffer uploads data at offset. Queue writes execute before the next
// submission, so commands already recorded are flushed first to keep the
// write ordered after them.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	b, err := d.buffer(id)
	if err != nil {
		return err
	}
	if err := b.checkRange(offset, uint64(len(data))); err != nil {
		return err
	}
	if d.rec.pending() {
		if _, err := d.Flush(); err != nil {
			return err
		}
	}
	if err := d.queue.WriteBuffer(b.raw, offset, data); err != nil {
		return d.deviceErr("write buffer "+b.label, err)
	}
	return nil
}

// ReadBuffer flushes, copies the range into a mappable staging buffer and
// waits for the copy to complete.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	b, err := d.buffer(id)
	if err != nil {
		return nil, err
	}
	if err := b.checkRange(offset, size); err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	if _, err := d.Flush(); err != nil {
		return nil, err
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, d.deviceErr("create staging buffer", err)
	}
	defer d.device.DestroyBuffer(staging)

	idx, err := d.submitOne(b.label+"_readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{{SrcOffset: offset, Size: size}})
	})
	if err != nil {
		return nil, err
	}
	if err := d.waitFor(idx); err != nil {
		return nil, err
	}
	return d.mapRead(staging, size)
}

// mapRead copies size bytes out of a host-visible buffer.
func (d *Device) mapRead(buf hal.Buffer, size uint64) ([]byte, error) {
	mapping, err := d.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, d.deviceErr("map buffer", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.device.UnmapBuffer(buf); err != nil {
		return nil, d.deviceErr("unmap buffer", err)
	}
	return out, nil
}
