// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package simdevice

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/computebench/gpucore"
)

// buffer models a storage buffer with incoherent device writes.
//
// Kernels load from visible and store to pending. A barrier publishes the
// pending words into visible. A dispatch that reads data written by an
// earlier dispatch without a barrier in between sees the old contents,
// which is how a missing barrier shows up on real hardware.
type buffer struct {
	label   string
	size    uint64
	visible []uint32
	pending []uint32
	dirty   []bool
}

func newBuffer(label string, size uint64) *buffer {
	words := (size + 3) / 4
	return &buffer{
		label:   label,
		size:    size,
		visible: make([]uint32, words),
		pending: make([]uint32, words),
		dirty:   make([]bool, words),
	}
}

func (b *buffer) words() uint32 {
	return uint32(len(b.visible))
}

func (b *buffer) checkRange(offset, size uint64) error {
	if offset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("%w: %s: offset %d and size %d must be multiples of 4",
			gpucore.ErrOutOfRange, b.label, offset, size)
	}
	if offset > b.size || size > b.size-offset {
		return fmt.Errorf("%w: %s: range [%d, %d) outside %d bytes",
			gpucore.ErrOutOfRange, b.label, offset, offset+size, b.size)
	}
	return nil
}

// write is a host upload. It lands in both views and discards pending
// device writes to the same words.
func (b *buffer) write(offset uint64, data []byte) {
	first := offset / 4
	for i := range uint64(len(data)) / 4 {
		w := binary.LittleEndian.Uint32(data[i*4:])
		b.visible[first+i] = w
		b.pending[first+i] = w
		b.dirty[first+i] = false
	}
}

// read returns host-visible bytes.
func (b *buffer) read(offset, size uint64) []byte {
	out := make([]byte, size)
	first := offset / 4
	for i := range size / 4 {
		binary.LittleEndian.PutUint32(out[i*4:], b.visible[first+i])
	}
	return out
}

func (b *buffer) load(i uint32) uint32 {
	if i >= b.words() {
		return 0
	}
	return b.visible[i]
}

// store records a device write. Out-of-range stores are dropped.
func (b *buffer) store(i, v uint32) {
	if i >= b.words() {
		return
	}
	b.pending[i] = v
	b.dirty[i] = true
}

// publish makes pending writes visible.
func (b *buffer) publish() int {
	n := 0
	for i, d := range b.dirty {
		if d {
			b.visible[i] = b.pending[i]
			b.dirty[i] = false
			n++
		}
	}
	return n
}
