// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package buffers manages the storage buffers of one orchestrator run.
//
// A Set owns every buffer it allocates and releases them together. Buffers
// are fixed-capacity; contents are exchanged with the host as little-endian
// int32 words.
//
// Hazard: a buffer bound as output for a dispatch must not be read back, or
// bound as input to another dispatch, until a barrier has been recorded
// after that dispatch. Doing so returns stale or torn data. The Set cannot
// detect this and does not try to.
package buffers

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/computebench/gpucore"
)

// Handle identifies a buffer owned by a Set.
type Handle struct {
	id   gpucore.BufferID
	size uint64
}

// Size returns the capacity in bytes.
func (h Handle) Size() uint64 { return h.size }

// Len returns the capacity in int32 elements.
func (h Handle) Len() int { return int(h.size / 4) }

// Valid reports whether h refers to an allocated buffer.
func (h Handle) Valid() bool { return h.id != gpucore.InvalidID }

// Set is a group of device buffers with a common lifetime.
type Set struct {
	dev     gpucore.Device
	handles []Handle
}

// NewSet creates an empty set on dev.
func NewSet(dev gpucore.Device) *Set {
	return &Set{dev: dev}
}

// Allocate creates a zero-filled buffer of size bytes.
func (s *Set) Allocate(label string, size uint64) (Handle, error) {
	id, err := s.dev.CreateBuffer(label, size)
	if err != nil {
		return Handle{}, fmt.Errorf("allocate %s (%d bytes): %w", label, size, err)
	}
	h := Handle{id: id, size: size}
	s.handles = append(s.handles, h)
	return h, nil
}

// AllocateInt32 creates a buffer holding n int32 elements.
func (s *Set) AllocateInt32(label string, n int) (Handle, error) {
	return s.Allocate(label, uint64(n)*4)
}

// Bind binds h at a storage binding of the device's selected kernel.
func (s *Set) Bind(h Handle, binding uint32, access gpucore.Access) error {
	if err := s.dev.BindBuffer(binding, h.id, access); err != nil {
		return fmt.Errorf("bind %s at %d: %w", access, binding, err)
	}
	return nil
}

// Upload writes raw bytes at the start of h.
func (s *Set) Upload(h Handle, data []byte) error {
	if uint64(len(data)) > h.size {
		return fmt.Errorf("%w: upload of %d bytes into %d", gpucore.ErrOutOfRange, len(data), h.size)
	}
	return s.dev.WriteBuffer(h.id, 0, data)
}

// UploadInt32 writes vals at the start of h, followed by fill up to the
// buffer's capacity.
func (s *Set) UploadInt32(h Handle, vals []int32, fill int32) error {
	n := h.Len()
	if len(vals) > n {
		return fmt.Errorf("%w: upload of %d elements into %d", gpucore.ErrOutOfRange, len(vals), n)
	}
	buf := make([]byte, n*4)
	for i := range n {
		v := fill
		if i < len(vals) {
			v = vals[i]
		}
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return s.dev.WriteBuffer(h.id, 0, buf)
}

// Readback flushes pending work and returns length bytes at offset.
// See the package documentation for the barrier hazard.
func (s *Set) Readback(h Handle, offset, length uint64) ([]byte, error) {
	data, err := s.dev.ReadBuffer(h.id, offset, length)
	if err != nil {
		return nil, fmt.Errorf("readback [%d, %d): %w", offset, offset+length, err)
	}
	return data, nil
}

// ReadbackInt32 returns n elements starting at element first.
func (s *Set) ReadbackInt32(h Handle, first, n int) ([]int32, error) {
	data, err := s.Readback(h, uint64(first)*4, uint64(n)*4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// Release destroys every buffer of the set. The set can be reused.
func (s *Set) Release() {
	for _, h := range s.handles {
		s.dev.DestroyBuffer(h.id)
	}
	s.handles = s.handles[:0]
}

// Len returns the number of live buffers.
func (s *Set) Len() int {
	return len(s.handles)
}

// ErrSamePair is returned by NewPair when both sides are the same buffer.
var ErrSamePair = errors.New("buffers: ping-pong pair needs two distinct buffers")

// Pair is a ping-pong buffer pair. Src is read by the next pass and Dst is
// written by it. Pair is a value; Swap returns the exchanged pair.
type Pair struct {
	Src Handle
	Dst Handle
}

// NewPair allocates two buffers of size bytes.
func (s *Set) NewPair(label string, size uint64) (Pair, error) {
	a, err := s.Allocate(label+" A", size)
	if err != nil {
		return Pair{}, err
	}
	b, err := s.Allocate(label+" B", size)
	if err != nil {
		return Pair{}, err
	}
	return MakePair(a, b)
}

// MakePair builds a pair from two distinct handles.
func MakePair(src, dst Handle) (Pair, error) {
	if src.id == dst.id {
		return Pair{}, ErrSamePair
	}
	return Pair{Src: src, Dst: dst}, nil
}

// Swap exchanges the roles of the two buffers.
func (p Pair) Swap() Pair {
	return Pair{Src: p.Dst, Dst: p.Src}
}
