// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computebench/gpucore"
)

// timestampSize is the size of one resolved timestamp.
const timestampSize = 8

type halQuery struct {
	id      gpucore.QueryID
	set     hal.QuerySet
	resolve hal.Buffer
	staging hal.Buffer

	// submission is the queue index that wrote the timestamp; valid once
	// flushed is set.
	submission uint64
	flushed    bool
}

func (d *Device) query(id gpucore.QueryID) (*halQuery, error) {
	q, ok := d.queries[id]
	if !ok {
		return nil, fmt.Errorf("halbackend: unknown query %d", id)
	}
	return q, nil
}

// CreateQuery allocates a timestamp query.
func (d *Device) CreateQuery() (gpucore.QueryID, error) {
	if err := d.usable(); err != nil {
		return gpucore.InvalidID, err
	}
	if !d.limits.Timestamps {
		return gpucore.InvalidID, gpucore.ErrTimestampsUnsupported
	}

	q := &halQuery{}
	var err error
	q.set, err = d.device.CreateQuerySet(&hal.QuerySetDescriptor{
		Label: "computebench_timestamp",
		Type:  hal.QueryTypeTimestamp,
		Count: 1,
	})
	if errors.Is(err, hal.ErrTimestampsNotSupported) {
		return gpucore.InvalidID, gpucore.ErrTimestampsUnsupported
	}
	if err != nil {
		return gpucore.InvalidID, d.deviceErr("create query set", err)
	}
	if q.resolve, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "computebench_timestamp_resolve",
		Size:  timestampSize,
		Usage: gputypes.BufferUsageQueryResolve | gputypes.BufferUsageCopySrc,
	}); err != nil {
		d.destroyQuery(q)
		return gpucore.InvalidID, d.deviceErr("create resolve buffer", err)
	}
	if q.staging, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "computebench_timestamp_readback",
		Size:  timestampSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	}); err != nil {
		d.destroyQuery(q)
		return gpucore.InvalidID, d.deviceErr("create timestamp staging buffer", err)
	}

	q.id = gpucore.QueryID(d.alloc())
	d.queries[q.id] = q
	return q.id, nil
}

// WriteTimestamp records a timestamp at the current position of the
// command stream.
func (d *Device) WriteTimestamp(id gpucore.QueryID) error {
	if err := d.usable(); err != nil {
		return err
	}
	q, err := d.query(id)
	if err != nil {
		return err
	}
	q.flushed = false
	d.rec.ops = append(d.rec.ops, op{kind: opTimestamp, query: q})
	return nil
}

// QueryReady reports whether the submission that wrote q has completed.
func (d *Device) QueryReady(id gpucore.QueryID) (bool, error) {
	if err := d.usable(); err != nil {
		return false, err
	}
	q, err := d.query(id)
	if err != nil {
		return false, err
	}
	if !q.flushed {
		return false, nil
	}
	return d.queue.PollCompleted() >= q.submission, nil
}

// ResolveQuery returns the timestamp in q converted to nanoseconds.
func (d *Device) ResolveQuery(id gpucore.QueryID) (uint64, error) {
	ready, err := d.QueryReady(id)
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, fmt.Errorf("halbackend: query %d is not ready", id)
	}
	raw, err := d.mapRead(d.queries[id].staging, timestampSize)
	if err != nil {
		return 0, err
	}
	ticks := binary.LittleEndian.Uint64(raw)
	return uint64(float64(ticks) * float64(d.queue.GetTimestampPeriod())), nil
}

// DestroyQuery releases q.
func (d *Device) DestroyQuery(id gpucore.QueryID) {
	q, ok := d.queries[id]
	if !ok {
		return
	}
	d.destroyQuery(q)
	delete(d.queries, id)
}

func (d *Device) destroyQuery(q *halQuery) {
	if q.staging != nil {
		d.device.DestroyBuffer(q.staging)
	}
	if q.resolve != nil {
		d.device.DestroyBuffer(q.resolve)
	}
	if q.set != nil {
		d.device.DestroyQuerySet(q.set)
	}
}
