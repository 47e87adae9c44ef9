// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package halbackend implements gpucore.Device on a wgpu HAL device.
//
// Commands are recorded into an op list and encoded when Flush is called:
// every dispatch becomes its own compute pass with a freshly written
// uniform buffer and bind group, and every Barrier becomes a storage to
// storage buffer transition. Transient resources of a submission are freed
// once the queue reports it completed.
//
// Timestamps use one single-query set per query. A timestamp is written by
// an empty compute pass placed in the command stream, then resolved and
// copied to a mappable buffer in the same submission.
package halbackend

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/computebench/gpucore"
)

// Device is a hardware compute device.
//
// Device is not safe for concurrent use.
type Device struct {
	opts options

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool

	info   gputypes.AdapterInfo
	limits gpucore.Limits

	nextID  uint64
	kernels map[gpucore.KernelID]*halKernel
	buffers map[gpucore.BufferID]*halBuffer
	queries map[gpucore.QueryID]*halQuery

	rec recorder

	submitted gpucore.Submission
	inflight  []*submission

	lost   bool
	closed bool
}

var _ gpucore.Device = (*Device)(nil)
var _ gpucore.Timestamps = (*Device)(nil)

// Open enumerates the adapters of the selected backend (Vulkan by default)
// and opens the first discrete GPU, then the first integrated GPU, then
// whatever adapter comes first.
func Open(opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, ok := hal.GetBackend(o.backend)
	if !ok {
		return nil, fmt.Errorf("halbackend: %s backend not available", o.backend)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters)
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("halbackend: no GPU adapters found")
	}

	d, err := openAdapter(instance, selected, o)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	slogger().Info("halbackend: device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"backend", o.backend,
		"timestamps", d.limits.Timestamps)
	return d, nil
}

// OpenNoop opens a device on the HAL noop backend. Every command succeeds
// without executing; buffers keep host writes but dispatches leave them
// untouched.
func OpenNoop(opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("halbackend: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("halbackend: noop backend exposes no adapter")
	}
	d, err := openAdapter(instance, &adapters[0], o)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

// Wrap adopts an already opened HAL device. The caller keeps ownership:
// Close releases only the resources the Device created.
func Wrap(device hal.Device, queue hal.Queue, info gputypes.AdapterInfo, limits gpucore.Limits, opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newDevice(nil, device, queue, false, info, limits, o)
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// request returns the features and limits to open a with. Timestamp
// queries are the only optional feature requested.
func request(a *hal.ExposedAdapter) (gputypes.Features, gputypes.Limits) {
	var features gputypes.Features
	if a.Features.Contains(gputypes.FeatureTimestampQuery) {
		features.Insert(gputypes.FeatureTimestampQuery)
	}
	limits := a.Capabilities.Limits
	if limits.MaxComputeWorkgroupsPerDimension == 0 {
		limits = gputypes.DefaultLimits()
	}
	return features, limits
}

func openAdapter(instance hal.Instance, a *hal.ExposedAdapter, o options) (*Device, error) {
	features, limits := request(a)
	openDev, err := a.Adapter.Open(features, limits)
	if err != nil {
		return nil, fmt.Errorf("halbackend: open device: %w", err)
	}
	return newDevice(instance, openDev.Device, openDev.Queue, true, a.Info,
		gpucore.LimitsFromWebGPU(limits, features), o), nil
}

func newDevice(instance hal.Instance, device hal.Device, queue hal.Queue, owned bool,
	info gputypes.AdapterInfo, limits gpucore.Limits, o options) *Device {
	return &Device{
		opts:     o,
		instance: instance,
		device:   device,
		queue:    queue,
		owned:    owned,
		info:     info,
		limits:   limits,
		kernels:  make(map[gpucore.KernelID]*halKernel),
		buffers:  make(map[gpucore.BufferID]*halBuffer),
		queries:  make(map[gpucore.QueryID]*halQuery),
		rec:      recorder{bound: make(map[uint32]*halBuffer)},
	}
}

// Info describes the adapter.
func (d *Device) Info() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: d.info.Name, Type: adapterType(d.info.DeviceType)}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Limits returns the limits the device was opened with.
func (d *Device) Limits() gpucore.Limits {
	return d.limits
}

func (d *Device) alloc() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) usable() error {
	if d.closed {
		return gpucore.ErrClosed
	}
	if d.lost {
		return gpucore.ErrDeviceLost
	}
	return nil
}

// deviceErr converts HAL failures into gpucore errors and latches device
// loss.
func (d *Device) deviceErr(op string, err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		d.lost = true
		slogger().Error("halbackend: device lost", "op", op, "err", err)
		return fmt.Errorf("%w: %s: %v", gpucore.ErrDeviceLost, op, err)
	}
	return fmt.Errorf("halbackend: %s: %w", op, err)
}

// waitFor blocks until the queue has completed submission idx.
func (d *Device) waitFor(idx uint64) error {
	deadline := time.Now().Add(d.opts.timeout)
	for d.queue.PollCompleted() < idx {
		if d.opts.timeout > 0 && time.Now().After(deadline) {
			d.lost = true
			return fmt.Errorf("%w: submission %d not completed after %v", gpucore.ErrDeviceLost, idx, d.opts.timeout)
		}
		runtime.Gosched()
	}
	d.reclaim()
	return nil
}

// Completed reports whether submission s has finished.
func (d *Device) Completed(s gpucore.Submission) (bool, error) {
	if err := d.usable(); err != nil {
		return false, err
	}
	done := d.queue.PollCompleted() >= uint64(s)
	if done {
		d.reclaim()
	}
	return done, nil
}

// Close waits for outstanding work and releases every resource the device
// created. Closing twice is a no-op.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	var err error
	if !d.lost {
		if werr := d.device.WaitIdle(); werr != nil {
			err = d.deviceErr("wait idle", werr)
		}
	}
	d.rec.reset()
	d.reclaimAll()
	for id, q := range d.queries {
		d.destroyQuery(q)
		delete(d.queries, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, k := range d.kernels {
		k.destroy(d.device)
		delete(d.kernels, id)
	}
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.closed = true
	return err
}
