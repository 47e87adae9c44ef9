// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computebench/gpucore"
)

// halProvider is implemented by providers that expose their HAL objects
// directly, such as a gogpu application.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// FromProvider adopts the device of an external provider. The provider
// keeps ownership of the device.
//
// The HAL device and queue are taken from HalDevice/HalQueue when the
// provider has them, otherwise from Device/Queue. Limits are the WebGPU
// defaults and timestamps are off, since a provider does not report the
// features its device was opened with.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	if provider == nil {
		return nil, fmt.Errorf("halbackend: nil device provider")
	}
	var rawDevice, rawQueue any
	if hp, ok := provider.(halProvider); ok {
		rawDevice, rawQueue = hp.HalDevice(), hp.HalQueue()
	} else {
		rawDevice, rawQueue = provider.Device(), provider.Queue()
	}
	device, ok := rawDevice.(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("halbackend: provider device is %T, not hal.Device", rawDevice)
	}
	queue, ok := rawQueue.(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("halbackend: provider queue is %T, not hal.Queue", rawQueue)
	}

	pi := provider.AdapterInfo()
	info := gputypes.AdapterInfo{Name: pi.Name, DeviceType: deviceType(pi.Type)}
	slogger().Info("halbackend: using provider device", "adapter", pi.Name)
	return Wrap(device, queue, info, gpucore.DefaultLimits(), opts...), nil
}

func deviceType(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
