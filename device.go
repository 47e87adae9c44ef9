// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import (
	"errors"
	"fmt"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/simdevice"
)

// OpenDevice opens a device of the given backend. The caller owns the
// device and must Close it.
//
// Devices are single-goroutine objects: pass the result to WithDevice, or
// make every call from one goroutine.
func OpenDevice(b Backend) (gpucore.Device, error) {
	switch b {
	case BackendSim:
		return simdevice.New(), nil
	case BackendGPU, BackendNoop:
		return openHardware(b)
	case BackendAuto, "":
		dev, err := openHardware(BackendGPU)
		if err == nil {
			return dev, nil
		}
		slogger().Warn("computebench: no GPU, using simulated device", "err", err)
		return simdevice.New(), nil
	default:
		return nil, fmt.Errorf("computebench: unknown backend %q", b)
	}
}

// IsSimulated reports whether dev is the software simulated device.
func IsSimulated(dev gpucore.Device) bool {
	_, ok := dev.(*simdevice.Device)
	return ok
}

func noGPU(err error) error {
	if errors.Is(err, ErrNoGPU) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNoGPU, err)
}
