// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package computebench

import (
	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/halbackend"
)

// openHardware opens a wgpu HAL device.
func openHardware(b Backend) (gpucore.Device, error) {
	var (
		dev *halbackend.Device
		err error
	)
	if b == BackendNoop {
		dev, err = halbackend.OpenNoop()
	} else {
		dev, err = halbackend.Open()
	}
	if err != nil {
		return nil, noGPU(err)
	}
	return dev, nil
}
