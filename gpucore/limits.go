// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Limits are the device capabilities the orchestrators check before
// dispatching. They are queried once when the device is opened.
type Limits struct {
	// MaxWorkgroupsPerDimension bounds each of x, y and z in Dispatch.
	MaxWorkgroupsPerDimension uint32

	// MaxInvocationsPerWorkgroup bounds the product of a kernel's
	// workgroup size.
	MaxInvocationsPerWorkgroup uint32

	// MaxWorkgroupSize bounds a kernel's workgroup size per dimension.
	MaxWorkgroupSize [3]uint32

	// MaxBufferSize is the largest buffer the device will allocate, in bytes.
	MaxBufferSize uint64

	// MaxStorageBindingSize is the largest range that can be bound as a
	// storage buffer, in bytes.
	MaxStorageBindingSize uint64

	// Timestamps reports whether timestamp queries are available.
	Timestamps bool
}

// LimitsFromWebGPU converts WebGPU limits into device limits.
func LimitsFromWebGPU(l gputypes.Limits, features gputypes.Features) Limits {
	return Limits{
		MaxWorkgroupsPerDimension:  l.MaxComputeWorkgroupsPerDimension,
		MaxInvocationsPerWorkgroup: l.MaxComputeInvocationsPerWorkgroup,
		MaxWorkgroupSize: [3]uint32{
			l.MaxComputeWorkgroupSizeX,
			l.MaxComputeWorkgroupSizeY,
			l.MaxComputeWorkgroupSizeZ,
		},
		MaxBufferSize:         l.MaxBufferSize,
		MaxStorageBindingSize: l.MaxStorageBufferBindingSize,
		Timestamps:            features.Contains(gputypes.FeatureTimestampQuery),
	}
}

// DefaultLimits returns the WebGPU default limits without timestamps.
func DefaultLimits() Limits {
	return LimitsFromWebGPU(gputypes.DefaultLimits(), 0)
}

// CheckWorkgroup validates a kernel's workgroup size against the limits.
func (l Limits) CheckWorkgroup(wg [3]uint32) error {
	for dim, size := range wg {
		if size == 0 {
			return fmt.Errorf("%w: workgroup size[%d] is zero", ErrDispatchLimitExceeded, dim)
		}
		if limit := l.MaxWorkgroupSize[dim]; limit != 0 && size > limit {
			return fmt.Errorf("%w: workgroup size[%d] = %d, max %d",
				ErrDispatchLimitExceeded, dim, size, limit)
		}
	}
	if n := Invocations(wg); l.MaxInvocationsPerWorkgroup != 0 && n > uint64(l.MaxInvocationsPerWorkgroup) {
		return fmt.Errorf("%w: %d invocations per workgroup, max %d",
			ErrDispatchLimitExceeded, n, l.MaxInvocationsPerWorkgroup)
	}
	return nil
}

// CheckDispatch validates a dispatch of x*y*z work groups of size wg.
// A zero dimension is legal and dispatches nothing.
func (l Limits) CheckDispatch(x, y, z uint32, wg [3]uint32) error {
	if err := l.CheckWorkgroup(wg); err != nil {
		return err
	}
	for dim, n := range [3]uint32{x, y, z} {
		if l.MaxWorkgroupsPerDimension != 0 && n > l.MaxWorkgroupsPerDimension {
			return fmt.Errorf("%w: dispatch[%d] = %d work groups, max %d",
				ErrDispatchLimitExceeded, dim, n, l.MaxWorkgroupsPerDimension)
		}
	}
	return nil
}

// CheckBufferSize validates a storage buffer allocation.
func (l Limits) CheckBufferSize(size uint64) error {
	if l.MaxBufferSize != 0 && size > l.MaxBufferSize {
		return fmt.Errorf("%w: buffer of %d bytes, max %d", ErrDispatchLimitExceeded, size, l.MaxBufferSize)
	}
	if l.MaxStorageBindingSize != 0 && size > l.MaxStorageBindingSize {
		return fmt.Errorf("%w: storage binding of %d bytes, max %d",
			ErrDispatchLimitExceeded, size, l.MaxStorageBindingSize)
	}
	return nil
}
