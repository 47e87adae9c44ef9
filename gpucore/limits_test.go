// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestLimitsFromWebGPU(t *testing.T) {
	l := LimitsFromWebGPU(gputypes.DefaultLimits(), gputypes.Features(gputypes.FeatureTimestampQuery))

	if l.MaxWorkgroupsPerDimension != 65535 {
		t.Errorf("MaxWorkgroupsPerDimension = %d, want 65535", l.MaxWorkgroupsPerDimension)
	}
	if l.MaxInvocationsPerWorkgroup != 256 {
		t.Errorf("MaxInvocationsPerWorkgroup = %d, want 256", l.MaxInvocationsPerWorkgroup)
	}
	if l.MaxWorkgroupSize != [3]uint32{256, 256, 64} {
		t.Errorf("MaxWorkgroupSize = %v, want [256 256 64]", l.MaxWorkgroupSize)
	}
	if !l.Timestamps {
		t.Error("Timestamps = false, want true when FeatureTimestampQuery is present")
	}

	if DefaultLimits().Timestamps {
		t.Error("DefaultLimits().Timestamps = true, want false")
	}
}

func TestLimitsCheckDispatch(t *testing.T) {
	l := DefaultLimits()

	tests := []struct {
		name    string
		x, y, z uint32
		wg      [3]uint32
		wantErr bool
	}{
		{"single group", 1, 1, 1, [3]uint32{8, 8, 1}, false},
		{"at limit", 65535, 1, 1, [3]uint32{64, 1, 1}, false},
		{"zero groups", 0, 0, 1, [3]uint32{8, 8, 1}, false},
		{"x over limit", 65536, 1, 1, [3]uint32{64, 1, 1}, true},
		{"y over limit", 1, 70000, 1, [3]uint32{64, 1, 1}, true},
		{"too many invocations", 1, 1, 1, [3]uint32{32, 32, 1}, true},
		{"z size over limit", 1, 1, 1, [3]uint32{1, 1, 65}, true},
		{"zero workgroup size", 1, 1, 1, [3]uint32{0, 1, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.CheckDispatch(tt.x, tt.y, tt.z, tt.wg)
			if tt.wantErr {
				if !errors.Is(err, ErrDispatchLimitExceeded) {
					t.Errorf("CheckDispatch() = %v, want ErrDispatchLimitExceeded", err)
				}
				return
			}
			if err != nil {
				t.Errorf("CheckDispatch() = %v, want nil", err)
			}
		})
	}
}

func TestLimitsZeroMeansUnbounded(t *testing.T) {
	var l Limits
	if err := l.CheckDispatch(1<<20, 1<<20, 1, [3]uint32{1024, 1, 1}); err != nil {
		t.Errorf("CheckDispatch() with zero limits = %v, want nil", err)
	}
	if err := l.CheckBufferSize(1 << 40); err != nil {
		t.Errorf("CheckBufferSize() with zero limits = %v, want nil", err)
	}
}

func TestLimitsCheckBufferSize(t *testing.T) {
	l := DefaultLimits()
	if err := l.CheckBufferSize(1024); err != nil {
		t.Errorf("CheckBufferSize(1024) = %v, want nil", err)
	}
	if err := l.CheckBufferSize(l.MaxStorageBindingSize + 4); !errors.Is(err, ErrDispatchLimitExceeded) {
		t.Errorf("CheckBufferSize(over binding size) = %v, want ErrDispatchLimitExceeded", err)
	}
}

func TestInvocations(t *testing.T) {
	if got := Invocations([3]uint32{8, 8, 1}); got != 64 {
		t.Errorf("Invocations(8,8,1) = %d, want 64", got)
	}
	if got := Invocations([3]uint32{256, 256, 64}); got != 256*256*64 {
		t.Errorf("Invocations(256,256,64) = %d, want %d", got, 256*256*64)
	}
}
