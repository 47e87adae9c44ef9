// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"time"

	"github.com/gogpu/gputypes"
)

type options struct {
	backend gputypes.Backend
	spirv   bool
	timeout time.Duration
}

func defaultOptions() options {
	return options{
		backend: gputypes.BackendVulkan,
	}
}

// Option configures a hardware device.
type Option func(*options)

// WithBackend selects the HAL backend Open enumerates adapters from.
// The backend must be registered, usually by a blank import.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithSPIRV hands shader modules to the driver as SPIR-V produced by naga
// instead of WGSL text.
func WithSPIRV(enabled bool) Option {
	return func(o *options) {
		o.spirv = enabled
	}
}

// WithTimeout bounds how long a blocking readback waits before the device
// is considered lost. By default a readback waits forever.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
