// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package simdevice

import (
	"maps"
	"time"

	"github.com/gogpu/computebench/gpucore"
)

type options struct {
	limits         gpucore.Limits
	bodies         map[string]Body
	workers        int
	dispatchCost   time.Duration
	invocationCost time.Duration
	failAfter      int
}

func defaultOptions() options {
	limits := gpucore.DefaultLimits()
	limits.Timestamps = true
	return options{
		limits:         limits,
		bodies:         maps.Clone(builtinBodies),
		dispatchCost:   2 * time.Microsecond,
		invocationCost: time.Nanosecond,
		failAfter:      -1,
	}
}

// Option configures a simulated device.
type Option func(*options)

// WithLimits replaces the device limits. The default is the WebGPU default
// limits with timestamps enabled.
func WithLimits(l gpucore.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithTimestamps enables or disables timestamp queries.
func WithTimestamps(enabled bool) Option {
	return func(o *options) {
		o.limits.Timestamps = enabled
	}
}

// WithKernel registers body as the implementation of kernels compiled
// with the given label. It overrides a built-in body of the same label.
func WithKernel(label string, body Body) Option {
	return func(o *options) {
		o.bodies[label] = body
	}
}

// WithWorkers sets the number of goroutines executing work groups.
// Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCost sets the virtual time charged per dispatch and per invocation.
func WithCost(perDispatch, perInvocation time.Duration) Option {
	return func(o *options) {
		o.dispatchCost = perDispatch
		o.invocationCost = perInvocation
	}
}

// WithFailAfter makes the device report loss on dispatch number n
// (zero-based). Negative disables failure injection.
func WithFailAfter(n int) Option {
	return func(o *options) {
		o.failAfter = n
	}
}
