// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the narrow device surface that the computebench
// orchestrators drive.
//
// A [Device] compiles kernels, owns storage buffers and records an ordered
// stream of commands: select a kernel, set scalar parameters, bind buffers,
// dispatch work groups and insert barriers. The stream is submitted with
// [Device.Flush] and executes asynchronously; [Device.ReadBuffer] is the only
// call that blocks until the device has caught up.
//
// # Architecture
//
//	               +---------------------+
//	               |    orchestrate      |
//	               | (Reducer / Sorter)  |
//	               +----------+----------+
//	                          |
//	                 gpucore.Device
//	                          |
//	         +----------------+----------------+
//	         |                                 |
//	+--------v--------+               +--------v--------+
//	|   halbackend    |               |    simdevice    |
//	|  (hal.Device)   |               | (software, Go)  |
//	+--------+--------+               +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	|  Vulkan / noop  |
//	+-----------------+
//
// # Resource Management
//
// Buffers, kernels and timestamp queries are referenced through opaque IDs
// ([BufferID], [KernelID], [QueryID]). The zero value [InvalidID] never names
// a live resource. Destroying a resource that is still referenced by
// unflushed commands is undefined behavior.
//
// # Memory Visibility
//
// Storage buffer writes made by one dispatch are not guaranteed to be
// visible to the next dispatch, or to [Device.ReadBuffer], until a
// [Device.Barrier] has been recorded after it. Devices do not detect a
// missing barrier; reading too early returns stale data.
//
// # Timestamps
//
// Devices that can time work on their own clock also implement
// [Timestamps]. Callers must type-assert for it and fall back to host time
// when it is absent or when [Timestamps.CreateQuery] reports
// [ErrTimestampsUnsupported].
package gpucore
