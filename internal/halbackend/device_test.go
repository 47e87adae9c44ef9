// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/orchestrate"
)

// The noop backend accepts every command but executes none of them, so
// these tests cover recording, validation and resource bookkeeping. Data
// written by dispatches is never checked here.

func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	d, err := OpenNoop()
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func compileReduce(t *testing.T, d *Device) gpucore.Kernel {
	t.Helper()
	k, err := d.CompileKernel(orchestrate.ReduceMaxSource())
	if err != nil {
		t.Fatalf("CompileKernel: %v", err)
	}
	return k
}

// =============================================================================
// Device basics
// =============================================================================

func TestOpenNoopInfo(t *testing.T) {
	d := newNoopDevice(t)
	info := d.Info()
	if info.Name != "Noop Adapter" {
		t.Errorf("Info().Name = %q, want %q", info.Name, "Noop Adapter")
	}
	if info.Type != gpucontext.AdapterTypeUnknown {
		t.Errorf("Info().Type = %v, want AdapterTypeUnknown", info.Type)
	}
	if d.Limits().Timestamps {
		t.Error("noop adapter reports timestamps")
	}
	if d.Limits().MaxWorkgroupsPerDimension == 0 {
		t.Error("MaxWorkgroupsPerDimension not populated")
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeVirtualGPU, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSelectAdapter(t *testing.T) {
	adapters := []hal.ExposedAdapter{
		{Info: gputypes.AdapterInfo{Name: "cpu", DeviceType: gputypes.DeviceTypeCPU}},
		{Info: gputypes.AdapterInfo{Name: "igpu", DeviceType: gputypes.DeviceTypeIntegratedGPU}},
		{Info: gputypes.AdapterInfo{Name: "dgpu", DeviceType: gputypes.DeviceTypeDiscreteGPU}},
	}
	if got := selectAdapter(adapters); got.Info.Name != "dgpu" {
		t.Errorf("selectAdapter = %q, want dgpu", got.Info.Name)
	}
	if got := selectAdapter(adapters[:2]); got.Info.Name != "igpu" {
		t.Errorf("selectAdapter = %q, want igpu", got.Info.Name)
	}
	if got := selectAdapter(adapters[:1]); got.Info.Name != "cpu" {
		t.Errorf("selectAdapter = %q, want cpu", got.Info.Name)
	}
	if got := selectAdapter(nil); got != nil {
		t.Errorf("selectAdapter(nil) = %v, want nil", got)
	}
}

func TestRequestFeatures(t *testing.T) {
	var all gputypes.Features
	all.Insert(gputypes.FeatureDepthClipControl)
	all.Insert(gputypes.FeatureTimestampQuery)

	features, _ := request(&hal.ExposedAdapter{Features: all})
	if !features.Contains(gputypes.FeatureTimestampQuery) {
		t.Error("timestamp queries not requested from an adapter that has them")
	}
	if features.Count() != 1 {
		t.Errorf("requested %d features, want only timestamp queries", features.Count())
	}

	var none gputypes.Features
	none.Insert(gputypes.FeatureDepthClipControl)
	features, _ = request(&hal.ExposedAdapter{Features: none})
	if !features.IsEmpty() {
		t.Errorf("requested features %v from an adapter without timestamps", features)
	}
}

func TestRequestLimits(t *testing.T) {
	_, limits := request(&hal.ExposedAdapter{})
	if limits.MaxComputeWorkgroupsPerDimension != gputypes.DefaultLimits().MaxComputeWorkgroupsPerDimension {
		t.Errorf("zero adapter limits not replaced by defaults: %+v", limits)
	}

	a := &hal.ExposedAdapter{}
	a.Capabilities.Limits = gputypes.DefaultLimits()
	a.Capabilities.Limits.MaxComputeWorkgroupsPerDimension = 1024
	if _, limits := request(a); limits.MaxComputeWorkgroupsPerDimension != 1024 {
		t.Errorf("MaxComputeWorkgroupsPerDimension = %d, want adapter's 1024", limits.MaxComputeWorkgroupsPerDimension)
	}
}

func TestOpenUnregisteredBackend(t *testing.T) {
	_, err := Open(WithBackend(gputypes.BackendBrowserWebGPU))
	if err == nil {
		t.Fatal("Open with an unregistered backend succeeded")
	}
}

// =============================================================================
// Kernels
// =============================================================================

func TestCompileKernel(t *testing.T) {
	d := newNoopDevice(t)
	k := compileReduce(t, d)

	if k.Label() != orchestrate.ReduceMaxLabel {
		t.Errorf("Label() = %q", k.Label())
	}
	if _, err := k.ParameterSlot("columns"); err != nil {
		t.Errorf("ParameterSlot(columns): %v", err)
	}
	if _, err := k.ParameterSlot("nope"); !errors.Is(err, gpucore.ErrUnknownParameter) {
		t.Errorf("ParameterSlot(nope) = %v, want ErrUnknownParameter", err)
	}
	d.DestroyKernel(k)
	if len(d.kernels) != 0 {
		t.Errorf("%d kernels after DestroyKernel", len(d.kernels))
	}
}

func TestCompileKernelSPIRV(t *testing.T) {
	d, err := OpenNoop(WithSPIRV(true))
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	defer d.Close()
	compileReduce(t, d)
}

func TestCompileMalformed(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.CompileKernel(gpucore.KernelSource{Label: "broken", WGSL: "@compute fn main( {"})
	if !errors.Is(err, gpucore.ErrCompile) {
		t.Fatalf("CompileKernel = %v, want ErrCompile", err)
	}
}

func TestLayoutEntries(t *testing.T) {
	d := newNoopDevice(t)
	k := compileReduce(t, d).(*halKernel)
	entries := layoutEntries(k.layout)
	if len(entries) != 3 {
		t.Fatalf("%d layout entries, want 3", len(entries))
	}
	want := map[uint32]gputypes.BufferBindingType{
		0: gputypes.BufferBindingTypeUniform,
		1: gputypes.BufferBindingTypeReadOnlyStorage,
		2: gputypes.BufferBindingTypeStorage,
	}
	for _, e := range entries {
		if e.Buffer == nil || e.Buffer.Type != want[e.Binding] {
			t.Errorf("binding %d: %+v, want type %v", e.Binding, e.Buffer, want[e.Binding])
		}
		if e.Visibility != gputypes.ShaderStageCompute {
			t.Errorf("binding %d: visibility %v", e.Binding, e.Visibility)
		}
	}
}

// =============================================================================
// Buffers and recording
// =============================================================================

func TestBufferErrors(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.CreateBuffer("zero", 0); !errors.Is(err, gpucore.ErrInvalidBuffer) {
		t.Errorf("CreateBuffer(0) = %v, want ErrInvalidBuffer", err)
	}
	id, err := d.CreateBuffer("data", 16)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.WriteBuffer(id, 8, make([]byte, 16)); !errors.Is(err, gpucore.ErrOutOfRange) {
		t.Errorf("WriteBuffer past end = %v, want ErrOutOfRange", err)
	}
	if _, err := d.ReadBuffer(id, 2, 4); !errors.Is(err, gpucore.ErrOutOfRange) {
		t.Errorf("ReadBuffer unaligned = %v, want ErrOutOfRange", err)
	}
	got, err := d.ReadBuffer(id, 0, 16)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(got) != 16 {
		t.Errorf("ReadBuffer returned %d bytes, want 16", len(got))
	}
	d.DestroyBuffer(id)
	if err := d.WriteBuffer(id, 0, make([]byte, 4)); !errors.Is(err, gpucore.ErrInvalidBuffer) {
		t.Errorf("WriteBuffer after destroy = %v, want ErrInvalidBuffer", err)
	}
}

func TestRecordingValidation(t *testing.T) {
	d := newNoopDevice(t)
	if err := d.Dispatch(1, 1, 1); !errors.Is(err, gpucore.ErrNoKernel) {
		t.Errorf("Dispatch without kernel = %v, want ErrNoKernel", err)
	}
	k := compileReduce(t, d)
	if err := d.SetKernel(k); err != nil {
		t.Fatalf("SetKernel: %v", err)
	}
	if err := d.SetParameter(gpucore.Slot(k.ParameterCount()), 1); !errors.Is(err, gpucore.ErrUnknownParameter) {
		t.Errorf("SetParameter out of range = %v, want ErrUnknownParameter", err)
	}

	id, err := d.CreateBuffer("data", 64)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.BindBuffer(1, id, gpucore.AccessOutput); !errors.Is(err, gpucore.ErrBindingMismatch) {
		t.Errorf("BindBuffer(read-only, output) = %v, want ErrBindingMismatch", err)
	}
	if err := d.BindBuffer(7, id, gpucore.AccessInput); !errors.Is(err, gpucore.ErrBindingMismatch) {
		t.Errorf("BindBuffer(undeclared) = %v, want ErrBindingMismatch", err)
	}
	if err := d.BindBuffer(1, id, gpucore.AccessInput); err != nil {
		t.Fatalf("BindBuffer(1): %v", err)
	}
	if err := d.Dispatch(1, 1, 1); !errors.Is(err, gpucore.ErrBindingMismatch) {
		t.Errorf("Dispatch with unbound output = %v, want ErrBindingMismatch", err)
	}
	if err := d.BindBuffer(2, id, gpucore.AccessOutput); err != nil {
		t.Fatalf("BindBuffer(2): %v", err)
	}
	limit := d.Limits().MaxWorkgroupsPerDimension
	if err := d.Dispatch(limit+1, 1, 1); !errors.Is(err, gpucore.ErrDispatchLimitExceeded) {
		t.Errorf("Dispatch over limit = %v, want ErrDispatchLimitExceeded", err)
	}
	if err := d.Dispatch(2, 2, 1); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Barrier(); err != nil {
		t.Fatalf("Barrier: %v", err)
	}
	if len(d.rec.ops) != 2 {
		t.Errorf("%d recorded ops, want 2", len(d.rec.ops))
	}
}

func TestFlushSubmitsAndReclaims(t *testing.T) {
	d := newNoopDevice(t)
	k := compileReduce(t, d)
	id, err := d.CreateBuffer("data", 256)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	first, err := d.Flush()
	if err != nil {
		t.Fatalf("empty Flush: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := d.SetKernel(k); err != nil {
			t.Fatalf("SetKernel: %v", err)
		}
		if err := d.BindBuffer(1, id, gpucore.AccessInput); err != nil {
			t.Fatalf("BindBuffer: %v", err)
		}
		if err := d.BindBuffer(2, id, gpucore.AccessOutput); err != nil {
			t.Fatalf("BindBuffer: %v", err)
		}
		if err := d.Dispatch(1, 1, 1); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if err := d.Barrier(); err != nil {
			t.Fatalf("Barrier: %v", err)
		}
	}
	s, err := d.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s <= first {
		t.Errorf("Flush = %d, want after %d", s, first)
	}
	if d.rec.pending() {
		t.Error("ops still pending after Flush")
	}
	done, err := d.Completed(s)
	if err != nil || !done {
		t.Fatalf("Completed = %v, %v; want true", done, err)
	}
	if len(d.inflight) != 0 {
		t.Errorf("%d submissions still in flight after completion", len(d.inflight))
	}
	again, err := d.Flush()
	if err != nil || again != s {
		t.Errorf("Flush with nothing recorded = %d, %v; want %d", again, err, s)
	}
}

func TestWriteFlushesPendingOps(t *testing.T) {
	d := newNoopDevice(t)
	id, err := d.CreateBuffer("data", 16)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.Barrier(); err != nil {
		t.Fatalf("Barrier: %v", err)
	}
	if err := d.WriteBuffer(id, 0, make([]byte, 16)); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	if d.rec.pending() {
		t.Error("WriteBuffer left earlier commands unflushed")
	}
}

// =============================================================================
// Timestamps
// =============================================================================

func TestTimestampsUnsupported(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.CreateQuery(); !errors.Is(err, gpucore.ErrTimestampsUnsupported) {
		t.Errorf("CreateQuery = %v, want ErrTimestampsUnsupported", err)
	}
}

func TestWrapTimestampsRejectedByBackend(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	limits := gpucore.DefaultLimits()
	limits.Timestamps = true
	d := Wrap(device, queue, gputypes.AdapterInfo{Name: "wrapped"}, limits)
	defer d.Close()

	if _, err := d.CreateQuery(); !errors.Is(err, gpucore.ErrTimestampsUnsupported) {
		t.Errorf("CreateQuery = %v, want ErrTimestampsUnsupported", err)
	}
	if len(d.queries) != 0 {
		t.Errorf("%d queries left after failed CreateQuery", len(d.queries))
	}
}

// =============================================================================
// Orchestration on the noop backend
// =============================================================================

func TestReducerRecordsPasses(t *testing.T) {
	d := newNoopDevice(t)
	r, err := orchestrate.NewReducer(d, orchestrate.Config{Tile: 2, Profile: true})
	if err != nil {
		t.Fatalf("NewReducer: %v", err)
	}
	defer r.Close()

	_, trace, err := r.Reduce([]int32{3, 1, 4, 1, 5, 9, 2, 6})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if trace.Dispatches != 2 {
		t.Errorf("Dispatches = %d, want 2", trace.Dispatches)
	}
	if trace.DeviceTimed {
		t.Error("noop device reported device timing")
	}
	if len(d.buffers) != 0 {
		t.Errorf("%d buffers leaked", len(d.buffers))
	}
}

func TestSorterRecordsStages(t *testing.T) {
	d := newNoopDevice(t)
	s, err := orchestrate.NewSorter(d, orchestrate.Config{})
	if err != nil {
		t.Fatalf("NewSorter: %v", err)
	}
	defer s.Close()

	out, trace, err := s.Sort([]int32{5, 3, 8, 1, 9, 2, 7, 4})
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if len(out) != 8 {
		t.Errorf("len(out) = %d, want 8", len(out))
	}
	if trace.Dispatches != 6 {
		t.Errorf("Dispatches = %d, want 6", trace.Dispatches)
	}
}

func TestClosedDevice(t *testing.T) {
	d, err := OpenNoop()
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := d.CreateBuffer("x", 4); !errors.Is(err, gpucore.ErrClosed) {
		t.Errorf("CreateBuffer after Close = %v, want ErrClosed", err)
	}
}
