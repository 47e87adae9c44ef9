// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halbackend

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/kernel"
)

type halKernel struct {
	id     gpucore.KernelID
	layout *kernel.Layout

	module   hal.ShaderModule
	bgl      hal.BindGroupLayout
	pl       hal.PipelineLayout
	pipeline hal.ComputePipeline
}

func (k *halKernel) ID() gpucore.KernelID     { return k.id }
func (k *halKernel) Label() string            { return k.layout.Label }
func (k *halKernel) ParameterCount() int      { return k.layout.SlotCount() }
func (k *halKernel) WorkgroupSize() [3]uint32 { return k.layout.Workgroup }

func (k *halKernel) ParameterSlot(name string) (gpucore.Slot, error) {
	return k.layout.Slot(name)
}

func (k *halKernel) Storage() []gpucore.StorageBinding {
	return slices.Clone(k.layout.Storage)
}

// destroy releases whatever part of the pipeline was created.
func (k *halKernel) destroy(dev hal.Device) {
	if k.pipeline != nil {
		dev.DestroyComputePipeline(k.pipeline)
		k.pipeline = nil
	}
	if k.pl != nil {
		dev.DestroyPipelineLayout(k.pl)
		k.pl = nil
	}
	if k.bgl != nil {
		dev.DestroyBindGroupLayout(k.bgl)
		k.bgl = nil
	}
	if k.module != nil {
		dev.DestroyShaderModule(k.module)
		k.module = nil
	}
}

// layoutEntries derives the bind group layout from the reflected kernel.
func layoutEntries(l *kernel.Layout) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(l.Storage)+1)
	if l.HasUniform {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    l.UniformBinding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for _, s := range l.Storage {
		t := gputypes.BufferBindingTypeStorage
		if s.ReadOnly {
			t = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    s.Binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		})
	}
	return entries
}

// CompileKernel validates and reflects src with naga, then builds the
// shader module, bind group layout and compute pipeline.
func (d *Device) CompileKernel(src gpucore.KernelSource) (gpucore.Kernel, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	layout, err := kernel.Reflect(src)
	if err != nil {
		return nil, err
	}
	if err := d.limits.CheckWorkgroup(layout.Workgroup); err != nil {
		return nil, fmt.Errorf("kernel %s: %w", src.Label, err)
	}

	shader := hal.ShaderSource{WGSL: src.WGSL}
	if d.opts.spirv {
		words, err := kernel.CompileSPIRV(src)
		if err != nil {
			return nil, err
		}
		shader = hal.ShaderSource{SPIRV: words}
	}

	k := &halKernel{layout: layout}
	if k.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: shader,
	}); err != nil {
		return nil, &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: "backend", Message: err.Error()}},
		}
	}
	if k.bgl, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   src.Label + "_bind_layout",
		Entries: layoutEntries(layout),
	}); err != nil {
		k.destroy(d.device)
		return nil, d.deviceErr("create bind group layout", err)
	}
	if k.pl, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            src.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{k.bgl},
	}); err != nil {
		k.destroy(d.device)
		return nil, d.deviceErr("create pipeline layout", err)
	}
	if k.pipeline, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   src.Label + "_pipeline",
		Layout:  k.pl,
		Compute: hal.ComputeState{Module: k.module, EntryPoint: layout.Entry},
	}); err != nil {
		k.destroy(d.device)
		return nil, &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: "backend", Message: err.Error()}},
		}
	}

	k.id = gpucore.KernelID(d.alloc())
	d.kernels[k.id] = k
	slogger().Debug("halbackend: kernel compiled",
		"label", src.Label,
		"workgroup", layout.Workgroup,
		"params", len(layout.Params),
		"storage", len(layout.Storage),
		"spirv", d.opts.spirv)
	return k, nil
}

// DestroyKernel releases a compiled kernel.
func (d *Device) DestroyKernel(k gpucore.Kernel) {
	if k == nil {
		return
	}
	hk, ok := d.kernels[k.ID()]
	if !ok {
		return
	}
	if d.rec.kernel == hk {
		d.rec.kernel = nil
	}
	hk.destroy(d.device)
	delete(d.kernels, hk.id)
}
