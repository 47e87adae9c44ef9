// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernel compiles and reflects WGSL compute kernels with naga.
//
// Reflection recovers what the orchestrators bind by name: the scalar
// parameters (members of the kernel's single uniform struct), the storage
// buffers in bind group 0 and the entry point's workgroup size. Failures at
// any compiler stage are reported as *gpucore.CompileError with naga's
// diagnostic text.
package kernel

import (
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/computebench/gpucore"
)

// Param is a scalar kernel parameter.
type Param struct {
	Name   string
	Slot   gpucore.Slot
	Offset uint32
}

// Layout is the reflected interface of a compute kernel.
type Layout struct {
	// Label is the kernel label.
	Label string

	// Entry is the compute entry point name.
	Entry string

	// Workgroup is the declared @workgroup_size.
	Workgroup [3]uint32

	// Params lists the uniform struct members in declaration order.
	Params []Param

	// HasUniform reports whether the kernel declares a uniform buffer.
	HasUniform bool

	// UniformBinding is the @binding of the uniform buffer.
	UniformBinding uint32

	// UniformSize is the size of the uniform struct in bytes.
	UniformSize uint32

	// Storage lists storage buffers ordered by binding.
	Storage []gpucore.StorageBinding
}

// Reflect parses, validates and reflects src.
func Reflect(src gpucore.KernelSource) (*Layout, error) {
	mod, err := lowerModule(src)
	if err != nil {
		return nil, err
	}

	fail := func(format string, args ...any) error {
		return &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: "reflect", Message: fmt.Sprintf(format, args...)}},
		}
	}

	entry := src.Entry()
	l := &Layout{Label: src.Label, Entry: entry}
	found := false
	for _, ep := range mod.EntryPoints {
		if ep.Name == entry && ep.Stage == ir.StageCompute {
			l.Workgroup = ep.Workgroup
			found = true
			break
		}
	}
	if !found {
		return nil, fail("no compute entry point %q", entry)
	}
	for i, n := range l.Workgroup {
		if n == 0 {
			l.Workgroup[i] = 1
		}
	}

	for _, gv := range mod.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		if gv.Binding.Group != 0 {
			return nil, fail("%s: only bind group 0 is supported, got group %d", gv.Name, gv.Binding.Group)
		}
		switch gv.Space {
		case ir.SpaceUniform:
			if l.HasUniform {
				return nil, fail("%s: more than one uniform buffer", gv.Name)
			}
			if err := l.reflectUniform(mod, gv); err != nil {
				return nil, fail("%s: %v", gv.Name, err)
			}
		case ir.SpaceStorage:
			l.Storage = append(l.Storage, gpucore.StorageBinding{
				Name:     gv.Name,
				Binding:  gv.Binding.Binding,
				ReadOnly: gv.Access == ir.StorageRead,
			})
		}
	}

	slices.SortFunc(l.Storage, func(a, b gpucore.StorageBinding) int {
		return int(a.Binding) - int(b.Binding)
	})
	for i := 1; i < len(l.Storage); i++ {
		if l.Storage[i].Binding == l.Storage[i-1].Binding {
			return nil, fail("binding %d declared twice", l.Storage[i].Binding)
		}
	}
	if l.HasUniform {
		if _, ok := l.StorageAt(l.UniformBinding); ok {
			return nil, fail("binding %d declared twice", l.UniformBinding)
		}
	}
	return l, nil
}

// lowerModule runs the naga front end and validator.
func lowerModule(src gpucore.KernelSource) (*ir.Module, error) {
	compileErr := func(stage string, err error) error {
		return &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: stage, Message: err.Error()}},
		}
	}

	ast, err := naga.Parse(src.WGSL)
	if err != nil {
		return nil, compileErr("parse", err)
	}
	mod, err := naga.LowerWithSource(ast, src.WGSL)
	if err != nil {
		return nil, compileErr("lower", err)
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return nil, compileErr("validate", err)
	}
	if len(verrs) > 0 {
		ce := &gpucore.CompileError{Label: src.Label}
		for _, ve := range verrs {
			ce.Diagnostics = append(ce.Diagnostics, gpucore.Diagnostic{Stage: "validate", Message: ve.Error()})
		}
		return nil, ce
	}
	return mod, nil
}

// reflectUniform records the members of a uniform struct (or a single
// scalar uniform) as parameters.
func (l *Layout) reflectUniform(mod *ir.Module, gv ir.GlobalVariable) error {
	if int(gv.Type) >= len(mod.Types) {
		return fmt.Errorf("type handle %d out of range", gv.Type)
	}
	l.HasUniform = true
	l.UniformBinding = gv.Binding.Binding

	switch inner := mod.Types[gv.Type].Inner.(type) {
	case ir.StructType:
		for _, m := range inner.Members {
			if err := checkScalar(mod, m.Type); err != nil {
				return fmt.Errorf("member %s: %w", m.Name, err)
			}
			if m.Offset%4 != 0 {
				return fmt.Errorf("member %s: offset %d is not 4-byte aligned", m.Name, m.Offset)
			}
			l.Params = append(l.Params, Param{Name: m.Name, Slot: gpucore.Slot(m.Offset / 4), Offset: m.Offset})
		}
		l.UniformSize = inner.Span
	case ir.ScalarType:
		if inner.Width != 4 {
			return fmt.Errorf("scalar width %d, want 4", inner.Width)
		}
		l.Params = append(l.Params, Param{Name: gv.Name, Slot: 0})
		l.UniformSize = 4
	default:
		return fmt.Errorf("uniform must be a struct of 32-bit scalars, got %T", inner)
	}
	return nil
}

func checkScalar(mod *ir.Module, h ir.TypeHandle) error {
	if int(h) >= len(mod.Types) {
		return fmt.Errorf("type handle %d out of range", h)
	}
	s, ok := mod.Types[h].Inner.(ir.ScalarType)
	if !ok || s.Width != 4 {
		return fmt.Errorf("parameters must be 32-bit scalars")
	}
	return nil
}

// Slot resolves a parameter by name.
func (l *Layout) Slot(name string) (gpucore.Slot, error) {
	for _, p := range l.Params {
		if p.Name == name {
			return p.Slot, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no parameter %q", gpucore.ErrUnknownParameter, l.Label, name)
}

// SlotCount returns the number of 32-bit words in the uniform buffer.
func (l *Layout) SlotCount() int {
	return int((l.UniformSize + 3) / 4)
}

// StorageAt returns the storage binding with index b.
func (l *Layout) StorageAt(b uint32) (gpucore.StorageBinding, bool) {
	for _, s := range l.Storage {
		if s.Binding == b {
			return s, true
		}
	}
	return gpucore.StorageBinding{}, false
}

// UniformBufferSize returns the uniform buffer allocation size: the struct
// size rounded up to 16 bytes.
func (l *Layout) UniformBufferSize() uint64 {
	size := uint64(l.UniformSize)
	if size == 0 {
		size = 16
	}
	return (size + 15) &^ 15
}

// PackParams encodes parameter words little-endian into a uniform buffer
// image of UniformBufferSize bytes.
func (l *Layout) PackParams(words []uint32) []byte {
	buf := make([]byte, l.UniformBufferSize())
	for i, w := range words {
		off := i * 4
		if off+4 > len(buf) {
			break
		}
		buf[off] = byte(w)
		buf[off+1] = byte(w >> 8)
		buf[off+2] = byte(w >> 16)
		buf[off+3] = byte(w >> 24)
	}
	return buf
}
