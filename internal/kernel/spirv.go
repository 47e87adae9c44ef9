// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"slices"

	"github.com/gogpu/naga"

	"github.com/gogpu/computebench/gpucore"
	"github.com/gogpu/computebench/internal/cache"
)

// spirvCacheSize bounds the compiled modules kept in memory. A runner
// compiles two kernels; the bound leaves room for several sort widths.
const spirvCacheSize = 32

var spirvCache = cache.New[string, []uint32](spirvCacheSize)

// CompileSPIRV compiles WGSL to SPIR-V words for backends that take binary
// shader modules. Results are cached by source text. Errors are reported
// as *gpucore.CompileError and are not cached.
func CompileSPIRV(src gpucore.KernelSource) ([]uint32, error) {
	words, err := spirvCache.GetOrCreate(src.WGSL, func() ([]uint32, error) {
		return compileSPIRV(src)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(words), nil
}

// SPIRVCacheStats reports hits and misses of the SPIR-V cache.
func SPIRVCacheStats() cache.Stats {
	return spirvCache.Stats()
}

func compileSPIRV(src gpucore.KernelSource) ([]uint32, error) {
	code, err := naga.Compile(src.WGSL)
	if err != nil {
		return nil, &gpucore.CompileError{
			Label:       src.Label,
			Diagnostics: []gpucore.Diagnostic{{Stage: "spirv", Message: err.Error()}},
		}
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words, nil
}
