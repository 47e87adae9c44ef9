// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package orchestrate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gogpu/computebench/gpucore"
)

// Kernel labels. Simulated devices select their software bodies by label.
const (
	ReduceMaxLabel   = "reduce_max"
	BitonicStepLabel = "bitonic_step"
)

// DefaultSortWorkgroup is the workgroup width of the sort kernel.
const DefaultSortWorkgroup = 64

//go:embed shaders/reduce_max.wgsl
var reduceMaxWGSL string

//go:embed shaders/bitonic_step.wgsl
var bitonicStepWGSL string

// ReduceMaxSource returns the tiled max-reduction kernel.
func ReduceMaxSource() gpucore.KernelSource {
	return gpucore.KernelSource{Label: ReduceMaxLabel, WGSL: reduceMaxWGSL}
}

// BitonicStepSource returns the bitonic stage kernel with the given
// workgroup width. Zero selects DefaultSortWorkgroup.
func BitonicStepSource(width uint32) gpucore.KernelSource {
	src := bitonicStepWGSL
	if width != 0 && width != DefaultSortWorkgroup {
		src = strings.Replace(src,
			fmt.Sprintf("@workgroup_size(%d, 1, 1)", DefaultSortWorkgroup),
			fmt.Sprintf("@workgroup_size(%d, 1, 1)", width), 1)
	}
	return gpucore.KernelSource{Label: BitonicStepLabel, WGSL: src}
}
