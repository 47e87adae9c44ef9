// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package computebench

import "math/rand/v2"

// PlantedIndex is where RandomDataset places its maximum.
const PlantedIndex = 9

// RandomDataset returns n values drawn uniformly from [0, bound) with the
// value bound planted at PlantedIndex (or at the last index for short
// datasets), so the maximum is known in advance. The same seed always
// produces the same dataset. bound below one is treated as one.
func RandomDataset(n int, bound int32, seed uint64) []int32 {
	if n <= 0 {
		return nil
	}
	if bound < 1 {
		bound = 1
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]int32, n)
	for i := range data {
		data[i] = rng.Int32N(bound)
	}
	data[min(PlantedIndex, n-1)] = bound
	return data
}
