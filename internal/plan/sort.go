// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plan

import "fmt"

// SortStage is one (p, q) step of the bitonic network, 0 <= Q <= P.
// Each stage is exactly one dispatch over the whole array.
type SortStage struct {
	Index int
	P     uint32
	Q     uint32
}

// FirstSortStage returns stage (0, 0).
func FirstSortStage() SortStage {
	return SortStage{}
}

// SortStageAt returns the stage with the given index, enumerating p
// outer and q inner.
func SortStageAt(i int) SortStage {
	// Stages for p start at p(p+1)/2.
	p := 0
	for (p+1)*(p+2)/2 <= i {
		p++
	}
	return SortStage{Index: i, P: uint32(p), Q: uint32(i - p*(p+1)/2)}
}

// Next returns the following stage.
func (s SortStage) Next() SortStage {
	if s.Q < s.P {
		return SortStage{Index: s.Index + 1, P: s.P, Q: s.Q + 1}
	}
	return SortStage{Index: s.Index + 1, P: s.P + 1, Q: 0}
}

// Distance returns the comparator distance d = 1 << (P - Q).
func (s SortStage) Distance() uint32 {
	return 1 << (s.P - s.Q)
}

// String formats the stage for logs and traces.
func (s SortStage) String() string {
	return fmt.Sprintf("stage %d: p=%d q=%d d=%d", s.Index, s.P, s.Q, s.Distance())
}

// SortStageCount returns logN*(logN+1)/2, the number of dispatches needed
// to sort 1<<logN elements.
func SortStageCount(logN uint32) int {
	return int(logN) * (int(logN) + 1) / 2
}

// SortStages returns every stage for 1<<logN elements, in order.
func SortStages(logN uint32) []SortStage {
	n := SortStageCount(logN)
	stages := make([]SortStage, 0, n)
	for s := FirstSortStage(); s.Index < n; s = s.Next() {
		stages = append(stages, s)
	}
	return stages
}

// Compare applies the comparator of stage s at index i to data, in place.
// It is the software form of one work item of the sort kernel.
func (s SortStage) Compare(data []int32, i uint32) {
	d := s.Distance()
	if i&d != 0 {
		return
	}
	j := i | d
	if int(j) >= len(data) {
		return
	}
	ascending := (i>>s.P)&2 == 0
	if (data[i] > data[j]) == ascending {
		data[i], data[j] = data[j], data[i]
	}
}
