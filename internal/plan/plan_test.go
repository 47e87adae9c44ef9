// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plan

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/computebench/gpucore"
)

// =============================================================================
// Reduction grid
// =============================================================================

func TestReduceGrid(t *testing.T) {
	tests := []struct {
		name        string
		n           int
		tile        uint32
		pad         bool
		wantColumns uint32
		wantPadding int
	}{
		{"single element", 1, 2, false, 1, 0},
		{"square power", 16, 2, false, 4, 0},
		{"odd exponent", 8, 2, false, 4, 8},
		{"tile 8 of 4096", 4096, 8, false, 64, 0},
		{"tile 3 of 27", 27, 3, false, 9, 54},
		{"tile 4 of 64", 64, 4, false, 16, 192},
		{"padded 10 with 2", 10, 2, true, 4, 6},
		{"padded 100 with 3", 100, 3, true, 27, 629},
		{"padded exact", 16, 4, true, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ReduceGrid(tt.n, tt.tile, tt.pad)
			if err != nil {
				t.Fatalf("ReduceGrid(%d, %d, %v) error: %v", tt.n, tt.tile, tt.pad, err)
			}
			if g.Columns != tt.wantColumns {
				t.Errorf("Columns = %d, want %d", g.Columns, tt.wantColumns)
			}
			if g.Padding() != tt.wantPadding {
				t.Errorf("Padding() = %d, want %d", g.Padding(), tt.wantPadding)
			}
			if g.Cells() < tt.n {
				t.Errorf("Cells() = %d, smaller than %d elements", g.Cells(), tt.n)
			}
		})
	}
}

func TestReduceGridErrors(t *testing.T) {
	tests := []struct {
		name string
		n    int
		tile uint32
		pad  bool
		want error
	}{
		{"tile 3 of 8", 8, 3, false, gpucore.ErrInvalidTileFactor},
		{"tile 2 of 12", 12, 2, false, gpucore.ErrInvalidTileFactor},
		{"tile 1", 8, 1, false, gpucore.ErrInvalidTileFactor},
		{"tile 0 padded", 8, 0, true, gpucore.ErrInvalidTileFactor},
		{"empty", 0, 2, false, gpucore.ErrInvalidDataLength},
		{"negative", -4, 2, true, gpucore.ErrInvalidDataLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReduceGrid(tt.n, tt.tile, tt.pad)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReduceGrid(%d, %d, %v) = %v, want %v", tt.n, tt.tile, tt.pad, err, tt.want)
			}
		})
	}
}

// =============================================================================
// Reduction passes
// =============================================================================

func TestReducePasses(t *testing.T) {
	passes := ReducePasses(32, 8)
	want := []ReducePass{
		{Index: 0, Columns: 32, Groups: 4, Tile: 8},
		{Index: 1, Columns: 4, Groups: 1, Tile: 8},
	}
	if !slices.Equal(passes, want) {
		t.Fatalf("ReducePasses(32, 8) = %v, want %v", passes, want)
	}

	last := passes[len(passes)-1].Next()
	if !last.Done() {
		t.Errorf("state after last pass = %v, want Done", last)
	}
	if last.Columns != 1 {
		t.Errorf("terminal Columns = %d, want 1", last.Columns)
	}
}

func TestReducePassesSingleCell(t *testing.T) {
	if passes := ReducePasses(1, 2); len(passes) != 0 {
		t.Errorf("ReducePasses(1, 2) = %v, want no passes", passes)
	}
	if !FirstReducePass(1, 2).Done() {
		t.Error("FirstReducePass(1, 2).Done() = false, want true")
	}
}

func TestReducePassesPartialTile(t *testing.T) {
	// A 2x2 grid with tile 4 still needs one work group.
	passes := ReducePasses(2, 4)
	if len(passes) != 1 || passes[0].Groups != 1 {
		t.Fatalf("ReducePasses(2, 4) = %v, want one pass with one group", passes)
	}
}

func TestReducePassAtMatchesNext(t *testing.T) {
	for _, tile := range []uint32{2, 3, 4, 8} {
		columns := uint32(1)
		for i := 0; i < 5; i++ {
			columns *= tile
		}
		p := FirstReducePass(columns, tile)
		for i := 0; !p.Done(); i++ {
			if got := ReducePassAt(columns, tile, i); got != p {
				t.Errorf("tile %d: ReducePassAt(%d) = %v, want %v", tile, i, got, p)
			}
			if p.Columns%tile != 0 {
				t.Errorf("tile %d: pass %d reads %d columns, not divisible", tile, i, p.Columns)
			}
			p = p.Next()
		}
		if p.Index != 5 {
			t.Errorf("tile %d: %d passes, want 5", tile, p.Index)
		}
	}
}

// =============================================================================
// Sort stages
// =============================================================================

func TestSortStageCount(t *testing.T) {
	tests := []struct {
		logN uint32
		want int
	}{
		{0, 0},
		{1, 1},
		{3, 6},
		{10, 55},
		{21, 231},
	}
	for _, tt := range tests {
		if got := SortStageCount(tt.logN); got != tt.want {
			t.Errorf("SortStageCount(%d) = %d, want %d", tt.logN, got, tt.want)
		}
		if got := len(SortStages(tt.logN)); got != tt.want {
			t.Errorf("len(SortStages(%d)) = %d, want %d", tt.logN, got, tt.want)
		}
	}
}

func TestSortStagesOrder(t *testing.T) {
	want := []SortStage{
		{0, 0, 0},
		{1, 1, 0}, {2, 1, 1},
		{3, 2, 0}, {4, 2, 1}, {5, 2, 2},
	}
	if got := SortStages(3); !slices.Equal(got, want) {
		t.Errorf("SortStages(3) = %v, want %v", got, want)
	}
	for _, s := range want {
		if got := SortStageAt(s.Index); got != s {
			t.Errorf("SortStageAt(%d) = %v, want %v", s.Index, got, s)
		}
	}
}

func TestSortStageDistance(t *testing.T) {
	if d := (SortStage{P: 2, Q: 0}).Distance(); d != 4 {
		t.Errorf("Distance(p=2,q=0) = %d, want 4", d)
	}
	if d := (SortStage{P: 2, Q: 2}).Distance(); d != 1 {
		t.Errorf("Distance(p=2,q=2) = %d, want 1", d)
	}
}

// sortWithStages runs the full network on the CPU, one stage at a time.
func sortWithStages(data []int32) {
	logN, _ := Log2(len(data))
	for _, s := range SortStages(logN) {
		for i := range data {
			s.Compare(data, uint32(i))
		}
	}
}

func TestSortStageCompareSorts(t *testing.T) {
	data := []int32{5, 3, 8, 1, 9, 2, 7, 4}
	sortWithStages(data)
	want := []int32{1, 2, 3, 4, 5, 7, 8, 9}
	if !slices.Equal(data, want) {
		t.Errorf("sorted = %v, want %v", data, want)
	}
}

func TestSortStageCompareRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for logN := 0; logN <= 10; logN++ {
		data := make([]int32, 1<<logN)
		for i := range data {
			data[i] = rng.Int32N(50) - 25
		}
		want := slices.Clone(data)
		slices.Sort(want)

		sortWithStages(data)
		if !slices.Equal(data, want) {
			t.Fatalf("N=%d: network result not sorted: %v", len(data), data)
		}
	}
}

func TestLog2(t *testing.T) {
	for _, n := range []int{1, 2, 8, 1 << 21} {
		got, err := Log2(n)
		if err != nil {
			t.Errorf("Log2(%d) error: %v", n, err)
			continue
		}
		if 1<<got != n {
			t.Errorf("Log2(%d) = %d", n, got)
		}
	}
	for _, n := range []int{0, -2, 3, 12} {
		if _, err := Log2(n); !errors.Is(err, gpucore.ErrInvalidDataLength) {
			t.Errorf("Log2(%d) = %v, want ErrInvalidDataLength", n, err)
		}
	}
}
