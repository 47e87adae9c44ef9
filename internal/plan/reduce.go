// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package plan computes the pass and stage sequences of the reduction and
// sorting orchestrators.
//
// Everything here is pure arithmetic on immutable values: a pass or stage
// is derived from its index (ReducePassAt, SortStageAt) or from its
// predecessor (Next), never mutated in place.
package plan

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/computebench/gpucore"
)

// MinCell is the sentinel written into grid cells that hold no data.
// It never wins a max comparison against real data.
const MinCell = math.MinInt32

// Grid is the square layout a reduction works on.
type Grid struct {
	// Columns is the side of the square grid. Always a power of Tile.
	Columns uint32

	// Tile is the tile factor G.
	Tile uint32

	// Len is the number of data elements placed in the grid, row-major
	// from cell 0.
	Len int
}

// Cells returns Columns*Columns.
func (g Grid) Cells() int {
	return int(g.Columns) * int(g.Columns)
}

// Padding returns the number of sentinel cells after the data.
func (g Grid) Padding() int {
	return g.Cells() - g.Len
}

// ReduceGrid lays out n elements for reduction with tile factor tile.
//
// Without padding, n must be an exact power of tile (n = tile^k, k >= 0);
// the grid side is then tile^ceil(k/2), so odd k leaves the upper half of
// the grid filled with MinCell. With padding any n >= 1 is accepted and
// the side is the smallest power of tile whose square holds n.
func ReduceGrid(n int, tile uint32, pad bool) (Grid, error) {
	if n <= 0 {
		return Grid{}, fmt.Errorf("%w: reduction of %d elements", gpucore.ErrInvalidDataLength, n)
	}
	if tile < 2 {
		return Grid{}, fmt.Errorf("%w: tile factor %d, need at least 2", gpucore.ErrInvalidTileFactor, tile)
	}
	if !pad {
		if _, ok := exactLog(uint64(n), uint64(tile)); !ok {
			return Grid{}, fmt.Errorf("%w: %d elements is not a power of tile factor %d",
				gpucore.ErrInvalidTileFactor, n, tile)
		}
	}

	columns := uint64(1)
	for columns*columns < uint64(n) {
		columns *= uint64(tile)
		if columns > math.MaxUint32 {
			return Grid{}, fmt.Errorf("%w: %d elements overflow the grid", gpucore.ErrInvalidDataLength, n)
		}
	}
	return Grid{Columns: uint32(columns), Tile: tile, Len: n}, nil
}

// exactLog returns k with base^k == n.
func exactLog(n, base uint64) (uint32, bool) {
	var k uint32
	for n > 1 {
		if n%base != 0 {
			return 0, false
		}
		n /= base
		k++
	}
	return k, n == 1
}

// ReducePass is the state of one reduction pass.
// The pass reads a Columns x Columns grid and writes a Groups x Groups grid.
type ReducePass struct {
	Index   int
	Columns uint32
	Groups  uint32
	Tile    uint32
}

// FirstReducePass returns pass 0 over a grid of side columns.
func FirstReducePass(columns, tile uint32) ReducePass {
	return ReducePass{Index: 0, Columns: columns, Groups: groupsFor(columns, tile), Tile: tile}
}

// groupsFor is ceil(columns/tile), or 0 once a single cell remains.
// A trailing partial tile is covered by one more work group; the kernel
// ignores cells outside the grid.
func groupsFor(columns, tile uint32) uint32 {
	if columns <= 1 {
		return 0
	}
	return (columns + tile - 1) / tile
}

// Done reports whether the reduction has finished. The result is at cell 0.
func (p ReducePass) Done() bool {
	return p.Groups == 0
}

// Next returns the pass that consumes this pass's output.
func (p ReducePass) Next() ReducePass {
	return ReducePass{
		Index:   p.Index + 1,
		Columns: p.Groups,
		Groups:  groupsFor(p.Groups, p.Tile),
		Tile:    p.Tile,
	}
}

// WorkGroups returns the number of work groups dispatched by this pass.
func (p ReducePass) WorkGroups() uint64 {
	return uint64(p.Groups) * uint64(p.Groups)
}

// String formats the pass for logs and traces.
func (p ReducePass) String() string {
	return fmt.Sprintf("pass %d: %dx%d -> %dx%d", p.Index, p.Columns, p.Columns, p.Groups, p.Groups)
}

// ReducePassAt returns pass i over a grid of side columns.
func ReducePassAt(columns, tile uint32, i int) ReducePass {
	p := FirstReducePass(columns, tile)
	for p.Index < i {
		p = p.Next()
	}
	return p
}

// ReducePasses returns every dispatching pass, in order. The terminal
// (Done) state is not included.
func ReducePasses(columns, tile uint32) []ReducePass {
	var passes []ReducePass
	for p := FirstReducePass(columns, tile); !p.Done(); p = p.Next() {
		passes = append(passes, p)
	}
	return passes
}

// Log2 returns log2(n) for a positive power of two n.
func Log2(n int) (uint32, error) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf("%w: %d is not a power of two", gpucore.ErrInvalidDataLength, n)
	}
	return uint32(bits.TrailingZeros64(uint64(n))), nil
}
