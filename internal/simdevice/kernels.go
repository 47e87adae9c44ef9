// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package simdevice

// builtinBodies are the software counterparts of the kernels shipped in
// internal/orchestrate/shaders, keyed by kernel label.
var builtinBodies = map[string]Body{
	"reduce_max":   reduceMax,
	"bitonic_step": bitonicStep,
}

// reduceMax reduces one tile x tile block of the columns x columns input
// grid and writes the maximum to cell (x, y) of the groups x groups output.
func reduceMax(g *Group) {
	columns := g.Param("columns")
	tile := g.Param("tile")
	groups := g.Param("groups")
	src, dst := g.Buffer("src"), g.Buffer("dst")

	bx, by := g.ID[0]*tile, g.ID[1]*tile
	best := src.Load(by*columns + bx)
	for y := by; y < by+tile && y < columns; y++ {
		for x := bx; x < bx+tile && x < columns; x++ {
			best = max(best, src.Load(y*columns+x))
		}
	}
	dst.Store(g.ID[1]*groups+g.ID[0], best)
}

// bitonicStep runs one (outer, inner) comparator stage for the
// invocations of the group.
func bitonicStep(g *Group) {
	outer := g.Param("outer")
	inner := g.Param("inner")
	count := g.Param("count")
	row := g.Param("row")
	data := g.Buffer("data")
	if inner > outer {
		return
	}
	d := uint32(1) << (outer - inner)

	width := g.Size[0] * g.Size[1] * g.Size[2]
	for local := range width {
		i := g.ID[1]*row + g.ID[0]*width + local
		if i >= count || i&d != 0 {
			continue
		}
		j := i | d
		if j >= count {
			continue
		}
		ascending := (i>>outer)&2 == 0
		a, b := data.Load(i), data.Load(j)
		if (a > b) == ascending {
			data.Store(i, b)
			data.Store(j, a)
		}
	}
}
