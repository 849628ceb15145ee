package field

import (
	"math"

	"warfront/internal/nav"
)

// losBlocked reports whether a tile blocks line of sight: any base cost
// above 1 or any dynamic blocker occludes.
func losBlocked(ch *nav.Chunk, r, c int) bool {
	return ch.Cost(r, c) > 1 || ch.BlockerCount(r, c) > 0
}

// isLOSCorner detects tiles where passability differs across one axis:
// the tip of an obstacle that casts a shadow line.
func isLOSCorner(ch *nav.Chunk, r, c int) bool {
	if r > 0 && r < ch.TilesH-1 {
		if losBlocked(ch, r-1, c) != losBlocked(ch, r+1, c) {
			return true
		}
	}
	if c > 0 && c < ch.TilesW-1 {
		if losBlocked(ch, r, c-1) != losBlocked(ch, r, c+1) {
			return true
		}
	}
	return false
}

// castWavefrontLine draws a Bresenham line from the corner tile away from
// the target, marking every traversed cell wavefront-blocked, until the
// line leaves the chunk. Slopes are computed from world-space tile centers
// so lines stay consistent across chunk-straddling builds.
func castWavefrontLine(res nav.MapResolution, mapPos nav.Vec2, target nav.TileDesc, chunk nav.Coord, corner nav.Coord, los *LOSField) {
	targetC := nav.TileCenter(res, mapPos, target)
	cornerC := nav.TileCenter(res, mapPos, nav.TileDesc{
		ChunkR: chunk.R, ChunkC: chunk.C, TileR: corner.R, TileC: corner.C,
	})

	slope := cornerC.Sub(targetC).Norm()
	if slope.Len() < nav.Epsilon {
		return
	}

	dx := int(math.Abs(slope.X * 1000))
	dz := -int(math.Abs(slope.Z * 1000))
	sx := 1
	if slope.X < 0 {
		sx = -1
	}
	sz := 1
	if slope.Z < 0 {
		sz = -1
	}
	err := dx + dz

	r, c := corner.R, corner.C
	for r >= 0 && r < los.Rdim && c >= 0 && c < los.Cdim {
		los.SetWavefrontBlocked(r, c)
		e2 := 2 * err
		if e2 >= dz {
			err += dz
			c += sx
		}
		if e2 <= dx {
			err += dx
			r += sz
		}
	}
}

// padWavefront clears visibility in the one-tile neighbourhood of every
// wavefront-blocked cell, so an agent standing on a visible tile can
// raycast the target without clipping impassable terrain.
func padWavefront(los *LOSField) {
	for r := 0; r < los.Rdim; r++ {
		for c := 0; c < los.Cdim; c++ {
			if !los.WavefrontBlocked(r, c) {
				continue
			}
			for rr := r - 1; rr <= r+1; rr++ {
				for cc := c - 1; cc <= c+1; cc++ {
					if rr < 0 || rr >= los.Rdim || cc < 0 || cc >= los.Cdim {
						continue
					}
					los.SetVisible(rr, cc, false)
				}
			}
		}
	}
}

// BuildLOS constructs the line-of-sight field of a chunk for a tile
// target. For the chunk containing the target, propagation starts at the
// target tile; for adjacent chunks, prev supplies the previously-built
// neighbour field whose shared edge seeds this build. prevChunk gives the
// neighbour's coordinate.
func (b *Builder) BuildLOS(layer nav.Layer, chunk nav.Coord, target nav.TileDesc, prev *LOSField, prevChunk nav.Coord) *LOSField {
	b.Data.EnsureClean(layer)
	ch := b.Data.ChunkAt(layer, chunk)
	if ch == nil {
		return nil
	}
	los := NewLOSField(ch.TilesH, ch.TilesW)

	type qitem struct{ r, c int }
	var queue []qitem
	seen := make([]bool, ch.TilesH*ch.TilesW)
	enqueue := func(r, c int) {
		if seen[r*ch.TilesW+c] {
			return
		}
		seen[r*ch.TilesW+c] = true
		queue = append(queue, qitem{r, c})
	}

	if target.Chunk() == (nav.Coord{R: chunk.R, C: chunk.C}) {
		los.SetVisible(target.TileR, target.TileC, true)
		enqueue(target.TileR, target.TileC)
	} else if prev != nil {
		// Inherit flags along the shared edge of the neighbour's field.
		seedEdge(ch, chunk, prevChunk, prev, los, enqueue)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, d := range card4 {
			nr, nc := curr.r+d.dr, curr.c+d.dc
			if nr < 0 || nr >= ch.TilesH || nc < 0 || nc >= ch.TilesW {
				continue
			}
			if seen[nr*ch.TilesW+nc] {
				continue
			}
			if losBlocked(ch, nr, nc) {
				if isLOSCorner(ch, nr, nc) {
					castWavefrontLine(b.Data.Res, b.Data.MapPos, target, chunk, nav.Coord{R: nr, C: nc}, los)
				}
				continue
			}
			if los.WavefrontBlocked(nr, nc) {
				continue
			}
			los.SetVisible(nr, nc, true)
			enqueue(nr, nc)
		}
	}

	padWavefront(los)
	return los
}

// seedEdge copies the visible/wavefront bits of the previously built
// neighbour field's touching edge into this chunk's field and enqueues the
// visible seeds.
func seedEdge(ch *nav.Chunk, chunk, prevChunk nav.Coord, prev *LOSField, los *LOSField, enqueue func(r, c int)) {
	switch {
	case prevChunk.R == chunk.R-1: // neighbour above: its bottom row -> our top row
		for c := 0; c < ch.TilesW; c++ {
			copyEdgeCell(prev, prev.Rdim-1, c, los, 0, c, ch, enqueue)
		}
	case prevChunk.R == chunk.R+1: // neighbour below
		for c := 0; c < ch.TilesW; c++ {
			copyEdgeCell(prev, 0, c, los, ch.TilesH-1, c, ch, enqueue)
		}
	case prevChunk.C == chunk.C-1: // neighbour to the left
		for r := 0; r < ch.TilesH; r++ {
			copyEdgeCell(prev, r, prev.Cdim-1, los, r, 0, ch, enqueue)
		}
	case prevChunk.C == chunk.C+1: // neighbour to the right
		for r := 0; r < ch.TilesH; r++ {
			copyEdgeCell(prev, r, 0, los, r, ch.TilesW-1, ch, enqueue)
		}
	}
}

func copyEdgeCell(prev *LOSField, pr, pc int, los *LOSField, r, c int, ch *nav.Chunk, enqueue func(r, c int)) {
	if prev.WavefrontBlocked(pr, pc) {
		los.SetWavefrontBlocked(r, c)
		return
	}
	if prev.Visible(pr, pc) && !losBlocked(ch, r, c) {
		los.SetVisible(r, c, true)
		enqueue(r, c)
	}
}
