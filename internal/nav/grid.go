// Package nav implements the hierarchical navigation grid: a tiled map
// partitioned into fixed-size chunks, per-layer cost/blocker/island data,
// portals between adjacent chunks, and A* routing over the portal graph.
//
// The package is the foundation the field builders and the movement core
// are built on. It owns no goroutines; all concurrency lives above it.
package nav

import "math"

// MapResolution describes the fixed tiling of a map: ChunksW x ChunksH
// chunks, each holding TilesW x TilesH tiles of TileSide world units.
// Resolution and topology never change for the lifetime of a map.
type MapResolution struct {
	ChunksW, ChunksH int
	TilesW, TilesH   int
	TileSide         float64
}

// MapWidth returns the world-space X extent of the map.
func (res MapResolution) MapWidth() float64 {
	return float64(res.ChunksW*res.TilesW) * res.TileSide
}

// MapHeight returns the world-space Z extent of the map.
func (res MapResolution) MapHeight() float64 {
	return float64(res.ChunksH*res.TilesH) * res.TileSide
}

// Coord addresses a chunk within the map or a tile within a chunk.
type Coord struct {
	R, C int
}

// TileDesc fully addresses one tile: the chunk it lives in plus the tile
// position inside that chunk.
type TileDesc struct {
	ChunkR, ChunkC int
	TileR, TileC   int
}

// Chunk returns the chunk part of the descriptor.
func (td TileDesc) Chunk() Coord { return Coord{td.ChunkR, td.ChunkC} }

// Tile returns the in-chunk tile part of the descriptor.
func (td TileDesc) Tile() Coord { return Coord{td.TileR, td.TileC} }

// GlobalR returns the tile's absolute row across the whole map.
func (td TileDesc) GlobalR(res MapResolution) int {
	return td.ChunkR*res.TilesH + td.TileR
}

// GlobalC returns the tile's absolute column across the whole map.
func (td TileDesc) GlobalC(res MapResolution) int {
	return td.ChunkC*res.TilesW + td.TileC
}

// DescForPoint returns the descriptor of the tile containing the world
// point xz. ok is false when the point lies outside the map.
func DescForPoint(res MapResolution, mapPos Vec2, xz Vec2) (TileDesc, bool) {
	dx := xz.X - mapPos.X
	dz := xz.Z - mapPos.Z
	if dx < 0 || dz < 0 || dx >= res.MapWidth() || dz >= res.MapHeight() {
		return TileDesc{}, false
	}
	gc := int(dx / res.TileSide)
	gr := int(dz / res.TileSide)
	return TileDesc{
		ChunkR: gr / res.TilesH,
		ChunkC: gc / res.TilesW,
		TileR:  gr % res.TilesH,
		TileC:  gc % res.TilesW,
	}, true
}

// Relative shifts the descriptor by (dc, dr) tile units, crossing chunk
// boundaries as needed and clamping to the map bounds. It reports whether
// the full shift was absorbed without clipping at a map edge.
func (td *TileDesc) Relative(res MapResolution, dc, dr int) bool {
	gr := td.GlobalR(res) + dr
	gc := td.GlobalC(res) + dc

	maxR := res.ChunksH*res.TilesH - 1
	maxC := res.ChunksW*res.TilesW - 1

	clipped := false
	if gr < 0 {
		gr, clipped = 0, true
	}
	if gr > maxR {
		gr, clipped = maxR, true
	}
	if gc < 0 {
		gc, clipped = 0, true
	}
	if gc > maxC {
		gc, clipped = maxC, true
	}

	td.ChunkR = gr / res.TilesH
	td.TileR = gr % res.TilesH
	td.ChunkC = gc / res.TilesW
	td.TileC = gc % res.TilesW
	return !clipped
}

// TileDist returns the signed (row, column) delta from a to b in tile units.
func TileDist(res MapResolution, a, b TileDesc) (dr, dc int) {
	dr = b.GlobalR(res) - a.GlobalR(res)
	dc = b.GlobalC(res) - a.GlobalC(res)
	return dr, dc
}

// ManhattanDist returns |dr| + |dc| between two descriptors.
func ManhattanDist(res MapResolution, a, b TileDesc) int {
	dr, dc := TileDist(res, a, b)
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// TileBounds returns the world-space box covered by the tile.
func TileBounds(res MapResolution, mapPos Vec2, td TileDesc) BoxXZ {
	return BoxXZ{
		X:      mapPos.X + float64(td.GlobalC(res))*res.TileSide,
		Z:      mapPos.Z + float64(td.GlobalR(res))*res.TileSide,
		Width:  res.TileSide,
		Height: res.TileSide,
	}
}

// TileCenter returns the world-space center of the tile.
func TileCenter(res MapResolution, mapPos Vec2, td TileDesc) Vec2 {
	return TileBounds(res, mapPos, td).Center()
}

// TilesUnderObj enumerates the descriptors of every tile intersecting the
// world-space box. Tiles outside the map are skipped.
func TilesUnderObj(res MapResolution, mapPos Vec2, box BoxXZ) []TileDesc {
	minC := int(math.Floor((box.X - mapPos.X) / res.TileSide))
	minR := int(math.Floor((box.Z - mapPos.Z) / res.TileSide))
	maxC := int(math.Floor((box.X + box.Width - mapPos.X) / res.TileSide))
	maxR := int(math.Floor((box.Z + box.Height - mapPos.Z) / res.TileSide))

	var out []TileDesc
	for r := minR; r <= maxR; r++ {
		if r < 0 || r >= res.ChunksH*res.TilesH {
			continue
		}
		for c := minC; c <= maxC; c++ {
			if c < 0 || c >= res.ChunksW*res.TilesW {
				continue
			}
			out = append(out, TileDesc{
				ChunkR: r / res.TilesH, ChunkC: c / res.TilesW,
				TileR: r % res.TilesH, TileC: c % res.TilesW,
			})
		}
	}
	return out
}

// TilesUnderCircle enumerates the descriptors of every tile whose bounds
// intersect the disk of the given radius around center.
func TilesUnderCircle(res MapResolution, mapPos Vec2, center Vec2, radius float64) []TileDesc {
	box := BoxXZ{
		X: center.X - radius, Z: center.Z - radius,
		Width: 2 * radius, Height: 2 * radius,
	}
	candidates := TilesUnderObj(res, mapPos, box)
	out := candidates[:0]
	for _, td := range candidates {
		b := TileBounds(res, mapPos, td)
		// Closest point on the tile box to the circle center.
		cx := math.Max(b.X, math.Min(center.X, b.X+b.Width))
		cz := math.Max(b.Z, math.Min(center.Z, b.Z+b.Height))
		if (Vec2{cx, cz}).Sub(center).Len() <= radius {
			out = append(out, td)
		}
	}
	return out
}

// Contour returns the one-tile ring surrounding a covered set: every tile
// that is 8-adjacent to a member of the set but is not itself a member,
// i.e. the one-tile dilation ring of a footprint.
func Contour(res MapResolution, covered []TileDesc) []TileDesc {
	in := make(map[[2]int]struct{}, len(covered))
	for _, td := range covered {
		in[[2]int{td.GlobalR(res), td.GlobalC(res)}] = struct{}{}
	}

	var out []TileDesc
	seen := make(map[[2]int]struct{})
	for _, td := range covered {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				n := td
				if !n.Relative(res, dc, dr) {
					continue
				}
				key := [2]int{n.GlobalR(res), n.GlobalC(res)}
				if _, ok := in[key]; ok {
					continue
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, n)
			}
		}
	}
	return out
}
