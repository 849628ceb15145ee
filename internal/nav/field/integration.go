package field

import "warfront/internal/nav"

// neighbour steps for the 4-connected relaxation. Diagonals are excluded
// during integration to keep motion quantization clean.
var card4 = [4]struct{ dr, dc int }{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// tilePassable applies the build's passability rule to one chunk tile:
// impassable base cost always blocks; dynamic blockers block unless the
// build is enemy-seeking and every occupier is hostile.
func tilePassable(ch *nav.Chunk, r, c int, enemies nav.FactionMask, seekEnemies bool) bool {
	if seekEnemies {
		return ch.PassableForEnemies(r, c, enemies)
	}
	return ch.Passable(r, c)
}

// buildIntegration runs the Dijkstra pass over one chunk. The frontier
// tiles enter at cost 0; a cell is re-relaxed only when its cost strictly
// decreases.
func buildIntegration(ch *nav.Chunk, frontier []nav.Coord, enemies nav.FactionMask, seekEnemies bool) *IntegrationField {
	intf := NewIntegrationField(ch.TilesH, ch.TilesW)
	pq := newCoordPQ(len(frontier) * 4)
	for _, t := range frontier {
		intf.Set(t.R, t.C, 0)
		pq.Push(0, t.R, t.C)
	}

	for pq.Len() > 0 {
		r, c := pq.Pop()
		curr := intf.At(r, c)
		for _, d := range card4 {
			nr, nc := r+d.dr, c+d.dc
			if nr < 0 || nr >= ch.TilesH || nc < 0 || nc >= ch.TilesW {
				continue
			}
			if !tilePassable(ch, nr, nc, enemies, seekEnemies) {
				continue
			}
			total := curr + float32(ch.Cost(nr, nc))
			if total < intf.At(nr, nc) {
				intf.Set(nr, nc, total)
				pq.Push(total, nr, nc)
			}
		}
	}
	return intf
}

// buildIntegrationNonpass is the inverse build used for impassable-island
// recovery: relaxation proceeds only through tiles that are NOT passable,
// so the resulting flow walks an agent stranded on blocked ground toward
// the passable frontier.
func buildIntegrationNonpass(ch *nav.Chunk, frontier []nav.Coord) *IntegrationField {
	intf := NewIntegrationField(ch.TilesH, ch.TilesW)
	pq := newCoordPQ(len(frontier) * 4)
	for _, t := range frontier {
		intf.Set(t.R, t.C, 0)
		pq.Push(0, t.R, t.C)
	}

	for pq.Len() > 0 {
		r, c := pq.Pop()
		curr := intf.At(r, c)
		for _, d := range card4 {
			nr, nc := r+d.dr, c+d.dc
			if nr < 0 || nr >= ch.TilesH || nc < 0 || nc >= ch.TilesW {
				continue
			}
			if ch.Passable(nr, nc) {
				continue
			}
			total := curr + 1
			if total < intf.At(nr, nc) {
				intf.Set(nr, nc, total)
				pq.Push(total, nr, nc)
			}
		}
	}
	return intf
}

// regionAccess resolves global tile coordinates to chunk tiles for
// region builds that straddle chunk boundaries.
type regionAccess struct {
	data  *nav.Data
	layer nav.Layer
}

func (ra regionAccess) chunkTile(gr, gc int) (*nav.Chunk, int, int) {
	res := ra.data.Res
	if gr < 0 || gc < 0 || gr >= res.ChunksH*res.TilesH || gc >= res.ChunksW*res.TilesW {
		return nil, 0, 0
	}
	ch := ra.data.ChunkAt(ra.layer, nav.Coord{R: gr / res.TilesH, C: gc / res.TilesW})
	return ch, gr % res.TilesH, gc % res.TilesW
}

func (ra regionAccess) passable(gr, gc int, enemies nav.FactionMask, seekEnemies bool) bool {
	ch, r, c := ra.chunkTile(gr, gc)
	return ch != nil && tilePassable(ch, r, c, enemies, seekEnemies)
}

func (ra regionAccess) cost(gr, gc int) float32 {
	ch, r, c := ra.chunkTile(gr, gc)
	if ch == nil {
		return float32(nav.CostImpassable)
	}
	return float32(ch.Cost(r, c))
}

// buildIntegrationRegion is the region form of buildIntegration: the field
// indexes are region-relative, tiles resolve through the chunk table.
func buildIntegrationRegion(ra regionAccess, rg Region, frontier []nav.Coord, enemies nav.FactionMask, seekEnemies bool) *IntegrationField {
	intf := NewIntegrationField(rg.Rdim, rg.Cdim)
	pq := newCoordPQ(len(frontier) * 4)
	for _, t := range frontier {
		intf.Set(t.R, t.C, 0)
		pq.Push(0, t.R, t.C)
	}

	for pq.Len() > 0 {
		r, c := pq.Pop()
		curr := intf.At(r, c)
		for _, d := range card4 {
			nr, nc := r+d.dr, c+d.dc
			if nr < 0 || nr >= rg.Rdim || nc < 0 || nc >= rg.Cdim {
				continue
			}
			gr, gc := rg.R0+nr, rg.C0+nc
			if !ra.passable(gr, gc, enemies, seekEnemies) {
				continue
			}
			total := curr + ra.cost(gr, gc)
			if total < intf.At(nr, nc) {
				intf.Set(nr, nc, total)
				pq.Push(total, nr, nc)
			}
		}
	}
	return intf
}

// buildIntegrationNonpassRegion is the region form of the recovery build.
func buildIntegrationNonpassRegion(ra regionAccess, rg Region, frontier []nav.Coord) *IntegrationField {
	intf := NewIntegrationField(rg.Rdim, rg.Cdim)
	pq := newCoordPQ(len(frontier) * 4)
	for _, t := range frontier {
		intf.Set(t.R, t.C, 0)
		pq.Push(0, t.R, t.C)
	}

	for pq.Len() > 0 {
		r, c := pq.Pop()
		curr := intf.At(r, c)
		for _, d := range card4 {
			nr, nc := r+d.dr, c+d.dc
			if nr < 0 || nr >= rg.Rdim || nc < 0 || nc >= rg.Cdim {
				continue
			}
			gr, gc := rg.R0+nr, rg.C0+nc
			ch, tr, tc := ra.chunkTile(gr, gc)
			if ch == nil || ch.Passable(tr, tc) {
				continue
			}
			total := curr + 1
			if total < intf.At(nr, nc) {
				intf.Set(nr, nc, total)
				pq.Push(total, nr, nc)
			}
		}
	}
	return intf
}
