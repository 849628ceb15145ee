package nav

// Data owns every layer's chunk grid plus the bookkeeping needed to keep
// island labels and portal reachability lazily up to date. It is not safe
// for concurrent mutation; the movement core mutates it only on the owning
// goroutine and field builders read it through a per-tick snapshot window.
type Data struct {
	Res    MapResolution
	MapPos Vec2

	chunks [NumLayers][]*Chunk

	// dirty tracks chunks whose passability changed since the last lazy
	// repaint, per layer. localIslandsDirty flags layers needing local
	// island relabelling; global island relabelling happens amortized on
	// the next access through EnsureClean.
	dirty             [NumLayers]map[Coord]struct{}
	localIslandsDirty [NumLayers]bool
	globalDirty       [NumLayers]bool

	// onDirty, when set, is invoked once per newly-dirtied (chunk, layer)
	// so the field cache can invalidate dependent entries.
	onDirty func(Coord, Layer)
}

// NewData builds the navigation data for a map. costBase supplies the
// static terrain cost grid per layer, indexed [layer][globalR][globalC];
// a nil layer grid defaults every tile to cost 1.
func NewData(res MapResolution, mapPos Vec2, costBase [NumLayers][][]uint8) *Data {
	d := &Data{Res: res, MapPos: mapPos}
	for l := Layer(0); l < NumLayers; l++ {
		d.dirty[l] = make(map[Coord]struct{})
		d.chunks[l] = make([]*Chunk, res.ChunksW*res.ChunksH)
		for cr := 0; cr < res.ChunksH; cr++ {
			for cc := 0; cc < res.ChunksW; cc++ {
				ch := NewChunk(Coord{cr, cc}, res.TilesW, res.TilesH)
				if costBase[l] != nil {
					for r := 0; r < res.TilesH; r++ {
						for c := 0; c < res.TilesW; c++ {
							ch.CostBase[ch.idx(r, c)] = costBase[l][cr*res.TilesH+r][cc*res.TilesW+c]
						}
					}
				}
				d.chunks[l][cr*res.ChunksW+cc] = ch
			}
		}

		// Portals once per unordered chunk pair, scanning right and down.
		for cr := 0; cr < res.ChunksH; cr++ {
			for cc := 0; cc < res.ChunksW; cc++ {
				ch := d.chunks[l][cr*res.ChunksW+cc]
				if cc+1 < res.ChunksW {
					createPortals(ch, d.chunks[l][cr*res.ChunksW+cc+1], sideRight)
				}
				if cr+1 < res.ChunksH {
					createPortals(ch, d.chunks[l][(cr+1)*res.ChunksW+cc], sideBottom)
				}
			}
		}

		for _, ch := range d.chunks[l] {
			ch.repaintLocalIslands()
		}
		for _, ch := range d.chunks[l] {
			updatePortalReachability(ch, func(co Coord) *Chunk { return d.ChunkAt(l, co) })
		}
		d.repaintGlobalIslands(l)
	}
	return d
}

// SetDirtyHandler registers the callback fired when a chunk's passability
// changes. Used by the field cache for invalidation.
func (d *Data) SetDirtyHandler(fn func(Coord, Layer)) { d.onDirty = fn }

// ChunkAt returns the chunk at the coordinate, or nil when out of bounds.
func (d *Data) ChunkAt(layer Layer, co Coord) *Chunk {
	if co.R < 0 || co.R >= d.Res.ChunksH || co.C < 0 || co.C >= d.Res.ChunksW {
		return nil
	}
	return d.chunks[layer][co.R*d.Res.ChunksW+co.C]
}

// ChunkForDesc returns the chunk containing the descriptor.
func (d *Data) ChunkForDesc(layer Layer, td TileDesc) *Chunk {
	return d.ChunkAt(layer, td.Chunk())
}

// Passable reports whether the tile is traversable on the layer.
func (d *Data) Passable(layer Layer, td TileDesc) bool {
	ch := d.ChunkForDesc(layer, td)
	return ch != nil && ch.Passable(td.TileR, td.TileC)
}

func (d *Data) markDirty(layer Layer, co Coord) {
	if _, ok := d.dirty[layer][co]; ok {
		return
	}
	d.dirty[layer][co] = struct{}{}
	d.localIslandsDirty[layer] = true
	d.globalDirty[layer] = true
	if d.onDirty != nil {
		d.onDirty(co, layer)
	}
}

// BlockTiles increments the dynamic blocker refcount on every tile covered
// by the disk of the given radius, on the given layer only; other layers
// are not touched.
func (d *Data) BlockTiles(layer Layer, center Vec2, radius float64) {
	for _, td := range TilesUnderCircle(d.Res, d.MapPos, center, radius) {
		ch := d.ChunkForDesc(layer, td)
		if ch == nil {
			continue
		}
		i := ch.idx(td.TileR, td.TileC)
		ch.Blockers[i]++
		if ch.Blockers[i] == 1 {
			d.markDirty(layer, td.Chunk())
		}
	}
}

// UnblockTiles undoes a matching BlockTiles call.
func (d *Data) UnblockTiles(layer Layer, center Vec2, radius float64) {
	for _, td := range TilesUnderCircle(d.Res, d.MapPos, center, radius) {
		ch := d.ChunkForDesc(layer, td)
		if ch == nil || ch.Blockers[ch.idx(td.TileR, td.TileC)] == 0 {
			continue
		}
		i := ch.idx(td.TileR, td.TileC)
		ch.Blockers[i]--
		if ch.Blockers[i] == 0 {
			d.markDirty(layer, td.Chunk())
		}
	}
}

// OccupyTiles adjusts the per-faction occupancy counters over the disk by
// delta (+1 or -1). Occupancy does not affect islands, only the
// enemy-only passability rule, so no dirtying happens here.
func (d *Data) OccupyTiles(layer Layer, faction int, center Vec2, radius float64, delta int) {
	if faction < 0 || faction >= MaxFactions {
		return
	}
	for _, td := range TilesUnderCircle(d.Res, d.MapPos, center, radius) {
		ch := d.ChunkForDesc(layer, td)
		if ch == nil {
			continue
		}
		i := ch.idx(td.TileR, td.TileC)
		switch {
		case delta > 0 && ch.Factions[faction][i] < 255:
			ch.Factions[faction][i]++
		case delta < 0 && ch.Factions[faction][i] > 0:
			ch.Factions[faction][i]--
		}
	}
}

// EnsureClean lazily repaints local islands, portal reachability and
// global islands for the layer if any chunk was dirtied since the last
// call. Field builders call this before reading.
func (d *Data) EnsureClean(layer Layer) {
	if d.localIslandsDirty[layer] {
		for co := range d.dirty[layer] {
			ch := d.ChunkAt(layer, co)
			ch.repaintLocalIslands()
		}
		for co := range d.dirty[layer] {
			ch := d.ChunkAt(layer, co)
			updatePortalReachability(ch, func(c Coord) *Chunk { return d.ChunkAt(layer, c) })
			// Reachability tables are symmetric in dependence: the
			// neighbours of a dirty chunk reference its local islands.
			for i := range ch.Portals {
				peer := d.ChunkAt(layer, ch.Portals[i].PeerChunk)
				if peer != nil {
					updatePortalReachability(peer, func(c Coord) *Chunk { return d.ChunkAt(layer, c) })
				}
			}
		}
		d.localIslandsDirty[layer] = false
	}
	if d.globalDirty[layer] {
		d.repaintGlobalIslands(layer)
		d.globalDirty[layer] = false
		d.dirty[layer] = make(map[Coord]struct{})
	}
}

// repaintGlobalIslands relabels map-wide connected components with a
// breadth-first flood over passable tiles, crossing chunk boundaries
// (4-connected).
func (d *Data) repaintGlobalIslands(layer Layer) {
	for _, ch := range d.chunks[layer] {
		for i := range ch.Islands {
			ch.Islands[i] = IslandNone
		}
	}

	var next uint16
	type gtile struct{ r, c int }
	maxR := d.Res.ChunksH * d.Res.TilesH
	maxC := d.Res.ChunksW * d.Res.TilesW

	at := func(r, c int) (*Chunk, int) {
		ch := d.chunks[layer][(r/d.Res.TilesH)*d.Res.ChunksW+c/d.Res.TilesW]
		return ch, ch.idx(r%d.Res.TilesH, c%d.Res.TilesW)
	}

	queue := make([]gtile, 0, 1024)
	for r := 0; r < maxR; r++ {
		for c := 0; c < maxC; c++ {
			ch, i := at(r, c)
			if ch.CostBase[i] == CostImpassable || ch.Blockers[i] > 0 || ch.Islands[i] != IslandNone {
				continue
			}
			id := next
			next++

			queue = queue[:0]
			queue = append(queue, gtile{r, c})
			ch.Islands[i] = id
			for len(queue) > 0 {
				curr := queue[0]
				queue = queue[1:]
				for _, dlt := range [4]gtile{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := curr.r+dlt.r, curr.c+dlt.c
					if nr < 0 || nr >= maxR || nc < 0 || nc >= maxC {
						continue
					}
					nch, ni := at(nr, nc)
					if nch.CostBase[ni] == CostImpassable || nch.Blockers[ni] > 0 || nch.Islands[ni] != IslandNone {
						continue
					}
					nch.Islands[ni] = id
					queue = append(queue, gtile{nr, nc})
				}
			}
		}
	}
}

// GlobalIslandAt returns the global island id for the descriptor, or
// IslandNone when the tile is impassable.
func (d *Data) GlobalIslandAt(layer Layer, td TileDesc) uint16 {
	ch := d.ChunkForDesc(layer, td)
	if ch == nil {
		return IslandNone
	}
	return ch.GlobalIsland(td.TileR, td.TileC)
}

// ClosestPathableLocalIsland returns the local island id of the nearest
// passable tile to target within its chunk, searching outward in rings.
// Returns IslandNone when the whole chunk is impassable.
func (d *Data) ClosestPathableLocalIsland(layer Layer, target TileDesc) uint16 {
	ch := d.ChunkForDesc(layer, target)
	if ch == nil {
		return IslandNone
	}
	if iid := ch.LocalIsland(target.TileR, target.TileC); iid != IslandNone {
		return iid
	}
	maxRing := ch.TilesW
	if ch.TilesH > maxRing {
		maxRing = ch.TilesH
	}
	for ring := 1; ring < maxRing; ring++ {
		for r := target.TileR - ring; r <= target.TileR+ring; r++ {
			for c := target.TileC - ring; c <= target.TileC+ring; c++ {
				if r < 0 || r >= ch.TilesH || c < 0 || c >= ch.TilesW {
					continue
				}
				if r != target.TileR-ring && r != target.TileR+ring &&
					c != target.TileC-ring && c != target.TileC+ring {
					continue
				}
				if iid := ch.LocalIsland(r, c); iid != IslandNone {
					return iid
				}
			}
		}
	}
	return IslandNone
}

// Reachable reports whether a passable path exists between two world
// points on the layer, by comparing global island labels.
func (d *Data) Reachable(layer Layer, from, to Vec2) bool {
	a, ok := DescForPoint(d.Res, d.MapPos, from)
	if !ok {
		return false
	}
	b, ok := DescForPoint(d.Res, d.MapPos, to)
	if !ok {
		return false
	}
	d.EnsureClean(layer)
	ia := d.GlobalIslandAt(layer, a)
	ib := d.GlobalIslandAt(layer, b)
	return ia != IslandNone && ia == ib
}
