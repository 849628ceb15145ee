package field

import (
	"warfront/internal/nav"
)

// Builder constructs fields against the navigation data. The unit query
// is swapped in once per tick by the movement core so enemy- and
// entity-seek builds read a stable snapshot.
type Builder struct {
	Data  *nav.Data
	units nav.UnitQuery
}

// NewBuilder returns a builder over the navigation data.
func NewBuilder(data *nav.Data) *Builder {
	return &Builder{Data: data}
}

// SetUnitQuery installs the per-tick gamestate snapshot.
func (b *Builder) SetUnitQuery(q nav.UnitQuery) { b.units = q }

// BuildFlowField constructs the chunk-resolution flow field for the
// target identified by id. Returns nil when the chunk has no reachable
// target (the caller treats a missing field as "no flow direction").
func (b *Builder) BuildFlowField(id nav.FieldID, tgt nav.Target) *FlowField {
	layer := id.Layer()
	chunk := id.Chunk()
	b.Data.EnsureClean(layer)
	ch := b.Data.ChunkAt(layer, chunk)
	if ch == nil {
		return nil
	}

	switch tgt.Kind {
	case nav.TargetTile:
		frontier := b.tileFrontier(ch, tgt.Tile.Tile())
		intf := buildIntegration(ch, frontier, 0, false)
		return buildFlow(intf)

	case nav.TargetPortal:
		frontier := b.portalFrontier(layer, ch, tgt.PortalIx, tgt.NextIID)
		if len(frontier) == 0 {
			return nil
		}
		intf := buildIntegration(ch, frontier, 0, false)
		flow := buildFlow(intf)
		fixupPortalEdges(ch, &ch.Portals[tgt.PortalIx], flow)
		return flow

	case nav.TargetPortalMask:
		var frontier []nav.Coord
		for i := range ch.Portals {
			if tgt.PortalMask&(1<<uint(i)) == 0 {
				continue
			}
			p := &ch.Portals[i]
			p.Tiles(func(t nav.Coord) {
				if ch.Passable(t.R, t.C) {
					frontier = append(frontier, t)
				}
			})
		}
		if len(frontier) == 0 {
			return nil
		}
		intf := buildIntegration(ch, frontier, 0, false)
		return buildFlow(intf)

	case nav.TargetEnemies:
		return b.buildSeekFlow(layer, chunk, tgt, true)

	case nav.TargetEntity:
		return b.buildSeekFlow(layer, chunk, tgt, false)
	}
	return nil
}

// tileFrontier returns the initial frontier for a tile target: the tile
// itself when passable, otherwise the nearest ring of passable tiles
// around it, so fields toward blocked destinations pull agents as close
// as the terrain allows.
func (b *Builder) tileFrontier(ch *nav.Chunk, tile nav.Coord) []nav.Coord {
	if tile.R < 0 || tile.R >= ch.TilesH || tile.C < 0 || tile.C >= ch.TilesW {
		return nil
	}
	if ch.Passable(tile.R, tile.C) {
		return []nav.Coord{tile}
	}

	maxRing := ch.TilesW
	if ch.TilesH > maxRing {
		maxRing = ch.TilesH
	}
	for ring := 1; ring < maxRing; ring++ {
		var out []nav.Coord
		for r := tile.R - ring; r <= tile.R+ring; r++ {
			for c := tile.C - ring; c <= tile.C+ring; c++ {
				if r < 0 || r >= ch.TilesH || c < 0 || c >= ch.TilesW {
					continue
				}
				if r != tile.R-ring && r != tile.R+ring && c != tile.C-ring && c != tile.C+ring {
					continue
				}
				if ch.Passable(r, c) {
					out = append(out, nav.Coord{R: r, C: c})
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// portalFrontier returns the tiles of the portal's run from which the
// nextIID local island of the neighbour chunk is directly adjacent.
func (b *Builder) portalFrontier(layer nav.Layer, ch *nav.Chunk, portalIx int, nextIID uint16) []nav.Coord {
	if portalIx < 0 || portalIx >= len(ch.Portals) {
		return nil
	}
	p := &ch.Portals[portalIx]
	peer := b.Data.ChunkAt(layer, p.PeerChunk)
	if peer == nil {
		return nil
	}
	pp := &peer.Portals[p.PeerIdx]

	// The two runs are parallel and equal length; pair tiles positionally.
	var own, theirs []nav.Coord
	p.Tiles(func(t nav.Coord) { own = append(own, t) })
	pp.Tiles(func(t nav.Coord) { theirs = append(theirs, t) })
	if len(own) != len(theirs) {
		return nil
	}

	var out []nav.Coord
	for i := range own {
		if !ch.Passable(own[i].R, own[i].C) {
			continue
		}
		if peer.LocalIsland(theirs[i].R, theirs[i].C) == nextIID {
			out = append(out, own[i])
		}
	}
	return out
}

// regionWorldBox returns the world-space rectangle covered by a region.
func (b *Builder) regionWorldBox(rg Region) nav.BoxXZ {
	res := b.Data.Res
	return nav.BoxXZ{
		X:      b.Data.MapPos.X + float64(rg.C0)*res.TileSide,
		Z:      b.Data.MapPos.Z + float64(rg.R0)*res.TileSide,
		Width:  float64(rg.Cdim) * res.TileSide,
		Height: float64(rg.Rdim) * res.TileSide,
	}
}

// buildSeekFlow builds an enemy- or entity-seek field. Integration runs
// over a region twice the chunk size (half-chunk padding on every side)
// so units just past the chunk edge still pull agents; the center
// chunk-sized window is extracted as the final flow field.
func (b *Builder) buildSeekFlow(layer nav.Layer, chunk nav.Coord, tgt nav.Target, seekEnemies bool) *FlowField {
	res := b.Data.Res
	ch := b.Data.ChunkAt(layer, chunk)
	if ch == nil || b.units == nil {
		return nil
	}

	centerR := chunk.R*res.TilesH + res.TilesH/2
	centerC := chunk.C*res.TilesW + res.TilesW/2
	rg := ClampedRegion(res, centerR, centerC, res.TilesH*2, res.TilesW*2)

	var enemies nav.FactionMask
	if seekEnemies {
		enemies = b.units.Enemies(tgt.Faction)
	}

	frontier := b.seekFrontier(rg, tgt, enemies, seekEnemies)
	if len(frontier) == 0 {
		return nil
	}

	ra := regionAccess{data: b.Data, layer: layer}
	intf := buildIntegrationRegion(ra, rg, frontier, enemies, seekEnemies)
	full := buildFlow(intf)

	// Extract the chunk's window out of the padded region.
	out := NewFlowField(res.TilesH, res.TilesW)
	baseR := chunk.R*res.TilesH - rg.R0
	baseC := chunk.C*res.TilesW - rg.C0
	for r := 0; r < res.TilesH; r++ {
		for c := 0; c < res.TilesW; c++ {
			out.Set(r, c, full.At(baseR+r, baseC+c))
		}
	}
	return out
}

// seekFrontier collects the region tiles covered by the sought units:
// every visible, living enemy of the faction for enemy-seek, or the one
// tracked entity for entity-seek.
func (b *Builder) seekFrontier(rg Region, tgt nav.Target, enemies nav.FactionMask, seekEnemies bool) []nav.Coord {
	res := b.Data.Res
	var out []nav.Coord
	seen := make(map[nav.Coord]struct{})

	add := func(u nav.UnitRef) {
		for _, td := range nav.TilesUnderCircle(res, b.Data.MapPos, u.Pos, u.Radius) {
			gr, gc := td.GlobalR(res), td.GlobalC(res)
			if !rg.Contains(gr, gc) {
				continue
			}
			co := nav.Coord{R: gr - rg.R0, C: gc - rg.C0}
			if _, dup := seen[co]; dup {
				continue
			}
			seen[co] = struct{}{}
			out = append(out, co)
		}
	}

	for _, u := range b.units.EntsInRect(b.regionWorldBox(rg)) {
		if u.Dying {
			continue
		}
		if seekEnemies {
			if !enemies.Has(u.Faction) || !b.units.Visible(tgt.Faction, u.Pos) {
				continue
			}
		} else if u.UID != tgt.EntityUID {
			continue
		}
		add(u)
	}
	return out
}

// BuildCellArrival constructs the arrival flow for one formation cell: a
// region of rdim x cdim tiles centered on the formation center, with the
// cell tile as the sole target. The region may straddle chunks.
func (b *Builder) BuildCellArrival(layer nav.Layer, center nav.Vec2, cellTile nav.TileDesc, rdim, cdim int) *RegionFlow {
	res := b.Data.Res
	b.Data.EnsureClean(layer)

	centerTD, ok := nav.DescForPoint(res, b.Data.MapPos, center)
	if !ok {
		return nil
	}
	rg := ClampedRegion(res, centerTD.GlobalR(res), centerTD.GlobalC(res), rdim, cdim)

	gr, gc := cellTile.GlobalR(res), cellTile.GlobalC(res)
	if !rg.Contains(gr, gc) {
		return nil
	}

	ra := regionAccess{data: b.Data, layer: layer}
	frontier := []nav.Coord{{R: gr - rg.R0, C: gc - rg.C0}}
	intf := buildIntegrationRegion(ra, rg, frontier, 0, false)
	return &RegionFlow{Region: rg, Flow: buildFlow(intf)}
}

// BuildToNearestPathable constructs the recovery flow for an agent pushed
// onto an impassable tile: the frontier is the set of passable tiles
// bounding the impassable component containing start, and flow runs over
// the blocked tiles toward that frontier.
func (b *Builder) BuildToNearestPathable(layer nav.Layer, chunk nav.Coord, start nav.Coord) *FlowField {
	b.Data.EnsureClean(layer)
	ch := b.Data.ChunkAt(layer, chunk)
	if ch == nil || ch.Passable(start.R, start.C) {
		return nil
	}

	frontier := passableFrontier(ch, start)
	if len(frontier) == 0 {
		return nil
	}
	intf := buildIntegrationNonpass(ch, frontier)
	// Boundary tiles entered at cost 0; the flow over blocked tiles
	// descends toward them.
	return buildFlow(intf)
}

// BuildCellArrivalToNearestPathable is the region form of the recovery
// build, matching a formation's arrival field footprint.
func (b *Builder) BuildCellArrivalToNearestPathable(layer nav.Layer, center nav.Vec2, start nav.TileDesc, rdim, cdim int) *RegionFlow {
	res := b.Data.Res
	b.Data.EnsureClean(layer)

	centerTD, ok := nav.DescForPoint(res, b.Data.MapPos, center)
	if !ok {
		return nil
	}
	rg := ClampedRegion(res, centerTD.GlobalR(res), centerTD.GlobalC(res), rdim, cdim)

	gr, gc := start.GlobalR(res), start.GlobalC(res)
	if !rg.Contains(gr, gc) {
		return nil
	}

	ra := regionAccess{data: b.Data, layer: layer}
	frontier := passableFrontierRegion(ra, rg, nav.Coord{R: gr - rg.R0, C: gc - rg.C0})
	if len(frontier) == 0 {
		return nil
	}
	intf := buildIntegrationNonpassRegion(ra, rg, frontier)
	return &RegionFlow{Region: rg, Flow: buildFlow(intf)}
}

// passableFrontier floods the impassable component containing start and
// returns the passable tiles 4-adjacent to it.
func passableFrontier(ch *nav.Chunk, start nav.Coord) []nav.Coord {
	seen := make([]bool, ch.TilesH*ch.TilesW)
	var frontier []nav.Coord
	frontierSeen := make(map[nav.Coord]struct{})

	queue := []nav.Coord{start}
	seen[start.R*ch.TilesW+start.C] = true
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, d := range card4 {
			nr, nc := curr.R+d.dr, curr.C+d.dc
			if nr < 0 || nr >= ch.TilesH || nc < 0 || nc >= ch.TilesW {
				continue
			}
			if ch.Passable(nr, nc) {
				co := nav.Coord{R: nr, C: nc}
				if _, dup := frontierSeen[co]; !dup {
					frontierSeen[co] = struct{}{}
					frontier = append(frontier, co)
				}
				continue
			}
			if seen[nr*ch.TilesW+nc] {
				continue
			}
			seen[nr*ch.TilesW+nc] = true
			queue = append(queue, nav.Coord{R: nr, C: nc})
		}
	}
	return frontier
}

// passableFrontierRegion is the region form of passableFrontier;
// coordinates are region-relative.
func passableFrontierRegion(ra regionAccess, rg Region, start nav.Coord) []nav.Coord {
	seen := make([]bool, rg.Rdim*rg.Cdim)
	var frontier []nav.Coord
	frontierSeen := make(map[nav.Coord]struct{})

	passable := func(r, c int) bool {
		ch, tr, tc := ra.chunkTile(rg.R0+r, rg.C0+c)
		return ch != nil && ch.Passable(tr, tc)
	}
	if passable(start.R, start.C) {
		return nil
	}

	queue := []nav.Coord{start}
	seen[start.R*rg.Cdim+start.C] = true
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, d := range card4 {
			nr, nc := curr.R+d.dr, curr.C+d.dc
			if nr < 0 || nr >= rg.Rdim || nc < 0 || nc >= rg.Cdim {
				continue
			}
			if passable(nr, nc) {
				co := nav.Coord{R: nr, C: nc}
				if _, dup := frontierSeen[co]; !dup {
					frontierSeen[co] = struct{}{}
					frontier = append(frontier, co)
				}
				continue
			}
			if seen[nr*rg.Cdim+nc] {
				continue
			}
			seen[nr*rg.Cdim+nc] = true
			queue = append(queue, nav.Coord{R: nr, C: nc})
		}
	}
	return frontier
}
