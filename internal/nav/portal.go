package nav

// Portal is a maximal run of mutually-passable tiles on the shared edge of
// two adjacent chunks. Portals are the nodes of the routing graph.
//
// A portal never holds a pointer to its peer; it records the peer's chunk
// coordinate and portal index and the peer is resolved through the chunk
// table on access. This keeps the graph free of reciprocal owning
// references.
type Portal struct {
	Chunk     Coord    // owning chunk
	Endpoints [2]Coord // in-chunk tiles delimiting the run, inclusive
	PeerChunk Coord
	PeerIdx   int

	// Reachable records, for every (local island adjacent to this portal,
	// local island adjacent to the peer portal in the neighbour chunk)
	// pair, whether the transition is currently usable.
	Reachable map[IslandPair]bool
}

// IslandPair keys portal reachability: the local island on the near side
// and the local island on the far side of the neighbour chunk.
type IslandPair struct {
	From, To uint16
}

// Center returns the portal's middle tile descriptor.
func (p *Portal) Center() TileDesc {
	return TileDesc{
		ChunkR: p.Chunk.R, ChunkC: p.Chunk.C,
		TileR: (p.Endpoints[0].R + p.Endpoints[1].R) / 2,
		TileC: (p.Endpoints[0].C + p.Endpoints[1].C) / 2,
	}
}

// Tiles calls fn for every tile in the portal's run.
func (p *Portal) Tiles(fn func(Coord)) {
	for r := p.Endpoints[0].R; r <= p.Endpoints[1].R; r++ {
		for c := p.Endpoints[0].C; c <= p.Endpoints[1].C; c++ {
			fn(Coord{r, c})
		}
	}
}

// side identifies which chunk edge a portal lies on.
type side int

const (
	sideTop side = iota
	sideBottom
	sideLeft
	sideRight
)

// createPortals scans the shared edge between chunk a (on the given side
// of which b lies) and emits one linked portal pair per maximal run of
// tiles passable in the base cost of both chunks. Dynamic blockers do not
// gate portal existence; they gate reachability instead.
func createPortals(a, b *Chunk, s side) {
	type edgeTile struct {
		aTile, bTile Coord
	}

	var edge []edgeTile
	switch s {
	case sideRight:
		for r := 0; r < a.TilesH; r++ {
			edge = append(edge, edgeTile{Coord{r, a.TilesW - 1}, Coord{r, 0}})
		}
	case sideBottom:
		for c := 0; c < a.TilesW; c++ {
			edge = append(edge, edgeTile{Coord{a.TilesH - 1, c}, Coord{0, c}})
		}
	default:
		// Portals are created once per unordered chunk pair, always from
		// the top-left chunk, so only right/bottom scans occur.
		return
	}

	passable := func(et edgeTile) bool {
		return a.CostBase[a.idx(et.aTile.R, et.aTile.C)] != CostImpassable &&
			b.CostBase[b.idx(et.bTile.R, et.bTile.C)] != CostImpassable
	}

	for i := 0; i < len(edge); {
		if !passable(edge[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(edge) && passable(edge[j+1]) {
			j++
		}

		aIdx := len(a.Portals)
		bIdx := len(b.Portals)
		a.Portals = append(a.Portals, Portal{
			Chunk:     a.Coord,
			Endpoints: [2]Coord{edge[i].aTile, edge[j].aTile},
			PeerChunk: b.Coord,
			PeerIdx:   bIdx,
			Reachable: make(map[IslandPair]bool),
		})
		b.Portals = append(b.Portals, Portal{
			Chunk:     b.Coord,
			Endpoints: [2]Coord{edge[i].bTile, edge[j].bTile},
			PeerChunk: a.Coord,
			PeerIdx:   aIdx,
			Reachable: make(map[IslandPair]bool),
		})
		i = j + 1
	}
}

// localIslandsAt returns the set of local island ids found on the portal's
// own tiles (blocked tiles contribute nothing).
func (p *Portal) localIslandsAt(ch *Chunk) map[uint16]struct{} {
	out := make(map[uint16]struct{}, 2)
	p.Tiles(func(t Coord) {
		if iid := ch.LocalIsland(t.R, t.C); iid != IslandNone {
			out[iid] = struct{}{}
		}
	})
	return out
}

// updatePortalReachability rebuilds the (from, to) reachability table of
// every portal in the chunk: a transition is usable when the near local
// island touches the portal run and the peer portal run touches the far
// local island.
func updatePortalReachability(ch *Chunk, peerOf func(Coord) *Chunk) {
	for i := range ch.Portals {
		p := &ch.Portals[i]
		peer := peerOf(p.PeerChunk)
		if peer == nil {
			continue
		}
		pp := &peer.Portals[p.PeerIdx]

		near := p.localIslandsAt(ch)
		far := pp.localIslandsAt(peer)

		p.Reachable = make(map[IslandPair]bool, len(near)*len(far))
		for fi := range near {
			for ti := range far {
				p.Reachable[IslandPair{fi, ti}] = true
			}
		}
	}
}
