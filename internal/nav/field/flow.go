package field

import "warfront/internal/nav"

// flowDir picks the direction of steepest descent for one cell of an
// integration field. A diagonal step is allowed only when both side
// neighbours sharing an edge with the corner tile are finite-cost, so the
// flow never slides an agent through an impassable corner. Ties prefer
// the cardinals in the order N, S, E, W, then NW, NE, SW, SE. When no
// neighbour matches the minimum (possible under crafted blocker patterns)
// the cell yields DirNone.
func flowDir(intf *IntegrationField, r, c int) Dir {
	minCost := Inf

	n := intf.At(r-1, c)
	s := intf.At(r+1, c)
	e := intf.At(r, c+1)
	w := intf.At(r, c-1)

	if n < minCost {
		minCost = n
	}
	if s < minCost {
		minCost = s
	}
	if e < minCost {
		minCost = e
	}
	if w < minCost {
		minCost = w
	}

	nw, ne, sw, se := Inf, Inf, Inf, Inf
	if n < Inf && w < Inf {
		nw = intf.At(r-1, c-1)
	}
	if n < Inf && e < Inf {
		ne = intf.At(r-1, c+1)
	}
	if s < Inf && w < Inf {
		sw = intf.At(r+1, c-1)
	}
	if s < Inf && e < Inf {
		se = intf.At(r+1, c+1)
	}
	if nw < minCost {
		minCost = nw
	}
	if ne < minCost {
		minCost = ne
	}
	if sw < minCost {
		minCost = sw
	}
	if se < minCost {
		minCost = se
	}

	switch {
	case minCost == Inf:
		return DirNone
	case n == minCost:
		return DirN
	case s == minCost:
		return DirS
	case e == minCost:
		return DirE
	case w == minCost:
		return DirW
	case nw == minCost:
		return DirNW
	case ne == minCost:
		return DirNE
	case sw == minCost:
		return DirSW
	case se == minCost:
		return DirSE
	}
	return DirNone
}

// buildFlow derives the flow field from an integration field. Target
// (cost 0) and unreached (Inf) cells keep DirNone.
func buildFlow(intf *IntegrationField) *FlowField {
	flow := NewFlowField(intf.Rdim, intf.Cdim)
	for r := 0; r < intf.Rdim; r++ {
		for c := 0; c < intf.Cdim; c++ {
			cost := intf.At(r, c)
			if cost == 0 || cost == Inf {
				continue
			}
			flow.Set(r, c, flowDir(intf, r, c))
		}
	}
	return flow
}

// fixupPortalEdges redirects the flow on a portal-target field's own run
// tiles straight across the chunk boundary, so agents step cleanly into
// the neighbour chunk instead of sliding along the edge.
func fixupPortalEdges(ch *nav.Chunk, p *nav.Portal, flow *FlowField) {
	var dir Dir
	switch {
	case p.Endpoints[0].R == 0 && p.Endpoints[1].R == 0 && p.PeerChunk.R < p.Chunk.R:
		dir = DirN
	case p.Endpoints[0].R == ch.TilesH-1 && p.PeerChunk.R > p.Chunk.R:
		dir = DirS
	case p.Endpoints[0].C == 0 && p.Endpoints[1].C == 0 && p.PeerChunk.C < p.Chunk.C:
		dir = DirW
	case p.Endpoints[0].C == ch.TilesW-1 && p.PeerChunk.C > p.Chunk.C:
		dir = DirE
	default:
		return
	}
	p.Tiles(func(t nav.Coord) {
		if ch.Passable(t.R, t.C) {
			flow.Set(t.R, t.C, dir)
		}
	})
}

// RegionFlow couples a region-built flow field with the global tile
// rectangle it covers; cell-arrival and seek fields use it to answer
// lookups by global tile coordinates.
type RegionFlow struct {
	Region Region
	Flow   *FlowField
}

// DirAtGlobal returns the flow direction at the global tile, DirNone when
// the tile is outside the region.
func (rf *RegionFlow) DirAtGlobal(gr, gc int) Dir {
	if !rf.Region.Contains(gr, gc) {
		return DirNone
	}
	return rf.Flow.At(gr-rf.Region.R0, gc-rf.Region.C0)
}

// SizeBytes returns the storage size for cache cost accounting.
func (rf *RegionFlow) SizeBytes() int64 { return rf.Flow.SizeBytes() + 32 }
