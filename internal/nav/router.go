package nav

import (
	"container/heap"
	"errors"
)

// PortalHop is one step of a route through the portal graph: cross the
// given portal, leaving the FromIID local island of the portal's own chunk
// and arriving on the ToIID local island of the neighbour chunk.
type PortalHop struct {
	Chunk     Coord
	PortalIdx int
	FromIID   uint16
	ToIID     uint16
}

// ErrNoPath is returned when the portal graph admits no route between the
// source and destination.
var ErrNoPath = errors.New("nav: no path through portal graph")

type routeNode struct {
	chunk  Coord
	portal int
	iid    uint16 // local island on the near side of the portal
}

type routeItem struct {
	node  routeNode
	gcost float64
	fcost float64
	index int
}

type routePQ []*routeItem

func (pq routePQ) Len() int            { return len(pq) }
func (pq routePQ) Less(i, j int) bool  { return pq[i].fcost < pq[j].fcost }
func (pq routePQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *routePQ) Push(x interface{}) { it := x.(*routeItem); it.index = len(*pq); *pq = append(*pq, it) }
func (pq *routePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// portalTouchesIsland reports whether any tile of the portal's run lies on
// the given local island of its chunk.
func portalTouchesIsland(p *Portal, ch *Chunk, iid uint16) bool {
	found := false
	p.Tiles(func(t Coord) {
		if ch.LocalIsland(t.R, t.C) == iid {
			found = true
		}
	})
	return found
}

// Route runs A* over the portal graph and returns the hop sequence leading
// from the source tile's chunk to the destination tile's chunk. Both tiles
// are resolved to their closest pathable local island, so a destination on
// an impassable tile routes to the nearest approachable region. An empty
// hop list with a nil error means source and destination share a chunk.
func (d *Data) Route(layer Layer, src, dst TileDesc) ([]PortalHop, error) {
	d.EnsureClean(layer)

	if src.Chunk() == dst.Chunk() {
		return nil, nil
	}

	srcChunk := d.ChunkForDesc(layer, src)
	dstChunk := d.ChunkForDesc(layer, dst)
	if srcChunk == nil || dstChunk == nil {
		return nil, ErrNoPath
	}

	srcIID := d.ClosestPathableLocalIsland(layer, src)
	dstIID := d.ClosestPathableLocalIsland(layer, dst)
	if srcIID == IslandNone || dstIID == IslandNone {
		return nil, ErrNoPath
	}

	dstPos := TileCenter(d.Res, d.MapPos, dst)
	centerOf := func(co Coord, idx int) Vec2 {
		ch := d.ChunkAt(layer, co)
		return TileCenter(d.Res, d.MapPos, ch.Portals[idx].Center())
	}

	open := &routePQ{}
	heap.Init(open)
	gcosts := make(map[routeNode]float64)
	parents := make(map[routeNode]routeNode)
	hops := make(map[routeNode]PortalHop)

	// Seed with every portal of the source chunk touching the source's
	// local island.
	for i := range srcChunk.Portals {
		p := &srcChunk.Portals[i]
		if !portalTouchesIsland(p, srcChunk, srcIID) {
			continue
		}
		n := routeNode{srcChunk.Coord, i, srcIID}
		g := TileCenter(d.Res, d.MapPos, src).Sub(centerOf(n.chunk, n.portal)).Len()
		gcosts[n] = g
		heap.Push(open, &routeItem{node: n, gcost: g, fcost: g + centerOf(n.chunk, n.portal).Sub(dstPos).Len()})
	}

	for open.Len() > 0 {
		curr := heap.Pop(open).(*routeItem)
		ch := d.ChunkAt(layer, curr.node.chunk)
		p := &ch.Portals[curr.node.portal]
		peerChunk := d.ChunkAt(layer, p.PeerChunk)
		if peerChunk == nil {
			continue
		}
		peer := &peerChunk.Portals[p.PeerIdx]

		// Cross to the peer chunk on every reachable far island.
		for pair, ok := range p.Reachable {
			if !ok || pair.From != curr.node.iid {
				continue
			}

			hop := PortalHop{
				Chunk: curr.node.chunk, PortalIdx: curr.node.portal,
				FromIID: pair.From, ToIID: pair.To,
			}

			if peerChunk.Coord == dstChunk.Coord && pair.To == dstIID {
				// Reconstruct: walk parents back to a seed node.
				path := []PortalHop{hop}
				n := curr.node
				for {
					h, ok := hops[n]
					if !ok {
						break
					}
					path = append([]PortalHop{h}, path...)
					n = parents[n]
				}
				return path, nil
			}

			// Expand to every portal of the peer chunk on the arrival island.
			for qi := range peerChunk.Portals {
				if qi == p.PeerIdx {
					continue
				}
				q := &peerChunk.Portals[qi]
				if !portalTouchesIsland(q, peerChunk, pair.To) {
					continue
				}
				next := routeNode{peerChunk.Coord, qi, pair.To}
				g := curr.gcost +
					centerOf(curr.node.chunk, curr.node.portal).Sub(TileCenter(d.Res, d.MapPos, peer.Center())).Len() +
					TileCenter(d.Res, d.MapPos, peer.Center()).Sub(centerOf(next.chunk, next.portal)).Len()
				if prev, seen := gcosts[next]; seen && prev <= g {
					continue
				}
				gcosts[next] = g
				parents[next] = curr.node
				hops[next] = hop
				heap.Push(open, &routeItem{
					node: next, gcost: g,
					fcost: g + centerOf(next.chunk, next.portal).Sub(dstPos).Len(),
				})
			}
		}
	}
	return nil, ErrNoPath
}
