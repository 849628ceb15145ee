package field

import (
	"testing"

	"warfront/internal/nav"
)

func openData() *nav.Data {
	res := nav.MapResolution{ChunksW: 2, ChunksH: 2, TilesW: 16, TilesH: 16, TileSide: 1}
	var cost [nav.NumLayers][][]uint8
	return nav.NewData(res, nav.Vec2{}, cost)
}

// dataWithBlob places a square obstacle in chunk (0,0) covering rows and
// columns 6..9.
func dataWithBlob() *nav.Data {
	res := nav.MapResolution{ChunksW: 2, ChunksH: 2, TilesW: 16, TilesH: 16, TileSide: 1}
	rows := res.ChunksH * res.TilesH
	cols := res.ChunksW * res.TilesW

	grid := make([][]uint8, rows)
	for r := range grid {
		grid[r] = make([]uint8, cols)
		for c := range grid[r] {
			grid[r][c] = 1
		}
	}
	for r := 6; r <= 9; r++ {
		for c := 6; c <= 9; c++ {
			grid[r][c] = nav.CostImpassable
		}
	}
	var cost [nav.NumLayers][][]uint8
	cost[nav.LayerGround1x1] = grid
	return nav.NewData(res, nav.Vec2{}, cost)
}

func buildTileFlow(t *testing.T, d *nav.Data, tile nav.TileDesc) (*FlowField, *Builder) {
	t.Helper()
	b := NewBuilder(d)
	tgt := nav.Target{Kind: nav.TargetTile, Tile: tile}
	id := nav.MakeFieldID(nav.LayerGround1x1, tile.Chunk(), tgt)
	flow := b.BuildFlowField(id, tgt)
	if flow == nil {
		t.Fatal("flow field build returned nil")
	}
	return flow, b
}

// TestIntegrationFrontierZero checks the integration invariants directly:
// zero at the target, strictly decreasing along every flow step.
func TestIntegrationFrontierZero(t *testing.T) {
	d := openData()
	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})
	intf := buildIntegration(ch, []nav.Coord{{R: 8, C: 8}}, 0, false)

	if got := intf.At(8, 8); got != 0 {
		t.Fatalf("frontier cost = %v, want 0", got)
	}
	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			if intf.At(r, c) == Inf {
				t.Errorf("open chunk cell (%d,%d) unreached", r, c)
			}
		}
	}

	flow := buildFlow(intf)
	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			dir := flow.At(r, c)
			if dir == DirNone {
				continue
			}
			dr, dc := dir.Offsets()
			if intf.At(r+dr, c+dc) >= intf.At(r, c) {
				t.Errorf("flow at (%d,%d) does not descend", r, c)
			}
		}
	}
}

// TestFlowGreedyFollowTerminates checks the flow-correctness law: greedy
// following from any finite cell reaches the target within 2x the
// integration cost.
func TestFlowGreedyFollowTerminates(t *testing.T) {
	d := dataWithBlob()
	target := nav.TileDesc{ChunkR: 0, ChunkC: 0, TileR: 14, TileC: 14}
	flow, _ := buildTileFlow(t, d, target)

	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})
	intf := buildIntegration(ch, []nav.Coord{{R: 14, C: 14}}, 0, false)

	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			start := intf.At(r, c)
			if start == Inf || start == 0 {
				continue
			}
			cr, cc := r, c
			bound := int(2*start) + 2
			arrived := false
			for step := 0; step < bound; step++ {
				dir := flow.At(cr, cc)
				if dir == DirNone {
					break
				}
				dr, dc := dir.Offsets()
				cr, cc = cr+dr, cc+dc
				if cr == 14 && cc == 14 {
					arrived = true
					break
				}
			}
			if !arrived {
				t.Fatalf("greedy follow from (%d,%d) did not reach target within %d steps", r, c, bound)
			}
		}
	}
}

// TestFlowNoDiagonalThroughCorner checks that diagonal steps never cut an
// impassable corner: both side neighbours must be finite.
func TestFlowNoDiagonalThroughCorner(t *testing.T) {
	d := dataWithBlob()
	target := nav.TileDesc{ChunkR: 0, ChunkC: 0, TileR: 2, TileC: 2}
	flow, _ := buildTileFlow(t, d, target)

	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})
	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			dir := flow.At(r, c)
			dr, dc := dir.Offsets()
			if dr == 0 || dc == 0 {
				continue // cardinal or none
			}
			if !ch.Passable(r+dr, c) || !ch.Passable(r, c+dc) {
				t.Errorf("diagonal flow at (%d,%d) cuts an impassable corner", r, c)
			}
		}
	}
}

func TestPortalFieldCrossesBoundary(t *testing.T) {
	d := openData()
	b := NewBuilder(d)
	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})

	// Find the portal to chunk (0,1).
	var portalIx = -1
	for i := range ch.Portals {
		if ch.Portals[i].PeerChunk == (nav.Coord{R: 0, C: 1}) {
			portalIx = i
		}
	}
	if portalIx < 0 {
		t.Fatal("no right portal")
	}

	p := &ch.Portals[portalIx]
	tgt := nav.Target{
		Kind:     nav.TargetPortal,
		Portal:   p,
		PortalIx: portalIx,
		PortIID:  0,
		NextIID:  0,
	}
	id := nav.MakeFieldID(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, tgt)
	flow := b.BuildFlowField(id, tgt)
	if flow == nil {
		t.Fatal("portal flow build returned nil")
	}

	// Every portal-run tile flows east across the boundary.
	bad := 0
	p.Tiles(func(tc nav.Coord) {
		if flow.At(tc.R, tc.C) != DirE {
			bad++
		}
	})
	if bad > 0 {
		t.Errorf("%d portal tiles do not flow across the boundary", bad)
	}
}

func TestPortalMaskField(t *testing.T) {
	d := openData()
	b := NewBuilder(d)
	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})

	// Target every portal of the chunk at once: any cell's flow must
	// descend toward some portal tile.
	tgt := nav.Target{Kind: nav.TargetPortalMask, PortalMask: ^uint64(0)}
	id := nav.MakeFieldID(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, tgt)
	flow := b.BuildFlowField(id, tgt)
	if flow == nil {
		t.Fatal("portal mask build returned nil")
	}

	onPortal := func(r, c int) bool {
		for i := range ch.Portals {
			found := false
			ch.Portals[i].Tiles(func(tc nav.Coord) {
				if tc.R == r && tc.C == c {
					found = true
				}
			})
			if found {
				return true
			}
		}
		return false
	}

	// Greedy-follow from the far corner terminates on a portal tile.
	r, c := 2, 2
	for step := 0; step < 64; step++ {
		if onPortal(r, c) {
			return
		}
		dir := flow.At(r, c)
		if dir == DirNone {
			break
		}
		dr, dc := dir.Offsets()
		r, c = r+dr, c+dc
	}
	if !onPortal(r, c) {
		t.Errorf("follow ended at (%d,%d), not on a portal", r, c)
	}
}

func TestLOSAdjacentChunkInheritsEdge(t *testing.T) {
	d := openData()
	b := NewBuilder(d)
	target := nav.TileDesc{ChunkR: 0, ChunkC: 0, TileR: 8, TileC: 8}

	prev := b.BuildLOS(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, target, nil, nav.Coord{})
	if prev == nil {
		t.Fatal("target chunk LOS build returned nil")
	}
	next := b.BuildLOS(nav.LayerGround1x1, nav.Coord{R: 0, C: 1}, target, prev, nav.Coord{R: 0, C: 0})
	if next == nil {
		t.Fatal("adjacent chunk LOS build returned nil")
	}

	// Open map: visibility floods through the shared edge into the whole
	// neighbour chunk.
	for r := 0; r < 16; r++ {
		if !next.Visible(r, 0) {
			t.Fatalf("edge tile (%d,0) did not inherit visibility", r)
		}
	}
	if !next.Visible(8, 10) {
		t.Error("interior of the adjacent chunk not visible on an open map")
	}
}

func TestLOSOpenChunkFullyVisible(t *testing.T) {
	d := openData()
	b := NewBuilder(d)
	target := nav.TileDesc{ChunkR: 0, ChunkC: 0, TileR: 8, TileC: 8}
	los := b.BuildLOS(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, target, nil, nav.Coord{})
	if los == nil {
		t.Fatal("LOS build returned nil")
	}
	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			if !los.Visible(r, c) {
				t.Fatalf("open chunk tile (%d,%d) not visible", r, c)
			}
		}
	}
}

func TestLOSWallCastsShadow(t *testing.T) {
	d := dataWithBlob()
	b := NewBuilder(d)
	target := nav.TileDesc{ChunkR: 0, ChunkC: 0, TileR: 2, TileC: 8}
	los := b.BuildLOS(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, target, nil, nav.Coord{})
	if los == nil {
		t.Fatal("LOS build returned nil")
	}

	if !los.Visible(2, 8) {
		t.Error("target tile not visible")
	}
	// The blob spans rows 6..9; a tile well behind it in line with the
	// target must be shadowed.
	if los.Visible(14, 8) {
		t.Error("tile directly behind the obstacle is visible")
	}
}

func TestNearestPathableRecovery(t *testing.T) {
	d := dataWithBlob()
	b := NewBuilder(d)
	flow := b.BuildToNearestPathable(nav.LayerGround1x1, nav.Coord{R: 0, C: 0}, nav.Coord{R: 7, C: 7})
	if flow == nil {
		t.Fatal("recovery build returned nil")
	}

	// Following the recovery flow from inside the blob must leave it.
	r, c := 7, 7
	ch := d.ChunkAt(nav.LayerGround1x1, nav.Coord{R: 0, C: 0})
	for step := 0; step < 10; step++ {
		if ch.Passable(r, c) {
			return
		}
		dir := flow.At(r, c)
		if dir == DirNone {
			break
		}
		dr, dc := dir.Offsets()
		r, c = r+dr, c+dc
	}
	if !ch.Passable(r, c) {
		t.Errorf("recovery flow left agent on impassable (%d,%d)", r, c)
	}
}

func TestCellArrivalField(t *testing.T) {
	d := openData()
	b := NewBuilder(d)

	cell := nav.TileDesc{ChunkR: 0, ChunkC: 1, TileR: 4, TileC: 4}
	rf := b.BuildCellArrival(nav.LayerGround1x1, nav.Vec2{X: 16, Z: 8}, cell, 24, 24)
	if rf == nil {
		t.Fatal("cell arrival build returned nil")
	}

	res := d.Res
	gr, gc := cell.GlobalR(res), cell.GlobalC(res)
	if !rf.Region.Contains(gr, gc) {
		t.Fatal("region excludes the cell tile")
	}
	if rf.DirAtGlobal(gr, gc) != DirNone {
		t.Error("target cell has a flow direction")
	}

	// A tile in the neighbouring chunk within the region flows somewhere.
	if rf.DirAtGlobal(gr, gc-6) == DirNone {
		t.Error("region tile across the chunk boundary has no flow")
	}
}
