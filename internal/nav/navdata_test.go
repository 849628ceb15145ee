package nav

import (
	"testing"
)

// openData builds a 2x2-chunk, 16-tile map with every tile passable.
func openData() *Data {
	res := MapResolution{ChunksW: 2, ChunksH: 2, TilesW: 16, TilesH: 16, TileSide: 1}
	var cost [NumLayers][][]uint8
	return NewData(res, Vec2{}, cost)
}

// walledData splits the map into left and right halves with a full-height
// wall at global column 16 on the ground layers, pierced at row gap (if
// gap >= 0).
func walledData(gap int) *Data {
	res := MapResolution{ChunksW: 2, ChunksH: 2, TilesW: 16, TilesH: 16, TileSide: 1}
	rows := res.ChunksH * res.TilesH
	cols := res.ChunksW * res.TilesW

	grid := make([][]uint8, rows)
	for r := range grid {
		grid[r] = make([]uint8, cols)
		for c := range grid[r] {
			grid[r][c] = 1
		}
		if r != gap {
			grid[r][16] = CostImpassable
		}
	}
	var cost [NumLayers][][]uint8
	cost[LayerGround1x1] = grid
	return NewData(res, Vec2{}, cost)
}

func TestPortalCreation(t *testing.T) {
	d := openData()
	ch := d.ChunkAt(LayerGround1x1, Coord{0, 0})
	// Fully open chunk: one portal to the right, one below.
	if len(ch.Portals) != 2 {
		t.Fatalf("open corner chunk has %d portals, want 2", len(ch.Portals))
	}
	for _, p := range ch.Portals {
		peer := d.ChunkAt(LayerGround1x1, p.PeerChunk)
		pp := peer.Portals[p.PeerIdx]
		if pp.PeerChunk != ch.Coord {
			t.Errorf("peer linkage broken: %+v", pp)
		}
		if len(p.Reachable) == 0 {
			t.Errorf("portal has empty reachability table")
		}
	}
}

func TestGlobalIslandsSplitByWall(t *testing.T) {
	d := walledData(-1) // no gap
	left := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 5, 5})
	right := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 1, 5, 5})
	if left == IslandNone || right == IslandNone {
		t.Fatal("passable tiles labelled IslandNone")
	}
	if left == right {
		t.Error("wall-separated tiles share a global island")
	}

	d = walledData(8) // pierced wall
	left = d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 5, 5})
	right = d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 1, 5, 5})
	if left != right {
		t.Error("connected tiles do not share a global island")
	}
}

func TestBlockersDirtyAndRepaint(t *testing.T) {
	d := openData()

	var dirtied []Coord
	d.SetDirtyHandler(func(co Coord, l Layer) {
		if l == LayerGround1x1 {
			dirtied = append(dirtied, co)
		}
	})

	before := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 5, 5})

	// Wall off a full row of chunk (0,0) with blockers.
	for c := 0; c < 16; c++ {
		d.BlockTiles(LayerGround1x1, Vec2{X: float64(c) + 0.5, Z: 8.5}, 0.4)
	}
	if len(dirtied) == 0 {
		t.Fatal("no dirty notification for blocker changes")
	}

	d.EnsureClean(LayerGround1x1)
	top := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 2, 5})
	if top == IslandNone {
		t.Fatal("top region lost its island")
	}
	// The region above the blocked row must still reach the rest of the
	// map around the wall through chunk (0,1).
	if top != before {
		// Both labellings are acceptable as ids are not stable, but
		// connectivity must hold: the tile right of the wall shares the
		// top's island.
		right := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 1, 8, 5})
		if right != top {
			t.Error("blocked row disconnected regions that remain connected")
		}
	}

	// Unblock and verify the labels reunify.
	for c := 0; c < 16; c++ {
		d.UnblockTiles(LayerGround1x1, Vec2{X: float64(c) + 0.5, Z: 8.5}, 0.4)
	}
	d.EnsureClean(LayerGround1x1)
	a := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 2, 5})
	b := d.GlobalIslandAt(LayerGround1x1, TileDesc{0, 0, 14, 5})
	if a != b {
		t.Error("islands did not reunify after unblock")
	}
}

func TestEnemyOnlyPassability(t *testing.T) {
	d := openData()
	ch := d.ChunkAt(LayerGround1x1, Coord{0, 0})

	d.BlockTiles(LayerGround1x1, Vec2{X: 5.5, Z: 5.5}, 0.4)
	d.OccupyTiles(LayerGround1x1, 2, Vec2{X: 5.5, Z: 5.5}, 0.4, +1)

	if ch.Passable(5, 5) {
		t.Fatal("blocked tile reported passable")
	}
	var enemies FactionMask
	enemies = enemies.With(2)
	if !ch.PassableForEnemies(5, 5, enemies) {
		t.Error("enemy-only tile not passable for enemy seek")
	}
	if ch.PassableForEnemies(5, 5, FactionMask(0).With(3)) {
		t.Error("tile held by a non-enemy faction passable for seek")
	}
}

func TestReachable(t *testing.T) {
	d := walledData(-1)
	left := Vec2{X: 5, Z: 5}
	right := Vec2{X: 26, Z: 5}
	if d.Reachable(LayerGround1x1, left, right) {
		t.Error("wall-separated points reported reachable")
	}
	if !d.Reachable(LayerGround1x1, left, Vec2{X: 10, Z: 28}) {
		t.Error("same-side points reported unreachable")
	}
	if d.Reachable(LayerGround1x1, left, Vec2{X: -5, Z: 5}) {
		t.Error("off-map point reported reachable")
	}
}

func TestRouteThroughGap(t *testing.T) {
	d := walledData(8)
	src := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 5, TileC: 5}
	dst := TileDesc{ChunkR: 0, ChunkC: 1, TileR: 5, TileC: 10}

	hops, err := d.Route(LayerGround1x1, src, dst)
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if len(hops) == 0 {
		t.Fatal("cross-chunk route returned no hops")
	}
	if hops[0].Chunk != src.Chunk() {
		t.Errorf("first hop leaves chunk %v, want %v", hops[0].Chunk, src.Chunk())
	}
}

func TestRouteNoPath(t *testing.T) {
	d := walledData(-1)
	src := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 5, TileC: 5}
	dst := TileDesc{ChunkR: 0, ChunkC: 1, TileR: 5, TileC: 10}

	if _, err := d.Route(LayerGround1x1, src, dst); err == nil {
		t.Fatal("route across a sealed wall succeeded")
	}
}

func TestRouteSameChunk(t *testing.T) {
	d := openData()
	src := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 1, TileC: 1}
	dst := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 10, TileC: 10}
	hops, err := d.Route(LayerGround1x1, src, dst)
	if err != nil || len(hops) != 0 {
		t.Errorf("same-chunk route: hops=%d err=%v, want empty nil", len(hops), err)
	}
}
