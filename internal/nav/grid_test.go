package nav

import (
	"testing"
)

func testRes() MapResolution {
	return MapResolution{ChunksW: 4, ChunksH: 4, TilesW: 16, TilesH: 16, TileSide: 1}
}

func TestDescForPoint(t *testing.T) {
	res := testRes()
	tests := []struct {
		name string
		pos  Vec2
		want TileDesc
		ok   bool
	}{
		{"origin", Vec2{0.5, 0.5}, TileDesc{0, 0, 0, 0}, true},
		{"mid chunk", Vec2{5.5, 5.5}, TileDesc{0, 0, 5, 5}, true},
		{"second chunk", Vec2{17.5, 3.5}, TileDesc{0, 1, 3, 1}, true},
		{"chunk boundary tile", Vec2{16.0, 16.0}, TileDesc{1, 1, 0, 0}, true},
		{"last tile", Vec2{63.9, 63.9}, TileDesc{3, 3, 15, 15}, true},
		{"off map", Vec2{64.0, 10}, TileDesc{}, false},
		{"negative", Vec2{-0.1, 10}, TileDesc{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DescForPoint(res, Vec2{}, tt.pos)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRelativeCrossesChunks(t *testing.T) {
	res := testRes()
	td := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 15, TileC: 15}
	if !td.Relative(res, 1, 1) {
		t.Fatal("in-bounds shift reported clipped")
	}
	want := TileDesc{ChunkR: 1, ChunkC: 1, TileR: 0, TileC: 0}
	if td != want {
		t.Errorf("got %+v, want %+v", td, want)
	}
}

func TestRelativeClampsAtEdges(t *testing.T) {
	res := testRes()
	td := TileDesc{ChunkR: 0, ChunkC: 0, TileR: 2, TileC: 2}
	if td.Relative(res, -5, 0) {
		t.Fatal("clipped shift reported absorbed")
	}
	if td.TileC != 0 || td.ChunkC != 0 {
		t.Errorf("not clamped to map edge: %+v", td)
	}
}

func TestTileDist(t *testing.T) {
	res := testRes()
	a := TileDesc{0, 0, 5, 5}
	b := TileDesc{1, 1, 2, 3}
	dr, dc := TileDist(res, a, b)
	if dr != 13 || dc != 14 {
		t.Errorf("got (%d,%d), want (13,14)", dr, dc)
	}
}

func TestTileBoundsRoundTrip(t *testing.T) {
	res := testRes()
	td := TileDesc{2, 3, 7, 9}
	b := TileBounds(res, Vec2{}, td)
	back, ok := DescForPoint(res, Vec2{}, b.Center())
	if !ok || back != td {
		t.Errorf("bounds center resolves to %+v, want %+v", back, td)
	}
}

func TestTilesUnderCircle(t *testing.T) {
	res := testRes()
	got := TilesUnderCircle(res, Vec2{}, Vec2{8.5, 8.5}, 0.4)
	if len(got) != 1 {
		t.Fatalf("small disk covers %d tiles, want 1", len(got))
	}
	got = TilesUnderCircle(res, Vec2{}, Vec2{8.0, 8.0}, 1.0)
	if len(got) < 4 {
		t.Errorf("corner-centered disk covers %d tiles, want >= 4", len(got))
	}
}

func TestContour(t *testing.T) {
	res := testRes()
	covered := []TileDesc{{0, 0, 5, 5}}
	ring := Contour(res, covered)
	if len(ring) != 8 {
		t.Fatalf("contour of one tile has %d tiles, want 8", len(ring))
	}
	for _, td := range ring {
		dr, dc := TileDist(res, covered[0], td)
		if dr < -1 || dr > 1 || dc < -1 || dc > 1 || (dr == 0 && dc == 0) {
			t.Errorf("contour tile %+v not adjacent", td)
		}
	}
}

func TestFieldIDRoundTrip(t *testing.T) {
	id := MakeFieldID(LayerGround1x1, Coord{3, 7}, Target{
		Kind: TargetTile,
		Tile: TileDesc{ChunkR: 3, ChunkC: 7, TileR: 42, TileC: 17},
	})
	if id.Layer() != LayerGround1x1 {
		t.Errorf("layer = %v", id.Layer())
	}
	if id.Kind() != TargetTile {
		t.Errorf("kind = %v", id.Kind())
	}
	if id.Chunk() != (Coord{3, 7}) {
		t.Errorf("chunk = %v", id.Chunk())
	}
	if id.Spec() != uint64(42)<<8|17 {
		t.Errorf("spec = %x", id.Spec())
	}
}

func TestQuatRotateTowards(t *testing.T) {
	from := DirQuat(Vec2{0, -1})
	to := DirQuat(Vec2{1, 0})
	q := from
	for i := 0; i < 10; i++ {
		q = q.RotateTowards(to, 15)
	}
	if q.AngleDeg(to) > 0.01 {
		t.Errorf("did not converge: %0.2f degrees off", q.AngleDeg(to))
	}

	step := from.RotateTowards(to, 15)
	if d := from.AngleDeg(step); d > 15.01 {
		t.Errorf("single step rotated %0.2f degrees, cap is 15", d)
	}
}
