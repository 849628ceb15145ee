package maploader

import (
	"strings"
	"testing"

	"warfront/internal/nav"
)

func TestParseMinimal(t *testing.T) {
	data, err := Parse([]byte(`
name: test
chunks_w: 2
chunks_h: 2
tiles_w: 8
tiles_h: 8
tile_side: 2.0
`))
	if err != nil {
		t.Fatal(err)
	}
	if data.Res.ChunksW != 2 || data.Res.TilesW != 8 || data.Res.TileSide != 2.0 {
		t.Errorf("resolution %+v", data.Res)
	}
	if !data.Passable(nav.LayerGround1x1, nav.TileDesc{ChunkR: 1, ChunkC: 1, TileR: 3, TileC: 3}) {
		t.Error("default terrain not passable")
	}
}

func TestParseTerrain(t *testing.T) {
	rows := make([]string, 16)
	for r := range rows {
		rows[r] = strings.Repeat(".", 16)
	}
	rows[4] = "....####........"
	rows[8] = "~~~~............"

	mf := &MapFile{
		Name:    "terrain",
		ChunksW: 2, ChunksH: 2,
		TilesW: 8, TilesH: 8,
		TileSide: 1,
		Terrain:  rows,
	}
	data, err := Build(mf)
	if err != nil {
		t.Fatal(err)
	}

	if data.Passable(nav.LayerGround1x1, nav.TileDesc{TileR: 4, TileC: 5}) {
		t.Error("wall tile passable on ground layer")
	}
	if data.Passable(nav.LayerGround1x1, nav.TileDesc{ChunkR: 1, TileR: 0, TileC: 2}) {
		t.Error("water tile passable on ground layer")
	}
	if !data.Passable(nav.LayerWater, nav.TileDesc{ChunkR: 1, ChunkC: 0, TileR: 0, TileC: 2}) {
		t.Error("water tile not passable on water layer")
	}
	if data.Passable(nav.LayerWater, nav.TileDesc{TileR: 2, TileC: 2}) {
		t.Error("dry tile passable on water layer")
	}
	if !data.Passable(nav.LayerAir, nav.TileDesc{TileR: 4, TileC: 5}) {
		t.Error("air layer blocked by ground wall")
	}

	// The 3x3 layer dilates obstacles by one tile.
	if data.Passable(nav.LayerGround3x3, nav.TileDesc{TileR: 5, TileC: 5}) {
		t.Error("tile adjacent to wall passable on the 3x3 layer")
	}
	if !data.Passable(nav.LayerGround1x1, nav.TileDesc{TileR: 5, TileC: 5}) {
		t.Error("tile adjacent to wall blocked on the 1x1 layer")
	}
}

func TestParseRowCountMismatch(t *testing.T) {
	mf := &MapFile{
		Name:    "bad",
		ChunksW: 1, ChunksH: 1,
		TilesW: 8, TilesH: 8,
		Terrain: []string{"........"},
	}
	if _, err := Build(mf); err == nil {
		t.Fatal("row count mismatch accepted")
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("name: empty")); err == nil {
		t.Fatal("chunkless map accepted")
	}
}
