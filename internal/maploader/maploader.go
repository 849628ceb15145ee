// Package maploader parses YAML map descriptors into navigation data.
// A descriptor carries the chunk tiling and one character row per tile
// row: '.' open ground (cost 1), '#' impassable, '~' water, digits for
// higher-cost ground (mud, scree).
package maploader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"warfront/internal/nav"
)

// MapFile is the YAML shape of a map descriptor.
type MapFile struct {
	Name     string   `yaml:"name"`
	ChunksW  int      `yaml:"chunks_w"`
	ChunksH  int      `yaml:"chunks_h"`
	TilesW   int      `yaml:"tiles_w"`
	TilesH   int      `yaml:"tiles_h"`
	TileSide float64  `yaml:"tile_side"`
	OriginX  float64  `yaml:"origin_x"`
	OriginZ  float64  `yaml:"origin_z"`
	Terrain  []string `yaml:"terrain"`
}

// Parse validates a descriptor and builds the navigation data.
func Parse(data []byte) (*nav.Data, error) {
	var mf MapFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("maploader: %w", err)
	}
	return Build(&mf)
}

// Build constructs navigation data from a parsed descriptor.
func Build(mf *MapFile) (*nav.Data, error) {
	if mf.ChunksW <= 0 || mf.ChunksH <= 0 {
		return nil, fmt.Errorf("maploader: map %q has no chunks", mf.Name)
	}
	if mf.TilesW <= 0 {
		mf.TilesW = 64
	}
	if mf.TilesH <= 0 {
		mf.TilesH = 64
	}
	if mf.TileSide <= 0 {
		mf.TileSide = 1
	}

	res := nav.MapResolution{
		ChunksW: mf.ChunksW, ChunksH: mf.ChunksH,
		TilesW: mf.TilesW, TilesH: mf.TilesH,
		TileSide: mf.TileSide,
	}
	rows := res.ChunksH * res.TilesH
	cols := res.ChunksW * res.TilesW

	if len(mf.Terrain) != 0 && len(mf.Terrain) != rows {
		return nil, fmt.Errorf("maploader: map %q: %d terrain rows, want %d", mf.Name, len(mf.Terrain), rows)
	}

	tileAt := func(r, c int) byte {
		if len(mf.Terrain) == 0 {
			return '.'
		}
		row := mf.Terrain[r]
		if c >= len(row) {
			return '.'
		}
		return row[c]
	}

	var cost [nav.NumLayers][][]uint8
	for l := nav.Layer(0); l < nav.NumLayers; l++ {
		cost[l] = make([][]uint8, rows)
		for r := range cost[l] {
			cost[l][r] = make([]uint8, cols)
		}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			ch := tileAt(r, c)
			g1, water := groundCost(ch)
			cost[nav.LayerGround1x1][r][c] = g1
			cost[nav.LayerGround3x3][r][c] = g1
			if water {
				cost[nav.LayerWater][r][c] = 1
			} else {
				cost[nav.LayerWater][r][c] = nav.CostImpassable
			}
			cost[nav.LayerAir][r][c] = 1
		}
	}

	// Dilate obstacles by one tile for the large-footprint layer: a 3x3
	// unit cannot center itself adjacent to a wall.
	dilated := cost[nav.LayerGround3x3]
	src := cost[nav.LayerGround1x1]
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if src[r][c] != nav.CostImpassable {
				continue
			}
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
						continue
					}
					dilated[rr][cc] = nav.CostImpassable
				}
			}
		}
	}

	return nav.NewData(res, nav.Vec2{X: mf.OriginX, Z: mf.OriginZ}, cost), nil
}

// groundCost maps a terrain character to the ground cost and whether the
// tile is navigable water.
func groundCost(ch byte) (cost uint8, water bool) {
	switch {
	case ch == '.' || ch == ' ':
		return 1, false
	case ch == '#':
		return nav.CostImpassable, false
	case ch == '~':
		return nav.CostImpassable, true
	case ch >= '1' && ch <= '9':
		// Digits scale the traversal cost in steps of 10: '1' costs 10,
		// '2' costs 20.
		return (ch - '0') * 10, false
	}
	return 1, false
}
