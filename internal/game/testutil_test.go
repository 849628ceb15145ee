package game

import (
	"testing"

	"github.com/sirupsen/logrus"

	"warfront/internal/config"
	"warfront/internal/nav"
)

// newTestCore builds a core over a 4x4-chunk open map with 16-tile
// chunks. The ticker is never started; tests drive Tick directly.
func newTestCore(t *testing.T) *Core {
	t.Helper()
	return newTestCoreTerrain(t, nil, 4, 4)
}

// newTestCoreTerrain builds a core over explicit terrain rows ('.' open,
// '#' impassable), one row per global tile row.
func newTestCoreTerrain(t *testing.T, terrain []string, chunksW, chunksH int) *Core {
	t.Helper()

	res := nav.MapResolution{ChunksW: chunksW, ChunksH: chunksH, TilesW: 16, TilesH: 16, TileSide: 1}
	rows := res.ChunksH * res.TilesH
	cols := res.ChunksW * res.TilesW

	var cost [nav.NumLayers][][]uint8
	if terrain != nil {
		if len(terrain) != rows {
			t.Fatalf("terrain has %d rows, want %d", len(terrain), rows)
		}
		grid := make([][]uint8, rows)
		for r := range grid {
			grid[r] = make([]uint8, cols)
			for c := range grid[r] {
				if c < len(terrain[r]) && terrain[r][c] == '#' {
					grid[r][c] = nav.CostImpassable
				} else {
					grid[r][c] = 1
				}
			}
		}
		cost[nav.LayerGround1x1] = grid
	}

	data := nav.NewData(res, nav.Vec2{}, cost)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	core, err := New(config.DefaultMovement(), data, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return core
}

// addAgent registers an agent and runs a tick so the command applies.
func addAgent(t *testing.T, c *Core, uid uint32, pos nav.Vec2, radius float64, speed float64) {
	t.Helper()
	c.Add(uid, pos, radius, 0)
	c.Tick()
	c.SetMaxSpeed(uid, speed)
	c.Tick()
}

// runTicks advances the simulation n steps.
func runTicks(c *Core, n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}
