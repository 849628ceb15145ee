package spatial

import (
	"math"

	"warfront/internal/nav"
)

// UnitGrid indexes the per-tick snapshot of unit positions for O(1)
// average rectangle and radius queries. It is rebuilt once per tick from
// the snapshot and read concurrently by the movement workers without
// locks; cells hold indices into the immutable unit slice, not pointers.
type UnitGrid struct {
	origin      nav.Vec2
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	units       []nav.UnitRef
}

// NewUnitGrid creates a grid over the world bounds. cellSize should match
// the dominant query radius (the ClearPath neighbour radius).
func NewUnitGrid(origin nav.Vec2, worldWidth, worldHeight, cellSize float64) *UnitGrid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &UnitGrid{
		origin:      origin,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]uint32, cols*rows),
	}
}

// Rebuild repopulates the grid from the unit slice, keeping cell capacity
// from the previous tick.
func (g *UnitGrid) Rebuild(units []nav.UnitRef) {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.units = units
	for i, u := range units {
		col, row := g.cellOf(u.Pos)
		idx := row*g.cols + col
		g.cells[idx] = append(g.cells[idx], uint32(i))
	}
}

func (g *UnitGrid) cellOf(p nav.Vec2) (col, row int) {
	col = int((p.X - g.origin.X) * g.invCellSize)
	row = int((p.Z - g.origin.Z) * g.invCellSize)
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// InRect appends every unit whose position lies inside the box to out and
// returns it.
func (g *UnitGrid) InRect(box nav.BoxXZ, out []nav.UnitRef) []nav.UnitRef {
	minC, minR := g.cellOf(nav.Vec2{X: box.X, Z: box.Z})
	maxC, maxR := g.cellOf(nav.Vec2{X: box.X + box.Width, Z: box.Z + box.Height})
	for row := minR; row <= maxR; row++ {
		for col := minC; col <= maxC; col++ {
			for _, i := range g.cells[row*g.cols+col] {
				u := g.units[i]
				if box.Contains(u.Pos) {
					out = append(out, u)
				}
			}
		}
	}
	return out
}

// InRadius appends every unit within radius of center (measured between
// centers) to out and returns it.
func (g *UnitGrid) InRadius(center nav.Vec2, radius float64, out []nav.UnitRef) []nav.UnitRef {
	box := nav.BoxXZ{X: center.X - radius, Z: center.Z - radius, Width: 2 * radius, Height: 2 * radius}
	minC, minR := g.cellOf(nav.Vec2{X: box.X, Z: box.Z})
	maxC, maxR := g.cellOf(nav.Vec2{X: box.X + box.Width, Z: box.Z + box.Height})
	r2 := radius * radius
	for row := minR; row <= maxR; row++ {
		for col := minC; col <= maxC; col++ {
			for _, i := range g.cells[row*g.cols+col] {
				u := g.units[i]
				if u.Pos.Sub(center).LenSq() <= r2 {
					out = append(out, u)
				}
			}
		}
	}
	return out
}
