package game

import (
	"testing"

	"warfront/internal/nav"
)

func TestFormationGridShape(t *testing.T) {
	tests := []struct {
		name      string
		ftype     FormationType
		nunits    int
		wantCols  int
		wantRows  int
	}{
		{"25 rank", FormationRank, 25, 10, 3},
		{"25 column", FormationColumn, 25, 3, 9},
		{"single unit", FormationRank, 1, 1, 1},
		{"two rank", FormationRank, 2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ncolsFor(tt.ftype, tt.nunits); got != tt.wantCols {
				t.Errorf("ncols = %d, want %d", got, tt.wantCols)
			}
			if got := nrowsFor(tt.ftype, tt.nunits); got != tt.wantRows {
				t.Errorf("nrows = %d, want %d", got, tt.wantRows)
			}
		})
	}
}

func arrangeSquad(t *testing.T, c *Core, n int, ftype FormationType) []uint32 {
	t.Helper()
	var uids []uint32
	for i := 0; i < n; i++ {
		uid := uint32(i + 1)
		uids = append(uids, uid)
		c.Add(uid, nav.Vec2{X: float64(5 + (i%5)*2), Z: float64(5 + (i/5)*2)}, 0.5, 0)
	}
	c.Tick()
	for _, uid := range uids {
		c.SetMaxSpeed(uid, 8)
	}
	orient := nav.Vec2{X: 1, Z: 0}
	c.ArrangeInFormation(uids, nav.Vec2{X: 40, Z: 40}, &orient, ftype)
	c.Tick()
	return uids
}

func TestFormationAssignmentBijection(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 25, FormationRank)

	seen := make(map[nav.Coord]uint32)
	for _, uid := range uids {
		coord, ok := c.AssignedToCell(uid)
		if !ok {
			t.Fatalf("agent %d has no assigned cell", uid)
		}
		if other, dup := seen[coord]; dup {
			t.Fatalf("cell %v assigned to both %d and %d", coord, other, uid)
		}
		seen[coord] = uid

		f := c.formations[uid]
		if f == nil {
			t.Fatalf("agent %d has no formation", uid)
		}
		s := f.subs[0]
		if coord.R < 0 || coord.R >= s.nrows || coord.C < 0 || coord.C >= s.ncols {
			t.Errorf("cell %v outside the %dx%d grid", coord, s.nrows, s.ncols)
		}
	}
}

func TestFormationCellTilesDisjoint(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 25, FormationRank)

	f := c.formations[uids[0]]
	used := make(map[nav.TileDesc]int)
	for _, s := range f.subs {
		for i := range s.cells {
			cell := &s.cells[i]
			if cell.State != CellOccupied && cell.State != CellNotOccupied {
				continue
			}
			for _, td := range cell.Tiles {
				used[td]++
				if used[td] > 1 {
					t.Fatalf("tile %+v allocated to multiple cells", td)
				}
			}
		}
	}
}

func TestFormationOccupiedCellStates(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 25, FormationRank)

	f := c.formations[uids[0]]
	s := f.subs[0]

	occupied := 0
	for i := range s.cells {
		if s.cells[i].State == CellOccupied {
			occupied++
		}
	}
	if occupied != 25 {
		t.Errorf("%d occupied cells, want 25", occupied)
	}

	// 10x3 grid with 25 agents leaves 5 unused cells.
	unused := 0
	for i := range s.cells {
		if s.cells[i].State == CellNotUsed {
			unused++
		}
	}
	if unused != 5 {
		t.Errorf("%d unused cells, want 5", unused)
	}
}

func TestFormationMembersMove(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 9, FormationRank)

	for _, uid := range uids {
		if got := c.QuerySnapshot()[uid].State; got != StateMovingInFormation {
			t.Fatalf("agent %d in %v, want MovingInFormation", uid, got)
		}
	}

	runTicks(c, 1200)

	settled := 0
	for _, uid := range uids {
		if c.Still(uid) {
			settled++
		}
	}
	if settled < 7 {
		t.Errorf("only %d/9 formation members settled", settled)
	}
}

func TestFormationSingleUnit(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 1, FormationRank)

	coord, ok := c.AssignedToCell(uids[0])
	if !ok {
		t.Fatal("single unit has no cell")
	}
	if coord != (nav.Coord{R: 0, C: 0}) {
		t.Errorf("cell = %v, want (0,0)", coord)
	}

	f := c.formations[uids[0]]
	if f.subs[0].nrows != 1 || f.subs[0].ncols != 1 {
		t.Errorf("grid %dx%d, want 1x1", f.subs[0].nrows, f.subs[0].ncols)
	}
}

func TestFormationRefcountDropsOnRemove(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 4, FormationRank)

	f := c.formations[uids[0]]
	if f.refcount != 4 {
		t.Fatalf("refcount = %d, want 4", f.refcount)
	}
	for _, uid := range uids {
		c.Remove(uid)
	}
	c.Tick()
	if f.refcount != 0 {
		t.Errorf("refcount = %d after removing all members", f.refcount)
	}
	if len(c.formations) != 0 {
		t.Errorf("%d formation bindings leaked", len(c.formations))
	}
}

func TestFormationArrivalFieldsBuilt(t *testing.T) {
	c := newTestCore(t)
	uids := arrangeSquad(t, c, 9, FormationRank)

	f := c.formations[uids[0]]
	for _, uid := range uids {
		if f.Arrival(uid) == nil {
			t.Errorf("agent %d has no arrival field", uid)
		}
	}
}
