package spatial

import (
	"testing"

	"warfront/internal/nav"
)

func gridWithUnits(units []nav.UnitRef) *UnitGrid {
	g := NewUnitGrid(nav.Vec2{}, 64, 64, 10)
	g.Rebuild(units)
	return g
}

func TestGridInRadius(t *testing.T) {
	units := []nav.UnitRef{
		{UID: 1, Pos: nav.Vec2{X: 10, Z: 10}},
		{UID: 2, Pos: nav.Vec2{X: 12, Z: 10}},
		{UID: 3, Pos: nav.Vec2{X: 40, Z: 40}},
	}
	g := gridWithUnits(units)

	got := g.InRadius(nav.Vec2{X: 10, Z: 10}, 5, nil)
	if len(got) != 2 {
		t.Fatalf("found %d units within 5, want 2", len(got))
	}
	for _, u := range got {
		if u.UID == 3 {
			t.Error("distant unit returned")
		}
	}
}

func TestGridInRect(t *testing.T) {
	units := []nav.UnitRef{
		{UID: 1, Pos: nav.Vec2{X: 5, Z: 5}},
		{UID: 2, Pos: nav.Vec2{X: 30, Z: 30}},
		{UID: 3, Pos: nav.Vec2{X: 62, Z: 62}},
	}
	g := gridWithUnits(units)

	got := g.InRect(nav.BoxXZ{X: 0, Z: 0, Width: 32, Height: 32}, nil)
	if len(got) != 2 {
		t.Fatalf("found %d units in rect, want 2", len(got))
	}
}

func TestGridRebuildReplaces(t *testing.T) {
	g := gridWithUnits([]nav.UnitRef{{UID: 1, Pos: nav.Vec2{X: 5, Z: 5}}})
	g.Rebuild([]nav.UnitRef{{UID: 2, Pos: nav.Vec2{X: 50, Z: 50}}})

	if got := g.InRadius(nav.Vec2{X: 5, Z: 5}, 3, nil); len(got) != 0 {
		t.Error("stale unit survived rebuild")
	}
	if got := g.InRadius(nav.Vec2{X: 50, Z: 50}, 3, nil); len(got) != 1 {
		t.Error("new unit missing after rebuild")
	}
}

func TestGridClampsOutOfBounds(t *testing.T) {
	g := gridWithUnits([]nav.UnitRef{{UID: 1, Pos: nav.Vec2{X: -5, Z: 100}}})
	// Out-of-bounds units clamp into edge cells rather than panicking.
	got := g.InRect(nav.BoxXZ{X: -10, Z: 60, Width: 20, Height: 50}, nil)
	if len(got) != 1 {
		t.Errorf("clamped unit not found (%d hits)", len(got))
	}
}
