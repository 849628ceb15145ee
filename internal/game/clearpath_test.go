package game

import (
	"math"
	"testing"

	"warfront/internal/nav"
)

func TestClearpathNoNeighboursKeepsPreferred(t *testing.T) {
	vPref := nav.Vec2{X: 0.5, Z: 0}
	got := clearpathVelocity(nav.Vec2{}, nav.Vec2{}, 1, vPref, nil, nil, nil)
	if got != vPref {
		t.Errorf("got %v, want %v", got, vPref)
	}
}

func TestClearpathAvoidsStaticObstacle(t *testing.T) {
	// Obstacle dead ahead; preferred velocity runs straight into it.
	pos := nav.Vec2{}
	vPref := nav.Vec2{X: 0.5, Z: 0}
	obstacle := nav.UnitRef{UID: 2, Pos: nav.Vec2{X: 3, Z: 0}, Radius: 1}

	got := clearpathVelocity(pos, vPref, 1, vPref, nil, nil, []nav.UnitRef{obstacle})

	// The selected velocity must sit outside the obstacle's cone: its
	// heading must clear the disk.
	cone := buildVO(pos, vPref, 1, obstacle, nav.Vec2{}, false)
	if !cone.admits(got) {
		t.Errorf("selected velocity %v still collides", got)
	}
	if got.Len() < nav.Epsilon {
		t.Error("selected velocity collapsed to zero with open space around")
	}
}

func TestClearpathHeadOnReciprocal(t *testing.T) {
	// Two agents closing head-on share the avoidance: the HRVO apex for
	// a moving neighbour sits at the velocity average, so the preferred
	// velocity is rejected and the replacement dodges sideways.
	pos := nav.Vec2{}
	vel := nav.Vec2{X: 0.5, Z: 0}
	other := nav.UnitRef{UID: 2, Pos: nav.Vec2{X: 4, Z: 0}, Radius: 1}
	otherVel := nav.Vec2{X: -0.5, Z: 0}

	got := clearpathVelocity(pos, vel, 1, vel, []nav.UnitRef{other}, []nav.Vec2{otherVel}, nil)

	cone := buildVO(pos, vel, 1, other, otherVel, true)
	if !cone.admits(got) {
		t.Errorf("selected velocity %v inside the HRVO cone", got)
	}
}

func TestClearpathCagedFallsBackToBoundary(t *testing.T) {
	// Fully ringed by touching static obstacles: no admissible velocity
	// exists, so the fallback must still return something finite.
	pos := nav.Vec2{}
	var stat []nav.UnitRef
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 4
		stat = append(stat, nav.UnitRef{
			UID:    uint32(i + 10),
			Pos:    nav.Vec2{X: 2 * math.Cos(angle), Z: 2 * math.Sin(angle)},
			Radius: 1,
		})
	}
	vPref := nav.Vec2{X: 0.5, Z: 0}
	got := clearpathVelocity(pos, nav.Vec2{}, 1, vPref, nil, nil, stat)
	if math.IsNaN(got.X) || math.IsNaN(got.Z) {
		t.Fatalf("caged fallback produced NaN: %v", got)
	}
}

func TestClearpathOverlappingNeighbourPushesOut(t *testing.T) {
	pos := nav.Vec2{}
	inside := nav.UnitRef{UID: 2, Pos: nav.Vec2{X: 0.5, Z: 0}, Radius: 1}
	vPref := nav.Vec2{X: 0.5, Z: 0}

	got := clearpathVelocity(pos, nav.Vec2{}, 1, vPref, nil, nil, []nav.UnitRef{inside})
	if got.Dot(nav.Vec2{X: 1, Z: 0}) > 0 {
		t.Errorf("velocity %v moves deeper into the overlapping neighbour", got)
	}
}
