package game

import (
	"warfront/internal/nav"
)

// MoveState is the per-agent state machine driving the movement tick.
type MoveState uint8

const (
	// StateMoving is pure point-seek to a flock target.
	StateMoving MoveState = iota
	// StateMovingInFormation adds formation cohesion/alignment/drag.
	StateMovingInFormation
	// StateArrivingToCell follows the agent's cell-arrival field.
	StateArrivingToCell
	// StateSeekEnemies follows an enemy-seek field; there is no flock target.
	StateSeekEnemies
	// StateSurroundEntity paths toward a surround target, switching to a
	// per-target surround field inside the low-water band.
	StateSurroundEntity
	// StateEnterEntityRange is like Moving but terminates when within the
	// configured range of a moving target.
	StateEnterEntityRange
	// StateTurning holds position while rotating toward a target
	// orientation.
	StateTurning
	// StateWaiting holds for a few ticks after the desired velocity
	// collapsed mid-journey, then resumes the previous state.
	StateWaiting
	// StateArrived is terminal for the current command; the agent blocks.
	StateArrived
)

func (s MoveState) String() string {
	switch s {
	case StateMoving:
		return "moving"
	case StateMovingInFormation:
		return "moving-in-formation"
	case StateArrivingToCell:
		return "arriving-to-cell"
	case StateSeekEnemies:
		return "seek-enemies"
	case StateSurroundEntity:
		return "surround-entity"
	case StateEnterEntityRange:
		return "enter-entity-range"
	case StateTurning:
		return "turning"
	case StateWaiting:
		return "waiting"
	case StateArrived:
		return "arrived"
	}
	return "unknown"
}

// still reports whether the state implies zero velocity and blocking.
func (s MoveState) still() bool {
	return s == StateArrived || s == StateWaiting || s == StateTurning
}

const (
	// VelHistLen is the length of the velocity ring buffer feeding the
	// orientation smoothing average.
	VelHistLen = 14

	// NoEntity marks an unset entity reference in a movestate.
	NoEntity = ^uint32(0)
)

// Movestate is the full per-agent record the movement tick reads and
// writes. Positions come in pairs: the previous and next tick values, with
// Step/Left tracking interpolation between them for render subticks.
type Movestate struct {
	UID uint32

	State    MoveState
	MaxSpeed float64 // world units per second
	Velocity nav.Vec2

	PrevPos nav.Vec2
	NextPos nav.Vec2
	PrevRot nav.Quat
	NextRot nav.Quat
	Step    float64 // interpolation fraction advanced per render subtick
	Left    int     // subticks remaining until NextPos is reached

	Blocking       bool
	LastStopPos    nav.Vec2
	LastStopRadius float64

	// VelHist is a ring of recent velocities; orientation follows their
	// weighted moving average so rotation lags smoothly behind motion.
	VelHist    [VelHistLen]nav.Vec2
	VelHistIdx int

	// Surround state.
	SurroundTarget      uint32
	SurroundTargetPrev  nav.Vec2
	SurroundNearestPrev nav.Vec2
	UsingSurroundField  bool

	// Enter-range state: the tracked target's last observed position and
	// the configured range.
	EnterRangeTarget uint32
	TargetPrevPos    nav.Vec2
	TargetRange      float64

	// Turning state.
	TargetDir nav.Quat

	// Waiting state.
	WaitPrev      MoveState
	WaitTicksLeft int

	// Attributes mirrored from the external entity: footprint radius,
	// faction, navigation layer, and whether a death animation is playing
	// (dying units stop registering as seek targets).
	Radius  float64
	Faction int
	Layer   nav.Layer
	Dying   bool
}

// newMovestate initializes the record for a newly added agent: Arrived,
// blocking at its spawn position.
func newMovestate(uid uint32, pos nav.Vec2, radius float64, faction int, layer nav.Layer) *Movestate {
	return &Movestate{
		UID:              uid,
		State:            StateArrived,
		PrevPos:          pos,
		NextPos:          pos,
		PrevRot:          nav.QuatIdentity,
		NextRot:          nav.QuatIdentity,
		Blocking:         true,
		LastStopPos:      pos,
		LastStopRadius:   radius,
		SurroundTarget:   NoEntity,
		EnterRangeTarget: NoEntity,
		Radius:           radius,
		Faction:          faction,
		Layer:            layer,
	}
}

// pushVel records a velocity sample into the history ring.
func (ms *Movestate) pushVel(v nav.Vec2) {
	ms.VelHist[ms.VelHistIdx] = v
	ms.VelHistIdx = (ms.VelHistIdx + 1) % VelHistLen
}

// smoothedDir returns the weighted moving average of the velocity history,
// newest samples weighted highest.
func (ms *Movestate) smoothedDir() nav.Vec2 {
	var sum nav.Vec2
	var total float64
	for i := 0; i < VelHistLen; i++ {
		// Walk backwards from the most recent sample.
		idx := (ms.VelHistIdx - 1 - i + 2*VelHistLen) % VelHistLen
		w := float64(VelHistLen - i)
		sum = sum.Add(ms.VelHist[idx].Scale(w))
		total += w
	}
	if total == 0 {
		return nav.Vec2{}
	}
	return sum.Scale(1 / total)
}

// stop zeroes motion and re-anchors the agent at its current position.
func (ms *Movestate) stop() {
	ms.State = StateArrived
	ms.Velocity = nav.Vec2{}
	ms.PrevPos = ms.NextPos
	ms.Step = 0
	ms.Left = 0
	ms.SurroundTarget = NoEntity
	ms.EnterRangeTarget = NoEntity
	ms.UsingSurroundField = false
}
