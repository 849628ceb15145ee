package game

// Movement simulation tunables. These are simulation invariants, not
// deployment knobs, so they live here rather than in the config package.
const (
	// EntityMass is shared by all agents: equal forces accelerate every
	// unit equally.
	EntityMass = 1.0

	// MaxForce caps every individual steering force before composition.
	MaxForce = 0.5

	// SlowingRadius is the distance at which the arrive force starts
	// scaling the desired velocity down.
	SlowingRadius = 10.0

	// Steering force scales (prioritized composition).
	ArriveScale     = 0.5
	SeparationScale = 0.6
	CohesionScale   = 0.15
	AlignmentScale  = 0.15

	// Formation-specific force scales, added for MovingInFormation and
	// ArrivingToCell.
	FormationCohesionScale  = 0.2
	FormationAlignmentScale = 0.15
	FormationDragScale      = 0.3

	// CohesionNeighbourRadius bounds the center-of-mass sample;
	// separation and alignment sample within 3 selection radii.
	CohesionNeighbourRadius = 50.0

	// ClearpathNeighbourRadius bounds the dynamic/static neighbour
	// gather feeding collision avoidance.
	ClearpathNeighbourRadius = 10.0

	// MaxNeighbours caps the dynamic and static neighbour sets each.
	MaxNeighbours = 32

	// WaitTicks is how long an agent holds in Waiting before resuming
	// (or giving up on) its journey.
	WaitTicks = 60

	// MaxTurnRateDeg caps rotation per tick while Turning.
	MaxTurnRateDeg = 15.0

	// TurnDoneDeg is the angular threshold below which a turn completes.
	TurnDoneDeg = 5.0

	// ArriveThresholdRadii scales the agent radius into the arrival
	// distance test.
	ArriveThresholdRadii = 1.5

	// Surround hysteresis bands: inside the low-water distance of the
	// target the agent switches to the per-target surround field; it
	// switches back only after leaving the high-water band.
	SurroundLowWater  = 10.0
	SurroundHighWater = 20.0

	// MaxMoveTasks bounds the fork-join worker fan-out of one tick.
	MaxMoveTasks = 64

	// CellArrivalFieldRes is the side of the square region a formation
	// cell's arrival field covers, in tiles.
	CellArrivalFieldRes = 96

	// OccupiedFieldRes is the side of the formation planner's occupied
	// subgrid, in tiles. Must be odd so the target tile sits on the
	// exact center.
	OccupiedFieldRes = 95

	// Formation geometry.
	RankWidthRatio         = 0.25
	ColumnWidthRatio       = 4.0
	UnitBufferDist         = 1.0
	SubformationBufferDist = 8.0
)
