package game

import (
	"warfront/internal/nav"
)

// steerCtx carries the immutable inputs of one agent's steering
// computation for a tick.
type steerCtx struct {
	pos       nav.Vec2
	vel       nav.Vec2
	maxSpeed  float64 // per-tick displacement cap
	radius    float64
	target    nav.Vec2 // seek/arrive goal for this tick
	flockMate func(uid uint32) bool
	dyn       []nav.UnitRef // moving neighbours
	dynVel    []nav.Vec2

	// Formation terms, valid when inFormation.
	inFormation bool
	cellPos     nav.Vec2
	cellDir     nav.Vec2 // formation orientation
}

// arriveForce steers toward the target, easing inside the slowing radius.
func arriveForce(s *steerCtx) nav.Vec2 {
	to := s.target.Sub(s.pos)
	dist := to.Len()
	desired := to.Norm().Scale(s.maxSpeed)
	if dist < SlowingRadius {
		desired = desired.Scale(dist / SlowingRadius)
	}
	return desired.Sub(s.vel).Truncate(MaxForce)
}

// separationForce steers away from nearby agents, weighted by proximity.
func separationForce(s *steerCtx) nav.Vec2 {
	radius := s.radius * 3
	var sum nav.Vec2
	n := 0
	for _, u := range s.dyn {
		diff := u.Pos.Sub(s.pos)
		d := diff.Len()
		if d >= radius {
			continue
		}
		frac := 1 - d/radius
		sum = sum.Add(diff.Scale(frac))
		n++
	}
	if n == 0 {
		return nav.Vec2{}
	}
	return sum.Scale(-1 / float64(n)).Truncate(MaxForce)
}

// cohesionForce steers toward the center of mass of nearby flockmates.
func cohesionForce(s *steerCtx) nav.Vec2 {
	var com nav.Vec2
	n := 0
	for _, u := range s.dyn {
		if s.flockMate != nil && !s.flockMate(u.UID) {
			continue
		}
		if u.Pos.Sub(s.pos).Len() >= CohesionNeighbourRadius {
			continue
		}
		com = com.Add(u.Pos)
		n++
	}
	if n == 0 {
		return nav.Vec2{}
	}
	com = com.Scale(1 / float64(n))
	return com.Sub(s.pos).Truncate(MaxForce)
}

// alignmentForce steers toward the average heading of nearby flockmates.
func alignmentForce(s *steerCtx) nav.Vec2 {
	radius := s.radius * 3
	var sum nav.Vec2
	n := 0
	for i, u := range s.dyn {
		if s.flockMate != nil && !s.flockMate(u.UID) {
			continue
		}
		if u.Pos.Sub(s.pos).Len() >= radius {
			continue
		}
		if s.dynVel[i].Len() < nav.Epsilon {
			continue
		}
		sum = sum.Add(s.dynVel[i])
		n++
	}
	if n == 0 {
		return nav.Vec2{}
	}
	return sum.Scale(1 / float64(n)).Sub(s.vel).Truncate(MaxForce)
}

// formationAlignmentForce steers the agent's heading toward the
// formation's facing so a moving formation stays coherent.
func formationAlignmentForce(s *steerCtx) nav.Vec2 {
	if s.cellDir.Len() < nav.Epsilon {
		return nav.Vec2{}
	}
	desired := s.cellDir.Norm().Scale(s.maxSpeed)
	return desired.Sub(s.vel).Truncate(MaxForce)
}

// formationDragForce pulls an agent toward its assigned cell position.
func formationDragForce(s *steerCtx) nav.Vec2 {
	to := s.cellPos.Sub(s.pos)
	dist := to.Len()
	desired := to.Norm().Scale(s.maxSpeed)
	if dist < SlowingRadius {
		desired = desired.Scale(dist / SlowingRadius)
	}
	return desired.Sub(s.vel).Truncate(MaxForce)
}

// totalSteeringForce composes the steering forces with the prioritized
// fallback: the full blend first, separation alone if the blend collapses
// to nothing, arrive alone as the last resort.
func totalSteeringForce(s *steerCtx, maxTickForce float64) nav.Vec2 {
	arrive := arriveForce(s).Scale(ArriveScale)
	sep := separationForce(s).Scale(SeparationScale)
	coh := cohesionForce(s).Scale(CohesionScale)
	align := alignmentForce(s).Scale(AlignmentScale)

	total := arrive.Add(sep).Add(coh).Add(align)
	if s.inFormation {
		total = total.
			Add(formationDragForce(s).Scale(FormationDragScale)).
			Add(cohesionForce(s).Scale(FormationCohesionScale)).
			Add(formationAlignmentForce(s).Scale(FormationAlignmentScale))
	}
	total = total.Truncate(maxTickForce)

	if total.Len() > nav.Epsilon {
		return total
	}
	if sep = separationForce(s).Truncate(maxTickForce); sep.Len() > nav.Epsilon {
		return sep
	}
	return arriveForce(s).Truncate(maxTickForce)
}

// nullifyImpassComponents zeroes the force components pointing into
// impassable adjacent tiles so agents never drift into walls.
func (c *Core) nullifyImpassComponents(layer nav.Layer, pos nav.Vec2, force nav.Vec2) nav.Vec2 {
	res := c.navData.Res
	td, ok := nav.DescForPoint(res, c.navData.MapPos, pos)
	if !ok {
		return force
	}

	blockedTowards := func(dc, dr int) bool {
		n := td
		if !n.Relative(res, dc, dr) {
			return true
		}
		return !c.navData.Passable(layer, n)
	}

	if force.X > 0 && blockedTowards(1, 0) {
		force.X = 0
	}
	if force.X < 0 && blockedTowards(-1, 0) {
		force.X = 0
	}
	if force.Z > 0 && blockedTowards(0, 1) {
		force.Z = 0
	}
	if force.Z < 0 && blockedTowards(0, -1) {
		force.Z = 0
	}
	return force
}
