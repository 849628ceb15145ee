package game

import (
	"math"

	"warfront/internal/nav"
)

// vo is one velocity-obstacle cone in velocity space: velocities inside
// the cone lead to a collision with the inducing neighbour.
type vo struct {
	apex      nav.Vec2 // cone apex in velocity space
	left      nav.Vec2 // unit direction of the left boundary ray
	right     nav.Vec2 // unit direction of the right boundary ray
	dist      float64  // center distance to the neighbour, for dominance
	colliding bool     // already overlapping; cone test is meaningless
	away      nav.Vec2 // push-out direction when colliding
}

// buildVO constructs the hybrid reciprocal velocity obstacle a neighbour
// imposes. Moving neighbours take half the avoidance responsibility (the
// apex sits at the velocity average); static ones take none of it, so the
// full obstacle falls on us.
func buildVO(pos, vel nav.Vec2, radius float64, nb nav.UnitRef, nbVel nav.Vec2, moving bool) vo {
	rel := nb.Pos.Sub(pos)
	dist := rel.Len()
	combined := radius + nb.Radius

	out := vo{dist: dist}
	if dist <= combined+nav.Epsilon {
		out.colliding = true
		out.away = rel.Scale(-1).Norm()
		return out
	}

	if moving {
		out.apex = vel.Add(nbVel).Scale(0.5)
	} else {
		out.apex = nbVel // static: zero velocity, full responsibility
	}

	// Half-angle of the cone subtended by the combined disk.
	halfAngle := math.Asin(math.Min(1, combined/dist))
	center := math.Atan2(rel.Z, rel.X)
	out.left = nav.Vec2{X: math.Cos(center + halfAngle), Z: math.Sin(center + halfAngle)}
	out.right = nav.Vec2{X: math.Cos(center - halfAngle), Z: math.Sin(center - halfAngle)}
	return out
}

// admits reports whether the candidate velocity lies outside the cone.
func (o *vo) admits(v nav.Vec2) bool {
	if o.colliding {
		// Only velocities separating the disks are admissible.
		return v.Dot(o.away) > 0
	}
	w := v.Sub(o.apex)
	if w.Len() < nav.Epsilon {
		return true
	}
	// Inside iff w is strictly between the right and left boundary rays;
	// a velocity on a boundary grazes the disk and is admissible.
	const edgeEps = 1e-9
	leftOfRight := o.right.X*w.Z-o.right.Z*w.X > edgeEps
	rightOfLeft := o.left.X*w.Z-o.left.Z*w.X < -edgeEps
	return !(leftOfRight && rightOfLeft)
}

// projectOntoBoundary returns the velocity on the cone boundary closest
// to v.
func (o *vo) projectOntoBoundary(v nav.Vec2) nav.Vec2 {
	if o.colliding {
		return o.away.Scale(math.Max(v.Len(), 0.25))
	}
	w := v.Sub(o.apex)
	projL := o.left.Scale(math.Max(0, w.Dot(o.left)))
	projR := o.right.Scale(math.Max(0, w.Dot(o.right)))
	if w.Sub(projL).Len() < w.Sub(projR).Len() {
		return o.apex.Add(projL)
	}
	return o.apex.Add(projR)
}

// clearpathVelocity selects the admissible velocity closest to vPref: the
// preferred velocity when it avoids every cone, otherwise the best of the
// boundary projections and damped samples. When nothing is admissible
// (the agent is caged) it falls back to the boundary of the single
// dominant obstacle.
func clearpathVelocity(pos, vel nav.Vec2, radius float64, vPref nav.Vec2,
	dyn []nav.UnitRef, dynVel []nav.Vec2, stat []nav.UnitRef) nav.Vec2 {

	if len(dyn) == 0 && len(stat) == 0 {
		return vPref
	}

	cones := make([]vo, 0, len(dyn)+len(stat))
	for i, nb := range dyn {
		cones = append(cones, buildVO(pos, vel, radius, nb, dynVel[i], true))
	}
	for _, nb := range stat {
		cones = append(cones, buildVO(pos, vel, radius, nb, nav.Vec2{}, false))
	}

	admissible := func(v nav.Vec2) bool {
		for i := range cones {
			if !cones[i].admits(v) {
				return false
			}
		}
		return true
	}

	if admissible(vPref) {
		return vPref
	}

	// Candidate set: boundary projections of vPref on every cone, plus
	// damped variants of the preferred velocity.
	candidates := make([]nav.Vec2, 0, len(cones)*2+3)
	for i := range cones {
		candidates = append(candidates, cones[i].projectOntoBoundary(vPref))
	}
	candidates = append(candidates,
		vPref.Scale(0.5),
		vPref.Scale(0.25),
		vPref.Perp().Scale(0.5),
	)

	best := nav.Vec2{}
	bestDist := math.Inf(1)
	found := false
	for _, cand := range candidates {
		if !admissible(cand) {
			continue
		}
		d := cand.Sub(vPref).Len()
		if d < bestDist {
			best, bestDist, found = cand, d, true
		}
	}
	if found {
		return best
	}

	// Caged: yield to the dominant (closest) obstacle's boundary.
	dom := 0
	for i := range cones {
		if cones[i].dist < cones[dom].dist {
			dom = i
		}
	}
	return cones[dom].projectOntoBoundary(vPref)
}
