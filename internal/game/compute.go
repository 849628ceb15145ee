package game

import (
	"warfront/internal/nav"
)

// computeAgent advances one agent by a tick: desired velocity from the
// appropriate field, steering composition, ClearPath avoidance, velocity
// integration and the state machine transition. Pure with respect to the
// canonical state; runs on the worker pool.
func (c *Core) computeAgent(it *workItem) workResult {
	ms := it.ms
	res := workResult{oldState: ms.State}
	pos := ms.NextPos

	tickRate := float64(c.cfg.TickRate)
	maxTick := ms.MaxSpeed / tickRate
	subticks := 20 / c.cfg.TickRate
	if subticks < 1 {
		subticks = 1
	}

	switch ms.State {
	case StateTurning:
		ms.Velocity = nav.Vec2{}
		ms.PrevRot = ms.NextRot
		ms.NextRot = ms.NextRot.RotateTowards(ms.TargetDir, MaxTurnRateDeg)
		if ms.NextRot.AngleDeg(ms.TargetDir) <= TurnDoneDeg {
			ms.NextRot = ms.TargetDir
			ms.State = StateArrived
		}
		res.ms = ms
		return res

	case StateWaiting:
		ms.Velocity = nav.Vec2{}
		ms.WaitTicksLeft--
		if ms.WaitTicksLeft <= 0 {
			// Resume the interrupted state; the sentinel lets the next
			// no-path detection give up instead of spinning forever.
			ms.State = ms.WaitPrev
			ms.WaitTicksLeft = -1
		}
		res.ms = ms
		return res

	case StateArrived:
		res.ms = ms
		return res
	}

	// A surround or enter-range target that left the snapshot ends the
	// command: the agent settles where it stands.
	if (ms.State == StateSurroundEntity || ms.State == StateEnterEntityRange) && !it.targetOK {
		ms.State = StateArrived
		ms.Velocity = nav.Vec2{}
		res.ms = ms
		return res
	}
	if ms.State == StateSurroundEntity {
		// Apply the hysteresis at the tick's start position too, so the
		// field chosen below matches where the agent stands.
		d := pos.Sub(it.targetPos).Len()
		if !ms.UsingSurroundField && d <= SurroundLowWater {
			ms.UsingSurroundField = true
		} else if ms.UsingSurroundField && d >= SurroundHighWater {
			ms.UsingSurroundField = false
		}
	}

	vDesired := c.desiredVelocity(it, &ms, pos, maxTick)

	if vDesired.Len() < nav.Epsilon {
		// Soft navigation failure or a finished field: wait, retry once,
		// then settle.
		if ms.WaitTicksLeft == -1 {
			ms.State = StateArrived
			ms.Velocity = nav.Vec2{}
			res.ms = ms
			return res
		}
		ms.WaitPrev = ms.State
		ms.State = StateWaiting
		ms.WaitTicksLeft = WaitTicks
		ms.Velocity = nav.Vec2{}
		res.ms = ms
		return res
	}
	ms.WaitTicksLeft = 0

	// Steering composition toward the desired velocity. The arrive goal
	// is the real goal point when it is known (so the slowing radius
	// applies), otherwise a point projected along the field direction.
	steerTarget := pos.Add(vDesired.Scale(SlowingRadius / maxTickOr(maxTick)))
	switch {
	case (ms.State == StateMoving || ms.State == StateMovingInFormation) && it.hasDestLOS:
		steerTarget = it.flockTarget
	case ms.State == StateArrivingToCell && it.hasCell:
		steerTarget = it.cellPos
	case (ms.State == StateEnterEntityRange || ms.State == StateSurroundEntity) && it.targetOK:
		steerTarget = it.targetPos
	}

	sctx := &steerCtx{
		pos:      pos,
		vel:      ms.Velocity,
		maxSpeed: maxTick,
		radius:   ms.Radius,
		target:   steerTarget,
		dyn:      it.dyn,
		dynVel:   it.dynVel,
	}
	if it.flockMates != nil {
		mates := it.flockMates
		sctx.flockMate = func(uid uint32) bool {
			_, ok := mates[uid]
			return ok
		}
	}
	if (ms.State == StateMovingInFormation || ms.State == StateArrivingToCell) && it.hasCell {
		sctx.inFormation = true
		sctx.cellPos = it.cellPos
		sctx.cellDir = it.formDir
	}

	maxTickForce := MaxForce / tickRate * 20
	force := totalSteeringForce(sctx, maxTickForce)
	force = c.nullifyImpassComponents(ms.Layer, pos, force)

	vNew := ms.Velocity.Add(force.Scale(1 / EntityMass)).Truncate(maxTick)

	// ClearPath keeps the step out of every neighbour's HRVO cone.
	vFinal := clearpathVelocity(pos, ms.Velocity, ms.Radius, vNew, it.dyn, it.dynVel, it.stat)
	vFinal = vFinal.Truncate(maxTick)

	newPos := c.clampToMap(pos.Add(vFinal))

	ms.Velocity = vFinal
	ms.PrevPos = pos
	ms.NextPos = newPos
	ms.Step = 1.0 / float64(subticks)
	ms.Left = subticks

	ms.pushVel(vFinal)
	if dir := ms.smoothedDir(); dir.Len() > nav.Epsilon {
		ms.PrevRot = ms.NextRot
		ms.NextRot = nav.DirQuat(dir)
	}

	c.updateArrival(it, &ms, newPos)

	if ms.State == StateArrived || ms.State == StateWaiting {
		ms.Velocity = nav.Vec2{}
		ms.NextPos = newPos
		ms.PrevPos = newPos
	}

	res.ms = ms
	return res
}

func maxTickOr(v float64) float64 {
	if v < nav.Epsilon {
		return 1
	}
	return v
}

// desiredVelocity selects the per-state desired velocity: direct heading
// under line of sight, the matching field otherwise.
func (c *Core) desiredVelocity(it *workItem, ms *Movestate, pos nav.Vec2, maxTick float64) nav.Vec2 {
	switch ms.State {
	case StateMoving, StateMovingInFormation:
		if !it.hasFlock {
			return nav.Vec2{}
		}
		if it.hasDestLOS {
			return it.flockTarget.Sub(pos).Norm().Scale(maxTick)
		}
		return c.flowDirTo(ms.Layer, pos, it.destTile).Scale(maxTick)

	case StateEnterEntityRange:
		if !it.targetOK {
			return nav.Vec2{}
		}
		td, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, it.targetPos)
		if !ok {
			return nav.Vec2{}
		}
		if dir := c.flowDirTo(ms.Layer, pos, td); dir.Len() > nav.Epsilon {
			return dir.Scale(maxTick)
		}
		return it.targetPos.Sub(pos).Norm().Scale(maxTick)

	case StateSeekEnemies:
		return c.seekFlowDir(ms.Layer, pos, nav.Target{
			Kind:    nav.TargetEnemies,
			Faction: ms.Faction,
		}).Scale(maxTick)

	case StateSurroundEntity:
		if !it.targetOK {
			return nav.Vec2{}
		}
		if ms.UsingSurroundField {
			return c.seekFlowDir(ms.Layer, pos, nav.Target{
				Kind:      nav.TargetEntity,
				EntityUID: ms.SurroundTarget,
			}).Scale(maxTick)
		}
		td, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, it.targetPos)
		if !ok {
			return nav.Vec2{}
		}
		if dir := c.flowDirTo(ms.Layer, pos, td); dir.Len() > nav.Epsilon {
			return dir.Scale(maxTick)
		}
		return it.targetPos.Sub(pos).Norm().Scale(maxTick)

	case StateArrivingToCell:
		if it.arrival != nil {
			res := c.navData.Res
			td, ok := nav.DescForPoint(res, c.navData.MapPos, pos)
			if ok {
				dir := it.arrival.DirAtGlobal(td.GlobalR(res), td.GlobalC(res))
				if dir != 0 {
					return dir.Vec().Scale(maxTick)
				}
			}
		}
		if it.hasCell {
			to := it.cellPos.Sub(pos)
			if to.Len() > ms.Radius {
				return to.Norm().Scale(maxTick)
			}
		}
		return nav.Vec2{}
	}
	return nav.Vec2{}
}

// updateArrival drives the state machine transitions that depend on the
// integrated position.
func (c *Core) updateArrival(it *workItem, ms *Movestate, pos nav.Vec2) {
	arriveDist := ArriveThresholdRadii * ms.Radius

	switch ms.State {
	case StateMoving:
		if !it.hasFlock {
			ms.State = StateArrived
			return
		}
		if pos.Sub(it.flockTarget).Len() <= arriveDist {
			ms.State = StateArrived
			return
		}
		// Settle next to an already-arrived flockmate crowding the
		// target, so queues collapse instead of orbiting.
		if c.adjacentArrivedMate(it, pos) {
			ms.State = StateArrived
		}

	case StateMovingInFormation:
		if !it.hasCell {
			ms.State = StateMoving
			return
		}
		if it.arrival != nil {
			res := c.navData.Res
			if td, ok := nav.DescForPoint(res, c.navData.MapPos, pos); ok {
				if it.arrival.Region.Contains(td.GlobalR(res), td.GlobalC(res)) {
					ms.State = StateArrivingToCell
					return
				}
			}
		}
		if pos.Sub(it.cellPos).Len() <= SlowingRadius {
			ms.State = StateArrivingToCell
		}

	case StateArrivingToCell:
		if !it.hasCell || pos.Sub(it.cellPos).Len() <= arriveDist {
			ms.State = StateArrived
		}

	case StateEnterEntityRange:
		if !it.targetOK {
			ms.State = StateArrived
			return
		}
		ms.TargetPrevPos = it.targetPos
		if pos.Sub(it.targetPos).Len() <= ms.TargetRange {
			ms.State = StateArrived
		}

	case StateSurroundEntity:
		if !it.targetOK {
			ms.State = StateArrived
			return
		}
		d := pos.Sub(it.targetPos).Len()
		// Hysteresis: switch onto the surround field inside the
		// low-water band, off it only past the high-water band.
		if !ms.UsingSurroundField && d <= SurroundLowWater {
			ms.UsingSurroundField = true
		} else if ms.UsingSurroundField && d >= SurroundHighWater {
			ms.UsingSurroundField = false
		}
		ms.SurroundTargetPrev = it.targetPos
		if d <= ms.Radius+it.targetRadius+arriveDist {
			ms.SurroundNearestPrev = pos
			ms.State = StateArrived
		}

	case StateSeekEnemies:
		// Runs until the seek field dries up (handled by the no-desired-
		// velocity path) or an external command preempts it.
	}
}

// adjacentArrivedMate reports whether a same-flock neighbour has arrived
// right next to the agent while the flock target is crowded.
func (c *Core) adjacentArrivedMate(it *workItem, pos nav.Vec2) bool {
	if it.flockMates == nil {
		return false
	}
	if pos.Sub(it.flockTarget).Len() > SlowingRadius {
		return false
	}
	for _, u := range it.stat {
		if _, mate := it.flockMates[u.UID]; !mate {
			continue
		}
		if c.gs.meta[c.gs.byUID[u.UID]].state != StateArrived {
			continue
		}
		if pos.Sub(u.Pos).Len() <= it.ms.Radius+u.Radius+0.5 {
			return true
		}
	}
	return false
}
