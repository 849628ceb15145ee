package game

import (
	"warfront/internal/nav"
)

// applyCommand executes one drained command against the canonical state.
// Runs on the owning goroutine at the tick boundary. Precondition errors
// (unknown uid, off-map destination) are silent no-ops; scripts that need
// confirmation poll the corresponding query.
func (c *Core) applyCommand(cmd command) {
	c.eventLog.Emit(Event{Type: EventCommand, Tick: c.tickCount, UID: cmd.uid,
		Payload: CommandPayload{Op: uint8(cmd.op), Target: cmd.pos}})

	switch cmd.op {
	case cmdAdd:
		if _, exists := c.states[cmd.uid]; exists {
			return
		}
		if _, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, cmd.pos); !ok {
			return
		}
		layer := nav.LayerForRadius(cmd.scalar, c.navData.Res.TileSide)
		ms := newMovestate(cmd.uid, cmd.pos, cmd.scalar, cmd.newFaction, layer)
		ms.Blocking = false // blockAgent below flips it and anchors
		ms.MaxSpeed = 10
		c.states[cmd.uid] = ms
		c.blockAgent(ms, cmd.pos)
		c.eventLog.Emit(Event{Type: EventAgentAdd, Tick: c.tickCount, UID: cmd.uid})

	case cmdRemove:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		c.unblockAgent(ms)
		c.removeFromFlocks(cmd.uid)
		c.leaveFormation(cmd.uid)
		delete(c.states, cmd.uid)
		c.eventLog.Emit(Event{Type: EventAgentRemove, Tick: c.tickCount, UID: cmd.uid})

	case cmdStop:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		c.removeFromFlocks(cmd.uid)
		c.leaveFormation(cmd.uid)
		ms.stop()
		c.blockAgent(ms, ms.NextPos)

	case cmdSetDest:
		ms := c.states[cmd.uid]
		if ms == nil || ms.MaxSpeed == 0 {
			return
		}
		if _, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, cmd.pos); !ok {
			return
		}
		// Re-issuing the current destination to an already moving agent
		// is a no-op: velocity and field state are preserved.
		if fl := c.flockOf(cmd.uid); fl != nil && ms.State == StateMoving &&
			fl.target == cmd.pos && fl.attack == cmd.flag {
			return
		}
		c.leaveFormation(cmd.uid)
		c.unblockAgent(ms)
		if c.makeFlock([]uint32{cmd.uid}, cmd.pos, cmd.flag) != nil {
			ms.State = StateMoving
			ms.WaitTicksLeft = 0
		}

	case cmdChangeDirection:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		ms.TargetDir = cmd.quat
		ms.State = StateTurning
		ms.Velocity = nav.Vec2{}
		c.blockAgent(ms, ms.NextPos)

	case cmdSetEnterRange:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		if _, ok := c.states[cmd.targetUID]; !ok {
			return
		}
		c.removeFromFlocks(cmd.uid)
		c.leaveFormation(cmd.uid)
		c.unblockAgent(ms)
		ms.State = StateEnterEntityRange
		ms.EnterRangeTarget = cmd.targetUID
		ms.TargetRange = cmd.scalar
		ms.WaitTicksLeft = 0

	case cmdSetSeekEnemies:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		c.removeFromFlocks(cmd.uid)
		c.leaveFormation(cmd.uid)
		c.unblockAgent(ms)
		ms.State = StateSeekEnemies
		ms.WaitTicksLeft = 0

	case cmdSetSurroundEntity:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		target := c.states[cmd.targetUID]
		if target == nil {
			return
		}
		c.removeFromFlocks(cmd.uid)
		c.leaveFormation(cmd.uid)
		c.unblockAgent(ms)
		ms.State = StateSurroundEntity
		ms.SurroundTarget = cmd.targetUID
		ms.SurroundTargetPrev = target.NextPos
		ms.UsingSurroundField = false
		ms.WaitTicksLeft = 0

	case cmdUpdatePos:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		if _, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, cmd.pos); !ok {
			return
		}
		wasBlocking := ms.Blocking
		c.unblockAgent(ms)
		ms.PrevPos = cmd.pos
		ms.NextPos = cmd.pos
		if wasBlocking {
			c.blockAgent(ms, cmd.pos)
		}

	case cmdUpdateFactionID:
		ms := c.states[cmd.uid]
		if ms == nil || ms.Faction != cmd.oldFaction {
			return
		}
		if ms.Blocking {
			c.navData.OccupyTiles(ms.Layer, cmd.oldFaction, ms.LastStopPos, ms.LastStopRadius, -1)
			c.navData.OccupyTiles(ms.Layer, cmd.newFaction, ms.LastStopPos, ms.LastStopRadius, +1)
		}
		ms.Faction = cmd.newFaction

	case cmdUpdateSelectionRadius:
		ms := c.states[cmd.uid]
		if ms == nil || cmd.scalar <= 0 {
			return
		}
		wasBlocking := ms.Blocking
		c.unblockAgent(ms)
		ms.Radius = cmd.scalar
		ms.Layer = nav.LayerForRadius(cmd.scalar, c.navData.Res.TileSide)
		if wasBlocking {
			c.blockAgent(ms, ms.NextPos)
		}

	case cmdSetMaxSpeed:
		ms := c.states[cmd.uid]
		if ms == nil || cmd.scalar < 0 {
			return
		}
		ms.MaxSpeed = cmd.scalar

	case cmdSetDying:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		ms.Dying = cmd.flag

	case cmdMakeFlocks:
		if !c.clickMove {
			return
		}
		if _, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, cmd.pos); !ok {
			return
		}
		attack := cmd.flag || c.attackOnClick
		if cmd.formation == FormationNone {
			var movable []uint32
			for _, uid := range cmd.ents {
				ms := c.states[uid]
				if ms == nil || ms.MaxSpeed == 0 {
					continue
				}
				c.leaveFormation(uid)
				c.unblockAgent(ms)
				movable = append(movable, uid)
			}
			if c.makeFlock(movable, cmd.pos, attack) != nil {
				for _, uid := range movable {
					c.states[uid].State = StateMoving
					c.states[uid].WaitTicksLeft = 0
				}
			}
			return
		}
		c.createFormation(cmd.ents, cmd.pos, cmd.orientation, cmd.hasOrient, cmd.formation, attack)

	case cmdUnblock:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		c.unblockAgent(ms)

	case cmdBlockAt:
		ms := c.states[cmd.uid]
		if ms == nil {
			return
		}
		c.unblockAgent(ms)
		c.blockAgent(ms, cmd.pos)
	}
}
