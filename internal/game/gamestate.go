package game

import (
	"warfront/internal/game/spatial"
	"warfront/internal/nav"
)

// snapMeta carries the per-unit movement attributes the workers need
// beyond the bare UnitRef.
type snapMeta struct {
	vel      nav.Vec2
	state    MoveState
	blocking bool
}

// gamestate is the deep copy of the state the tick computation reads. It
// is built once at the start of a tick, immutable for the tick's
// duration, and read by all workers without locks; the previous tick's
// snapshot is released when the next one is built.
type gamestate struct {
	tick      uint64
	units     []nav.UnitRef
	meta      []snapMeta
	byUID     map[uint32]int
	grid      *spatial.UnitGrid
	diplomacy [nav.MaxFactions][nav.MaxFactions]bool
	fog       func(faction int, pos nav.Vec2) bool
}

// buildGamestate snapshots the canonical tables. Runs on the owning
// goroutine between command drain and work dispatch.
func (c *Core) buildGamestate() *gamestate {
	gs := &gamestate{
		tick:      c.tickCount,
		units:     make([]nav.UnitRef, 0, len(c.states)),
		meta:      make([]snapMeta, 0, len(c.states)),
		byUID:     make(map[uint32]int, len(c.states)),
		diplomacy: c.diplomacy,
		fog:       c.fogFn,
	}
	for uid, ms := range c.states {
		gs.byUID[uid] = len(gs.units)
		gs.units = append(gs.units, nav.UnitRef{
			UID:     uid,
			Pos:     ms.NextPos,
			Radius:  ms.Radius,
			Faction: ms.Faction,
			Dying:   ms.Dying,
		})
		gs.meta = append(gs.meta, snapMeta{
			vel:      ms.Velocity,
			state:    ms.State,
			blocking: ms.Blocking,
		})
	}

	gs.grid = c.snapGrid
	gs.grid.Rebuild(gs.units)
	return gs
}

// EntsInRect implements nav.UnitQuery.
func (gs *gamestate) EntsInRect(box nav.BoxXZ) []nav.UnitRef {
	return gs.grid.InRect(box, nil)
}

// Enemies implements nav.UnitQuery: the mask of factions hostile to the
// given faction under the snapshotted diplomacy table.
func (gs *gamestate) Enemies(faction int) nav.FactionMask {
	var m nav.FactionMask
	if faction < 0 || faction >= nav.MaxFactions {
		return m
	}
	for f := 0; f < nav.MaxFactions; f++ {
		if gs.diplomacy[faction][f] {
			m = m.With(f)
		}
	}
	return m
}

// Visible implements nav.UnitQuery. With no fog collaborator installed
// everything is visible.
func (gs *gamestate) Visible(faction int, pos nav.Vec2) bool {
	if gs.fog == nil {
		return true
	}
	return gs.fog(faction, pos)
}

// pos returns the snapshotted position of a unit, ok=false when the uid
// is not part of the snapshot.
func (gs *gamestate) pos(uid uint32) (nav.Vec2, bool) {
	i, ok := gs.byUID[uid]
	if !ok {
		return nav.Vec2{}, false
	}
	return gs.units[i].Pos, true
}

// neighbours splits the units within radius of pos (excluding self) into
// dynamic (moving) and static (blocking) sets, each capped at
// MaxNeighbours.
func (gs *gamestate) neighbours(self uint32, pos nav.Vec2, radius float64) (dyn, stat []nav.UnitRef, dynVel []nav.Vec2) {
	for _, u := range gs.grid.InRadius(pos, radius, nil) {
		if u.UID == self {
			continue
		}
		m := gs.meta[gs.byUID[u.UID]]
		if m.blocking || m.state.still() {
			if len(stat) < MaxNeighbours {
				stat = append(stat, u)
			}
		} else if len(dyn) < MaxNeighbours {
			dyn = append(dyn, u)
			dynVel = append(dynVel, m.vel)
		}
	}
	return dyn, stat, dynVel
}
