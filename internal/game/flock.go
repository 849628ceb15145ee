package game

import (
	"warfront/internal/nav"
)

// flock groups the agents currently sharing one destination id. All
// members steer toward the same cached target and fields.
type flock struct {
	ents     map[uint32]struct{}
	target   nav.Vec2
	destTile nav.TileDesc
	attack   bool
	layer    nav.Layer
	faction  int
}

// destID packs the parameters a destination's fields are keyed under.
// Two SetDest calls with equal ids share flocks and fields.
func (f *flock) destID() uint64 {
	id := uint64(nav.MakeFieldID(f.layer, f.destTile.Chunk(), nav.Target{
		Kind: nav.TargetTile,
		Tile: f.destTile,
	}))
	id |= uint64(f.faction&0xf) << 48
	if f.attack {
		id |= 1 << 52
	}
	return id
}

// removeFromFlocks removes the uid from any flock it belongs to and
// drops flocks that become empty. Returns the flock the agent was in,
// if any.
func (c *Core) removeFromFlocks(uid uint32) *flock {
	var was *flock
	for i := len(c.flocks) - 1; i >= 0; i-- {
		fl := c.flocks[i]
		if _, ok := fl.ents[uid]; ok {
			delete(fl.ents, uid)
			was = fl
		}
		if len(fl.ents) == 0 {
			c.flocks = append(c.flocks[:i], c.flocks[i+1:]...)
		}
	}
	return was
}

// flockOf returns the flock containing the uid, or nil.
func (c *Core) flockOf(uid uint32) *flock {
	for _, fl := range c.flocks {
		if _, ok := fl.ents[uid]; ok {
			return fl
		}
	}
	return nil
}

// makeFlock forms (or merges into) a flock for the selection toward the
// target. Agents keep their current velocity when moved between flocks.
func (c *Core) makeFlock(ents []uint32, target nav.Vec2, attack bool) *flock {
	if len(ents) == 0 {
		return nil
	}

	// Partition by layer: one flock per navigation layer present in the
	// selection, all sharing the destination.
	first := c.states[ents[0]]
	if first == nil {
		return nil
	}

	destTD, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, target)
	if !ok {
		return nil
	}

	fl := &flock{
		ents:     make(map[uint32]struct{}, len(ents)),
		target:   target,
		destTile: destTD,
		attack:   attack,
		layer:    first.Layer,
		faction:  first.Faction,
	}

	for _, uid := range ents {
		ms := c.states[uid]
		if ms == nil {
			continue
		}
		c.removeFromFlocks(uid)
		fl.ents[uid] = struct{}{}
	}
	if len(fl.ents) == 0 {
		return nil
	}

	// Merge into an existing flock with the same destination id so field
	// sharing stays maximal.
	for _, other := range c.flocks {
		if other.destID() == fl.destID() {
			for uid := range fl.ents {
				other.ents[uid] = struct{}{}
			}
			return other
		}
	}

	c.flocks = append(c.flocks, fl)
	return fl
}

// disbandArrivedFlocks drops every flock whose members are all Arrived.
func (c *Core) disbandArrivedFlocks() {
	for i := len(c.flocks) - 1; i >= 0; i-- {
		fl := c.flocks[i]
		all := true
		for uid := range fl.ents {
			if ms := c.states[uid]; ms != nil && ms.State != StateArrived {
				all = false
				break
			}
		}
		if all {
			c.flocks = append(c.flocks[:i], c.flocks[i+1:]...)
		}
	}
}
