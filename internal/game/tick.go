package game

import (
	"sync"
	"time"

	"warfront/internal/nav"
	"warfront/internal/nav/field"
	"warfront/internal/nav/fieldcache"
)

// workItem is the immutable input of one agent's tick computation,
// collected on the owning goroutine before the fork-join dispatch.
type workItem struct {
	uid uint32
	ms  Movestate // copy of the canonical movestate

	flockTarget nav.Vec2
	hasFlock    bool
	destTile    nav.TileDesc
	flockMates  map[uint32]struct{}

	dyn    []nav.UnitRef
	dynVel []nav.Vec2
	stat   []nav.UnitRef

	hasDestLOS bool

	// Formation inputs.
	cellPos nav.Vec2
	hasCell bool
	arrival *field.RegionFlow
	formDir nav.Vec2

	// Surround / enter-range target snapshot.
	targetPos    nav.Vec2
	targetRadius float64
	targetOK     bool
}

// workResult is one agent's computed patch, applied at the start of the
// next tick on the owning goroutine.
type workResult struct {
	ms       Movestate
	oldState MoveState
}

type movePatch = workResult

// tickScratch holds the per-tick shared caches the workers consult:
// portal routes and the ephemeral seek fields (rebuilt every tick since
// their targets move every tick).
type tickScratch struct {
	mu     sync.Mutex
	routes map[routeKey][]nav.PortalHop
	seek   map[nav.FieldID]*field.FlowField
}

type routeKey struct {
	layer nav.Layer
	from  nav.Coord
	dest  nav.TileDesc
}

// Tick runs one full simulation step. Called by the internal ticker; also
// invoked directly by the headless scenario runner and tests.
func (c *Core) Tick() {
	start := time.Now()
	c.tickCount++

	// 1. Apply the patches computed by the previous tick.
	c.applyPatches()

	// 2. Drain commands in FIFO order.
	drained := c.cmds.drain(c.applyCommand)

	// 3. Field caches: invalidation is driven by the dirty-chunk handler;
	// island labels are repainted lazily before any field build.
	for l := nav.Layer(0); l < nav.NumLayers; l++ {
		c.navData.EnsureClean(l)
	}

	// 4. Release the previous snapshot and build a fresh one.
	c.gs = c.buildGamestate()
	c.builder.SetUnitQuery(c.gs)
	c.scratch = &tickScratch{
		routes: make(map[routeKey][]nav.PortalHop),
		seek:   make(map[nav.FieldID]*field.FlowField),
	}

	// 5. Disband flocks whose members have all arrived.
	c.disbandArrivedFlocks()

	// 6. Collect work for every non-still agent.
	items := c.collectWork()

	// Publish the query snapshot of the canonical (post-command) state.
	c.publishQuery()

	// 7. Compute velocities and state updates on the worker pool.
	results := make([]workResult, len(items))
	c.backend.ComputeVelocities(c, items, results)

	// 8. Mark the patches ready; the next tick applies them.
	c.patches = results

	dur := time.Since(start)
	if c.hooks.TickDuration != nil {
		c.hooks.TickDuration(dur)
	}
	if c.hooks.AgentCount != nil {
		c.hooks.AgentCount(len(c.states))
	}
	if c.hooks.FlockCount != nil {
		c.hooks.FlockCount(len(c.flocks))
	}
	if c.hooks.CommandsDrain != nil {
		c.hooks.CommandsDrain(drained)
	}
	c.eventLog.Emit(Event{Type: EventTick, Tick: c.tickCount, Payload: TickPayload{
		AgentCount: len(c.states),
		FlockCount: len(c.flocks),
		Commands:   drained,
		DurationNs: dur.Nanoseconds(),
	}})
}

// applyPatches writes the previous tick's results into the canonical
// movestates and settles blocker bookkeeping for state transitions.
func (c *Core) applyPatches() {
	for i := range c.patches {
		p := &c.patches[i]
		ms := c.states[p.ms.UID]
		if ms == nil {
			continue // removed while the work was in flight
		}

		wasBlocking := ms.Blocking
		lastStopPos, lastStopRadius := ms.LastStopPos, ms.LastStopRadius
		*ms = p.ms
		ms.Blocking = wasBlocking
		ms.LastStopPos, ms.LastStopRadius = lastStopPos, lastStopRadius

		wantBlock := ms.State == StateArrived || ms.State == StateWaiting || ms.State == StateTurning
		if wantBlock && !ms.Blocking {
			c.blockAgent(ms, ms.NextPos)
		} else if !wantBlock && ms.Blocking {
			c.unblockAgent(ms)
		}

		if ms.State != p.oldState {
			c.eventLog.Emit(Event{Type: EventStateChange, Tick: c.tickCount, UID: ms.UID,
				Payload: StatePayload{From: p.oldState.String(), To: ms.State.String()}})
			if ms.State == StateArrived {
				c.eventLog.Emit(Event{Type: EventArrive, Tick: c.tickCount, UID: ms.UID})
			}
		}
	}
	c.patches = nil
}

// blockAgent registers the agent's footprint as a dynamic blocker.
func (c *Core) blockAgent(ms *Movestate, pos nav.Vec2) {
	if ms.Blocking {
		return
	}
	c.navData.BlockTiles(ms.Layer, pos, ms.Radius)
	c.navData.OccupyTiles(ms.Layer, ms.Faction, pos, ms.Radius, +1)
	ms.Blocking = true
	ms.LastStopPos = pos
	ms.LastStopRadius = ms.Radius
}

// unblockAgent releases the agent's blockers at its last stop anchor.
func (c *Core) unblockAgent(ms *Movestate) {
	if !ms.Blocking {
		return
	}
	c.navData.UnblockTiles(ms.Layer, ms.LastStopPos, ms.LastStopRadius)
	c.navData.OccupyTiles(ms.Layer, ms.Faction, ms.LastStopPos, ms.LastStopRadius, -1)
	ms.Blocking = false
}

// collectWork gathers the inputs for every agent the tick must advance.
func (c *Core) collectWork() []workItem {
	items := make([]workItem, 0, len(c.states))
	for uid, ms := range c.states {
		if ms.State == StateArrived {
			continue
		}

		it := workItem{uid: uid, ms: *ms}

		pos := ms.NextPos
		it.dyn, it.stat, it.dynVel = c.gs.neighbours(uid, pos, ClearpathNeighbourRadius)

		if fl := c.flockOf(uid); fl != nil {
			it.hasFlock = true
			it.flockTarget = fl.target
			it.destTile = fl.destTile
			it.flockMates = fl.ents
			it.hasDestLOS = c.destLOS(ms.Layer, fl.destTile, pos)
		}

		if f := c.formations[uid]; f != nil {
			if cl := f.CellAt(uid); cl != nil && cl.State == CellOccupied {
				it.hasCell = true
				it.cellPos = cl.Pos
				it.arrival = f.Arrival(uid)
				it.formDir = f.Orientation
			}
		}

		switch ms.State {
		case StateSurroundEntity:
			if p, ok := c.gs.pos(ms.SurroundTarget); ok {
				it.targetPos, it.targetOK = p, true
				it.targetRadius = c.gs.units[c.gs.byUID[ms.SurroundTarget]].Radius
			}
		case StateEnterEntityRange:
			if p, ok := c.gs.pos(ms.EnterRangeTarget); ok {
				it.targetPos, it.targetOK = p, true
			}
		}

		items = append(items, it)
	}
	return items
}

// publishQuery refreshes the snapshot-consistent query table.
func (c *Core) publishQuery() {
	q := make(map[uint32]QueryState, len(c.states))
	fv := make(map[uint32]nav.Coord)

	for uid, ms := range c.states {
		qs := QueryState{
			Pos:      ms.NextPos,
			PrevPos:  ms.PrevPos,
			Rot:      ms.NextRot,
			State:    ms.State,
			Velocity: ms.Velocity,
			MaxSpeed: ms.MaxSpeed,
			Surround: ms.SurroundTarget,
			Blocking: ms.Blocking,
		}
		if fl := c.flockOf(uid); fl != nil {
			qs.Dest = fl.target
			qs.HasDest = true
			qs.Attack = fl.attack
		}
		q[uid] = qs

		if f := c.formations[uid]; f != nil {
			if coord, ok := f.AssignedCell(uid); ok {
				fv[uid] = coord
			}
		}
	}

	c.queryMu.Lock()
	c.query = q
	c.formationsView = fv
	c.queryMu.Unlock()
}

// clampToMap keeps a position strictly inside the map bounds.
func (c *Core) clampToMap(p nav.Vec2) nav.Vec2 {
	res := c.navData.Res
	minX, minZ := c.navData.MapPos.X, c.navData.MapPos.Z
	maxX := minX + res.MapWidth() - res.TileSide/2
	maxZ := minZ + res.MapHeight() - res.TileSide/2
	if p.X < minX {
		p.X = minX
	}
	if p.X > maxX {
		p.X = maxX
	}
	if p.Z < minZ {
		p.Z = minZ
	}
	if p.Z > maxZ {
		p.Z = maxZ
	}
	return p
}

// =============================================================================
// Field access helpers (worker-safe: the navigation data is quiescent
// for the duration of the compute phase; cache lookups are concurrent)
// =============================================================================

// routeTo returns the portal route from the chunk to the destination,
// memoized for the tick.
func (c *Core) routeTo(layer nav.Layer, from TileLike, dest nav.TileDesc) []nav.PortalHop {
	key := routeKey{layer: layer, from: from.Chunk(), dest: dest}
	sc := c.scratch

	sc.mu.Lock()
	hops, ok := sc.routes[key]
	sc.mu.Unlock()
	if ok {
		return hops
	}

	hops, err := c.navData.Route(layer, from.Desc(), dest)
	if err != nil {
		hops = nil
	}
	sc.mu.Lock()
	sc.routes[key] = hops
	sc.mu.Unlock()
	return hops
}

// TileLike lets routeTo accept a plain descriptor.
type TileLike nav.TileDesc

func (t TileLike) Chunk() nav.Coord   { return nav.TileDesc(t).Chunk() }
func (t TileLike) Desc() nav.TileDesc { return nav.TileDesc(t) }

// flowDirTo returns the flow direction steering from pos toward the
// destination tile: the tile-target field when pos shares the
// destination's chunk, otherwise the portal-target field for the next
// route hop. A zero vector means no path this tick.
func (c *Core) flowDirTo(layer nav.Layer, pos nav.Vec2, dest nav.TileDesc) nav.Vec2 {
	res := c.navData.Res
	td, ok := nav.DescForPoint(res, c.navData.MapPos, pos)
	if !ok {
		return nav.Vec2{}
	}

	// Recovery path: standing on an impassable tile.
	ch := c.navData.ChunkForDesc(layer, td)
	if ch != nil && !ch.Passable(td.TileR, td.TileC) {
		if f := c.builder.BuildToNearestPathable(layer, td.Chunk(), td.Tile()); f != nil {
			return f.At(td.TileR, td.TileC).Vec()
		}
		return nav.Vec2{}
	}

	var id nav.FieldID
	var tgt nav.Target
	var deps []nav.Coord

	if td.Chunk() == dest.Chunk() {
		tgt = nav.Target{Kind: nav.TargetTile, Tile: dest}
		id = nav.MakeFieldID(layer, td.Chunk(), tgt)
		deps = []nav.Coord{td.Chunk()}
	} else {
		hops := c.routeTo(layer, TileLike(td), dest)
		var hop *nav.PortalHop
		for i := range hops {
			if hops[i].Chunk == td.Chunk() {
				hop = &hops[i]
				break
			}
		}
		if hop == nil {
			return nav.Vec2{}
		}
		p := &ch.Portals[hop.PortalIdx]
		tgt = nav.Target{
			Kind:     nav.TargetPortal,
			Portal:   p,
			PortalIx: hop.PortalIdx,
			PortIID:  hop.FromIID,
			NextIID:  hop.ToIID,
		}
		id = nav.MakeFieldID(layer, td.Chunk(), tgt)
		deps = []nav.Coord{td.Chunk(), p.PeerChunk}
	}

	f, err := c.cache.GetOrBuild(id, deps, func() (fieldcache.Field, error) {
		start := time.Now()
		flow := c.builder.BuildFlowField(id, tgt)
		if c.hooks.FieldBuild != nil {
			c.hooks.FieldBuild(tgt.Kind.String(), time.Since(start))
		}
		if flow == nil {
			return nil, nil
		}
		return flow, nil
	})
	if err != nil || f == nil {
		return nav.Vec2{}
	}
	return f.(*field.FlowField).At(td.TileR, td.TileC).Vec()
}

// seekFlowDir returns the flow direction of the ephemeral enemy- or
// entity-seek field for the agent's chunk, built at most once per tick
// per id.
func (c *Core) seekFlowDir(layer nav.Layer, pos nav.Vec2, tgt nav.Target) nav.Vec2 {
	td, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, pos)
	if !ok {
		return nav.Vec2{}
	}
	id := nav.MakeFieldID(layer, td.Chunk(), tgt)
	sc := c.scratch

	sc.mu.Lock()
	f, have := sc.seek[id]
	sc.mu.Unlock()
	if !have {
		start := time.Now()
		f = c.builder.BuildFlowField(id, tgt)
		if c.hooks.FieldBuild != nil {
			c.hooks.FieldBuild(tgt.Kind.String(), time.Since(start))
		}
		sc.mu.Lock()
		sc.seek[id] = f
		sc.mu.Unlock()
	}
	if f == nil {
		return nav.Vec2{}
	}
	return f.At(td.TileR, td.TileC).Vec()
}

// destLOS reports whether the agent at pos has line of sight to the
// destination tile, consulting the cached LOS fields of the destination
// chunk and, for neighbouring chunks, the edge-inheriting field.
func (c *Core) destLOS(layer nav.Layer, dest nav.TileDesc, pos nav.Vec2) bool {
	td, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, pos)
	if !ok {
		return false
	}

	destChunk := dest.Chunk()
	destLOSField := func() *field.LOSField {
		id := nav.MakeLOSFieldID(layer, destChunk, dest)
		f, err := c.cache.GetOrBuild(id, []nav.Coord{destChunk}, func() (fieldcache.Field, error) {
			los := c.builder.BuildLOS(layer, destChunk, dest, nil, nav.Coord{})
			if los == nil {
				return nil, nil
			}
			return los, nil
		})
		if err != nil || f == nil {
			return nil
		}
		return f.(*field.LOSField)
	}

	if td.Chunk() == destChunk {
		if los := destLOSField(); los != nil {
			return los.Visible(td.TileR, td.TileC)
		}
		return false
	}

	dr := td.ChunkR - dest.ChunkR
	dc := td.ChunkC - dest.ChunkC
	if dr*dr+dc*dc != 1 {
		return false // beyond the adjacent ring; no LOS tracking
	}

	prev := destLOSField()
	if prev == nil {
		return false
	}
	id := nav.MakeLOSFieldID(layer, td.Chunk(), dest)
	f, err := c.cache.GetOrBuild(id, []nav.Coord{td.Chunk(), destChunk}, func() (fieldcache.Field, error) {
		los := c.builder.BuildLOS(layer, td.Chunk(), dest, prev, destChunk)
		if los == nil {
			return nil, nil
		}
		return los, nil
	})
	if err != nil || f == nil {
		return false
	}
	return f.(*field.LOSField).Visible(td.TileR, td.TileC)
}
