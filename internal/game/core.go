// Package game implements the movement simulation core: per-agent
// movestates, flocks, formations, the command queue and the fixed-rate
// movement tick that drives them.
//
// A single Core value replaces what a scattering of process-wide
// singletons would be: the canonical simulation state is owned by the
// tick goroutine, external callers talk to it through the deferred
// command queue and snapshot-consistent queries.
package game

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"warfront/internal/config"
	"warfront/internal/game/spatial"
	"warfront/internal/nav"
	"warfront/internal/nav/field"
	"warfront/internal/nav/fieldcache"
)

// Core is the navigation and movement simulation. Construct with New,
// then Start to begin ticking; all mutating calls enqueue commands that
// apply at the next tick boundary.
type Core struct {
	cfg config.MovementConfig
	log *logrus.Entry

	navData *nav.Data
	cache   *fieldcache.Cache
	builder *field.Builder

	// Canonical simulation state; owned by the tick goroutine once
	// Start has been called.
	states     map[uint32]*Movestate
	flocks     []*flock
	formations map[uint32]*Formation // keyed by member uid

	cmds      *commandQueue
	diplomacy [nav.MaxFactions][nav.MaxFactions]bool
	fogFn     func(faction int, pos nav.Vec2) bool

	snapGrid *spatial.UnitGrid
	gs       *gamestate
	scratch  *tickScratch
	patches  []movePatch

	// Published query snapshot, replaced wholesale each tick.
	queryMu        sync.RWMutex
	query          map[uint32]QueryState
	formationsView map[uint32]nav.Coord

	clickMove     bool
	attackOnClick bool

	eventLog *EventLog
	backend  VelocityBackend
	hooks    Hooks

	mu        sync.Mutex
	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	tickCount uint64
}

// Hooks are optional observability callbacks, wired to prometheus by the
// ops layer. All fields are nil-safe.
type Hooks struct {
	TickDuration  func(time.Duration)
	FieldBuild    func(kind string, d time.Duration)
	CommandDrop   func()
	AgentCount    func(int)
	FlockCount    func(int)
	CacheHit      func()
	CacheMiss     func()
	CommandsDrain func(int)
}

// QueryState is the snapshot-consistent view of one agent exposed to
// queries, refreshed once per tick.
type QueryState struct {
	Pos      nav.Vec2
	PrevPos  nav.Vec2
	Rot      nav.Quat
	State    MoveState
	Velocity nav.Vec2
	MaxSpeed float64
	Dest     nav.Vec2
	HasDest  bool
	Attack   bool
	Surround uint32
	Blocking bool
}

// New builds a movement core over the navigation data.
func New(cfg config.MovementConfig, data *nav.Data, log *logrus.Logger) (*Core, error) {
	cache, err := fieldcache.New(cfg.FieldCacheBytes)
	if err != nil {
		return nil, err
	}

	c := &Core{
		cfg:            cfg,
		log:            log.WithField("sys", "move"),
		navData:        data,
		cache:          cache,
		builder:        field.NewBuilder(data),
		states:         make(map[uint32]*Movestate),
		formations:     make(map[uint32]*Formation),
		cmds:           newCommandQueue(cfg.CommandQueueSize),
		query:          make(map[uint32]QueryState),
		formationsView: make(map[uint32]nav.Coord),
		clickMove:      cfg.ClickMove,
		attackOnClick:  cfg.AttackOnClick,
		eventLog:       NewEventLog(),
		stopChan:       make(chan struct{}),
	}
	c.snapGrid = spatial.NewUnitGrid(data.MapPos, data.Res.MapWidth(), data.Res.MapHeight(), ClearpathNeighbourRadius)
	c.backend = selectBackend(cfg.Backend, c.log)

	data.SetDirtyHandler(func(co nav.Coord, layer nav.Layer) {
		cache.Invalidate(co, layer)
	})
	return c, nil
}

// SetHooks installs observability callbacks. Call before Start.
func (c *Core) SetHooks(h Hooks) {
	c.hooks = h
	c.cmds.dropped = h.CommandDrop
	c.cache.SetCounters(h.CacheHit, h.CacheMiss)
}

// SetFog installs the fog-of-war visibility collaborator. Call before
// Start.
func (c *Core) SetFog(fn func(faction int, pos nav.Vec2) bool) { c.fogFn = fn }

// SetDiplomacy marks two factions hostile or friendly. Symmetric.
func (c *Core) SetDiplomacy(facA, facB int, enemies bool) {
	if facA < 0 || facA >= nav.MaxFactions || facB < 0 || facB >= nav.MaxFactions {
		return
	}
	c.diplomacy[facA][facB] = enemies
	c.diplomacy[facB][facA] = enemies
}

// Start begins the tick loop at the configured rate.
func (c *Core) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.ticker = time.NewTicker(time.Second / time.Duration(c.cfg.TickRate))
	go func() {
		for {
			select {
			case <-c.ticker.C:
				// A tick that overruns its budget leaves the next event
				// queued on the ticker channel; the loop never overlaps
				// two ticks.
				c.Tick()
			case <-c.stopChan:
				return
			}
		}
	}()

	c.log.WithField("tick_rate", c.cfg.TickRate).Info("movement core started")
}

// Stop halts the tick loop.
func (c *Core) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.stopChan)
	c.eventLog.Stop()
	c.log.Info("movement core stopped")
}

// =============================================================================
// COMMANDS (deferred; applied at the next tick boundary)
// =============================================================================

// Add registers an agent at the position. The agent starts Arrived and
// blocking.
func (c *Core) Add(uid uint32, pos nav.Vec2, radius float64, faction int) {
	c.cmds.push(command{op: cmdAdd, uid: uid, pos: pos, scalar: radius, newFaction: faction})
}

// Remove deregisters an agent, stopping its motion and releasing its
// blockers.
func (c *Core) Remove(uid uint32) {
	c.cmds.push(command{op: cmdRemove, uid: uid})
}

// StopAgent halts an agent in place. Idempotent.
func (c *Core) StopAgent(uid uint32) {
	c.cmds.push(command{op: cmdStop, uid: uid})
}

// SetDest orders an agent toward the destination. attack marks the move
// as an attack-move.
func (c *Core) SetDest(uid uint32, xz nav.Vec2, attack bool) {
	c.cmds.push(command{op: cmdSetDest, uid: uid, pos: xz, flag: attack})
}

// SetChangeDirection rotates a stationary agent toward the orientation.
func (c *Core) SetChangeDirection(uid uint32, dir nav.Quat) {
	c.cmds.push(command{op: cmdChangeDirection, uid: uid, quat: dir})
}

// SetEnterRange moves the agent until within range of the (possibly
// moving) target entity.
func (c *Core) SetEnterRange(uid, target uint32, rng float64) {
	c.cmds.push(command{op: cmdSetEnterRange, uid: uid, targetUID: target, scalar: rng})
}

// SetSeekEnemies sends the agent toward the nearest visible enemies.
func (c *Core) SetSeekEnemies(uid uint32) {
	c.cmds.push(command{op: cmdSetSeekEnemies, uid: uid})
}

// SetSurroundEntity sends the agent to surround the target entity.
func (c *Core) SetSurroundEntity(uid, target uint32) {
	c.cmds.push(command{op: cmdSetSurroundEntity, uid: uid, targetUID: target})
}

// UpdatePos teleports an agent (external correction, e.g. a script).
func (c *Core) UpdatePos(uid uint32, xz nav.Vec2) {
	c.cmds.push(command{op: cmdUpdatePos, uid: uid, pos: xz})
}

// UpdateFactionID rebinds an agent's faction occupancy.
func (c *Core) UpdateFactionID(uid uint32, oldFaction, newFaction int) {
	c.cmds.push(command{op: cmdUpdateFactionID, uid: uid, oldFaction: oldFaction, newFaction: newFaction})
}

// SetDying marks an agent as playing its death animation; dying agents
// stop registering as seek targets.
func (c *Core) SetDying(uid uint32, dying bool) {
	c.cmds.push(command{op: cmdSetDying, uid: uid, flag: dying})
}

// UpdateSelectionRadius resizes an agent's footprint.
func (c *Core) UpdateSelectionRadius(uid uint32, r float64) {
	c.cmds.push(command{op: cmdUpdateSelectionRadius, uid: uid, scalar: r})
}

// SetMaxSpeed changes an agent's speed cap.
func (c *Core) SetMaxSpeed(uid uint32, v float64) {
	c.cmds.push(command{op: cmdSetMaxSpeed, uid: uid, scalar: v})
}

// ArrangeInFormation moves the selection into a formation anchored at
// target. orientation may be nil to derive it from the selection
// centroid.
func (c *Core) ArrangeInFormation(ents []uint32, target nav.Vec2, orientation *nav.Vec2, ftype FormationType) {
	cmd := command{op: cmdMakeFlocks, ents: append([]uint32(nil), ents...), pos: target, formation: ftype}
	if orientation != nil {
		cmd.orientation = *orientation
		cmd.hasOrient = true
	}
	c.cmds.push(cmd)
}

// AttackInFormation is ArrangeInFormation with the attack flag set.
func (c *Core) AttackInFormation(ents []uint32, target nav.Vec2, orientation *nav.Vec2, ftype FormationType) {
	cmd := command{op: cmdMakeFlocks, ents: append([]uint32(nil), ents...), pos: target, formation: ftype, flag: true}
	if orientation != nil {
		cmd.orientation = *orientation
		cmd.hasOrient = true
	}
	c.cmds.push(cmd)
}

// MakeFlocks orders the selection toward the target as one flock, with
// no formation (see ArrangeInFormation and AttackInFormation for that).
func (c *Core) MakeFlocks(ents []uint32, target nav.Vec2, attack bool) {
	c.cmds.push(command{op: cmdMakeFlocks, ents: append([]uint32(nil), ents...), pos: target, flag: attack, formation: FormationNone})
}

// Unblock releases an agent's blockers (the agent is about to move under
// external control).
func (c *Core) Unblock(uid uint32) {
	c.cmds.push(command{op: cmdUnblock, uid: uid})
}

// BlockAt re-registers an agent's blockers at the position.
func (c *Core) BlockAt(uid uint32, pos nav.Vec2) {
	c.cmds.push(command{op: cmdBlockAt, uid: uid, pos: pos})
}

// =============================================================================
// QUERIES (snapshot-consistent; pending commands are snooped where the
// contract requires synchronous visibility)
// =============================================================================

// Still reports whether the agent holds position (Arrived or Waiting).
func (c *Core) Still(uid uint32) bool {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	q, ok := c.query[uid]
	if !ok {
		return true
	}
	return q.State == StateArrived || q.State == StateWaiting
}

// GetDest returns the agent's destination and attack flag, if it has one.
func (c *Core) GetDest(uid uint32) (nav.Vec2, bool, bool) {
	var dest nav.Vec2
	var attack, found bool
	c.cmds.snoop(func(cmd command) bool {
		if cmd.uid == uid && cmd.op == cmdSetDest {
			dest, attack, found = cmd.pos, cmd.flag, true
			return true
		}
		return false
	})
	if found {
		return dest, attack, true
	}

	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	q, ok := c.query[uid]
	if !ok || !q.HasDest {
		return nav.Vec2{}, false, false
	}
	return q.Dest, q.Attack, true
}

// GetSurrounding returns the entity the agent is surrounding, if any.
func (c *Core) GetSurrounding(uid uint32) (uint32, bool) {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	q, ok := c.query[uid]
	if !ok || q.Surround == NoEntity {
		return 0, false
	}
	return q.Surround, true
}

// GetMaxSpeed returns the agent's speed cap. Pending SetMaxSpeed
// commands are visible before the next tick executes.
func (c *Core) GetMaxSpeed(uid uint32) float64 {
	var v float64
	var found bool
	c.cmds.snoop(func(cmd command) bool {
		if cmd.uid == uid && cmd.op == cmdSetMaxSpeed {
			v, found = cmd.scalar, true
			return true
		}
		return false
	})
	if found {
		return v
	}

	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	return c.query[uid].MaxSpeed
}

// Pos returns the agent's position as of the last tick.
func (c *Core) Pos(uid uint32) (nav.Vec2, bool) {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	q, ok := c.query[uid]
	return q.Pos, ok
}

// LerpPos returns the position interpolated between the previous and next
// tick by frac in [0,1]. Render subticks call this between full ticks.
func (c *Core) LerpPos(uid uint32, frac float64) (nav.Vec2, bool) {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	q, ok := c.query[uid]
	if !ok {
		return nav.Vec2{}, false
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return q.PrevPos.Add(q.Pos.Sub(q.PrevPos).Scale(frac)), true
}

// AssignedToCell returns the formation cell coordinate assigned to the
// agent, if it is part of a formation.
func (c *Core) AssignedToCell(uid uint32) (nav.Coord, bool) {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	f, ok := c.formationsView[uid]
	return f, ok
}

// InTargetMode reports whether click-to-move targeting is enabled.
func (c *Core) InTargetMode() bool { return c.clickMove }

// SetClickMove toggles click-to-move targeting.
func (c *Core) SetClickMove(enabled bool) { c.clickMove = enabled }

// AgentCount returns the number of registered agents as of the last tick.
func (c *Core) AgentCount() int {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	return len(c.query)
}

// QuerySnapshot returns a copy of the published per-agent query table,
// for ops surfaces that stream the full simulation state.
func (c *Core) QuerySnapshot() map[uint32]QueryState {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	out := make(map[uint32]QueryState, len(c.query))
	for k, v := range c.query {
		out[k] = v
	}
	return out
}

// NavData exposes the navigation data for the debug/ops surface.
func (c *Core) NavData() *nav.Data { return c.navData }

// StartEventLog begins persisting movement events to the file.
func (c *Core) StartEventLog(path string) error { return c.eventLog.Start(path) }
