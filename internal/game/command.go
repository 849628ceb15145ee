package game

import (
	"sync"

	"warfront/internal/game/spatial"
	"warfront/internal/nav"
)

// cmdOp enumerates the deferred mutating operations applied at tick
// boundaries.
type cmdOp uint8

const (
	cmdAdd cmdOp = iota
	cmdRemove
	cmdStop
	cmdSetDest
	cmdChangeDirection
	cmdSetEnterRange
	cmdSetSeekEnemies
	cmdSetSurroundEntity
	cmdUpdatePos
	cmdUpdateFactionID
	cmdUpdateSelectionRadius
	cmdSetMaxSpeed
	cmdSetDying
	cmdMakeFlocks
	cmdUnblock
	cmdBlockAt
)

// command carries owned copies of user-visible arguments; slices are
// copied at enqueue time so callers may reuse their buffers.
type command struct {
	op  cmdOp
	uid uint32

	pos    nav.Vec2
	quat   nav.Quat
	scalar float64
	flag   bool // attack for SetDest/MakeFlocks

	targetUID  uint32
	oldFaction int
	newFaction int

	ents        []uint32
	formation   FormationType
	orientation nav.Vec2
	hasOrient   bool
}

// commandQueue is the MPSC ring transporting commands onto the simulation
// goroutine, plus a shadow buffer supporting the snoop path: queries that
// need synchronous answers walk the pending commands most-recent-first so
// changes are visible to scripts before the next tick executes.
type commandQueue struct {
	ring *spatial.MPSCRing[command]

	mu      sync.Mutex
	pending []command

	dropped func() // counter hook, nil-safe
}

func newCommandQueue(capacity int) *commandQueue {
	return &commandQueue{ring: spatial.NewMPSCRing[command](capacity)}
}

// push enqueues a command. A saturated ring drops the command the same
// way a precondition error would, silently; the drop counter keeps the
// loss visible to ops.
func (q *commandQueue) push(c command) bool {
	if !q.ring.TryPush(c) {
		if q.dropped != nil {
			q.dropped()
		}
		return false
	}
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
	return true
}

// drain pops every queued command into fn in FIFO order and clears the
// snoop buffer. Called only by the tick goroutine.
func (q *commandQueue) drain(fn func(command)) int {
	n := q.ring.Drain(fn)
	q.mu.Lock()
	q.pending = q.pending[:0]
	q.mu.Unlock()
	return n
}

// snoop walks the pending commands most-recent-first until fn returns
// true, and reports whether it did.
func (q *commandQueue) snoop(fn func(command) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.pending) - 1; i >= 0; i-- {
		if fn(q.pending[i]) {
			return true
		}
	}
	return false
}
