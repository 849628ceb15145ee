package game

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"warfront/internal/nav"
)

// Savefile layout: a zstd-compressed stream of typed attributes in fixed
// order. The loader drains all pending commands first so the simulation
// is in a known state, then overwrites it wholesale. last_stop_pos and
// last_stop_radius are not persisted; they are reconstructed from the
// loaded position so blocker accounting survives the round trip.
const (
	saveMagic   uint32 = 0x574e4156 // "WNAV"
	saveVersion uint16 = 1
)

var errBadSave = errors.New("game: malformed savefile")

type saveWriter struct {
	w   io.Writer
	err error
}

func (sw *saveWriter) put(v interface{}) {
	if sw.err != nil {
		return
	}
	sw.err = binary.Write(sw.w, binary.LittleEndian, v)
}

func (sw *saveWriter) putVec(v nav.Vec2)  { sw.put(v.X); sw.put(v.Z) }
func (sw *saveWriter) putQuat(q nav.Quat) { sw.put(q.X); sw.put(q.Y); sw.put(q.Z); sw.put(q.W) }

type saveReader struct {
	r   io.Reader
	err error
}

func (sr *saveReader) get(v interface{}) {
	if sr.err != nil {
		return
	}
	sr.err = binary.Read(sr.r, binary.LittleEndian, v)
}

func (sr *saveReader) getVec() nav.Vec2 {
	var v nav.Vec2
	sr.get(&v.X)
	sr.get(&v.Z)
	return v
}

func (sr *saveReader) getQuat() nav.Quat {
	var q nav.Quat
	sr.get(&q.X)
	sr.get(&q.Y)
	sr.get(&q.Z)
	sr.get(&q.W)
	return q
}

// Save serializes the movement state. The core must be quiescent (ticker
// stopped or called from the owning goroutine).
func (c *Core) Save(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	sw := &saveWriter{w: zw}

	sw.put(saveMagic)
	sw.put(saveVersion)
	sw.put(c.clickMove)

	sw.put(uint32(len(c.flocks)))
	for _, fl := range c.flocks {
		uids := make([]uint32, 0, len(fl.ents))
		for uid := range fl.ents {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

		sw.put(uint32(len(uids)))
		for _, uid := range uids {
			sw.put(uid)
		}
		sw.putVec(fl.target)
		sw.put(fl.destID())
		sw.put(fl.attack)
		sw.put(uint8(fl.layer))
		sw.put(int32(fl.faction))
	}

	uids := make([]uint32, 0, len(c.states))
	for uid := range c.states {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	sw.put(uint32(len(uids)))
	for _, uid := range uids {
		ms := c.states[uid]
		sw.put(ms.UID)
		sw.put(uint8(ms.State))
		sw.put(ms.MaxSpeed)
		sw.putVec(ms.Velocity)
		sw.putVec(ms.NextPos)
		sw.putVec(ms.PrevPos)
		sw.putQuat(ms.NextRot)
		sw.putQuat(ms.PrevRot)
		sw.put(ms.Step)
		sw.put(int32(ms.Left))
		sw.put(ms.Blocking)
		sw.put(uint8(ms.WaitPrev))
		sw.put(int32(ms.WaitTicksLeft))
		for i := 0; i < VelHistLen; i++ {
			sw.putVec(ms.VelHist[i])
		}
		sw.put(int32(ms.VelHistIdx))
		sw.put(ms.SurroundTarget)
		sw.putVec(ms.SurroundTargetPrev)
		sw.putVec(ms.SurroundNearestPrev)
		sw.put(ms.UsingSurroundField)
		sw.put(ms.EnterRangeTarget)
		sw.putVec(ms.TargetPrevPos)
		sw.put(ms.TargetRange)
		sw.putQuat(ms.TargetDir)
		sw.put(ms.Radius)
		sw.put(int32(ms.Faction))
		sw.put(uint8(ms.Layer))
	}

	if sw.err != nil {
		return sw.err
	}
	return zw.Close()
}

// Load restores previously serialized movement state. All pending
// commands are applied first to bring the simulation into a known state;
// then the loaded state overwrites it.
func (c *Core) Load(r io.Reader) error {
	c.cmds.drain(c.applyCommand)

	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()
	sr := &saveReader{r: zr}

	var magic uint32
	var version uint16
	sr.get(&magic)
	sr.get(&version)
	if sr.err != nil {
		return sr.err
	}
	if magic != saveMagic || version != saveVersion {
		return fmt.Errorf("%w: bad header", errBadSave)
	}
	sr.get(&c.clickMove)

	// Release every live blocker before dropping the state; the loaded
	// agents re-register below.
	for _, ms := range c.states {
		c.unblockAgent(ms)
	}
	c.states = make(map[uint32]*Movestate)
	c.flocks = nil
	c.formations = make(map[uint32]*Formation)
	c.patches = nil

	var nflocks uint32
	sr.get(&nflocks)
	for i := uint32(0); i < nflocks && sr.err == nil; i++ {
		var nents uint32
		sr.get(&nents)
		fl := &flock{ents: make(map[uint32]struct{}, nents)}
		for j := uint32(0); j < nents; j++ {
			var uid uint32
			sr.get(&uid)
			fl.ents[uid] = struct{}{}
		}
		fl.target = sr.getVec()
		var destID uint64
		sr.get(&destID)
		sr.get(&fl.attack)
		var layer uint8
		sr.get(&layer)
		fl.layer = nav.Layer(layer)
		var faction int32
		sr.get(&faction)
		fl.faction = int(faction)
		if td, ok := nav.DescForPoint(c.navData.Res, c.navData.MapPos, fl.target); ok {
			fl.destTile = td
		}
		c.flocks = append(c.flocks, fl)
	}

	var nagents uint32
	sr.get(&nagents)
	for i := uint32(0); i < nagents && sr.err == nil; i++ {
		ms := &Movestate{}
		var state, waitPrev, layer uint8
		var left, waitLeft, velIdx, faction int32

		sr.get(&ms.UID)
		sr.get(&state)
		sr.get(&ms.MaxSpeed)
		ms.Velocity = sr.getVec()
		ms.NextPos = sr.getVec()
		ms.PrevPos = sr.getVec()
		ms.NextRot = sr.getQuat()
		ms.PrevRot = sr.getQuat()
		sr.get(&ms.Step)
		sr.get(&left)
		sr.get(&ms.Blocking)
		sr.get(&waitPrev)
		sr.get(&waitLeft)
		for j := 0; j < VelHistLen; j++ {
			ms.VelHist[j] = sr.getVec()
		}
		sr.get(&velIdx)
		sr.get(&ms.SurroundTarget)
		ms.SurroundTargetPrev = sr.getVec()
		ms.SurroundNearestPrev = sr.getVec()
		sr.get(&ms.UsingSurroundField)
		sr.get(&ms.EnterRangeTarget)
		ms.TargetPrevPos = sr.getVec()
		sr.get(&ms.TargetRange)
		ms.TargetDir = sr.getQuat()
		sr.get(&ms.Radius)
		sr.get(&faction)
		sr.get(&layer)

		if sr.err != nil {
			break
		}

		ms.State = MoveState(state)
		ms.WaitPrev = MoveState(waitPrev)
		ms.Left = int(left)
		ms.WaitTicksLeft = int(waitLeft)
		ms.VelHistIdx = int(velIdx)
		ms.Faction = int(faction)
		ms.Layer = nav.Layer(layer)

		// Reconstruct the non-persisted stop anchor from the current
		// position so blocker accounting stays consistent.
		ms.LastStopPos = ms.NextPos
		ms.LastStopRadius = ms.Radius

		wasBlocking := ms.Blocking
		ms.Blocking = false
		c.states[ms.UID] = ms
		if wasBlocking {
			c.blockAgent(ms, ms.NextPos)
		}
	}
	if sr.err != nil {
		return sr.err
	}

	c.publishQuery()
	return nil
}
