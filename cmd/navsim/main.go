// navsim runs the movement core headlessly through a handful of canned
// scenarios and reports whether each behaved: a smoke harness for the
// simulation without any game client attached.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"warfront/internal/config"
	"warfront/internal/game"
	"warfront/internal/maploader"
	"warfront/internal/nav"
)

func main() {
	var scenario string
	flag.StringVar(&scenario, "scenario", "all", "scenario to run: openfield, choke, formation, saveload, all")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	runners := map[string]func(*logrus.Logger) error{
		"openfield": runOpenField,
		"choke":     runChoke,
		"formation": runFormation,
		"saveload":  runSaveLoad,
	}

	names := []string{"openfield", "choke", "formation", "saveload"}
	failed := 0
	for _, name := range names {
		if scenario != "all" && scenario != name {
			continue
		}
		if err := runners[name](log); err != nil {
			fmt.Printf("FAIL %-10s %v\n", name, err)
			failed++
		} else {
			fmt.Printf("ok   %s\n", name)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// newCore builds a core over a map of the given chunk layout; nil terrain
// gives open ground.
func newCore(log *logrus.Logger, chunksW, chunksH int, terrain []string) (*game.Core, *nav.Data, error) {
	mf := &maploader.MapFile{
		Name:    "scenario",
		ChunksW: chunksW, ChunksH: chunksH,
		TilesW: 16, TilesH: 16,
		TileSide: 1,
		Terrain:  terrain,
	}
	data, err := maploader.Build(mf)
	if err != nil {
		return nil, nil, err
	}
	cfg := config.DefaultMovement()
	core, err := game.New(cfg, data, log)
	if err != nil {
		return nil, nil, err
	}
	return core, data, nil
}

func ticks(core *game.Core, n int) {
	for i := 0; i < n; i++ {
		core.Tick()
	}
}

// runOpenField drives a single agent across an open map and checks it
// arrives.
func runOpenField(log *logrus.Logger) error {
	core, _, err := newCore(log, 4, 4, nil)
	if err != nil {
		return err
	}

	const uid = 1
	core.Add(uid, nav.Vec2{X: 5, Z: 5}, 1, 0)
	core.Tick()
	core.SetMaxSpeed(uid, 10)
	core.SetDest(uid, nav.Vec2{X: 55, Z: 55}, false)

	ticks(core, 600)

	pos, _ := core.Pos(uid)
	if !core.Still(uid) {
		return fmt.Errorf("agent still moving at %v", pos)
	}
	if d := pos.Sub(nav.Vec2{X: 55, Z: 55}).Len(); d > 3 {
		return fmt.Errorf("stopped %0.1f away from target", d)
	}
	return nil
}

// runChoke funnels ten agents through a one-tile corridor.
func runChoke(log *logrus.Logger) error {
	// Two rooms joined by a single-tile gap in a wall down the middle.
	var rows []string
	for r := 0; r < 32; r++ {
		wall := "#"
		if r == 16 {
			wall = "."
		}
		rows = append(rows, strings.Repeat(".", 15)+wall+strings.Repeat(".", 16))
	}
	core, _, err := newCore(log, 2, 2, rows)
	if err != nil {
		return err
	}

	var uids []uint32
	for i := 0; i < 10; i++ {
		uid := uint32(i + 1)
		uids = append(uids, uid)
		core.Add(uid, nav.Vec2{X: 5, Z: float64(8 + i*2)}, 0.5, 0)
	}
	core.Tick()
	for _, uid := range uids {
		core.SetMaxSpeed(uid, 8)
	}
	core.MakeFlocks(uids, nav.Vec2{X: 26, Z: 16}, false)

	ticks(core, 2000)

	arrived := 0
	for _, uid := range uids {
		pos, _ := core.Pos(uid)
		if core.Still(uid) && pos.X > 16 {
			arrived++
		}
	}
	if arrived < 8 {
		return fmt.Errorf("only %d/%d agents crossed the choke", arrived, len(uids))
	}
	return nil
}

// runFormation arranges 25 agents into a rank and checks that each gets a
// distinct cell and that at least 20 settle.
func runFormation(log *logrus.Logger) error {
	core, _, err := newCore(log, 4, 4, nil)
	if err != nil {
		return err
	}

	var uids []uint32
	for i := 0; i < 25; i++ {
		uid := uint32(i + 1)
		uids = append(uids, uid)
		core.Add(uid, nav.Vec2{X: float64(5 + (i%5)*2), Z: float64(5 + (i/5)*2)}, 0.5, 0)
	}
	core.Tick()
	for _, uid := range uids {
		core.SetMaxSpeed(uid, 8)
	}
	orient := nav.Vec2{X: 1, Z: 0}
	core.ArrangeInFormation(uids, nav.Vec2{X: 40, Z: 40}, &orient, game.FormationRank)
	core.Tick()

	cells := make(map[nav.Coord]bool)
	for _, uid := range uids {
		coord, ok := core.AssignedToCell(uid)
		if !ok {
			return fmt.Errorf("agent %d has no cell", uid)
		}
		if cells[coord] {
			return fmt.Errorf("cell %v assigned twice", coord)
		}
		cells[coord] = true
	}

	ticks(core, 1500)
	settled := 0
	for _, uid := range uids {
		if core.Still(uid) {
			settled++
		}
	}
	if settled < 20 {
		return fmt.Errorf("only %d/25 agents settled into formation", settled)
	}
	return nil
}

// runSaveLoad round-trips the simulation through the savefile.
func runSaveLoad(log *logrus.Logger) error {
	core, _, err := newCore(log, 4, 4, nil)
	if err != nil {
		return err
	}

	for i := 0; i < 10; i++ {
		core.Add(uint32(i+1), nav.Vec2{X: float64(5 + i), Z: 5}, 0.5, 0)
	}
	core.Tick()
	for i := 0; i < 10; i++ {
		core.SetMaxSpeed(uint32(i+1), 8)
	}
	core.MakeFlocks([]uint32{1, 2, 3}, nav.Vec2{X: 50, Z: 50}, false)
	ticks(core, 20)

	var buf1 bytes.Buffer
	if err := core.Save(&buf1); err != nil {
		return err
	}
	if err := core.Load(bytes.NewReader(buf1.Bytes())); err != nil {
		return err
	}
	var buf2 bytes.Buffer
	if err := core.Save(&buf2); err != nil {
		return err
	}
	if !bytes.Equal(buf1.Bytes(), buf2.Bytes()) {
		return fmt.Errorf("save/load round trip not byte-identical (%d vs %d bytes)", buf1.Len(), buf2.Len())
	}

	pos, ok := core.Pos(1)
	if !ok || math.IsNaN(pos.X) {
		return fmt.Errorf("agent 1 lost in round trip")
	}
	return nil
}
