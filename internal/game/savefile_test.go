package game

import (
	"bytes"
	"testing"

	"warfront/internal/nav"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	c := newTestCore(t)

	// Three flocks of ten agents each, in a mix of states.
	var all []uint32
	for i := 0; i < 30; i++ {
		uid := uint32(i + 1)
		all = append(all, uid)
		c.Add(uid, nav.Vec2{X: float64(3 + (i%10)*2), Z: float64(3 + (i/10)*4)}, 0.5, i%3)
	}
	c.Tick()

	c.MakeFlocks(all[0:10], nav.Vec2{X: 50, Z: 10}, false)
	c.MakeFlocks(all[10:20], nav.Vec2{X: 50, Z: 30}, true)
	c.MakeFlocks(all[20:30], nav.Vec2{X: 50, Z: 50}, false)
	runTicks(c, 25)
	c.StopAgent(5)
	c.SetChangeDirection(6, nav.DirQuat(nav.Vec2{X: 1, Z: 0}))
	runTicks(c, 2)

	var first bytes.Buffer
	if err := c.Save(&first); err != nil {
		t.Fatalf("save: %v", err)
	}

	before := c.QuerySnapshot()

	// Destroy all state, then load.
	if err := c.Load(bytes.NewReader(first.Bytes())); err != nil {
		t.Fatalf("load: %v", err)
	}

	after := c.QuerySnapshot()
	if len(after) != len(before) {
		t.Fatalf("%d agents after load, want %d", len(after), len(before))
	}
	for uid, b := range before {
		a, ok := after[uid]
		if !ok {
			t.Fatalf("agent %d lost in round trip", uid)
		}
		if a.State != b.State {
			t.Errorf("agent %d state %v -> %v", uid, b.State, a.State)
		}
		if a.Velocity != b.Velocity {
			t.Errorf("agent %d velocity %v -> %v", uid, b.Velocity, a.Velocity)
		}
		if a.Pos != b.Pos {
			t.Errorf("agent %d pos %v -> %v", uid, b.Pos, a.Pos)
		}
		if a.Rot != b.Rot {
			t.Errorf("agent %d rot %v -> %v", uid, b.Rot, a.Rot)
		}
		if a.Blocking != b.Blocking {
			t.Errorf("agent %d blocking %v -> %v", uid, b.Blocking, a.Blocking)
		}
	}

	// Serialize -> clear -> load -> serialize must be byte-identical.
	var second bytes.Buffer
	if err := c.Save(&second); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("round trip not byte-identical: %d vs %d bytes", first.Len(), second.Len())
	}
}

func TestSaveLoadBlockersConsistent(t *testing.T) {
	c := newTestCore(t)
	addAgent(t, c, 1, nav.Vec2{X: 5.5, Z: 5.5}, 1.0, 10)

	td, _ := nav.DescForPoint(c.navData.Res, c.navData.MapPos, nav.Vec2{X: 5.5, Z: 5.5})
	ch := c.navData.ChunkForDesc(nav.LayerGround1x1, td)
	before := ch.BlockerCount(td.TileR, td.TileC)
	if before == 0 {
		t.Fatal("no blockers before save")
	}

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}

	if got := ch.BlockerCount(td.TileR, td.TileC); got != before {
		t.Errorf("blocker count %d after load, want %d", got, before)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	c := newTestCore(t)
	if err := c.Load(bytes.NewReader([]byte("not a savefile"))); err == nil {
		t.Fatal("garbage accepted as savefile")
	}
}
