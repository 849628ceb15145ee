package fieldcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warfront/internal/nav"
)

type fakeField struct{ size int64 }

func (f *fakeField) SizeBytes() int64 { return f.size }

func tileID(chunkR, chunkC int) nav.FieldID {
	return nav.MakeFieldID(nav.LayerGround1x1, nav.Coord{R: chunkR, C: chunkC}, nav.Target{
		Kind: nav.TargetTile,
		Tile: nav.TileDesc{ChunkR: chunkR, ChunkC: chunkC, TileR: 3, TileC: 3},
	})
}

func TestGetOrBuildCachesResult(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := tileID(0, 0)
	builds := 0
	build := func() (Field, error) {
		builds++
		return &fakeField{size: 64}, nil
	}

	f1, err := c.GetOrBuild(id, []nav.Coord{{R: 0, C: 0}}, build)
	if err != nil || f1 == nil {
		t.Fatalf("first build: %v %v", f1, err)
	}
	f2, err := c.GetOrBuild(id, []nav.Coord{{R: 0, C: 0}}, build)
	if err != nil || f2 != f1 {
		t.Fatalf("second lookup rebuilt: %v %v", f2, err)
	}
	if builds != 1 {
		t.Errorf("build ran %d times, want 1", builds)
	}
}

// TestSingleBuildUnderContention checks the at-most-one-concurrent-build
// guarantee: many goroutines racing on a cold id share one build.
func TestSingleBuildUnderContention(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := tileID(1, 1)
	var builds atomic.Int32
	build := func() (Field, error) {
		builds.Add(1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return &fakeField{size: 64}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := c.GetOrBuild(id, []nav.Coord{{R: 1, C: 1}}, build)
			if err != nil || f == nil {
				t.Errorf("concurrent build failed: %v %v", f, err)
			}
		}()
	}
	wg.Wait()

	if n := builds.Load(); n != 1 {
		t.Errorf("build ran %d times under contention, want 1", n)
	}
}

func TestInvalidateDropsDependents(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	idA := tileID(0, 0)
	idB := tileID(2, 2)
	deps := func(r, cc int) []nav.Coord { return []nav.Coord{{R: r, C: cc}} }
	mk := func() (Field, error) { return &fakeField{size: 64}, nil }

	c.GetOrBuild(idA, deps(0, 0), mk)
	c.GetOrBuild(idB, deps(2, 2), mk)

	c.Invalidate(nav.Coord{R: 0, C: 0}, nav.LayerGround1x1)

	if _, ok := c.Get(idA); ok {
		t.Error("invalidated entry still cached")
	}
	if _, ok := c.Get(idB); !ok {
		t.Error("unrelated entry dropped by invalidation")
	}

	// Invalidating a different layer must not touch the entry.
	c.Invalidate(nav.Coord{R: 2, C: 2}, nav.LayerWater)
	if _, ok := c.Get(idB); !ok {
		t.Error("entry dropped by a different layer's invalidation")
	}
}

func TestFlushLayer(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	mk := func() (Field, error) { return &fakeField{size: 64}, nil }
	idA := tileID(0, 0)
	idWater := nav.MakeFieldID(nav.LayerWater, nav.Coord{R: 0, C: 0}, nav.Target{
		Kind: nav.TargetTile,
		Tile: nav.TileDesc{TileR: 3, TileC: 3},
	})

	c.GetOrBuild(idA, []nav.Coord{{R: 0, C: 0}}, mk)
	c.GetOrBuild(idWater, []nav.Coord{{R: 0, C: 0}}, mk)

	c.FlushLayer(nav.LayerGround1x1)
	if _, ok := c.Get(idA); ok {
		t.Error("flushed layer entry still cached")
	}
	if _, ok := c.Get(idWater); !ok {
		t.Error("other layer's entry dropped by flush")
	}
}

func TestNilBuildNotCached(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	id := tileID(3, 3)
	builds := 0
	mk := func() (Field, error) { builds++; return nil, nil }

	if f, err := c.GetOrBuild(id, nil, mk); f != nil || err != nil {
		t.Fatalf("nil build returned %v %v", f, err)
	}
	c.GetOrBuild(id, nil, mk)
	if builds != 2 {
		t.Errorf("no-field result was cached (builds=%d)", builds)
	}
}
