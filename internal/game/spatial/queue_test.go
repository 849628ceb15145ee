package spatial

import (
	"sync"
	"testing"
)

func TestRingFIFO(t *testing.T) {
	r := NewMPSCRing[int](8)
	for i := 0; i < 5; i++ {
		if !r.TryPush(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := r.TryPop()
		if !ok || v != i {
			t.Fatalf("pop %d = (%d,%v)", i, v, ok)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Error("pop from empty ring succeeded")
	}
}

func TestRingFullRejects(t *testing.T) {
	r := NewMPSCRing[int](4)
	pushed := 0
	for i := 0; i < 10; i++ {
		if r.TryPush(i) {
			pushed++
		}
	}
	if pushed != 4 {
		t.Errorf("pushed %d into a 4-slot ring", pushed)
	}
}

func TestRingWrapsAround(t *testing.T) {
	r := NewMPSCRing[int](4)
	next := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !r.TryPush(round*3 + i) {
				t.Fatal("push failed below capacity")
			}
		}
		for i := 0; i < 3; i++ {
			v, ok := r.TryPop()
			if !ok || v != next {
				t.Fatalf("round %d: pop = (%d,%v), want %d", round, v, ok, next)
			}
			next++
		}
	}
}

// TestRingConcurrentProducers checks that values from racing producers
// are neither lost nor duplicated.
func TestRingConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 500

	r := NewMPSCRing[int](8192)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.TryPush(p*perProducer + i) {
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	n := r.Drain(func(v int) {
		if seen[v] {
			t.Errorf("value %d drained twice", v)
		}
		seen[v] = true
	})
	if n != producers*perProducer {
		t.Errorf("drained %d values, want %d", n, producers*perProducer)
	}
}

func TestDrainOrder(t *testing.T) {
	r := NewMPSCRing[string](8)
	r.TryPush("a")
	r.TryPush("b")
	r.TryPush("c")

	var got []string
	r.Drain(func(s string) { got = append(got, s) })
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("drain order %v", got)
	}
}
