package residency

import (
	"testing"

	"github.com/Voskan/rvjit/internal/directory"
)

func newEntry(pc uint64) *directory.Entry {
	return &directory.Entry{PC: pc, Compiled: true}
}

func TestQueueAdmitsUntilFull(t *testing.T) {
	q := New(Config{Max: 2, Alpha: DefaultAlpha})
	a, b := newEntry(1), newEntry(2)

	if hit := q.OnNativeExecute(a, 1); hit {
		t.Fatalf("first admission reported a hit")
	}
	if hit := q.OnNativeExecute(b, 2); hit {
		t.Fatalf("second admission reported a hit")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
}

func TestQueueReportsHitOnReExecution(t *testing.T) {
	q := New(Config{Max: 4, Alpha: DefaultAlpha})
	a := newEntry(1)

	if hit := q.OnNativeExecute(a, 1); hit {
		t.Fatalf("first admission reported a hit")
	}
	if hit := q.OnNativeExecute(a, 2); !hit {
		t.Fatalf("re-execution of a resident entry should report a hit")
	}
}

func TestQueueEvictsLowestPriorityAtCapacity(t *testing.T) {
	// Q=2: admit 1 and 2, then drive 1's priority up via frequent reuse
	// while 2 never reoccurs, so that a fresh entry 3 evicts 2, not 1.
	q := New(Config{Max: 2, Alpha: DefaultAlpha})
	e1, e2, e3 := newEntry(1), newEntry(2), newEntry(3)

	q.OnNativeExecute(e1, 1)
	q.OnNativeExecute(e2, 2)
	for tick := uint64(3); tick < 20; tick++ {
		q.OnNativeExecute(e1, tick) // tiny reuse distance -> high Δ each time
	}

	if hit := q.OnNativeExecute(e3, 20); hit {
		t.Fatalf("admitting a brand-new entry should never report a hit")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (still bounded by Max)", q.Len())
	}
	if e2.InDRAM {
		t.Fatalf("evicted entry 2 should have InDRAM cleared")
	}
	if !e3.InDRAM {
		t.Fatalf("newly admitted entry 3 should have InDRAM set")
	}

	snap := q.Snapshot()
	found2 := false
	for _, e := range snap {
		if e.PC == 2 {
			found2 = true
		}
	}
	if found2 {
		t.Fatalf("entry 2 should no longer be resident, snapshot = %+v", snap)
	}
}

func TestAttenuateBlendsAndResetsPeriod(t *testing.T) {
	q := New(Config{Max: 4, Alpha: 0.5})
	e := newEntry(1)
	q.OnNativeExecute(e, 1)
	before := e.Priority
	periodBefore := e.PeriodPriority
	if periodBefore == 0 {
		t.Fatalf("period priority should be non-zero after a native execution")
	}

	q.Attenuate()

	want := 0.5*before + 0.5*periodBefore
	if e.Priority != want {
		t.Fatalf("Priority after attenuate = %v, want %v", e.Priority, want)
	}
	if e.PeriodPriority != 0 {
		t.Fatalf("PeriodPriority after attenuate = %v, want 0", e.PeriodPriority)
	}
}

func TestHeapQueueMatchesQueueObservableOrdering(t *testing.T) {
	q := New(Config{Max: 3, Alpha: DefaultAlpha})
	h := NewHeap(Config{Max: 3, Alpha: DefaultAlpha})

	entriesQ := []*directory.Entry{newEntry(1), newEntry(2), newEntry(3), newEntry(4)}
	entriesH := []*directory.Entry{newEntry(1), newEntry(2), newEntry(3), newEntry(4)}

	ticks := []uint64{1, 2, 3, 4, 10, 11, 2, 20}
	pcIdx := []int{0, 1, 2, 0, 3, 0, 1, 0}

	for i, tick := range ticks {
		q.OnNativeExecute(entriesQ[pcIdx[i]], tick)
		h.OnNativeExecute(entriesH[pcIdx[i]], tick)
	}

	snapQ, snapH := q.Snapshot(), h.Snapshot()
	if len(snapQ) != len(snapH) {
		t.Fatalf("len mismatch: queue=%d heap=%d", len(snapQ), len(snapH))
	}
	for i := range snapQ {
		if snapQ[i].PC != snapH[i].PC {
			t.Fatalf("ordering mismatch at %d: queue pc=%d heap pc=%d", i, snapQ[i].PC, snapH[i].PC)
		}
	}
}
