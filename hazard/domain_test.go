package hazard

import (
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
)

type obj struct{ id int }

// trapExhaustion swaps the fatal hook for a panicking one and restores it on
// cleanup, so a test can assert the abort path without dying.
func trapExhaustion(t *testing.T) *int {
	t.Helper()
	old := exhausted
	trips := 0
	exhausted = func(hclog.Logger, int) {
		trips++
		panic("slots exhausted")
	}
	t.Cleanup(func() { exhausted = old })
	return &trips
}

func TestAcquireClaimsDistinctCells(t *testing.T) {
	d := New[obj](4)
	seen := map[*Cell[obj]]bool{}
	for i := 0; i < 4; i++ {
		h := d.Acquire()
		if seen[h.cell] {
			t.Fatalf("cell %p claimed twice", h.cell)
		}
		seen[h.cell] = true
		if h.cell.ptr.Load() != d.reserved {
			t.Error("claimed cell not in reserved state")
		}
	}
}

func TestAcquireExhaustionAborts(t *testing.T) {
	trips := trapExhaustion(t)
	d := New[obj](4)
	for i := 0; i < 4; i++ {
		d.Acquire()
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected abort on fifth acquire")
			}
		}()
		d.Acquire()
	}()
	if *trips != 1 {
		t.Fatalf("exhaustion hook ran %d times, want 1", *trips)
	}
}

func TestReleaseReturnsCellToPool(t *testing.T) {
	d := New[obj](2)
	h1 := d.Acquire()
	h2 := d.Acquire()
	first := h1.cell

	h1.Release()
	if first.ptr.Load() != nil {
		t.Fatal("released cell not free")
	}

	// The linear sweep must find the freed cell again.
	h3 := d.Acquire()
	if h3.cell != first {
		t.Fatalf("expected reclaimed cell %p, got %p", first, h3.cell)
	}
	h2.Release()
	h3.Release()
}

func TestRetireBatchThreshold(t *testing.T) {
	freed := 0
	d := New(4, WithFree[obj](func(*obj) { freed++ }))

	// One below 2x capacity: nothing may be freed yet.
	for i := 0; i < 7; i++ {
		d.Retire(&obj{id: i})
	}
	if freed != 0 {
		t.Fatalf("freed %d objects below the batch threshold", freed)
	}

	// The 8th retire trips the pass; with no hazards, everything goes.
	d.Retire(&obj{id: 7})
	if freed != 8 {
		t.Fatalf("freed %d objects after threshold pass, want 8", freed)
	}
}

func TestProtectedObjectSurvivesPass(t *testing.T) {
	freed := map[*obj]bool{}
	d := New(2, WithFree[obj](func(o *obj) { freed[o] = true }))

	x := &obj{id: 42}
	var src atomic.Pointer[obj]
	src.Store(x)

	hp := d.Acquire()
	if got := hp.Protect(&src); got != x {
		t.Fatalf("protect returned %p, want %p", got, x)
	}

	r := d.NewRetirer()
	r.Retire(x)
	r.Flush()
	if freed[x] {
		t.Fatal("object freed while a cell announced it")
	}
	if r.Len() != 1 {
		t.Fatalf("buffer holds %d entries, want the deferred object", r.Len())
	}

	hp.ResetProtection()
	r.Flush()
	if !freed[x] {
		t.Fatal("object not freed after protection reset")
	}
}

func TestReservedCellsDoNotBlockReclaim(t *testing.T) {
	freed := 0
	d := New(2, WithFree[obj](func(*obj) { freed++ }))

	// A claimed-but-empty cell announces nothing; it must not defer retires.
	hp := d.Acquire()
	defer hp.Release()

	r := d.NewRetirer()
	r.Retire(&obj{id: 1})
	r.Flush()
	if freed != 1 {
		t.Fatalf("freed %d, want 1: reserved marker treated as a hazard", freed)
	}
}

func TestRetirerCloseHandsOffProtected(t *testing.T) {
	freed := map[*obj]bool{}
	d := New(2, WithFree[obj](func(o *obj) { freed[o] = true }))

	x := &obj{id: 7}
	var src atomic.Pointer[obj]
	src.Store(x)

	hp := d.Acquire()
	hp.Protect(&src)

	r := d.NewRetirer()
	r.Retire(x)
	r.Close()
	if freed[x] {
		t.Fatal("protected object freed by retirer close")
	}
	if len(d.orphans) != 1 {
		t.Fatalf("domain holds %d orphans, want 1", len(d.orphans))
	}

	// A later pass by any retirer adopts and frees the orphan.
	hp.ResetProtection()
	r2 := d.NewRetirer()
	r2.Flush()
	if !freed[x] {
		t.Fatal("orphan not adopted by later pass")
	}
	if len(d.orphans) != 0 {
		t.Fatal("orphan list not drained")
	}
}

func TestCloseDrainsPendingRetirements(t *testing.T) {
	freed := 0
	d := New(4, WithFree[obj](func(*obj) { freed++ }))

	for i := 0; i < 3; i++ {
		d.Retire(&obj{id: i})
	}
	d.Close()
	if freed != 3 {
		t.Fatalf("close freed %d, want 3", freed)
	}

	d.Close() // idempotent
	if freed != 3 {
		t.Fatal("second close freed again")
	}
}

func TestCloseReportsStillProtected(t *testing.T) {
	freed := 0
	d := New(2, WithFree[obj](func(*obj) { freed++ }))

	x := &obj{id: 1}
	var src atomic.Pointer[obj]
	src.Store(x)

	hp := d.Acquire()
	hp.Protect(&src)
	d.Retire(x)
	d.Close()
	if freed != 0 {
		t.Fatal("close freed an object a live handle still announced")
	}
}

func TestStats(t *testing.T) {
	d := New[obj](4)
	h := d.Acquire()
	for i := 0; i < 8; i++ {
		d.Retire(&obj{id: i})
	}
	s := d.Stats()
	if s.Retired != 8 || s.Reclaimed != 8 || s.Passes != 1 || s.Deferred != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Live != 1 {
		t.Fatalf("live slots = %d, want 1", s.Live)
	}
	h.Release()
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity 0")
		}
	}()
	New[obj](0)
}
