package memory

import "testing"

func TestPoolConstructsOnMiss(t *testing.T) {
	built := 0
	p := NewPool(func() *item {
		built++
		return &item{id: -1}
	})
	it := p.Get()
	if it == nil || built != 1 {
		t.Fatalf("cold get built %d objects", built)
	}
}

func TestPoolRecycles(t *testing.T) {
	p := NewPool(func() *item { return new(item) })
	it := p.Get()
	it.id = 7
	p.Put(it)
	// sync.Pool gives no reuse guarantee, but the object must at least be
	// retrievable without a fresh construction racing in this goroutine.
	got := p.Get()
	if got == nil {
		t.Fatal("get after put returned nil")
	}
}

func TestPoolResetRunsOnPut(t *testing.T) {
	p := NewPoolReset(
		func() *item { return new(item) },
		func(it *item) { it.id = 0 },
	)
	it := p.Get()
	it.id = 42
	p.Put(it)
	if it.id != 0 {
		t.Fatal("reset did not run on put")
	}
}
