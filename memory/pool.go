package memory

import "sync"

// Pool is a reusable, typed object pool. It is the usual reclaim target for
// a hazard domain: wire hazard.WithFree(pool.Put) and retired objects cycle
// back to the writer once provably unprotected.
type Pool[T any] struct {
	pool  *sync.Pool
	reset func(*T)
}

// NewPool creates a pool with a constructor for cold misses.
func NewPool[T any](constructor func() *T) *Pool[T] {
	return &Pool[T]{
		pool: &sync.Pool{
			New: func() any { return constructor() },
		},
	}
}

// NewPoolReset additionally runs reset on every Put, so recycled objects
// never carry stale state back out of Get.
func NewPoolReset[T any](constructor func() *T, reset func(*T)) *Pool[T] {
	p := NewPool(constructor)
	p.reset = reset
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj *T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}
