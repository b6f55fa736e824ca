package hazard

import "sync/atomic"

// noCopy triggers go vet's copylocks check on embedding types.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Guard pins one value from a source for a lexical scope:
//
//	g := hazard.NewGuard(hp, &head)
//	defer g.Release()
//	use(g.Get())
//
// Release runs on every exit path via the defer. Guards are not copied; the
// handle outlives the guard and keeps its cell.
type Guard[T any] struct {
	_   noCopy
	hp  *Pointer[T]
	ptr *T
}

// NewGuard protects the current value of src through hp.
func NewGuard[T any](hp *Pointer[T], src *atomic.Pointer[T]) *Guard[T] {
	return &Guard[T]{hp: hp, ptr: hp.Protect(src)}
}

// Get returns the protected pointer; nil when the source held nil.
func (g *Guard[T]) Get() *T { return g.ptr }

// Deref returns the protected value.
func (g *Guard[T]) Deref() T { return *g.ptr }

// OK reports whether the guard holds a non-nil pointer.
func (g *Guard[T]) OK() bool { return g.ptr != nil }

// Release drops the protection. Idempotent, so a deferred Release is safe
// even when an early path already released explicitly.
func (g *Guard[T]) Release() {
	if g.hp != nil {
		g.hp.ResetProtection()
		g.hp = nil
		g.ptr = nil
	}
}
