// Package lfstack implements a Treiber stack whose pop path runs under
// hazard-pointer protection, so popped nodes can be retired and recycled
// without a use-after-free window for concurrent poppers.
package lfstack

import (
	"sync/atomic"

	"conc/hazard"
	"conc/memory"
)

type node[T any] struct {
	val  T
	next atomic.Pointer[node[T]]
}

// Stack is a lock-free LIFO. Push is safe from any goroutine; popping
// goroutines each work through their own Session.
type Stack[T any] struct {
	head atomic.Pointer[node[T]]
	dom  *hazard.Domain[node[T]]
	pool *memory.Pool[node[T]]
}

// New creates a stack whose hazard domain has room for maxWorkers concurrent
// sessions. Popped nodes are dropped to the garbage collector once
// unprotected.
func New[T any](maxWorkers int) *Stack[T] {
	return &Stack[T]{dom: hazard.New[node[T]](maxWorkers)}
}

// NewPooled creates a stack that recycles nodes through a pool once no
// session protects them. Hazard protection is what makes the reuse safe:
// a node never re-enters the pool while a concurrent pop still holds it.
func NewPooled[T any](maxWorkers int) *Stack[T] {
	s := &Stack[T]{}
	s.pool = memory.NewPoolReset(
		func() *node[T] { return new(node[T]) },
		func(n *node[T]) {
			var zero T
			n.val = zero
			n.next.Store(nil)
		},
	)
	s.dom = hazard.New[node[T]](maxWorkers, hazard.WithFree(s.pool.Put))
	return s
}

// Push adds v to the top of the stack.
func (s *Stack[T]) Push(v T) {
	n := s.newNode()
	n.val = v
	for {
		old := s.head.Load()
		n.next.Store(old)
		if s.head.CompareAndSwap(old, n) {
			return
		}
	}
}

func (s *Stack[T]) newNode() *node[T] {
	if s.pool != nil {
		return s.pool.Get()
	}
	return new(node[T])
}

// Close tears down the backing domain. Call after every session is closed.
func (s *Stack[T]) Close() {
	s.dom.Close()
}

// Session is one popping worker's handle: a claimed announcement slot plus a
// retire buffer. Close it when the worker exits.
type Session[T any] struct {
	s  *Stack[T]
	hp *hazard.Pointer[node[T]]
	rt *hazard.Retirer[node[T]]
}

// Session claims a slot for a popping worker. Aborts the process if more
// than maxWorkers sessions are live at once.
func (s *Stack[T]) Session() *Session[T] {
	return &Session[T]{s: s, hp: s.dom.Acquire(), rt: s.dom.NewRetirer()}
}

// Pop removes and returns the top value. The head node is protected before
// its next pointer is read, so a concurrent pop retiring the same node
// cannot recycle it mid-read.
func (ss *Session[T]) Pop() (T, bool) {
	var zero T
	for {
		n := ss.hp.Protect(&ss.s.head)
		if n == nil {
			return zero, false
		}
		next := n.next.Load()
		if ss.s.head.CompareAndSwap(n, next) {
			v := n.val
			ss.hp.ResetProtection()
			ss.rt.Retire(n)
			return v, true
		}
	}
}

// Close releases the worker's slot and flushes its pending retirements into
// the domain.
func (ss *Session[T]) Close() {
	ss.hp.Release()
	ss.rt.Close()
}
