package hazard

import "sync/atomic"

// Pointer is a hazard-pointer handle owning one reserved cell. A handle
// belongs to one worker goroutine at a time; ownership moves with the
// pointer value. Using a handle after Release panics.
type Pointer[T any] struct {
	d    *Domain[T]
	cell *Cell[T]
}

// Protect announces a value loaded from src and returns it once the
// announcement is durable. The returned pointer was held by src at some
// instant during the call and will not be freed until the protection is
// reset or the handle released.
//
// Each round publishes the candidate, then re-checks src: if a writer
// swapped the value between load and publish, the announcement came too late
// to be trusted, so the round restarts with the fresh value. Retries are
// unbounded; under pathological churn only safety is guaranteed, not
// progress.
func (h *Pointer[T]) Protect(src *atomic.Pointer[T]) *T {
	ptr := src.Load()
	var b backoff
	for !h.TryProtect(&ptr, src) {
		b.pause()
	}
	return ptr
}

// TryProtect runs one publish-then-validate round for *ptr against src. On
// failure *ptr is updated to the freshly observed value and the cell is left
// announcing nothing.
func (h *Pointer[T]) TryProtect(ptr **T, src *atomic.Pointer[T]) bool {
	if *ptr == nil {
		// Publishing nil would mark the cell free and let a concurrent
		// Acquire claim it; announce "nothing" with the marker instead.
		h.cell.ptr.Store(h.d.reserved)
	} else {
		h.cell.ptr.Store(*ptr)
	}
	cur := src.Load()
	if cur == *ptr {
		return true
	}
	h.cell.ptr.Store(h.d.reserved)
	*ptr = cur
	return false
}

// ResetProtection releases the current protection while keeping the cell
// reserved for this handle.
func (h *Pointer[T]) ResetProtection() {
	h.cell.ptr.Store(h.d.reserved)
}

// ResetProtectionTo publishes ptr without validating it against any source.
// Only for pointers the caller knows cannot be concurrently reclaimed yet,
// e.g. freshly built and not published anywhere. A nil ptr resets instead.
func (h *Pointer[T]) ResetProtectionTo(ptr *T) {
	if ptr == nil {
		h.ResetProtection()
		return
	}
	h.cell.ptr.Store(ptr)
}

// Retire forwards to the domain's writer-owned retire path.
func (h *Pointer[T]) Retire(ptr *T) {
	h.d.Retire(ptr)
}

// Empty reports whether the handle currently protects nothing.
func (h *Pointer[T]) Empty() bool {
	if h.cell == nil {
		return true
	}
	p := h.cell.ptr.Load()
	return p == nil || p == h.d.reserved
}

// Release returns the cell to the domain's free pool. Idempotent; the handle
// must not protect anything afterwards.
func (h *Pointer[T]) Release() {
	if h.cell != nil {
		h.d.release(h.cell)
		h.cell = nil
	}
}
