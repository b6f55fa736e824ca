package hazard

import "sync/atomic"

const cacheLine = 64

// Cell is one announcement slot. Each cell fills a whole cache line so slots
// claimed by unrelated goroutines never contend on the same line.
//
// The single atomic word encodes three states: nil (free), the owning
// domain's reserved marker (claimed, protecting nothing), or a caller
// pointer (protecting that address). A cell leaves the free state only
// through a successful claim CAS and returns to it only when its owning
// handle is released.
type Cell[T any] struct {
	ptr atomic.Pointer[T]
	_   [cacheLine - 8]byte
}
