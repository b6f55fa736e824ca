package hazard

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// exhausted runs when a claim sweep finds no free cell. Capacity is fixed at
// construction and claiming never waits, so an empty sweep means the domain
// was sized wrong for its callers, not a transient condition. Swapped out by
// tests.
var exhausted = func(log hclog.Logger, capacity int) {
	log.Error("hazard slots exhausted", "capacity", capacity)
	os.Exit(2)
}

// Option configures a Domain at construction.
type Option[T any] func(*Domain[T])

// WithLogger sets the logger used for lifecycle diagnostics. The protect,
// claim, and scan paths never log.
func WithLogger[T any](log hclog.Logger) Option[T] {
	return func(d *Domain[T]) { d.log = log }
}

// WithFree sets the function applied to a retired pointer once no cell
// protects it, typically a pool's Put. Defaults to dropping the reference
// and letting the garbage collector take it.
func WithFree[T any](free func(*T)) Option[T] {
	return func(d *Domain[T]) { d.free = free }
}

// Stats is a point-in-time snapshot of a domain's reclamation counters.
type Stats struct {
	Retired   uint64 // pointers handed over for deferred freeing
	Reclaimed uint64 // pointers actually freed
	Deferred  uint64 // survivors of the most recent pass, still protected
	Passes    uint64 // reclamation passes run
	Live      int    // announcement slots currently claimed
}

// Domain owns the announcement slots and the retire/scan machinery for one
// protected type. Domains never grow and never share storage; use a Registry
// to hold the canonical domain per type.
type Domain[T any] struct {
	cells    []Cell[T]
	reserved *T // private marker: claimed cell protecting nothing
	free     func(*T)
	log      hclog.Logger

	retired   atomic.Uint64
	reclaimed atomic.Uint64
	deferred  atomic.Uint64
	passes    atomic.Uint64

	// orphans holds retirements handed over by closing retirers. Touched
	// only on worker shutdown and at the start of a pass.
	mu      sync.Mutex
	orphans []*T

	writer *Retirer[T] // backs Domain.Retire; single-goroutine by contract
	closed atomic.Bool
}

// New constructs a domain with a fixed number of announcement slots. The
// slot count bounds the number of simultaneously live handles; exceeding it
// aborts the process.
func New[T any](capacity int, opts ...Option[T]) *Domain[T] {
	if capacity <= 0 {
		panic("hazard: capacity must be positive")
	}
	d := &Domain[T]{
		cells:    make([]Cell[T], capacity),
		reserved: new(T),
		log:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.writer = d.NewRetirer()
	return d
}

// Capacity returns the number of announcement slots.
func (d *Domain[T]) Capacity() int { return len(d.cells) }

// Acquire claims a free cell and returns a handle owning the reservation.
// If every cell is claimed the process is aborted: the domain never grows,
// and waiting for a slot would turn the caller into a lock.
func (d *Domain[T]) Acquire() *Pointer[T] {
	return &Pointer[T]{d: d, cell: d.capture()}
}

func (d *Domain[T]) capture() *Cell[T] {
	for i := range d.cells {
		c := &d.cells[i]
		if c.ptr.Load() == nil && c.ptr.CompareAndSwap(nil, d.reserved) {
			return c
		}
	}
	exhausted(d.log, len(d.cells))
	return nil
}

func (d *Domain[T]) release(c *Cell[T]) {
	if c != nil {
		c.ptr.Store(nil)
	}
}

// Retire transfers ownership of ptr to the domain for deferred freeing. It
// feeds the domain's internal writer buffer and must only ever be called
// from one goroutine; concurrent retiring goroutines take their own handle
// via NewRetirer.
func (d *Domain[T]) Retire(ptr *T) {
	d.writer.Retire(ptr)
}

// scan reports whether any cell currently announces ptr.
func (d *Domain[T]) scan(ptr *T) bool {
	for i := range d.cells {
		h := d.cells[i].ptr.Load()
		if h != nil && h != d.reserved && h == ptr {
			return true
		}
	}
	return false
}

// reclaim frees every buffered pointer no cell announces and returns the
// survivors. Removal is swap-with-last; buffer order is not preserved.
func (d *Domain[T]) reclaim(buf []*T) []*T {
	buf = append(buf, d.adoptOrphans()...)
	n := len(buf)
	for i := 0; i < n; {
		if d.scan(buf[i]) {
			i++
			continue
		}
		p := buf[i]
		n--
		buf[i] = buf[n]
		buf[n] = nil
		if d.free != nil {
			d.free(p)
		}
		d.reclaimed.Add(1)
	}
	d.passes.Add(1)
	d.deferred.Store(uint64(n))
	return buf[:n]
}

func (d *Domain[T]) adoptOrphans() []*T {
	d.mu.Lock()
	o := d.orphans
	d.orphans = nil
	d.mu.Unlock()
	return o
}

func (d *Domain[T]) orphan(buf []*T) {
	if len(buf) == 0 {
		return
	}
	d.mu.Lock()
	d.orphans = append(d.orphans, buf...)
	d.mu.Unlock()
	d.log.Debug("adopted retirements from closing retirer", "count", len(buf))
}

// Stats returns a snapshot of the reclamation counters. Live is read with a
// sweep over the slot array, so it is approximate under churn.
func (d *Domain[T]) Stats() Stats {
	live := 0
	for i := range d.cells {
		if d.cells[i].ptr.Load() != nil {
			live++
		}
	}
	return Stats{
		Retired:   d.retired.Load(),
		Reclaimed: d.reclaimed.Load(),
		Deferred:  d.deferred.Load(),
		Passes:    d.passes.Load(),
		Live:      live,
	}
}

// Close drains every pending retirement the domain can free. Pointers still
// announced by a live handle at close are reported and dropped rather than
// freed; freeing them would race the very protection this package exists to
// honor. Close is idempotent.
func (d *Domain[T]) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	left := d.reclaim(d.writer.take())
	if len(left) > 0 {
		d.log.Warn("retired objects still protected at close", "count", len(left))
	}
	d.log.Debug("domain closed",
		"capacity", len(d.cells),
		"reclaimed", d.reclaimed.Load(),
		"passes", d.passes.Load())
}
