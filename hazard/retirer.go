package hazard

// Retirer buffers retirements for one worker goroutine. It is not safe for
// concurrent use; each retiring goroutine takes its own handle and closes it
// when the worker shuts down.
type Retirer[T any] struct {
	d   *Domain[T]
	buf []*T
}

// NewRetirer returns a retire buffer bound to this domain.
func (d *Domain[T]) NewRetirer() *Retirer[T] {
	return &Retirer[T]{d: d, buf: make([]*T, 0, 3*len(d.cells))}
}

// Retire appends ptr to the buffer; ownership transfers to the domain.
// Reaching twice the slot capacity triggers a reclamation pass.
func (r *Retirer[T]) Retire(ptr *T) {
	r.buf = append(r.buf, ptr)
	r.d.retired.Add(1)
	if len(r.buf) >= 2*len(r.d.cells) {
		r.buf = r.d.reclaim(r.buf)
	}
}

// Flush runs a reclamation pass now, regardless of the threshold.
func (r *Retirer[T]) Flush() {
	r.buf = r.d.reclaim(r.buf)
}

// Close is the worker-shutdown hook: it flushes one last time and hands
// anything still protected to the domain, which frees it on a later pass or
// at Domain.Close. The retirer must not be used afterwards.
func (r *Retirer[T]) Close() {
	r.buf = r.d.reclaim(r.buf)
	r.d.orphan(r.buf)
	r.buf = nil
}

// Len returns the number of buffered retirements.
func (r *Retirer[T]) Len() int { return len(r.buf) }

func (r *Retirer[T]) take() []*T {
	buf := r.buf
	r.buf = nil
	return buf
}
