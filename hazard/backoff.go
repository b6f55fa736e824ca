package hazard

import "runtime"

const maxSpins = 8

// backoff separates a failed validate from its retry. The first few rounds
// retry immediately, since the racing store usually lands within a couple of
// loads; after that the loser yields its P so the writer it is chasing can
// get scheduled.
type backoff struct {
	spins int
}

func (b *backoff) pause() {
	if b.spins < maxSpins {
		b.spins++
		return
	}
	runtime.Gosched()
}
