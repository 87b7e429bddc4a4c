package sloc

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

// ErrBarrierTimeout is returned by Await when the release never comes,
// turning a stranded barrier into a reported error instead of a hang.
var ErrBarrierTimeout = errors.New("barrier wait timed out")

// Barrier synchronises a fixed set of workers at a phase boundary and
// elects exactly one of them to run a sequential step before the rest
// proceed.
//
// Protocol, per phase:
//
//	gen := b.Generation()
//	if b.Arrive() {
//	    // elected: all workers have arrived, the shared state is frozen.
//	    // Perform the sequential step, then release everyone.
//	    b.Release()
//	} else if err := b.Await(gen, timeout); err != nil {
//	    // stranded
//	}
//
// The arrival that completes the set is the elected worker. Release resets
// the arrival count and bumps the generation, so the same Barrier is
// reusable for the next phase. Non-elected workers must not read the
// sequential step's output before Await returns; the atomic generation
// bump orders the elected worker's writes before that read.
//
// Every participant must arrive exactly once per phase, including workers
// with no assigned work, otherwise the barrier never releases. Callers are
// expected to guarantee arrival on every exit path (see Runner).
type Barrier struct {
	target   int32
	arrivals atomic.Int32
	gen      atomic.Uint32
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int) *Barrier {
	return &Barrier{target: int32(n)}
}

// Arrive signals that this worker finished the current phase. It returns
// true for exactly one caller per phase: the one whose arrival completes
// the set. That caller owns the sequential step and must call Release.
func (b *Barrier) Arrive() bool {
	return b.arrivals.Add(1) == b.target
}

// Generation returns the current phase generation. Capture it before
// Arrive so Await can detect the release.
func (b *Barrier) Generation() uint32 {
	return b.gen.Load()
}

// Release is called by the elected worker once the sequential step is done.
// It resets the arrival count for the next phase and wakes all waiters.
func (b *Barrier) Release() {
	b.arrivals.Store(0)
	b.gen.Add(1)
}

// Await spins until the generation advances past gen or the timeout
// elapses. The expected wait is short (the elected worker only runs a
// repartition), so a Gosched spin beats a blocking wait on hand-off
// latency.
func (b *Barrier) Await(gen uint32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for b.gen.Load() == gen {
		if time.Now().After(deadline) {
			return ErrBarrierTimeout
		}
		runtime.Gosched()
	}
	return nil
}
