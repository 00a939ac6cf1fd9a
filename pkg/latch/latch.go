// Package latch implements the wakeup primitive fxcoord's latch-driven
// blocking loops suspend on: the resolver launcher and SRW's WaitForLSN
// reset-check-wait on one of these instead of a bare channel close, because
// a plain channel close can only fire once and a bare buffered channel send
// can be lost if nobody is listening yet.
//
// A Latch is sticky: Set() is remembered even if nobody is waiting, and a
// later Wait returns immediately. This mirrors a POSIX-style process latch
// (set-before-wait is never lost) without needing OS signals.
package latch

import "context"

// Latch is a single-consumer, multi-producer edge-triggered wakeup. The
// zero value is not usable; construct with New.
type Latch struct {
	ch chan struct{}
}

// New returns a Latch in the reset state.
func New() *Latch {
	return &Latch{ch: make(chan struct{}, 1)}
}

// Set marks the latch. Safe to call from any number of goroutines
// concurrently; redundant Sets are coalesced.
func (l *Latch) Set() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Reset clears the latch without waiting. Callers use Reset before
// re-checking the condition they are waiting on, so a Set that arrives
// between the check and the next Wait is not lost.
func (l *Latch) Reset() {
	select {
	case <-l.ch:
	default:
	}
}

// Wait blocks until the latch is set, ctx is done, or done fires (the
// owning process/shutdown-equivalent signal). It returns nil if the latch
// was set, and ctx.Err() or the done channel's implicit cancellation
// otherwise. Wait does not reset the latch; callers that loop must Reset
// before re-checking their condition.
func (l *Latch) Wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-l.ch:
		// Put it back so a subsequent Wait without an intervening Reset
		// still observes the set latch (mirrors sticky-set semantics).
		l.Set()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return context.Canceled
	}
}
