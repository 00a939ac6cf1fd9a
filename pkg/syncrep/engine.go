package syncrep

import (
	"container/list"
	"context"
	"sync"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/types"
)

// CancelReason classifies why WaitForLSN returned before WAIT_COMPLETE.
type CancelReason uint8

const (
	// CancelNone means the wait completed normally.
	CancelNone CancelReason = iota
	// CancelTermination means a process-termination signal arrived; the
	// caller must not clear its own termination-pending flag.
	CancelTermination
	// CancelQuery means a query-cancel signal arrived.
	CancelQuery
	// CancelOwnerDone means the owning process/shutdown-equivalent
	// signal fired (the postmaster-death case).
	CancelOwnerDone
)

// Engine is the synchronous-replication wait engine: two LSN-ordered queues
// (one per WaitMode), their advertised LSNs, and the active standby-group
// tree. The zero value is not usable; construct with NewEngine.
type Engine struct {
	mu sync.Mutex // SyncRepLock: guards queues, advertised LSNs, and group

	queues     map[types.WaitMode]*list.List
	advertised map[types.WaitMode]types.LSN
	group      *StandbyGroupNode
}

// NewEngine returns an Engine with empty queues and no standby group
// configured (sync replication disabled until UpdateSyncStandbysDefined is
// called with a non-nil group).
func NewEngine() *Engine {
	return &Engine{
		queues: map[types.WaitMode]*list.List{
			types.WaitWrite: list.New(),
			types.WaitFlush: list.New(),
		},
		advertised: map[types.WaitMode]types.LSN{},
	}
}

// UpdateSyncStandbysDefined installs a new standby-group tree. If group is
// nil (sync replication disabled), every queued waiter on every mode is
// woken unconditionally so it can exit without waiting for a quorum that
// no longer exists.
func (e *Engine) UpdateSyncStandbysDefined(group *StandbyGroupNode) {
	e.mu.Lock()
	e.group = group
	wakeAll := group == nil
	var toWake []*WaitNode
	if wakeAll {
		for mode, q := range e.queues {
			for el := q.Front(); el != nil; {
				next := el.Next()
				node := el.Value.(*WaitNode)
				node.State = types.WaitComplete
				q.Remove(el)
				toWake = append(toWake, node)
				el = next
			}
			delete(e.advertised, mode)
		}
	}
	e.mu.Unlock()

	for _, node := range toWake {
		node.Latch.Set()
	}

	log.WithComponent("syncrep").Info().Bool("disabled", wakeAll).Msg("standby group definition updated")
}

// WaitForLSN blocks the caller until commitLSN has been acknowledged by the
// configured standby group under mode, or until ctx is canceled / done
// fires. It implements a fast path (no group configured, or the mode's
// advertised LSN already covers commitLSN) and a blocking path (queue
// insertion, reset-check-wait loop).
func (e *Engine) WaitForLSN(ctx context.Context, done <-chan struct{}, commitLSN types.LSN, mode types.WaitMode) (CancelReason, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncRepWaitDuration, mode.String())

	e.mu.Lock()
	if e.group == nil || e.advertised[mode] >= commitLSN {
		e.mu.Unlock()
		return CancelNone, nil
	}

	node := newWaitNode(commitLSN, mode)
	e.insertLocked(mode, node)
	e.mu.Unlock()

	for {
		node.Latch.Reset()

		e.mu.Lock()
		state := node.State
		e.mu.Unlock()

		if state == types.WaitComplete {
			return CancelNone, nil
		}

		err := node.Latch.Wait(ctx, done)
		if err == nil {
			continue
		}

		// Cancellation: detach under the lock before returning, per the
		// "queue-detach happens under its protecting lock" guarantee.
		e.mu.Lock()
		if node.elem != nil {
			e.queues[mode].Remove(node.elem)
			node.elem = nil
		}
		node.State = types.NotWaiting
		e.mu.Unlock()

		switch {
		case done != nil && isClosed(done):
			return CancelOwnerDone, fxerr.New(fxerr.SyncCanceled, "owner done during sync wait")
		case ctx.Err() == context.Canceled:
			return CancelQuery, fxerr.Wrap(fxerr.SyncCanceled, "query canceled during sync wait", ctx.Err())
		default:
			return CancelTermination, fxerr.Wrap(fxerr.SyncCanceled, "terminated during sync wait", ctx.Err())
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// insertLocked implements the queue insertion algorithm: walk backward
// from the tail, stop at the first node whose WaitLSN < lsn, insert after
// it (or at head if none). Callers must hold e.mu.
func (e *Engine) insertLocked(mode types.WaitMode, node *WaitNode) {
	q := e.queues[mode]
	for el := q.Back(); el != nil; el = el.Prev() {
		if el.Value.(*WaitNode).WaitLSN < node.WaitLSN {
			node.elem = q.InsertAfter(node, el)
			return
		}
	}
	node.elem = q.PushFront(node)
}

// ReleaseWaiters recomputes the safe write/flush LSNs from the current
// standby states and, for each mode whose safe LSN has advanced past the
// advertised LSN, walks the queue from the head releasing every node whose
// WaitLSN is now covered. The safe LSN is re-read under the lock on every
// call (not cached across calls), preserving strict ordering: no waiter
// with WaitLSN > advertised_LSN is ever released.
func (e *Engine) ReleaseWaiters(states []StandbyState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.group == nil {
		return
	}

	safeWrite, safeFlush, ok := GetSyncedLsns(e.group, states)
	if !ok {
		return
	}

	e.releaseModeLocked(types.WaitWrite, safeWrite)
	e.releaseModeLocked(types.WaitFlush, safeFlush)
}

func (e *Engine) releaseModeLocked(mode types.WaitMode, safeLSN types.LSN) {
	if safeLSN <= e.advertised[mode] {
		return
	}
	e.advertised[mode] = safeLSN

	q := e.queues[mode]
	for el := q.Front(); el != nil; {
		node := el.Value.(*WaitNode)
		if node.WaitLSN > safeLSN {
			break
		}
		next := el.Next()
		q.Remove(el)
		node.elem = nil
		node.State = types.WaitComplete
		node.Latch.Set()
		el = next
	}
}

// AdvertisedLSN returns the current advertised LSN for mode.
func (e *Engine) AdvertisedLSN(mode types.WaitMode) types.LSN {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertised[mode]
}

// QueueDepth returns the number of waiters currently queued for mode, used
// by the SRW queue-depth gauge.
func (e *Engine) QueueDepth(mode types.WaitMode) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queues[mode].Len()
}
