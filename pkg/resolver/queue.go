package resolver

import (
	"sync"
	"time"

	"github.com/quorumix/fxcoord/pkg/types"
)

// waiterQueue is a per-database FIFO of backends waiting on resolution of
// their prepared participants, guarded by FdwXactResolutionLock.
type waiterQueue struct {
	mu    sync.Mutex
	items []*types.WaiterDescriptor
}

func newWaiterQueue() *waiterQueue {
	return &waiterQueue{}
}

func (q *waiterQueue) push(w *types.WaiterDescriptor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, w)
}

// drain removes and returns every waiter currently queued, in FIFO order.
func (q *waiterQueue) drain() []*types.WaiterDescriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// drainReady removes and returns every waiter whose Deadline has already
// passed (or is unset), leaving waiters still backing off in the queue —
// GetWaiter(now) from the reference implementation's resolution loop.
func (q *waiterQueue) drainReady(now time.Time) []*types.WaiterDescriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}

	var ready []*types.WaiterDescriptor
	var kept []*types.WaiterDescriptor
	for _, w := range q.items {
		if w.Deadline.IsZero() || !w.Deadline.After(now) {
			ready = append(ready, w)
		} else {
			kept = append(kept, w)
		}
	}
	q.items = kept
	return ready
}

func (q *waiterQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
