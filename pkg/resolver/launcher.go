// Package resolver launches and supervises the background workers that
// finalize prepared foreign transactions once the local transaction that
// created them has decided commit or abort: the launcher holds a
// fixed-capacity slot table (max_foreign_xact_resolvers) and spawns one
// worker per database that has resolution work, the way the reference
// implementation's resolver launcher scans for databases needing a
// resolver and forks one on demand.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/fxm"
	"github.com/quorumix/fxcoord/pkg/latch"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/rs/zerolog"
)

// Launcher owns the resolver-slot table (FdwXactResolverLock) and the
// per-database waiter queues (FdwXactResolutionLock).
type Launcher struct {
	mu    sync.RWMutex // FdwXactResolverLock: slots and dbid->slot binding
	slots []*slot

	queuesMu sync.Mutex // FdwXactResolutionLock
	queues   map[types.DatabaseID]*waiterQueue

	wake   *latch.Latch
	mgr    *fxm.Manager
	reg    *participant.Registry
	cfg    config.Config
	logger zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	nextPID int
}

// NewLauncher constructs a Launcher with a fixed slot table of size
// cfg.MaxForeignXactResolvers.
func NewLauncher(mgr *fxm.Manager, reg *participant.Registry, cfg config.Config) *Launcher {
	slots := make([]*slot, cfg.MaxForeignXactResolvers)
	for i := range slots {
		slots[i] = &slot{}
	}
	return &Launcher{
		slots:  slots,
		queues: make(map[types.DatabaseID]*waiterQueue),
		wake:   latch.New(),
		mgr:    mgr,
		reg:    reg,
		cfg:    cfg,
		logger: log.WithComponent("resolver-launcher"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the launcher's scan loop.
func (l *Launcher) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop signals the launcher (and by extension every worker it started) to
// exit, and blocks until they have.
func (l *Launcher) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Launcher) run(ctx context.Context) {
	defer l.wg.Done()

	interval := l.cfg.ForeignXactResolutionRetryInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wakeCh := make(chan struct{})
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			if err := l.wake.Wait(ctx, l.stopCh); err != nil {
				return
			}
			l.wake.Reset()
			select {
			case wakeCh <- struct{}{}:
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	l.logger.Info().Msg("resolver launcher started")

	for {
		l.scanAndLaunch(ctx)

		select {
		case <-ticker.C:
		case <-wakeCh:
		case <-l.stopCh:
			l.logger.Info().Msg("resolver launcher stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Enqueue adds a waiter to dbid's resolution queue and wakes the launcher
// so it can claim a slot for that database if none is running.
func (l *Launcher) Enqueue(w *types.WaiterDescriptor) {
	l.queuesMu.Lock()
	q, ok := l.queues[w.DBID]
	if !ok {
		q = newWaiterQueue()
		l.queues[w.DBID] = q
	}
	l.queuesMu.Unlock()

	q.push(w)
	l.wake.Set()
}

// RequestResolution enqueues a waiter for (dbid, xid) with the given
// commit/abort decision, ready for immediate attempt, and blocks until a
// resolver worker finalizes every entry belonging to that local
// transaction or ctx is canceled — the backend-blocks-on-its-own-latch
// half of spec section 3.4/4.4 step 5 that Enqueue alone does not
// provide. The waiter's queue-internal Deadline (when a worker may next
// attempt it, as opposed to this call's own give-up point) starts zero
// and is only pushed out by the worker's own backoff on failed attempts.
func (l *Launcher) RequestResolution(ctx context.Context, dbid types.DatabaseID, xid types.Xid, commit bool) error {
	done := make(chan struct{})
	w := &types.WaiterDescriptor{
		DBID:   dbid,
		Xid:    xid,
		Commit: commit,
		Done:   done,
	}
	l.Enqueue(w)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth reports how many waiters are queued for dbid, used by the
// observability surface.
func (l *Launcher) QueueDepth(dbid types.DatabaseID) int {
	l.queuesMu.Lock()
	q, ok := l.queues[dbid]
	l.queuesMu.Unlock()
	if !ok {
		return 0
	}
	return q.depth()
}

// scanAndLaunch finds every database with pending work (a non-empty
// waiter queue, or an in-doubt entry left over from a prior worker's
// abnormal exit) and starts a worker for any such database that does not
// already have one.
func (l *Launcher) scanAndLaunch(ctx context.Context) {
	needed := make(map[types.DatabaseID]bool)

	l.queuesMu.Lock()
	for dbid, q := range l.queues {
		if q.depth() > 0 {
			needed[dbid] = true
		}
	}
	l.queuesMu.Unlock()

	for _, dbid := range l.mgr.DatabasesNeedingResolution() {
		needed[dbid] = true
	}

	for dbid := range needed {
		l.launchIfIdle(ctx, dbid)
	}
}

func (l *Launcher) launchIfIdle(ctx context.Context, dbid types.DatabaseID) {
	l.mu.Lock()

	for _, s := range l.slots {
		s.mu.Lock()
		if s.inUse && s.dbid == dbid {
			s.mu.Unlock()
			l.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}

	var free *slot
	for _, s := range l.slots {
		s.mu.Lock()
		if !s.inUse {
			free = s
			break
		}
		s.mu.Unlock()
	}
	if free == nil {
		l.mu.Unlock()
		l.logger.Warn().Uint32("dbid", uint32(dbid)).Msg("no free resolver slot, deferring")
		return
	}

	l.nextPID++
	free.inUse = true
	free.dbid = dbid
	free.pid = l.nextPID
	workerCtx, cancel := context.WithCancel(ctx)
	free.cancel = cancel
	free.mu.Unlock()
	l.mu.Unlock()

	l.queuesMu.Lock()
	q, ok := l.queues[dbid]
	if !ok {
		q = newWaiterQueue()
		l.queues[dbid] = q
	}
	l.queuesMu.Unlock()

	w := &worker{
		dbid:   dbid,
		slot:   free,
		mgr:    l.mgr,
		reg:    l.reg,
		queue:  q,
		cfg:    l.cfg,
		wake:   latch.New(),
		logger: log.WithComponent("resolver-worker").With().Uint32("dbid", uint32(dbid)).Logger(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		w.run(workerCtx)
		cancel()
		l.releaseSlot(free)
	}()
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-workerCtx.Done():
		}
	}()
}

func (l *Launcher) releaseSlot(s *slot) {
	s.mu.Lock()
	s.inUse = false
	s.lastResolvedTime = time.Now()
	s.cancel = nil
	s.mu.Unlock()
	l.wake.Set()
}

// StopResolver cancels the running worker for dbid, if any, mirroring
// pg_stop_foreign_xact_resolver's operator-initiated stop.
func (l *Launcher) StopResolver(dbid types.DatabaseID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, s := range l.slots {
		s.mu.Lock()
		if s.inUse && s.dbid == dbid && s.cancel != nil {
			s.cancel()
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()
	}
	return false
}

// Slots returns a snapshot of every resolver slot, for the
// "resolvers list" observability surface.
func (l *Launcher) Slots() []types.ResolverSlotInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.ResolverSlotInfo, 0, len(l.slots))
	for _, s := range l.slots {
		out = append(out, s.info())
	}
	return out
}
