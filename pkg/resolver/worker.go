package resolver

import (
	"context"
	"math"
	"time"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/fxm"
	"github.com/quorumix/fxcoord/pkg/latch"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/rs/zerolog"
)

// worker is a single per-database resolver: it drains waiters enqueued for
// its database, finalizes their prepared participants, and separately
// sweeps in-doubt entries left behind by a backend or a prior worker that
// exited mid-resolve. It exits after sitting idle for
// ForeignXactResolverTimeout, the way the reference implementation retires
// a resolver process once its database has no more outstanding work.
type worker struct {
	dbid   types.DatabaseID
	slot   *slot
	mgr    *fxm.Manager
	reg    *participant.Registry
	queue  *waiterQueue
	cfg    config.Config
	wake   *latch.Latch
	logger zerolog.Logger

	backoff time.Duration
}

func (w *worker) run(ctx context.Context) {
	idleTimeout := w.cfg.ForeignXactResolverTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	w.logger.Info().Msg("resolver worker started")
	defer w.logger.Info().Msg("resolver worker exited")

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		didWork := w.drainWaiters()
		didWork = w.indoubtPass() || didWork

		if didWork {
			w.backoff = 0
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
			continue
		}

		wait := w.cfg.ForeignXactResolutionRetryInterval
		if wait <= 0 {
			wait = 5 * time.Second
		}
		if w.backoff > 0 && w.backoff < wait {
			wait = w.backoff
		}
		retry := time.NewTimer(wait)

		select {
		case <-retry.C:
		case <-idle.C:
			retry.Stop()
			return
		case <-ctx.Done():
			retry.Stop()
			return
		}
		retry.Stop()
	}
}

// drainWaiters claims and finalizes every backend-initiated waiter whose
// deadline has arrived, reporting whether any work was found. A waiter
// whose entries fail to finalize is re-enqueued with its deadline pushed
// out by the worker's current backoff, rather than dropped, so a backend
// blocked on Done is eventually woken instead of hanging forever.
func (w *worker) drainWaiters() bool {
	waiters := w.queue.drainReady(time.Now())
	if len(waiters) == 0 {
		return false
	}

	for _, waiter := range waiters {
		entries := w.mgr.ClaimEntriesForXid(waiter.DBID, waiter.Xid)
		allResolved := true
		for _, e := range entries {
			if waiter.Commit {
				_ = e.MarkCommitting()
			} else {
				_ = e.MarkAborting()
			}
			if err := w.mgr.FinalizeEntry(e, waiter.Commit); err != nil {
				allResolved = false
				w.logger.Warn().Uint64("local_xid", uint64(waiter.Xid)).Err(err).
					Msg("finalize failed, entry left in-doubt for retry")
			}
		}
		if allResolved {
			if waiter.Done != nil {
				close(waiter.Done)
			}
			continue
		}

		w.bumpBackoff()
		waiter.Deadline = time.Now().Add(w.backoff)
		w.queue.push(waiter)
	}
	return true
}

// indoubtPass finalizes every in-doubt entry for the worker's database
// that has no backend left to wait on it. An entry still in Prepared
// status when it went in-doubt never received an explicit commit/abort
// decision from its backend (it crashed between PREPARE and deciding); the
// worker fails forward to commit for those, since a participant that
// reached PREPARED is durably committable and forward progress is
// preferred over an indefinite hang.
func (w *worker) indoubtPass() bool {
	entries := w.mgr.IndoubtEntries(w.dbid)
	if len(entries) == 0 {
		return false
	}

	any := false
	for _, e := range entries {
		if !e.TryClaim() {
			continue
		}
		any = true
		snap := e.Snapshot()
		commit := snap.Status != types.StatusAborting
		if err := w.mgr.FinalizeEntry(e, commit); err != nil {
			w.logger.Warn().Uint64("local_xid", uint64(snap.LocalXid)).Err(err).
				Msg("in-doubt finalize failed, will retry")
			w.bumpBackoff()
		}
	}
	return any
}

func (w *worker) bumpBackoff() {
	maxBackoff := w.cfg.MaxResolverBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Minute
	}
	if w.backoff == 0 {
		w.backoff = 1 * time.Second
	} else {
		w.backoff = time.Duration(math.Min(float64(w.backoff*2), float64(maxBackoff)))
	}
	metrics.ResolverBackoffSeconds.Observe(w.backoff.Seconds())
}
