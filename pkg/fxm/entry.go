package fxm

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/types"
)

// FdwXactEntry is a durable record of one participant's prepared state,
// plus the per-entry spin lock guarding its status/flags region. Structural
// membership in the arena (allocated vs free) is protected separately by
// the arena's own lock; this lock only protects the fields below it.
type FdwXactEntry struct {
	mu sync.Mutex // per-entry spin lock: no suspension or I/O while held

	types.FdwXact

	// StatePath is the on-disk state file path once OnDisk is true.
	StatePath string
	// InProcessing is set by a resolver that has claimed this entry for a
	// finalize attempt, and cleared on attempt completion or resolver exit.
	InProcessing bool
	// DriverName is the participant.Registry key this entry's adapter is
	// registered under, set at allocation; an entry rebuilt by Recover has
	// none until Manager.BindDriver fills it in.
	DriverName string
}

// withLock runs fn with the entry's spin lock held. fn must not block or
// perform I/O.
func (e *FdwXactEntry) withLock(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// MarkPrepared transitions Preparing -> Prepared, flipping Valid once the
// insertion record is durable.
func (e *FdwXactEntry) MarkPrepared(startLSN, endLSN types.LSN) error {
	var err error
	e.withLock(func() {
		if e.Status != types.StatusPreparing {
			err = fmt.Errorf("fxm: cannot mark prepared from status %s", e.Status)
			return
		}
		e.InsertLSN = startLSN
		e.InsertEnd = endLSN
		e.Valid = true
		e.Status = types.StatusPrepared
	})
	return err
}

// MarkCommitting transitions Prepared -> Committing, recording the local
// transaction's decision to commit this participant.
func (e *FdwXactEntry) MarkCommitting() error {
	var err error
	e.withLock(func() {
		if e.Status != types.StatusPrepared {
			err = fmt.Errorf("fxm: cannot mark committing from status %s", e.Status)
			return
		}
		e.Status = types.StatusCommitting
	})
	return err
}

// MarkAborting transitions Prepared -> Aborting.
func (e *FdwXactEntry) MarkAborting() error {
	var err error
	e.withLock(func() {
		if e.Status != types.StatusPrepared {
			err = fmt.Errorf("fxm: cannot mark aborting from status %s", e.Status)
			return
		}
		e.Status = types.StatusAborting
	})
	return err
}

// MarkIndoubt marks the entry orphaned: its owning backend is no longer
// alive and a resolver must finalize it. Valid for any non-invalid status.
func (e *FdwXactEntry) MarkIndoubt() {
	e.withLock(func() {
		e.InDoubt = true
		e.Owner = 0
	})
}

// TryClaim sets InProcessing if not already set, returning whether the
// caller won the claim. Used by the resolver to serialize finalize
// attempts per entry.
func (e *FdwXactEntry) TryClaim() bool {
	won := false
	e.withLock(func() {
		if !e.InProcessing {
			e.InProcessing = true
			won = true
		}
	})
	return won
}

// ClearClaim clears InProcessing, whether the attempt succeeded or failed.
func (e *FdwXactEntry) ClearClaim() {
	e.withLock(func() { e.InProcessing = false })
}

// Snapshot returns a copy of the entry's current status fields, safe to
// read without holding the caller's own reference alive.
func (e *FdwXactEntry) Snapshot() types.FdwXact {
	var snap types.FdwXact
	e.withLock(func() { snap = e.FdwXact })
	return snap
}
