// Package testdriver is an in-memory participant driver implementing every
// optional capability idempotently, used by the FXM and resolver test
// suites in place of a real foreign server.
package testdriver

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/types"
)

type outcome uint8

const (
	outcomeNone outcome = iota
	outcomeCommitted
	outcomeAborted
)

// Driver is an in-memory, idempotent stand-in for a real foreign-server
// adapter. It records the terminal outcome of every prepared transaction
// id so repeated resolve calls converge rather than re-executing.
type Driver struct {
	mu sync.Mutex

	prepared map[string]bool
	outcomes map[string]outcome

	// FailResolveOnce makes the first Resolve of each id fail with a plain
	// (untagged) error, for tests exercising resolver retry paths.
	FailResolveOnce bool
	failedOnce      map[string]bool
}

// New returns an empty test driver.
func New() *Driver {
	return &Driver{
		prepared:   make(map[string]bool),
		outcomes:   make(map[string]outcome),
		failedOnce: make(map[string]bool),
	}
}

func key(serverID types.ServerID, userID types.UserID, id string) string {
	return fmt.Sprintf("%d/%d/%s", serverID, userID, id)
}

// Commit implements participant.Driver.
func (d *Driver) Commit(xid types.Xid, serverID types.ServerID, userID types.UserID) error {
	return nil
}

// Rollback implements participant.Driver.
func (d *Driver) Rollback(xid types.Xid, serverID types.ServerID, userID types.UserID) error {
	return nil
}

// Prepare implements participant.Preparer.
func (d *Driver) Prepare(xid types.Xid, serverID types.ServerID, userID types.UserID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepared[key(serverID, userID, id)] = true
	return nil
}

// Resolve implements participant.Resolver. It is idempotent: once an id
// has a recorded terminal outcome, subsequent calls with the same commit
// flag return success without re-executing; a call with a different flag
// is a programming error in the caller and still converges to the
// originally recorded outcome.
func (d *Driver) Resolve(serverID types.ServerID, userID types.UserID, id string, commit bool) (participant.ResolveResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key(serverID, userID, id)

	if d.FailResolveOnce && !d.failedOnce[k] {
		d.failedOnce[k] = true
		return participant.ResolveOK, fmt.Errorf("testdriver: transient resolve failure for %s", id)
	}

	if !d.prepared[k] {
		return participant.ResolveMissing, nil
	}

	if existing, ok := d.outcomes[k]; ok {
		_ = existing
		delete(d.prepared, k)
		return participant.ResolveOK, nil
	}

	if commit {
		d.outcomes[k] = outcomeCommitted
	} else {
		d.outcomes[k] = outcomeAborted
	}
	delete(d.prepared, k)
	return participant.ResolveOK, nil
}

// MakePrepareID implements participant.PrepareIDer. It uses
// participant.RandomSuffix rather than a full DefaultMakePrepareID uuid,
// since a test driver is the cheap-id case that function's doc comment
// describes: exercising many prepares in a test loop doesn't need a
// UUID's collision resistance, just a unique-enough fragment per call.
func (d *Driver) MakePrepareID(serverID types.ServerID, userID types.UserID) (string, error) {
	suffix, err := participant.RandomSuffix(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%d_%d_%s", serverID, userID, suffix), nil
}

// Outcome reports the terminal outcome recorded for id, for test
// assertions.
func (d *Driver) Outcome(serverID types.ServerID, userID types.UserID, id string) (committed, aborted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.outcomes[key(serverID, userID, id)] {
	case outcomeCommitted:
		return true, false
	case outcomeAborted:
		return false, true
	default:
		return false, false
	}
}
