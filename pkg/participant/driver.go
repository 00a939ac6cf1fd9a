// Package participant defines the capability contract a foreign-data-source
// adapter must implement to plug into FXM, and a static registry of
// adapters keyed by name.
package participant

import "github.com/quorumix/fxcoord/pkg/types"

// Driver is the mandatory capability set every participant adapter must
// implement: one-phase commit and rollback.
type Driver interface {
	// Commit performs a one-phase commit of the local transaction's work
	// against this participant.
	Commit(xid types.Xid, serverID types.ServerID, userID types.UserID) error
	// Rollback performs a one-phase rollback.
	Rollback(xid types.Xid, serverID types.ServerID, userID types.UserID) error
}

// Preparer is the optional capability that makes a Driver 2PC-capable. A
// Driver not implementing Preparer cannot be prepared and must be handled
// one-phase (or rejected, depending on foreign_twophase_commit mode).
type Preparer interface {
	// Prepare writes a prepared transaction under the caller-supplied id.
	Prepare(xid types.Xid, serverID types.ServerID, userID types.UserID, id string) error
}

// ResolveResult is the outcome of a Resolver.Resolve call.
type ResolveResult uint8

const (
	// ResolveOK means the prepared transaction was committed or aborted
	// as requested.
	ResolveOK ResolveResult = iota
	// ResolveMissing means the participant reports the prepared
	// transaction no longer exists; treated as success (idempotent
	// finalize).
	ResolveMissing
)

// Resolver is the optional capability for finalizing a previously prepared
// transaction. Implementations must be idempotent: repeated Resolve calls
// with the same id and commit flag converge to the same terminal state.
type Resolver interface {
	Resolve(serverID types.ServerID, userID types.UserID, id string, commit bool) (ResolveResult, error)
}

// PrepareIDer is the optional capability for minting a participant-unique
// prepared-transaction name. For drivers without it, FXM falls back to
// DefaultMakePrepareID.
type PrepareIDer interface {
	MakePrepareID(serverID types.ServerID, userID types.UserID) (string, error)
}

// IsPrepareCapable reports whether d implements both Preparer and
// Resolver — the minimum needed to participate in 2PC.
func IsPrepareCapable(d Driver) bool {
	_, okP := d.(Preparer)
	_, okR := d.(Resolver)
	return okP && okR
}
