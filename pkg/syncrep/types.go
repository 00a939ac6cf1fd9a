// Package syncrep implements the synchronous-replication wait engine
// (SRW): the per-mode LSN-ordered wait queues, the standby-group quorum
// tree, and the evaluation algorithm replication senders use to decide how
// far to advance each mode's advertised LSN.
package syncrep

import (
	"container/list"

	"github.com/quorumix/fxcoord/pkg/latch"
	"github.com/quorumix/fxcoord/pkg/types"
)

// WaitNode is one backend's position in a wait queue. It is linked into
// exactly one of Engine's two container/list.List queues for as long as
// its State is Waiting, and woken through its own Latch rather than a
// shared broadcast channel, since each backend suspends independently.
type WaitNode struct {
	WaitLSN types.LSN
	State   types.SyncRepState
	Latch   *latch.Latch

	elem *list.Element
	mode types.WaitMode
}

// newWaitNode returns a WaitNode ready to be inserted into a queue.
func newWaitNode(lsn types.LSN, mode types.WaitMode) *WaitNode {
	return &WaitNode{
		WaitLSN: lsn,
		State:   types.Waiting,
		Latch:   latch.New(),
		mode:    mode,
	}
}

// StandbyState is the liveness snapshot of one standby, supplied by its
// replication sender on every ReleaseWaiters call.
type StandbyState struct {
	Name     string
	PID      int
	Priority int
	WriteLSN types.LSN
	FlushLSN types.LSN
	// Streaming reports whether the standby's sender is in streaming
	// state (as opposed to catching up or stopped).
	Streaming bool
}

// active reports whether s qualifies for a group's sync list: connected,
// streaming, a positive priority, and a flush LSN the sender has actually
// reported (zero means the sender hasn't advanced past its initial,
// not-yet-valid position).
func (s StandbyState) active() bool {
	return s.PID != 0 && s.Streaming && s.Priority > 0 && s.FlushLSN != 0
}
