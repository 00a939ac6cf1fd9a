/*
Package syncrep implements the synchronous-replication wait engine: two
LSN-ordered wait queues (WAIT_WRITE, WAIT_FLUSH), a standby-group quorum
tree, and the priority-method evaluation algorithm a replication sender
uses to decide how far each mode's advertised LSN may advance.

Engine.WaitForLSN suspends the caller on a per-node pkg/latch.Latch rather
than a shared broadcast channel, since distinct backends must be wakeable
independently. Engine.ReleaseWaiters is the sender-side counterpart: it
recomputes the safe LSN from fresh standby state on every call (never
cached between calls) and releases every queued node now covered by it,
walking strictly from the queue head since the queue invariant guarantees
ascending WaitLSN order.

ParseStandbyGroup parses the synchronous_standby_names grammar
(FIRST/ANY num (members) or a bare legacy priority list) into a
StandbyGroupNode tree; this implementation treats ANY as a synonym for
the priority method rather than a distinct first-N-to-respond method,
a decision recorded in the repository's design notes.
*/
package syncrep
