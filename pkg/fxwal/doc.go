/*
Package fxwal implements FXM's write-ahead log.

It repurposes hashicorp/raft-boltdb's BoltStore — ordinarily raft's durable
store of consensus log entries — as a plain single-writer append log. No
raft.Raft instance is created and no leader election ever runs; fxwal calls
StoreLog/GetLog/FirstIndex/LastIndex directly. The log's monotonically
increasing index doubles as the LSN domain that FdwXact.InsertLSN/InsertEnd
and SRW's wait queues order on.

Record bodies (InsertPrepare, RemovePrepare) are encoded bit-exact per the
WAL record formats in record.go; Replay walks the log from a given LSN and
invokes per-record-type callbacks, the shape FXM's recovery pass needs.
*/
package fxwal
