/*
Package statefile implements the checkpoint-spill half of FXM's two
persistence mechanisms (the other is pkg/fxwal).

Each file holds a fixed-size header (magic, format version, status, local
xid, server id, user id, mapping id, a length-prefixed fdwxact_id) followed
by a CRC32C trailer over the whole body. The CRC32C implementation is
stdlib hash/crc32 with the Castagnoli table, the same construction used
elsewhere in the retrieved corpus for RocksDB-compatible checksums — no
third-party crc32c package was available to depend on instead.

Index wraps the same files in a go.etcd.io/bbolt bucket keyed by
(dbid,serverid,userid), so recovery can enumerate surviving entries without
a directory walk.
*/
package statefile
