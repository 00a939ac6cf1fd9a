// Package fxwal is FXM's write-ahead log: an append-only, durable,
// monotonically indexed record stream. fxcoord repurposes
// hashicorp/raft-boltdb's BoltStore — normally raft's durable log of
// consensus entries — as a single-writer append log, and treats its log
// index as the LSN domain the rest of the coordinator orders on. No raft
// consensus runs; there is exactly one writer and no leader election.
package fxwal

import (
	"encoding/binary"
	"fmt"

	"github.com/quorumix/fxcoord/pkg/types"
)

// RecordType distinguishes the two record bodies fxwal stores.
type RecordType uint8

const (
	RecordInsertPrepare RecordType = iota + 1
	RecordRemovePrepare
)

// maxFdwXactIDLen bounds the participant-unique prepared-transaction name,
// matching the 200-byte cap on fdwxact_id.
const maxFdwXactIDLen = 200

// InsertPrepare is the INSERT_PREPARE record body: written when a
// participant's PREPARE record is WAL-flushed.
type InsertPrepare struct {
	DBID      types.DatabaseID
	ServerID  types.ServerID
	UserID    types.UserID
	MappingID types.MappingID
	LocalXid  types.Xid
	FdwXactID string
}

// RemovePrepare is the REMOVE_PREPARE record body: written on terminal
// resolution of a participant's prepared transaction.
type RemovePrepare struct {
	DBID     types.DatabaseID
	ServerID types.ServerID
	UserID   types.UserID
	LocalXid types.Xid
}

// EncodeInsertPrepare serializes an INSERT_PREPARE body little-endian:
// dbid:u32, serverid:u32, userid:u32, umid:u32, local_xid:u32, then the
// fdwxact_id as a u16 length prefix followed by its bytes.
func EncodeInsertPrepare(r InsertPrepare) ([]byte, error) {
	if len(r.FdwXactID) > maxFdwXactIDLen {
		return nil, fmt.Errorf("fxwal: fdwxact_id length %d exceeds %d bytes", len(r.FdwXactID), maxFdwXactIDLen)
	}
	buf := make([]byte, 4*5+2+len(r.FdwXactID))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.DBID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.ServerID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.UserID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.MappingID))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(r.LocalXid))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(r.FdwXactID)))
	copy(buf[22:], r.FdwXactID)
	return buf, nil
}

// DecodeInsertPrepare parses the body produced by EncodeInsertPrepare.
func DecodeInsertPrepare(buf []byte) (InsertPrepare, error) {
	if len(buf) < 22 {
		return InsertPrepare{}, fmt.Errorf("fxwal: insert_prepare record too short (%d bytes)", len(buf))
	}
	idLen := int(binary.LittleEndian.Uint16(buf[20:22]))
	if len(buf) < 22+idLen {
		return InsertPrepare{}, fmt.Errorf("fxwal: insert_prepare record truncated id (want %d, have %d)", idLen, len(buf)-22)
	}
	return InsertPrepare{
		DBID:      types.DatabaseID(binary.LittleEndian.Uint32(buf[0:4])),
		ServerID:  types.ServerID(binary.LittleEndian.Uint32(buf[4:8])),
		UserID:    types.UserID(binary.LittleEndian.Uint32(buf[8:12])),
		MappingID: types.MappingID(binary.LittleEndian.Uint32(buf[12:16])),
		LocalXid:  types.Xid(binary.LittleEndian.Uint32(buf[16:20])),
		FdwXactID: string(buf[22 : 22+idLen]),
	}, nil
}

// EncodeRemovePrepare serializes a REMOVE_PREPARE body little-endian:
// dbid:u32, serverid:u32, userid:u32, local_xid:u32.
func EncodeRemovePrepare(r RemovePrepare) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.DBID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.ServerID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.UserID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.LocalXid))
	return buf
}

// DecodeRemovePrepare parses the body produced by EncodeRemovePrepare.
func DecodeRemovePrepare(buf []byte) (RemovePrepare, error) {
	if len(buf) < 16 {
		return RemovePrepare{}, fmt.Errorf("fxwal: remove_prepare record too short (%d bytes)", len(buf))
	}
	return RemovePrepare{
		DBID:     types.DatabaseID(binary.LittleEndian.Uint32(buf[0:4])),
		ServerID: types.ServerID(binary.LittleEndian.Uint32(buf[4:8])),
		UserID:   types.UserID(binary.LittleEndian.Uint32(buf[8:12])),
		LocalXid: types.Xid(binary.LittleEndian.Uint32(buf[12:16])),
	}, nil
}
