// Package statefile implements the on-disk checkpoint spill for prepared
// foreign transactions: a fixed-header file per entry plus a CRC32C
// trailer, and a bbolt-backed index so recovery can enumerate surviving
// entries without a directory scan.
package statefile

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/types"
)

const (
	magic        uint32 = 0x46445843 // "FDXC"
	formatVersion uint16 = 1

	headerLen = 4 + 2 + 2 + 4 + 4 + 4 + 4 + 2 // magic,version,status,local_xid,serverid,userid,umid,id_len
	crcLen    = 4
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the fixed-size prefix of a state file.
type Header struct {
	Version   uint16
	Status    types.FdwXactStatus
	LocalXid  types.Xid
	ServerID  types.ServerID
	UserID    types.UserID
	MappingID types.MappingID
	FdwXactID string
}

// Dir returns the state file directory under dataDir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "pg_fdwxact")
}

// Path returns the state file path for the given entry key, named
// <xid hex,8>-<serverid hex,8>-<userid hex,8>.
func Path(dataDir string, xid types.Xid, serverID types.ServerID, userID types.UserID) string {
	return filepath.Join(Dir(dataDir), fmt.Sprintf("%08X-%08X-%08X", uint32(xid), uint32(serverID), uint32(userID)))
}

// Encode serializes h into the on-disk format: header, id bytes, CRC32C
// trailer over everything preceding it.
func Encode(h Header) ([]byte, error) {
	if len(h.FdwXactID) > 200 {
		return nil, fmt.Errorf("statefile: fdwxact_id length %d exceeds 200 bytes", len(h.FdwXactID))
	}

	body := make([]byte, headerLen+len(h.FdwXactID))
	binary.LittleEndian.PutUint32(body[0:4], magic)
	binary.LittleEndian.PutUint16(body[4:6], formatVersion)
	binary.LittleEndian.PutUint16(body[6:8], uint16(h.Status))
	binary.LittleEndian.PutUint32(body[8:12], uint32(h.LocalXid))
	binary.LittleEndian.PutUint32(body[12:16], uint32(h.ServerID))
	binary.LittleEndian.PutUint32(body[16:20], uint32(h.UserID))
	binary.LittleEndian.PutUint32(body[20:24], uint32(h.MappingID))
	binary.LittleEndian.PutUint16(body[24:26], uint16(len(h.FdwXactID)))
	copy(body[26:], h.FdwXactID)

	checksum := crc32.Checksum(body, crc32cTable)
	out := make([]byte, len(body)+crcLen)
	copy(out, body)
	binary.LittleEndian.PutUint32(out[len(body):], checksum)
	return out, nil
}

// Decode parses and CRC-validates a state file's raw bytes.
func Decode(buf []byte) (Header, error) {
	if len(buf) < headerLen+crcLen {
		return Header{}, fxerr.New(fxerr.StateFileCorrupt, "truncated state file")
	}

	body := buf[:len(buf)-crcLen]
	wantCRC := binary.LittleEndian.Uint32(buf[len(buf)-crcLen:])
	gotCRC := crc32.Checksum(body, crc32cTable)
	if wantCRC != gotCRC {
		return Header{}, fxerr.New(fxerr.StateFileCorrupt, "crc32c mismatch")
	}

	if binary.LittleEndian.Uint32(body[0:4]) != magic {
		return Header{}, fxerr.New(fxerr.StateFileCorrupt, "bad magic")
	}

	idLen := int(binary.LittleEndian.Uint16(body[24:26]))
	if len(body) < headerLen+idLen {
		return Header{}, fxerr.New(fxerr.StateFileCorrupt, "truncated fdwxact_id")
	}

	return Header{
		Version:   binary.LittleEndian.Uint16(body[4:6]),
		Status:    types.FdwXactStatus(binary.LittleEndian.Uint16(body[6:8])),
		LocalXid:  types.Xid(binary.LittleEndian.Uint32(body[8:12])),
		ServerID:  types.ServerID(binary.LittleEndian.Uint32(body[12:16])),
		UserID:    types.UserID(binary.LittleEndian.Uint32(body[16:20])),
		MappingID: types.MappingID(binary.LittleEndian.Uint32(body[20:24])),
		FdwXactID: string(body[headerLen : headerLen+idLen]),
	}, nil
}

// Write spills h to its state file under dataDir, creating the state file
// directory if necessary.
func Write(dataDir string, h Header) (string, error) {
	if err := os.MkdirAll(Dir(dataDir), 0o750); err != nil {
		return "", fxerr.Wrap(fxerr.WALIO, "create state file directory", err)
	}

	buf, err := Encode(h)
	if err != nil {
		return "", fxerr.Wrap(fxerr.WALIO, "encode state file", err)
	}

	path := Path(dataDir, h.LocalXid, h.ServerID, h.UserID)
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		return "", fxerr.Wrap(fxerr.WALIO, "write state file", err)
	}
	return path, nil
}

// Read loads and validates the state file at path.
func Read(path string) (Header, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fxerr.Wrap(fxerr.WALIO, "read state file", err)
	}
	return Decode(buf)
}

// Unlink removes the state file at path; a missing file is not an error,
// matching REMOVE_PREPARE's idempotent redo behavior.
func Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fxerr.Wrap(fxerr.WALIO, "unlink state file", err)
	}
	return nil
}
