package statefile

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/quorumix/fxcoord/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketIndex = []byte("fxwal_ondisk")

// entryRecord is the bbolt value stored per indexed state file.
type entryRecord struct {
	Path     string
	LocalXid types.Xid
	ServerID types.ServerID
	UserID   types.UserID
	DBID     types.DatabaseID
	Status   types.FdwXactStatus
}

// Index is a bbolt-backed lookup from (dbid,serverid,userid) to the
// on-disk state file path and last known status, so PrescanFdwXacts and
// recovery can list surviving entries without walking the state file
// directory.
type Index struct {
	db *bolt.DB
}

// OpenIndex opens (creating if necessary) the index database under dataDir.
func OpenIndex(dataDir string) (*Index, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "fxwal_index.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("statefile: open index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIndex)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statefile: create index bucket: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the index database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func indexKey(dbid types.DatabaseID, serverID types.ServerID, userID types.UserID) []byte {
	return []byte(fmt.Sprintf("%08x-%08x-%08x", uint32(dbid), uint32(serverID), uint32(userID)))
}

// Put records (or updates) the index entry for a spilled state file.
func (idx *Index) Put(dbid types.DatabaseID, path string, xid types.Xid, serverID types.ServerID, userID types.UserID, status types.FdwXactStatus) error {
	rec := entryRecord{Path: path, LocalXid: xid, ServerID: serverID, UserID: userID, DBID: dbid, Status: status}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Put(indexKey(dbid, serverID, userID), data)
	})
}

// Delete removes the index entry, called when REMOVE_PREPARE unlinks the
// backing state file.
func (idx *Index) Delete(dbid types.DatabaseID, serverID types.ServerID, userID types.UserID) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Delete(indexKey(dbid, serverID, userID))
	})
}

// List returns every indexed state file record, used during Recover's
// state-file scan step.
func (idx *Index) List() ([]IndexedEntry, error) {
	var out []IndexedEntry
	err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).ForEach(func(k, v []byte) error {
			var rec entryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, IndexedEntry{
				DBID:     rec.DBID,
				ServerID: rec.ServerID,
				UserID:   rec.UserID,
				LocalXid: rec.LocalXid,
				Path:     rec.Path,
				Status:   rec.Status,
			})
			return nil
		})
	})
	return out, err
}

// IndexedEntry is a read-only view of one state file index row.
type IndexedEntry struct {
	DBID     types.DatabaseID
	ServerID types.ServerID
	UserID   types.UserID
	LocalXid types.Xid
	Path     string
	Status   types.FdwXactStatus
}
