// Package fxm is the foreign-transaction manager: a fixed-capacity pool of
// FdwXactEntry slots tracking every participant currently prepared or being
// prepared against a foreign server, plus the session-scoped bookkeeping a
// local transaction uses to decide whether it needs two-phase commit at
// all.
package fxm

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/fxwal"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/statefile"
	"github.com/quorumix/fxcoord/pkg/types"
)

// Manager owns the FdwXact entry arena (FdwXactLock's domain) plus the
// durable log and state-file spill every allocation and destruction must
// stay consistent with.
type Manager struct {
	mu      sync.RWMutex // FdwXactLock
	entries []*FdwXactEntry
	free    []int
	byKey   map[types.FdwXactKey]int

	wal     *fxwal.WAL
	idx     *statefile.Index
	dataDir string
	reg     *participant.Registry
}

// NewManager constructs a Manager with a fixed entry pool of the given
// capacity (max_prepared_foreign_xacts), backed by wal for durability and
// idx for state-file bookkeeping.
func NewManager(capacity int, wal *fxwal.WAL, idx *statefile.Index, reg *participant.Registry, dataDir string) *Manager {
	free := make([]int, capacity)
	for i := range free {
		free[i] = capacity - 1 - i
	}
	return &Manager{
		entries: make([]*FdwXactEntry, capacity),
		free:    free,
		byKey:   make(map[types.FdwXactKey]int),
		wal:     wal,
		idx:     idx,
		reg:     reg,
		dataDir: dataDir,
	}
}

// Capacity returns the entry pool's fixed size.
func (m *Manager) Capacity() int {
	return len(m.entries)
}

// allocateLocked reserves a free slot for key. Caller holds m.mu.
func (m *Manager) allocateLocked(key types.FdwXactKey, xid types.Xid, mappingID types.MappingID, driverName string) (*FdwXactEntry, error) {
	if _, exists := m.byKey[key]; exists {
		return nil, fmt.Errorf("fxm: entry already registered for db=%d server=%d user=%d", key.DBID, key.ServerID, key.UserID)
	}
	if len(m.free) == 0 {
		return nil, fxerr.New(fxerr.SlotExhausted, "fxm: prepared foreign transaction entry pool exhausted")
	}

	idx := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]

	entry := &FdwXactEntry{DriverName: driverName}
	entry.LocalXid = xid
	entry.DBID = key.DBID
	entry.ServerID = key.ServerID
	entry.UserID = key.UserID
	entry.MappingID = mappingID
	entry.Status = types.StatusPreparing

	m.entries[idx] = entry
	m.byKey[key] = idx
	return entry, nil
}

// destroyLocked frees key's slot. Caller holds m.mu. A no-op if key is not
// currently allocated, matching REMOVE_PREPARE's idempotent redo.
func (m *Manager) destroyLocked(key types.FdwXactKey) {
	idx, ok := m.byKey[key]
	if !ok {
		return
	}
	delete(m.byKey, key)
	m.entries[idx] = nil
	m.free = append(m.free, idx)
}

// Lookup returns the entry registered under key, if any.
func (m *Manager) Lookup(key types.FdwXactKey) (*FdwXactEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byKey[key]
	if !ok {
		return nil, false
	}
	return m.entries[idx], true
}

// spill writes the entry's state file and index record. Called once
// an entry reaches Prepared so it survives process restart. Caller holds
// no lock on m.mu that would block the entry's own I/O-free spin lock.
func (m *Manager) spill(e *FdwXactEntry) error {
	snap := e.Snapshot()
	path, err := statefile.Write(m.dataDir, statefile.Header{
		Version:   1,
		Status:    snap.Status,
		LocalXid:  snap.LocalXid,
		ServerID:  snap.ServerID,
		UserID:    snap.UserID,
		MappingID: snap.MappingID,
		FdwXactID: snap.FdwXactID,
	})
	if err != nil {
		return err
	}
	e.withLock(func() {
		e.StatePath = path
		e.OnDisk = true
	})
	if err := m.idx.Put(snap.DBID, path, snap.LocalXid, snap.ServerID, snap.UserID, snap.Status); err != nil {
		return fxerr.Wrap(fxerr.WALIO, "index state file", err)
	}
	return nil
}

// unspill removes an entry's state file and index record once it has been
// finalized and its WAL removal record is durable.
func (m *Manager) unspill(e *FdwXactEntry) {
	var path string
	var dbid types.DatabaseID
	var serverID types.ServerID
	var userID types.UserID
	e.withLock(func() {
		path = e.StatePath
		dbid, serverID, userID = e.DBID, e.ServerID, e.UserID
	})
	if path == "" {
		return
	}
	if err := statefile.Unlink(path); err != nil {
		log.Warn("fxm: unlink state file failed: " + err.Error())
	}
	if err := m.idx.Delete(dbid, serverID, userID); err != nil {
		log.Warn("fxm: delete state file index entry failed: " + err.Error())
	}
}

// BindDriver retroactively attaches a driver name to every currently
// allocated entry for (serverID,userID) that lacks one. Entries rebuilt by
// Recover come back from the WAL and state-file index with no driver name,
// since neither durably records the foreign-server-to-adapter binding;
// that binding lives in the ForeignServer resources an operator applies,
// so a restart must reapply them before the resolver can finalize any
// entry it recovers.
func (m *Manager) BindDriver(serverID types.ServerID, userID types.UserID, driverName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bound := 0
	for _, e := range m.entries {
		if e == nil || e.ServerID != serverID || e.UserID != userID {
			continue
		}
		e.withLock(func() {
			if e.DriverName == "" {
				e.DriverName = driverName
				bound++
			}
		})
	}
	return bound
}

// ListForeignXacts returns a snapshot of every currently allocated entry,
// the data backing the pg_foreign_xacts() observability surface.
func (m *Manager) ListForeignXacts() []types.ForeignXactInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ForeignXactInfo, 0, len(m.byKey))
	for _, idx := range m.byKey {
		e := m.entries[idx]
		snap := e.Snapshot()
		out = append(out, types.ForeignXactInfo{
			Xid:      snap.LocalXid,
			DBID:     snap.DBID,
			ServerID: snap.ServerID,
			UserID:   snap.UserID,
			Status:   snap.Status,
			InDoubt:  snap.InDoubt,
			OnDisk:   snap.OnDisk,
		})
	}
	return out
}

// DatabasesNeedingResolution returns every database with at least one
// in-doubt entry — work the resolver's in-doubt pass must pick up even if
// no backend is actively waiting on it.
func (m *Manager) DatabasesNeedingResolution() []types.DatabaseID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[types.DatabaseID]bool)
	var out []types.DatabaseID
	for _, idx := range m.entries {
		if idx == nil {
			continue
		}
		if !idx.InDoubt {
			continue
		}
		if !seen[idx.DBID] {
			seen[idx.DBID] = true
			out = append(out, idx.DBID)
		}
	}
	return out
}

// ClaimEntriesForXid claims (via TryClaim) every entry belonging to dbid
// and xid, returning only the ones this call won the claim on. Used by a
// resolver worker draining a waiter: the entries a single backend prepared
// for one local transaction may span several foreign servers, all of
// which must finalize before the waiter is released.
func (m *Manager) ClaimEntriesForXid(dbid types.DatabaseID, xid types.Xid) []*FdwXactEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*FdwXactEntry
	for _, e := range m.entries {
		if e == nil || e.DBID != dbid || e.LocalXid != xid {
			continue
		}
		if e.TryClaim() {
			out = append(out, e)
		}
	}
	return out
}

// IndoubtEntries returns every in-doubt entry belonging to dbid, used by a
// resolver worker's in-doubt pass.
func (m *Manager) IndoubtEntries(dbid types.DatabaseID) []*FdwXactEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*FdwXactEntry
	for _, e := range m.entries {
		if e == nil || e.DBID != dbid || !e.InDoubt {
			continue
		}
		out = append(out, e)
	}
	return out
}

// PrescanFdwXacts narrows the oldest-active-transaction boundary to no
// later than the smallest LocalXid still holding a live entry, mirroring
// the reference implementation's scan over the shared array before
// computing an OldestXmin.
func (m *Manager) PrescanFdwXacts(oldestActive types.Xid) types.Xid {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := oldestActive
	for _, e := range m.entries {
		if e == nil {
			continue
		}
		if e.LocalXid < result {
			result = e.LocalXid
		}
	}
	return result
}

// FinalizeEntry drives a claimed entry's terminal resolve step: calling the
// participant driver, then on success writing REMOVE_PREPARE and freeing
// the slot and state file. Callers (AtEOXact's 2PC path, the abort of a
// partially prepared PrepareFdwXactParticipants, or a resolver worker)
// must have already called e.TryClaim.
func (m *Manager) FinalizeEntry(e *FdwXactEntry, commit bool) error {
	snap := e.Snapshot()
	res, err := m.reg.Resolve(e.DriverName, snap.ServerID, snap.UserID, snap.FdwXactID, commit)
	if err != nil {
		e.MarkIndoubt()
		e.ClearClaim()
		return err
	}
	_ = res // ResolveOK and ResolveMissing both mean "finalized"

	if _, _, err := m.wal.AppendRemovePrepare(fxwal.RemovePrepare{
		DBID:     snap.DBID,
		ServerID: snap.ServerID,
		UserID:   snap.UserID,
		LocalXid: snap.LocalXid,
	}); err != nil {
		// The participant is already finalized; a WAL failure here only
		// delays slot reclamation on the next restart's replay, so it is
		// logged rather than treated as a reason to leave the entry
		// claimed forever.
		log.Warn("fxm: remove_prepare wal append failed: " + err.Error())
	}

	m.unspill(e)

	m.mu.Lock()
	m.destroyLocked(snap.Key())
	m.mu.Unlock()
	return nil
}

// Recover rebuilds the entry pool from the state-file index and replays
// the WAL forward from LSN 0, matching the reference startup sequence:
// state files seed PREPARED entries first, then the log fills in any
// insert/remove that happened after the last checkpoint spill. Entries
// whose LocalXid is not present in liveXids (the host transaction
// manager's recognized in-progress set) are marked in-doubt, since no
// backend remains to drive their resolution.
func (m *Manager) Recover(liveXids map[types.Xid]bool) error {
	rows, err := m.idx.List()
	if err != nil {
		return fxerr.Wrap(fxerr.WALIO, "list state file index", err)
	}

	m.mu.Lock()
	for _, row := range rows {
		key := types.FdwXactKey{DBID: row.DBID, ServerID: row.ServerID, UserID: row.UserID}
		entry, err := m.allocateLocked(key, row.LocalXid, 0, "")
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("fxm: recover: %w", err)
		}
		h, err := statefile.Read(row.Path)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("fxm: recover: %w", err)
		}
		entry.FdwXactID = h.FdwXactID
		entry.MappingID = h.MappingID
		entry.Status = row.Status
		entry.StatePath = row.Path
		entry.OnDisk = true
		entry.Valid = true
		entry.InRedo = true
	}
	m.mu.Unlock()

	err = m.wal.Replay(0,
		func(lsn types.LSN, r fxwal.InsertPrepare) error {
			key := types.FdwXactKey{DBID: r.DBID, ServerID: r.ServerID, UserID: r.UserID}
			m.mu.Lock()
			defer m.mu.Unlock()
			if existing, ok := m.byKey[key]; ok {
				e := m.entries[existing]
				e.withLock(func() {
					e.InsertLSN = lsn
					e.InsertEnd = lsn
					e.Valid = true
					e.FdwXactID = r.FdwXactID
				})
				return nil
			}
			entry, err := m.allocateLocked(key, r.LocalXid, r.MappingID, "")
			if err != nil {
				return err
			}
			entry.FdwXactID = r.FdwXactID
			entry.InsertLSN = lsn
			entry.InsertEnd = lsn
			entry.Valid = true
			entry.Status = types.StatusPrepared
			entry.InRedo = true
			return nil
		},
		func(lsn types.LSN, r fxwal.RemovePrepare) error {
			key := types.FdwXactKey{DBID: r.DBID, ServerID: r.ServerID, UserID: r.UserID}
			m.mu.Lock()
			defer m.mu.Unlock()
			m.destroyLocked(key)
			return nil
		},
	)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e == nil {
			continue
		}
		if !liveXids[e.LocalXid] {
			e.MarkIndoubt()
		}
	}
	return nil
}
