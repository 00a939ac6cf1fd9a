package fxm

import (
	"testing"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/fxwal"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/participant/testdriver"
	"github.com/quorumix/fxcoord/pkg/statefile"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, capacity int) (*Manager, *participant.Registry) {
	t.Helper()
	dir := t.TempDir()

	wal, err := fxwal.Open(dir + "/fxwal.db")
	require.NoError(t, err)
	t.Cleanup(func() { wal.Close() })

	idx, err := statefile.OpenIndex(dir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	reg := participant.NewRegistry()
	return NewManager(capacity, wal, idx, reg, dir), reg
}

func TestAllocateRejectsDuplicateKey(t *testing.T) {
	m, _ := newTestManager(t, 4)
	key := types.FdwXactKey{DBID: 1, ServerID: 2, UserID: 3}

	m.mu.Lock()
	_, err := m.allocateLocked(key, 100, 0, "pg")
	require.NoError(t, err)
	_, err = m.allocateLocked(key, 200, 0, "pg")
	m.mu.Unlock()
	require.Error(t, err)
}

func TestAllocateExhaustsPoolThenReusesAfterDestroy(t *testing.T) {
	m, _ := newTestManager(t, 1)
	key := types.FdwXactKey{DBID: 1, ServerID: 2, UserID: 3}
	other := types.FdwXactKey{DBID: 1, ServerID: 2, UserID: 4}

	m.mu.Lock()
	_, err := m.allocateLocked(key, 100, 0, "pg")
	require.NoError(t, err)

	_, err = m.allocateLocked(other, 200, 0, "pg")
	require.Error(t, err)
	require.True(t, fxerr.Is(err, fxerr.SlotExhausted))

	m.destroyLocked(key)
	_, err = m.allocateLocked(other, 200, 0, "pg")
	m.mu.Unlock()
	require.NoError(t, err)
}

func TestFinalizeEntryRemovesFromPoolAndIndex(t *testing.T) {
	m, reg := newTestManager(t, 4)
	drv := testdriver.New()
	reg.Register("pg", drv)

	key := types.FdwXactKey{DBID: 1, ServerID: 2, UserID: 3}
	m.mu.Lock()
	entry, err := m.allocateLocked(key, 42, 0, "pg")
	m.mu.Unlock()
	require.NoError(t, err)

	entry.FdwXactID = "fx_test"
	require.NoError(t, drv.Prepare(42, 2, 3, "fx_test"))
	startLSN, endLSN, err := m.wal.AppendInsertPrepare(fxwal.InsertPrepare{
		DBID: 1, ServerID: 2, UserID: 3, LocalXid: 42, FdwXactID: "fx_test",
	})
	require.NoError(t, err)
	require.NoError(t, entry.MarkPrepared(startLSN, endLSN))
	require.NoError(t, m.spill(entry))

	require.NoError(t, entry.MarkCommitting())
	require.NoError(t, m.FinalizeEntry(entry, true))

	_, ok := m.Lookup(key)
	require.False(t, ok)

	rows, err := m.idx.List()
	require.NoError(t, err)
	require.Empty(t, rows)

	committed, aborted := drv.Outcome(2, 3, "fx_test")
	require.True(t, committed)
	require.False(t, aborted)
}

func TestRecoverRebuildsFromStateFilesAndMarksIndoubt(t *testing.T) {
	dir := t.TempDir()

	wal, err := fxwal.Open(dir + "/fxwal.db")
	require.NoError(t, err)

	idx, err := statefile.OpenIndex(dir)
	require.NoError(t, err)

	reg := participant.NewRegistry()
	m := NewManager(4, wal, idx, reg, dir)

	path, err := statefile.Write(dir, statefile.Header{
		Version: 1, Status: types.StatusPrepared, LocalXid: 9, ServerID: 1, UserID: 1, FdwXactID: "fx_recover",
	})
	require.NoError(t, err)
	require.NoError(t, idx.Put(1, path, 9, 1, 1, types.StatusPrepared))

	require.NoError(t, wal.Close())
	wal, err = fxwal.Open(dir + "/fxwal.db")
	require.NoError(t, err)
	m.wal = wal

	require.NoError(t, m.Recover(map[types.Xid]bool{}))

	entry, ok := m.Lookup(types.FdwXactKey{DBID: 1, ServerID: 1, UserID: 1})
	require.True(t, ok)
	snap := entry.Snapshot()
	require.True(t, snap.InDoubt)
	require.Equal(t, "fx_recover", snap.FdwXactID)
}

func TestBindDriverFillsRecoveredEntries(t *testing.T) {
	m, _ := newTestManager(t, 4)
	key := types.FdwXactKey{DBID: 1, ServerID: 5, UserID: 6}

	m.mu.Lock()
	_, err := m.allocateLocked(key, 1, 0, "")
	m.mu.Unlock()
	require.NoError(t, err)

	bound := m.BindDriver(5, 6, "pg")
	require.Equal(t, 1, bound)

	entry, ok := m.Lookup(key)
	require.True(t, ok)
	require.Equal(t, "pg", entry.DriverName)
}
