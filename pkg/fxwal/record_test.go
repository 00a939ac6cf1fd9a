package fxwal

import (
	"strings"
	"testing"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestInsertPrepareRoundTrip(t *testing.T) {
	want := InsertPrepare{
		DBID:      1,
		ServerID:  2,
		UserID:    3,
		MappingID: 4,
		LocalXid:  500,
		FdwXactID: "px_deadbeef",
	}

	buf, err := EncodeInsertPrepare(want)
	require.NoError(t, err)

	got, err := DecodeInsertPrepare(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestInsertPrepareRejectsOversizedID(t *testing.T) {
	_, err := EncodeInsertPrepare(InsertPrepare{FdwXactID: strings.Repeat("x", maxFdwXactIDLen+1)})
	require.Error(t, err)
}

func TestRemovePrepareRoundTrip(t *testing.T) {
	want := RemovePrepare{DBID: 7, ServerID: 8, UserID: 9, LocalXid: 1000}
	got, err := DecodeRemovePrepare(EncodeRemovePrepare(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeInsertPrepareTruncated(t *testing.T) {
	_, err := DecodeInsertPrepare([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRemovePrepareTruncated(t *testing.T) {
	_, err := DecodeRemovePrepare([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir + "/fxwal.db")
	require.NoError(t, err)
	defer w.Close()

	start, end, err := w.AppendInsertPrepare(InsertPrepare{DBID: 1, ServerID: 2, UserID: 3, LocalXid: 42, FdwXactID: "px1"})
	require.NoError(t, err)
	require.Equal(t, start, end)

	_, _, err = w.AppendRemovePrepare(RemovePrepare{DBID: 1, ServerID: 2, UserID: 3, LocalXid: 42})
	require.NoError(t, err)

	var inserts []InsertPrepare
	var removes []RemovePrepare
	err = w.Replay(0, func(lsn types.LSN, r InsertPrepare) error {
		inserts = append(inserts, r)
		return nil
	}, func(lsn types.LSN, r RemovePrepare) error {
		removes = append(removes, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, inserts, 1)
	require.Len(t, removes, 1)
	require.Equal(t, types.Xid(42), inserts[0].LocalXid)
}
