package statefile

import (
	"testing"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Version:   formatVersion,
		Status:    types.StatusPrepared,
		LocalXid:  99,
		ServerID:  1,
		UserID:    2,
		MappingID: 3,
		FdwXactID: "px_abc123",
	}

	buf, err := Encode(h)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	h := Header{Status: types.StatusPrepared, LocalXid: 1, ServerID: 1, UserID: 1, FdwXactID: "px"}
	buf, err := Encode(h)
	require.NoError(t, err)

	buf[10] ^= 0xFF
	_, err = Decode(buf)
	require.Error(t, err)
}

func TestWriteReadUnlink(t *testing.T) {
	dir := t.TempDir()
	h := Header{Status: types.StatusPrepared, LocalXid: 7, ServerID: 8, UserID: 9, FdwXactID: "px_xyz"}

	path, err := Write(dir, h)
	require.NoError(t, err)

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, h.FdwXactID, got.FdwXactID)

	require.NoError(t, Unlink(path))
	require.NoError(t, Unlink(path)) // idempotent
}

func TestIndexPutListDelete(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Put(1, "/tmp/x", 5, 6, 7, types.StatusPrepared))

	entries, err := idx.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.Xid(5), entries[0].LocalXid)

	require.NoError(t, idx.Delete(1, 6, 7))
	entries, err = idx.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}
