package participant_test

import (
	"testing"

	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/participant/testdriver"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveIdempotent(t *testing.T) {
	reg := participant.NewRegistry()
	drv := testdriver.New()
	reg.Register("pg_test_fdw", drv)

	require.True(t, participant.IsPrepareCapable(drv))

	require.NoError(t, drv.Prepare(1, 10, 20, "px_1"))

	res1, err := reg.Resolve("pg_test_fdw", 10, 20, "px_1", true)
	require.NoError(t, err)
	require.Equal(t, participant.ResolveOK, res1)

	res2, err := reg.Resolve("pg_test_fdw", 10, 20, "px_1", true)
	require.NoError(t, err)
	require.Equal(t, participant.ResolveMissing, res2)

	committed, aborted := drv.Outcome(10, 20, "px_1")
	require.True(t, committed)
	require.False(t, aborted)
}

func TestRegistryLookupMissing(t *testing.T) {
	reg := participant.NewRegistry()
	_, err := reg.Lookup("nope")
	require.Error(t, err)
}

func TestDefaultMakePrepareIDBoundedLength(t *testing.T) {
	id, err := participant.DefaultMakePrepareID(1, 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(id), 200)
}
