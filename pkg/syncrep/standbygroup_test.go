package syncrep

import (
	"testing"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestParseStandbyGroupLegacyList(t *testing.T) {
	g, err := ParseStandbyGroup("'s1', 's2'")
	require.NoError(t, err)
	require.Equal(t, types.QuorumPriority, g.Method)
	require.Equal(t, 1, g.WaitNum)
	require.Len(t, g.Children, 2)
	require.Equal(t, "s1", g.Children[0].Name)
}

func TestParseStandbyGroupFirstN(t *testing.T) {
	g, err := ParseStandbyGroup("FIRST 2 (s1, s2, s3)")
	require.NoError(t, err)
	require.Equal(t, 2, g.WaitNum)
	require.Len(t, g.Children, 3)
}

func TestParseStandbyGroupAnyIsPrioritySynonym(t *testing.T) {
	g, err := ParseStandbyGroup("ANY 1 (s1, *)")
	require.NoError(t, err)
	require.Equal(t, types.QuorumPriority, g.Method)
	require.True(t, g.Children[1].Wildcard)
}

func TestParseStandbyGroupEmpty(t *testing.T) {
	g, err := ParseStandbyGroup("")
	require.NoError(t, err)
	require.Nil(t, g)
}

func TestGetSyncedLsnsInsufficientStandbys(t *testing.T) {
	g, err := ParseStandbyGroup("FIRST 2 (s1, s2)")
	require.NoError(t, err)

	states := []StandbyState{
		{Name: "s1", PID: 100, Priority: 1, Streaming: true, WriteLSN: 10, FlushLSN: 5},
	}
	_, _, ok := GetSyncedLsns(g, states)
	require.False(t, ok)
}

func TestGetSyncedLsnsTakesMinimum(t *testing.T) {
	g, err := ParseStandbyGroup("FIRST 2 (s1, s2, s3)")
	require.NoError(t, err)

	states := []StandbyState{
		{Name: "s1", PID: 1, Priority: 1, Streaming: true, WriteLSN: 100, FlushLSN: 90},
		{Name: "s2", PID: 2, Priority: 2, Streaming: true, WriteLSN: 80, FlushLSN: 70},
		{Name: "s3", PID: 3, Priority: 3, Streaming: true, WriteLSN: 50, FlushLSN: 40},
	}
	write, flush, ok := GetSyncedLsns(g, states)
	require.True(t, ok)
	require.Equal(t, types.LSN(80), write)
	require.Equal(t, types.LSN(70), flush)
}

func TestGetSyncedLsnsWildcardAdmitsAnyActive(t *testing.T) {
	g, err := ParseStandbyGroup("FIRST 1 (*)")
	require.NoError(t, err)

	states := []StandbyState{
		{Name: "s9", PID: 9, Priority: 1, Streaming: true, WriteLSN: 30, FlushLSN: 20},
	}
	write, flush, ok := GetSyncedLsns(g, states)
	require.True(t, ok)
	require.Equal(t, types.LSN(30), write)
	require.Equal(t, types.LSN(20), flush)
}
