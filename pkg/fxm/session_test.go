package fxm

import (
	"testing"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/participant/testdriver"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestPreCommitSkipsSingleParticipantNoLocalWrites(t *testing.T) {
	m, reg := newTestManager(t, 4)
	reg.Register("pg", testdriver.New())

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", true)

	require.NoError(t, m.PreCommit(s, types.TwoPhaseCommitDisabled))
	require.False(t, s.needs2PC)
}

func TestPreCommitDisabledRejectsMultiParticipant(t *testing.T) {
	m, reg := newTestManager(t, 4)
	reg.Register("pg", testdriver.New())

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", true)
	s.RegisterParticipant(2, 1, 0, "pg", true)

	err := m.PreCommit(s, types.TwoPhaseCommitDisabled)
	require.Error(t, err)
	require.True(t, fxerr.Is(err, fxerr.TwoPhaseCommitNotAllowed))
}

func TestPreCommitRequiredLocalWritePlusOneParticipantNeeds2PC(t *testing.T) {
	m, reg := newTestManager(t, 4)
	reg.Register("pg", testdriver.New())

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", true)
	s.SetLocalModified(true)

	require.NoError(t, m.PreCommit(s, types.TwoPhaseCommitRequired))
	require.True(t, s.needs2PC)
}

func TestAtEOXactOnePhaseCommitsAllParticipants(t *testing.T) {
	m, reg := newTestManager(t, 4)
	drv := testdriver.New()
	reg.Register("pg", drv)

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", false)
	require.NoError(t, m.PreCommit(s, types.TwoPhaseCommitRequired))

	require.NoError(t, m.AtEOXact(s, true))
	require.Empty(t, m.ListForeignXacts())
}

func TestAtEOXactTwoPhaseCommitResolvesAndClearsPool(t *testing.T) {
	m, reg := newTestManager(t, 4)
	drv := testdriver.New()
	reg.Register("pg", drv)

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", true)
	s.RegisterParticipant(2, 1, 0, "pg", true)
	require.NoError(t, m.PreCommit(s, types.TwoPhaseCommitRequired))
	require.True(t, s.needs2PC)

	require.NoError(t, m.AtEOXact(s, true))
	require.Empty(t, m.ListForeignXacts())
}

func TestPrepareFdwXactParticipantsAbortsAllOnFailure(t *testing.T) {
	m, reg := newTestManager(t, 4)
	ok := testdriver.New()
	reg.Register("ok", ok)
	// "missing" is unregistered so the prepare of the second participant
	// fails lookup, forcing the first to be rolled back.

	s := m.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "ok", true)
	s.RegisterParticipant(2, 1, 0, "missing", true)

	err := m.PrepareFdwXactParticipants(s)
	require.Error(t, err)
	require.Empty(t, m.ListForeignXacts())
}
