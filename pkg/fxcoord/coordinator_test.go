package fxcoord

import (
	"context"
	"testing"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/participant/testdriver"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestOpenStartShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.MaxPreparedForeignXacts = 4
	cfg.MaxForeignXactResolvers = 1

	c, err := Open(cfg)
	require.NoError(t, err)

	c.RegisterDriver("pg", testdriver.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.Empty(t, c.ListForeignXacts())
	require.Len(t, c.ListResolverSlots(), 1)
	require.False(t, c.StopResolver(99))

	require.NoError(t, c.Shutdown())
}

func TestRecoverAndBindForeignServer(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.MaxPreparedForeignXacts = 4
	cfg.MaxForeignXactResolvers = 1

	c, err := Open(cfg)
	require.NoError(t, err)
	c.RegisterDriver("pg", testdriver.New())

	s := c.FXM.BeginSession(1, 10, 1)
	s.RegisterParticipant(1, 1, 0, "pg", true)
	s.RegisterParticipant(2, 1, 0, "pg", true)
	require.NoError(t, c.FXM.PreCommit(s, types.TwoPhaseCommitRequired))
	require.NoError(t, c.FXM.PrepareFdwXactParticipants(s))
	require.NoError(t, c.Shutdown())

	// Reopen as a fresh process would after a crash: driver bindings are
	// not durable, so they must be reapplied before recovered entries can
	// be resolved.
	c2, err := Open(cfg)
	require.NoError(t, err)
	defer c2.Shutdown()

	require.NoError(t, c2.Recover(map[types.Xid]bool{}))
	require.Len(t, c2.ListForeignXacts(), 2)

	bound := c2.BindForeignServer(1, 1, "pg")
	require.Equal(t, 1, bound)
}
