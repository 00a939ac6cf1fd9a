// Package fxcoord wires the foreign-transaction manager, the resolver
// launcher, and the synchronous-replication wait engine into a single
// process, the way warren's Manager wires together raft, the CA, and the
// ingress controller: Coordinator is the one object cmd/fxcoordctl and any
// embedding host process needs to hold.
package fxcoord

import (
	"context"
	"fmt"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/fxm"
	"github.com/quorumix/fxcoord/pkg/fxwal"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/resolver"
	"github.com/quorumix/fxcoord/pkg/statefile"
	"github.com/quorumix/fxcoord/pkg/syncrep"
	"github.com/quorumix/fxcoord/pkg/types"
)

// Coordinator owns every durable resource a running fxcoord process needs:
// the WAL, the state-file index, the participant registry, FXM, the
// resolver launcher, and the SRW engine.
type Coordinator struct {
	cfg config.Config

	WAL      *fxwal.WAL
	Index    *statefile.Index
	Registry *participant.Registry
	FXM      *fxm.Manager
	Resolver *resolver.Launcher
	SyncRep  *syncrep.Engine

	cancel context.CancelFunc
}

// Open opens the WAL and state-file index under cfg.DataDir and
// constructs FXM, the resolver launcher, and the SRW engine against them.
// It does not start the resolver's background scan loop; call Start for
// that once every driver is registered via RegisterDriver and every
// ForeignServer resource has been applied via BindForeignServer.
func Open(cfg config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wal, err := fxwal.Open(cfg.DataDir + "/fxwal.db")
	if err != nil {
		return nil, fmt.Errorf("fxcoord: open wal: %w", err)
	}

	idx, err := statefile.OpenIndex(cfg.DataDir)
	if err != nil {
		wal.Close()
		return nil, fmt.Errorf("fxcoord: open state file index: %w", err)
	}

	reg := participant.NewRegistry()
	mgr := fxm.NewManager(cfg.MaxPreparedForeignXacts, wal, idx, reg, cfg.DataDir)

	return &Coordinator{
		cfg:      cfg,
		WAL:      wal,
		Index:    idx,
		Registry: reg,
		FXM:      mgr,
		Resolver: resolver.NewLauncher(mgr, reg, cfg),
		SyncRep:  syncrep.NewEngine(),
	}, nil
}

// RegisterDriver registers name against d, the equivalent of a foreign
// data wrapper handler being loaded. It does not bind any entry to the
// driver; applied ForeignServer resources do that through
// BindForeignServer (see cmd/fxcoordctl's apply command).
func (c *Coordinator) RegisterDriver(name string, d participant.Driver) {
	c.Registry.Register(name, d)
}

// BindForeignServer attaches driverName to (serverID,userID) for any
// entries Recover already rebuilt without a driver binding, and should be
// called once per applied ForeignServer resource after Recover.
func (c *Coordinator) BindForeignServer(serverID types.ServerID, userID types.UserID, driverName string) int {
	return c.FXM.BindDriver(serverID, userID, driverName)
}

// Recover runs FXM's startup recovery pass: state-file scan, WAL replay,
// then in-doubt marking for any entry whose LocalXid is not in liveXids.
func (c *Coordinator) Recover(liveXids map[types.Xid]bool) error {
	return c.FXM.Recover(liveXids)
}

// Start begins the resolver launcher's background scan loop.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.Resolver.Start(ctx)
	log.WithComponent("fxcoord").Info().Msg("coordinator started")
}

// Shutdown stops the resolver launcher and closes the WAL and state-file
// index. It does not wait for in-flight 2PC resolutions beyond the
// launcher's own Stop, which blocks until every worker has exited.
func (c *Coordinator) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.Resolver.Stop()

	if err := c.Index.Close(); err != nil {
		return fmt.Errorf("fxcoord: close state file index: %w", err)
	}
	if err := c.WAL.Close(); err != nil {
		return fmt.Errorf("fxcoord: close wal: %w", err)
	}
	return nil
}

// ListForeignXacts returns every currently tracked foreign transaction.
func (c *Coordinator) ListForeignXacts() []types.ForeignXactInfo {
	return c.FXM.ListForeignXacts()
}

// ListResolverSlots returns a snapshot of every resolver slot.
func (c *Coordinator) ListResolverSlots() []types.ResolverSlotInfo {
	return c.Resolver.Slots()
}

// StopResolver cancels the running resolver worker for dbid, if any.
func (c *Coordinator) StopResolver(dbid types.DatabaseID) bool {
	return c.Resolver.StopResolver(dbid)
}

// WaitForResolution blocks the calling backend until every prepared
// participant belonging to (dbid, xid) has been finalized with the given
// commit/abort decision, or ctx is canceled. This is the path a backend
// that called PrepareFdwXactParticipants and returned control to the
// client takes later to synchronously confirm a distributed commit/abort
// before acknowledging its own caller.
func (c *Coordinator) WaitForResolution(ctx context.Context, dbid types.DatabaseID, xid types.Xid, commit bool) error {
	return c.Resolver.RequestResolution(ctx, dbid, xid, commit)
}
