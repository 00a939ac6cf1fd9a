// Package fxtelemetry periodically samples FXM, the resolver launcher, and
// the SyncRep engine into pkg/metrics' gauges. It is kept separate from
// pkg/metrics itself so the domain packages (fxm, resolver, syncrep, fxwal,
// participant) can import pkg/metrics directly for their own inline
// counter/histogram updates without an import cycle back through a
// collector that depends on them.
package fxtelemetry

import (
	"fmt"
	"time"

	"github.com/quorumix/fxcoord/pkg/fxm"
	"github.com/quorumix/fxcoord/pkg/fxwal"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/resolver"
	"github.com/quorumix/fxcoord/pkg/syncrep"
	"github.com/quorumix/fxcoord/pkg/types"
)

// Collector periodically samples FXM, the resolver launcher, and the SRW
// engine into the metrics package's gauges, the way warren's Collector
// sampled the raft-backed Manager's node/service/container counts.
type Collector struct {
	mgr      *fxm.Manager
	launcher *resolver.Launcher
	syncrep  *syncrep.Engine

	stopCh chan struct{}
}

// NewCollector constructs a Collector over the given components.
func NewCollector(mgr *fxm.Manager, launcher *resolver.Launcher, engine *syncrep.Engine) *Collector {
	return &Collector{mgr: mgr, launcher: launcher, syncrep: engine, stopCh: make(chan struct{})}
}

// Start begins the sampling loop on a fixed 15s interval.
func (c *Collector) Start() {
	go c.run()
}

// Stop halts the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) run() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectForeignXacts()
	c.collectResolverSlots()
	c.collectSyncRep()
}

func (c *Collector) collectForeignXacts() {
	metrics.ForeignXactPoolCapacity.Set(float64(c.mgr.Capacity()))

	counts := map[types.FdwXactStatus]int{}
	indoubt := 0
	for _, x := range c.mgr.ListForeignXacts() {
		counts[x.Status]++
		if x.InDoubt {
			indoubt++
		}
	}
	metrics.ForeignXactsIndoubt.Set(float64(indoubt))

	for _, status := range []types.FdwXactStatus{
		types.StatusPreparing, types.StatusPrepared, types.StatusCommitting, types.StatusAborting,
	} {
		metrics.ForeignXactsTotal.WithLabelValues(status.String()).Set(float64(counts[status]))
	}
}

func (c *Collector) collectResolverSlots() {
	slots := c.launcher.Slots()
	metrics.ResolverSlotsCapacity.Set(float64(len(slots)))

	inUse := 0
	for _, s := range slots {
		if s.InUse {
			inUse++
		}
	}
	metrics.ResolverSlotsInUse.Set(float64(inUse))

	for _, dbid := range c.mgr.DatabasesNeedingResolution() {
		metrics.ResolverQueueDepth.WithLabelValues(fmt.Sprintf("%d", dbid)).Set(float64(c.launcher.QueueDepth(dbid)))
	}
}

func (c *Collector) collectSyncRep() {
	for _, mode := range []types.WaitMode{types.WaitWrite, types.WaitFlush} {
		metrics.SyncRepQueueDepth.WithLabelValues(mode.String()).Set(float64(c.syncrep.QueueDepth(mode)))
		metrics.SyncRepAdvertisedLSN.WithLabelValues(mode.String()).Set(float64(c.syncrep.AdvertisedLSN(mode)))
	}
}

// walProbe reports the WAL unhealthy if it can no longer answer a read of
// its own last LSN — the one operation every append, replay, and recovery
// path depends on.
type walProbe struct{ wal *fxwal.WAL }

func (p walProbe) Name() string { return "fxwal" }

func (p walProbe) Check() (bool, string) {
	if _, err := p.wal.LastLSN(); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// fxmProbe reports the entry pool unhealthy once it is fully exhausted:
// the same condition PreCommit/PrepareFdwXactParticipants would fail on
// with fxerr.SlotExhausted, surfaced here before a caller has to hit it.
type fxmProbe struct{ mgr *fxm.Manager }

func (p fxmProbe) Name() string { return "fxm" }

func (p fxmProbe) Check() (bool, string) {
	capacity := p.mgr.Capacity()
	if capacity == 0 {
		return true, ""
	}
	used := len(p.mgr.ListForeignXacts())
	if used >= capacity {
		return false, fmt.Sprintf("entry pool exhausted (%d/%d)", used, capacity)
	}
	return true, ""
}

// resolverProbe reports the resolver slot table unhealthy once every slot
// is in use, meaning a database with fresh in-doubt work has nowhere to
// launch a worker until one exits.
type resolverProbe struct{ launcher *resolver.Launcher }

func (p resolverProbe) Name() string { return "resolver" }

func (p resolverProbe) Check() (bool, string) {
	slots := p.launcher.Slots()
	if len(slots) == 0 {
		return true, ""
	}
	inUse := 0
	for _, s := range slots {
		if s.InUse {
			inUse++
		}
	}
	if inUse >= len(slots) {
		return false, fmt.Sprintf("resolver slot table exhausted (%d/%d)", inUse, len(slots))
	}
	return true, ""
}

// RegisterHealthProbes wires wal/mgr/launcher into pkg/metrics' health and
// readiness endpoints, sampling the same three components Collector
// samples into gauges but evaluated live on every /health or /ready
// request rather than on a timer.
func RegisterHealthProbes(wal *fxwal.WAL, mgr *fxm.Manager, launcher *resolver.Launcher) {
	metrics.RegisterProbe(walProbe{wal: wal})
	metrics.RegisterProbe(fxmProbe{mgr: mgr})
	metrics.RegisterProbe(resolverProbe{launcher: launcher})
}
