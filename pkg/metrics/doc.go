/*
Package metrics provides Prometheus metrics collection and exposition for
fxcoord.

The metrics package defines and registers all fxcoord metrics using the
Prometheus client library, providing observability into the foreign
transaction pool, the resolver, and the synchronous-replication wait
engine. Metrics are exposed via HTTP endpoint for scraping by Prometheus
servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (pool occupancy)     │          │
	│  │  Counter: Monotonic increases (PreCommits)  │          │
	│  │  Histogram: Distributions (resolve latency) │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  FXM: Pool occupancy, in-doubt count        │          │
	│  │  Resolver: Slots, queue depth, backoff      │          │
	│  │  SyncRep: Wait queue depth, advertised LSN  │          │
	│  │  WAL: Append latency                        │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

Unlike the cluster-wide gauges a control-plane process samples on a
timer, most fxcoord metrics are updated inline by the code path they
describe (PreCommitTotal.Inc, PrepareDuration.Observe). The pool and
queue gauges are the exception: pkg/fxtelemetry's Collector samples FXM,
the resolver launcher, and the SyncRep engine on a fixed interval, the
same pattern warren used for cluster-wide gauges it couldn't update
inline. Collector lives in its own package, rather than here, because it
imports fxm/resolver/syncrep; keeping those imports out of this package
is what lets fxm/resolver/syncrep/fxwal/participant import this package
back for their inline updates.

# Metrics Catalog

FXM Metrics:

fxcoord_foreign_xacts_total{status}:
  - Type: Gauge
  - Description: Current prepared foreign transaction entries by status
  - Labels: status (preparing/prepared/committing/aborting)
  - Example: fxcoord_foreign_xacts_total{status="prepared"} 4

fxcoord_foreign_xacts_indoubt:
  - Type: Gauge
  - Description: Entries awaiting resolver finalization after a crash
  - Example: fxcoord_foreign_xacts_indoubt 2

fxcoord_foreign_xact_pool_capacity:
  - Type: Gauge
  - Description: Configured max_prepared_foreign_xacts entry pool size

fxcoord_precommit_total{outcome}:
  - Type: Counter
  - Description: Total PreCommit decisions by outcome (local_only,
    two_phase, rejected)

fxcoord_prepare_duration_seconds:
  - Type: Histogram
  - Description: Time to prepare all modifying participants of a
    transaction
  - Buckets: Default Prometheus buckets

Resolver Metrics:

fxcoord_resolve_duration_seconds{result}:
  - Type: Histogram
  - Description: Time for a single participant resolve call, by result
    (committed, aborted, missing, error)

fxcoord_resolver_slots_in_use:
  - Type: Gauge
  - Description: Resolver slots currently running a worker

fxcoord_resolver_slots_capacity:
  - Type: Gauge
  - Description: Configured max_foreign_xact_resolvers slot table size

fxcoord_resolver_queue_depth{dbid}:
  - Type: Gauge
  - Description: Waiters currently queued per database for resolution

fxcoord_resolver_backoff_seconds:
  - Type: Histogram
  - Description: Backoff duration applied after a failed resolve attempt
  - Buckets: 1, 2, 4, 8, 16, 32, 64, 128, 300

SyncRep Metrics:

fxcoord_syncrep_queue_depth{mode}:
  - Type: Gauge
  - Description: Backends currently blocked in WaitForLSN, by wait mode
    (write, flush)

fxcoord_syncrep_advertised_lsn{mode}:
  - Type: Gauge
  - Description: Most recently advertised safe LSN, by wait mode

fxcoord_syncrep_wait_duration_seconds{mode}:
  - Type: Histogram
  - Description: Time backends spend blocked in WaitForLSN, by wait mode

WAL Metrics:

fxcoord_wal_append_duration_seconds:
  - Type: Histogram
  - Description: Time to append and durably store one WAL record

# Usage

Updating Gauge Metrics:

	import "github.com/quorumix/fxcoord/pkg/metrics"

	metrics.ForeignXactsTotal.WithLabelValues("prepared").Set(4)
	metrics.ForeignXactPoolCapacity.Set(64)

Updating Counter Metrics:

	metrics.PreCommitTotal.WithLabelValues("two_phase").Inc()

Recording Histogram Observations:

	timer := metrics.NewTimer()
	// ... prepare participants ...
	timer.ObserveDuration(metrics.PrepareDuration)

	timer = metrics.NewTimer()
	// ... resolve one participant ...
	timer.ObserveDurationVec(metrics.ResolveDuration, "committed")

Running the Collector:

	c := fxtelemetry.NewCollector(mgr, launcher, engine)
	c.Start()
	defer c.Stop()

Registering Health Probes:

	fxtelemetry.RegisterHealthProbes(wal, mgr, launcher)
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())

A Probe's Check is called fresh on every /health or /ready request, not
cached at RegisterProbe time, so a component that degrades between two
scrapes shows up on the next one without anything re-registering it.

# Integration Points

This package integrates with:

  - pkg/fxm: PreCommit/prepare timings, pool occupancy sampling
  - pkg/resolver: resolve outcomes, slot and queue occupancy sampling
  - pkg/syncrep: wait queue depth and advertised LSN sampling
  - pkg/fxwal: append latency
  - Prometheus: scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so metrics are available before main() runs.

Label Discipline:
  - Labels are bounded: status, outcome, result, mode, dbid are all
    drawn from small enums or the resolver slot table, never raw
    transaction or prepare identifiers.

Timer Pattern:
  - Create a Timer at the start of the operation being measured, then
    call ObserveDuration or ObserveDurationVec once it completes.

# Monitoring

Prometheus Queries (PromQL):

Pool Health:
  - In-doubt ratio: fxcoord_foreign_xacts_indoubt / fxcoord_foreign_xact_pool_capacity
  - Pool pressure: sum(fxcoord_foreign_xacts_total) / fxcoord_foreign_xact_pool_capacity

Resolver Health:
  - Resolver saturation: fxcoord_resolver_slots_in_use / fxcoord_resolver_slots_capacity
  - p95 resolve latency: histogram_quantile(0.95, fxcoord_resolve_duration_seconds_bucket)
  - Backoff pressure: histogram_quantile(0.95, fxcoord_resolver_backoff_seconds_bucket)

SyncRep Health:
  - Replication lag proxy: rate(fxcoord_syncrep_wait_duration_seconds_sum[5m])
  - Blocked backends: sum(fxcoord_syncrep_queue_depth)

# Alerting Rules

Recommended Prometheus alerts:

Foreign Transaction Pool Near Capacity:
  - Alert: sum(fxcoord_foreign_xacts_total) / fxcoord_foreign_xact_pool_capacity > 0.9
  - Action: raise max_prepared_foreign_xacts or investigate stuck
    resolutions

Persistent In-Doubt Entries:
  - Alert: fxcoord_foreign_xacts_indoubt > 0 for 10m
  - Action: check resolver logs and participant reachability

Resolver Pool Exhausted:
  - Alert: fxcoord_resolver_slots_in_use == fxcoord_resolver_slots_capacity
  - Action: raise max_foreign_xact_resolvers or investigate slow
    participants

High SyncRep Wait:
  - Alert: histogram_quantile(0.95, fxcoord_syncrep_wait_duration_seconds_bucket) > 5
  - Action: check standby lag and foreign_xact_resolution_retry_interval

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
*/
package metrics
