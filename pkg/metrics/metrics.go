package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ForeignXactsTotal is the current size of the FXM entry pool broken
	// down by lifecycle status.
	ForeignXactsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcoord_foreign_xacts_total",
			Help: "Current prepared foreign transaction entries by status",
		},
		[]string{"status"},
	)

	ForeignXactsIndoubt = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxcoord_foreign_xacts_indoubt",
			Help: "Current prepared foreign transaction entries awaiting resolver finalization",
		},
	)

	ForeignXactPoolCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxcoord_foreign_xact_pool_capacity",
			Help: "Configured max_prepared_foreign_xacts entry pool size",
		},
	)

	PreCommitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxcoord_precommit_total",
			Help: "Total PreCommit decisions by outcome",
		},
		[]string{"outcome"},
	)

	PrepareDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxcoord_prepare_duration_seconds",
			Help:    "Time to prepare all modifying participants of a transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	ResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxcoord_resolve_duration_seconds",
			Help:    "Time for a single participant resolve call, by result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	ResolverSlotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxcoord_resolver_slots_in_use",
			Help: "Resolver slots currently running a worker",
		},
	)

	ResolverSlotsCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxcoord_resolver_slots_capacity",
			Help: "Configured max_foreign_xact_resolvers slot table size",
		},
	)

	ResolverQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcoord_resolver_queue_depth",
			Help: "Waiters currently queued per database for resolution",
		},
		[]string{"dbid"},
	)

	ResolverBackoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxcoord_resolver_backoff_seconds",
			Help:    "Backoff duration applied after a failed resolve attempt",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 300},
		},
	)

	SyncRepQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcoord_syncrep_queue_depth",
			Help: "Backends currently blocked in WaitForLSN, by wait mode",
		},
		[]string{"mode"},
	)

	SyncRepAdvertisedLSN = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxcoord_syncrep_advertised_lsn",
			Help: "Most recently advertised safe LSN, by wait mode",
		},
		[]string{"mode"},
	)

	SyncRepWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxcoord_syncrep_wait_duration_seconds",
			Help:    "Time backends spend blocked in WaitForLSN, by wait mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxcoord_wal_append_duration_seconds",
			Help:    "Time to append and durably store one WAL record",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ForeignXactsTotal)
	prometheus.MustRegister(ForeignXactsIndoubt)
	prometheus.MustRegister(ForeignXactPoolCapacity)
	prometheus.MustRegister(PreCommitTotal)
	prometheus.MustRegister(PrepareDuration)
	prometheus.MustRegister(ResolveDuration)
	prometheus.MustRegister(ResolverSlotsInUse)
	prometheus.MustRegister(ResolverSlotsCapacity)
	prometheus.MustRegister(ResolverQueueDepth)
	prometheus.MustRegister(ResolverBackoffSeconds)
	prometheus.MustRegister(SyncRepQueueDepth)
	prometheus.MustRegister(SyncRepAdvertisedLSN)
	prometheus.MustRegister(SyncRepWaitDuration)
	prometheus.MustRegister(WALAppendDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
