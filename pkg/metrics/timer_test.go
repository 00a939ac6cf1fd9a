package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestTimerDurationAdvancesMonotonically(t *testing.T) {
	timer := NewTimer()

	time.Sleep(10 * time.Millisecond)
	first := timer.Duration()

	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()

	require.Greater(t, first, time.Duration(0))
	require.Greater(t, second, first)
}

// TestTimerObserveDurationRecordsToFxcoordHistogram exercises ObserveDuration
// against WALAppendDuration, the histogram fxwal's append path actually
// times, rather than a throwaway histogram with no role in the tree.
func TestTimerObserveDurationRecordsToFxcoordHistogram(t *testing.T) {
	before := sampleCount(t, WALAppendDuration)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(WALAppendDuration)

	after := sampleCount(t, WALAppendDuration)
	require.Equal(t, before+1, after)
}

// TestTimerObserveDurationVecRecordsPerMode exercises ObserveDurationVec
// against SyncRepWaitDuration, mirroring how Engine.WaitForLSN times itself
// per wait mode.
func TestTimerObserveDurationVecRecordsPerMode(t *testing.T) {
	before := sampleCountVec(t, SyncRepWaitDuration, "write")

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(SyncRepWaitDuration, "write")

	after := sampleCountVec(t, SyncRepWaitDuration, "write")
	require.Equal(t, before+1, after)

	// A different label value has its own independent series.
	flushBefore := sampleCountVec(t, SyncRepWaitDuration, "flush")
	timer2 := NewTimer()
	timer2.ObserveDurationVec(SyncRepWaitDuration, "flush")
	require.Equal(t, flushBefore+1, sampleCountVec(t, SyncRepWaitDuration, "flush"))
}

func sampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func sampleCountVec(t *testing.T, h *prometheus.HistogramVec, label string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.WithLabelValues(label).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}
