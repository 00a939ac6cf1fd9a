package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeProbe is a Probe whose Check result can be flipped between calls, so
// tests can tell a live re-evaluation (this redesign) apart from a value
// merely cached at registration time.
type fakeProbe struct {
	name    string
	healthy bool
	message string
}

func (p *fakeProbe) Name() string { return p.name }
func (p *fakeProbe) Check() (bool, string) {
	return p.healthy, p.message
}

func resetHealthForTest(t *testing.T) {
	t.Helper()
	ResetProbes()
	SetVersion("")
	t.Cleanup(ResetProbes)
}

func TestGetHealthAllHealthy(t *testing.T) {
	resetHealthForTest(t)
	SetVersion("1.0.0")
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: true})

	health := GetHealth()

	require.Equal(t, "healthy", health.Status)
	require.Len(t, health.Components, 2)
	require.Equal(t, "1.0.0", health.Version)
}

func TestGetHealthOneUnhealthy(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: false, message: "not connected"})

	health := GetHealth()

	require.Equal(t, "unhealthy", health.Status)
	require.Equal(t, "unhealthy: not connected", health.Components["fxwal"])
}

// TestGetHealthReflectsLiveProbeState exercises the property that makes
// Probe different from the old register-once string map: Check is called
// on every GetHealth, so a probe that degrades between two calls is
// reflected on the second without anyone re-registering it.
func TestGetHealthReflectsLiveProbeState(t *testing.T) {
	resetHealthForTest(t)
	probe := &fakeProbe{name: "fxm", healthy: true}
	RegisterProbe(probe)

	require.Equal(t, "healthy", GetHealth().Status)

	probe.healthy = false
	probe.message = "entry pool exhausted (4/4)"
	health := GetHealth()

	require.Equal(t, "unhealthy", health.Status)
	require.Equal(t, "unhealthy: entry pool exhausted (4/4)", health.Components["fxm"])
}

func TestGetReadinessAllReady(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: true})
	RegisterProbe(&fakeProbe{name: "fxm", healthy: true})
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})

	readiness := GetReadiness()

	require.Equal(t, "ready", readiness.Status)
	require.Empty(t, readiness.Message)
}

func TestGetReadinessOneProbeUnhealthy(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: false, message: "append failed"})
	RegisterProbe(&fakeProbe{name: "fxm", healthy: true})
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})

	readiness := GetReadiness()

	require.Equal(t, "not_ready", readiness.Status)
	require.Equal(t, "not ready: append failed", readiness.Components["fxwal"])
	require.Contains(t, readiness.Message, "fxwal")
}

func TestGetReadinessNoProbesRegistered(t *testing.T) {
	resetHealthForTest(t)

	readiness := GetReadiness()

	require.Equal(t, "ready", readiness.Status)
	require.Empty(t, readiness.Components)
}

func TestHealthHandlerHealthy(t *testing.T) {
	resetHealthForTest(t)
	SetVersion("test")
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, "test", health.Version)
}

func TestHealthHandlerUnhealthyReturns503(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: false, message: "broken"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	require.Equal(t, "unhealthy", health.Status)
}

func TestReadyHandlerReady(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: true})
	RegisterProbe(&fakeProbe{name: "fxm", healthy: true})
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	require.Equal(t, "ready", readiness.Status)
}

func TestReadyHandlerNotReadyReturns503(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "resolver", healthy: true})
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: false, message: "not connected"})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	require.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandlerAlwaysAlive(t *testing.T) {
	resetHealthForTest(t)
	RegisterProbe(&fakeProbe{name: "fxwal", healthy: false, message: "broken"})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Equal(t, "alive", response["status"])
	require.NotEmpty(t, response["uptime"])
}
