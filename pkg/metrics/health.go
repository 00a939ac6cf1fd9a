package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the JSON body served by the health/readiness endpoints.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy"/"unhealthy", or "ready"/"not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// Probe reports the live health of one coordinator component. Check is
// invoked fresh on every /health or /ready request rather than read back
// from a value some earlier caller pushed in, so the response always
// reflects the component's current state (e.g. an exhausted entry pool,
// a WAL that has stopped answering) instead of whatever was true at
// registration time.
type Probe interface {
	Name() string
	Check() (healthy bool, message string)
}

var (
	healthMu  sync.RWMutex
	probes    []Probe
	version   string
	startTime = time.Now()
)

// SetVersion sets the version string reported in health responses.
func SetVersion(v string) {
	healthMu.Lock()
	defer healthMu.Unlock()
	version = v
}

// RegisterProbe adds a component probe consulted by GetHealth and
// GetReadiness. Call once per component at startup; Check itself is
// called per-request, not at registration time.
func RegisterProbe(p Probe) {
	healthMu.Lock()
	defer healthMu.Unlock()
	probes = append(probes, p)
}

// ResetProbes clears every registered probe. Exposed for tests that need
// an isolated probe set against the package-level registry.
func ResetProbes() {
	healthMu.Lock()
	defer healthMu.Unlock()
	probes = nil
}

func snapshotProbes() ([]Probe, string) {
	healthMu.RLock()
	defer healthMu.RUnlock()
	out := make([]Probe, len(probes))
	copy(out, probes)
	return out, version
}

// GetHealth runs every registered probe and reports "unhealthy" if any of
// them fails.
func GetHealth() HealthStatus {
	ps, v := snapshotProbes()

	status := "healthy"
	components := make(map[string]string, len(ps))
	for _, p := range ps {
		ok, msg := p.Check()
		if !ok {
			status = "unhealthy"
			components[p.Name()] = "unhealthy: " + msg
			continue
		}
		components[p.Name()] = "healthy"
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    v,
		Uptime:     time.Since(startTime).String(),
	}
}

// GetReadiness is GetHealth's readiness counterpart: same probe set, but
// reports "not_ready" (rather than "unhealthy") and names the first
// failing probe in Message, the signal an orchestrator's readiness check
// acts on to stop routing traffic to a coordinator that isn't ready yet.
func GetReadiness() HealthStatus {
	ps, v := snapshotProbes()

	status := "ready"
	message := ""
	components := make(map[string]string, len(ps))
	for _, p := range ps {
		ok, msg := p.Check()
		if !ok {
			status = "not_ready"
			components[p.Name()] = "not ready: " + msg
			if message == "" {
				message = "waiting for " + p.Name()
			}
			continue
		}
		components[p.Name()] = "ready"
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    v,
		Uptime:     time.Since(startTime).String(),
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler returns a simple liveness check (always 200 if the
// process is running at all).
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(startTime).String(),
		})
	}
}
