package participant

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/types"
)

// Registry is a static capability table mapping an adapter name to its
// Driver, the way a dynamically loaded foreign-data-wrapper plugin becomes
// a registry entry keyed by handler name.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds (or replaces) the driver for name. Called at process
// start, before any participant is registered against it.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = d
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("participant: no driver registered for %q", name)
	}
	return d, nil
}

// Resolve finalizes a prepared transaction through the named driver. It
// returns ResolveMissing-as-success semantics via the underlying
// Resolver.Resolve; callers treat both ResolveOK and ResolveMissing as
// successful finalization.
func (r *Registry) Resolve(name string, serverID types.ServerID, userID types.UserID, id string, commit bool) (ResolveResult, error) {
	timer := metrics.NewTimer()

	d, err := r.Lookup(name)
	if err != nil {
		return ResolveOK, err
	}
	resolver, ok := d.(Resolver)
	if !ok {
		return ResolveOK, fmt.Errorf("participant: driver %q is not resolve-capable", name)
	}

	result, err := resolver.Resolve(serverID, userID, id, commit)
	timer.ObserveDurationVec(metrics.ResolveDuration, resolveMetricLabel(result, err, commit))
	return result, err
}

func resolveMetricLabel(result ResolveResult, err error, commit bool) string {
	if err != nil {
		return "error"
	}
	switch {
	case result == ResolveMissing:
		return "missing"
	case commit:
		return "committed"
	default:
		return "aborted"
	}
}
