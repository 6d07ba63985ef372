package llm

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds named provider instances and tracks which are healthy.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	healthy   map[string]bool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		healthy:   make(map[string]bool),
	}
}

// Register adds a provider, initially assumed healthy until the first
// health check proves otherwise.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.healthy[p.Name()] = true
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not registered", name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// Healthy returns the names of providers last observed healthy.
func (r *Registry) Healthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n, ok := range r.healthy {
		if ok {
			names = append(names, n)
		}
	}
	return names
}

// CheckHealth runs HealthCheck against every registered provider and
// updates the healthy set. Intended to be called periodically by the
// caller (e.g. on a ticker); the registry itself owns no goroutine.
func (r *Registry) CheckHealth(ctx context.Context) {
	r.mu.RLock()
	snapshot := make(map[string]Provider, len(r.providers))
	for n, p := range r.providers {
		snapshot[n] = p
	}
	r.mu.RUnlock()

	for name, p := range snapshot {
		err := p.HealthCheck(ctx)
		r.mu.Lock()
		r.healthy[name] = err == nil
		r.mu.Unlock()
	}
}
