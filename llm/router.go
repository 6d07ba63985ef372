package llm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Router selects a healthy provider by weight and fails over to another
// healthy provider when the chosen one errors.
type Router struct {
	registry *Registry
	mu       sync.RWMutex
	weights  map[string]float64
	rng      *rand.Rand
}

// NewRouter constructs a Router over registry with equal-by-default
// weights; weights maps provider name to relative routing weight.
func NewRouter(registry *Registry, weights map[string]float64) *Router {
	if weights == nil {
		weights = make(map[string]float64)
	}
	return &Router{registry: registry, weights: weights, rng: rand.New(rand.NewSource(1))}
}

// Route picks a provider and completes req against it, failing over to
// one other healthy provider on error.
func (r *Router) Route(ctx context.Context, req CompletionRequest, preferred string) (*CompletionResponse, string, error) {
	provider, err := r.selectProvider(preferred)
	if err != nil {
		return nil, "", err
	}

	resp, err := provider.Complete(ctx, req)
	if err == nil {
		return resp, provider.Name(), nil
	}

	fallback, ferr := r.fallbackFrom(provider.Name())
	if ferr != nil {
		return nil, "", fmt.Errorf("provider %s failed and no fallback available: %w", provider.Name(), err)
	}
	resp, err = fallback.Complete(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("all providers failed, last error from %s: %w", fallback.Name(), err)
	}
	return resp, fallback.Name(), nil
}

func (r *Router) selectProvider(preferred string) (Provider, error) {
	if preferred != "" {
		if p, err := r.registry.Get(preferred); err == nil {
			return p, nil
		}
	}

	healthy := r.registry.Healthy()
	if len(healthy) == 0 {
		healthy = r.registry.List()
	}
	if len(healthy) == 0 {
		return nil, fmt.Errorf("llm: no providers available")
	}

	name := r.weightedPick(healthy)
	return r.registry.Get(name)
}

func (r *Router) weightedPick(names []string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0.0
	weights := make([]float64, len(names))
	for i, n := range names {
		w, ok := r.weights[n]
		if !ok {
			w = 1.0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return names[0]
	}

	pick := r.rng.Float64() * total
	for i, n := range names {
		pick -= weights[i]
		if pick <= 0 {
			return n
		}
	}
	return names[len(names)-1]
}

func (r *Router) fallbackFrom(failed string) (Provider, error) {
	for _, name := range r.registry.Healthy() {
		if name != failed {
			return r.registry.Get(name)
		}
	}
	return nil, fmt.Errorf("llm: no fallback provider")
}
