package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Registry is the process-wide get-or-create registry of breakers keyed
// by service name, constructed explicitly and injected — not a package-
// level global.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	failureThreshold uint32
	recoveryTimeout  time.Duration
	successThreshold uint32
}

// NewRegistry builds a registry with the default thresholds applied to
// every breaker it creates.
func NewRegistry(failureThreshold, successThreshold uint32, recoveryTimeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		successThreshold: successThreshold,
	}
}

// Get returns the canonical breaker for service, creating it on first use.
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[service]; ok {
		return b
	}
	b := New(Config{
		Service:            service,
		FailureThreshold:   r.failureThreshold,
		RecoveryTimeout:    r.recoveryTimeout,
		SuccessThreshold:   r.successThreshold,
		ExpectedExceptions: isAgentFailure,
	})
	r.breakers[service] = b
	return b
}

// isAgentFailure excludes caller-side context cancellation and deadline
// errors from the agent breakers' failure counts: those reflect the
// caller giving up, not the agent misbehaving, so they propagate to the
// caller without affecting circuit state.
func isAgentFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
