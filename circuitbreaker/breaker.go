// Package circuitbreaker wraps sony/gobreaker to implement the spec's
// consecutive-failure state machine: closed -> open after
// failure_threshold consecutive failures; open -> half_open after
// recovery_timeout elapses; half_open -> open on any single failure;
// half_open -> closed after success_threshold consecutive successes.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/corvidlabs/querycore/coreerr"
	"github.com/corvidlabs/querycore/domain"
)

// Stats mirrors the statistics the spec requires callers be able to read.
type Stats struct {
	TotalCalls           int64
	SuccessfulCalls      int64
	FailedCalls          int64
	RejectedCalls        int64
	ConsecutiveFailures  int64
	ConsecutiveSuccesses int64
	LastSuccessTime      time.Time
	LastFailureTime      time.Time
}

// Breaker wraps one gobreaker.CircuitBreaker for a single service name.
type Breaker struct {
	service   string
	cb        *gobreaker.CircuitBreaker
	isFailure func(error) bool

	mu                   sync.Mutex
	rejectedCalls        int64
	consecutiveSuccesses int64
	lastSuccessTime      time.Time
	lastFailureTime      time.Time
	recoveryTimeout      time.Duration
	successThreshold     uint32
}

// Config configures a single breaker.
type Config struct {
	Service          string
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	SuccessThreshold uint32

	// ExpectedExceptions classifies which errors returned by fn count as
	// failures against the breaker. nil (the default) treats every
	// non-nil error as a failure, matching expected_exceptions=(Exception,)
	// in the Python original. A narrower predicate lets callers, say,
	// exclude context.Canceled or a validation error from tripping the
	// breaker while still letting it propagate to the caller.
	ExpectedExceptions func(err error) bool
}

// New builds a Breaker whose ReadyToTrip matches
// consecutive_failures >= FailureThreshold exactly.
func New(cfg Config) *Breaker {
	isFailure := cfg.ExpectedExceptions
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}

	b := &Breaker{
		service:          cfg.Service,
		isFailure:        isFailure,
		recoveryTimeout:  cfg.RecoveryTimeout,
		successThreshold: cfg.SuccessThreshold,
	}

	settings := gobreaker.Settings{
		Name:        cfg.Service,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			// half_open -> closed resets our local success counter; any
			// transition away from half_open forgets partial progress.
			b.mu.Lock()
			b.consecutiveSuccesses = 0
			b.mu.Unlock()
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// State returns the spec's CircuitState for the breaker's current state.
func (b *Breaker) State() domain.CircuitState {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return domain.StateClosed
	case gobreaker.StateHalfOpen:
		return domain.StateHalfOpen
	default:
		return domain.StateOpen
	}
}

// Execute runs fn under the breaker. If the breaker is open, fn is never
// invoked and a *coreerr.CircuitOpenError is returned immediately.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		b.mu.Lock()
		b.rejectedCalls++
		b.mu.Unlock()
		return &coreerr.CircuitOpenError{
			Service:    b.service,
			RetryAfter: b.recoveryTimeout.Seconds(),
		}
	}
	b.mu.Lock()
	if b.isFailure(err) {
		b.lastFailureTime = time.Now()
		b.consecutiveSuccesses = 0
	} else {
		b.lastSuccessTime = time.Now()
		b.consecutiveSuccesses++
	}
	b.mu.Unlock()
	return err
}

// Stats returns a snapshot of the breaker's statistics.
func (b *Breaker) Stats() Stats {
	counts := b.cb.Counts()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		TotalCalls:           int64(counts.Requests),
		SuccessfulCalls:      int64(counts.TotalSuccesses),
		FailedCalls:          int64(counts.TotalFailures),
		RejectedCalls:        b.rejectedCalls,
		ConsecutiveFailures:  int64(counts.ConsecutiveFailures),
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastSuccessTime:      b.lastSuccessTime,
		LastFailureTime:      b.lastFailureTime,
	}
}
