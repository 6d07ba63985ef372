// Package ratelimit implements the sliding-window per-user rate limiter:
// two independent counters (total requests, security-blocked requests)
// isolated per user. Structurally grounded on a per-tenant map-plus-
// factory pattern (lazy per-key state under a mutex), but accounting is
// a sliding window of timestamps rather than a token bucket, per the
// spec's semantics.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/corvidlabs/querycore/shared/logger"
)

// Decision is the result of a check.
type Decision struct {
	Allowed    bool
	RetryAfter float64 // seconds, only meaningful when !Allowed
}

// Backend is the pluggable sliding-window store. The in-process
// implementation and the Redis-backed one both satisfy it.
type Backend interface {
	// Prune removes entries older than windowStart and returns the
	// remaining count and the oldest remaining timestamp (zero if empty).
	PruneAndCount(ctx context.Context, key string, windowStart time.Time) (count int, oldest time.Time, err error)
	Record(ctx context.Context, key string, at time.Time) error
}

// Limiter enforces per-user total and blocked-request limits over a
// sliding window.
type Limiter struct {
	backend       Backend
	fallback      Backend
	window        time.Duration
	globalLimit   int
	blockedLimit  int
	log           *logger.Logger
}

// New constructs a Limiter. fallback is used (and logged) whenever
// backend returns an error, so backing-store unavailability never fails
// the caller.
func New(backend, fallback Backend, window time.Duration, globalLimit, blockedLimit int) *Limiter {
	return &Limiter{
		backend:      backend,
		fallback:     fallback,
		window:       window,
		globalLimit:  globalLimit,
		blockedLimit: blockedLimit,
		log:          logger.New("rate_limiter"),
	}
}

func (l *Limiter) totalKey(userID string) string   { return "rl:total:" + userID }
func (l *Limiter) blockedKey(userID string) string { return "rl:blocked:" + userID }

// CheckOnly evaluates both counters without recording a new event.
func (l *Limiter) CheckOnly(ctx context.Context, traceID, userID string) Decision {
	now := time.Now()
	windowStart := now.Add(-l.window)

	totalCount, totalOldest, err := l.pruneAndCount(ctx, traceID, l.totalKey(userID), windowStart)
	if err != nil {
		return Decision{Allowed: true}
	}
	if totalCount >= l.globalLimit {
		return Decision{Allowed: false, RetryAfter: retryAfter(totalOldest, l.window, now)}
	}

	blockedCount, blockedOldest, err := l.pruneAndCount(ctx, traceID, l.blockedKey(userID), windowStart)
	if err != nil {
		return Decision{Allowed: true}
	}
	if blockedCount >= l.blockedLimit {
		return Decision{Allowed: false, RetryAfter: retryAfter(blockedOldest, l.window, now)}
	}

	return Decision{Allowed: true}
}

// CheckAndRecord atomically prunes, evaluates both limits, and if
// allowed, records the new event (into the total counter always, and
// additionally into the blocked counter when wasBlocked is true).
func (l *Limiter) CheckAndRecord(ctx context.Context, traceID, userID string, wasBlocked bool) Decision {
	decision := l.CheckOnly(ctx, traceID, userID)
	if !decision.Allowed {
		return decision
	}
	now := time.Now()
	l.record(ctx, traceID, l.totalKey(userID), now)
	if wasBlocked {
		l.record(ctx, traceID, l.blockedKey(userID), now)
	}
	return decision
}

func (l *Limiter) pruneAndCount(ctx context.Context, traceID, key string, windowStart time.Time) (int, time.Time, error) {
	count, oldest, err := l.backend.PruneAndCount(ctx, key, windowStart)
	if err != nil {
		l.log.Warn(traceID, "", "rate limiter backend unavailable, using in-process fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return l.fallback.PruneAndCount(ctx, key, windowStart)
	}
	return count, oldest, nil
}

func (l *Limiter) record(ctx context.Context, traceID, key string, at time.Time) {
	if err := l.backend.Record(ctx, key, at); err != nil {
		l.log.Warn(traceID, "", "rate limiter backend record failed, recording to fallback", map[string]interface{}{
			"error": err.Error(),
		})
		_ = l.fallback.Record(ctx, key, at)
	}
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) float64 {
	if oldest.IsZero() {
		return window.Seconds()
	}
	age := now.Sub(oldest)
	remaining := window - age
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Seconds()
}

// InProcessBackend is a per-user in-memory sliding window, used both as
// the default backend in single-instance deployments and as the
// fallback behind the Redis backend.
type InProcessBackend struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewInProcessBackend constructs an empty in-memory backend.
func NewInProcessBackend() *InProcessBackend {
	return &InProcessBackend{windows: make(map[string][]time.Time)}
}

func (b *InProcessBackend) PruneAndCount(_ context.Context, key string, windowStart time.Time) (int, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.windows[key]
	pruned := events[:0]
	for _, t := range events {
		if t.After(windowStart) {
			pruned = append(pruned, t)
		}
	}
	b.windows[key] = pruned

	var oldest time.Time
	if len(pruned) > 0 {
		oldest = pruned[0]
	}
	return len(pruned), oldest, nil
}

func (b *InProcessBackend) Record(_ context.Context, key string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[key] = append(b.windows[key], at)
	return nil
}
