package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvidlabs/querycore/coreerr"
	"github.com/corvidlabs/querycore/domain"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 2, RecoveryTimeout: 50 * time.Millisecond, SuccessThreshold: 1})
	fail := errors.New("boom")

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return fail })
	if b.State() != domain.StateClosed {
		t.Fatalf("expected closed after one failure, got %v", b.State())
	}

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return fail })
	if b.State() != domain.StateOpen {
		t.Fatalf("expected open after reaching the failure threshold, got %v", b.State())
	}
}

func TestBreaker_RejectsWhileOpen(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })

	called := false
	err := b.Execute(context.Background(), func(ctx context.Context) error { called = true; return nil })
	if called {
		t.Fatal("expected fn not to be invoked while the breaker is open")
	}
	var cbErr *coreerr.CircuitOpenError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected a *coreerr.CircuitOpenError, got %v (%T)", err, err)
	}
	if cbErr.Service != "llm" {
		t.Errorf("expected service name propagated, got %q", cbErr.Service)
	}
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond, SuccessThreshold: 2})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	if b.State() != domain.StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(30 * time.Millisecond)

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected the probe call to succeed, got %v", err)
	}
	if b.State() != domain.StateHalfOpen {
		t.Fatalf("expected half_open after one success with successThreshold=2, got %v", b.State())
	}

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected the second probe call to succeed, got %v", err)
	}
	if b.State() != domain.StateClosed {
		t.Fatalf("expected closed after reaching success threshold, got %v", b.State())
	}
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond, SuccessThreshold: 2})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(30 * time.Millisecond)

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("still broken") })
	if b.State() != domain.StateOpen {
		t.Fatalf("expected a single half_open failure to reopen the breaker, got %v", b.State())
	}
}

func TestBreaker_StatsTrackCounts(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 5, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })

	stats := b.Stats()
	if stats.TotalCalls != 2 {
		t.Errorf("expected 2 total calls, got %d", stats.TotalCalls)
	}
	if stats.SuccessfulCalls != 1 || stats.FailedCalls != 1 {
		t.Errorf("expected 1 success and 1 failure, got %+v", stats)
	}
}

func TestBreaker_UnexpectedErrorsPropagateWithoutTrippingCircuit(t *testing.T) {
	var target *validationError
	isExpected := func(err error) bool { return errors.As(err, &target) }
	b := New(Config{
		Service: "llm", FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1,
		ExpectedExceptions: isExpected,
	})

	unexpected := errors.New("context canceled")
	err := b.Execute(context.Background(), func(ctx context.Context) error { return unexpected })
	if err != unexpected {
		t.Fatalf("expected the unexpected error to propagate unchanged, got %v", err)
	}
	if b.State() != domain.StateClosed {
		t.Fatalf("expected the circuit to stay closed when the error isn't in expected_exceptions, got %v", b.State())
	}
	if stats := b.Stats(); stats.ConsecutiveFailures != 0 {
		t.Errorf("expected an unexpected error not to count toward consecutive_failures, got %d", stats.ConsecutiveFailures)
	}
}

func TestBreaker_ExpectedErrorsStillTripTheCircuit(t *testing.T) {
	isExpected := func(err error) bool { return errors.As(err, new(*validationError)) }
	b := New(Config{
		Service: "llm", FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1,
		ExpectedExceptions: isExpected,
	})

	err := b.Execute(context.Background(), func(ctx context.Context) error { return &validationError{} })
	if err == nil {
		t.Fatal("expected the classified error to propagate to the caller")
	}
	if b.State() != domain.StateOpen {
		t.Fatalf("expected an expected-exception failure to trip the circuit, got %v", b.State())
	}
	if stats := b.Stats(); stats.ConsecutiveFailures != 1 {
		t.Errorf("expected consecutive_failures=1, got %d", stats.ConsecutiveFailures)
	}
}

func TestBreaker_DefaultClassifierCountsEveryError(t *testing.T) {
	b := New(Config{Service: "llm", FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })
	if b.State() != domain.StateOpen {
		t.Fatalf("expected the unconfigured default to treat every non-nil error as a failure, got %v", b.State())
	}
}

type validationError struct{}

func (e *validationError) Error() string { return "validation failed" }

func TestRegistry_GetIsMemoized(t *testing.T) {
	r := NewRegistry(3, 1, time.Minute)
	a := r.Get("llm")
	b := r.Get("llm")
	if a != b {
		t.Fatal("expected Get to return the same breaker instance for the same service name")
	}
	other := r.Get("web_search")
	if other == a {
		t.Fatal("expected distinct services to get distinct breakers")
	}
}

func TestRegistry_ContextCancellationDoesNotTripBreaker(t *testing.T) {
	r := NewRegistry(1, 1, time.Hour)
	b := r.Get("llm")

	err := b.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled to propagate unchanged, got %v", err)
	}
	if b.State() != domain.StateClosed {
		t.Fatalf("expected a caller-cancellation error not to trip the circuit, got %v", b.State())
	}
}
