package llm

import (
	"context"
	"testing"
)

func TestRegistry_GetReturnsErrorForUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if err == nil {
		t.Fatal("expected an error for an unregistered provider")
	}
}

func TestRegistry_GetReturnsRegisteredProvider(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "a"}
	r.Register(p)

	got, err := r.Get("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != p {
		t.Error("expected the exact registered provider instance back")
	}
}

func TestRegistry_ListReturnsAllNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "a"})
	r.Register(&fakeProvider{name: "b"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %v", names)
	}
}

func TestRegistry_NewlyRegisteredProviderStartsHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "a"})

	healthy := r.Healthy()
	if len(healthy) != 1 || healthy[0] != "a" {
		t.Errorf("expected a newly registered provider assumed healthy, got %v", healthy)
	}
}

func TestRegistry_CheckHealthMarksFailingProviderUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register(&failingHealthProvider{name: "bad"})
	r.CheckHealth(context.Background())

	healthy := r.Healthy()
	for _, n := range healthy {
		if n == "bad" {
			t.Fatal("expected a failing health check to mark the provider unhealthy")
		}
	}
}

type failingHealthProvider struct {
	name string
}

func (f *failingHealthProvider) Name() string       { return f.name }
func (f *failingHealthProvider) Type() ProviderType { return ProviderTypeOllama }
func (f *failingHealthProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return nil, errHealthCheckFailed
}
func (f *failingHealthProvider) HealthCheck(ctx context.Context) error { return errHealthCheckFailed }

var errHealthCheckFailed = simpleErr("unhealthy")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
