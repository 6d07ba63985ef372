package llm

import "context"

// Provider is the unified interface every LLM backend adapter satisfies.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Type() ProviderType
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// StreamingProvider extends Provider with native streaming. Providers
// that cannot stream natively are still usable through Complete; the
// router probes for this interface before falling back to a
// generator-based wrapper, and finally to a single non-streaming call.
type StreamingProvider interface {
	Provider
	CompleteStream(ctx context.Context, req CompletionRequest, handler StreamHandler) (*CompletionResponse, error)
}

// ConfigurableProvider allows a provider's model/endpoint to be changed
// without reconstructing it.
type ConfigurableProvider interface {
	Provider
	Configure(model, endpoint string) error
}
