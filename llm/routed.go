package llm

import "context"

// RoutedProvider adapts a Router into a single Provider, so multiple
// interchangeable provider instances (e.g. two Bedrock regions, or a
// primary/secondary OpenAI key) can be registered under one Router and
// presented to LLMCoordinator as one logical agent.
type RoutedProvider struct {
	name         string
	providerType ProviderType
	router       *Router
}

// NewRoutedProvider wraps router as a single Provider named name.
func NewRoutedProvider(name string, providerType ProviderType, router *Router) *RoutedProvider {
	return &RoutedProvider{name: name, providerType: providerType, router: router}
}

func (p *RoutedProvider) Name() string       { return p.name }
func (p *RoutedProvider) Type() ProviderType { return p.providerType }

func (p *RoutedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, _, err := p.router.Route(ctx, req, "")
	return resp, err
}

func (p *RoutedProvider) HealthCheck(ctx context.Context) error {
	p.router.registry.CheckHealth(ctx)
	if len(p.router.registry.Healthy()) == 0 {
		return NewProviderError(p.name, ErrCodeUnavailable, "no healthy providers in router")
	}
	return nil
}
