// Package coordinator implements LLMCoordinator: agent selection, prompt
// assembly, and a streaming call across providers with per-agent circuit
// breaking and ordered fallback.
package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/corvidlabs/querycore/circuitbreaker"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/llm"
	"github.com/corvidlabs/querycore/planner"
	"github.com/corvidlabs/querycore/shared/logger"
)

// EventKind tags the variant of a coordinator Event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventToken     EventKind = "token"
	EventThinking  EventKind = "thinking"
	EventCompleted EventKind = "completed"
	EventError     EventKind = "error"
)

// Event is the LLMCoordinator's own event stream, yielded in order:
// Started, zero-or-more Token, zero-or-more Thinking (on fallback
// switches), then exactly one of Completed or Error.
type Event struct {
	Kind       EventKind
	Agent      domain.AgentType
	Content    string
	TokenCount int
	IsFinal    bool
	Error      string
}

const truncationMarker = "[Context truncated...]"

// BuildPrompt assembles system_prompt + context (bounded to maxContextChars,
// with a truncation marker on overflow) + question, matching the order the
// agent expects.
func BuildPrompt(systemPrompt, context, question string, maxContextChars int) string {
	if maxContextChars > 0 && len(context) > maxContextChars {
		context = context[:maxContextChars] + "\n" + truncationMarker
	}
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	if context != "" {
		b.WriteString(context)
		b.WriteString("\n\n")
	}
	b.WriteString(question)
	return b.String()
}

// Coordinator composes the agent selector, provider registry and
// per-agent circuit breakers into the streaming LLM call.
type Coordinator struct {
	selector        *planner.AgentSelector
	providers       map[domain.AgentType]llm.Provider
	breakers        *circuitbreaker.Registry
	defaultAgent    domain.AgentType
	fallbackAgents  []domain.AgentType
	maxContextChars int
	log             *logger.Logger
}

// Config configures a Coordinator.
type Config struct {
	Selector        *planner.AgentSelector
	Providers       map[domain.AgentType]llm.Provider
	Breakers        *circuitbreaker.Registry
	DefaultAgent    domain.AgentType
	FallbackAgents  []domain.AgentType
	MaxContextChars int
}

// New constructs a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		selector:        cfg.Selector,
		providers:       cfg.Providers,
		breakers:        cfg.Breakers,
		defaultAgent:    cfg.DefaultAgent,
		fallbackAgents:  cfg.FallbackAgents,
		maxContextChars: cfg.MaxContextChars,
		log:             logger.New("coordinator"),
	}
}

func (c *Coordinator) resolveAgent(intent domain.Intent, manualOverride domain.AgentType) domain.AgentType {
	agent := c.selector.SelectAgent(intent, manualOverride)
	if _, ok := c.providers[agent]; ok {
		return agent
	}
	if _, ok := c.providers[c.defaultAgent]; ok {
		return c.defaultAgent
	}
	for a := range c.providers {
		return a
	}
	return agent
}

// Stream runs the full agent-selection, prompt-build and streaming-call
// sequence, sending every Event to emit in causal order. emit must not
// block indefinitely; Stream returns emit's error immediately if it errs.
func (c *Coordinator) Stream(ctx context.Context, traceID string, intent domain.Intent, manualOverride domain.AgentType, systemPrompt, sanitizedContext, question string, emit func(Event) error) error {
	prompt := BuildPrompt(systemPrompt, sanitizedContext, question, c.maxContextChars)
	req := llm.CompletionRequest{Prompt: prompt, SystemPrompt: ""}

	primary := c.resolveAgent(intent, manualOverride)
	chain := append([]domain.AgentType{primary}, c.fallbackAgents...)

	if err := emit(Event{Kind: EventStarted, Agent: primary}); err != nil {
		return err
	}

	var lastErr error
	for i, agent := range chain {
		provider, ok := c.providers[agent]
		if !ok {
			lastErr = fmt.Errorf("agent %s has no registered provider", agent)
			continue
		}

		if i > 0 {
			if err := emit(Event{Kind: EventThinking, Agent: agent, Content: fmt.Sprintf("Switching to %s", agent)}); err != nil {
				return err
			}
		}

		breaker := c.breakers.Get(string(agent))
		tokenCount := 0
		var resp *llm.CompletionResponse

		err := breaker.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.callProvider(ctx, provider, agent, req, &tokenCount, emit)
			return callErr
		})
		if err != nil {
			lastErr = err
			c.log.Warn(traceID, "", "agent call failed, trying fallback", map[string]interface{}{"agent": agent, "error": err.Error()})
			continue
		}

		return emit(Event{Kind: EventCompleted, Agent: agent, Content: resp.Content, TokenCount: tokenCount, IsFinal: true})
	}

	msg := "All LLM agents unavailable"
	if lastErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, lastErr)
	}
	return emit(Event{Kind: EventError, Error: msg})
}

// callProvider probes provider for (in order) native streaming,
// generator-based streaming, or non-streaming generate, emitting Token
// events as content becomes available.
func (c *Coordinator) callProvider(ctx context.Context, provider llm.Provider, agent domain.AgentType, req llm.CompletionRequest, tokenCount *int, emit func(Event) error) (*llm.CompletionResponse, error) {
	if streaming, ok := provider.(llm.StreamingProvider); ok {
		return streaming.CompleteStream(ctx, req, func(chunk llm.StreamChunk) error {
			if chunk.Content == "" {
				return nil
			}
			*tokenCount++
			return emit(Event{Kind: EventToken, Agent: agent, Content: chunk.Content, TokenCount: *tokenCount})
		})
	}

	// No native or generator-based streaming interface available for this
	// adapter set; fall back to a single non-streaming call emitted as one
	// terminal token event.
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	*tokenCount++
	if err := emit(Event{Kind: EventToken, Agent: agent, Content: resp.Content, TokenCount: *tokenCount}); err != nil {
		return nil, err
	}
	return resp, nil
}
