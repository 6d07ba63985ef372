// Package anthropic adapts the Anthropic Messages API to llm.Provider,
// including native token-by-token streaming.
package anthropic

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/corvidlabs/querycore/llm"
)

// Provider adapts anthropic-sdk-go's Messages client to llm.Provider and
// llm.StreamingProvider.
type Provider struct {
	name         string
	client       anthropic.Client
	defaultModel string
}

// New constructs an Anthropic-backed provider. apiKey may be empty if the
// ANTHROPIC_API_KEY environment variable is set, matching the SDK's own
// resolution order.
func New(name, apiKey, defaultModel string) *Provider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Provider{name: name, client: anthropic.NewClient(opts...), defaultModel: defaultModel}
}

func (p *Provider) Name() string           { return p.name }
func (p *Provider) Type() llm.ProviderType { return llm.ProviderTypeAnthropic }

func (p *Provider) model(req llm.CompletionRequest) anthropic.Model {
	if req.Model != "" {
		return anthropic.Model(req.Model)
	}
	return anthropic.Model(p.defaultModel)
}

func (p *Provider) params(req llm.CompletionRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     p.model(req),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}

	var content string
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				content += tb.Text
			}
		}
	}

	return &llm.CompletionResponse{
		Content:      content,
		Model:        string(msg.Model),
		FinishReason: string(msg.StopReason),
		Usage: llm.UsageStats{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// CompleteStream streams content deltas via the SDK's server-sent-events
// iterator, invoking handler per text delta and aggregating the final
// response for the caller.
func (p *Provider) CompleteStream(ctx context.Context, req llm.CompletionRequest, handler llm.StreamHandler) (*llm.CompletionResponse, error) {
	start := time.Now()
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))

	var content string
	var model string
	var finishReason string
	var usage llm.UsageStats

	for stream.Next() {
		event := stream.Current()
		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				content += text.Text
				if err := handler(llm.StreamChunk{Content: text.Text}); err != nil {
					return nil, err
				}
			}
		case anthropic.MessageDeltaEvent:
			finishReason = string(delta.Delta.StopReason)
			usage.CompletionTokens = int(delta.Usage.OutputTokens)
		case anthropic.MessageStartEvent:
			model = string(delta.Message.Model)
			usage.PromptTokens = int(delta.Message.Usage.InputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}

	if err := handler(llm.StreamChunk{Done: true}); err != nil {
		return nil, err
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return &llm.CompletionResponse{
		Content:      content,
		Model:        model,
		FinishReason: finishReason,
		Usage:        usage,
		Latency:      time.Since(start),
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model(llm.CompletionRequest{}),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err
}
