// Package openai adapts the OpenAI Chat Completions API to llm.Provider.
package openai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/corvidlabs/querycore/llm"
)

// Provider adapts openai-go's chat completions client to llm.Provider.
type Provider struct {
	name         string
	client       openai.Client
	defaultModel string
}

// New constructs an OpenAI-backed provider (used as the ChatGPT agent).
func New(name, apiKey, defaultModel string) *Provider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Provider{name: name, client: openai.NewClient(opts...), defaultModel: defaultModel}
}

func (p *Provider) Name() string           { return p.name }
func (p *Provider) Type() llm.ProviderType { return llm.ProviderTypeOpenAI }

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}
	if len(completion.Choices) == 0 {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, "no choices in openai response")
	}

	return &llm.CompletionResponse{
		Content:      completion.Choices[0].Message.Content,
		Model:        completion.Model,
		FinishReason: completion.Choices[0].FinishReason,
		Usage: llm.UsageStats{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Latency: time.Since(start),
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, llm.CompletionRequest{Prompt: "ping", MaxTokens: 1})
	return err
}
