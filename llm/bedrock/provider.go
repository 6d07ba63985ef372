// Package bedrock adapts AWS Bedrock's Converse API to llm.Provider.
package bedrock

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/corvidlabs/querycore/llm"
)

// Provider adapts a bedrockruntime.Client to llm.Provider via the
// Converse API, which is model-family agnostic (Claude, Titan, Llama).
type Provider struct {
	name         string
	client       *bedrockruntime.Client
	defaultModel string
}

// New constructs a Bedrock-backed provider. client is expected to be
// built from an aws.Config resolved the normal SDK way (env vars,
// shared config, or an assumed role), so no credentials pass through
// this package directly.
func New(name string, client *bedrockruntime.Client, defaultModel string) *Provider {
	return &Provider{name: name, client: client, defaultModel: defaultModel}
}

func (p *Provider) Name() string            { return p.name }
func (p *Provider) Type() llm.ProviderType  { return llm.ProviderTypeBedrock }

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []types.Message{
		{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
		},
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}

	inference := &types.InferenceConfiguration{}
	set := false
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(req.MaxTokens))
		set = true
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(req.Temperature))
		set = true
	}
	if set {
		input.InferenceConfig = inference
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}
	if out.Output == nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, "no output in bedrock response")
	}

	var content string
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, "unexpected output type from bedrock")
	}
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
			content += textBlock.Value
		}
	}

	var usage llm.UsageStats
	if out.Usage != nil {
		usage = llm.UsageStats{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}

	return &llm.CompletionResponse{
		Content: content,
		Model:   model,
		Usage:   usage,
		Latency: time.Since(start),
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, llm.CompletionRequest{Prompt: "ping", MaxTokens: 1})
	if err != nil {
		return fmt.Errorf("bedrock health check: %w", err)
	}
	return nil
}
