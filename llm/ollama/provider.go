// Package ollama adapts a local Ollama server's /api/generate endpoint
// to llm.Provider. Ollama has no official Go client in the dependency
// set this module draws from, so this adapter speaks its HTTP API
// directly over net/http.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corvidlabs/querycore/llm"
)

// Provider talks to a local or self-hosted Ollama instance.
type Provider struct {
	name         string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// New constructs an Ollama-backed provider against baseURL (e.g.
// "http://localhost:11434").
func New(name, baseURL, defaultModel string) *Provider {
	return &Provider{
		name:         name,
		baseURL:      baseURL,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Provider) Name() string           { return p.name }
func (p *Provider) Type() llm.ProviderType { return llm.ProviderTypeOllama }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body, err := json.Marshal(generateRequest{Model: model, Prompt: req.Prompt, System: req.SystemPrompt, Stream: false})
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, fmt.Sprintf("status %d: %s", resp.StatusCode, string(data)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.NewProviderError(p.name, llm.ErrCodeServer, err.Error())
	}

	return &llm.CompletionResponse{
		Content: out.Response,
		Model:   out.Model,
		Usage: llm.UsageStats{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		Latency: time.Since(start),
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}
