// Package llm provides a unified interface for LLM providers so the
// coordinator can route, stream and fail over across Bedrock, Anthropic,
// OpenAI and Ollama without caring which backend actually answers.
package llm

import (
	"fmt"
	"time"
)

// ProviderType identifies the provider implementation behind a Provider.
type ProviderType string

const (
	ProviderTypeBedrock   ProviderType = "bedrock"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeOllama    ProviderType = "ollama"
)

// CompletionRequest is the unified request shape across all providers.
type CompletionRequest struct {
	Prompt        string
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
	Model         string
	StopSequences []string
	Metadata      map[string]any
}

// CompletionResponse is the unified response shape across all providers.
type CompletionResponse struct {
	Content      string
	Model        string
	Usage        UsageStats
	Latency      time.Duration
	FinishReason string
}

// UsageStats tracks token usage for cost accounting.
type UsageStats struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is a single piece of a streaming completion.
type StreamChunk struct {
	Content string
	Done    bool
	Error   string
}

// StreamHandler processes one StreamChunk; returning an error aborts the
// stream.
type StreamHandler func(chunk StreamChunk) error

// ProviderError is returned by provider adapters on request failure.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

const (
	ErrCodeRateLimit  = "rate_limit"
	ErrCodeAuth       = "authentication_error"
	ErrCodeTimeout    = "timeout"
	ErrCodeUnavailable = "unavailable"
	ErrCodeServer     = "server_error"
)

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimit, ErrCodeServer, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}

// NewProviderError builds a ProviderError with Retryable derived from code.
func NewProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Message: message, Retryable: isRetryableCode(code)}
}
