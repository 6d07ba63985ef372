package bedrock

import (
	"testing"

	"github.com/corvidlabs/querycore/llm"
)

func TestNew_NameAndType(t *testing.T) {
	p := New("bedrock-claude", nil, "anthropic.claude-3-5-sonnet-20241022-v2:0")
	if p.Name() != "bedrock-claude" {
		t.Errorf("expected the configured name, got %q", p.Name())
	}
	if p.Type() != llm.ProviderTypeBedrock {
		t.Errorf("expected ProviderTypeBedrock, got %v", p.Type())
	}
}

func TestNew_RetainsDefaultModel(t *testing.T) {
	p := New("bedrock-claude", nil, "amazon.titan-text-express-v1")
	if p.defaultModel != "amazon.titan-text-express-v1" {
		t.Errorf("expected the default model retained, got %q", p.defaultModel)
	}
}
