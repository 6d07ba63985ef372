package planner

import (
	"strings"
	"testing"

	"github.com/corvidlabs/querycore/domain"
)

func TestSelectAgent_HonorsManualOverride(t *testing.T) {
	s := NewAgentSelector([]domain.AgentType{domain.AgentOllama, domain.AgentChatGPT})
	if got := s.SelectAgent(domain.IntentCreative, domain.AgentOllama); got != domain.AgentOllama {
		t.Errorf("expected manual override honored, got %v", got)
	}
}

func TestSelectAgent_IgnoresUnavailableOverride(t *testing.T) {
	s := NewAgentSelector([]domain.AgentType{domain.AgentOllama})
	got := s.SelectAgent(domain.IntentCreative, domain.AgentGemini)
	if got == domain.AgentGemini {
		t.Error("expected an unavailable manual override to be ignored")
	}
}

func TestSelectAgent_UsesRoutingTable(t *testing.T) {
	s := NewAgentSelector(nil)
	if got := s.SelectAgent(domain.IntentResearch, ""); got != domain.AgentGemini {
		t.Errorf("expected research routed to gemini, got %v", got)
	}
}

func TestSelectAgent_FallsBackToOllamaWhenPreferredUnavailable(t *testing.T) {
	s := NewAgentSelector([]domain.AgentType{domain.AgentOllama})
	got := s.SelectAgent(domain.IntentResearch, "")
	if got != domain.AgentOllama {
		t.Errorf("expected fallback to ollama when gemini unavailable, got %v", got)
	}
}

func TestSelectAgent_FallsBackToFirstAvailableWhenNoOllama(t *testing.T) {
	s := NewAgentSelector([]domain.AgentType{domain.AgentChatGPT})
	got := s.SelectAgent(domain.IntentResearch, "")
	if got != domain.AgentChatGPT {
		t.Errorf("expected fallback to the sole available agent, got %v", got)
	}
}

func TestSelectAgent_UnknownIntentDefaultsToClaudeSonnet(t *testing.T) {
	s := NewAgentSelector(nil)
	if got := s.SelectAgent(domain.Intent("unmapped_intent"), ""); got != domain.AgentClaudeSonnet {
		t.Errorf("expected unmapped intents to default to claude_sonnet, got %v", got)
	}
}

func TestSetAvailableAgents_Updates(t *testing.T) {
	s := NewAgentSelector([]domain.AgentType{domain.AgentOllama})
	s.SetAvailableAgents([]domain.AgentType{domain.AgentChatGPT})
	if got := s.SelectAgent(domain.IntentCreative, ""); got != domain.AgentChatGPT {
		t.Errorf("expected updated availability to take effect, got %v", got)
	}
}

func TestExplainRouting_MentionsAgentAndCost(t *testing.T) {
	s := NewAgentSelector(nil)
	explanation := s.ExplainRouting(domain.IntentResearch)
	if !strings.Contains(explanation, "gemini") {
		t.Errorf("expected explanation to mention the routed agent, got %q", explanation)
	}
	if !strings.Contains(explanation, "$0.010") {
		t.Errorf("expected explanation to mention cost per 1K tokens, got %q", explanation)
	}
}
