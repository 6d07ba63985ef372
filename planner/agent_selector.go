package planner

import (
	"fmt"

	"github.com/corvidlabs/querycore/domain"
)

// agentRouting maps a detected intent to its preferred agent. claude_code
// is a stub pending a future agent implementation, so code/terminal/file
// intents route to claude_sonnet until that lands.
var agentRouting = map[domain.Intent]domain.AgentType{
	domain.IntentTerminalCommand: domain.AgentClaudeSonnet,
	domain.IntentCodeGeneration:  domain.AgentClaudeSonnet,
	domain.IntentFileOperation:   domain.AgentClaudeSonnet,
	domain.IntentAnalysis:        domain.AgentClaudeSonnet,
	domain.IntentCreative:        domain.AgentChatGPT,
	domain.IntentResearch:        domain.AgentGemini,
	domain.IntentMemoryQuery:     domain.AgentClaudeSonnet,
}

type agentCapabilities struct {
	Capabilities    []string
	CostPer1KTokens float64
	AvgLatencyMS    int
	Quality         string
	Note            string
}

var capabilitiesByAgent = map[domain.AgentType]agentCapabilities{
	domain.AgentClaudeCode: {
		Capabilities: []string{"terminal", "code_generation", "file_ops"}, CostPer1KTokens: 0.015,
		AvgLatencyMS: 3500, Quality: "high", Note: "reserved for a future terminal/code agent, currently stubbed",
	},
	domain.AgentClaudeSonnet: {
		Capabilities: []string{"analysis", "synthesis", "memory_query"}, CostPer1KTokens: 0.015,
		AvgLatencyMS: 3000, Quality: "highest", Note: "best for analysis and synthesis",
	},
	domain.AgentChatGPT: {
		Capabilities: []string{"creative", "general", "conversation"}, CostPer1KTokens: 0.003,
		AvgLatencyMS: 1800, Quality: "medium-high", Note: "cost-optimized for creative tasks",
	},
	domain.AgentGemini: {
		Capabilities: []string{"research", "web_search", "general"}, CostPer1KTokens: 0.010,
		AvgLatencyMS: 4000, Quality: "high", Note: "has web search for research tasks",
	},
}

// AgentSelector picks the agent that serves a given intent, honoring a
// manual override and falling back across the set of agents the caller
// has actually initialized.
type AgentSelector struct {
	routing   map[domain.Intent]domain.AgentType
	available []domain.AgentType
	log       func(format string, args ...interface{})
}

// NewAgentSelector constructs a selector restricted to the given set of
// initialized agents. An empty slice means no restriction is applied.
func NewAgentSelector(available []domain.AgentType) *AgentSelector {
	return &AgentSelector{routing: agentRouting, available: available}
}

// SetAvailableAgents replaces the set of agents considered available.
func (s *AgentSelector) SetAvailableAgents(available []domain.AgentType) {
	s.available = available
}

func contains(list []domain.AgentType, a domain.AgentType) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

// SelectAgent chooses an agent for intent, honoring manualOverride when
// it names an available agent, else the routing table, else a fallback
// to Ollama or the first available agent.
func (s *AgentSelector) SelectAgent(intent domain.Intent, manualOverride domain.AgentType) domain.AgentType {
	if manualOverride != "" {
		if len(s.available) == 0 || contains(s.available, manualOverride) {
			return manualOverride
		}
	}

	preferred, ok := s.routing[intent]
	if !ok {
		preferred = domain.AgentClaudeSonnet
	}

	if len(s.available) == 0 || contains(s.available, preferred) {
		return preferred
	}

	if contains(s.available, domain.AgentOllama) {
		return domain.AgentOllama
	}
	if len(s.available) > 0 {
		return s.available[0]
	}
	return domain.AgentOllama
}

// ExplainRouting produces a human-readable diagnostic of why an intent
// maps to its preferred agent, independent of availability fallback.
func (s *AgentSelector) ExplainRouting(intent domain.Intent) string {
	agent, ok := s.routing[intent]
	if !ok {
		agent = domain.AgentClaudeSonnet
	}
	caps := capabilitiesByAgent[agent]
	note := caps.Note
	if note == "" {
		note = "best match for this intent"
	}
	return fmt.Sprintf("Intent '%s' -> Agent '%s'\nReason: %s\nCost: $%.3f/1K tokens\nQuality: %s\n",
		intent, agent, note, caps.CostPer1KTokens, caps.Quality)
}
