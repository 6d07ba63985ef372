// Package planner implements QueryPlanner: intent classification, the
// web-search decision, and query augmentation, each delegating to a
// pluggable oracle per the external interfaces contract.
package planner

import (
	"context"
	"strings"

	"github.com/corvidlabs/querycore/domain"
)

// IntentClassifier is the pluggable oracle contract: classify(query) ->
// (intent, confidence). Must be pure and fast (<5ms budget); on error the
// planner defaults to (general, 0.5).
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (domain.Intent, float64, error)
}

// QueryAugmenter is the pluggable oracle contract: augment(query, intent,
// history?) -> [query]. Returns 1-5 variations including the original.
type QueryAugmenter interface {
	Augment(ctx context.Context, query string, intent domain.Intent, history string) ([]string, error)
}

// SearchNeedDetector is the pluggable oracle contract: should_search(query)
// -> (bool, reason).
type SearchNeedDetector interface {
	ShouldSearch(ctx context.Context, query string) (bool, string)
}

// internalContextExclusions disables the web-search decision for phrases
// identifying the system's own retained data, even when a temporal or
// dynamic-topic cue would otherwise trigger a search.
var internalContextExclusions = []string{
	"what did i ask", "my previous question", "our conversation", "what i told you",
}

// Plan is QueryPlanner's output.
type Plan struct {
	OriginalQuery     string
	SanitizedQuery    string
	AugmentedQueries  []string
	Intent            domain.Intent
	IntentConfidence  float64
	AllowWebSearch    bool
	NeedsWebSearch    bool
	WebSearchReason   string
	TraceID           string
}

// Planner composes the three pluggable oracles into a QueryPlan.
type Planner struct {
	classifier      IntentClassifier
	augmenter       QueryAugmenter
	searchDetector  SearchNeedDetector
	enableWebSearch bool
}

// New constructs a Planner. enableWebSearch is the planner-level kill
// switch from configuration.
func New(classifier IntentClassifier, augmenter QueryAugmenter, detector SearchNeedDetector, enableWebSearch bool) *Planner {
	return &Planner{classifier: classifier, augmenter: augmenter, searchDetector: detector, enableWebSearch: enableWebSearch}
}

// Plan produces a QueryPlan for a preflight-cleared query.
func (p *Planner) Plan(ctx context.Context, traceID, originalQuery, sanitizedQuery string, preflightAllowedWebSearch bool, history string) Plan {
	intent, confidence := p.classify(ctx, sanitizedQuery)

	needsSearch, reason := p.decideWebSearch(ctx, sanitizedQuery, preflightAllowedWebSearch)

	augmented := p.augment(ctx, sanitizedQuery, intent, history)

	return Plan{
		OriginalQuery:    originalQuery,
		SanitizedQuery:   sanitizedQuery,
		AugmentedQueries: augmented,
		Intent:           intent,
		IntentConfidence: confidence,
		AllowWebSearch:   preflightAllowedWebSearch,
		NeedsWebSearch:   needsSearch,
		WebSearchReason:  reason,
		TraceID:          traceID,
	}
}

func (p *Planner) classify(ctx context.Context, query string) (domain.Intent, float64) {
	if p.classifier == nil {
		return domain.IntentGeneral, 0.5
	}
	intent, confidence, err := p.classifier.Classify(ctx, query)
	if err != nil {
		return domain.IntentGeneral, 0.5
	}
	return intent, confidence
}

func (p *Planner) decideWebSearch(ctx context.Context, query string, preflightAllowed bool) (bool, string) {
	if !preflightAllowed || !p.enableWebSearch {
		return false, ""
	}
	lower := strings.ToLower(query)
	for _, exclusion := range internalContextExclusions {
		if strings.Contains(lower, exclusion) {
			return false, "internal_context_excluded"
		}
	}
	if p.searchDetector == nil {
		return false, ""
	}
	ok, reason := p.searchDetector.ShouldSearch(ctx, query)
	return ok, reason
}

func (p *Planner) augment(ctx context.Context, query string, intent domain.Intent, history string) []string {
	if p.augmenter == nil {
		return []string{query}
	}
	variations, err := p.augmenter.Augment(ctx, query, intent, history)
	if err != nil || len(variations) == 0 {
		return []string{query}
	}
	// The original query is always included at index 0.
	if variations[0] != query {
		variations = append([]string{query}, variations...)
	}
	if len(variations) > 5 {
		variations = variations[:5]
	}
	return variations
}

// AugmentationMode reports decompose for long queries (> 15 words), full
// otherwise — the mode a default augmenter oracle would use.
func AugmentationMode(query string) string {
	if len(strings.Fields(query)) > 15 {
		return "decompose"
	}
	return "full"
}
