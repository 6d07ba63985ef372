package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/corvidlabs/querycore/domain"
)

type fakeClassifier struct {
	intent domain.Intent
	conf   float64
	err    error
}

func (f fakeClassifier) Classify(ctx context.Context, query string) (domain.Intent, float64, error) {
	return f.intent, f.conf, f.err
}

type fakeAugmenter struct {
	variations []string
	err        error
}

func (f fakeAugmenter) Augment(ctx context.Context, query string, intent domain.Intent, history string) ([]string, error) {
	return f.variations, f.err
}

type fakeSearchDetector struct {
	should bool
	reason string
}

func (f fakeSearchDetector) ShouldSearch(ctx context.Context, query string) (bool, string) {
	return f.should, f.reason
}

func TestPlanner_NilOraclesUseDefaults(t *testing.T) {
	p := New(nil, nil, nil, true)
	plan := p.Plan(context.Background(), "trace-1", "hello", "hello", true, "")
	if plan.Intent != domain.IntentGeneral {
		t.Errorf("expected default general intent, got %v", plan.Intent)
	}
	if plan.NeedsWebSearch {
		t.Error("expected no web search without a detector")
	}
	if len(plan.AugmentedQueries) != 1 || plan.AugmentedQueries[0] != "hello" {
		t.Errorf("expected the original query alone without an augmenter, got %v", plan.AugmentedQueries)
	}
}

func TestPlanner_ClassifierErrorFallsBackToGeneral(t *testing.T) {
	p := New(fakeClassifier{err: errors.New("boom")}, nil, nil, true)
	plan := p.Plan(context.Background(), "trace-1", "q", "q", true, "")
	if plan.Intent != domain.IntentGeneral || plan.IntentConfidence != 0.5 {
		t.Errorf("expected (general, 0.5) fallback, got (%v, %v)", plan.Intent, plan.IntentConfidence)
	}
}

func TestPlanner_WebSearchDisabledWhenPreflightDisallows(t *testing.T) {
	p := New(nil, nil, fakeSearchDetector{should: true, reason: "news"}, true)
	plan := p.Plan(context.Background(), "trace-1", "what happened today", "what happened today", false, "")
	if plan.NeedsWebSearch {
		t.Error("expected web search suppressed when preflight disallows it")
	}
}

func TestPlanner_WebSearchDisabledByKillSwitch(t *testing.T) {
	p := New(nil, nil, fakeSearchDetector{should: true, reason: "news"}, false)
	plan := p.Plan(context.Background(), "trace-1", "what happened today", "what happened today", true, "")
	if plan.NeedsWebSearch {
		t.Error("expected web search suppressed by the enableWebSearch kill switch")
	}
}

func TestPlanner_InternalContextExclusionOverridesDetector(t *testing.T) {
	p := New(nil, nil, fakeSearchDetector{should: true, reason: "news"}, true)
	plan := p.Plan(context.Background(), "trace-1", "what did I ask you about earlier", "what did i ask you about earlier", true, "")
	if plan.NeedsWebSearch {
		t.Error("expected internal-context phrasing to suppress web search regardless of the detector")
	}
	if plan.WebSearchReason != "internal_context_excluded" {
		t.Errorf("expected internal_context_excluded reason, got %q", plan.WebSearchReason)
	}
}

func TestPlanner_AugmentPrependsOriginalAndCapsAtFive(t *testing.T) {
	p := New(nil, fakeAugmenter{variations: []string{"v1", "v2", "v3", "v4", "v5", "v6"}}, nil, true)
	plan := p.Plan(context.Background(), "trace-1", "orig", "orig", true, "")
	if len(plan.AugmentedQueries) != 5 {
		t.Fatalf("expected augmented queries capped at 5, got %d", len(plan.AugmentedQueries))
	}
	if plan.AugmentedQueries[0] != "orig" {
		t.Errorf("expected original query prepended, got %q first", plan.AugmentedQueries[0])
	}
}

func TestPlanner_AugmentErrorFallsBackToOriginal(t *testing.T) {
	p := New(nil, fakeAugmenter{err: errors.New("boom")}, nil, true)
	plan := p.Plan(context.Background(), "trace-1", "orig", "orig", true, "")
	if len(plan.AugmentedQueries) != 1 || plan.AugmentedQueries[0] != "orig" {
		t.Errorf("expected fallback to [original] on augmenter error, got %v", plan.AugmentedQueries)
	}
}

func TestAugmentationMode(t *testing.T) {
	if mode := AugmentationMode("short query here"); mode != "full" {
		t.Errorf("expected full for a short query, got %q", mode)
	}
	long := "this is a very long query with many words intended to exceed the fifteen word threshold for sure"
	if mode := AugmentationMode(long); mode != "decompose" {
		t.Errorf("expected decompose for a long query, got %q", mode)
	}
}
