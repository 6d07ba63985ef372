package threshold

import (
	"testing"

	"github.com/corvidlabs/querycore/domain"
)

func TestResolverMode(t *testing.T) {
	r := New(true)
	cases := []struct {
		name  string
		query string
		want  domain.RetrievalMode
	}{
		{"quoted text", `what command did I run, the exact command i used was "foo bar"`, domain.ModeExactRecall},
		{"exact recall cue", "what was the exact error message", domain.ModeExactRecall},
		{"troubleshoot cue", "why is my build failing", domain.ModeTroubleshoot},
		{"compare cue", "difference between postgres and mysql", domain.ModeCompare},
		{"conceptual cue", "tell me about vector databases", domain.ModeConceptualExplore},
		{"no cue", "schedule a meeting for tomorrow", domain.ModeDefault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Mode(tc.query, nil); got != tc.want {
				t.Errorf("Mode(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestResolverMode_HintOverrides(t *testing.T) {
	r := New(true)
	hint := domain.ModeCompare
	if got := r.Mode("why is this failing", &hint); got != domain.ModeCompare {
		t.Errorf("expected hint to override cue detection, got %v", got)
	}
}

func TestResolverResolve_Disabled(t *testing.T) {
	r := New(false)
	set, mode := r.Resolve("trace-1", "why is this failing", nil)
	if mode != domain.ModeDefault {
		t.Errorf("expected ModeDefault when disabled, got %v", mode)
	}
	want := table[domain.ModeDefault]
	if set != want {
		t.Errorf("expected default threshold set %+v, got %+v", want, set)
	}
}

func TestResolverResolve_Enabled(t *testing.T) {
	r := New(true)
	set, mode := r.Resolve("trace-1", "compare foo vs bar", nil)
	if mode != domain.ModeCompare {
		t.Errorf("expected ModeCompare, got %v", mode)
	}
	if set != table[domain.ModeCompare] {
		t.Errorf("expected compare threshold set, got %+v", set)
	}
}
