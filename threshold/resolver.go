// Package threshold resolves a query's RetrievalMode and the adaptive
// ThresholdSet that governs pattern-separation (exact recall) versus
// pattern-completion (exploratory) retrieval.
package threshold

import (
	"regexp"
	"strings"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/shared/logger"
)

var (
	exactRecallCues = []string{"what was the exact", "command i used", "literally said", "exact command"}
	quotePattern    = regexp.MustCompile(`"[^"]+"`)

	conceptualCues = []string{"what do i know about", "anything on", "tell me about"}

	troubleshootCues = []string{"why is", "why does", "failing", "error", "not working", "broken"}

	compareCues = []string{"difference between", " vs ", " versus ", "compare"}
)

// table is the closed mapping from RetrievalMode to its ThresholdSet.
var table = map[domain.RetrievalMode]domain.ThresholdSet{
	domain.ModeExactRecall:       {Cache: 0.96, Raw: 0.90, Knowledge: 0.80},
	domain.ModeConceptualExplore: {Cache: 0.92, Raw: 0.75, Knowledge: 0.55},
	domain.ModeTroubleshoot:      {Cache: 0.94, Raw: 0.82, Knowledge: 0.65},
	domain.ModeCompare:           {Cache: 0.93, Raw: 0.78, Knowledge: 0.60},
	domain.ModeDefault:           {Cache: 0.95, Raw: 0.85, Knowledge: 0.60},
}

// Resolver classifies RetrievalMode from query shape and resolves it to
// a ThresholdSet.
type Resolver struct {
	log     *logger.Logger
	enabled bool // when false, always resolves to the fixed default set
}

// New constructs a Resolver. When enabled is false, Resolve always
// returns the fixed (0.95, 0.85, 0.60) default, matching the
// enable_adaptive_thresholds kill switch.
func New(enabled bool) *Resolver {
	return &Resolver{log: logger.New("threshold_resolver"), enabled: enabled}
}

// Mode classifies the RetrievalMode for query, optionally overridden by
// an explicit hint.
func (r *Resolver) Mode(query string, hint *domain.RetrievalMode) domain.RetrievalMode {
	if hint != nil {
		return *hint
	}
	lower := strings.ToLower(query)

	if quotePattern.MatchString(query) || containsAny(lower, exactRecallCues) {
		return domain.ModeExactRecall
	}
	if containsAny(lower, troubleshootCues) {
		return domain.ModeTroubleshoot
	}
	if containsAny(lower, compareCues) {
		return domain.ModeCompare
	}
	if containsAny(lower, conceptualCues) {
		return domain.ModeConceptualExplore
	}
	return domain.ModeDefault
}

// Resolve derives the ThresholdSet for query, logging the resolved mode
// against traceID.
func (r *Resolver) Resolve(traceID, query string, hint *domain.RetrievalMode) (domain.ThresholdSet, domain.RetrievalMode) {
	if !r.enabled {
		return table[domain.ModeDefault], domain.ModeDefault
	}
	mode := r.Mode(query, hint)
	set := table[mode]
	r.log.Debug(traceID, "", "resolved retrieval mode", map[string]interface{}{
		"mode":      mode,
		"cache":     set.Cache,
		"raw":       set.Raw,
		"knowledge": set.Knowledge,
	})
	return set, mode
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
