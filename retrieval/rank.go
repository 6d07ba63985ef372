package retrieval

import (
	"sort"
	"time"

	"github.com/corvidlabs/querycore/domain"
)

const (
	weightSimilarity = 0.40
	weightSource     = 0.20
	weightFreshness  = 0.15
	weightFeedback   = 0.15
	weightDiversity  = 0.10
)

var sourceBoosts = map[string]float64{
	"qa_pair":             1.30,
	"conversation_turn":   1.25,
	"conversation_thread": 1.10,
	"cache":               1.05,
	"memory":              1.00,
}

const webTimeSensitiveBoost = 0.10

// timeSensitiveIntents are the intents for which recent content is
// weighted more heavily for freshness and web results float to the top.
var timeSensitiveIntents = map[domain.Intent]bool{
	domain.IntentTerminalCommand: true,
	domain.IntentFinance:         true,
	domain.IntentResearch:        true,
}

// evergreenIntents get a neutral freshness score regardless of age.
var evergreenIntents = map[domain.Intent]bool{
	domain.IntentAnalysis: true,
	domain.IntentCreative: true,
}

// Dedup removes duplicate RetrievalSources by ID. Web sources with an
// empty ID are exempt and always pass through.
func Dedup(sources []domain.RetrievalSource) []domain.RetrievalSource {
	seen := make(map[string]bool, len(sources))
	out := make([]domain.RetrievalSource, 0, len(sources))
	for _, s := range sources {
		if s.ID == "" {
			out = append(out, s)
			continue
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// Rank scores and sorts sources by the weighted-sum CRS formula,
// descending.
func Rank(sources []domain.RetrievalSource, intent domain.Intent, now time.Time) []domain.ScoredResult {
	scored := make([]domain.ScoredResult, 0, len(sources))
	seenTopics := make(map[string]bool)

	for _, s := range sources {
		breakdown := domain.ScoreBreakdown{
			Similarity:  s.Similarity,
			SourceBoost: sourceBoostFor(s, intent),
			Freshness:   freshnessFor(s, intent, now),
			Feedback:    clamp01(s.FeedbackScore),
			Diversity:   diversityFor(s, seenTopics),
		}
		score := weightSimilarity*breakdown.Similarity +
			weightSource*breakdown.SourceBoost +
			weightFreshness*breakdown.Freshness +
			weightFeedback*breakdown.Feedback +
			weightDiversity*breakdown.Diversity

		scored = append(scored, domain.ScoredResult{
			RetrievalSource: s,
			Score:           score,
			Breakdown:       breakdown,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func sourceBoostFor(s domain.RetrievalSource, intent domain.Intent) float64 {
	if s.SourceType == domain.SourceWeb {
		boost := 1.0
		if timeSensitiveIntents[intent] {
			boost += webTimeSensitiveBoost
		}
		return boost
	}
	kind := s.RawSourceKind
	if kind == "" {
		kind = string(s.SourceType)
	}
	if boost, ok := sourceBoosts[kind]; ok {
		return boost
	}
	return 1.0
}

func freshnessFor(s domain.RetrievalSource, intent domain.Intent, now time.Time) float64 {
	if evergreenIntents[intent] {
		return 0.5
	}
	ageDays := float64(now.Unix()-s.CreatedAt) / 86400
	if timeSensitiveIntents[intent] {
		if ageDays <= 7 {
			return 1.0
		}
		return 0.5
	}
	if ageDays <= 7 {
		return 1.0
	}
	if ageDays >= 90 {
		return 0.2
	}
	// linear decay between 7 and 90 days
	return 1.0 - 0.8*((ageDays-7)/83)
}

func diversityFor(s domain.RetrievalSource, seenTopics map[string]bool) float64 {
	topic, _ := s.Metadata["topic_cluster"].(string)
	if topic == "" {
		return 1.0
	}
	if seenTopics[topic] {
		return 0.3
	}
	seenTopics[topic] = true
	return 1.0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
