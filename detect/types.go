// Package detect implements the shared secret/PII/prompt-injection pattern
// matching engine used by both PreflightGate (query text) and
// ContextSanitizer (retrieved content). The pattern and validator
// technique is adapted from a production PII detector: regex candidates
// are narrowed by a per-type validator that returns a confidence score,
// so a bare digit run never counts as a credit card without passing Luhn.
package detect

import "github.com/corvidlabs/querycore/domain"

// Validator inspects a raw match plus its surrounding context and decides
// whether it is a real instance of its DetectionType, returning a
// confidence in [0,1].
type Validator func(match, context string) (bool, float64)

// Pattern is one entry in the detection table.
type Pattern struct {
	Type      domain.DetectionType
	Severity  domain.Severity
	Validator Validator
	// compiled regex is installed by patterns.go via register()
	name string
}

// Match is a single matched span with its resolved confidence.
type Match struct {
	Type       domain.DetectionType
	Value      string
	Severity   domain.Severity
	Confidence float64
	Start      int
	End        int
}

func (m Match) ToDetection() domain.Detection {
	return domain.Detection{
		Type:       m.Type,
		Value:      m.Value,
		Severity:   m.Severity,
		Confidence: m.Confidence,
		Start:      m.Start,
		End:        m.End,
	}
}
