// Package preflight implements the sole security checkpoint that runs
// before any external API call (web search, embedding, LLM). It is
// grounded on the same detection engine the context sanitizer uses, but
// applies the stricter "block on secrets/PII, sanitize on injection"
// policy rather than the legacy compliance checker's warn-and-allow
// treatment of dangerous shell commands.
package preflight

import (
	"strings"

	"github.com/corvidlabs/querycore/detect"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/privacy"
	"github.com/corvidlabs/querycore/shared/logger"
)

// Result is the outcome of a Check call.
type Result struct {
	Decision        domain.PreflightDecision
	OriginalQuery   string
	SanitizedQuery  string
	Detections      []domain.Detection
	AllowWebSearch  bool
	Reason          string
}

// Gate classifies queries into allow/allow_masked/block before any
// external call is made.
type Gate struct {
	log    *logger.Logger
	strict bool // strict mode strips injection spans; non-strict replaces with a placeholder
}

// New constructs a Gate. strict controls whether detected injection spans
// are stripped entirely or replaced with an opaque placeholder.
func New(strict bool) *Gate {
	return &Gate{log: logger.New("preflight"), strict: strict}
}

// blockMessages maps the first high-severity detection kind to a
// deterministic, non-echoing user-facing message.
var blockMessages = map[domain.DetectionType]string{
	domain.DetectionSSN:              "Your message appears to contain a Social Security Number. Please remove it and try again.",
	domain.DetectionCreditCard:       "Your message appears to contain payment card information. Please remove it and try again.",
	domain.DetectionAPIKey:           "Your message appears to contain an API key or secret. Please remove it and try again.",
	domain.DetectionPassword:         "Your message appears to contain a password or secret. Please remove it and try again.",
	domain.DetectionEmail:            "Your message appears to contain an email address. Please remove it and try again.",
	domain.DetectionPhone:            "Your message appears to contain a phone number. Please remove it and try again.",
	domain.DetectionSQLInjection:     "Your message was blocked for containing a disallowed pattern.",
	domain.DetectionCommandInjection: "Your message was blocked for containing a disallowed pattern.",
}

// detectionPriority fixes the order in which block reasons are chosen when
// multiple high-severity detections are present, matching the order the
// spec lists them in.
var detectionPriority = []domain.DetectionType{
	domain.DetectionSSN,
	domain.DetectionCreditCard,
	domain.DetectionAPIKey,
	domain.DetectionPassword,
	domain.DetectionSQLInjection,
	domain.DetectionCommandInjection,
	domain.DetectionEmail,
	domain.DetectionPhone,
}

// Check classifies query and decides whether web search may follow.
func (g *Gate) Check(traceID, query, userID string, userCtx domain.PrivacyLevel) Result {
	matches := detect.DetectAll(query)
	detections := make([]domain.Detection, 0, len(matches))
	for _, m := range matches {
		detections = append(detections, m.ToDetection())
	}

	if detect.HasBlockLevel(matches) {
		reason := firstBlockReason(matches)
		g.log.Warn(traceID, userID, "preflight blocked query", map[string]interface{}{
			"reason": reason,
		})
		return Result{
			Decision:       domain.DecisionBlock,
			OriginalQuery:  query,
			SanitizedQuery: "",
			Detections:     detections,
			AllowWebSearch: false,
			Reason:         reason,
		}
	}

	if detect.HasInjection(matches) {
		sanitized := g.sanitizeInjections(query, matches)
		g.log.Info(traceID, userID, "preflight sanitized injection", map[string]interface{}{
			"detection_count": len(matches),
		})
		return Result{
			Decision:       domain.DecisionAllowMasked,
			OriginalQuery:  query,
			SanitizedQuery: sanitized,
			Detections:     detections,
			AllowWebSearch: false,
			Reason:         "prompt_injection",
		}
	}

	allowWebSearch := privacy.ShouldSendToExternalAPI(userCtx)
	return Result{
		Decision:       domain.DecisionAllow,
		OriginalQuery:  query,
		SanitizedQuery: query,
		Detections:     detections,
		AllowWebSearch: allowWebSearch,
	}
}

func firstBlockReason(matches []detect.Match) string {
	bySeverity := map[domain.DetectionType]bool{}
	for _, m := range matches {
		if m.Severity == domain.SeverityHigh && !detect.InjectionTypes[m.Type] {
			bySeverity[m.Type] = true
		}
	}
	for _, t := range detectionPriority {
		if bySeverity[t] {
			if msg, ok := blockMessages[t]; ok {
				return msg
			}
		}
	}
	return "Your message was blocked by our content safety policy."
}

// sanitizeInjections strips or masks each injection span in reverse
// order of occurrence to preserve offsets, then normalizes whitespace.
func (g *Gate) sanitizeInjections(query string, matches []detect.Match) string {
	injected := make([]detect.Match, 0, len(matches))
	for _, m := range matches {
		if detect.InjectionTypes[m.Type] {
			injected = append(injected, m)
		}
	}
	out := query
	for i := len(injected) - 1; i >= 0; i-- {
		m := injected[i]
		replacement := ""
		if !g.strict {
			replacement = placeholderFor(m.End - m.Start)
		}
		out = out[:m.Start] + replacement + out[m.End:]
	}
	return normalizeWhitespace(out)
}

func placeholderFor(n int) string {
	return "[SANITIZED: " + itoa(n) + " chars]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
