package detect

import "sort"

// contextWindow is how many characters of surrounding text are passed to
// a Validator on each side of a match.
const contextWindow = 40

// DetectAll scans text against every registered pattern and returns the
// validated matches in order of appearance. Patterns whose validator
// rejects the candidate (confidence below 0.5 or an explicit false) are
// omitted. Callers that splice matches back into the source text in
// reverse (preflight.sanitizeInjections, sanitize.Sanitizer.Sanitize)
// depend on this ascending-by-Start ordering to keep offsets valid.
func DetectAll(text string) []Match {
	var out []Match
	for _, cp := range compiled {
		locs := cp.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			match := text[start:end]
			ctx := extractContext(text, start, end)
			ok, confidence := cp.Validator(match, ctx)
			if !ok || confidence < 0.5 {
				continue
			}
			out = append(out, Match{
				Type:       cp.Type,
				Value:      match,
				Severity:   cp.Severity,
				Confidence: confidence,
				Start:      start,
				End:        end,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// HasBlockLevel reports whether any match carries high severity and is
// not a prompt-injection category (those are sanitized, not blocked).
func HasBlockLevel(matches []Match) bool {
	for _, m := range matches {
		if m.Severity == "high" && !InjectionTypes[m.Type] {
			return true
		}
	}
	return false
}

// HasInjection reports whether any match is a prompt-injection detection.
func HasInjection(matches []Match) bool {
	for _, m := range matches {
		if InjectionTypes[m.Type] {
			return true
		}
	}
	return false
}

func extractContext(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
