package detect

import (
	"strconv"
	"strings"
)

// luhnCheck validates a digit string against the Luhn checksum used by
// payment card numbers.
func luhnCheck(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// digitsOnly strips every non-digit rune from s.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validateCreditCard requires Luhn validity and a plausible digit count.
func validateCreditCard(match, context string) (bool, float64) {
	digits := digitsOnly(match)
	if len(digits) < 13 || len(digits) > 19 {
		return false, 0
	}
	if !luhnCheck(digits) {
		return false, 0
	}
	confidence := 0.85
	lower := strings.ToLower(context)
	if strings.Contains(lower, "card") || strings.Contains(lower, "visa") ||
		strings.Contains(lower, "mastercard") || strings.Contains(lower, "payment") {
		confidence = 0.97
	}
	if strings.Contains(lower, "invoice") || strings.Contains(lower, "order number") ||
		strings.Contains(lower, "tracking") {
		confidence -= 0.25
	}
	return confidence >= 0.5, clamp01(confidence)
}

// validateSSN rejects structurally invalid area/group/serial values and
// adjusts confidence using surrounding context keywords, mirroring the
// context-window heuristic of the reference PII detector.
func validateSSN(match, context string) (bool, float64) {
	digits := digitsOnly(match)
	if len(digits) != 9 {
		return false, 0
	}
	area, _ := strconv.Atoi(digits[0:3])
	group, _ := strconv.Atoi(digits[3:5])
	serial, _ := strconv.Atoi(digits[5:9])
	if area == 0 || area == 666 || area >= 900 || group == 0 || serial == 0 {
		return false, 0
	}

	confidence := 0.75
	lower := strings.ToLower(context)
	for _, kw := range []string{"ssn", "social security", "social security number"} {
		if strings.Contains(lower, kw) {
			confidence = 0.95
			break
		}
	}
	for _, kw := range []string{"order", "invoice", "tracking", "part number", "zip"} {
		if strings.Contains(lower, kw) {
			confidence -= 0.3
		}
	}
	return confidence >= 0.5, clamp01(confidence)
}

// validateEmail requires a plausible domain/TLD shape.
func validateEmail(match, _ string) (bool, float64) {
	at := strings.LastIndex(match, "@")
	if at < 1 || at == len(match)-1 {
		return false, 0
	}
	domain := match[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot < 1 || dot >= len(domain)-1 {
		return false, 0
	}
	tld := domain[dot+1:]
	if len(tld) < 2 {
		return false, 0
	}
	return true, 0.9
}

// validatePhone requires a plausible digit count and rejects obviously
// synthetic repeated-digit numbers (e.g. "555-555-5555" placeholders).
func validatePhone(match, _ string) (bool, float64) {
	digits := digitsOnly(match)
	if len(digits) < 10 || len(digits) > 11 {
		return false, 0
	}
	if isRepeatedDigits(digits) {
		return false, 0
	}
	return true, 0.8
}

func isRepeatedDigits(digits string) bool {
	if len(digits) == 0 {
		return false
	}
	first := digits[0]
	for i := 1; i < len(digits); i++ {
		if digits[i] != first {
			return false
		}
	}
	return true
}

// validateIPAddress requires every octet to be in [0,255].
func validateIPAddress(match, _ string) (bool, float64) {
	parts := strings.Split(match, ".")
	if len(parts) != 4 {
		return false, 0
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false, 0
		}
	}
	return true, 0.75
}

// validateAPIKey requires a minimum entropy-proxy length; vendor-prefixed
// keys (sk-, ghp_, AKIA, …) are treated as high confidence immediately.
func validateAPIKey(match, _ string) (bool, float64) {
	if len(match) < 16 {
		return false, 0
	}
	lower := strings.ToLower(match)
	for _, prefix := range []string{"sk-", "sk_", "ghp_", "gho_", "akia", "xox", "ya29.", "bearer "} {
		if strings.HasPrefix(lower, prefix) {
			return true, 0.95
		}
	}
	return true, 0.7
}

// validatePassword matches assignment-syntax secrets; any non-empty
// right-hand side is treated as a password/secret candidate.
func validatePassword(match, _ string) (bool, float64) {
	trimmed := strings.TrimSpace(match)
	if len(trimmed) < 4 {
		return false, 0
	}
	return true, 0.8
}

// validateSQLInjection accepts any regex hit: the regex table already
// encodes the dangerous shape (UNION SELECT, OR 1=1, DROP TABLE, …).
func validateSQLInjection(_, _ string) (bool, float64) {
	return true, 0.85
}

// validateCommandInjection accepts any regex hit for shell metacharacter
// chains piped into common destructive binaries.
func validateCommandInjection(_, _ string) (bool, float64) {
	return true, 0.85
}

// validatePromptInjection accepts any regex hit from the instruction
// override / role-hijack / special-token pattern set.
func validatePromptInjection(_, _ string) (bool, float64) {
	return true, 0.9
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
