package detect

import (
	"regexp"

	"github.com/corvidlabs/querycore/domain"
)

var compiled []compiledPattern

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

func register(p Pattern, expr string) {
	compiled = append(compiled, compiledPattern{Pattern: p, re: regexp.MustCompile(expr)})
}

func init() {
	// --- block-level secrets / PII (severity=high unless noted) ---
	register(Pattern{Type: domain.DetectionAPIKey, Severity: domain.SeverityHigh, Validator: validateAPIKey, name: "api_key"},
		`(?i)\b(sk-[a-zA-Z0-9]{20,}|sk_[a-zA-Z0-9]{20,}|ghp_[a-zA-Z0-9]{36}|gho_[a-zA-Z0-9]{36}|AKIA[0-9A-Z]{16}|xox[baprs]-[0-9a-zA-Z-]{10,}|ya29\.[0-9A-Za-z_-]{20,}|Bearer\s+[A-Za-z0-9._-]{20,})\b`)

	register(Pattern{Type: domain.DetectionPassword, Severity: domain.SeverityHigh, Validator: validatePassword, name: "password"},
		`(?i)\b(?:password|passwd|pwd|secret|api_key|apikey|token)\s*[:=]\s*['"]?([^\s'",;]{4,})['"]?`)

	register(Pattern{Type: domain.DetectionCreditCard, Severity: domain.SeverityHigh, Validator: validateCreditCard, name: "credit_card"},
		`\b(?:\d[ -]?){13,19}\b`)

	register(Pattern{Type: domain.DetectionSSN, Severity: domain.SeverityHigh, Validator: validateSSN, name: "ssn"},
		`\b\d{3}-\d{2}-\d{4}\b`)

	register(Pattern{Type: domain.DetectionEmail, Severity: domain.SeverityMedium, Validator: validateEmail, name: "email"},
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	register(Pattern{Type: domain.DetectionPhone, Severity: domain.SeverityMedium, Validator: validatePhone, name: "phone"},
		`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

	register(Pattern{Type: domain.DetectionIPAddress, Severity: domain.SeverityLow, Validator: validateIPAddress, name: "ip_address"},
		`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	register(Pattern{Type: domain.DetectionSQLInjection, Severity: domain.SeverityHigh, Validator: validateSQLInjection, name: "sql_injection"},
		`(?i)(\bunion\s+select\b|\bor\s+1\s*=\s*1\b|\bdrop\s+table\b|;\s*--|'\s*or\s*'1'\s*=\s*'1)`)

	register(Pattern{Type: domain.DetectionCommandInjection, Severity: domain.SeverityHigh, Validator: validateCommandInjection, name: "command_injection"},
		`(?i)(;\s*rm\s+-rf|&&\s*cat\s+/etc/passwd|\|\s*nc\s+-e|` + "`" + `[^` + "`" + `]*` + "`" + `|\$\([^)]*\))`)

	// --- prompt injection (detected separately; severity varies) ---
	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityHigh, Validator: validatePromptInjection, name: "instruction_override"},
		`(?i)\b(ignore (all|the )?(previous|prior|above) instructions?|disregard (all|the )?(previous|prior|above))\b`)

	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityHigh, Validator: validatePromptInjection, name: "system_prompt_extraction"},
		`(?i)\b(reveal|show|print|repeat) (your |the )?(system prompt|instructions|initial prompt)\b`)

	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityMedium, Validator: validatePromptInjection, name: "role_hijack"},
		`(?i)\b(you are now|act as|pretend (to be|you are)) (dan|developer mode|jailbreak|an? unrestricted)\b`)

	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityHigh, Validator: validatePromptInjection, name: "special_tokens"},
		`(<\|im_start\|>|<\|im_end\|>|\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>)`)

	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityMedium, Validator: validatePromptInjection, name: "tool_coercion"},
		`(?i)\b(call|invoke|execute) (the )?(tool|function) ['"]?[a-zA-Z_]+['"]? (with|using)\b`)

	register(Pattern{Type: domain.DetectionPromptInjection, Severity: domain.SeverityMedium, Validator: validatePromptInjection, name: "delimiter_forgery"},
		`(---\s*(BEGIN|END)\s+(SYSTEM|RETRIEVED CONTEXT|INSTRUCTIONS)\s*---)`)
}

// InjectionTypes lists the DetectionTypes that the context sanitizer acts
// on (it never touches secret/PII categories — those are the preflight
// gate's concern on user-authored query text only).
var InjectionTypes = map[domain.DetectionType]bool{
	domain.DetectionPromptInjection: true,
}
