package logging

import (
	"regexp"
	"strings"
)

// Patterns for secrets that should be replaced wholesale.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36})`),
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(key|token|secret|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// quotedValue matches a double-quoted argument with backslash escapes.
const quotedValue = `"(?:[^"\\]|\\.)*"`

// Command-line flags whose value is a secret. The flag itself is kept.
var secretFlagPatterns = []*regexp.Regexp{
	// pscp/plink: -pw "secret" or -pw secret
	regexp.MustCompile(`(-pw\s+)(?:` + quotedValue + `|'[^']*'|\S+)`),
	// cmdkey: /pass:"secret" or /pass:secret
	regexp.MustCompile(`(?i)(/pass:)(?:` + quotedValue + `|\S+)`),
	// password=secret, password: secret
	regexp.MustCompile(`(?i)(password\s*[=:]\s*)(?:"[^"]*"|'[^']*'|\S+)`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s

	for _, pattern := range secretFlagPatterns {
		result = pattern.ReplaceAllString(result, "${1}"+RedactedValue)
	}
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}

	return result
}

// RedactSecrets replaces every literal occurrence of the given secrets.
// Empty secrets are ignored.
func RedactSecrets(s string, secrets ...string) string {
	result := s
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		result = strings.ReplaceAll(result, secret, RedactedValue)
	}
	return Redact(result)
}
