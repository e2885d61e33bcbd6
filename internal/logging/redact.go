package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// Query parameters that carry credentials in connection URIs.
var sensitiveParams = []string{
	"token",
	"access_token",
	"auth",
	"authorization",
	"api_key",
	"apikey",
	"credential",
}

// Patterns for secrets that should never reach the log stream.
var secretPatterns = []*regexp.Regexp{
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),

	// Generic long values assigned to credential-looking keys
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactURL masks credential query parameters in a connection URI so the
// escalation socket endpoint can be logged safely. Unparseable input falls
// back to pattern redaction of the whole string.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Redact(raw)
	}

	query := parsed.Query()
	changed := false
	for key := range query {
		if IsSensitiveParam(key) {
			query.Set(key, RedactedValue)
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = query.Encode()
	}
	if parsed.User != nil {
		parsed.User = url.User(RedactedValue)
	}
	return parsed.String()
}

// IsSensitiveParam checks if a query parameter name carries a credential.
func IsSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, param := range sensitiveParams {
		if strings.Contains(lower, param) {
			return true
		}
	}
	return false
}
