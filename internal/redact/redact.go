// Package redact removes sensitive information from strings before they are
// logged or returned in error responses: credentials embedded in store and
// search index URLs, lease tokens, API keys, config file paths and SQL
// values.
package redact

import (
	"log/slog"
	"regexp"
)

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedLeasePlaceholder      = "[REDACTED_LEASE]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
	RedactedSQLValuesPlaceholder  = "VALUES [SQL_VALUES_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules are applied in order; stack traces go first so that the paths in
// their frames do not break the match.
var rules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), RedactedStackPlaceholder},
	// scheme://user:secret@ in postgres DSNs and search index URLs
	{regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)=[^&\s]+`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\blease[_ ]token[=: ]+"?[0-9a-f-]{8,}"?`), RedactedLeasePlaceholder},
	{regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret)[=:]\s*[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?:/[\w.-]+){2,}\.(?:go|conf|yaml|yml|json|sql|log|env)\b`), RedactedPathPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	{regexp.MustCompile(`(?i)\bVALUES\s*\(.*?\)`), RedactedSQLValuesPlaceholder},
}

// String redacts sensitive information from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Attr returns err as a redacted "error" log attribute.
func Attr(err error) slog.Attr {
	return slog.String("error", Error(err))
}
