package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match credentials that must never reach log output
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)([?&](?:key|appid|api_key|token)=)([^&\s"]+)`),
	regexp.MustCompile(`(?i)((?:api|access|auth|secret|passw(?:or)?d)[0-9a-z\-_.]*[\s:=]+)([^;,\s]{5,})`),
	// Google API keys
	regexp.MustCompile(`()(AIza[0-9A-Za-z\-_]{35})`),
}

// RedactSensitiveData replaces credentials embedded in s with "[REDACTED]".
func RedactSensitiveData(s string) string {
	if s == "" {
		return s
	}
	for _, pattern := range sensitiveDataPatterns {
		s = pattern.ReplaceAllString(s, "${1}[REDACTED]")
	}
	return s
}

// MaskSecret keeps only the last four characters of a secret.
func MaskSecret(secret string) string {
	const visible = 4
	if secret == "" {
		return ""
	}
	if len(secret) <= visible {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-visible) + secret[len(secret)-visible:]
}
