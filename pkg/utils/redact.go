package utils

import "strings"

const redacted = "[REDACTED]"

// Redact hides a secret for logging, keeping only whether it was set.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}

// SplitCredential splits "user:secret[:extra]" into at most three parts.
func SplitCredential(credential string) []string {
	return strings.SplitN(credential, ":", 3)
}
