package notify

import (
	"context"
	"errors"
	"strings"
)

// transientPatterns are failure signatures expected to resolve on a later
// attempt: network interruptions, timeouts and provider throttling.
// Matching is case-insensitive substring matching over the error text.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"etimedout",
	"econnreset",
	"econnrefused",
	"connection reset",
	"connection refused",
	"socket hang up",
	"eai_again",
	"network",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
	"status 429",
	"status 502",
	"status 503",
	"status 504",
}

// IsTransient classifies an error as retryable. Anything that does not match
// a known transient signature is permanent, so unknown failures never enter
// an indefinite retry loop.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return IsTransientMessage(err.Error())
}

// IsTransientMessage classifies a raw failure string. Deterministic: the
// same string always yields the same verdict.
func IsTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
