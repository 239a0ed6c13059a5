// Package retry decides whether and when a failed send attempt is retried
// automatically. This policy governs transport-level retries inside one
// orchestrated attempt only; the user-triggered resend of a failed
// participant is a separate operation on the delivery service and is not
// bounded here.
package retry

import (
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
)

// MaxAttempts is the ceiling on automatic retries per orchestrated send.
const MaxAttempts = 3

// backoffTable holds the fixed delays indexed by retry count, capped at the
// last entry.
var backoffTable = [...]time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
}

// rateLimitDelay is used for RATE_LIMIT_ERROR instead of the general table.
// It must exceed the table's maximum: retrying into a closed window just
// burns the attempt budget.
const rateLimitDelay = 90 * time.Second

// ShouldRetry reports whether another automatic attempt is allowed.
// Validation and configuration failures are refused even if a caller
// hand-built one with Retryable set.
func ShouldRetry(err *emailerror.Error, retryCount int) bool {
	if err == nil {
		return false
	}
	if retryCount >= MaxAttempts {
		return false
	}
	if !err.Retryable {
		return false
	}
	if err.Kind == emailerror.KindValidation || err.Kind == emailerror.KindConfiguration {
		return false
	}
	return true
}

// Delay returns the backoff before the given retry (0-based).
func Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(backoffTable) {
		retryCount = len(backoffTable) - 1
	}
	return backoffTable[retryCount]
}

// DelayFor returns the backoff for a specific error kind: rate-limited
// sends wait out the window, everything else follows the table.
func DelayFor(err *emailerror.Error, retryCount int) time.Duration {
	if err != nil && err.Kind == emailerror.KindRateLimit {
		return rateLimitDelay
	}
	return Delay(retryCount)
}

// NextAttemptAt returns the wall-clock time of the next allowed attempt.
func NextAttemptAt(retryCount int) time.Time {
	return time.Now().Add(Delay(retryCount))
}
