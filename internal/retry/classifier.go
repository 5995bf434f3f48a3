// Package retry classifies transport errors into backoff profiles and drives
// repeated attempts of an idempotent operation with abortable delays.
package retry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pyre-llm/pyre/internal/transport"
)

// Profile is a named retry configuration chosen by error category.
type Profile struct {
	Name        string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // symmetric fraction, 0..1
	MaxAttempts int     // total attempts including the first
}

// NetworkProfile covers connection-category errors that never reached the
// server (DNS, TCP, timeout).
var NetworkProfile = Profile{
	Name:        "network",
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8000 * time.Millisecond,
	Jitter:      0.25,
	MaxAttempts: 3,
}

// ServerProfile covers 502/503 responses and temporary rate limits.
var ServerProfile = Profile{
	Name:        "server",
	BaseDelay:   1000 * time.Millisecond,
	MaxDelay:    10000 * time.Millisecond,
	Jitter:      0.5,
	MaxAttempts: 4,
}

// permanentRateLimitMarkers denylists 429 message patterns that signal a
// permanent condition rather than a momentary rate limit. Matching is
// case-insensitive substring.
var permanentRateLimitMarkers = []string{
	// quota or billing exhausted
	"quota",
	"billing",
	"exceeded your current",
	// request too large for the model
	"request too large",
	"prompt is too long",
	// zero rate limit / no access to the model
	"rate limit of 0",
	"does not have access",
	// insufficient prepaid balance
	"credit balance",
	"insufficient balance",
}

// Classify maps an error to a retry profile, or nil when the error must not
// be retried. The function is pure and stateless.
func Classify(err error) *Profile {
	if err == nil {
		return nil
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 502, 503:
			return &ServerProfile
		case 429:
			if isPermanentRateLimit(se.Message) {
				return nil
			}
			return &ServerProfile
		default:
			return nil
		}
	}

	if transport.IsConnectionError(err) {
		return &NetworkProfile
	}

	return nil
}

func isPermanentRateLimit(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range permanentRateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// CauseLabel names the originating cause of a failed attempt for retry
// notifications: the HTTP status when one exists, otherwise the connection
// category.
func CauseLabel(err error) string {
	var se *transport.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("HTTP %d", se.StatusCode)
	}
	if transport.IsConnectionError(err) {
		return "connection"
	}
	return "error"
}
