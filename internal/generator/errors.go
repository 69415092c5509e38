package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/askcsv/internal/ai"
)

// ErrEmptyCompletion is returned by a backend that answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ErrNoBackends is returned by a chain with nothing configured.
var ErrNoBackends = errors.New("no generator backends configured")

// ExhaustedError reports that every backend failed. Cause is the last
// backend's error.
type ExhaustedError struct {
	Attempts []string
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("query generation failed after %d backend(s) [%s]: %v", len(e.Attempts), strings.Join(e.Attempts, ", "), e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// RateLimitedError reports that generation failed because the last backend
// was throttled or out of quota.
type RateLimitedError struct {
	Cause error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("query generation rate limited: %v", e.Cause)
}

func (e *RateLimitedError) Unwrap() error { return e.Cause }

var rateLimitSignatures = []string{
	"429",
	"quota",
	"rate limit",
	"rate-limit",
	"resource exhausted",
	"resource_exhausted",
	"too many requests",
}

// IsRateLimited reports whether err carries a rate-limit or quota signature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *ai.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var qe *ai.QuotaExceededError
	if errors.As(err, &qe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
