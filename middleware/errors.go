package middleware

import "errors"

var (
	// ErrRateLimitExceeded indicates rate limit has been exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrPanicRecovered indicates a downstream handler panicked
	ErrPanicRecovered = errors.New("panic recovered")
)
