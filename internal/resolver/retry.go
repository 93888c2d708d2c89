package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/actis-dev/actis/pkg/schema"
)

// RetryPolicy bounds and shapes the retry loop around the remote resolver.
type RetryPolicy struct {
	Max      int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when the caller does not supply
// one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Max:      3,
		Delay:    200 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// IsRetryableError classifies whether a resolution error should be retried.
// Retryable by default: network errors, timeouts, context.DeadlineExceeded.
// Non-retryable: context cancellation and typed errors with non-retryable codes.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Context cancelled is NOT retryable — the caller is shutting down.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// ActisError checks its own code.
	var aerr *schema.ActisError
	if errors.As(err, &aerr) {
		return aerr.IsRetryable()
	}

	// Network errors are retryable.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// String heuristics for common retryable patterns.
	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"temporary failure",
		"i/o timeout",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"internal server error",
		"too many requests",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	// Default: retryable (conservative — the policy limits attempts).
	return true
}

// ComputeBackoff calculates the exponential delay before the next retry
// attempt, capped at MaxDelay.
func ComputeBackoff(policy RetryPolicy, attempt int) time.Duration {
	if policy.Delay <= 0 {
		return 0
	}

	multiplier := time.Duration(1)
	for i := 0; i < attempt; i++ {
		multiplier *= 2
	}
	delay := policy.Delay * multiplier

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// WaitForBackoff sleeps for the computed backoff duration or returns early
// if the context is cancelled.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
