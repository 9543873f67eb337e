package errors

import (
	"context"
	"time"
)

// RetryBudget bounds how many attempts a single turn may spend on the
// provider before the orchestrator gives up.
type RetryBudget struct {
	// MaxAttempts is the total number of invocations allowed, including
	// the first (default 4: one initial call plus three retries).
	MaxAttempts int `yaml:"max_attempts"`

	// TimeoutRetries is the number of retries allowed for ClassTimeout
	// specifically (default 1: timeouts are retried once, then fail).
	TimeoutRetries int `yaml:"timeout_retries"`

	// Backoff controls the delay between attempts.
	Backoff BackoffPolicy `yaml:"backoff"`
}

// DefaultRetryBudget returns the budget applied to provider invocations.
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxAttempts:    4,
		TimeoutRetries: 1,
		Backoff:        DefaultBackoffPolicy(),
	}
}

// RetryExecutor runs an operation under a RetryBudget, retrying only the
// classes the taxonomy marks retryable and honoring provider retry-after
// hints for rate limits.
type RetryExecutor struct {
	budget RetryBudget
}

// NewRetryExecutor creates an executor with the given budget. A zero
// MaxAttempts falls back to the default budget.
func NewRetryExecutor(budget RetryBudget) *RetryExecutor {
	if budget.MaxAttempts <= 0 {
		budget = DefaultRetryBudget()
	}
	return &RetryExecutor{budget: budget}
}

// Execute runs fn until it succeeds, exhausts the budget, or fails with a
// non-retryable class. The last error is returned unwrapped so the caller
// can still classify it.
func (e *RetryExecutor) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	timeoutRetries := 0

	for attempt := 0; attempt < e.budget.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if ClassOf(lastErr) == ClassTimeout {
			if timeoutRetries >= e.budget.TimeoutRetries {
				return lastErr
			}
			timeoutRetries++
		}

		if attempt == e.budget.MaxAttempts-1 {
			break
		}

		if err := e.wait(ctx, lastErr, attempt); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// wait sleeps for the computed backoff or returns early on context
// cancellation. A rate-limit retry-after hint overrides the backoff curve.
func (e *RetryExecutor) wait(ctx context.Context, lastErr error, attempt int) error {
	delay := e.budget.Backoff.Delay(attempt)
	if hint := RetryAfterOf(lastErr); hint > 0 {
		delay = hint
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
