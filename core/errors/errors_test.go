package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassedError_SentinelMatching(t *testing.T) {
	err := fmt.Errorf("invoking provider: %w", New(ClassRateLimited, "429 from backend", nil))

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, ClassRateLimited, ClassOf(err))
}

func TestClassOf_UnclassifiedDefaultsToInvalidRequest(t *testing.T) {
	assert.Equal(t, ClassInvalidRequest, ClassOf(errors.New("plain error")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestIsRetryable_PerClass(t *testing.T) {
	cases := []struct {
		class     Class
		retryable bool
	}{
		{ClassRateLimited, true},
		{ClassProviderUnavailable, true},
		{ClassTimeout, true},
		{ClassInvalidRequest, false},
		{ClassContentPolicy, false},
		{ClassSessionNotFound, false},
		{ClassSessionBusy, false},
		{ClassStorage, false},
	}

	for _, tc := range cases {
		t.Run(tc.class.String(), func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(New(tc.class, "x", nil)))
		})
	}
}

func TestAdviceFor_DistinguishesFailureModes(t *testing.T) {
	assert.Equal(t, AdviceRetry, AdviceFor(ErrProviderUnavailable))
	assert.Equal(t, AdviceRephrase, AdviceFor(ErrInvalidRequest))
	assert.Equal(t, AdviceUnprocessable, AdviceFor(ErrContentPolicy))
}

func TestRetryAfterOf(t *testing.T) {
	err := New(ClassRateLimited, "slow down", nil).WithRetryAfter(2 * time.Second)
	assert.Equal(t, 2*time.Second, RetryAfterOf(err))
	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("plain")))
}

func TestBackoffPolicy_DelayGrowsAndCaps(t *testing.T) {
	policy := BackoffPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, policy.Delay(0))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 1*time.Second, policy.Delay(10))
}

func TestBackoffPolicy_JitterStaysInRange(t *testing.T) {
	policy := BackoffPolicy{
		InitialDelay:  1 * time.Second,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}

	for i := 0; i < 50; i++ {
		delay := policy.Delay(0)
		assert.GreaterOrEqual(t, delay, 900*time.Millisecond)
		assert.LessOrEqual(t, delay, 1100*time.Millisecond)
	}
}

func TestRetryExecutor_SucceedsWithinBudget(t *testing.T) {
	exec := NewRetryExecutor(RetryBudget{
		MaxAttempts:    4,
		TimeoutRetries: 1,
		Backoff:        BackoffPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return New(ClassRateLimited, "throttled", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExecutor_NonRetryableFailsImmediately(t *testing.T) {
	exec := NewRetryExecutor(DefaultRetryBudget())

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return New(ClassContentPolicy, "refused", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrContentPolicy))
}

func TestRetryExecutor_TimeoutRetriedOnce(t *testing.T) {
	exec := NewRetryExecutor(RetryBudget{
		MaxAttempts:    5,
		TimeoutRetries: 1,
		Backoff:        BackoffPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return New(ClassTimeout, "deadline exceeded", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestRetryExecutor_BudgetExhausted(t *testing.T) {
	exec := NewRetryExecutor(RetryBudget{
		MaxAttempts:    3,
		TimeoutRetries: 1,
		Backoff:        BackoffPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return New(ClassProviderUnavailable, "502", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExecutor_ContextCancelledDuringBackoff(t *testing.T) {
	exec := NewRetryExecutor(RetryBudget{
		MaxAttempts:    4,
		TimeoutRetries: 1,
		Backoff:        BackoffPolicy{InitialDelay: time.Hour, MaxDelay: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := exec.Execute(ctx, func() error {
		calls++
		return New(ClassProviderUnavailable, "502", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestRetryExecutor_RetryAfterHintOverridesBackoff(t *testing.T) {
	exec := NewRetryExecutor(RetryBudget{
		MaxAttempts:    2,
		TimeoutRetries: 1,
		Backoff:        BackoffPolicy{InitialDelay: time.Hour, MaxDelay: time.Hour},
	})

	start := time.Now()
	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return New(ClassRateLimited, "throttled", nil).WithRetryAfter(5 * time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), time.Second)
}
