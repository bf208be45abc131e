package retry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/shorebreak/pkg/batch/engine/retry"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

func TestShouldRetryClassifiesErrors(t *testing.T) {
	policy := retry.NewDefaultRetryPolicyFactory().Create(3, 100, 1000, 2.0)

	retryable := exception.NewRetryableError("test", "timeout", errors.New("i/o timeout"))
	fatal := exception.NewFatalError("test", "bad schema", errors.New("no such table"))
	skippable := exception.NewSkippableError("test", "bad record", nil)

	assert.True(t, policy.ShouldRetry(retryable))
	assert.False(t, policy.ShouldRetry(fatal))
	assert.False(t, policy.ShouldRetry(skippable))
	assert.False(t, policy.ShouldRetry(nil))
	assert.False(t, policy.ShouldRetry(errors.New("plain error")))
}

func TestShouldRetrySeesWrappedErrors(t *testing.T) {
	policy := retry.NewDefaultRetryPolicyFactory().Create(3, 100, 1000, 2.0)

	inner := exception.NewRetryableError("test", "connection reset", nil)
	wrapped := errors.Join(errors.New("chunk write failed"), inner)
	assert.True(t, policy.ShouldRetry(wrapped))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	policy := retry.NewDefaultRetryPolicyFactory().Create(5, 100, 450, 2.0)

	assert.Equal(t, 100*time.Millisecond, policy.GetBackoffInterval(1))
	assert.Equal(t, 200*time.Millisecond, policy.GetBackoffInterval(2))
	assert.Equal(t, 400*time.Millisecond, policy.GetBackoffInterval(3))
	assert.Equal(t, 450*time.Millisecond, policy.GetBackoffInterval(4), "interval is capped")
	assert.Equal(t, 450*time.Millisecond, policy.GetBackoffInterval(10))
}

func TestBackoffClampsOutOfRangeArguments(t *testing.T) {
	policy := retry.NewDefaultRetryPolicyFactory().Create(0, 100, 1000, 0.5)

	assert.Equal(t, 1, policy.GetMaxAttempts(), "at least one attempt is always made")
	assert.Equal(t, 100*time.Millisecond, policy.GetBackoffInterval(0))
	assert.Equal(t, 100*time.Millisecond, policy.GetBackoffInterval(3), "a factor below 1 does not shrink the interval")
}
