// Package retry decides whether and when a failed chunk write is attempted
// again.
package retry

import (
	"time"

	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

// RetryPolicy defines the retry logic for chunk writes: which errors are
// retryable, how many attempts are allowed and how long to back off.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the waiting time before the given attempt.
	// attempt starts from 1.
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the maximum number of write attempts per chunk.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory creates RetryPolicy instances from configuration.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create builds a policy with exponential backoff. Intervals are in
// milliseconds; factor scales the interval per attempt up to maxInterval.
func (f *DefaultRetryPolicyFactory) Create(maxAttempts int, initialInterval int, maxInterval int, factor float64) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if factor < 1 {
		factor = 1
	}
	return &defaultRetryPolicy{
		maxAttempts:     maxAttempts,
		initialInterval: time.Duration(initialInterval) * time.Millisecond,
		maxInterval:     time.Duration(maxInterval) * time.Millisecond,
		factor:          factor,
	}
}

type defaultRetryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	factor          float64
}

func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether the error carries the retryable flag. Errors
// not classified as retryable fail the step on first occurrence.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return exception.IsRetryable(err)
}

// GetBackoffInterval grows exponentially from the initial interval, capped
// at the maximum interval.
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	interval := p.initialInterval
	for i := 1; i < attempt; i++ {
		interval = time.Duration(float64(interval) * p.factor)
		if p.maxInterval > 0 && interval >= p.maxInterval {
			return p.maxInterval
		}
	}
	if p.maxInterval > 0 && interval > p.maxInterval {
		return p.maxInterval
	}
	return interval
}

var _ RetryPolicy = (*defaultRetryPolicy)(nil)
