// Package skip decides whether a record-level failure may be skipped and
// enforces the skip limit.
package skip

import (
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

// SkipPolicy determines whether a record failure is skippable and tracks
// the running skip count against the configured limit.
type SkipPolicy interface {
	// ShouldSkip determines if a given error is skippable under the policy.
	ShouldSkip(err error) bool
	// CanSkip reports whether another skip stays within the limit.
	CanSkip() bool
	// IncrementSkipCount increments the count of skipped records by 1.
	IncrementSkipCount()
	// Reset seeds the running skip count from the execution about to run,
	// discarding state left by a previous execution of the same step.
	Reset(skipped int)
	// GetSkipCount returns the number of records skipped so far.
	GetSkipCount() int
	// GetSkipLimit returns the configured skip limit.
	GetSkipLimit() int
}

// DefaultSkipPolicyFactory creates SkipPolicy instances from configuration.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create builds a policy with the given limit. A limit of 0 disables
// skipping: the first skippable failure fails the step.
func (f *DefaultSkipPolicyFactory) Create(skipLimit int) SkipPolicy {
	return &defaultSkipPolicy{
		skipLimit: skipLimit,
	}
}

type defaultSkipPolicy struct {
	skipLimit        int
	currentSkipCount int
}

// ShouldSkip reports whether the error carries the skippable flag and the
// limit has not been reached. Exactly skipLimit skips succeed; one more
// fails the step.
func (p *defaultSkipPolicy) ShouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if !p.CanSkip() {
		return false
	}
	return exception.IsSkippable(err)
}

func (p *defaultSkipPolicy) CanSkip() bool {
	if p.skipLimit <= 0 {
		return false
	}
	return p.currentSkipCount < p.skipLimit
}

func (p *defaultSkipPolicy) IncrementSkipCount() {
	p.currentSkipCount++
}

func (p *defaultSkipPolicy) Reset(skipped int) {
	if skipped < 0 {
		skipped = 0
	}
	p.currentSkipCount = skipped
}

func (p *defaultSkipPolicy) GetSkipCount() int {
	return p.currentSkipCount
}

func (p *defaultSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

var _ SkipPolicy = (*defaultSkipPolicy)(nil)
