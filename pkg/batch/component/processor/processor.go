// Package processor provides item processors applied between reading and
// writing.
package processor

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

const moduleName = "processor"

// PassthroughProcessor hands items through unchanged.
type PassthroughProcessor[T any] struct{}

// NewPassthroughProcessor creates a PassthroughProcessor.
func NewPassthroughProcessor[T any]() *PassthroughProcessor[T] {
	return &PassthroughProcessor[T]{}
}

// Process returns the item unchanged.
func (p *PassthroughProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// FuncProcessor adapts a plain function to port.ItemProcessor.
type FuncProcessor[I, O any] func(ctx context.Context, item I) (O, error)

// Process invokes the function.
func (f FuncProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}

// ValidatingProcessor filters or rejects items by predicate before passing
// them to a delegate.
type ValidatingProcessor[I, O any] struct {
	delegate port.ItemProcessor[I, O]
	// valid judges the item. The second return selects the outcome of an
	// invalid item: true filters it silently, false makes it a skippable
	// failure counted against the skip limit.
	valid func(item I) (ok bool, filter bool)
}

// NewValidatingProcessor wraps delegate with the given validation.
func NewValidatingProcessor[I, O any](delegate port.ItemProcessor[I, O], valid func(item I) (ok bool, filter bool)) *ValidatingProcessor[I, O] {
	return &ValidatingProcessor[I, O]{delegate: delegate, valid: valid}
}

// Process validates the item, then delegates.
func (p *ValidatingProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	if ok, filter := p.valid(item); !ok {
		var zero O
		if filter {
			return zero, port.ErrFilterItem
		}
		return zero, exception.NewSkippableError(moduleName, "item failed validation", nil)
	}
	return p.delegate.Process(ctx, item)
}

var _ port.ItemProcessor[any, any] = (*PassthroughProcessor[any])(nil)
var _ port.ItemProcessor[any, any] = (*ValidatingProcessor[any, any])(nil)
