package metrics

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

// Tracer is an abstract interface for distributed tracing of job and step
// execution flows.
type Tracer interface {
	// StartJobSpan starts a span for a JobExecution. The returned function
	// ends the span and is intended for a defer statement.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartStepSpan starts a span for a StepExecution under the job span.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())

	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event with attributes on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
