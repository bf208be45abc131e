package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

// MetricRecorder is an abstract interface for recording batch execution
// metrics. It decouples the engine from concrete backends such as Prometheus.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)

	// RecordJobEnd records the end of a JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)

	// RecordStepEnd records the end of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordItemRead records the successful reading of an item.
	RecordItemRead(ctx context.Context, stepName string)

	// RecordItemProcess records the successful processing of an item.
	RecordItemProcess(ctx context.Context, stepName string)

	// RecordItemWrite records the successful writing of items.
	RecordItemWrite(ctx context.Context, stepName string, count int)

	// RecordItemSkip records a skipped record and the phase it was skipped in.
	RecordItemSkip(ctx context.Context, stepName string, phase string, reason string)

	// RecordWriteRetry records a retried chunk write attempt.
	RecordWriteRetry(ctx context.Context, stepName string, reason string)

	// RecordChunkCommit records a committed chunk.
	RecordChunkCommit(ctx context.Context, stepName string, count int)

	// RecordChunkRollback records a rolled back chunk attempt.
	RecordChunkRollback(ctx context.Context, stepName string)

	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
