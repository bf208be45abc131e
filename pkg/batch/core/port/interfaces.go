// Package port declares the contracts between the batch engine and the
// pluggable components it drives: readers, processors, writers, steps, jobs
// and the listeners observing their lifecycle.
package port

import (
	"context"
	"errors"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

// OffsetContextKey is the execution context key under which readers expose
// the position of the next unread record. The engine persists it with every
// chunk commit so a restart resumes exactly past the committed records.
const OffsetContextKey = "source.offset"

// ErrNoMoreItems is returned by ItemReader.Read when the source is exhausted.
var ErrNoMoreItems = errors.New("no more items")

// ErrFilterItem is returned by ItemProcessor.Process to drop the current
// item from the chunk without treating it as a failure.
var ErrFilterItem = errors.New("item filtered")

// RecordDetail is implemented by errors that carry the source position and
// raw content of the record that caused them. The chunk loop uses it to
// build skip audit rows.
type RecordDetail interface {
	RecordOffset() int64
	RecordContent() string
}

// ItemReader pulls items of type T from a record source one at a time.
// Open restores position from the execution context saved at the last
// commit; GetExecutionContext exposes the position to persist next.
type ItemReader[T any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	Read(ctx context.Context) (T, error)
	Close(ctx context.Context) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemProcessor transforms an item of type I into type O. Returning
// ErrFilterItem drops the item; any other error is judged by the skip policy.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter writes a full chunk of items in one call. A Write failure fails
// the whole chunk; the engine retries the identical chunk per its retry policy.
type ItemWriter[T any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	Write(ctx context.Context, items []T) error
	Close(ctx context.Context) error
}

// Step is a single unit of work inside a job.
type Step interface {
	StepName() string
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
}

// Job is an ordered composition of steps.
type Job interface {
	JobName() string
	Run(ctx context.Context, jobExecution *model.JobExecution) error
}

// JobExecutionListener observes job start and end.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// StepExecutionListener observes step start and end.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener observes chunk commit cycles.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunkCommit(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunkRollback(ctx context.Context, stepExecution *model.StepExecution)
}

// SkipListener observes skipped records per phase.
type SkipListener interface {
	OnSkipRead(ctx context.Context, err error)
	OnSkipProcess(ctx context.Context, item interface{}, err error)
	OnSkipWrite(ctx context.Context, item interface{}, err error)
}

// RetryListener observes retry attempts on chunk writes.
type RetryListener interface {
	OnRetryWrite(ctx context.Context, attempt int, err error)
}
