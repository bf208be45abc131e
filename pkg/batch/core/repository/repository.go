// Package repository defines the persistence contract for batch execution
// metadata. Implementations live under pkg/batch/repository.
package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

var (
	// ErrJobInstanceNotFound is returned when no job instance matches.
	ErrJobInstanceNotFound = errors.New("job instance not found")
	// ErrJobExecutionNotFound is returned when no job execution matches.
	ErrJobExecutionNotFound = errors.New("job execution not found")
	// ErrStepExecutionNotFound is returned when no step execution matches.
	ErrStepExecutionNotFound = errors.New("step execution not found")
	// ErrCheckpointNotFound is returned when a step has no saved checkpoint.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrDuplicateExecution is returned when a new execution is requested
	// for a job instance that has already completed.
	ErrDuplicateExecution = errors.New("job instance already completed")
	// ErrOptimisticLock is returned when a versioned update affected no
	// rows because another writer got there first.
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

// JobInstanceRepository persists job instances.
type JobInstanceRepository interface {
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error
	FindJobInstanceByNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	FindJobNames(ctx context.Context) ([]string, error)
}

// JobExecutionRepository persists job executions.
type JobExecutionRepository interface {
	SaveJobExecution(ctx context.Context, execution *model.JobExecution) error
	UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error
	FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error)
	FindJobExecutionsByInstance(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error)
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
}

// StepExecutionRepository persists step executions. UpdateStepExecution is
// the write-ahead hook the chunk loop calls inside each commit cycle.
type StepExecutionRepository interface {
	SaveStepExecution(ctx context.Context, execution *model.StepExecution) error
	UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error
	FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error)
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error)
}

// CheckpointRepository persists per-step source positions.
type CheckpointRepository interface {
	SaveCheckpoint(ctx context.Context, cp *model.CheckpointData) error
	FindCheckpoint(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error)
	DeleteCheckpoint(ctx context.Context, stepExecutionID string) error
}

// SkippedRecordRepository persists skip audit rows.
type SkippedRecordRepository interface {
	SaveSkippedRecord(ctx context.Context, rec *model.SkippedRecord) error
	FindSkippedRecords(ctx context.Context, stepExecutionID string) ([]*model.SkippedRecord, error)
}

// JobRepository is the full persistence surface the engine depends on.
type JobRepository interface {
	JobInstanceRepository
	JobExecutionRepository
	StepExecutionRepository
	CheckpointRepository
	SkippedRecordRepository
	Close() error
}
