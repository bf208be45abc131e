package launcher

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
)

// JobExplorer offers read-only access to execution metadata for tooling
// and diagnostics.
type JobExplorer struct {
	repo repository.JobRepository
}

// NewJobExplorer creates a JobExplorer.
func NewJobExplorer(repo repository.JobRepository) *JobExplorer {
	return &JobExplorer{repo: repo}
}

// JobNames lists the names of all known jobs.
func (e *JobExplorer) JobNames(ctx context.Context) ([]string, error) {
	return e.repo.FindJobNames(ctx)
}

// JobExecution loads a job execution with its step executions.
func (e *JobExplorer) JobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	return e.repo.FindJobExecutionByID(ctx, executionID)
}

// JobExecutions lists the executions of a job instance, newest first.
func (e *JobExplorer) JobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	return e.repo.FindJobExecutionsByInstance(ctx, instance)
}

// SkippedRecords lists the skip audit rows of a step execution.
func (e *JobExplorer) SkippedRecords(ctx context.Context, stepExecutionID string) ([]*model.SkippedRecord, error) {
	return e.repo.FindSkippedRecords(ctx, stepExecutionID)
}
