// Package launcher starts, restarts and stops job executions against the
// execution repository.
package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

const moduleName = "launcher"

// ErrJobAlreadyRunning is returned when a launch is requested for a job
// instance that still has an unfinished execution.
var ErrJobAlreadyRunning = errors.New("job instance already has a running execution")

// JobLauncher creates job executions and runs jobs synchronously.
type JobLauncher struct {
	repo     repository.JobRepository
	registry *ExecutionRegistry
}

// NewJobLauncher creates a JobLauncher. The registry may be shared with a
// JobOperator so running executions can be stopped.
func NewJobLauncher(repo repository.JobRepository, registry *ExecutionRegistry) *JobLauncher {
	if registry == nil {
		registry = NewExecutionRegistry()
	}
	return &JobLauncher{repo: repo, registry: registry}
}

// Launch runs the given job with the given parameters and blocks until it
// reaches a terminal state. Launching parameters whose instance has already
// completed returns repository.ErrDuplicateExecution. A FAILED or STOPPED
// instance is restarted: the previous execution is abandoned and a new one
// resumes from the persisted checkpoints.
func (l *JobLauncher) Launch(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error) {
	instance, prev, err := l.prepareInstance(ctx, job.JobName(), params)
	if err != nil {
		return nil, err
	}

	execution := model.NewJobExecution(instance)
	if prev != nil {
		l.attachRestartState(execution, prev)
		logger.Infof("restarting job %s: execution %s resumes from execution %s",
			job.JobName(), execution.ID, prev.ID)
	}

	if err := l.repo.SaveJobExecution(ctx, execution); err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to persist new job execution", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.registry.Register(execution.ID, cancel)
	defer l.registry.Unregister(execution.ID)
	defer cancel()

	runErr := job.Run(runCtx, execution)
	return execution, runErr
}

// prepareInstance resolves or creates the job instance for the parameters
// and returns the previous execution to resume from, if any.
func (l *JobLauncher) prepareInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution, error) {
	instance, err := l.repo.FindJobInstanceByNameAndParameters(ctx, jobName, params)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		instance = model.NewJobInstance(jobName, params)
		if err := l.repo.SaveJobInstance(ctx, instance); err != nil {
			return nil, nil, exception.NewFatalError(moduleName, "failed to persist job instance", err)
		}
		return instance, nil, nil
	}
	if err != nil {
		return nil, nil, exception.NewFatalError(moduleName, "failed to look up job instance", err)
	}

	prev, err := l.repo.FindLatestJobExecution(ctx, instance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		return instance, nil, nil
	}
	if err != nil {
		return nil, nil, exception.NewFatalError(moduleName, "failed to look up latest job execution", err)
	}

	switch {
	case prev.Status == model.StatusCompleted:
		return nil, nil, fmt.Errorf("%w: job %s, instance %s", repository.ErrDuplicateExecution, jobName, instance.ID)
	case !prev.Status.IsFinished():
		return nil, nil, fmt.Errorf("%w: job %s, execution %s in state %s", ErrJobAlreadyRunning, jobName, prev.ID, prev.Status)
	case prev.Status == model.StatusAbandoned:
		// An abandoned execution no longer seeds a restart; start fresh.
		return instance, nil, nil
	}

	if err := prev.MarkAsAbandoned(); err != nil {
		return nil, nil, exception.NewFatalError(moduleName, "failed to abandon previous job execution", err)
	}
	if err := l.repo.UpdateJobExecution(ctx, prev); err != nil {
		return nil, nil, exception.NewFatalError(moduleName, "failed to persist abandoned job execution", err)
	}
	return instance, prev, nil
}

// attachRestartState carries the previous step executions into the new
// execution. Completed steps stay completed so the job skips them; the rest
// resume from their saved counters and checkpoints.
func (l *JobLauncher) attachRestartState(execution *model.JobExecution, prev *model.JobExecution) {
	execution.ExecutionContext = prev.ExecutionContext.Copy()
	for _, se := range prev.StepExecutions {
		restored := se.CopyForRestart(execution.ID)
		if se.Status == model.StatusCompleted {
			restored.Status = model.StatusCompleted
			restored.ExitStatus = model.ExitStatusCompleted
		}
		execution.AddStepExecution(restored)
	}
}
