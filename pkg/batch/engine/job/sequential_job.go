// Package job composes steps into jobs and runs them against the execution
// repository.
package job

import (
	"context"
	"errors"

	"github.com/tigerroll/shorebreak/pkg/batch/core/metrics"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

const moduleName = "sequential_job"

// SequentialJob runs its steps strictly in order. A step failure fails the
// job; steps completed by a previous execution are not re-run on restart.
type SequentialJob struct {
	name      string
	steps     []port.Step
	repo      repository.JobRepository
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	listeners []port.JobExecutionListener
}

// JobOption configures optional collaborators of a SequentialJob.
type JobOption func(*SequentialJob)

// WithJobListeners registers job lifecycle listeners.
func WithJobListeners(l ...port.JobExecutionListener) JobOption {
	return func(j *SequentialJob) { j.listeners = append(j.listeners, l...) }
}

// WithJobMetrics wires a metric recorder and tracer.
func WithJobMetrics(rec metrics.MetricRecorder, tr metrics.Tracer) JobOption {
	return func(j *SequentialJob) {
		if rec != nil {
			j.recorder = rec
		}
		if tr != nil {
			j.tracer = tr
		}
	}
}

// NewSequentialJob creates a job running the given steps in order.
func NewSequentialJob(name string, repo repository.JobRepository, steps []port.Step, opts ...JobOption) *SequentialJob {
	j := &SequentialJob{
		name:     name,
		steps:    steps,
		repo:     repo,
		recorder: metrics.NewNoOpMetricRecorder(),
		tracer:   metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JobName returns the job name.
func (j *SequentialJob) JobName() string {
	return j.name
}

// Run executes all steps against the given job execution. The execution is
// expected to be saved and in STARTING state; Run transitions it through
// STARTED to a terminal state and persists every transition.
func (j *SequentialJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	if err := jobExecution.MarkAsStarted(); err != nil {
		return exception.NewFatalError(moduleName, "failed to mark job execution as started", err)
	}
	if err := j.repo.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewFatalError(moduleName, "failed to persist started job execution", err)
	}

	ctx, endSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer endSpan()
	j.recorder.RecordJobStart(ctx, jobExecution)
	defer j.recorder.RecordJobEnd(ctx, jobExecution)

	for _, l := range j.listeners {
		l.BeforeJob(ctx, jobExecution)
	}
	defer func() {
		for _, l := range j.listeners {
			l.AfterJob(ctx, jobExecution)
		}
	}()

	runErr := j.runSteps(ctx, jobExecution)

	switch {
	case runErr == nil:
		if stopped := j.anyStepStopped(jobExecution); stopped {
			if err := jobExecution.MarkAsStopped(); err != nil {
				jobExecution.AddFailureException(err)
			}
			logger.Infof("job %s stopped (execution %s)", j.name, jobExecution.ID)
		} else {
			if err := jobExecution.MarkAsCompleted(); err != nil {
				jobExecution.AddFailureException(err)
			}
			logger.Infof("job %s completed (execution %s)", j.name, jobExecution.ID)
		}
	default:
		j.tracer.RecordError(ctx, moduleName, runErr)
		if err := jobExecution.MarkAsFailed(runErr); err != nil {
			jobExecution.AddFailureException(err)
		}
		logger.Errorf("job %s failed (execution %s): %v", j.name, jobExecution.ID, runErr)
	}

	if err := j.persistFinalState(ctx, jobExecution); err != nil {
		logger.Errorf("failed to persist final state of job execution %s: %v", jobExecution.ID, err)
		if runErr == nil {
			runErr = exception.NewFatalError(moduleName, "failed to persist final job execution state", err)
		}
	}
	return runErr
}

// persistFinalState writes the terminal transition. A concurrent stop
// request persists STOPPING through its own copy of the execution and bumps
// the stored version, so the first update from this stale copy loses the
// optimistic lock; the terminal state is then re-applied at the stored
// version.
func (j *SequentialJob) persistFinalState(ctx context.Context, jobExecution *model.JobExecution) error {
	err := j.repo.UpdateJobExecution(ctx, jobExecution)
	if err == nil || !errors.Is(err, repository.ErrOptimisticLock) {
		return err
	}
	stored, loadErr := j.repo.FindJobExecutionByID(ctx, jobExecution.ID)
	if loadErr != nil {
		return err
	}
	jobExecution.Version = stored.Version
	return j.repo.UpdateJobExecution(ctx, jobExecution)
}

func (j *SequentialJob) runSteps(ctx context.Context, jobExecution *model.JobExecution) error {
	for _, step := range j.steps {
		stepExecution := j.resumeOrCreateStepExecution(jobExecution, step.StepName())
		if stepExecution == nil {
			logger.Infof("job %s skipping already completed step %s", j.name, step.StepName())
			continue
		}

		if err := j.repo.SaveStepExecution(ctx, stepExecution); err != nil {
			return exception.NewFatalError(moduleName, "failed to persist step execution", err)
		}

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			return err
		}
		if stepExecution.Status == model.StatusStopped {
			return nil
		}
	}
	return nil
}

// resumeOrCreateStepExecution returns the step execution to run for the
// named step. A restart copy attached by the launcher is reused so the step
// resumes from its checkpoint; a step already completed returns nil.
func (j *SequentialJob) resumeOrCreateStepExecution(jobExecution *model.JobExecution, stepName string) *model.StepExecution {
	for _, se := range jobExecution.StepExecutions {
		if se.StepName != stepName {
			continue
		}
		if se.Status == model.StatusCompleted {
			return nil
		}
		return se
	}
	se := model.NewStepExecution(jobExecution.ID, stepName)
	jobExecution.AddStepExecution(se)
	return se
}

func (j *SequentialJob) anyStepStopped(jobExecution *model.JobExecution) bool {
	for _, se := range jobExecution.StepExecutions {
		if se.Status == model.StatusStopped {
			return true
		}
	}
	return false
}

var _ port.Job = (*SequentialJob)(nil)
