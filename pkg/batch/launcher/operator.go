package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

// ErrExecutionNotRunning is returned when a stop is requested for an
// execution this process is not currently running.
var ErrExecutionNotRunning = errors.New("execution is not running in this process")

// ExecutionRegistry tracks the cancel functions of executions running in
// this process so they can be stopped.
type ExecutionRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewExecutionRegistry creates an empty ExecutionRegistry.
func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates a cancel function with a job execution ID.
func (r *ExecutionRegistry) Register(executionID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[executionID] = cancel
}

// Unregister removes the cancel function for a job execution ID.
func (r *ExecutionRegistry) Unregister(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, executionID)
}

// Cancel invokes and removes the cancel function for a job execution ID.
func (r *ExecutionRegistry) Cancel(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[executionID]
	if ok {
		cancel()
		delete(r.cancels, executionID)
	}
	return ok
}

// JobOperator exposes operational control over running and finished
// executions: stopping a running one and restarting a failed one.
type JobOperator struct {
	repo     repository.JobRepository
	launcher *JobLauncher
	registry *ExecutionRegistry
}

// NewJobOperator creates a JobOperator sharing the launcher's registry.
func NewJobOperator(repo repository.JobRepository, l *JobLauncher) *JobOperator {
	return &JobOperator{repo: repo, launcher: l, registry: l.registry}
}

// Stop requests a graceful stop of a running execution. The request is
// honored at the next chunk boundary; already committed chunks stay
// committed and the execution finishes as STOPPED.
func (o *JobOperator) Stop(ctx context.Context, executionID string) error {
	execution, err := o.repo.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("operator", "failed to look up job execution", err, false, false)
	}
	if execution.Status.IsFinished() {
		return fmt.Errorf("execution %s already finished in state %s", executionID, execution.Status)
	}

	if err := execution.MarkAsStopping(); err != nil {
		return exception.NewBatchError("operator", "failed to mark execution as stopping", err, false, false)
	}
	if err := o.repo.UpdateJobExecution(ctx, execution); err != nil {
		return exception.NewBatchError("operator", "failed to persist stopping execution", err, false, false)
	}

	if !o.registry.Cancel(executionID) {
		return fmt.Errorf("%w: %s", ErrExecutionNotRunning, executionID)
	}
	logger.Infof("stop requested for execution %s", executionID)
	return nil
}

// Restart launches a new execution for the instance behind a failed or
// stopped execution, resuming from its checkpoints.
func (o *JobOperator) Restart(ctx context.Context, executionID string, job port.Job) (*model.JobExecution, error) {
	execution, err := o.repo.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("operator", "failed to look up job execution", err, false, false)
	}
	if !execution.IsRestartable() {
		return nil, fmt.Errorf("execution %s in state %s is not restartable", executionID, execution.Status)
	}
	return o.launcher.Launch(ctx, job, execution.Parameters)
}
