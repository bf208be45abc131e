// Package memory provides an in-process JobRepository. It backs tests and
// single-run tools that do not need durable execution metadata.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
)

// Repository is a mutex-serialized, map-backed JobRepository.
type Repository struct {
	mu          sync.RWMutex
	instances   map[string]*model.JobInstance
	executions  map[string]*model.JobExecution
	steps       map[string]*model.StepExecution
	checkpoints map[string]*model.CheckpointData
	skips       map[string][]*model.SkippedRecord
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		instances:   make(map[string]*model.JobInstance),
		executions:  make(map[string]*model.JobExecution),
		steps:       make(map[string]*model.StepExecution),
		checkpoints: make(map[string]*model.CheckpointData),
		skips:       make(map[string][]*model.SkippedRecord),
	}
}

// SaveJobInstance stores a new job instance.
func (r *Repository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[instance.ID]; exists {
		return fmt.Errorf("job instance %s already exists", instance.ID)
	}
	r.instances[instance.ID] = instance
	return nil
}

// FindJobInstanceByNameAndParameters looks an instance up by its identity.
func (r *Repository) FindJobInstanceByNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash := params.Hash()
	for _, instance := range r.instances {
		if instance.JobName == jobName && instance.ParametersHash == hash {
			return instance, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// FindJobInstanceByID looks an instance up by ID.
func (r *Repository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.instances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	return instance, nil
}

// FindJobNames lists distinct job names.
func (r *Repository) FindJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, instance := range r.instances {
		seen[instance.JobName] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveJobExecution stores a new job execution.
func (r *Repository) SaveJobExecution(ctx context.Context, execution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executions[execution.ID]; exists {
		return fmt.Errorf("job execution %s already exists", execution.ID)
	}
	execution.Version++
	r.executions[execution.ID] = execution
	return nil
}

// UpdateJobExecution persists the current state of a job execution.
func (r *Repository) UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executions[execution.ID]; !exists {
		return repository.ErrJobExecutionNotFound
	}
	execution.Version++
	r.executions[execution.ID] = execution
	return nil
}

// FindJobExecutionByID looks a job execution up by ID. The result is a
// detached snapshot, matching the row-backed repository: callers never see
// mutations a running job makes after the lookup.
func (r *Repository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	execution, ok := r.executions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return detachJobExecution(execution), nil
}

// detachJobExecution snapshots an execution so readers do not share state
// with the live object the engine mutates.
func detachJobExecution(execution *model.JobExecution) *model.JobExecution {
	out := *execution
	out.Failures = append([]error(nil), execution.Failures...)
	out.ExecutionContext = execution.ExecutionContext.Copy()
	out.StepExecutions = make([]*model.StepExecution, 0, len(execution.StepExecutions))
	for _, se := range execution.StepExecutions {
		seCopy := *se
		seCopy.Failures = append([]error(nil), se.Failures...)
		seCopy.ExecutionContext = se.ExecutionContext.Copy()
		out.StepExecutions = append(out.StepExecutions, &seCopy)
	}
	return &out
}

// FindJobExecutionsByInstance lists the executions of an instance, newest first.
func (r *Repository) FindJobExecutionsByInstance(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.JobExecution
	for _, execution := range r.executions {
		if execution.JobInstanceID == instance.ID {
			out = append(out, execution)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreateTime.After(out[j].CreateTime)
	})
	return out, nil
}

// FindLatestJobExecution returns the newest execution of an instance.
func (r *Repository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *model.JobExecution
	for _, execution := range r.executions {
		if execution.JobInstanceID != jobInstanceID {
			continue
		}
		if latest == nil || execution.CreateTime.After(latest.CreateTime) {
			latest = execution
		}
	}
	if latest == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	return latest, nil
}

// SaveStepExecution stores a new step execution.
func (r *Repository) SaveStepExecution(ctx context.Context, execution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	execution.Version++
	r.steps[execution.ID] = execution
	return nil
}

// UpdateStepExecution persists the current state of a step execution.
func (r *Repository) UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[execution.ID]; !exists {
		return repository.ErrStepExecutionNotFound
	}
	execution.Version++
	r.steps[execution.ID] = execution
	return nil
}

// FindStepExecutionByID looks a step execution up by ID.
func (r *Repository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	execution, ok := r.steps[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return execution, nil
}

// FindStepExecutionsByJobExecutionID lists the step executions of a job execution.
func (r *Repository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.StepExecution
	for _, execution := range r.steps {
		if execution.JobExecutionID == jobExecutionID {
			out = append(out, execution)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// Close is a no-op.
func (r *Repository) Close() error {
	return nil
}

var _ repository.JobRepository = (*Repository)(nil)
