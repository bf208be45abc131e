package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobInstance identifies a logical job run: a job name plus a parameter set.
// Restarts of a failed run share the same instance.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance for the given job name and parameters.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	return &JobInstance{
		ID:             uuid.NewString(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: params.Hash(),
		CreateTime:     time.Now(),
	}
}

// JobExecution records a single attempt at running a job instance.
type JobExecution struct {
	ID             string
	JobInstanceID  string
	JobName        string
	Parameters     JobParameters
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	ExitStatus     ExitStatus
	CreateTime     time.Time
	LastUpdated    time.Time
	Version        int
	Failures       []error
	ExecutionContext ExecutionContext
	StepExecutions []*StepExecution
}

// NewJobExecution creates a JobExecution in STARTING state.
func NewJobExecution(instance *JobInstance) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.NewString(),
		JobInstanceID:    instance.ID,
		JobName:          instance.JobName,
		Parameters:       instance.Parameters,
		Status:           StatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
		StepExecutions:   make([]*StepExecution, 0),
	}
}

// MarkAsStarted transitions the execution to STARTED.
func (je *JobExecution) MarkAsStarted() error {
	if err := je.transitionTo(StatusStarted); err != nil {
		return err
	}
	je.StartTime = time.Now()
	return nil
}

// MarkAsCompleted transitions the execution to COMPLETED.
func (je *JobExecution) MarkAsCompleted() error {
	if err := je.transitionTo(StatusCompleted); err != nil {
		return err
	}
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = time.Now()
	return nil
}

// MarkAsFailed transitions the execution to FAILED, recording the cause.
func (je *JobExecution) MarkAsFailed(cause error) error {
	if err := je.transitionTo(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		je.Failures = append(je.Failures, cause)
	}
	je.ExitStatus = ExitStatusFailed
	je.EndTime = time.Now()
	return nil
}

// MarkAsStopping transitions the execution to STOPPING.
func (je *JobExecution) MarkAsStopping() error {
	return je.transitionTo(StatusStopping)
}

// MarkAsStopped transitions the execution to STOPPED.
func (je *JobExecution) MarkAsStopped() error {
	if err := je.transitionTo(StatusStopped); err != nil {
		return err
	}
	je.ExitStatus = ExitStatusStopped
	je.EndTime = time.Now()
	return nil
}

// MarkAsAbandoned transitions the execution to ABANDONED. Abandoned
// executions are terminal and excluded from restart candidacy.
func (je *JobExecution) MarkAsAbandoned() error {
	if err := je.transitionTo(StatusAbandoned); err != nil {
		return err
	}
	je.ExitStatus = ExitStatusAbandoned
	je.EndTime = time.Now()
	return nil
}

// AddFailureException appends a failure to the execution without changing
// its status.
func (je *JobExecution) AddFailureException(err error) {
	if err != nil {
		je.Failures = append(je.Failures, err)
	}
}

// AddStepExecution attaches a step execution to this job execution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// IsRestartable reports whether this execution can seed a restart.
func (je *JobExecution) IsRestartable() bool {
	return je.Status == StatusFailed || je.Status == StatusStopped
}

func (je *JobExecution) transitionTo(next Status) error {
	if !isValidTransition(je.Status, next) {
		return fmt.Errorf("invalid job execution status transition from %s to %s (execution %s)", je.Status, next, je.ID)
	}
	je.Status = next
	je.LastUpdated = time.Now()
	return nil
}

// StepExecution records a single attempt at running one step, including the
// counters the chunk loop maintains per commit.
type StepExecution struct {
	ID             string
	JobExecutionID string
	StepName       string
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	ExitStatus     ExitStatus
	ReadCount      int
	WriteCount     int
	CommitCount    int
	RollbackCount  int
	FilterCount    int
	SkipReadCount  int
	SkipProcessCount int
	SkipWriteCount int
	LastCommittedOffset int64
	Failures       []error
	ExecutionContext ExecutionContext
	LastUpdated    time.Time
	Version        int
}

// NewStepExecution creates a StepExecution in STARTING state.
func NewStepExecution(jobExecutionID, stepName string) *StepExecution {
	now := time.Now()
	return &StepExecution{
		ID:               uuid.NewString(),
		JobExecutionID:   jobExecutionID,
		StepName:         stepName,
		Status:           StatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      now,
	}
}

// SkipCount returns the total number of skipped items across all phases.
func (se *StepExecution) SkipCount() int {
	return se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount
}

// MarkAsStarted transitions the step to STARTED.
func (se *StepExecution) MarkAsStarted() error {
	if err := se.transitionTo(StatusStarted); err != nil {
		return err
	}
	se.StartTime = time.Now()
	return nil
}

// MarkAsCompleted transitions the step to COMPLETED.
func (se *StepExecution) MarkAsCompleted() error {
	if err := se.transitionTo(StatusCompleted); err != nil {
		return err
	}
	se.ExitStatus = ExitStatusCompleted
	se.EndTime = time.Now()
	return nil
}

// MarkAsFailed transitions the step to FAILED, recording the cause.
func (se *StepExecution) MarkAsFailed(cause error) error {
	if err := se.transitionTo(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		se.Failures = append(se.Failures, cause)
	}
	se.ExitStatus = ExitStatusFailed
	se.EndTime = time.Now()
	return nil
}

// MarkAsStopped transitions the step to STOPPED.
func (se *StepExecution) MarkAsStopped() error {
	if err := se.transitionTo(StatusStopped); err != nil {
		return err
	}
	se.ExitStatus = ExitStatusStopped
	se.EndTime = time.Now()
	return nil
}

// AddFailureException appends a failure to the step without changing its status.
func (se *StepExecution) AddFailureException(err error) {
	if err != nil {
		se.Failures = append(se.Failures, err)
	}
}

// CopyForRestart builds a fresh StepExecution for the given new job
// execution, carrying over the counters and execution context so the reader
// can resume past records already committed.
func (se *StepExecution) CopyForRestart(jobExecutionID string) *StepExecution {
	ns := NewStepExecution(jobExecutionID, se.StepName)
	ns.ReadCount = se.ReadCount
	ns.WriteCount = se.WriteCount
	ns.CommitCount = se.CommitCount
	ns.FilterCount = se.FilterCount
	ns.SkipReadCount = se.SkipReadCount
	ns.SkipProcessCount = se.SkipProcessCount
	ns.SkipWriteCount = se.SkipWriteCount
	ns.LastCommittedOffset = se.LastCommittedOffset
	ns.ExecutionContext = se.ExecutionContext.Copy()
	return ns
}

func (se *StepExecution) transitionTo(next Status) error {
	if !isValidTransition(se.Status, next) {
		return fmt.Errorf("invalid step execution status transition from %s to %s (step %s)", se.Status, next, se.StepName)
	}
	se.Status = next
	se.LastUpdated = time.Now()
	return nil
}
