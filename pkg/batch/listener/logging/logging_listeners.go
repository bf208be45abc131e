// Package logging provides listener implementations that log the lifecycle
// of jobs, steps and chunks.
package logging

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

// JobListener logs job start and end.
type JobListener struct{}

func NewJobListener() *JobListener {
	return &JobListener{}
}

func (l *JobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("Job '%s' starting (execution: %s, params: %+v)",
		jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.Params)
}

func (l *JobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("Job '%s' finished (status: %s, exit: %s)",
		jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
}

var _ port.JobExecutionListener = (*JobListener)(nil)

// StepListener logs step start and end with the final counters.
type StepListener struct{}

func NewStepListener() *StepListener {
	return &StepListener{}
}

func (l *StepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("Step '%s' starting (execution: %s)", stepExecution.StepName, stepExecution.ID)
}

func (l *StepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("Step '%s' finished (status: %s, read: %d, write: %d, filter: %d, skip: %d, commit: %d, rollback: %d)",
		stepExecution.StepName, stepExecution.Status,
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount,
		stepExecution.SkipCount(), stepExecution.CommitCount, stepExecution.RollbackCount)
}

var _ port.StepExecutionListener = (*StepListener)(nil)

// ChunkListener logs chunk commit cycles.
type ChunkListener struct{}

func NewChunkListener() *ChunkListener {
	return &ChunkListener{}
}

func (l *ChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Step '%s': starting chunk (committed so far: %d)", stepExecution.StepName, stepExecution.CommitCount)
}

func (l *ChunkListener) AfterChunkCommit(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Step '%s': chunk committed (read: %d, write: %d, offset: %d)",
		stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.LastCommittedOffset)
}

func (l *ChunkListener) AfterChunkRollback(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Warnf("Step '%s': chunk rolled back (rollbacks: %d)", stepExecution.StepName, stepExecution.RollbackCount)
}

var _ port.ChunkListener = (*ChunkListener)(nil)

// SkipListener logs every skipped record with its phase.
type SkipListener struct{}

func NewSkipListener() *SkipListener {
	return &SkipListener{}
}

func (l *SkipListener) OnSkipRead(ctx context.Context, err error) {
	logger.Warnf("Skipped record during read: %v", err)
}

func (l *SkipListener) OnSkipProcess(ctx context.Context, item interface{}, err error) {
	logger.Warnf("Skipped item during processing: %+v (%v)", item, err)
}

func (l *SkipListener) OnSkipWrite(ctx context.Context, item interface{}, err error) {
	logger.Warnf("Skipped item during write: %+v (%v)", item, err)
}

var _ port.SkipListener = (*SkipListener)(nil)

// RetryListener logs retried chunk write attempts.
type RetryListener struct{}

func NewRetryListener() *RetryListener {
	return &RetryListener{}
}

func (l *RetryListener) OnRetryWrite(ctx context.Context, attempt int, err error) {
	logger.Warnf("Retrying chunk write (attempt %d): %v", attempt, err)
}

var _ port.RetryListener = (*RetryListener)(nil)
