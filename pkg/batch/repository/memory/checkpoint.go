package memory

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
)

// SaveCheckpoint stores or replaces the checkpoint of a step execution.
func (r *Repository) SaveCheckpoint(ctx context.Context, cp *model.CheckpointData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[cp.StepExecutionID] = cp
	return nil
}

// FindCheckpoint returns the checkpoint of a step execution.
func (r *Repository) FindCheckpoint(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp, ok := r.checkpoints[stepExecutionID]
	if !ok {
		return nil, repository.ErrCheckpointNotFound
	}
	return cp, nil
}

// DeleteCheckpoint removes the checkpoint of a step execution.
func (r *Repository) DeleteCheckpoint(ctx context.Context, stepExecutionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkpoints, stepExecutionID)
	return nil
}

// SaveSkippedRecord appends a skip audit row.
func (r *Repository) SaveSkippedRecord(ctx context.Context, rec *model.SkippedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips[rec.StepExecutionID] = append(r.skips[rec.StepExecutionID], rec)
	return nil
}

// FindSkippedRecords lists the skip audit rows of a step execution.
func (r *Repository) FindSkippedRecords(ctx context.Context, stepExecutionID string) ([]*model.SkippedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.SkippedRecord, len(r.skips[stepExecutionID]))
	copy(out, r.skips[stepExecutionID])
	return out, nil
}
