package model

import "time"

// CheckpointData captures the source position committed together with a
// chunk. On restart the reader resumes from Offset, never re-reading records
// that have already been written.
type CheckpointData struct {
	StepExecutionID string
	Offset          int64
	Context         ExecutionContext
	UpdateTime      time.Time
}

// NewCheckpointData creates a checkpoint for the given step execution.
func NewCheckpointData(stepExecutionID string, offset int64, ec ExecutionContext) *CheckpointData {
	return &CheckpointData{
		StepExecutionID: stepExecutionID,
		Offset:          offset,
		Context:         ec.Copy(),
		UpdateTime:      time.Now(),
	}
}
