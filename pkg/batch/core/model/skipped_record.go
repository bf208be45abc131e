package model

import (
	"time"

	"github.com/google/uuid"
)

// SkipPhase names the stage at which a record was skipped.
type SkipPhase string

const (
	SkipPhaseRead    SkipPhase = "READ"
	SkipPhaseProcess SkipPhase = "PROCESS"
	SkipPhaseWrite   SkipPhase = "WRITE"
)

// SkippedRecord is the audit row persisted for every skipped record. It is
// committed in the same transaction as the chunk that surfaced the failure.
type SkippedRecord struct {
	ID              string
	StepExecutionID string
	Phase           SkipPhase
	Offset          int64
	RawContent      string
	Reason          string
	CreateTime      time.Time
}

// NewSkippedRecord creates a skip audit row for the given step execution.
func NewSkippedRecord(stepExecutionID string, phase SkipPhase, offset int64, raw, reason string) *SkippedRecord {
	return &SkippedRecord{
		ID:              uuid.NewString(),
		StepExecutionID: stepExecutionID,
		Phase:           phase,
		Offset:          offset,
		RawContent:      raw,
		Reason:          reason,
		CreateTime:      time.Now(),
	}
}
