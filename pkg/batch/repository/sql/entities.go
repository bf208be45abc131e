// Package sql persists batch execution metadata in a relational database
// through the gorm-backed adapter.
package sql

import (
	"time"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

// JobInstanceEntity is the persistence model for job instances.
type JobInstanceEntity struct {
	ID             string
	JobName        string
	Parameters     model.JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the persistence model for job executions.
type JobExecutionEntity struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       model.JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           string
	ExitStatus       string
	Failures         model.FailureList
	CreateTime       time.Time
	LastUpdated      time.Time
	ExecutionContext model.ExecutionContext
	Version          int
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the persistence model for step executions,
// including the counters the chunk loop maintains per commit.
type StepExecutionEntity struct {
	ID                  string
	JobExecutionID      string
	StepName            string
	StartTime           time.Time
	EndTime             *time.Time
	Status              string
	ExitStatus          string
	ReadCount           int
	WriteCount          int
	CommitCount         int
	RollbackCount       int
	FilterCount         int
	SkipReadCount       int
	SkipProcessCount    int
	SkipWriteCount      int
	LastCommittedOffset int64
	Failures            model.FailureList
	ExecutionContext    model.ExecutionContext
	LastUpdated         time.Time
	Version             int
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// CheckpointEntity is the persistence model for per-step source positions.
type CheckpointEntity struct {
	StepExecutionID  string `gorm:"primaryKey"`
	Offset           int64  `gorm:"column:source_offset"`
	ExecutionContext model.ExecutionContext
	LastUpdated      time.Time
}

func (CheckpointEntity) TableName() string {
	return "batch_checkpoint"
}

// SkippedRecordEntity is the persistence model for skip audit rows.
type SkippedRecordEntity struct {
	ID              string
	StepExecutionID string
	Phase           string
	Offset          int64 `gorm:"column:source_offset"`
	RawContent      string
	Reason          string
	CreateTime      time.Time
}

func (SkippedRecordEntity) TableName() string {
	return "batch_skipped_record"
}
