package sql

import (
	"errors"
	"time"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

func endTimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func endTimeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func failuresToList(errs []error) model.FailureList {
	out := make(model.FailureList, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

func listToFailures(list model.FailureList) []error {
	out := make([]error, 0, len(list))
	for _, msg := range list {
		out = append(out, errors.New(msg))
	}
	return out
}

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Parameters:     ji.Parameters,
		ParametersHash: ji.ParametersHash,
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}
}

func toDomainJobInstance(entity *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Parameters:     entity.Parameters,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
		Version:        entity.Version,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	return &JobExecutionEntity{
		ID:               je.ID,
		JobInstanceID:    je.JobInstanceID,
		JobName:          je.JobName,
		Parameters:       je.Parameters,
		StartTime:        je.StartTime,
		EndTime:          endTimePtr(je.EndTime),
		Status:           je.Status.String(),
		ExitStatus:       je.ExitStatus.String(),
		Failures:         failuresToList(je.Failures),
		CreateTime:       je.CreateTime,
		LastUpdated:      je.LastUpdated,
		ExecutionContext: je.ExecutionContext,
		Version:          je.Version,
	}
}

func toDomainJobExecution(entity *JobExecutionEntity) *model.JobExecution {
	return &model.JobExecution{
		ID:               entity.ID,
		JobInstanceID:    entity.JobInstanceID,
		JobName:          entity.JobName,
		Parameters:       entity.Parameters,
		StartTime:        entity.StartTime,
		EndTime:          endTimeVal(entity.EndTime),
		Status:           model.Status(entity.Status),
		ExitStatus:       model.ExitStatus(entity.ExitStatus),
		Failures:         listToFailures(entity.Failures),
		CreateTime:       entity.CreateTime,
		LastUpdated:      entity.LastUpdated,
		ExecutionContext: entity.ExecutionContext,
		Version:          entity.Version,
		StepExecutions:   make([]*model.StepExecution, 0),
	}
}

func fromDomainStepExecution(se *model.StepExecution) *StepExecutionEntity {
	return &StepExecutionEntity{
		ID:                  se.ID,
		JobExecutionID:      se.JobExecutionID,
		StepName:            se.StepName,
		StartTime:           se.StartTime,
		EndTime:             endTimePtr(se.EndTime),
		Status:              se.Status.String(),
		ExitStatus:          se.ExitStatus.String(),
		ReadCount:           se.ReadCount,
		WriteCount:          se.WriteCount,
		CommitCount:         se.CommitCount,
		RollbackCount:       se.RollbackCount,
		FilterCount:         se.FilterCount,
		SkipReadCount:       se.SkipReadCount,
		SkipProcessCount:    se.SkipProcessCount,
		SkipWriteCount:      se.SkipWriteCount,
		LastCommittedOffset: se.LastCommittedOffset,
		Failures:            failuresToList(se.Failures),
		ExecutionContext:    se.ExecutionContext,
		LastUpdated:         se.LastUpdated,
		Version:             se.Version,
	}
}

func toDomainStepExecution(entity *StepExecutionEntity) *model.StepExecution {
	return &model.StepExecution{
		ID:                  entity.ID,
		JobExecutionID:      entity.JobExecutionID,
		StepName:            entity.StepName,
		StartTime:           entity.StartTime,
		EndTime:             endTimeVal(entity.EndTime),
		Status:              model.Status(entity.Status),
		ExitStatus:          model.ExitStatus(entity.ExitStatus),
		ReadCount:           entity.ReadCount,
		WriteCount:          entity.WriteCount,
		CommitCount:         entity.CommitCount,
		RollbackCount:       entity.RollbackCount,
		FilterCount:         entity.FilterCount,
		SkipReadCount:       entity.SkipReadCount,
		SkipProcessCount:    entity.SkipProcessCount,
		SkipWriteCount:      entity.SkipWriteCount,
		LastCommittedOffset: entity.LastCommittedOffset,
		Failures:            listToFailures(entity.Failures),
		ExecutionContext:    entity.ExecutionContext,
		LastUpdated:         entity.LastUpdated,
		Version:             entity.Version,
	}
}

func fromDomainCheckpoint(cp *model.CheckpointData) *CheckpointEntity {
	return &CheckpointEntity{
		StepExecutionID:  cp.StepExecutionID,
		Offset:           cp.Offset,
		ExecutionContext: cp.Context,
		LastUpdated:      cp.UpdateTime,
	}
}

func toDomainCheckpoint(entity *CheckpointEntity) *model.CheckpointData {
	return &model.CheckpointData{
		StepExecutionID: entity.StepExecutionID,
		Offset:          entity.Offset,
		Context:         entity.ExecutionContext,
		UpdateTime:      entity.LastUpdated,
	}
}

func fromDomainSkippedRecord(rec *model.SkippedRecord) *SkippedRecordEntity {
	return &SkippedRecordEntity{
		ID:              rec.ID,
		StepExecutionID: rec.StepExecutionID,
		Phase:           string(rec.Phase),
		Offset:          rec.Offset,
		RawContent:      rec.RawContent,
		Reason:          rec.Reason,
		CreateTime:      rec.CreateTime,
	}
}

func toDomainSkippedRecord(entity *SkippedRecordEntity) *model.SkippedRecord {
	return &model.SkippedRecord{
		ID:              entity.ID,
		StepExecutionID: entity.StepExecutionID,
		Phase:           model.SkipPhase(entity.Phase),
		Offset:          entity.Offset,
		RawContent:      entity.RawContent,
		Reason:          entity.Reason,
		CreateTime:      entity.CreateTime,
	}
}
