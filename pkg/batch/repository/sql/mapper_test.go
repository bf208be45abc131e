package sql

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

func TestStepExecutionEntityRoundTrip(t *testing.T) {
	se := model.NewStepExecution("job-exec-1", "import-step")
	require.NoError(t, se.MarkAsStarted())
	se.ReadCount = 120
	se.WriteCount = 100
	se.CommitCount = 12
	se.RollbackCount = 2
	se.FilterCount = 15
	se.SkipReadCount = 5
	se.LastCommittedOffset = 120
	se.ExecutionContext.Put("source.offset", int64(120))
	require.NoError(t, se.MarkAsFailed(errors.New("writer gave up")))
	se.Version = 4

	entity := fromDomainStepExecution(se)
	assert.Equal(t, "FAILED", entity.Status)
	assert.Equal(t, int64(120), entity.LastCommittedOffset)
	require.NotNil(t, entity.EndTime)

	restored := toDomainStepExecution(entity)
	assert.Equal(t, se.ID, restored.ID)
	assert.Equal(t, model.StatusFailed, restored.Status)
	assert.Equal(t, se.ReadCount, restored.ReadCount)
	assert.Equal(t, se.WriteCount, restored.WriteCount)
	assert.Equal(t, se.FilterCount, restored.FilterCount)
	assert.Equal(t, se.SkipReadCount, restored.SkipReadCount)
	assert.Equal(t, se.LastCommittedOffset, restored.LastCommittedOffset)
	assert.Equal(t, se.Version, restored.Version)
	require.Len(t, restored.Failures, 1)
	assert.Equal(t, "writer gave up", restored.Failures[0].Error())

	off, ok := restored.ExecutionContext.GetInt64("source.offset")
	require.True(t, ok)
	assert.Equal(t, int64(120), off)
}

func TestJobExecutionEntityRoundTrip(t *testing.T) {
	instance := model.NewJobInstance("import-job", model.NewJobParameters())
	je := model.NewJobExecution(instance)
	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, je.MarkAsCompleted())

	entity := fromDomainJobExecution(je)
	assert.Equal(t, "COMPLETED", entity.Status)

	restored := toDomainJobExecution(entity)
	assert.Equal(t, je.ID, restored.ID)
	assert.Equal(t, je.JobInstanceID, restored.JobInstanceID)
	assert.Equal(t, model.StatusCompleted, restored.Status)
	assert.Equal(t, model.ExitStatusCompleted, restored.ExitStatus)
	assert.NotNil(t, restored.StepExecutions)
}

func TestEndTimeMapsZeroToNull(t *testing.T) {
	se := model.NewStepExecution("job-exec-1", "import-step")

	entity := fromDomainStepExecution(se)
	assert.Nil(t, entity.EndTime, "a running step has no end time")

	restored := toDomainStepExecution(entity)
	assert.True(t, restored.EndTime.IsZero())

	now := time.Now()
	entity.EndTime = &now
	restored = toDomainStepExecution(entity)
	assert.Equal(t, now, restored.EndTime)
}

func TestCheckpointEntityRoundTrip(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("source.offset", int64(300))
	cp := model.NewCheckpointData("step-1", 300, ec)

	entity := fromDomainCheckpoint(cp)
	assert.Equal(t, "step-1", entity.StepExecutionID)
	assert.Equal(t, int64(300), entity.Offset)

	restored := toDomainCheckpoint(entity)
	assert.Equal(t, cp.StepExecutionID, restored.StepExecutionID)
	assert.Equal(t, cp.Offset, restored.Offset)
}
