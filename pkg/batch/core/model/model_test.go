package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
)

func TestJobParametersHashIsOrderIndependent(t *testing.T) {
	a := model.NewJobParameters()
	a.Put("input", "/data/products.csv")
	a.Put("date", "2026-08-30")
	a.Put("limit", 100)

	b := model.NewJobParameters()
	b.Put("limit", 100)
	b.Put("date", "2026-08-30")
	b.Put("input", "/data/products.csv")

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
}

func TestJobParametersHashDistinguishesValues(t *testing.T) {
	a := model.NewJobParameters()
	a.Put("input", "/data/products.csv")

	b := model.NewJobParameters()
	b.Put("input", "/data/other.csv")

	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(b))

	empty := model.NewJobParameters()
	assert.NotEqual(t, a.Hash(), empty.Hash())
}

func TestJobParametersRoundTrip(t *testing.T) {
	params := model.NewJobParameters()
	params.Put("input", "/data/products.csv")

	value, err := params.Value()
	require.NoError(t, err)

	var restored model.JobParameters
	require.NoError(t, restored.Scan(value))
	assert.True(t, params.Equal(restored))
}

func TestJobExecutionStatusTransitions(t *testing.T) {
	instance := model.NewJobInstance("test-job", model.NewJobParameters())
	execution := model.NewJobExecution(instance)
	assert.Equal(t, model.StatusStarting, execution.Status)

	require.NoError(t, execution.MarkAsStarted())
	require.NoError(t, execution.MarkAsCompleted())
	assert.Equal(t, model.StatusCompleted, execution.Status)
	assert.Equal(t, model.ExitStatusCompleted, execution.ExitStatus)
	assert.True(t, execution.Status.IsFinished())

	// Completed executions are terminal.
	assert.Error(t, execution.MarkAsStarted())
	assert.Error(t, execution.MarkAsAbandoned())
}

func TestJobExecutionFailureIsRestartable(t *testing.T) {
	instance := model.NewJobInstance("test-job", model.NewJobParameters())
	execution := model.NewJobExecution(instance)
	require.NoError(t, execution.MarkAsStarted())

	cause := errors.New("writer gave up")
	require.NoError(t, execution.MarkAsFailed(cause))
	assert.Equal(t, model.StatusFailed, execution.Status)
	assert.True(t, execution.IsRestartable())
	require.Len(t, execution.Failures, 1)

	// Abandoning a failed execution ends its restartable life.
	require.NoError(t, execution.MarkAsAbandoned())
	assert.False(t, execution.IsRestartable())
}

func TestJobExecutionStopSequence(t *testing.T) {
	instance := model.NewJobInstance("test-job", model.NewJobParameters())
	execution := model.NewJobExecution(instance)
	require.NoError(t, execution.MarkAsStarted())
	require.NoError(t, execution.MarkAsStopping())
	require.NoError(t, execution.MarkAsStopped())
	assert.Equal(t, model.StatusStopped, execution.Status)
	assert.True(t, execution.IsRestartable())
}

func TestStepExecutionCopyForRestart(t *testing.T) {
	se := model.NewStepExecution("job-exec-1", "import-step")
	se.ReadCount = 120
	se.WriteCount = 100
	se.CommitCount = 10
	se.FilterCount = 15
	se.SkipReadCount = 5
	se.LastCommittedOffset = 120
	se.ExecutionContext.Put(port.OffsetContextKey, int64(120))
	se.RollbackCount = 3

	restarted := se.CopyForRestart("job-exec-2")

	assert.NotEqual(t, se.ID, restarted.ID)
	assert.Equal(t, "job-exec-2", restarted.JobExecutionID)
	assert.Equal(t, model.StatusStarting, restarted.Status)
	assert.Equal(t, 120, restarted.ReadCount)
	assert.Equal(t, 100, restarted.WriteCount)
	assert.Equal(t, 15, restarted.FilterCount)
	assert.Equal(t, 5, restarted.SkipReadCount)
	assert.Equal(t, int64(120), restarted.LastCommittedOffset)
	assert.Equal(t, 0, restarted.RollbackCount, "rollbacks are not carried into a new run")

	off, ok := restarted.ExecutionContext.GetInt64(port.OffsetContextKey)
	require.True(t, ok)
	assert.Equal(t, int64(120), off)

	// The copied context is independent of the original.
	restarted.ExecutionContext.Put(port.OffsetContextKey, int64(999))
	off, _ = se.ExecutionContext.GetInt64(port.OffsetContextKey)
	assert.Equal(t, int64(120), off)
}

func TestExecutionContextMergeAndCopy(t *testing.T) {
	base := model.NewExecutionContext()
	base.Put("a", 1)
	base.Put("b", "keep")

	other := model.NewExecutionContext()
	other.Put("a", 2)
	other.Put("c", int64(3))

	base.Merge(other)
	v, _ := base.GetInt("a")
	assert.Equal(t, 2, v, "merge overwrites existing keys")
	s, _ := base.GetString("b")
	assert.Equal(t, "keep", s)
	n, ok := base.GetInt64("c")
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}
