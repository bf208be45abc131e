package chunk_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/chunk"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/retry"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/skip"
	"github.com/tigerroll/shorebreak/pkg/batch/repository/memory"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

type testItem struct {
	ID    int
	Value string
}

// recordFailure marks source positions that fail while reading.
type recordFailure struct {
	err error
}

// stubReader serves items from a slice and exposes its offset through the
// execution context the way a file reader would.
type stubReader struct {
	items    []testItem
	failures map[int]recordFailure // keyed by source offset
	offset   int64
	opened   bool
}

type stubRecordError struct {
	offset int64
	raw    string
	cause  error
}

func (e *stubRecordError) Error() string         { return fmt.Sprintf("record %d: %v", e.offset, e.cause) }
func (e *stubRecordError) Unwrap() error         { return e.cause }
func (e *stubRecordError) RecordOffset() int64   { return e.offset }
func (e *stubRecordError) RecordContent() string { return e.raw }

func (r *stubReader) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.opened = true
	r.offset = 0
	if off, ok := ec.GetInt64(port.OffsetContextKey); ok {
		r.offset = off
	}
	return nil
}

func (r *stubReader) Read(ctx context.Context) (testItem, error) {
	if err := ctx.Err(); err != nil {
		return testItem{}, err
	}
	if r.offset >= int64(len(r.items)) {
		return testItem{}, port.ErrNoMoreItems
	}
	idx := int(r.offset)
	if f, ok := r.failures[idx]; ok {
		// A rejected record is consumed like any other.
		r.offset++
		return testItem{}, exception.NewSkippableError("reader", "failed to map record",
			&stubRecordError{offset: int64(idx), raw: fmt.Sprintf("raw-%d", idx), cause: f.err})
	}
	item := r.items[idx]
	r.offset++
	return item, nil
}

func (r *stubReader) Close(ctx context.Context) error { return nil }

func (r *stubReader) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(port.OffsetContextKey, r.offset)
	return ec, nil
}

// stubWriter collects chunks and can fail a configured number of times.
type stubWriter struct {
	chunks      [][]testItem
	failsLeft   int
	failWith    error
	writeCalls  int
	failForever bool
}

func (w *stubWriter) Open(ctx context.Context, ec model.ExecutionContext) error { return nil }
func (w *stubWriter) Close(ctx context.Context) error                           { return nil }

func (w *stubWriter) Write(ctx context.Context, items []testItem) error {
	w.writeCalls++
	if w.failForever || w.failsLeft > 0 {
		if w.failsLeft > 0 {
			w.failsLeft--
		}
		if w.failWith != nil {
			return w.failWith
		}
		return exception.NewRetryableError("writer", "transient write failure", errors.New("connection reset"))
	}
	chunkCopy := make([]testItem, len(items))
	copy(chunkCopy, items)
	w.chunks = append(w.chunks, chunkCopy)
	return nil
}

func (w *stubWriter) written() int {
	n := 0
	for _, c := range w.chunks {
		n += len(c)
	}
	return n
}

// stopAfterCommit cancels the context once the first chunk commits.
type stopAfterCommit struct {
	cancel context.CancelFunc
}

func (l *stopAfterCommit) BeforeChunk(ctx context.Context, se *model.StepExecution)        {}
func (l *stopAfterCommit) AfterChunkRollback(ctx context.Context, se *model.StepExecution) {}
func (l *stopAfterCommit) AfterChunkCommit(ctx context.Context, se *model.StepExecution) {
	l.cancel()
}

// capturingSkipListener records the offsets of skipped reads.
type capturingSkipListener struct {
	readOffsets []int64
}

func (l *capturingSkipListener) OnSkipRead(ctx context.Context, err error) {
	var detail port.RecordDetail
	if errors.As(err, &detail) {
		l.readOffsets = append(l.readOffsets, detail.RecordOffset())
	}
}

func (l *capturingSkipListener) OnSkipProcess(ctx context.Context, item interface{}, err error) {}
func (l *capturingSkipListener) OnSkipWrite(ctx context.Context, item interface{}, err error)   {}

func items(n int) []testItem {
	out := make([]testItem, n)
	for i := range out {
		out[i] = testItem{ID: i, Value: fmt.Sprintf("item-%d", i)}
	}
	return out
}

func newExecution(t *testing.T, repo *memory.Repository) (*model.JobExecution, *model.StepExecution) {
	t.Helper()
	ctx := context.Background()
	instance := model.NewJobInstance("test-job", model.NewJobParameters())
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	jobExecution := model.NewJobExecution(instance)
	require.NoError(t, repo.SaveJobExecution(ctx, jobExecution))
	stepExecution := model.NewStepExecution(jobExecution.ID, "test-step")
	jobExecution.AddStepExecution(stepExecution)
	require.NoError(t, repo.SaveStepExecution(ctx, stepExecution))
	return jobExecution, stepExecution
}

func testPolicies(maxAttempts, skipLimit int) (retry.RetryPolicy, skip.SkipPolicy) {
	return retry.NewDefaultRetryPolicyFactory().Create(maxAttempts, 1, 2, 2.0),
		skip.NewDefaultSkipPolicyFactory().Create(skipLimit)
}

func TestChunkStepCommitsInChunks(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(5)}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 2,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, stepExecution.Status)
	assert.Equal(t, 5, stepExecution.ReadCount)
	assert.Equal(t, 5, stepExecution.WriteCount)
	assert.Equal(t, 3, stepExecution.CommitCount)
	assert.Equal(t, 0, stepExecution.RollbackCount)
	assert.Equal(t, [][]testItem{
		{{0, "item-0"}, {1, "item-1"}},
		{{2, "item-2"}, {3, "item-3"}},
		{{4, "item-4"}},
	}, writer.chunks)
	assert.Equal(t, int64(5), stepExecution.LastCommittedOffset)

	cp, err := repo.FindCheckpoint(context.Background(), stepExecution.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cp.Offset)
}

func TestChunkStepExactBoundaryCommitsNoEmptyChunk(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(4)}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 2,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, stepExecution.Status)
	assert.Equal(t, 2, stepExecution.CommitCount)
	assert.Len(t, writer.chunks, 2)
	assert.Equal(t, 4, stepExecution.WriteCount)
	assert.Equal(t, int64(4), stepExecution.LastCommittedOffset)
}

func TestChunkStepSkipsMalformedRecord(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{
		items:    items(3),
		failures: map[int]recordFailure{1: {err: errors.New("bad field count")}},
	}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 1)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, stepExecution.Status)
	assert.Equal(t, 3, stepExecution.ReadCount, "a skipped record still counts as read")
	assert.Equal(t, 2, stepExecution.WriteCount)
	assert.Equal(t, 1, stepExecution.SkipReadCount)
	assert.Equal(t, 1, stepExecution.SkipCount())

	skipped, err := repo.FindSkippedRecords(context.Background(), stepExecution.ID)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, model.SkipPhaseRead, skipped[0].Phase)
	assert.Equal(t, int64(1), skipped[0].Offset)
	assert.Equal(t, "raw-1", skipped[0].RawContent)
}

func TestChunkStepFailsWhenSkipLimitExceeded(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{
		items: items(4),
		failures: map[int]recordFailure{
			1: {err: errors.New("bad record")},
			2: {err: errors.New("bad record")},
		},
	}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 1)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.Error(t, err)
	assert.ErrorIs(t, err, chunk.ErrSkipLimitExceeded)
	assert.Equal(t, model.StatusFailed, stepExecution.Status)
}

func TestChunkStepFailedChunkSkipContextIsObservable(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{
		items: items(4),
		failures: map[int]recordFailure{
			1: {err: errors.New("bad record")},
			2: {err: errors.New("bad record")},
		},
	}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 1)
	listener := &capturingSkipListener{}

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
		chunk.WithSkipListeners[testItem, testItem](listener),
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.ErrorIs(t, err, chunk.ErrSkipLimitExceeded)

	// The skip that consumed the budget was surfaced with its record
	// context even though its chunk never committed.
	require.Len(t, listener.readOffsets, 1)
	assert.Equal(t, int64(1), listener.readOffsets[0])

	// No audit row outlives the rolled-back chunk; a restart re-reads the
	// record and commits the row with the chunk that finally succeeds.
	skipped, err := repo.FindSkippedRecords(context.Background(), stepExecution.ID)
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestChunkStepSkipBudgetResetsPerExecution(t *testing.T) {
	repo := memory.NewRepository()
	reader := &stubReader{
		items:    items(3),
		failures: map[int]recordFailure{0: {err: errors.New("bad record")}},
	}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 1)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	jobExecution, stepExecution := newExecution(t, repo)
	require.NoError(t, step.Execute(context.Background(), jobExecution, stepExecution))
	assert.Equal(t, model.StatusCompleted, stepExecution.Status)
	assert.Equal(t, 1, stepExecution.SkipCount())

	// The same long-lived step serves the next execution with a fresh
	// budget instead of the previous run's spent one.
	jobExecution2, stepExecution2 := newExecution(t, repo)
	require.NoError(t, step.Execute(context.Background(), jobExecution2, stepExecution2))
	assert.Equal(t, model.StatusCompleted, stepExecution2.Status)
	assert.Equal(t, 1, stepExecution2.SkipCount())
}

func TestChunkStepSkipDisabledFailsOnFirstBadRecord(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{
		items:    items(3),
		failures: map[int]recordFailure{0: {err: errors.New("bad record")}},
	}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.Error(t, err)
	assert.ErrorIs(t, err, chunk.ErrSkipLimitExceeded)
	assert.Equal(t, model.StatusFailed, stepExecution.Status)
	assert.Equal(t, 0, stepExecution.WriteCount)
}

func TestChunkStepRetriesIdenticalChunk(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(3)}
	writer := &stubWriter{failsLeft: 2}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, stepExecution.Status)
	assert.Equal(t, 3, writer.writeCalls, "two failed attempts plus the successful one")
	assert.Equal(t, 1, len(writer.chunks), "the chunk commits exactly once")
	assert.Equal(t, 3, writer.written())
	assert.Equal(t, 3, stepExecution.WriteCount)
	assert.Equal(t, 1, stepExecution.CommitCount)
	assert.Equal(t, 2, stepExecution.RollbackCount)
}

func TestChunkStepWriteRetryExhausted(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(2)}
	writer := &stubWriter{failForever: true}
	retryPolicy, skipPolicy := testPolicies(2, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.Error(t, err)
	assert.ErrorIs(t, err, chunk.ErrWriteExhausted)
	assert.Equal(t, model.StatusFailed, stepExecution.Status)
	assert.Equal(t, 2, writer.writeCalls)
	assert.Equal(t, 0, stepExecution.WriteCount, "counters roll back with the transaction")
	assert.Equal(t, 0, stepExecution.CommitCount)
	assert.Equal(t, 2, stepExecution.RollbackCount)
}

func TestChunkStepNonRetryableWriteFailsImmediately(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(2)}
	writer := &stubWriter{
		failForever: true,
		failWith:    exception.NewFatalError("writer", "constraint violation", errors.New("duplicate key")),
	}
	retryPolicy, skipPolicy := testPolicies(5, 0)

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, stepExecution.Status)
	assert.Equal(t, 1, writer.writeCalls, "non-retryable failures are not retried")
}

func TestChunkStepStopsAtChunkBoundary(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(6)}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, writer, 2,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
		chunk.WithChunkListeners[testItem, testItem](&stopAfterCommit{cancel: cancel}),
	)

	err := step.Execute(ctx, jobExecution, stepExecution)
	require.NoError(t, err, "a stop is not a failure")

	assert.Equal(t, model.StatusStopped, stepExecution.Status)
	assert.Equal(t, 1, stepExecution.CommitCount, "the in-flight chunk commits before stopping")
	assert.Equal(t, 2, stepExecution.WriteCount)
	assert.Equal(t, int64(2), stepExecution.LastCommittedOffset)
}

func TestChunkStepResumesFromCommittedOffset(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(6)}
	// Fail permanently once the second chunk is attempted.
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(2, 0)

	firstWriter := &failSecondChunkWriter{inner: writer}
	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, passthrough{}, firstWriter, 3,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	err := step.Execute(context.Background(), jobExecution, stepExecution)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, stepExecution.Status)
	assert.Equal(t, 3, stepExecution.WriteCount)
	assert.Equal(t, int64(3), stepExecution.LastCommittedOffset)

	// Restart: a fresh step execution carries the committed context forward.
	restarted := stepExecution.CopyForRestart(jobExecution.ID)
	require.NoError(t, repo.SaveStepExecution(context.Background(), restarted))

	resumeReader := &stubReader{items: items(6)}
	resumeWriter := &stubWriter{}
	step2 := chunk.NewChunkStep[testItem, testItem](
		"test-step", resumeReader, passthrough{}, resumeWriter, 3,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	require.NoError(t, step2.Execute(context.Background(), jobExecution, restarted))
	assert.Equal(t, model.StatusCompleted, restarted.Status)
	assert.Equal(t, [][]testItem{{{3, "item-3"}, {4, "item-4"}, {5, "item-5"}}}, resumeWriter.chunks,
		"only the records past the last committed offset are re-read")
	assert.Equal(t, 6, restarted.WriteCount, "restart carries the committed write count forward")
	assert.Equal(t, int64(6), restarted.LastCommittedOffset)
}

func TestChunkStepFiltersItems(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(4)}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 0)

	filterOdd := filterProcessor{keep: func(it testItem) bool { return it.ID%2 == 0 }}
	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, filterOdd, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	require.NoError(t, step.Execute(context.Background(), jobExecution, stepExecution))
	assert.Equal(t, 4, stepExecution.ReadCount)
	assert.Equal(t, 2, stepExecution.FilterCount)
	assert.Equal(t, 2, stepExecution.WriteCount)
	assert.Equal(t, stepExecution.ReadCount,
		stepExecution.WriteCount+stepExecution.FilterCount+stepExecution.SkipCount())
}

func TestChunkStepProcessSkipCounted(t *testing.T) {
	repo := memory.NewRepository()
	jobExecution, stepExecution := newExecution(t, repo)
	reader := &stubReader{items: items(3)}
	writer := &stubWriter{}
	retryPolicy, skipPolicy := testPolicies(3, 2)

	rejectOne := filterProcessor{
		keep: func(it testItem) bool { return true },
		reject: func(it testItem) error {
			if it.ID == 1 {
				return exception.NewSkippableError("processor", "value out of range", nil)
			}
			return nil
		},
	}
	step := chunk.NewChunkStep[testItem, testItem](
		"test-step", reader, rejectOne, writer, 10,
		retryPolicy, skipPolicy, memory.NewTxManager(), repo,
	)

	require.NoError(t, step.Execute(context.Background(), jobExecution, stepExecution))
	assert.Equal(t, 1, stepExecution.SkipProcessCount)
	assert.Equal(t, 2, stepExecution.WriteCount)

	skipped, err := repo.FindSkippedRecords(context.Background(), stepExecution.ID)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, model.SkipPhaseProcess, skipped[0].Phase)
}

// passthrough hands items through unchanged.
type passthrough struct{}

func (passthrough) Process(ctx context.Context, item testItem) (testItem, error) {
	return item, nil
}

// filterProcessor filters by predicate and optionally rejects items.
type filterProcessor struct {
	keep   func(testItem) bool
	reject func(testItem) error
}

func (p filterProcessor) Process(ctx context.Context, item testItem) (testItem, error) {
	if p.reject != nil {
		if err := p.reject(item); err != nil {
			return testItem{}, err
		}
	}
	if !p.keep(item) {
		return testItem{}, port.ErrFilterItem
	}
	return item, nil
}

// failSecondChunkWriter lets the first chunk through, then fails every
// write with a retryable error.
type failSecondChunkWriter struct {
	inner  *stubWriter
	chunks int
}

func (w *failSecondChunkWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}
func (w *failSecondChunkWriter) Close(ctx context.Context) error { return nil }

func (w *failSecondChunkWriter) Write(ctx context.Context, items []testItem) error {
	if w.chunks >= 1 {
		return exception.NewRetryableError("writer", "target unavailable", errors.New("connection refused"))
	}
	if err := w.inner.Write(ctx, items); err != nil {
		return err
	}
	w.chunks++
	return nil
}
