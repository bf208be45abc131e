// Package chunk implements the chunk-oriented step: records are read and
// processed one at a time, accumulated into fixed-size chunks, and each
// chunk is written and checkpointed under a single transaction.
package chunk

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/shorebreak/pkg/batch/core/metrics"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	"github.com/tigerroll/shorebreak/pkg/batch/core/tx"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/retry"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/skip"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

const moduleName = "chunk_step"

var (
	// ErrWriteExhausted is returned when a chunk write keeps failing after
	// the configured number of attempts.
	ErrWriteExhausted = errors.New("chunk write retry attempts exhausted")

	// ErrSkipLimitExceeded is returned when a skippable failure occurs after
	// the skip limit has been reached.
	ErrSkipLimitExceeded = errors.New("skip limit exceeded")

	// errStopRequested signals a stop honored at a chunk boundary.
	errStopRequested = errors.New("stop requested")
)

// ChunkStep drives one reader, processor and writer through the chunk
// commit cycle. I is the item type produced by the reader, O the type
// handed to the writer.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]

	chunkSize    int
	writeTimeout time.Duration
	retryPolicy  retry.RetryPolicy
	skipPolicy   skip.SkipPolicy

	txManager tx.TransactionManager
	repo      repository.JobRepository
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer

	stepListeners  []port.StepExecutionListener
	chunkListeners []port.ChunkListener
	skipListeners  []port.SkipListener
	retryListeners []port.RetryListener
}

// Option configures optional collaborators of a ChunkStep.
type Option[I, O any] func(*ChunkStep[I, O])

// WithWriteTimeout bounds every single writer call. An expired deadline is
// treated as a retryable write failure.
func WithWriteTimeout[I, O any](d time.Duration) Option[I, O] {
	return func(s *ChunkStep[I, O]) { s.writeTimeout = d }
}

// WithStepListeners registers step lifecycle listeners.
func WithStepListeners[I, O any](l ...port.StepExecutionListener) Option[I, O] {
	return func(s *ChunkStep[I, O]) { s.stepListeners = append(s.stepListeners, l...) }
}

// WithChunkListeners registers chunk lifecycle listeners.
func WithChunkListeners[I, O any](l ...port.ChunkListener) Option[I, O] {
	return func(s *ChunkStep[I, O]) { s.chunkListeners = append(s.chunkListeners, l...) }
}

// WithSkipListeners registers skip listeners.
func WithSkipListeners[I, O any](l ...port.SkipListener) Option[I, O] {
	return func(s *ChunkStep[I, O]) { s.skipListeners = append(s.skipListeners, l...) }
}

// WithRetryListeners registers retry listeners.
func WithRetryListeners[I, O any](l ...port.RetryListener) Option[I, O] {
	return func(s *ChunkStep[I, O]) { s.retryListeners = append(s.retryListeners, l...) }
}

// WithMetrics wires a metric recorder and tracer.
func WithMetrics[I, O any](rec metrics.MetricRecorder, tr metrics.Tracer) Option[I, O] {
	return func(s *ChunkStep[I, O]) {
		if rec != nil {
			s.recorder = rec
		}
		if tr != nil {
			s.tracer = tr
		}
	}
}

// NewChunkStep assembles a chunk-oriented step. chunkSize must be at least 1.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	retryPolicy retry.RetryPolicy,
	skipPolicy skip.SkipPolicy,
	txManager tx.TransactionManager,
	repo repository.JobRepository,
	opts ...Option[I, O],
) *ChunkStep[I, O] {
	if chunkSize < 1 {
		chunkSize = 1
	}
	s := &ChunkStep[I, O]{
		name:        name,
		reader:      reader,
		processor:   processor,
		writer:      writer,
		chunkSize:   chunkSize,
		retryPolicy: retryPolicy,
		skipPolicy:  skipPolicy,
		txManager:   txManager,
		repo:        repo,
		recorder:    metrics.NewNoOpMetricRecorder(),
		tracer:      metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string {
	return s.name
}

// chunkBuffer accumulates the in-memory state of one commit cycle: the
// processed items plus the skip audit rows surfaced while filling it.
type chunkBuffer[O any] struct {
	items []O
	skips []*model.SkippedRecord
}

func (b *chunkBuffer[O]) reset() {
	b.items = b.items[:0]
	b.skips = nil
}

// Execute runs the chunk loop for one step execution. Counters and the
// reader checkpoint are persisted in the same transaction as every chunk,
// so a crash between commits never loses or duplicates records.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	if err := stepExecution.MarkAsStarted(); err != nil {
		return exception.NewFatalError(moduleName, "failed to mark step execution as started", err)
	}
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewFatalError(moduleName, "failed to persist started step execution", err)
	}

	// The step may be executed again for a new or restarted execution; the
	// skip budget belongs to the execution, not to this long-lived step.
	s.skipPolicy.Reset(stepExecution.SkipCount())

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	s.recorder.RecordStepStart(ctx, stepExecution)
	start := time.Now()
	defer func() {
		s.recorder.RecordStepEnd(ctx, stepExecution)
		s.recorder.RecordDuration(ctx, "batch_step_duration_seconds", time.Since(start), map[string]string{
			"step_name": s.name,
			"status":    stepExecution.Status.String(),
		})
	}()

	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	defer func() {
		for _, l := range s.stepListeners {
			l.AfterStep(ctx, stepExecution)
		}
	}()

	err := s.run(ctx, stepExecution)

	switch {
	case err == nil:
		if mErr := stepExecution.MarkAsCompleted(); mErr != nil {
			err = exception.NewFatalError(moduleName, "failed to mark step execution as completed", mErr)
		}
	case errors.Is(err, errStopRequested) || errors.Is(err, context.Canceled):
		logger.Infof("step %s stopped at chunk boundary", s.name)
		if mErr := stepExecution.MarkAsStopped(); mErr != nil {
			stepExecution.AddFailureException(mErr)
		}
		err = nil
	default:
		s.tracer.RecordError(ctx, moduleName, err)
		if mErr := stepExecution.MarkAsFailed(err); mErr != nil {
			stepExecution.AddFailureException(mErr)
		}
	}

	if uErr := s.repo.UpdateStepExecution(ctx, stepExecution); uErr != nil {
		logger.Errorf("failed to persist final state of step %s: %v", s.name, uErr)
		if err == nil {
			err = exception.NewFatalError(moduleName, "failed to persist final step execution state", uErr)
		}
	}
	return err
}

func (s *ChunkStep[I, O]) run(ctx context.Context, stepExecution *model.StepExecution) error {
	if err := s.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(moduleName, "failed to open reader", err, false, false)
	}
	defer func() {
		if cErr := s.reader.Close(ctx); cErr != nil {
			logger.Warnf("failed to close reader for step %s: %v", s.name, cErr)
		}
	}()

	if err := s.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(moduleName, "failed to open writer", err, false, false)
	}
	defer func() {
		if cErr := s.writer.Close(ctx); cErr != nil {
			logger.Warnf("failed to close writer for step %s: %v", s.name, cErr)
		}
	}()

	buf := &chunkBuffer[O]{items: make([]O, 0, s.chunkSize)}
	exhausted := false

	for !exhausted {
		// Stop requests are honored here, between chunks, never mid-chunk.
		select {
		case <-ctx.Done():
			return errStopRequested
		default:
		}

		buf.reset()
		var err error
		exhausted, err = s.fillChunk(ctx, stepExecution, buf)
		if err != nil {
			// Skip rows buffered for this uncommitted chunk stay
			// unpersisted: a restart re-reads the records and commits
			// their rows with the chunk that finally succeeds. The skip
			// listeners and the log already carried the record context.
			return err
		}

		// An exhausted source with an empty buffer commits nothing.
		if len(buf.items) == 0 && len(buf.skips) == 0 {
			continue
		}

		if err := s.commitChunk(ctx, stepExecution, buf); err != nil {
			return err
		}
	}
	return nil
}

// fillChunk reads and processes records until the buffer holds a full chunk
// or the source is exhausted. Skippable failures are counted, audited and
// skipped; anything else aborts the step.
func (s *ChunkStep[I, O]) fillChunk(ctx context.Context, stepExecution *model.StepExecution, buf *chunkBuffer[O]) (exhausted bool, err error) {
	for len(buf.items) < s.chunkSize {
		item, readErr := s.reader.Read(ctx)
		if readErr != nil {
			if errors.Is(readErr, port.ErrNoMoreItems) {
				return true, nil
			}
			if errors.Is(readErr, context.Canceled) {
				return false, errStopRequested
			}
			if skipErr := s.trySkip(ctx, stepExecution, model.SkipPhaseRead, readErr); skipErr != nil {
				return false, skipErr
			}
			// A skipped malformed record still advances the read count.
			stepExecution.ReadCount++
			stepExecution.SkipReadCount++
			buf.skips = append(buf.skips, s.buildSkipRecord(stepExecution, model.SkipPhaseRead, readErr))
			for _, l := range s.skipListeners {
				l.OnSkipRead(ctx, readErr)
			}
			s.recorder.RecordItemSkip(ctx, s.name, string(model.SkipPhaseRead), exception.Message(readErr))
			continue
		}

		stepExecution.ReadCount++
		s.recorder.RecordItemRead(ctx, s.name)

		out, procErr := s.processor.Process(ctx, item)
		if procErr != nil {
			if errors.Is(procErr, port.ErrFilterItem) {
				stepExecution.FilterCount++
				continue
			}
			if errors.Is(procErr, context.Canceled) {
				return false, errStopRequested
			}
			if skipErr := s.trySkip(ctx, stepExecution, model.SkipPhaseProcess, procErr); skipErr != nil {
				return false, skipErr
			}
			stepExecution.SkipProcessCount++
			buf.skips = append(buf.skips, s.buildSkipRecord(stepExecution, model.SkipPhaseProcess, procErr))
			for _, l := range s.skipListeners {
				l.OnSkipProcess(ctx, item, procErr)
			}
			s.recorder.RecordItemSkip(ctx, s.name, string(model.SkipPhaseProcess), exception.Message(procErr))
			continue
		}

		s.recorder.RecordItemProcess(ctx, s.name)
		buf.items = append(buf.items, out)
	}
	return false, nil
}

// trySkip consults the skip policy. A nil return means the caller may skip
// the record; otherwise the returned error fails the step.
func (s *ChunkStep[I, O]) trySkip(ctx context.Context, stepExecution *model.StepExecution, phase model.SkipPhase, cause error) error {
	if !exception.IsSkippable(cause) {
		return exception.NewBatchError(moduleName, "record failure is not skippable", cause, false, false)
	}
	if !s.skipPolicy.ShouldSkip(cause) {
		return exception.NewBatchError(moduleName,
			"skip limit reached, failing step", errors.Join(ErrSkipLimitExceeded, cause), false, false)
	}
	s.skipPolicy.IncrementSkipCount()
	logger.Debugf("step %s skipping record in phase %s: %v", s.name, phase, cause)
	return nil
}

func (s *ChunkStep[I, O]) buildSkipRecord(stepExecution *model.StepExecution, phase model.SkipPhase, cause error) *model.SkippedRecord {
	var offset int64 = -1
	raw := ""
	var detail port.RecordDetail
	if errors.As(cause, &detail) {
		offset = detail.RecordOffset()
		raw = detail.RecordContent()
	}
	return model.NewSkippedRecord(stepExecution.ID, phase, offset, raw, exception.Message(cause))
}

// commitChunk writes the buffered items and persists counters, checkpoint
// and skip audit rows under one transaction. On failure the identical
// in-memory chunk is retried per the retry policy; the source is never
// re-read.
func (s *ChunkStep[I, O]) commitChunk(ctx context.Context, stepExecution *model.StepExecution, buf *chunkBuffer[O]) error {
	maxAttempts := s.retryPolicy.GetMaxAttempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			for _, l := range s.retryListeners {
				l.OnRetryWrite(ctx, attempt, lastErr)
			}
			s.recorder.RecordWriteRetry(ctx, s.name, exception.Message(lastErr))
			interval := s.retryPolicy.GetBackoffInterval(attempt - 1)
			logger.Warnf("step %s retrying chunk write, attempt %d/%d after %s: %v",
				s.name, attempt, maxAttempts, interval, lastErr)
			select {
			case <-ctx.Done():
				return errStopRequested
			case <-time.After(interval):
			}
		}

		lastErr = s.attemptCommit(ctx, stepExecution, buf)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, errStopRequested) || errors.Is(lastErr, context.Canceled) {
			return errStopRequested
		}
		if !s.retryPolicy.ShouldRetry(lastErr) {
			return exception.NewBatchError(moduleName, "chunk write failed with non-retryable error", lastErr, false, false)
		}
	}
	return exception.NewBatchError(moduleName,
		"chunk write failed after all attempts", errors.Join(ErrWriteExhausted, lastErr), false, false)
}

// attemptCommit runs one full commit cycle. Counter mutations are rolled
// back in memory when the transaction rolls back, keeping the execution
// consistent with the database.
func (s *ChunkStep[I, O]) attemptCommit(ctx context.Context, stepExecution *model.StepExecution, buf *chunkBuffer[O]) (err error) {
	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, stepExecution)
	}

	snapshot := *stepExecution

	txn, err := s.txManager.Begin(ctx)
	if err != nil {
		return exception.NewRetryableError(moduleName, "failed to begin chunk transaction", err)
	}
	txCtx := tx.WithTx(ctx, txn)

	defer func() {
		if err != nil {
			if rbErr := s.txManager.Rollback(txn); rbErr != nil {
				logger.Errorf("failed to roll back chunk transaction for step %s: %v", s.name, rbErr)
			}
			// Restore counters, then account for the rollback itself.
			rollbacks := stepExecution.RollbackCount + 1
			*stepExecution = snapshot
			stepExecution.RollbackCount = rollbacks
			for _, l := range s.chunkListeners {
				l.AfterChunkRollback(ctx, stepExecution)
			}
			s.recorder.RecordChunkRollback(ctx, s.name)
		}
	}()

	if len(buf.items) > 0 {
		if err = s.writeItems(txCtx, buf.items); err != nil {
			return err
		}
		stepExecution.WriteCount += len(buf.items)
		s.recorder.RecordItemWrite(ctx, s.name, len(buf.items))
	}

	readerEC, ecErr := s.reader.GetExecutionContext(ctx)
	if ecErr != nil {
		err = exception.NewBatchError(moduleName, "failed to collect reader execution context", ecErr, false, false)
		return err
	}
	stepExecution.ExecutionContext.Merge(readerEC)
	if offset, ok := readerEC.GetInt64(port.OffsetContextKey); ok {
		stepExecution.LastCommittedOffset = offset
	}
	stepExecution.CommitCount++

	if err = s.repo.SaveCheckpoint(txCtx, model.NewCheckpointData(stepExecution.ID, stepExecution.LastCommittedOffset, stepExecution.ExecutionContext)); err != nil {
		err = exception.NewRetryableError(moduleName, "failed to persist checkpoint", err)
		return err
	}
	for _, rec := range buf.skips {
		if err = s.repo.SaveSkippedRecord(txCtx, rec); err != nil {
			err = exception.NewRetryableError(moduleName, "failed to persist skipped record", err)
			return err
		}
	}
	if err = s.repo.UpdateStepExecution(txCtx, stepExecution); err != nil {
		err = exception.NewRetryableError(moduleName, "failed to persist step execution counters", err)
		return err
	}

	if err = s.txManager.Commit(txn); err != nil {
		err = exception.NewRetryableError(moduleName, "failed to commit chunk transaction", err)
		return err
	}

	for _, l := range s.chunkListeners {
		l.AfterChunkCommit(ctx, stepExecution)
	}
	s.recorder.RecordChunkCommit(ctx, s.name, len(buf.items))
	logger.Debugf("step %s committed chunk of %d items, offset %d",
		s.name, len(buf.items), stepExecution.LastCommittedOffset)
	return nil
}

// writeItems invokes the writer, bounded by the configured write timeout.
func (s *ChunkStep[I, O]) writeItems(ctx context.Context, items []O) error {
	wctx := ctx
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	if err := s.writer.Write(wctx, items); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exception.NewRetryableError(moduleName, "chunk write timed out", err)
		}
		return err
	}
	return nil
}

var _ port.Step = &ChunkStep[any, any]{}
