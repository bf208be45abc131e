package reader

import (
	"bufio"
	"context"
	"os"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

const moduleName = "flatfile_reader"

// FlatFileItemReader reads a line-oriented file and maps every line to a
// domain record of type T. The reader exposes its position through the
// execution context, so a restarted step resumes past the records already
// committed and never re-reads them.
type FlatFileItemReader[T any] struct {
	path       string
	skipHeader bool
	mapper     RecordMapper[T]

	file    *os.File
	scanner *bufio.Scanner
	offset  int64
}

// NewFlatFileItemReader creates a reader for the given file. When
// skipHeader is set the first line is discarded and does not count as a
// record.
func NewFlatFileItemReader[T any](path string, skipHeader bool, mapper RecordMapper[T]) *FlatFileItemReader[T] {
	return &FlatFileItemReader[T]{
		path:       path,
		skipHeader: skipHeader,
		mapper:     mapper,
	}
}

// Open opens the source and restores the position saved at the last commit.
// An unreadable source is a fatal failure, never a skippable one.
func (r *FlatFileItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	f, err := os.Open(r.path)
	if err != nil {
		return exception.NewFatalError(moduleName, "failed to open record source "+r.path,
			&sourceError{path: r.path, err: err})
	}
	r.file = f
	r.scanner = bufio.NewScanner(f)

	if r.skipHeader && r.scanner.Scan() {
		logger.Debugf("discarded header line of %s", r.path)
	}

	r.offset = 0
	if resume, ok := ec.GetInt64(port.OffsetContextKey); ok && resume > 0 {
		for r.offset < resume {
			if !r.scanner.Scan() {
				break
			}
			r.offset++
		}
		logger.Infof("record source %s resumed at offset %d", r.path, r.offset)
	}
	return nil
}

// Read returns the next mapped record. A mapping failure is skippable and
// carries the offset and raw line of the failing record; the offset still
// advances so the bad line is never revisited.
func (r *FlatFileItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.scanner == nil {
		return zero, exception.NewFatalError(moduleName, "reader not opened", ErrSourceUnavailable)
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return zero, exception.NewFatalError(moduleName, "failed to read from "+r.path, err)
		}
		return zero, port.ErrNoMoreItems
	}

	r.offset++
	raw := RawRecord{Offset: r.offset, Content: r.scanner.Text()}

	mapped, err := r.mapper.Map(ctx, raw)
	if err != nil {
		return zero, exception.NewSkippableError(moduleName, "failed to map record",
			&RecordError{Offset: raw.Offset, Raw: raw.Content, Err: err})
	}
	return mapped, nil
}

// Close releases the underlying file.
func (r *FlatFileItemReader[T]) Close(ctx context.Context) error {
	r.scanner = nil
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// GetExecutionContext exposes the number of records consumed so far, which
// equals the 1-based position of the last consumed record.
func (r *FlatFileItemReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(port.OffsetContextKey, r.offset)
	return ec, nil
}

// sourceError ties an unreadable source path to ErrSourceUnavailable.
type sourceError struct {
	path string
	err  error
}

func (e *sourceError) Error() string {
	return "source " + e.path + ": " + e.err.Error()
}

func (e *sourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.err}
}

var _ port.ItemReader[any] = (*FlatFileItemReader[any])(nil)
