// Package reader provides record sources and the mapping from raw source
// records to domain records.
package reader

import (
	"context"
	"errors"
	"fmt"
)

// ErrSourceUnavailable is returned when the record source cannot be opened
// at all. It is never skippable; the step fails immediately.
var ErrSourceUnavailable = errors.New("record source unavailable")

// RawRecord is one uninterpreted record pulled from a source, together with
// its position. Offset is the 1-based position of the record in the source;
// a skipped header line does not count.
type RawRecord struct {
	Offset  int64
	Content string
}

// RecordMapper converts a raw source record into a typed domain record.
// A mapping failure is judged by the skip policy like any record failure.
type RecordMapper[T any] interface {
	Map(ctx context.Context, record RawRecord) (T, error)
}

// RecordMapperFunc adapts a plain function to RecordMapper.
type RecordMapperFunc[T any] func(ctx context.Context, record RawRecord) (T, error)

// Map invokes the function.
func (f RecordMapperFunc[T]) Map(ctx context.Context, record RawRecord) (T, error) {
	return f(ctx, record)
}

// RecordError carries the offset and raw content of the record that caused
// a failure, so skip audit rows can identify exactly what was dropped.
type RecordError struct {
	Offset int64
	Raw    string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record at offset %d: %v", e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// RecordOffset returns the source position of the failing record.
func (e *RecordError) RecordOffset() int64 {
	return e.Offset
}

// RecordContent returns the raw content of the failing record.
func (e *RecordError) RecordContent() string {
	return e.Raw
}
