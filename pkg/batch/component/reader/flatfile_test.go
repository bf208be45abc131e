package reader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/shorebreak/pkg/batch/component/reader"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

type row struct {
	ID   int
	Name string
}

var rowMapper = reader.RecordMapperFunc[row](func(ctx context.Context, rec reader.RawRecord) (row, error) {
	parts := strings.Split(rec.Content, ",")
	if len(parts) != 2 {
		return row{}, errors.New("expected 2 fields")
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return row{}, err
	}
	return row{ID: id, Name: parts[1]}, nil
})

func writeSource(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func readAll(t *testing.T, r *reader.FlatFileItemReader[row]) []row {
	t.Helper()
	ctx := context.Background()
	var out []row
	for {
		item, err := r.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			return out
		}
		require.NoError(t, err)
		out = append(out, item)
	}
}

func TestFlatFileReaderReadsAllRecords(t *testing.T) {
	path := writeSource(t, "1,alpha", "2,beta", "3,gamma")
	r := reader.NewFlatFileItemReader[row](path, false, rowMapper)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	items := readAll(t, r)
	assert.Equal(t, []row{{1, "alpha"}, {2, "beta"}, {3, "gamma"}}, items)

	// The source stays exhausted.
	_, err := r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestFlatFileReaderSkipsHeader(t *testing.T) {
	path := writeSource(t, "id,name", "1,alpha", "2,beta")
	r := reader.NewFlatFileItemReader[row](path, true, rowMapper)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	items := readAll(t, r)
	assert.Equal(t, []row{{1, "alpha"}, {2, "beta"}}, items)

	// The header does not count as a record.
	ec, err := r.GetExecutionContext(ctx)
	require.NoError(t, err)
	off, ok := ec.GetInt64(port.OffsetContextKey)
	require.True(t, ok)
	assert.Equal(t, int64(2), off)
}

func TestFlatFileReaderMappingFailureIsSkippable(t *testing.T) {
	path := writeSource(t, "1,alpha", "not-a-row", "3,gamma")
	r := reader.NewFlatFileItemReader[row](path, false, rowMapper)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	first, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, row{1, "alpha"}, first)

	_, err = r.Read(ctx)
	require.Error(t, err)
	assert.True(t, exception.IsSkippable(err))

	var recErr *reader.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, int64(2), recErr.Offset, "offsets are 1-based line positions")
	assert.Equal(t, "not-a-row", recErr.Raw)

	// The bad line is consumed; reading continues past it.
	third, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, row{3, "gamma"}, third)
}

func TestFlatFileReaderReportsFirstLineAsOffsetOne(t *testing.T) {
	path := writeSource(t, "not-a-row")
	r := reader.NewFlatFileItemReader[row](path, false, rowMapper)

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	_, err := r.Read(ctx)
	require.Error(t, err)

	var detail port.RecordDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, int64(1), detail.RecordOffset())
	assert.Equal(t, "not-a-row", detail.RecordContent())
}

func TestFlatFileReaderResumesFromOffset(t *testing.T) {
	path := writeSource(t, "id,name", "1,alpha", "2,beta", "3,gamma", "4,delta")
	r := reader.NewFlatFileItemReader[row](path, true, rowMapper)

	ec := model.NewExecutionContext()
	ec.Put(port.OffsetContextKey, int64(2))

	ctx := context.Background()
	require.NoError(t, r.Open(ctx, ec))
	defer r.Close(ctx)

	items := readAll(t, r)
	assert.Equal(t, []row{{3, "gamma"}, {4, "delta"}}, items,
		"records before the committed offset are never re-read")
}

func TestFlatFileReaderMissingSourceIsFatal(t *testing.T) {
	r := reader.NewFlatFileItemReader[row]("/nonexistent/source.csv", false, rowMapper)

	err := r.Open(context.Background(), model.NewExecutionContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, reader.ErrSourceUnavailable)
	assert.False(t, exception.IsSkippable(err))
	assert.False(t, exception.IsRetryable(err))
}

func TestFlatFileReaderHonorsContextCancellation(t *testing.T) {
	path := writeSource(t, "1,alpha")
	r := reader.NewFlatFileItemReader[row](path, false, rowMapper)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(context.Background())

	cancel()
	_, err := r.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
