// Package writer provides item writers for chunk-oriented steps.
package writer

import (
	"context"

	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/tx"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

const moduleName = "sql_bulk_writer"

// SqlBulkWriter writes a whole chunk into one table with a bulk upsert.
// It joins the transaction the engine opened for the chunk, so the written
// rows and the execution metadata commit or roll back together. The upsert
// keeps retried chunks idempotent: rows already inserted by a failed
// attempt are overwritten, never duplicated.
type SqlBulkWriter[T any] struct {
	table           string
	conflictColumns []string
	updateColumns   []string
}

// NewSqlBulkWriter creates a writer targeting the given table.
// conflictColumns identify a logical row; updateColumns are refreshed when
// an insert collides with an existing row.
func NewSqlBulkWriter[T any](table string, conflictColumns, updateColumns []string) *SqlBulkWriter[T] {
	return &SqlBulkWriter[T]{
		table:           table,
		conflictColumns: conflictColumns,
		updateColumns:   updateColumns,
	}
}

// Open is a no-op; the writer binds to a transaction per chunk.
func (w *SqlBulkWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// Write upserts the items through the transaction in the context.
func (w *SqlBulkWriter[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	txn, ok := tx.FromContext(ctx)
	if !ok {
		return exception.NewFatalError(moduleName, "no transaction in context for table "+w.table, nil)
	}
	rows, err := txn.ExecuteUpsert(ctx, items, w.table, w.conflictColumns, w.updateColumns)
	if err != nil {
		return exception.NewRetryableError(moduleName, "bulk upsert into "+w.table+" failed", err)
	}
	logger.Debugf("upserted %d rows into %s (%d affected)", len(items), w.table, rows)
	return nil
}

// Close is a no-op.
func (w *SqlBulkWriter[T]) Close(ctx context.Context) error {
	return nil
}

var _ port.ItemWriter[any] = (*SqlBulkWriter[any])(nil)
