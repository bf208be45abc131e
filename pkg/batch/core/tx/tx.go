// Package tx abstracts the transaction boundary under which the chunk loop
// commits chunk data and execution metadata together.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines the write operations available inside a transaction.
// It is embedded in Tx so writers and repositories can share one executor
// regardless of the backing database.
type TxExecutor interface {
	// ExecuteUpdate performs an INSERT, UPDATE or DELETE on the given table.
	// operation selects the statement kind ("CREATE", "UPDATE", "DELETE");
	// query supplies key-value conditions combined with AND.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts the given rows, updating updateColumns when the
	// conflictColumns collide with an existing row. Retried chunk writes rely
	// on this to stay idempotent.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type txKey struct{}

// WithTx stores a transaction in the context so components invoked inside a
// commit cycle write through the same transaction.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext extracts the transaction stored by WithTx.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok
}
