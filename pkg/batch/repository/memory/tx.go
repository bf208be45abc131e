package memory

import (
	"context"
	"database/sql"

	"github.com/tigerroll/shorebreak/pkg/batch/core/tx"
)

// TxManager is a no-op TransactionManager paired with the in-memory
// repository. Commit cycles still run through it so engine code exercises
// the same path as with a real database.
type TxManager struct{}

// NewTxManager creates a no-op transaction manager.
func NewTxManager() *TxManager {
	return &TxManager{}
}

// Begin returns a no-op transaction.
func (m *TxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	return &noopTx{}, nil
}

// Commit is a no-op.
func (m *TxManager) Commit(t tx.Tx) error {
	return nil
}

// Rollback is a no-op.
func (m *TxManager) Rollback(t tx.Tx) error {
	return nil
}

type noopTx struct{}

func (t *noopTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return 0, nil
}

func (t *noopTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return 0, nil
}

var _ tx.TransactionManager = (*TxManager)(nil)
