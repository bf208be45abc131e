package gorm_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	gormlib "gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	dbconfig "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/shorebreak/pkg/batch/component/writer"
	"github.com/tigerroll/shorebreak/pkg/batch/core/tx"
	"github.com/tigerroll/shorebreak/pkg/batch/support/exception"
)

type testProduct struct {
	SKU  string `gorm:"column:sku;primaryKey"`
	Name string `gorm:"column:name"`
}

func (testProduct) TableName() string { return "products" }

func newMockAdapter(t *testing.T) (*gormadapter.GormDBAdapter, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gormlib.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gormlib.Config{Logger: gorm_logger.Default.LogMode(gorm_logger.Silent)})
	require.NoError(t, err)

	adapter, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "metadata")
	require.NoError(t, err)
	return adapter, mock
}

func TestExecuteQueryScansRows(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT \\* FROM .products. WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"sku", "name"}).
			AddRow("SB-0001", "wax").
			AddRow("SB-0002", "leash"))

	var out []testProduct
	err := adapter.ExecuteQuery(context.Background(), &out, map[string]interface{}{"name": "wax"})
	require.NoError(t, err)
	assert.Equal(t, []testProduct{{"SB-0001", "wax"}, {"SB-0002", "leash"}}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryAdvancedOrdersAndLimits(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT \\* FROM .products. ORDER BY sku DESC LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"sku", "name"}).AddRow("SB-0002", "leash"))

	var out []testProduct
	err := adapter.ExecuteQueryAdvanced(context.Background(), &out, nil, "sku DESC", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdateCreate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("INSERT INTO .products.").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := adapter.ExecuteUpdate(context.Background(),
		&testProduct{SKU: "SB-0001", Name: "wax"}, "CREATE", "products", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdateUpdate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("UPDATE .products. SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := adapter.ExecuteUpdate(context.Background(),
		&testProduct{Name: "new wax"}, "UPDATE", "products",
		map[string]interface{}{"sku": "SB-0001"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdateRejectsUnknownOperation(t *testing.T) {
	adapter, _ := newMockAdapter(t)

	_, err := adapter.ExecuteUpdate(context.Background(),
		&testProduct{}, "MERGE", "products", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported update operation")
}

func TestExecuteUpsertUsesOnConflictClause(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("INSERT INTO .products. .*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	items := []testProduct{{"SB-0001", "wax"}, {"SB-0002", "leash"}}
	rows, err := adapter.ExecuteUpsert(context.Background(), items, "products",
		[]string{"sku"}, []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM .products.").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))

	count, err := adapter.Count(context.Background(), &testProduct{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommitAndRollback(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	manager := gormadapter.NewGormTransactionManager(adapter)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO .products.").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := manager.Begin(ctx)
	require.NoError(t, err)
	_, err = txn.ExecuteUpdate(ctx, &testProduct{SKU: "SB-0001"}, "CREATE", "products", nil)
	require.NoError(t, err)
	require.NoError(t, manager.Commit(txn))

	mock.ExpectBegin()
	mock.ExpectRollback()

	txn, err = manager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, manager.Rollback(txn))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlBulkWriterJoinsChunkTransaction(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	manager := gormadapter.NewGormTransactionManager(adapter)
	w := writer.NewSqlBulkWriter[testProduct]("products", []string{"sku"}, []string{"name"})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO .products. .*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	txn, err := manager.Begin(ctx)
	require.NoError(t, err)
	txCtx := tx.WithTx(ctx, txn)

	items := []testProduct{{"SB-0001", "wax"}, {"SB-0002", "leash"}}
	require.NoError(t, w.Write(txCtx, items))
	require.NoError(t, manager.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlBulkWriterRequiresTransaction(t *testing.T) {
	w := writer.NewSqlBulkWriter[testProduct]("products", []string{"sku"}, nil)

	err := w.Write(context.Background(), []testProduct{{"SB-0001", "wax"}})
	require.Error(t, err)
	assert.False(t, exception.IsRetryable(err), "writing outside a chunk transaction is a wiring bug")
}
