// Package database abstracts the database connection the repositories and
// writers operate on.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/config"
)

// DBExecutor defines common read and write operations on a database. It is
// embedded in both DBConnection and the transaction adapter, so repository
// writes run the same way with or without an active transaction.
type DBExecutor interface {
	// ExecuteUpdate performs a write operation (CREATE, UPDATE, DELETE).
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an INSERT ... ON CONFLICT DO UPDATE.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// DBConnection represents a named database connection.
type DBConnection interface {
	DBExecutor

	// Name returns the logical connection name (e.g., "metadata").
	Name() string
	// Type returns the driver type (e.g., "sqlite").
	Type() string
	// Close releases the underlying connection pool.
	Close() error
	// Config returns the configuration this connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB, used by migrations.
	GetSQLDB() (*sql.DB, error)

	// ExecuteQuery executes a SELECT into target; query supplies equality
	// conditions combined with AND.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a SELECT with optional ordering and limit.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// Count counts the records matching the query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Pluck retrieves the distinct values of one column.
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
}
