package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/shorebreak/pkg/batch/adapter/database"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

//go:embed migrations
var rawMigrationFS embed.FS

const migrationsTable = "batch_schema_migrations"

// MigrationFS returns the embedded metadata schema migrations.
func MigrationFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "migrations")
	if err != nil {
		logger.Fatalf("failed to open embedded migration directory: %v", err)
	}
	return subFS
}

// Migrator applies the metadata schema to the repository database.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for the given connection.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

func (m *Migrator) databaseDriverFor(sqlDB *sql.DB, table string) (migratedb.Driver, error) {
	switch m.conn.Type() {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: table})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: table})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: table})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.conn.Type())
	}
}

func (m *Migrator) instance(migrationFS fs.FS, table string) (*migrate.Migrate, error) {
	sqlDB, err := m.conn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	dbDriver, err := m.databaseDriverFor(sqlDB, table)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration database driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", sourceDriver, m.conn.Type(), dbDriver)
}

func (m *Migrator) up(migrationFS fs.FS, table string) error {
	inst, err := m.instance(migrationFS, table)
	if err != nil {
		return err
	}
	defer inst.Close()

	if err := inst.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("schema migration failed (db: %s, table: %s): %w", m.conn.Name(), table, err)
	}
	return nil
}

// Up applies all pending metadata schema migrations.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Infof("Applying metadata schema migrations (db: %s)", m.conn.Name())
	if err := m.up(MigrationFS(), migrationsTable); err != nil {
		return err
	}
	logger.Infof("Metadata schema is up to date")
	return nil
}

// UpApplication applies application-supplied migrations, tracked separately
// from the metadata schema.
func (m *Migrator) UpApplication(ctx context.Context, migrationFS fs.FS) error {
	logger.Infof("Applying application schema migrations (db: %s)", m.conn.Name())
	return m.up(migrationFS, "application_schema_migrations")
}

// Down rolls the metadata schema back one migration.
func (m *Migrator) Down(ctx context.Context) error {
	inst, err := m.instance(MigrationFS(), migrationsTable)
	if err != nil {
		return err
	}
	defer inst.Close()

	if err := inst.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("metadata schema rollback failed (db: %s): %w", m.conn.Name(), err)
	}
	return nil
}
