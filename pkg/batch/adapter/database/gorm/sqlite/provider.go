// Package sqlite registers the SQLite dialector with the gorm adapter.
// Importing it enables "sqlite" database configurations.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for SQLite connections. The sqlite
// dialector takes the file path directly.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database
}
