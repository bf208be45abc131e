package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"

	// Register golang-migrate database drivers.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// Module provides the relational job repository and its schema migrator.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewRepository,
			fx.As(new(repository.JobRepository)),
		),
		NewMigrator,
	),
)
