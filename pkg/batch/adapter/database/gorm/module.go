package gorm

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shorebreak/pkg/batch/adapter/database"
	config "github.com/tigerroll/shorebreak/pkg/batch/core/config"
	tx "github.com/tigerroll/shorebreak/pkg/batch/core/tx"
)

// Module provides the gorm connection provider, the metadata connection and
// its transaction manager. Driver subpackages must be imported for their
// dialectors to register.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(func(p *Provider, cfg *config.Config) (database.DBConnection, error) {
		return p.GetConnection(cfg.Shorebreak.Infrastructure.JobRepositoryDBRef)
	}),
	fx.Provide(fx.Annotate(
		func(conn database.DBConnection) (*GormTransactionManager, error) {
			adapter, ok := conn.(*GormDBAdapter)
			if !ok {
				return nil, errNotGormConnection
			}
			return NewGormTransactionManager(adapter), nil
		},
		fx.As(new(tx.TransactionManager)),
	)),
)
