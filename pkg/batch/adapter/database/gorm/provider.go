package gorm

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	"gorm.io/gorm"

	"github.com/tigerroll/shorebreak/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/shorebreak/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/shorebreak/pkg/batch/core/config"
	"github.com/tigerroll/shorebreak/pkg/batch/support/logger"
)

// DialectorFactory builds a gorm.Dialector from a database configuration.
// Driver subpackages register one per driver in their init functions.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("dialector for type '%s' already registered, overwriting", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the factory for the given database type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s (is the driver subpackage imported?)", dbType)
	}
	return factory, nil
}

// Provider opens and caches named connections from the application
// configuration.
type Provider struct {
	cfg         *config.Config
	logLevel    string
	mu          sync.Mutex
	connections map[string]database.DBConnection
}

// NewProvider creates a Provider over the raw database configuration maps.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		logLevel:    cfg.Shorebreak.System.Logging.Level,
		connections: make(map[string]database.DBConnection),
	}
}

// GetConnection returns the named connection, opening it on first use.
func (p *Provider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	raw, ok := p.cfg.Shorebreak.Databases[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found", name)
	}
	var dbCfg dbconfig.DatabaseConfig
	if err := mapstructure.Decode(raw, &dbCfg); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}

	conn, err := Open(dbCfg, name, p.logLevel)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Infof("established database connection '%s' (%s)", name, dbCfg.Type)
	return conn, nil
}

// CloseAll closes every connection this provider opened.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// Open builds a connection from a typed configuration using the registered
// dialector for its type.
func Open(dbCfg dbconfig.DatabaseConfig, name string, logLevel string) (*GormDBAdapter, error) {
	factory, err := GetDialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dialector for '%s': %w", name, err)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", name, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get *sql.DB for '%s': %w", name, err)
	}
	if dbCfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.Pool.MaxOpenConns)
	}
	if dbCfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.Pool.MaxIdleConns)
	}
	if dbCfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return NewGormDBAdapter(gormDB, dbCfg, name)
}
