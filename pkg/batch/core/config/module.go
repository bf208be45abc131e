// Package config provides core configuration structures and utilities for
// the batch framework. This file defines the Fx providers for them.
package config

import "go.uber.org/fx"

// NewBatchConfigProvider extracts *BatchConfig from *Config so engine
// components can depend on just the batch settings.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Shorebreak.Batch
}

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Shorebreak.System.Logging
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewBatchConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
