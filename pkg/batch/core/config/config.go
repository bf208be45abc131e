package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// RetryConfig holds the chunk write retry configuration. A failed chunk
// write is retried MaxAttempts times with exponential backoff before the
// step fails.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of write attempts per chunk.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval is the maximum backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the backoff multiplier.
}

// SkipConfig holds the record skip configuration.
type SkipConfig struct {
	// SkipLimit is the maximum number of records that may be skipped before
	// the step fails. Zero disables skipping entirely.
	SkipLimit int `yaml:"skip_limit"`
}

// SourceConfig describes the record source a job reads from.
type SourceConfig struct {
	// Path is the location of the flat-file source.
	Path string `yaml:"path"`
	// SkipHeader indicates whether the first line is a header to discard.
	SkipHeader bool `yaml:"skip_header"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the default job name if not specified elsewhere.
	JobName string `yaml:"job_name"`
	// ChunkSize is the number of records accumulated per commit.
	ChunkSize int `yaml:"chunk_size"`
	// Retry is the chunk write retry configuration.
	Retry RetryConfig `yaml:"retry"`
	// Skip is the record skip configuration.
	Skip SkipConfig `yaml:"skip"`
	// WriteTimeoutSeconds bounds a single writer call. Zero means no bound.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	// Source is the record source configuration.
	Source SourceConfig `yaml:"source"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// JobRepositoryDBRef is the name of the database connection the
	// execution metadata repository binds to (e.g., "metadata").
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
}

// ShorebreakConfig holds all configuration under the "shorebreak" top-level key.
type ShorebreakConfig struct {
	// Batch contains batch processing specific configurations.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Databases holds raw named database connection configurations. The
	// database adapter decodes each entry into its typed form.
	Databases map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Shorebreak ShorebreakConfig `yaml:"shorebreak"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Shorebreak: ShorebreakConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				ChunkSize: 10,
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 1000,
					MaxInterval:     30000,
					Factor:          2.0,
				},
				Skip: SkipConfig{
					SkipLimit: 0,
				},
				WriteTimeoutSeconds: 0,
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryDBRef: "metadata",
			},
			Databases: map[string]interface{}{},
		},
	}
}
