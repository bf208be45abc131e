package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/shorebreak/pkg/batch/core/config"
)

func TestDefaultsApplyWithoutYaml(t *testing.T) {
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(""))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Shorebreak.Batch.ChunkSize)
	assert.Equal(t, 3, cfg.Shorebreak.Batch.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Shorebreak.Batch.Retry.InitialInterval)
	assert.Equal(t, 30000, cfg.Shorebreak.Batch.Retry.MaxInterval)
	assert.Equal(t, 2.0, cfg.Shorebreak.Batch.Retry.Factor)
	assert.Equal(t, 0, cfg.Shorebreak.Batch.Skip.SkipLimit, "skipping is off unless configured")
	assert.Equal(t, "INFO", cfg.Shorebreak.System.Logging.Level)
	assert.Equal(t, "metadata", cfg.Shorebreak.Infrastructure.JobRepositoryDBRef)
}

func TestYamlOverridesDefaults(t *testing.T) {
	yaml := []byte(`
shorebreak:
  batch:
    job_name: product-import
    chunk_size: 500
    write_timeout_seconds: 30
    retry:
      max_attempts: 5
    skip:
      skip_limit: 10
    source:
      path: /data/products.csv
      skip_header: true
  system:
    logging:
      level: DEBUG
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, "product-import", cfg.Shorebreak.Batch.JobName)
	assert.Equal(t, 500, cfg.Shorebreak.Batch.ChunkSize)
	assert.Equal(t, 30, cfg.Shorebreak.Batch.WriteTimeoutSeconds)
	assert.Equal(t, 5, cfg.Shorebreak.Batch.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Shorebreak.Batch.Retry.InitialInterval, "untouched retry settings keep their defaults")
	assert.Equal(t, 10, cfg.Shorebreak.Batch.Skip.SkipLimit)
	assert.Equal(t, "/data/products.csv", cfg.Shorebreak.Batch.Source.Path)
	assert.True(t, cfg.Shorebreak.Batch.Source.SkipHeader)
	assert.Equal(t, "DEBUG", cfg.Shorebreak.System.Logging.Level)
}

func TestEnvironmentVariablesOverrideYaml(t *testing.T) {
	t.Setenv("SHOREBREAK_BATCH_CHUNK_SIZE", "250")
	t.Setenv("SHOREBREAK_SYSTEM_LOGGING_LEVEL", "ERROR")

	yaml := []byte(`
shorebreak:
  batch:
    chunk_size: 500
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Shorebreak.Batch.ChunkSize)
	assert.Equal(t, "ERROR", cfg.Shorebreak.System.Logging.Level)
}

func TestPlaceholdersExpandFromEnvironment(t *testing.T) {
	t.Setenv("CSV_SOURCE_PATH", "/mnt/import/products.csv")

	yaml := []byte(`
shorebreak:
  batch:
    source:
      path: ${CSV_SOURCE_PATH}
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/import/products.csv", cfg.Shorebreak.Batch.Source.Path)
}

func TestMalformedYamlIsRejected(t *testing.T) {
	_, err := config.LoadConfig("", []byte("shorebreak: ["))
	require.Error(t, err)
}

func TestNamedDatabaseSectionsSurvive(t *testing.T) {
	yaml := []byte(`
shorebreak:
  database:
    metadata:
      type: sqlite
      database: /tmp/batch.db
`)
	cfg, err := config.LoadConfig("", yaml)
	require.NoError(t, err)

	raw, ok := cfg.Shorebreak.Databases["metadata"]
	require.True(t, ok)
	section, ok := raw.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sqlite", section["type"])
}
