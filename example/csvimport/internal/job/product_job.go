// Package job assembles the csvimport batch job from framework components.
package job

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/shorebreak/example/csvimport/internal/domain/entity"
	"github.com/tigerroll/shorebreak/pkg/batch/component/processor"
	"github.com/tigerroll/shorebreak/pkg/batch/component/reader"
	"github.com/tigerroll/shorebreak/pkg/batch/component/writer"
	config "github.com/tigerroll/shorebreak/pkg/batch/core/config"
	"github.com/tigerroll/shorebreak/pkg/batch/core/metrics"
	"github.com/tigerroll/shorebreak/pkg/batch/core/port"
	"github.com/tigerroll/shorebreak/pkg/batch/core/repository"
	tx "github.com/tigerroll/shorebreak/pkg/batch/core/tx"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/chunk"
	enginejob "github.com/tigerroll/shorebreak/pkg/batch/engine/job"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/retry"
	"github.com/tigerroll/shorebreak/pkg/batch/engine/skip"
	"github.com/tigerroll/shorebreak/pkg/batch/listener/logging"
	"github.com/tigerroll/shorebreak/pkg/batch/listener/notification"
)

const (
	// JobName identifies the product import job.
	JobName = "product-import"

	stepName = "import-products"
)

// mapProduct parses one CSV line of the form "sku,name,price,stock".
func mapProduct(ctx context.Context, record reader.RawRecord) (entity.Product, error) {
	fields := strings.Split(record.Content, ",")
	if len(fields) != 4 {
		return entity.Product{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return entity.Product{}, fmt.Errorf("invalid price %q: %w", fields[2], err)
	}
	stock, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return entity.Product{}, fmt.Errorf("invalid stock %q: %w", fields[3], err)
	}
	return entity.Product{
		SKU:       strings.TrimSpace(fields[0]),
		Name:      strings.TrimSpace(fields[1]),
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// NewProductImportJob builds the product import job: a single chunk step
// reading the configured CSV file and upserting rows into the products table.
func NewProductImportJob(
	cfg *config.Config,
	txManager tx.TransactionManager,
	repo repository.JobRepository,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	jobListener *logging.JobListener,
	stepListener *logging.StepListener,
	chunkListener *logging.ChunkListener,
	skipListener *logging.SkipListener,
	retryListener *logging.RetryListener,
	completionListener *notification.Listener,
) port.Job {
	batch := cfg.Shorebreak.Batch

	csvReader := reader.NewFlatFileItemReader[entity.Product](
		batch.Source.Path,
		batch.Source.SkipHeader,
		reader.RecordMapperFunc[entity.Product](mapProduct),
	)

	// Rows priced below zero are rejected and count against the skip limit.
	validated := processor.NewValidatingProcessor[entity.Product, entity.Product](
		processor.NewPassthroughProcessor[entity.Product](),
		func(p entity.Product) (bool, bool) {
			return p.Price >= 0, false
		},
	)

	productWriter := writer.NewSqlBulkWriter[entity.Product](
		entity.Product{}.TableName(),
		[]string{"sku"},
		[]string{"name", "price", "stock", "updated_at"},
	)

	retryPolicy := retry.NewDefaultRetryPolicyFactory().Create(
		batch.Retry.MaxAttempts,
		batch.Retry.InitialInterval,
		batch.Retry.MaxInterval,
		batch.Retry.Factor,
	)
	skipPolicy := skip.NewDefaultSkipPolicyFactory().Create(batch.Skip.SkipLimit)

	step := chunk.NewChunkStep(
		stepName,
		csvReader,
		validated,
		productWriter,
		batch.ChunkSize,
		retryPolicy,
		skipPolicy,
		txManager,
		repo,
		chunk.WithWriteTimeout[entity.Product, entity.Product](time.Duration(batch.WriteTimeoutSeconds)*time.Second),
		chunk.WithStepListeners[entity.Product, entity.Product](stepListener),
		chunk.WithChunkListeners[entity.Product, entity.Product](chunkListener),
		chunk.WithSkipListeners[entity.Product, entity.Product](skipListener),
		chunk.WithRetryListeners[entity.Product, entity.Product](retryListener),
		chunk.WithMetrics[entity.Product, entity.Product](recorder, tracer),
	)

	return enginejob.NewSequentialJob(
		JobName,
		repo,
		[]port.Step{step},
		enginejob.WithJobListeners(jobListener, completionListener),
		enginejob.WithJobMetrics(recorder, tracer),
	)
}
