// Package metrics provides the Prometheus and OpenTelemetry backed
// implementations of the core metrics interfaces.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/shorebreak/pkg/batch/core/metrics"
	"github.com/tigerroll/shorebreak/pkg/batch/core/model"
)

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobDurationSeconds  *prometheus.HistogramVec
	jobStatusCounter    *prometheus.CounterVec
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec

	itemReadCounter  *prometheus.CounterVec
	itemWriteCounter *prometheus.CounterVec
	itemSkipCounter  *prometheus.CounterVec

	writeRetryCounter    *prometheus.CounterVec
	chunkCommitCounter   *prometheus.CounterVec
	chunkRollbackCounter *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry,
// including the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of batch job executions by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Total number of batch step executions by status.",
		}, []string{"step_name", "status"}),
		itemReadCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_read_total",
			Help: "Total items read by step.",
		}, []string{"step_name"}),
		itemWriteCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_write_total",
			Help: "Total items written by step.",
		}, []string{"step_name"}),
		itemSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_skip_total",
			Help: "Total items skipped by step and phase.",
		}, []string{"step_name", "phase", "reason"}),
		writeRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_write_retry_total",
			Help: "Total retried chunk write attempts by step.",
		}, []string{"step_name", "reason"}),
		chunkCommitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_commit_total",
			Help: "Total chunk commits by step.",
		}, []string{"step_name"}),
		chunkRollbackCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_rollback_total",
			Help: "Total chunk rollbacks by step.",
		}, []string{"step_name"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named framework operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.itemReadCounter,
		r.itemWriteCounter,
		r.itemSkipCounter,
		r.writeRetryCounter,
		r.chunkCommitCounter,
		r.chunkRollbackCounter,
		r.operationDuration,
	)
	return r
}

// GetRegistry returns the Prometheus registry, for exposing through an HTTP
// handler.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, string(execution.Status)).Inc()
}

func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	if execution.EndTime.IsZero() {
		return
	}
	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		string(execution.Status),
		string(execution.ExitStatus),
	).Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
	r.jobStatusCounter.WithLabelValues(execution.JobName, string(execution.Status)).Inc()
}

func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStatusCounter.WithLabelValues(execution.StepName, string(execution.Status)).Inc()
}

func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	if execution.EndTime.IsZero() {
		return
	}
	r.stepDurationSeconds.WithLabelValues(
		execution.StepName,
		string(execution.Status),
		string(execution.ExitStatus),
	).Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
	r.stepStatusCounter.WithLabelValues(execution.StepName, string(execution.Status)).Inc()
}

func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemReadCounter.WithLabelValues(stepName).Inc()
}

func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	// Processed items show up as writes or filters; no dedicated series.
}

func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemWriteCounter.WithLabelValues(stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, stepName string, phase string, reason string) {
	r.itemSkipCounter.WithLabelValues(stepName, phase, reason).Inc()
}

func (r *PrometheusRecorder) RecordWriteRetry(ctx context.Context, stepName string, reason string) {
	r.writeRetryCounter.WithLabelValues(stepName, reason).Inc()
}

func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunkCommitCounter.WithLabelValues(stepName).Inc()
}

func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbackCounter.WithLabelValues(stepName).Inc()
}

func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
