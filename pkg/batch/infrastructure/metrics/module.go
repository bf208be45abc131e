package metrics

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shorebreak/pkg/batch/core/metrics"
)

// Module provides the Prometheus recorder and OpenTelemetry tracer.
// Applications include either this module or the core no-op module.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
