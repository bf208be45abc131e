package metrics

import (
	"go.uber.org/fx"
)

// Module provides the no-op metrics components. Applications wanting real
// backends include the infrastructure metrics module instead.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewNoOpMetricRecorder,
		fx.As(new(MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewNoOpTracer,
		fx.As(new(Tracer)),
	)),
)
