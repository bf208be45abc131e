package launcher

import "go.uber.org/fx"

// Module provides the launcher, operator and explorer to Fx.
var Module = fx.Options(
	fx.Provide(NewExecutionRegistry),
	fx.Provide(NewJobLauncher),
	fx.Provide(NewJobOperator),
	fx.Provide(NewJobExplorer),
)
