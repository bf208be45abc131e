package notification

import (
	"go.uber.org/fx"
)

// Module provides the log-backed notifier and its completion listener.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLogNotifier,
		fx.As(new(Notifier)),
	)),
	fx.Provide(NewListener),
)
