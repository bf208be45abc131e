package job

import (
	"go.uber.org/fx"
)

// Module provides the product import job.
var Module = fx.Options(
	fx.Provide(NewProductImportJob),
)
