package metrics

import "go.uber.org/fx"

// Module exports the metrics recorder for dependency injection.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
)
