package panel

import "go.uber.org/fx"

// Module exports the panel components for dependency injection.
var Module = fx.Options(
	fx.Provide(ProvideAssembler),
	fx.Provide(ProvideExporter),
)
