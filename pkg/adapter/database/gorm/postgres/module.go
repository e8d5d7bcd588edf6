package postgres

import (
	"go.uber.org/fx"

	"github.com/tigerroll/mibel/pkg/adapter/database"
)

// Module exports the PostgreSQL DBProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.As(new(database.DBProvider)),
			fx.ResultTags(database.DBProviderGroup),
		),
	),
)
