package job

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/migration"
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/pkg/adapter/database"
	gormadapter "github.com/tigerroll/mibel/pkg/adapter/database/gorm"
)

// ProvidePipelineDB resolves the DB connection named by
// infrastructure.pipeline_db_ref through the registered providers.
func ProvidePipelineDB(cfg *config.Config, resolver *gormadapter.GormDBConnectionResolver) (database.DBConnection, error) {
	return resolver.ResolveDBConnection(context.Background(), cfg.Mibel.Infrastructure.PipelineDBRef)
}

// Module wires the pipeline database, the canonical store, the migrator, and
// the pipeline itself.
var Module = fx.Options(
	fx.Provide(
		ProvidePipelineDB,
		store.NewStore,
		migration.NewMigrator,
		NewPipeline,
	),
)
