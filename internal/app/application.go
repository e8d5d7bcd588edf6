// Package app assembles the pipeline application with uber-fx and runs it to
// completion.
package app

import (
	"context"
	"embed"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/ingest"
	"github.com/tigerroll/mibel/internal/job"
	"github.com/tigerroll/mibel/internal/metrics"
	"github.com/tigerroll/mibel/internal/panel"
	gormadapter "github.com/tigerroll/mibel/pkg/adapter/database/gorm"
	storageadapter "github.com/tigerroll/mibel/pkg/adapter/storage"
	storagegcs "github.com/tigerroll/mibel/pkg/adapter/storage/gcs"
	storagelocal "github.com/tigerroll/mibel/pkg/adapter/storage/local"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// RunApplication sets up and runs the pipeline application using uber-fx.
// dbProviderOptions lets main register only the database providers whose
// drivers it links.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, migrationsFS embed.FS, dbProviderOptions []fx.Option) error {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		fx.Provide(fx.Annotate(
			func() (fs.FS, error) { return fs.Sub(migrationsFS, "resources/migrations") },
			fx.ResultTags(`name:"migrationsFS"`),
		)),

		fx.Options(dbProviderOptions...),
		logger.Module,
		config.Module,
		metrics.Module,

		gormadapter.Module,
		storagelocal.Module,
		storagegcs.Module,
		storageadapter.Module,

		ingest.Module,
		panel.Module,
		job.Module,

		fx.Invoke(fx.Annotate(startPipeline, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // pipeline *job.Pipeline
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()
	return app.Err()
}

// startPipeline launches the pipeline in a goroutine on startup and requests
// shutdown once it finishes.
func startPipeline(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	pipeline *job.Pipeline,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in pipeline execution: %v", r)
					}
					logger.Infof("Requesting application shutdown after pipeline completion.")
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				if err := pipeline.Run(appCtx); err != nil {
					logger.Errorf("Pipeline run failed: %v", err)
					return
				}
				logger.Infof("Pipeline run completed successfully.")
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
