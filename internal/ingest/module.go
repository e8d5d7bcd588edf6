package ingest

import (
	"go.uber.org/fx"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/downloader/entsoe"
	"github.com/tigerroll/mibel/internal/downloader/omie"
	"github.com/tigerroll/mibel/internal/downloader/openmeteo"
)

// Module provides the source clients and the ingestion runner.
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config) *omie.Client { return omie.NewClient(cfg.Mibel.Sources.Omie) },
		func(cfg *config.Config) *entsoe.Client { return entsoe.NewClient(cfg.Mibel.Sources.Entsoe) },
		func(cfg *config.Config) *openmeteo.Client { return openmeteo.NewClient(cfg.Mibel.Sources.OpenMeteo) },
		NewRunner,
	),
)
