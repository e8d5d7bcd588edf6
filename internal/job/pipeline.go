// Package job orchestrates one full pipeline run: schema migration, chunked
// ingestion, integrity scans, panel assembly, and parquet export.
package job

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/model"
	"github.com/tigerroll/mibel/internal/ingest"
	"github.com/tigerroll/mibel/internal/metrics"
	"github.com/tigerroll/mibel/internal/migration"
	"github.com/tigerroll/mibel/internal/panel"
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/pkg/adapter/database"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "job"

// migrationsTableName is the bookkeeping table used by golang-migrate.
const migrationsTableName = "schema_migrations"

// gapScanTargets maps each canonical table to the entity column scanned for
// gaps and a probe for entity enumeration.
var gapScanTargets = []struct {
	table        string
	entityColumn string
	probe        interface{}
}{
	{model.DayAheadPrice{}.TableName(), "country", &model.DayAheadPrice{}},
	{model.Generation{}.TableName(), "country", &model.Generation{}},
	{model.CrossBorderFlow{}.TableName(), "to_country", &model.CrossBorderFlow{}},
	{model.WeatherObservation{}.TableName(), "location", &model.WeatherObservation{}},
}

// PipelineParams collects the pipeline collaborators from the Fx container.
type PipelineParams struct {
	fx.In

	Cfg          *config.Config
	DB           database.DBConnection
	Store        *store.Store
	Runner       *ingest.Runner
	Migrator     migration.Migrator
	Assembler    *panel.Assembler
	Exporter     *panel.Exporter
	Recorder     metrics.Recorder
	MigrationsFS fs.FS `name:"migrationsFS"`
}

// Pipeline runs the end-to-end batch.
type Pipeline struct {
	cfg          *config.Config
	db           database.DBConnection
	store        *store.Store
	runner       *ingest.Runner
	migrator     migration.Migrator
	assembler    *panel.Assembler
	exporter     *panel.Exporter
	recorder     metrics.Recorder
	migrationsFS fs.FS
}

// NewPipeline creates the Pipeline from its Fx-provided collaborators.
func NewPipeline(p PipelineParams) *Pipeline {
	return &Pipeline{
		cfg:          p.Cfg,
		db:           p.DB,
		store:        p.Store,
		runner:       p.Runner,
		migrator:     p.Migrator,
		assembler:    p.Assembler,
		exporter:     p.Exporter,
		recorder:     p.Recorder,
		migrationsFS: p.MigrationsFS,
	}
}

// Run executes one full pipeline run over the configured date range.
func (p *Pipeline) Run(ctx context.Context) error {
	startDate, endDate, err := p.runRange()
	if err != nil {
		return err
	}

	if err := p.migrate(ctx); err != nil {
		return err
	}

	summary, err := p.runner.Run(ctx, startDate, endDate)
	if err != nil {
		return err
	}
	for source, rows := range summary.RowsBySource() {
		logger.Infof("Run %s ingested %d rows from %s.", summary.RunID, rows, source)
	}
	if summary.Failures != nil && len(summary.Failures.WrappedErrors()) > 0 {
		logger.Warnf("Run %s finished with %d failed chunks; their hours will surface as gaps.",
			summary.RunID, len(summary.Failures.WrappedErrors()))
	}

	p.logCoverage(ctx)

	hourIndex, err := timeutil.GenerateHourIndex(startDate, endDate)
	if err != nil {
		return err
	}

	if err := p.verifyIntegrity(ctx, hourIndex); err != nil {
		return err
	}

	return p.exportPanel(ctx, hourIndex, startDate, endDate)
}

// runRange parses and validates the configured date range.
func (p *Pipeline) runRange() (time.Time, time.Time, error) {
	startDate, err := time.Parse("2006-01-02", p.cfg.Mibel.Batch.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("invalid batch start_date %q", p.cfg.Mibel.Batch.StartDate), err, false, false)
	}
	endDate, err := time.Parse("2006-01-02", p.cfg.Mibel.Batch.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("invalid batch end_date %q", p.cfg.Mibel.Batch.EndDate), err, false, false)
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, exception.NewInvalidRangeError(moduleName,
			p.cfg.Mibel.Batch.StartDate, p.cfg.Mibel.Batch.EndDate)
	}
	return startDate, endDate, nil
}

// migrate applies the schema migrations matching the pipeline database type.
func (p *Pipeline) migrate(ctx context.Context) error {
	path := p.db.Type()
	logger.Infof("Applying migrations from %s to database '%s'.", path, p.db.Name())
	return p.migrator.Up(ctx, p.migrationsFS, path, migrationsTableName)
}

// logCoverage reports how far each canonical table reaches after ingestion.
// Coverage is informational; integrity scans decide what is actually missing.
func (p *Pipeline) logCoverage(ctx context.Context) {
	ops := p.store.Direct()
	for _, table := range store.CanonicalTables() {
		latest, ok, err := ops.LatestHour(ctx, table)
		if err != nil {
			logger.Warnf("Could not determine coverage of %s: %v", table, err)
			continue
		}
		if !ok {
			logger.Warnf("Table %s is empty after ingestion.", table)
			continue
		}
		logger.Infof("Table %s covered through %s.", table, latest.Format(time.RFC3339))
	}
}

// verifyIntegrity scans every canonical table. Residual duplicates abort the
// run; gaps are logged, recorded, and left for panel assembly to fill with
// nulls.
func (p *Pipeline) verifyIntegrity(ctx context.Context, hourIndex []time.Time) error {
	ops := p.store.Direct()

	for _, table := range store.CanonicalTables() {
		if err := ops.ScanResidualDuplicates(ctx, table); err != nil {
			return err
		}
	}
	logger.Infof("No residual duplicates across %d canonical tables.", len(store.CanonicalTables()))

	for _, target := range gapScanTargets {
		entities, err := ops.Entities(ctx, target.probe, target.entityColumn)
		if err != nil {
			return exception.NewPipelineError(moduleName, "failed to enumerate entities of "+target.table, err, false, false)
		}
		for _, entity := range entities {
			report, err := ops.ScanGaps(ctx, target.table, target.entityColumn, entity, hourIndex)
			if err != nil {
				return err
			}
			if len(report.Missing) > 0 {
				p.recorder.RecordGaps(target.table, entity, len(report.Missing))
			}
		}
	}
	return nil
}

// exportPanel assembles the gapless hourly panel and writes the parquet
// artifact.
func (p *Pipeline) exportPanel(ctx context.Context, hourIndex []time.Time, startDate, endDate time.Time) error {
	entities := p.cfg.Mibel.Sources.Omie.Countries

	pnl, err := p.assembler.Assemble(ctx, p.store.Direct(), hourIndex, entities)
	if err != nil {
		return err
	}

	began := time.Now()
	artifactPath, err := p.exporter.Export(ctx, pnl, startDate, endDate)
	if err != nil {
		p.recorder.RecordExport("failed", len(pnl.Rows), time.Since(began))
		return err
	}
	p.recorder.RecordExport("succeeded", len(pnl.Rows), time.Since(began))
	logger.Infof("Panel exported: %d rows (%d hours x %d entities) to %s.",
		len(pnl.Rows), len(pnl.Index), len(pnl.Entities), artifactPath)
	return nil
}
