// Package ingest drives the chunked download → transform → upsert loop for
// every configured source. Each chunk commits in one store transaction, so a
// crash loses at most one chunk; a failed chunk is recorded and the loop
// continues.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/entity"
	"github.com/tigerroll/mibel/internal/downloader/entsoe"
	"github.com/tigerroll/mibel/internal/downloader/omie"
	"github.com/tigerroll/mibel/internal/downloader/openmeteo"
	"github.com/tigerroll/mibel/internal/metrics"
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/internal/transform"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// Source names used in chunk results and metric labels.
const (
	SourceOmie      = "omie"
	SourceFlows     = "entsoe_flows"
	SourceGen       = "entsoe_generation"
	SourceOpenMeteo = "openmeteo"
)

// ChunkRange is one inclusive day sub-range of the run.
type ChunkRange struct {
	Start time.Time
	End   time.Time
}

func (r ChunkRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// ChunkResult is the explicit outcome of one source over one chunk.
type ChunkResult struct {
	Source      string
	Range       ChunkRange
	RowsWritten int64
	Replaced    int64
	Err         error
}

// RunSummary aggregates every chunk outcome of one ingestion run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ChunkResult
	// Failures aggregates the errors of failed chunks.
	Failures *multierror.Error
}

// RowsBySource sums the rows written per source.
func (s *RunSummary) RowsBySource() map[string]int64 {
	out := make(map[string]int64)
	for _, r := range s.Results {
		if r.Err == nil {
			out[r.Source] += r.RowsWritten
		}
	}
	return out
}

// Runner executes ingestion runs.
type Runner struct {
	cfg       *config.Config
	store     *store.Store
	omie      *omie.Client
	entsoe    *entsoe.Client
	openmeteo *openmeteo.Client
	recorder  metrics.Recorder
}

// NewRunner creates a Runner over explicit collaborators.
func NewRunner(cfg *config.Config, st *store.Store, omieClient *omie.Client, entsoeClient *entsoe.Client, openmeteoClient *openmeteo.Client, recorder metrics.Recorder) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     st,
		omie:      omieClient,
		entsoe:    entsoeClient,
		openmeteo: openmeteoClient,
		recorder:  recorder,
	}
}

// Run ingests every source over the inclusive [startDate, endDate] day range.
// The range is split into chunks of cfg.Mibel.Batch.ChunkDays days; each
// source × chunk commits independently.
func (r *Runner) Run(ctx context.Context, startDate, endDate time.Time) (*RunSummary, error) {
	chunks, err := timeutil.SplitDayChunks(startDate, endDate, r.cfg.Mibel.Batch.ChunkDays)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger.Infof("Starting ingestion run %s: %s..%s in %d chunks.",
		summary.RunID, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), len(chunks))

	if r.cfg.Mibel.Batch.Reload {
		if err := r.clearSources(ctx); err != nil {
			return nil, err
		}
	}

	pause := time.Duration(r.cfg.Mibel.Batch.PolitenessPauseMs) * time.Millisecond

	for _, c := range chunks {
		chunk := ChunkRange{Start: c[0], End: c[1]}

		for _, ingestFn := range []struct {
			source string
			fn     func(context.Context, ChunkRange) (store.UpsertResult, error)
		}{
			{SourceOmie, r.ingestPrices},
			{SourceFlows, r.ingestFlows},
			{SourceGen, r.ingestGeneration},
			{SourceOpenMeteo, r.ingestWeather},
		} {
			if ctx.Err() != nil {
				summary.Failures = multierror.Append(summary.Failures, ctx.Err())
				summary.FinishedAt = time.Now().UTC()
				return summary, ctx.Err()
			}

			began := time.Now()
			result, err := ingestFn.fn(ctx, chunk)
			elapsed := time.Since(began)

			cr := ChunkResult{
				Source:      ingestFn.source,
				Range:       chunk,
				RowsWritten: result.Written,
				Replaced:    result.Replaced,
				Err:         err,
			}
			summary.Results = append(summary.Results, cr)

			if err != nil {
				logger.Errorf("Chunk %s failed for source %s: %v", chunk, ingestFn.source, err)
				summary.Failures = multierror.Append(summary.Failures, fmt.Errorf("source %s chunk %s: %w", ingestFn.source, chunk, err))
				r.recorder.RecordChunk(ingestFn.source, "failed", elapsed)
			} else {
				logger.Infof("Chunk %s committed for source %s: written=%d replaced=%d", chunk, ingestFn.source, result.Written, result.Replaced)
				r.recorder.RecordChunk(ingestFn.source, "committed", elapsed)
			}

			if pause > 0 {
				select {
				case <-time.After(pause):
				case <-ctx.Done():
				}
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	logger.Infof("Ingestion run %s finished: %d chunk results, %d failures.",
		summary.RunID, len(summary.Results), len(summary.Failures.WrappedErrors()))
	return summary, nil
}

// clearSources removes the configured entities from every canonical table in
// one transaction, so a reload run rebuilds them from scratch instead of
// upserting over stale rows.
func (r *Runner) clearSources(ctx context.Context) error {
	logger.Infof("Reload requested: clearing configured entities from the canonical tables.")
	return r.store.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		for _, country := range r.cfg.Mibel.Sources.Omie.Countries {
			if _, err := ops.DeleteRows(ctx, "prices_day_ahead", map[string]interface{}{"country": country}); err != nil {
				return err
			}
		}
		for _, area := range r.cfg.Mibel.Sources.Entsoe.Areas {
			if _, err := ops.DeleteRows(ctx, "generation", map[string]interface{}{"country": area}); err != nil {
				return err
			}
		}
		for _, border := range r.cfg.Mibel.Sources.Entsoe.Borders {
			parts := strings.SplitN(border, "-", 2)
			if len(parts) != 2 {
				continue
			}
			conditions := map[string]interface{}{"from_country": parts[0], "to_country": parts[1]}
			if _, err := ops.DeleteRows(ctx, "cross_border_flows", conditions); err != nil {
				return err
			}
		}
		for _, loc := range r.cfg.Mibel.Sources.OpenMeteo.Locations {
			if _, err := ops.DeleteRows(ctx, "weather", map[string]interface{}{"location": loc.Name}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ingestPrices downloads each trading day's OMIE file in the chunk, converts
// the wide rows, and upserts the long records in one transaction.
func (r *Runner) ingestPrices(ctx context.Context, chunk ChunkRange) (store.UpsertResult, error) {
	var wide []entity.OmieDailyRow
	for day := chunk.Start; !day.After(chunk.End); day = day.AddDate(0, 0, 1) {
		rows, err := r.omie.FetchDay(ctx, day)
		if err != nil {
			return store.UpsertResult{}, err
		}
		wide = append(wide, rows...)
	}

	records, report, err := transform.PriceRows(wide)
	if err != nil {
		return store.UpsertResult{}, err
	}
	logger.Debugf("OMIE transform for chunk %s: %s", chunk, report)

	var result store.UpsertResult
	err = r.store.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		var txErr error
		result, txErr = ops.UpsertPrices(ctx, records)
		return txErr
	})
	if err == nil {
		r.recorder.RecordUpsert("prices_day_ahead", result.Written, result.Replaced)
	}
	return result, err
}

// ingestFlows fetches every configured border over the chunk and upserts the flows.
func (r *Runner) ingestFlows(ctx context.Context, chunk ChunkRange) (store.UpsertResult, error) {
	periodStart := chunk.Start
	periodEnd := chunk.End.AddDate(0, 0, 1) // exclusive upper bound

	var points []entity.EntsoeSeriesPoint
	for _, border := range r.cfg.Mibel.Sources.Entsoe.Borders {
		parts := strings.SplitN(border, "-", 2)
		if len(parts) != 2 {
			logger.Warnf("Skipping malformed border %q.", border)
			continue
		}
		fetched, err := r.entsoe.FetchFlows(ctx, parts[0], parts[1], periodStart, periodEnd)
		if err != nil {
			return store.UpsertResult{}, err
		}
		points = append(points, fetched...)
	}

	records, _, err := transform.FlowRows(points)
	if err != nil {
		return store.UpsertResult{}, err
	}

	var result store.UpsertResult
	err = r.store.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		var txErr error
		result, txErr = ops.UpsertFlows(ctx, records)
		return txErr
	})
	if err == nil {
		r.recorder.RecordUpsert("cross_border_flows", result.Written, result.Replaced)
	}
	return result, err
}

// ingestGeneration fetches generation by technology for each configured area.
func (r *Runner) ingestGeneration(ctx context.Context, chunk ChunkRange) (store.UpsertResult, error) {
	periodStart := chunk.Start
	periodEnd := chunk.End.AddDate(0, 0, 1)

	var points []entity.EntsoeSeriesPoint
	for _, area := range r.cfg.Mibel.Sources.Entsoe.Areas {
		fetched, err := r.entsoe.FetchGeneration(ctx, area, periodStart, periodEnd)
		if err != nil {
			return store.UpsertResult{}, err
		}
		points = append(points, fetched...)
	}

	records, _, err := transform.GenerationRows(points)
	if err != nil {
		return store.UpsertResult{}, err
	}

	var result store.UpsertResult
	err = r.store.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		var txErr error
		result, txErr = ops.UpsertGeneration(ctx, records)
		return txErr
	})
	if err == nil {
		r.recorder.RecordUpsert("generation", result.Written, result.Replaced)
	}
	return result, err
}

// ingestWeather fetches the hourly archive for each configured location.
func (r *Runner) ingestWeather(ctx context.Context, chunk ChunkRange) (store.UpsertResult, error) {
	var total store.UpsertResult
	err := r.store.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		for _, loc := range r.cfg.Mibel.Sources.OpenMeteo.Locations {
			archive, err := r.openmeteo.FetchArchive(ctx, loc, chunk.Start, chunk.End)
			if err != nil {
				return err
			}
			records, report, err := transform.WeatherRows(loc.Name, archive)
			if err != nil {
				return err
			}
			logger.Debugf("Weather transform for %s chunk %s: %s", loc.Name, chunk, report)

			result, err := ops.UpsertWeather(ctx, records)
			if err != nil {
				return err
			}
			total.Written += result.Written
			total.Replaced += result.Replaced
		}
		return nil
	})
	if err != nil {
		return store.UpsertResult{}, err
	}
	r.recorder.RecordUpsert("weather", total.Written, total.Replaced)
	return total, nil
}
