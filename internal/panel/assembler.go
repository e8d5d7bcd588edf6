// Package panel assembles the gapless analysis panel from the canonical store
// and exports it as a parquet artifact.
package panel

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/mibel/internal/domain/model"
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "panel"

// Panel is the assembled hour-index × country result.
type Panel struct {
	Index    []time.Time
	Entities []string
	Rows     []model.AnalysisRow
}

// Assembler builds panels from the canonical store.
type Assembler struct {
	// locationCountries maps weather locations to the country their
	// observations are averaged into.
	locationCountries map[string]string
}

// NewAssembler creates an Assembler. locationCountries maps weather location
// names to countries (e.g., "Madrid"→"ES", "Lisbon"→"PT").
func NewAssembler(locationCountries map[string]string) *Assembler {
	return &Assembler{locationCountries: locationCountries}
}

type key struct {
	ts      int64
	country string
}

// Assemble builds the fully rectangular panel for the hour index and entity
// list. Every metric table is left-joined on (timestamp, entity); hours absent
// from a table surface as nil pointers, never as dropped rows.
//
// Every stored timestamp must already be canonical; a violation returns an
// error wrapping exception.ErrJoinKeyMismatch rather than a silently empty join.
func (a *Assembler) Assemble(ctx context.Context, ops *store.Ops, hourIndex []time.Time, entities []string) (*Panel, error) {
	if len(hourIndex) == 0 {
		return nil, exception.NewPipelineErrorf(moduleName, "empty hour index")
	}
	start, end := hourIndex[0], hourIndex[len(hourIndex)-1]

	prices, err := ops.PricesInRange(ctx, start, end)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to read prices", err, false, false)
	}
	generation, err := ops.GenerationInRange(ctx, start, end)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to read generation", err, false, false)
	}
	flows, err := ops.FlowsInRange(ctx, start, end)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to read flows", err, false, false)
	}
	weather, err := ops.WeatherInRange(ctx, start, end)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to read weather", err, false, false)
	}

	priceByKey := make(map[key]float64, len(prices))
	for _, rec := range prices {
		if err := checkCanonical(rec.Timestamp, "prices_day_ahead"); err != nil {
			return nil, err
		}
		priceByKey[key{rec.Timestamp.Unix(), rec.Country}] = rec.PriceEurMwh
	}

	type genAgg struct {
		total float64
		wind  float64
		solar float64
	}
	genByKey := make(map[key]*genAgg)
	for _, rec := range generation {
		if err := checkCanonical(rec.Timestamp, "generation"); err != nil {
			return nil, err
		}
		k := key{rec.Timestamp.Unix(), rec.Country}
		agg := genByKey[k]
		if agg == nil {
			agg = &genAgg{}
			genByKey[k] = agg
		}
		agg.total += rec.GenerationMw
		switch rec.Technology {
		case "wind_onshore", "wind_offshore":
			agg.wind += rec.GenerationMw
		case "solar":
			agg.solar += rec.GenerationMw
		}
	}

	// Net import for a country: flows into it minus flows out of it.
	netImportByKey := make(map[key]float64)
	for _, rec := range flows {
		if err := checkCanonical(rec.Timestamp, "cross_border_flows"); err != nil {
			return nil, err
		}
		netImportByKey[key{rec.Timestamp.Unix(), rec.ToCountry}] += rec.FlowMw
		netImportByKey[key{rec.Timestamp.Unix(), rec.FromCountry}] -= rec.FlowMw
	}

	type weatherAgg struct {
		temperature meanAgg
		wind        meanAgg
		radiation   meanAgg
		cloud       meanAgg
	}
	weatherByKey := make(map[key]*weatherAgg)
	for _, rec := range weather {
		if err := checkCanonical(rec.Timestamp, "weather"); err != nil {
			return nil, err
		}
		country, ok := a.locationCountries[rec.Location]
		if !ok {
			logger.Debugf("Skipping weather observation for unmapped location '%s'.", rec.Location)
			continue
		}
		k := key{rec.Timestamp.Unix(), country}
		agg := weatherByKey[k]
		if agg == nil {
			agg = &weatherAgg{}
			weatherByKey[k] = agg
		}
		agg.temperature.add(rec.TemperatureC)
		agg.wind.add(rec.WindSpeed100M)
		agg.radiation.add(rec.SolarRadiation)
		agg.cloud.add(rec.CloudCover)
	}

	rows := make([]model.AnalysisRow, 0, len(hourIndex)*len(entities))
	for _, ts := range hourIndex {
		features := timeutil.Features(ts)
		for _, country := range entities {
			k := key{ts.Unix(), country}
			row := model.AnalysisRow{
				Timestamp:          ts.UnixMilli(),
				Country:            country,
				Hour:               features.Hour,
				DayOfWeek:          features.DayOfWeek,
				Month:              features.Month,
				Year:               features.Year,
				Quarter:            features.Quarter,
				DayOfYear:          features.DayOfYear,
				IsWeekend:          features.IsWeekend,
				IsIberianException: features.IsIberianException,
			}

			if v, ok := priceByKey[k]; ok {
				row.PriceEurMwh = ptr(v)
			}
			if agg, ok := genByKey[k]; ok {
				row.TotalGenerationMw = ptr(agg.total)
				row.WindGenerationMw = ptr(agg.wind)
				row.SolarGenerationMw = ptr(agg.solar)
			}
			if v, ok := netImportByKey[k]; ok {
				row.NetImportMw = ptr(v)
			}
			if agg, ok := weatherByKey[k]; ok {
				row.TemperatureC = agg.temperature.mean()
				row.WindSpeed100M = agg.wind.mean()
				row.SolarRadiation = agg.radiation.mean()
				row.CloudCover = agg.cloud.mean()
			}

			rows = append(rows, row)
		}
	}

	// Row-count invariant: exactly |index| × |entities|.
	if len(rows) != len(hourIndex)*len(entities) {
		return nil, exception.NewPipelineErrorf(moduleName,
			"panel row count mismatch: got %d, want %d", len(rows), len(hourIndex)*len(entities))
	}

	logger.Infof("Assembled panel: %d hours x %d entities = %d rows.", len(hourIndex), len(entities), len(rows))
	return &Panel{Index: hourIndex, Entities: entities, Rows: rows}, nil
}

// checkCanonical compares instants rather than locations: drivers may hand
// back fixed-offset zones for stored UTC values, which still join correctly
// through the Unix-second map keys.
func checkCanonical(ts time.Time, table string) error {
	if !ts.Equal(timeutil.Normalize(ts)) {
		return exception.NewPipelineError(moduleName,
			fmt.Sprintf("table %s holds non-canonical timestamp %s", table, ts),
			exception.ErrJoinKeyMismatch, false, false)
	}
	return nil
}

func ptr(v float64) *float64 {
	return &v
}

// meanAgg averages observed values, ignoring null cells entirely: an hour
// where no location observed a metric stays null in the panel.
type meanAgg struct {
	sum float64
	n   int
}

func (m *meanAgg) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m *meanAgg) mean() *float64 {
	if m.n == 0 {
		return nil
	}
	return ptr(m.sum / float64(m.n))
}
