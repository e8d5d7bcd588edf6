// Package transform converts raw source-shaped records into canonical store models.
package transform

import (
	"fmt"
	"time"

	"github.com/tigerroll/mibel/internal/domain/entity"
	"github.com/tigerroll/mibel/internal/domain/model"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "transform"

// conceptCountries maps OMIE price concept labels to market areas.
var conceptCountries = map[string]string{
	"PRICE_SP": "ES",
	"PRICE_PT": "PT",
}

// energyConcepts maps OMIE matched-energy concept labels to market areas.
// Energy cells attach to the price record sharing their hour and country.
var energyConcepts = map[string]string{
	"ENER_IB_SP": "ES",
	"ENER_IB_PT": "PT",
}

// Report counts the rows and cells the transformer dropped or rejected.
// The counts feed the run summary; nothing here is fatal.
type Report struct {
	// RowsConverted is the number of long records produced.
	RowsConverted int
	// H25Dropped counts DST fall-back overflow cells discarded.
	H25Dropped int
	// MissingCells counts empty hour slots skipped (never coerced to zero).
	MissingCells int
	// UnknownConcepts counts rows whose concept label has no country mapping.
	UnknownConcepts int
	// RejectedRows counts rows with an unparseable date or no parseable cells.
	RejectedRows int
}

// omieDateLayouts are the trading-day formats observed in OMIE files.
var omieDateLayouts = []string{"2006-01-02", "02/01/2006"}

func parseTradingDay(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range omieDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

type priceKey struct {
	ts      int64
	country string
}

// slotTimestamp maps hour slot H{n} (slot = n-1) onto the trading date taken
// as a UTC calendar day: H1 is the day's 00:00Z hour and H24 its 23:00Z hour.
func slotTimestamp(day time.Time, slot int) time.Time {
	return timeutil.Normalize(day.Add(time.Duration(slot) * time.Hour))
}

// PriceRows converts OMIE wide-format rows into long day-ahead price records.
//
// Each hour slot H{n} is the offset n-1 from the trading date, so one full day
// always spans 00:00Z..23:00Z. The H25 overflow cell printed on the DST
// fall-back day is redundant under this mapping and is always dropped and
// counted in the report. Missing cells are skipped, never coerced to zero.
// Matched-energy concept rows fill the optional energy column of the price
// record for the same hour and country.
func PriceRows(rows []entity.OmieDailyRow) ([]model.DayAheadPrice, *Report, error) {
	report := &Report{}
	var out []model.DayAheadPrice
	index := make(map[priceKey]int)

	for _, row := range rows {
		country, ok := conceptCountries[row.Concept]
		if !ok {
			continue
		}

		day, err := parseTradingDay(row.Date)
		if err != nil {
			logger.Warnf("Rejecting OMIE row with unparseable trading day '%s': %v", row.Date, err)
			report.RejectedRows++
			continue
		}

		converted := 0
		for slot, cell := range row.Hours {
			if cell == nil {
				// Only H1..H24 count as missing; an absent H25 is the normal case.
				if slot < 24 {
					report.MissingCells++
				}
				continue
			}
			if slot == 24 {
				// DST fall-back overflow column, dropped consistently.
				report.H25Dropped++
				continue
			}

			ts := slotTimestamp(day, slot)
			index[priceKey{ts.Unix(), country}] = len(out)
			out = append(out, model.DayAheadPrice{
				Timestamp:   ts,
				Country:     country,
				PriceEurMwh: *cell,
			})
			converted++
		}

		if converted == 0 {
			logger.Warnf("Rejecting OMIE row for %s/%s: no parseable hour cells.", row.Date, row.Concept)
			report.RejectedRows++
		}
		report.RowsConverted += converted
	}

	// Second pass: energy rows attach to the price records built above, so
	// file ordering between the two concept families does not matter.
	for _, row := range rows {
		country, ok := energyConcepts[row.Concept]
		if !ok {
			if _, isPrice := conceptCountries[row.Concept]; !isPrice {
				logger.Debugf("Skipping OMIE row with unmapped concept '%s'.", row.Concept)
				report.UnknownConcepts++
			}
			continue
		}

		day, err := parseTradingDay(row.Date)
		if err != nil {
			logger.Warnf("Rejecting OMIE energy row with unparseable trading day '%s': %v", row.Date, err)
			report.RejectedRows++
			continue
		}

		for slot, cell := range row.Hours {
			if cell == nil || slot == 24 {
				continue
			}
			ts := slotTimestamp(day, slot)
			if i, ok := index[priceKey{ts.Unix(), country}]; ok {
				out[i].EnergyMwh = cell
			}
		}
	}

	return out, report, nil
}

// FlowRows converts ENTSO-E flow series points into cross-border flow records.
// Points whose kind is not EntsoeSeriesFlow are rejected.
func FlowRows(points []entity.EntsoeSeriesPoint) ([]model.CrossBorderFlow, *Report, error) {
	report := &Report{}
	out := make([]model.CrossBorderFlow, 0, len(points))

	for _, p := range points {
		if p.Kind != entity.EntsoeSeriesFlow {
			return nil, nil, exception.NewPipelineErrorf(moduleName, "unexpected series kind %q in flow conversion", p.Kind)
		}
		if p.OutArea == "" || p.InArea == "" {
			report.RejectedRows++
			continue
		}
		out = append(out, model.CrossBorderFlow{
			Timestamp:   timeutil.Normalize(p.Timestamp),
			FromCountry: p.OutArea,
			ToCountry:   p.InArea,
			FlowMw:      p.Value,
		})
		report.RowsConverted++
	}
	return out, report, nil
}

// GenerationRows converts ENTSO-E generation series points into generation records.
func GenerationRows(points []entity.EntsoeSeriesPoint) ([]model.Generation, *Report, error) {
	report := &Report{}
	out := make([]model.Generation, 0, len(points))

	for _, p := range points {
		if p.Kind != entity.EntsoeSeriesGeneration {
			return nil, nil, exception.NewPipelineErrorf(moduleName, "unexpected series kind %q in generation conversion", p.Kind)
		}
		if p.Area == "" || p.Technology == "" {
			report.RejectedRows++
			continue
		}
		out = append(out, model.Generation{
			Timestamp:    timeutil.Normalize(p.Timestamp),
			Country:      p.Area,
			Technology:   p.Technology,
			GenerationMw: p.Value,
		})
		report.RowsConverted++
	}
	return out, report, nil
}

// metricCell reads one cell of an hourly metric array. A variable that was
// not requested comes back as a nil slice and yields all-null cells.
func metricCell(arr []*float64, i int) *float64 {
	if i < len(arr) {
		return arr[i]
	}
	return nil
}

// WeatherRows converts an Open-Meteo archive payload into weather records for
// the named location. Every requested metric array must match the time array
// in length; absent variables stay null per record.
func WeatherRows(location string, archive *entity.OpenMeteoArchive) ([]model.WeatherObservation, *Report, error) {
	h := archive.Hourly
	n := len(h.Time)
	metrics := map[string][]*float64{
		"temperature_2m":           h.Temperature2M,
		"wind_speed_10m":           h.WindSpeed10M,
		"wind_speed_100m":          h.WindSpeed100M,
		"wind_direction_100m":      h.WindDirection100M,
		"shortwave_radiation":      h.ShortwaveRadiation,
		"direct_normal_irradiance": h.DirectNormalIrradiance,
		"diffuse_radiation":        h.DiffuseRadiation,
		"cloud_cover":              h.CloudCover,
	}
	for name, arr := range metrics {
		if arr != nil && len(arr) != n {
			return nil, nil, exception.NewPipelineErrorf(moduleName,
				"ragged hourly arrays for location %s: time=%d %s=%d", location, n, name, len(arr))
		}
	}

	report := &Report{}
	out := make([]model.WeatherObservation, 0, n)

	for i := 0; i < n; i++ {
		ts, err := timeutil.ParseNaiveUTC(h.Time[i])
		if err != nil {
			logger.Warnf("Rejecting weather record for %s with unparseable timestamp '%s': %v", location, h.Time[i], err)
			report.RejectedRows++
			continue
		}
		out = append(out, model.WeatherObservation{
			Timestamp:         ts,
			Location:          location,
			Latitude:          archive.Latitude,
			Longitude:         archive.Longitude,
			TemperatureC:      metricCell(h.Temperature2M, i),
			WindSpeed10M:      metricCell(h.WindSpeed10M, i),
			WindSpeed100M:     metricCell(h.WindSpeed100M, i),
			WindDirection100M: metricCell(h.WindDirection100M, i),
			SolarRadiation:    metricCell(h.ShortwaveRadiation, i),
			Dni:               metricCell(h.DirectNormalIrradiance, i),
			DiffuseRadiation:  metricCell(h.DiffuseRadiation, i),
			CloudCover:        metricCell(h.CloudCover, i),
		})
		report.RowsConverted++
	}
	return out, report, nil
}

// String renders a compact summary for run logs.
func (r *Report) String() string {
	return fmt.Sprintf("converted=%d h25_dropped=%d missing_cells=%d unknown_concepts=%d rejected_rows=%d",
		r.RowsConverted, r.H25Dropped, r.MissingCells, r.UnknownConcepts, r.RejectedRows)
}
