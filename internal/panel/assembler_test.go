package panel_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite_driver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/mibel/internal/domain/model"
	"github.com/tigerroll/mibel/internal/panel"
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/internal/timeutil"
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	gormadapter "github.com/tigerroll/mibel/pkg/adapter/database/gorm"
	"github.com/tigerroll/mibel/pkg/support/exception"
)

var testLocationCountries = map[string]string{
	"Madrid":    "ES",
	"Barcelona": "ES",
	"Lisbon":    "PT",
}

func setupPanelStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite_driver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE prices_day_ahead (
			timestamp DATETIME NOT NULL, country TEXT NOT NULL, price_eur_mwh REAL, energy_mwh REAL,
			PRIMARY KEY (timestamp, country))`,
		`CREATE TABLE generation (
			timestamp DATETIME NOT NULL, country TEXT NOT NULL, technology TEXT NOT NULL, generation_mw REAL,
			PRIMARY KEY (timestamp, country, technology))`,
		`CREATE TABLE cross_border_flows (
			timestamp DATETIME NOT NULL, from_country TEXT NOT NULL, to_country TEXT NOT NULL, flow_mw REAL,
			PRIMARY KEY (timestamp, from_country, to_country))`,
		`CREATE TABLE weather (
			timestamp DATETIME NOT NULL, location TEXT NOT NULL,
			latitude REAL NOT NULL, longitude REAL NOT NULL,
			temperature_c REAL, wind_speed_10m REAL, wind_speed_100m REAL, wind_direction_100m REAL,
			solar_radiation REAL, dni REAL, diffuse_radiation REAL, cloud_cover REAL,
			PRIMARY KEY (timestamp, location))`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	conn := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite", Database: dsn}, "test")
	t.Cleanup(func() { _ = conn.Close() })
	return store.NewStore(conn)
}

func dayIndex(t *testing.T, day time.Time, days int) []time.Time {
	t.Helper()
	index, err := timeutil.GenerateHourIndex(day, day.AddDate(0, 0, days-1))
	require.NoError(t, err)
	return index
}

func fptr(v float64) *float64 { return &v }

func findRow(rows []model.AnalysisRow, ts time.Time, country string) *model.AnalysisRow {
	for i := range rows {
		if rows[i].Timestamp == ts.UnixMilli() && rows[i].Country == country {
			return &rows[i]
		}
	}
	return nil
}

func TestAssembleRectangular(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 2)

	var prices []model.DayAheadPrice
	for _, ts := range index {
		prices = append(prices,
			model.DayAheadPrice{Timestamp: ts, Country: "ES", PriceEurMwh: 100},
			model.DayAheadPrice{Timestamp: ts, Country: "PT", PriceEurMwh: 95},
		)
	}
	_, err := ops.UpsertPrices(ctx, prices)
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	p, err := assembler.Assemble(ctx, ops, index, []string{"ES", "PT"})
	require.NoError(t, err)

	// 48 hours x 2 entities.
	assert.Len(t, p.Rows, 96)
	assert.Len(t, p.Index, 48)

	row := findRow(p.Rows, day, "ES")
	require.NotNil(t, row)
	require.NotNil(t, row.PriceEurMwh)
	assert.Equal(t, 100.0, *row.PriceEurMwh)
	assert.True(t, row.IsIberianException)
	assert.Nil(t, row.TotalGenerationMw)
	assert.Nil(t, row.TemperatureC)
}

func TestAssembleGapsBecomeNulls(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 1)

	// Prices for every hour except hour 5.
	var prices []model.DayAheadPrice
	for _, ts := range index {
		if ts.Hour() == 5 {
			continue
		}
		prices = append(prices, model.DayAheadPrice{Timestamp: ts, Country: "ES", PriceEurMwh: 100})
	}
	_, err := ops.UpsertPrices(ctx, prices)
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	p, err := assembler.Assemble(ctx, ops, index, []string{"ES"})
	require.NoError(t, err)

	// The gap hour is still present, with a null metric.
	assert.Len(t, p.Rows, 24)
	gapRow := findRow(p.Rows, day.Add(5*time.Hour), "ES")
	require.NotNil(t, gapRow)
	assert.Nil(t, gapRow.PriceEurMwh)

	fullRow := findRow(p.Rows, day.Add(6*time.Hour), "ES")
	require.NotNil(t, fullRow)
	assert.NotNil(t, fullRow.PriceEurMwh)
}

func TestAssembleGenerationAggregates(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 1)

	_, err := ops.UpsertGeneration(ctx, []model.Generation{
		{Timestamp: day, Country: "ES", Technology: "wind_onshore", GenerationMw: 3000},
		{Timestamp: day, Country: "ES", Technology: "wind_offshore", GenerationMw: 200},
		{Timestamp: day, Country: "ES", Technology: "solar", GenerationMw: 1500},
		{Timestamp: day, Country: "ES", Technology: "nuclear", GenerationMw: 7000},
	})
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	p, err := assembler.Assemble(ctx, ops, index, []string{"ES"})
	require.NoError(t, err)

	row := findRow(p.Rows, day, "ES")
	require.NotNil(t, row)
	require.NotNil(t, row.TotalGenerationMw)
	assert.Equal(t, 11700.0, *row.TotalGenerationMw)
	assert.Equal(t, 3200.0, *row.WindGenerationMw)
	assert.Equal(t, 1500.0, *row.SolarGenerationMw)
}

func TestAssembleNetImport(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 1)

	_, err := ops.UpsertFlows(ctx, []model.CrossBorderFlow{
		{Timestamp: day, FromCountry: "FR", ToCountry: "ES", FlowMw: 1000},
		{Timestamp: day, FromCountry: "ES", ToCountry: "PT", FlowMw: 400},
	})
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	p, err := assembler.Assemble(ctx, ops, index, []string{"ES", "PT"})
	require.NoError(t, err)

	es := findRow(p.Rows, day, "ES")
	require.NotNil(t, es)
	require.NotNil(t, es.NetImportMw)
	assert.Equal(t, 600.0, *es.NetImportMw)

	pt := findRow(p.Rows, day, "PT")
	require.NotNil(t, pt)
	require.NotNil(t, pt.NetImportMw)
	assert.Equal(t, 400.0, *pt.NetImportMw)
}

func TestAssembleWeatherAveragedPerCountry(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 1)

	// Two Spanish locations average into ES; no Portuguese data leaves PT null
	// without changing the row count.
	_, err := ops.UpsertWeather(ctx, []model.WeatherObservation{
		{Timestamp: day, Location: "Madrid", Latitude: 40.4, Longitude: -3.7,
			TemperatureC: fptr(30), WindSpeed100M: fptr(4), SolarRadiation: fptr(800), CloudCover: fptr(10)},
		{Timestamp: day, Location: "Barcelona", Latitude: 41.4, Longitude: 2.2,
			TemperatureC: fptr(26), WindSpeed100M: fptr(6), SolarRadiation: fptr(700), CloudCover: nil},
	})
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	p, err := assembler.Assemble(ctx, ops, index, []string{"ES", "PT"})
	require.NoError(t, err)

	assert.Len(t, p.Rows, 48)

	es := findRow(p.Rows, day, "ES")
	require.NotNil(t, es)
	require.NotNil(t, es.TemperatureC)
	assert.Equal(t, 28.0, *es.TemperatureC)
	require.NotNil(t, es.WindSpeed100M)
	assert.Equal(t, 5.0, *es.WindSpeed100M)
	// A null cell drops out of the mean instead of counting as zero.
	require.NotNil(t, es.CloudCover)
	assert.Equal(t, 10.0, *es.CloudCover)

	pt := findRow(p.Rows, day, "PT")
	require.NotNil(t, pt)
	assert.Nil(t, pt.TemperatureC)
}

func TestAssembleRejectsNonCanonicalTimestamp(t *testing.T) {
	st := setupPanelStore(t)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	index := dayIndex(t, day, 1)

	// A timestamp off the hour boundary slipped past normalization.
	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: day.Add(30 * time.Minute), Country: "ES", PriceEurMwh: 100},
	})
	require.NoError(t, err)

	assembler := panel.NewAssembler(testLocationCountries)
	_, err = assembler.Assemble(ctx, ops, index, []string{"ES"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrJoinKeyMismatch))
}

func TestAssembleEmptyIndex(t *testing.T) {
	st := setupPanelStore(t)
	assembler := panel.NewAssembler(testLocationCountries)
	_, err := assembler.Assemble(context.Background(), st.Direct(), nil, []string{"ES"})
	assert.Error(t, err)
}
