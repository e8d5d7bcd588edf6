package store_test

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
	"github.com/tigerroll/mibel/internal/store"
	"github.com/tigerroll/mibel/internal/timeutil"
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	gormadapter "github.com/tigerroll/mibel/pkg/adapter/database/gorm"
	"github.com/tigerroll/mibel/pkg/support/exception"
)

var canonicalDDL = []string{
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
}

// setupTestStore opens a private in-memory SQLite database with the canonical
// schema applied.
func setupTestStore(t *testing.T, ddl []string) (*store.Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite_driver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	conn := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite", Database: dsn}, "test")
	t.Cleanup(func() { _ = conn.Close() })
	return store.NewStore(conn), db
}

func hourAt(h int) time.Time {
	return time.Date(2022, time.June, 15, h, 0, 0, 0, time.UTC)
}

func TestUpsertPricesInsertsNewRows(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()

	records := []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
		{Timestamp: hourAt(1), Country: "ES", PriceEurMwh: 98.2},
	}

	var result store.UpsertResult
	err := st.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		var txErr error
		result, txErr = ops.UpsertPrices(ctx, records)
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Written)
	assert.Zero(t, result.Replaced)

	stored, err := st.Direct().PricesInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUpsertPricesReplacesOnConflict(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
	})
	require.NoError(t, err)

	// Re-ingest the same hour with a corrected value plus one new hour.
	result, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 999.9},
		{Timestamp: hourAt(1), Country: "ES", PriceEurMwh: 98.2},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Written)
	assert.Equal(t, int64(1), result.Replaced)

	stored, err := ops.PricesInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 999.9, stored[0].PriceEurMwh)
}

func TestUpsertEmptyBatch(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)

	result, err := st.Direct().UpsertPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Written)
	assert.Zero(t, result.Replaced)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithinTx(ctx, func(ctx context.Context, ops *store.Ops) error {
		if _, txErr := ops.UpsertPrices(ctx, []model.DayAheadPrice{
			{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
		}); txErr != nil {
			return txErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := st.Direct().PricesInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestUpsertGenerationCompositeKey(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	// Same hour and country, different technologies: two distinct rows.
	result, err := ops.UpsertGeneration(ctx, []model.Generation{
		{Timestamp: hourAt(10), Country: "ES", Technology: "wind_onshore", GenerationMw: 3200},
		{Timestamp: hourAt(10), Country: "ES", Technology: "solar", GenerationMw: 1800},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Replaced)

	stored, err := ops.GenerationInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEntities(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
		{Timestamp: hourAt(1), Country: "ES", PriceEurMwh: 98.2},
		{Timestamp: hourAt(0), Country: "PT", PriceEurMwh: 110.5},
	})
	require.NoError(t, err)

	entities, err := ops.Entities(ctx, &model.DayAheadPrice{}, "country")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ES", "PT"}, entities)
}

func TestScanResidualDuplicatesClean(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
		{Timestamp: hourAt(0), Country: "PT", PriceEurMwh: 105.0},
	})
	require.NoError(t, err)

	for _, table := range store.CanonicalTables() {
		assert.NoError(t, ops.ScanResidualDuplicates(ctx, table))
	}
}

func TestScanResidualDuplicatesDetects(t *testing.T) {
	// Schema without primary keys so duplicated key combinations can exist,
	// simulating a defective conflict resolver.
	ddl := []string{
		`CREATE TABLE prices_day_ahead (timestamp DATETIME NOT NULL, country TEXT NOT NULL, price_eur_mwh REAL)`,
	}
	st, db := setupTestStore(t, ddl)
	ctx := context.Background()

	ts := hourAt(0)
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Exec(
			"INSERT INTO prices_day_ahead (timestamp, country, price_eur_mwh) VALUES (?, ?, ?)",
			ts, "ES", 110.5).Error)
	}

	err := st.Direct().ScanResidualDuplicates(ctx, "prices_day_ahead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrResidualDuplicate))
}

func TestScanResidualDuplicatesUnknownTable(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	assert.Error(t, st.Direct().ScanResidualDuplicates(context.Background(), "no_such_table"))
}

func TestScanGapsReportsMissingHours(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	hourIndex, err := timeutil.GenerateHourIndex(day, day)
	require.NoError(t, err)

	var records []model.DayAheadPrice
	for _, ts := range hourIndex {
		if ts.Hour() == 5 || ts.Hour() == 17 {
			continue
		}
		records = append(records, model.DayAheadPrice{Timestamp: ts, Country: "ES", PriceEurMwh: 100})
	}
	_, err = ops.UpsertPrices(ctx, records)
	require.NoError(t, err)

	report, err := ops.ScanGaps(ctx, "prices_day_ahead", "country", "ES", hourIndex)
	require.NoError(t, err)

	require.Len(t, report.Missing, 2)
	assert.Equal(t, hourAt(5), report.Missing[0])
	assert.Equal(t, hourAt(17), report.Missing[1])
}

func TestScanGapsComplete(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	day := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	hourIndex, err := timeutil.GenerateHourIndex(day, day)
	require.NoError(t, err)

	records := make([]model.DayAheadPrice, 0, len(hourIndex))
	for _, ts := range hourIndex {
		records = append(records, model.DayAheadPrice{Timestamp: ts, Country: "PT", PriceEurMwh: 100})
	}
	_, err = ops.UpsertPrices(ctx, records)
	require.NoError(t, err)

	report, err := ops.ScanGaps(ctx, "prices_day_ahead", "country", "PT", hourIndex)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
}

func TestUpsertPricesKeepsEnergyColumn(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	energy := 23500.0
	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5, EnergyMwh: &energy},
		{Timestamp: hourAt(1), Country: "ES", PriceEurMwh: 98.2},
	})
	require.NoError(t, err)

	stored, err := ops.PricesInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].EnergyMwh)
	assert.Equal(t, 23500.0, *stored[0].EnergyMwh)
	assert.Nil(t, stored[1].EnergyMwh)
}

func TestDeleteRowsByEntity(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(0), Country: "ES", PriceEurMwh: 110.5},
		{Timestamp: hourAt(1), Country: "ES", PriceEurMwh: 98.2},
		{Timestamp: hourAt(0), Country: "PT", PriceEurMwh: 105.0},
	})
	require.NoError(t, err)

	deleted, err := ops.DeleteRows(ctx, "prices_day_ahead", map[string]interface{}{"country": "ES"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stored, err := ops.PricesInRange(ctx, hourAt(0), hourAt(23))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "PT", stored[0].Country)
}

func TestDeleteRowsRefusesEmptyConditions(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	_, err := st.Direct().DeleteRows(context.Background(), "prices_day_ahead", nil)
	assert.Error(t, err)
}

func TestDeleteRowsUnknownTable(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	_, err := st.Direct().DeleteRows(context.Background(), "no_such_table", map[string]interface{}{"country": "ES"})
	assert.Error(t, err)
}

func TestLatestHourEmptyTable(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)

	_, ok, err := st.Direct().LatestHour(context.Background(), "weather")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestHourReturnsNewestTimestamp(t *testing.T) {
	st, _ := setupTestStore(t, canonicalDDL)
	ctx := context.Background()
	ops := st.Direct()

	_, err := ops.UpsertPrices(ctx, []model.DayAheadPrice{
		{Timestamp: hourAt(3), Country: "ES", PriceEurMwh: 110.5},
		{Timestamp: hourAt(21), Country: "PT", PriceEurMwh: 98.2},
		{Timestamp: hourAt(8), Country: "ES", PriceEurMwh: 97.0},
	})
	require.NoError(t, err)

	latest, ok, err := ops.LatestHour(ctx, "prices_day_ahead")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hourAt(21), latest)
}

func TestCanonicalTables(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"prices_day_ahead", "generation", "cross_border_flows", "weather"},
		store.CanonicalTables())
}
