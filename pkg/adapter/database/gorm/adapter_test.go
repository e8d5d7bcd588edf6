package gorm_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgres_driver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/mibel/pkg/adapter/database"
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	gormadapter "github.com/tigerroll/mibel/pkg/adapter/database/gorm"
)

func setupMockAdapter(t *testing.T) (*gormadapter.GormDBAdapter, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db, err := gorm.Open(postgres_driver.New(postgres_driver.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	conn := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "postgres"}, "mock")
	adapter, ok := conn.(*gormadapter.GormDBAdapter)
	require.True(t, ok)
	return adapter, mock
}

func TestExecuteRawQuery(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	now := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM prices_day_ahead WHERE country = $1")).
		WithArgs("ES").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "country", "price_eur_mwh"}).
			AddRow(now, "ES", 110.5))

	var rows []struct {
		Timestamp   time.Time `gorm:"column:timestamp"`
		Country     string    `gorm:"column:country"`
		PriceEurMwh float64   `gorm:"column:price_eur_mwh"`
	}
	err := adapter.ExecuteRawQuery(context.Background(),
		&rows, "SELECT * FROM prices_day_ahead WHERE country = $1", "ES")
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "ES", rows[0].Country)
	assert.Equal(t, 110.5, rows[0].PriceEurMwh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// priceRow pins the table through TableName so the executor tests exercise
// the model-driven query paths.
type priceRow struct {
	Timestamp   time.Time `gorm:"column:timestamp"`
	Country     string    `gorm:"column:country"`
	PriceEurMwh float64   `gorm:"column:price_eur_mwh"`
}

func (priceRow) TableName() string { return "prices_day_ahead" }

func TestExecuteQueryFiltersByConditions(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	now := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "prices_day_ahead" WHERE .*country.*`).
		WithArgs("ES").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "country", "price_eur_mwh"}).
			AddRow(now, "ES", 110.5).
			AddRow(now.Add(time.Hour), "ES", 98.2))

	var rows []priceRow
	err := adapter.ExecuteQuery(context.Background(), &rows, map[string]interface{}{"country": "ES"})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "ES", rows[0].Country)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryAdvancedOrdersAndLimits(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	latest := time.Date(2022, time.June, 15, 21, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "prices_day_ahead" ORDER BY timestamp DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "country", "price_eur_mwh"}).
			AddRow(latest, "PT", 98.2))

	var rows []priceRow
	err := adapter.ExecuteQueryAdvanced(context.Background(), &rows, nil, "timestamp DESC", 1)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, latest, rows[0].Timestamp.UTC())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdateDelete(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	mock.ExpectExec(`DELETE FROM "prices_day_ahead" WHERE .*country.*`).
		WithArgs("ES").
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := adapter.ExecuteUpdate(context.Background(), &priceRow{}, "DELETE",
		"prices_day_ahead", map[string]interface{}{"country": "ES"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdateUnknownOperation(t *testing.T) {
	adapter, _ := setupMockAdapter(t)

	_, err := adapter.ExecuteUpdate(context.Background(), &priceRow{}, "TRUNCATE", "prices_day_ahead", nil)
	assert.Error(t, err)
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM prices_day_ahead")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	err := adapter.WithinTx(context.Background(), func(ctx context.Context, tx database.DBExecutor) error {
		var out []struct {
			Count int64 `gorm:"column:count"`
		}
		return tx.ExecuteRawQuery(ctx, &out, "SELECT count(*) FROM prices_day_ahead")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := adapter.WithinTx(context.Background(), func(ctx context.Context, tx database.DBExecutor) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTableNotExistError(t *testing.T) {
	adapter, _ := setupMockAdapter(t)

	assert.True(t, adapter.IsTableNotExistError(errors.New(`no such table: prices_day_ahead`)))
	assert.True(t, adapter.IsTableNotExistError(errors.New(`pq: relation "generation" does not exist`)))
	assert.True(t, adapter.IsTableNotExistError(errors.New(`Error 1146: Table 'mibel.weather' doesn't exist`)))
	assert.False(t, adapter.IsTableNotExistError(errors.New("syntax error")))
	assert.False(t, adapter.IsTableNotExistError(nil))
}

func TestAdapterMetadata(t *testing.T) {
	adapter, _ := setupMockAdapter(t)

	assert.Equal(t, "postgres", adapter.Type())
	assert.Equal(t, "mock", adapter.Name())
	assert.Equal(t, "postgres", adapter.Config().Type)

	sqlDB, err := adapter.GetSQLDB()
	require.NoError(t, err)
	assert.NotNil(t, sqlDB)
}
