// Package store implements the canonical UTC hourly store on top of the
// database adapter. Every table carries a composite (timestamp, entity...)
// primary key; writes are upserts that replace the stored row with the
// incoming one, so re-ingesting an overlapping range self-heals.
package store

import (
	"context"
	"time"

	"github.com/tigerroll/mibel/internal/domain/model"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/pkg/adapter/database"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "store"

// tableKeys maps each canonical table to its composite key columns.
var tableKeys = map[string][]string{
	model.DayAheadPrice{}.TableName():      {"timestamp", "country"},
	model.Generation{}.TableName():         {"timestamp", "country", "technology"},
	model.CrossBorderFlow{}.TableName():    {"timestamp", "from_country", "to_country"},
	model.WeatherObservation{}.TableName(): {"timestamp", "location"},
}

// tableValueColumns maps each canonical table to its non-key value columns,
// the columns replaced on conflict.
var tableValueColumns = map[string][]string{
	model.DayAheadPrice{}.TableName():   {"price_eur_mwh", "energy_mwh"},
	model.Generation{}.TableName():      {"generation_mw"},
	model.CrossBorderFlow{}.TableName(): {"flow_mw"},
	model.WeatherObservation{}.TableName(): {
		"latitude", "longitude",
		"temperature_c", "wind_speed_10m", "wind_speed_100m", "wind_direction_100m",
		"solar_radiation", "dni", "diffuse_radiation", "cloud_cover",
	},
}

// tableProbes maps each canonical table to an empty model used to address the
// table through the executor.
var tableProbes = map[string]func() interface{}{
	model.DayAheadPrice{}.TableName():      func() interface{} { return &model.DayAheadPrice{} },
	model.Generation{}.TableName():         func() interface{} { return &model.Generation{} },
	model.CrossBorderFlow{}.TableName():    func() interface{} { return &model.CrossBorderFlow{} },
	model.WeatherObservation{}.TableName(): func() interface{} { return &model.WeatherObservation{} },
}

// UpsertResult reports the outcome of one batch upsert.
type UpsertResult struct {
	// Written is the number of records sent to the store.
	Written int64
	// Replaced is the number of records that hit an existing key and replaced it.
	Replaced int64
}

// Store provides canonical-table operations over a database connection.
type Store struct {
	conn database.DBConnection
}

// NewStore creates a Store bound to the given connection.
func NewStore(conn database.DBConnection) *Store {
	return &Store{conn: conn}
}

// Ops exposes the store operations over a single executor, which is either the
// pooled connection or an open transaction from WithinTx.
type Ops struct {
	exec database.DBExecutor
}

// WithinTx runs fn inside one store transaction. This is the chunk commit
// boundary: a failed chunk rolls back as a unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, ops *Ops) error) error {
	return s.conn.WithinTx(ctx, func(ctx context.Context, tx database.DBExecutor) error {
		return fn(ctx, &Ops{exec: tx})
	})
}

// Direct returns the store operations bound to the pooled connection,
// outside any explicit transaction.
func (s *Store) Direct() *Ops {
	return &Ops{exec: s.conn}
}

// upsert writes the batch with replace-on-conflict semantics and derives the
// replacement count from the table row count delta.
func (o *Ops) upsert(ctx context.Context, records interface{}, probe interface{}, tableName string, batchLen int) (UpsertResult, error) {
	if batchLen == 0 {
		return UpsertResult{}, nil
	}

	before, err := o.exec.Count(ctx, probe, nil)
	if err != nil {
		return UpsertResult{}, exception.NewPipelineError(moduleName, "failed to count "+tableName+" before upsert", err, false, false)
	}

	if _, err := o.exec.ExecuteUpsert(ctx, records, tableName, tableKeys[tableName], tableValueColumns[tableName]); err != nil {
		return UpsertResult{}, exception.NewPipelineError(moduleName, "failed to upsert into "+tableName, err, false, false)
	}

	after, err := o.exec.Count(ctx, probe, nil)
	if err != nil {
		return UpsertResult{}, exception.NewPipelineError(moduleName, "failed to count "+tableName+" after upsert", err, false, false)
	}

	result := UpsertResult{
		Written:  int64(batchLen),
		Replaced: int64(batchLen) - (after - before),
	}
	if result.Replaced > 0 {
		logger.Infof("DuplicateKeyResolved: table=%s replaced=%d incoming=%d", tableName, result.Replaced, batchLen)
	}
	return result, nil
}

// UpsertPrices writes day-ahead price records.
func (o *Ops) UpsertPrices(ctx context.Context, records []model.DayAheadPrice) (UpsertResult, error) {
	return o.upsert(ctx, &records, &model.DayAheadPrice{}, model.DayAheadPrice{}.TableName(), len(records))
}

// UpsertGeneration writes generation records.
func (o *Ops) UpsertGeneration(ctx context.Context, records []model.Generation) (UpsertResult, error) {
	return o.upsert(ctx, &records, &model.Generation{}, model.Generation{}.TableName(), len(records))
}

// UpsertFlows writes cross-border flow records.
func (o *Ops) UpsertFlows(ctx context.Context, records []model.CrossBorderFlow) (UpsertResult, error) {
	return o.upsert(ctx, &records, &model.CrossBorderFlow{}, model.CrossBorderFlow{}.TableName(), len(records))
}

// UpsertWeather writes weather observation records.
func (o *Ops) UpsertWeather(ctx context.Context, records []model.WeatherObservation) (UpsertResult, error) {
	return o.upsert(ctx, &records, &model.WeatherObservation{}, model.WeatherObservation{}.TableName(), len(records))
}

// PricesInRange reads day-ahead prices with canonical timestamps in [start, end].
func (o *Ops) PricesInRange(ctx context.Context, start, end time.Time) ([]model.DayAheadPrice, error) {
	var out []model.DayAheadPrice
	err := o.exec.ExecuteRawQuery(ctx, &out,
		"SELECT * FROM prices_day_ahead WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp, country", start, end)
	return out, err
}

// GenerationInRange reads generation records in [start, end].
func (o *Ops) GenerationInRange(ctx context.Context, start, end time.Time) ([]model.Generation, error) {
	var out []model.Generation
	err := o.exec.ExecuteRawQuery(ctx, &out,
		"SELECT * FROM generation WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp, country, technology", start, end)
	return out, err
}

// FlowsInRange reads cross-border flows in [start, end].
func (o *Ops) FlowsInRange(ctx context.Context, start, end time.Time) ([]model.CrossBorderFlow, error) {
	var out []model.CrossBorderFlow
	err := o.exec.ExecuteRawQuery(ctx, &out,
		"SELECT * FROM cross_border_flows WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp, from_country, to_country", start, end)
	return out, err
}

// WeatherInRange reads weather observations in [start, end].
func (o *Ops) WeatherInRange(ctx context.Context, start, end time.Time) ([]model.WeatherObservation, error) {
	var out []model.WeatherObservation
	err := o.exec.ExecuteRawQuery(ctx, &out,
		"SELECT * FROM weather WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp, location", start, end)
	return out, err
}

// Entities plucks the distinct entity values of a table column (e.g., the
// countries present in prices_day_ahead).
func (o *Ops) Entities(ctx context.Context, probe interface{}, column string) ([]string, error) {
	var out []string
	if err := o.exec.Pluck(ctx, probe, column, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRows removes the rows of a canonical table matching the equality
// conditions and reports how many went. The reload path clears each
// configured entity through this before re-ingesting its range.
func (o *Ops) DeleteRows(ctx context.Context, tableName string, conditions map[string]interface{}) (int64, error) {
	probe, ok := tableProbes[tableName]
	if !ok {
		return 0, exception.NewPipelineErrorf(moduleName, "unknown canonical table %q", tableName)
	}
	if len(conditions) == 0 {
		return 0, exception.NewPipelineErrorf(moduleName, "refusing unconditional delete from %s", tableName)
	}

	removed, err := o.exec.ExecuteUpdate(ctx, probe(), "DELETE", tableName, conditions)
	if err != nil {
		return 0, exception.NewPipelineError(moduleName, "failed to delete rows from "+tableName, err, false, false)
	}
	if removed > 0 {
		logger.Infof("Cleared %d rows from %s (%v).", removed, tableName, conditions)
	}
	return removed, nil
}

// LatestHour reports the most recent stored hour of a canonical table. The
// second return is false when the table is empty.
func (o *Ops) LatestHour(ctx context.Context, tableName string) (time.Time, bool, error) {
	var latest time.Time
	var found bool

	switch tableName {
	case model.DayAheadPrice{}.TableName():
		var rows []model.DayAheadPrice
		if err := o.exec.ExecuteQueryAdvanced(ctx, &rows, nil, "timestamp DESC", 1); err != nil {
			return time.Time{}, false, err
		}
		if len(rows) > 0 {
			latest, found = rows[0].Timestamp, true
		}
	case model.Generation{}.TableName():
		var rows []model.Generation
		if err := o.exec.ExecuteQueryAdvanced(ctx, &rows, nil, "timestamp DESC", 1); err != nil {
			return time.Time{}, false, err
		}
		if len(rows) > 0 {
			latest, found = rows[0].Timestamp, true
		}
	case model.CrossBorderFlow{}.TableName():
		var rows []model.CrossBorderFlow
		if err := o.exec.ExecuteQueryAdvanced(ctx, &rows, nil, "timestamp DESC", 1); err != nil {
			return time.Time{}, false, err
		}
		if len(rows) > 0 {
			latest, found = rows[0].Timestamp, true
		}
	case model.WeatherObservation{}.TableName():
		var rows []model.WeatherObservation
		if err := o.exec.ExecuteQueryAdvanced(ctx, &rows, nil, "timestamp DESC", 1); err != nil {
			return time.Time{}, false, err
		}
		if len(rows) > 0 {
			latest, found = rows[0].Timestamp, true
		}
	default:
		return time.Time{}, false, exception.NewPipelineErrorf(moduleName, "unknown canonical table %q", tableName)
	}

	if !found {
		return time.Time{}, false, nil
	}
	return timeutil.Normalize(latest), true, nil
}

// entityHours fetches the stored hours of one entity of a canonical table.
func (o *Ops) entityHours(ctx context.Context, tableName, entityColumn, entity string) ([]time.Time, error) {
	conditions := map[string]interface{}{entityColumn: entity}
	var hours []time.Time

	switch tableName {
	case model.DayAheadPrice{}.TableName():
		var rows []model.DayAheadPrice
		if err := o.exec.ExecuteQuery(ctx, &rows, conditions); err != nil {
			return nil, err
		}
		for _, r := range rows {
			hours = append(hours, r.Timestamp)
		}
	case model.Generation{}.TableName():
		var rows []model.Generation
		if err := o.exec.ExecuteQuery(ctx, &rows, conditions); err != nil {
			return nil, err
		}
		for _, r := range rows {
			hours = append(hours, r.Timestamp)
		}
	case model.CrossBorderFlow{}.TableName():
		var rows []model.CrossBorderFlow
		if err := o.exec.ExecuteQuery(ctx, &rows, conditions); err != nil {
			return nil, err
		}
		for _, r := range rows {
			hours = append(hours, r.Timestamp)
		}
	case model.WeatherObservation{}.TableName():
		var rows []model.WeatherObservation
		if err := o.exec.ExecuteQuery(ctx, &rows, conditions); err != nil {
			return nil, err
		}
		for _, r := range rows {
			hours = append(hours, r.Timestamp)
		}
	default:
		return nil, exception.NewPipelineErrorf(moduleName, "unknown canonical table %q", tableName)
	}
	return hours, nil
}
