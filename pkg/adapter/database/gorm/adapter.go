package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tigerroll/mibel/pkg/adapter/database"
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	"github.com/tigerroll/mibel/pkg/support/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gorm_logger "gorm.io/gorm/logger"
)

// TableNamer represents a struct that has a TableName() string method.
type TableNamer interface {
	TableName() string
}

// applyTableName applies the table name to the GORM DB session if the model implements the TableNamer interface.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	val := reflect.ValueOf(model)

	// Dereference the pointer
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	// 1. Check if the model itself implements TableNamer (for single entity)
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	// 2. For slices, check if the element type implements TableNamer.
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()

		// If the element is a pointer type, get its element type.
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}

		// Check if the element type implements TableNamer.
		// Since TableName() is implemented with a value receiver, check using reflect.New(elemType).Interface().
		if reflect.New(elemType).Type().Implements(reflect.TypeOf((*TableNamer)(nil)).Elem()) {
			if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
				return db.Table(namer.TableName())
			}
		}
	}

	// 3. If unable to resolve, let GORM infer the table name from the model.
	return db.Model(model)
}

// NewGormLogger creates a gorm.Logger instance based on the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch strings.ToUpper(level) {
	case "SILENT":
		gormLevel = gorm_logger.Silent
	case "ERROR":
		gormLevel = gorm_logger.Error
	case "WARN":
		gormLevel = gorm_logger.Warn
	case "INFO":
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	writer := NewGormWriter()

	return gorm_logger.New(
		writer,
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter is an io.Writer that redirects GORM log output to the pipeline logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Write implements io.Writer.
func (w *GormWriter) Write(p []byte) (n int, err error) {
	w.Printf("%s", string(p))
	return len(p), nil
}

// Printf implements gormLogger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	// GORM SQL traces are in the format [<duration>ms] SELECT ..., so treat them as DEBUG.
	if strings.Contains(msg, "[") && strings.Contains(msg, "]") && (strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE")) {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}

// gormExecutor implements database.DBExecutor on top of a *gorm.DB handle.
// The same implementation serves both a pooled connection and an open transaction.
type gormExecutor struct {
	db *gorm.DB
}

// ExecuteQuery implements database.DBExecutor.
func (e *gormExecutor) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	db := e.db.WithContext(ctx)

	db = applyTableName(db, target)

	result := db.Where(query).Find(target)
	if result.Error != nil {
		return result.Error
	}

	// Find() does not return ErrRecordNotFound for slices; an empty result is the caller's concern.
	return nil
}

// ExecuteQueryAdvanced implements database.DBExecutor.
func (e *gormExecutor) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := e.db.WithContext(ctx)

	db = applyTableName(db, target)

	if query != nil {
		db = db.Where(query)
	}

	if orderBy != "" {
		db = db.Order(orderBy)
	}

	if limit > 0 {
		db = db.Limit(limit)
	}

	result := db.Find(target)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// ExecuteRawQuery implements database.DBExecutor.
// It runs a raw SQL statement and scans the rows into target.
func (e *gormExecutor) ExecuteRawQuery(ctx context.Context, target interface{}, query string, args ...interface{}) error {
	db := e.db.WithContext(ctx)

	result := db.Raw(query, args...).Scan(target)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// Count implements database.DBExecutor.
func (e *gormExecutor) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := e.db.WithContext(ctx)

	db = applyTableName(db, model)

	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Pluck implements database.DBExecutor.
func (e *gormExecutor) Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error {
	db := e.db.WithContext(ctx)

	db = applyTableName(db, model)

	if query != nil {
		db = db.Where(query)
	}

	db = db.Distinct()
	if err := db.Pluck(column, target).Error; err != nil {
		return err
	}
	return nil
}

// ExecuteUpdate implements database.DBExecutor.
func (e *gormExecutor) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := e.db.WithContext(ctx)

	// NOTE: Skip GORM's default transaction; commit scope is owned by the caller.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	var result *gorm.DB

	// Apply table name if specified (prioritize instructions from the store layer).
	if tableName != "" {
		db = db.Table(tableName)
	}

	switch operation {
	case "CREATE":
		result = db.Create(model)

	case "UPDATE":
		// db.Model(model) automatically uses the model's primary key as a WHERE condition.
		db = db.Model(model)
		result = db.Where(query).Updates(model)

	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)

	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert implements database.DBExecutor.
func (e *gormExecutor) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := e.db.WithContext(ctx)

	// NOTE: Skip GORM's default transaction; commit scope is owned by the caller.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	var columns []clause.Column

	if tableName != "" {
		db = db.Table(tableName)
	}

	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}

	onConflict := clause.OnConflict{
		Columns: columns,
	}

	if len(updateColumns) > 0 {
		// DO UPDATE: replace the stored row with the incoming one.
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		// DO NOTHING: keep the stored row.
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	gormExecutor
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

// NewGormDBAdapter creates a new GormDBAdapter.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) database.DBConnection {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get underlying *sql.DB: %v", err)
	}

	return &GormDBAdapter{
		gormExecutor: gormExecutor{db: db},
		sqlDB:        sqlDB,
		cfg:          cfg,
		dbType:       cfg.Type,
		name:         name,
	}
}

// GetGormDB returns the underlying *gorm.DB instance.
// NOTE: This method is intended for internal use within the 'gorm' adapter package only.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

// WithinTx implements database.DBConnection.
// It opens a transaction, passes a transactional executor to fn, and commits on a nil return.
func (a *GormDBAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.DBExecutor) error) error {
	return a.db.WithContext(ctx).Transaction(func(txDB *gorm.DB) error {
		return fn(ctx, &gormExecutor{db: txDB})
	})
}

// IsTableNotExistError implements database.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// sqlite: "no such table", postgres: "does not exist" (42P01), mysql: "doesn't exist" (1146).
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "doesn't exist")
}

// RefreshConnection implements database.DBConnection.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	// Re-ping the connection pool to ensure validity
	return a.sqlDB.PingContext(ctx)
}

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// GetSQLDB implements database.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}
