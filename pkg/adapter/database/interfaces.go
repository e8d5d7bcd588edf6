// Package database defines the connection abstractions used by the pipeline's
// storage layer. Concrete implementations live in the gorm subpackage.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
)

// DBExecutor is an interface that defines common write and read operations for a database.
// It is implemented by both a connection and the transactional handle passed to WithinTx.
type DBExecutor interface {
	// ExecuteUpdate performs write operations (INSERT, UPDATE, DELETE).
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an UPSERT operation (ON CONFLICT DO UPDATE / DO NOTHING).
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteQuery executes a read operation (SELECT).
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a read operation with optional sorting and limiting.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// ExecuteRawQuery executes a raw SQL statement and scans the result into target.
	ExecuteRawQuery(ctx context.Context, target interface{}, query string, args ...interface{}) error

	// Count counts the number of records matching the query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Pluck retrieves a list of distinct values for a specific column.
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
}

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	DBExecutor

	// Close closes the underlying connection pool.
	Close() error
	// Type returns the database type (e.g., "sqlite", "postgres").
	Type() string
	// Name returns the logical connection name from configuration.
	Name() string

	// WithinTx executes fn inside a single database transaction.
	// The executor passed to fn shares the transaction; a non-nil error rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBExecutor) error) error

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection forces validation of the database connection.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBProvider is an interface responsible for providing database connections based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the resource type handled by this provider.
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is an Fx tag used to group all DBProvider implementations.
const DBProviderGroup = `group:"db_providers"`
