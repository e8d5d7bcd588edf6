package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/mibel/pkg/adapter/database"
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// GormDBConnectionResolver selects the DBProvider matching a named configuration
// and hands out healthy connections, reconnecting stale ones.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider // Keyed by database type (e.g., "postgres", "sqlite").
	configs     map[string]dbconfig.DatabaseConfig
}

// NewGormDBConnectionResolver creates a new GormDBConnectionResolver.
// It receives dependencies using Fx's parameter struct.
func NewGormDBConnectionResolver(p struct {
	fx.In
	DBProviders []database.DBProvider `group:"db_providers"` // All DBProviders provided by Fx as a slice.
	Configs     map[string]dbconfig.DatabaseConfig
}) *GormDBConnectionResolver {
	// Converts the received slice of DBProviders into a map for easier lookup.
	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
	}

	return &GormDBConnectionResolver{
		dbProviders: providerMap,
		configs:     p.Configs,
	}
}

// ResolveDBConnection resolves a database connection with the specified name.
// It attempts to reconnect if the connection is closed or invalid.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	// 1. Get DB type from configuration.
	dbConfig, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: database configuration '%s' not found", name)
	}

	// 2. Select the appropriate DBProvider.
	provider, ok := r.dbProviders[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", dbConfig.Type, name)
	}

	// 3. Get connection from DBProvider.
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: failed to get connection '%s': %w", name, err)
	}

	// 4. Check connection health and attempt to reconnect if necessary.
	sqlDB, getDBErr := conn.GetSQLDB()
	if getDBErr != nil {
		logger.Debugf("DBConnectionResolver: Failed to get underlying *sql.DB for connection '%s': %v", name, getDBErr)
		return conn, nil
	}

	pingErr := sqlDB.PingContext(ctx)
	if pingErr != nil {
		logger.Warnf("DBConnectionResolver: Connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnectedConn, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("DBConnectionResolver: failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("DBConnectionResolver: Successfully reconnected connection '%s'.", name)
		return reconnectedConn, nil
	}

	return conn, nil
}
