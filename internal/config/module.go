package config

import (
	"go.uber.org/fx"

	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	storageconfig "github.com/tigerroll/mibel/pkg/adapter/storage/config"
)

// ProvideDatabaseConfigs exposes the named database configurations for the DB providers.
func ProvideDatabaseConfigs(cfg *Config) map[string]dbconfig.DatabaseConfig {
	return cfg.Mibel.Databases
}

// ProvideStorageConfigs exposes the named storage configurations for the storage providers.
func ProvideStorageConfigs(cfg *Config) storageconfig.DatasourcesConfig {
	return cfg.Mibel.Storages
}

// Module exports the configuration components for dependency injection.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(ProvideDatabaseConfigs),
	fx.Provide(ProvideStorageConfigs),
)
