package app

import (
	"go.uber.org/fx"

	gormmysql "github.com/tigerroll/mibel/pkg/adapter/database/gorm/mysql"
	gormpostgres "github.com/tigerroll/mibel/pkg/adapter/database/gorm/postgres"
	gormsqlite "github.com/tigerroll/mibel/pkg/adapter/database/gorm/sqlite"
)

// DBProviderMap maps a database adapter name to the Fx module registering its
// provider. main selects entries based on the DB_ADAPTORS environment variable.
var DBProviderMap = map[string]fx.Option{
	"sqlite":   gormsqlite.Module,
	"postgres": gormpostgres.Module,
	"mysql":    gormmysql.Module,
}
