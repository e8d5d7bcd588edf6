package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"go.uber.org/fx"

	"github.com/tigerroll/mibel/internal/app"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary carries its own defaults.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS bundles the schema migration scripts into the binary.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

// getDBProviderOptions selects the DB providers to register based on the
// DB_ADAPTORS environment variable (comma-separated, e.g. "postgres,sqlite").
// Without it, all supported providers are registered.
func getDBProviderOptions() []fx.Option {
	adapters := os.Getenv("DB_ADAPTORS")
	if adapters == "" {
		adapters = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if module, ok := app.DBProviderMap[name]; ok {
			options = append(options, module)
			logger.Debugf("DB provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB provider '%s' is configured but not recognized. Skipping.", name)
		}
	}
	return options
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the pipeline...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	if err := app.RunApplication(ctx, envFilePath, embeddedConfig, migrationsFS, getDBProviderOptions()); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}
