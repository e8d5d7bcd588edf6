package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/mibel/internal/config"
)

const testYAML = `
mibel:
  batch:
    start_date: "2022-06-15"
    end_date: "2022-06-16"
    chunk_days: 3
  system:
    logging:
      level: "DEBUG"
  sources:
    entsoe:
      api_token: "yaml-token"
      areas:
        - "ES"
  database:
    default:
      type: "sqlite"
      database: "./test.db"
  storage:
    artifacts:
      type: "local"
      base_dir: "/tmp/artifacts"
  export:
    output_dir: "/tmp/out"
    upload: true
`

func TestLoadConfigMergesYAMLOverDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("", []byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "2022-06-15", cfg.Mibel.Batch.StartDate)
	assert.Equal(t, "2022-06-16", cfg.Mibel.Batch.EndDate)
	assert.Equal(t, 3, cfg.Mibel.Batch.ChunkDays)
	assert.Equal(t, "DEBUG", cfg.Mibel.System.Logging.Level)
	assert.Equal(t, "yaml-token", cfg.Mibel.Sources.Entsoe.APIToken)
	assert.Equal(t, []string{"ES"}, cfg.Mibel.Sources.Entsoe.Areas)

	// Defaults survive where the YAML is silent.
	assert.Equal(t, 1000, cfg.Mibel.Batch.PolitenessPauseMs)
	assert.NotEmpty(t, cfg.Mibel.Sources.Omie.BaseURL)
	assert.Equal(t, []string{"ES", "PT"}, cfg.Mibel.Sources.Omie.Countries)
	assert.Equal(t, "default", cfg.Mibel.Infrastructure.PipelineDBRef)

	db, ok := cfg.Mibel.Databases["default"]
	require.True(t, ok)
	assert.Equal(t, "sqlite", db.Type)
	assert.Equal(t, "./test.db", db.Database)

	st, ok := cfg.Mibel.Storages["artifacts"]
	require.True(t, ok)
	assert.Equal(t, "local", st.Type)
	assert.Equal(t, "/tmp/artifacts", st.BaseDir)

	assert.Equal(t, "/tmp/out", cfg.Mibel.Export.OutputDir)
	assert.True(t, cfg.Mibel.Export.Upload)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MIBEL_BATCH_START_DATE", "2023-01-01")
	t.Setenv("MIBEL_SOURCES_ENTSOE_API_TOKEN", "env-token")

	cfg, err := config.LoadConfig("", []byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "2023-01-01", cfg.Mibel.Batch.StartDate)
	assert.Equal(t, "env-token", cfg.Mibel.Sources.Entsoe.APIToken)
	// Untouched values keep their YAML settings.
	assert.Equal(t, "2022-06-16", cfg.Mibel.Batch.EndDate)
}

func TestLoadConfigExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_TOKEN", "expanded-token")

	yamlWithPlaceholder := `
mibel:
  sources:
    entsoe:
      api_token: "${TEST_TOKEN}"
`
	cfg, err := config.LoadConfig("", []byte(yamlWithPlaceholder))
	require.NoError(t, err)
	assert.Equal(t, "expanded-token", cfg.Mibel.Sources.Entsoe.APIToken)
}

func TestLoadConfigBindsExpandedScalars(t *testing.T) {
	// Placeholder expansion yields strings; the binder must still land them
	// on typed fields.
	t.Setenv("TEST_CHUNK_DAYS", "5")
	t.Setenv("TEST_RELOAD", "true")

	yamlWithPlaceholders := `
mibel:
  batch:
    chunk_days: "${TEST_CHUNK_DAYS}"
    reload: "${TEST_RELOAD}"
`
	cfg, err := config.LoadConfig("", []byte(yamlWithPlaceholders))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Mibel.Batch.ChunkDays)
	assert.True(t, cfg.Mibel.Batch.Reload)
}

func TestLoadConfigReloadFlag(t *testing.T) {
	yamlReload := `
mibel:
  batch:
    reload: true
`
	cfg, err := config.LoadConfig("", []byte(yamlReload))
	require.NoError(t, err)
	assert.True(t, cfg.Mibel.Batch.Reload)

	cfg, err = config.LoadConfig("", []byte(testYAML))
	require.NoError(t, err)
	assert.False(t, cfg.Mibel.Batch.Reload)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := config.LoadConfig("", []byte("mibel: [unbalanced"))
	assert.Error(t, err)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, 7, cfg.Mibel.Batch.ChunkDays)
	assert.Equal(t, 1000, cfg.Mibel.Batch.PolitenessPauseMs)
	assert.Len(t, cfg.Mibel.Sources.OpenMeteo.Locations, 3)
	assert.Len(t, cfg.Mibel.Sources.OpenMeteo.HourlyVariables, 8)
	assert.Contains(t, cfg.Mibel.Sources.OpenMeteo.HourlyVariables, "wind_speed_100m")
	assert.Equal(t, []string{"ES-FR", "FR-ES", "ES-PT", "PT-ES"}, cfg.Mibel.Sources.Entsoe.Borders)
}
