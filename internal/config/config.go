// Package config provides structures and utilities for managing the pipeline configuration.
package config

import (
	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	storageconfig "github.com/tigerroll/mibel/pkg/adapter/storage/config"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// BatchConfig holds configuration for a pipeline run.
type BatchConfig struct {
	// StartDate is the inclusive first day of the run, formatted as "2006-01-02".
	StartDate string `yaml:"start_date"`
	// EndDate is the inclusive last day of the run, formatted as "2006-01-02".
	EndDate string `yaml:"end_date"`
	// ChunkDays is the number of days ingested per commit boundary.
	ChunkDays int `yaml:"chunk_days"`
	// PolitenessPauseMs is the pause between source HTTP calls in milliseconds.
	PolitenessPauseMs int `yaml:"politeness_pause_ms"`
	// Reload clears the configured entities from every canonical table before
	// ingesting, for a from-scratch rebuild of the run range.
	Reload bool `yaml:"reload"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone. The canonical store is always UTC;
	// this only affects log rendering.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// OmieConfig holds settings for the OMIE day-ahead price source.
type OmieConfig struct {
	// BaseURL is the root of the OMIE file server.
	BaseURL string `yaml:"base_url"`
	// Countries lists the market areas extracted from the wide files (e.g., "ES", "PT").
	Countries []string `yaml:"countries"`
}

// EntsoeConfig holds settings for the ENTSO-E transparency platform source.
type EntsoeConfig struct {
	// BaseURL is the ENTSO-E REST API endpoint.
	BaseURL string `yaml:"base_url"`
	// APIToken is the security token for the transparency platform.
	APIToken string `yaml:"api_token"`
	// Borders lists cross-border flow pairs as "FROM-TO" (e.g., "ES-FR").
	Borders []string `yaml:"borders"`
	// Areas lists bidding zones for generation-by-technology queries.
	Areas []string `yaml:"areas"`
}

// LocationConfig identifies a weather observation point.
type LocationConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// OpenMeteoConfig holds settings for the Open-Meteo archive source.
type OpenMeteoConfig struct {
	// BaseURL is the Open-Meteo archive API endpoint.
	BaseURL string `yaml:"base_url"`
	// Locations lists the observation points to fetch.
	Locations []LocationConfig `yaml:"locations"`
	// HourlyVariables lists the hourly variables requested from the API.
	HourlyVariables []string `yaml:"hourly_variables"`
}

// SourcesConfig groups the upstream data source settings.
type SourcesConfig struct {
	Omie      OmieConfig      `yaml:"omie"`
	Entsoe    EntsoeConfig    `yaml:"entsoe"`
	OpenMeteo OpenMeteoConfig `yaml:"openmeteo"`
}

// ExportConfig holds settings for the panel artifact export.
type ExportConfig struct {
	// OutputDir is the local directory where parquet artifacts are written.
	OutputDir string `yaml:"output_dir"`
	// StorageRef is the name of the storage connection used for artifact upload.
	StorageRef string `yaml:"storage_ref"`
	// Upload enables pushing the artifact to the referenced storage connection.
	Upload bool `yaml:"upload"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// PipelineDBRef is the name of the DBConnection used by the canonical store.
	PipelineDBRef string `yaml:"pipeline_db_ref"`
}

// MibelConfig holds all configuration under the "mibel" top-level key.
type MibelConfig struct {
	// Batch contains run-range and chunking configurations.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Sources contains the upstream data source configurations.
	Sources SourcesConfig `yaml:"sources"`
	// Databases holds named database connection configurations.
	Databases map[string]dbconfig.DatabaseConfig `yaml:"database"`
	// Storages holds named storage connection configurations.
	Storages storageconfig.DatasourcesConfig `yaml:"storage"`
	// Export contains the panel artifact export configuration.
	Export ExportConfig `yaml:"export"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Mibel contains the top-level configuration for the pipeline.
	Mibel MibelConfig `yaml:"mibel"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults. YAML and environment
// variables are merged on top of these values.
func NewConfig() *Config {
	return &Config{
		Mibel: MibelConfig{
			Batch: BatchConfig{
				ChunkDays:         7,
				PolitenessPauseMs: 1000,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging: LoggingConfig{
					Level: "INFO",
				},
			},
			Sources: SourcesConfig{
				Omie: OmieConfig{
					BaseURL:   "https://www.omie.es/file-download",
					Countries: []string{"ES", "PT"},
				},
				Entsoe: EntsoeConfig{
					BaseURL: "https://web-api.tp.entsoe.eu/api",
					Borders: []string{"ES-FR", "FR-ES", "ES-PT", "PT-ES"},
					Areas:   []string{"ES", "PT"},
				},
				OpenMeteo: OpenMeteoConfig{
					BaseURL: "https://archive-api.open-meteo.com/v1/archive",
					Locations: []LocationConfig{
						{Name: "Madrid", Latitude: 40.4168, Longitude: -3.7038},
						{Name: "Barcelona", Latitude: 41.3874, Longitude: 2.1686},
						{Name: "Lisbon", Latitude: 38.7223, Longitude: -9.1393},
					},
					HourlyVariables: []string{
						"temperature_2m",
						"wind_speed_10m", "wind_speed_100m", "wind_direction_100m",
						"shortwave_radiation", "direct_normal_irradiance", "diffuse_radiation",
						"cloud_cover",
					},
				},
			},
			Export: ExportConfig{
				OutputDir:  "./artifacts",
				StorageRef: "artifacts",
			},
			Infrastructure: InfrastructureConfig{
				PipelineDBRef: "default",
			},
		},
	}
}
