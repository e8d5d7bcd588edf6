package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.uber.org/fx"

	dbconfig "github.com/tigerroll/mibel/pkg/adapter/database/config"
	storageconfig "github.com/tigerroll/mibel/pkg/adapter/storage/config"
	"github.com/tigerroll/mibel/pkg/support/configbinder"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from the embedded YAML and environment variables.
// This function is intended to be called only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	// 1. Load defaults from NewConfig()
	cfg := NewConfig()

	// 2. Expand ${VAR} placeholders so secrets like API tokens never live in the YAML itself.
	expander := NewOsEnvironmentExpander()
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to expand environment variables in embedded config", err, false, false)
	}

	// 3. Load the embedded YAML into a raw map, then bind it weakly typed.
	// Placeholder expansion turns numbers into strings, so the binding must
	// tolerate string-to-int conversions.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	var yamlConfig Config
	if err := configbinder.BindProperties(raw, &yamlConfig); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to bind embedded config", err, false, false)
	}

	// 4. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 5. Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Mibel.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Mibel.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeMibelConfig(&destConfig.Mibel, &sourceConfig.Mibel)
}

// mergeMibelConfig merges source into dest.
func mergeMibelConfig(dest, source *MibelConfig) {
	// Merge BatchConfig
	if source.Batch.StartDate != "" {
		dest.Batch.StartDate = source.Batch.StartDate
	}
	if source.Batch.EndDate != "" {
		dest.Batch.EndDate = source.Batch.EndDate
	}
	if source.Batch.ChunkDays != 0 {
		dest.Batch.ChunkDays = source.Batch.ChunkDays
	}
	if source.Batch.PolitenessPauseMs != 0 {
		dest.Batch.PolitenessPauseMs = source.Batch.PolitenessPauseMs
	}
	if source.Batch.Reload {
		dest.Batch.Reload = source.Batch.Reload
	}

	// Merge SystemConfig
	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	mergeSourcesConfig(&dest.Sources, &source.Sources)

	// Merge named connection configurations (entries replace defaults wholesale).
	if source.Databases != nil {
		if dest.Databases == nil {
			dest.Databases = make(map[string]dbconfig.DatabaseConfig, len(source.Databases))
		}
		for key, value := range source.Databases {
			dest.Databases[key] = value
		}
	}
	if source.Storages != nil {
		if dest.Storages == nil {
			dest.Storages = make(storageconfig.DatasourcesConfig, len(source.Storages))
		}
		for key, value := range source.Storages {
			dest.Storages[key] = value
		}
	}

	// Merge ExportConfig
	if source.Export.OutputDir != "" {
		dest.Export.OutputDir = source.Export.OutputDir
	}
	if source.Export.StorageRef != "" {
		dest.Export.StorageRef = source.Export.StorageRef
	}
	if source.Export.Upload {
		dest.Export.Upload = source.Export.Upload
	}

	// Merge InfrastructureConfig
	if source.Infrastructure.PipelineDBRef != "" {
		dest.Infrastructure.PipelineDBRef = source.Infrastructure.PipelineDBRef
	}
}

// mergeSourcesConfig merges source into dest.
func mergeSourcesConfig(dest, source *SourcesConfig) {
	if source.Omie.BaseURL != "" {
		dest.Omie.BaseURL = source.Omie.BaseURL
	}
	if source.Omie.Countries != nil {
		dest.Omie.Countries = source.Omie.Countries
	}

	if source.Entsoe.BaseURL != "" {
		dest.Entsoe.BaseURL = source.Entsoe.BaseURL
	}
	if source.Entsoe.APIToken != "" {
		dest.Entsoe.APIToken = source.Entsoe.APIToken
	}
	if source.Entsoe.Borders != nil {
		dest.Entsoe.Borders = source.Entsoe.Borders
	}
	if source.Entsoe.Areas != nil {
		dest.Entsoe.Areas = source.Entsoe.Areas
	}

	if source.OpenMeteo.BaseURL != "" {
		dest.OpenMeteo.BaseURL = source.OpenMeteo.BaseURL
	}
	if source.OpenMeteo.Locations != nil {
		dest.OpenMeteo.Locations = source.OpenMeteo.Locations
	}
	if source.OpenMeteo.HourlyVariables != nil {
		dest.OpenMeteo.HourlyVariables = source.OpenMeteo.HourlyVariables
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.SplitN(yamlTag, ",", 2)[0]
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			// For map[string]struct{}, process nested environment variables
			// Example: MIBEL_DATABASE_DEFAULT_HOST
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads fields of type map[string]struct{} from environment variables.
// It infers map keys and struct field names from environment variable names.
//
// Example: For the field `Databases map[string]DatabaseConfig`, an environment variable
// `MIBEL_DATABASE_DEFAULT_HOST=localhost` sets the `Host` field of the entry keyed "default".
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0] // e.g., "DEFAULT_HOST"
		envValue := parts[1]

		keyAndFieldParts := strings.Split(keyAndField, "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])
		structFieldName := strings.Join(keyAndFieldParts[1:], "_")

		// Get or create an instance of the struct
		structVal := mapField.MapIndex(reflect.ValueOf(mapKey))
		var writable reflect.Value
		if structVal.IsValid() {
			writable = reflect.New(elemType).Elem()
			writable.Set(structVal)
		} else {
			writable = reflect.New(elemType).Elem()
		}

		if err := setStructFieldFromEnv(writable, structFieldName, envValue); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), writable)
	}
	return nil
}

// setStructFieldFromEnv sets the value of a specific struct field from an environment variable.
// It matches the field name (case-insensitively) against the field's `yaml` tag.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.SplitN(yamlTag, ",", 2)[0]

		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil // Field not found is not an error.
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
