package panel

import (
	"github.com/tigerroll/mibel/internal/config"
	storageAdapter "github.com/tigerroll/mibel/pkg/adapter/storage"
)

// locationCountry pins each default weather location to its market area.
var locationCountry = map[string]string{
	"Madrid":    "ES",
	"Barcelona": "ES",
	"Lisbon":    "PT",
	"Porto":     "PT",
}

// ProvideAssembler builds the panel assembler from configuration.
// Unknown locations stay unmapped and are skipped during assembly.
func ProvideAssembler(cfg *config.Config) *Assembler {
	mapping := make(map[string]string)
	for _, loc := range cfg.Mibel.Sources.OpenMeteo.Locations {
		if country, ok := locationCountry[loc.Name]; ok {
			mapping[loc.Name] = country
		}
	}
	return NewAssembler(mapping)
}

// ProvideExporter builds the panel exporter from configuration.
func ProvideExporter(cfg *config.Config, resolver *storageAdapter.ConnectionResolver) *Exporter {
	return NewExporter(cfg.Mibel.Export, resolver)
}
