package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/mibel/pkg/adapter/storage/config"
)

// ConnectionResolver resolves named storage connections by selecting the
// StorageProvider matching the configured backend type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	configs   storageConfig.DatasourcesConfig
}

// NewConnectionResolver creates a new ConnectionResolver.
// It receives dependencies using Fx's parameter struct.
func NewConnectionResolver(p struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Configs   storageConfig.DatasourcesConfig
}) *ConnectionResolver {
	providerMap := make(map[string]StorageProvider)
	for _, provider := range p.Providers {
		providerMap[provider.Type()] = provider
	}

	return &ConnectionResolver{
		providers: providerMap,
		configs:   p.Configs,
	}
}

// ResolveStorageConnection resolves a StorageConnection instance by name.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found in configuration", name)
	}

	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", cfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, cfg.Type, err)
	}
	return conn, nil
}

// Module exports the storage connection resolver for dependency injection.
var Module = fx.Options(
	fx.Provide(NewConnectionResolver),
)
