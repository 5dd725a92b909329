// Package version adapts external deployment-version registries to the
// default-version lookup log queries fall back on.
package version

import (
	"context"

	"github.com/opsorch/adminlog/registry"
)

// Provider returns the deployment versions queried when a caller names none.
// It satisfies logquery.VersionRegistry.
type Provider interface {
	DefaultVersionIDs(ctx context.Context) ([]string, error)
}

// ProviderConstructor builds a version provider from decoded configuration.
type ProviderConstructor func(config map[string]any) (Provider, error)

var providers = registry.New[ProviderConstructor]("version")

// RegisterProvider registers a version provider.
func RegisterProvider(name string, constructor ProviderConstructor) error {
	return providers.Register(name, constructor)
}

// LookupProvider returns a registered provider constructor by name.
func LookupProvider(name string) (ProviderConstructor, bool) {
	return providers.Get(name)
}

// Providers returns registered adapter names.
func Providers() []string {
	return providers.Names()
}
