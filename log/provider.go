// Package log defines the log retrieval capability and pages it backward through history.
package log

import (
	"context"

	"github.com/opsorch/adminlog/registry"
	"github.com/opsorch/adminlog/schema"
)

// Provider is the log retrieval service a descriptor is handed to.
// Implementations honor the window, severity floor and version filter and may use
// BatchSize to chunk their own retrieval.
type Provider interface {
	Query(ctx context.Context, query schema.LogQuery) (schema.LogEntries, error)
}

// ProviderConstructor builds a log provider from decoded configuration.
type ProviderConstructor func(config map[string]any) (Provider, error)

var providers = registry.New[ProviderConstructor]("log")

// RegisterProvider registers a log provider.
func RegisterProvider(name string, constructor ProviderConstructor) error {
	return providers.Register(name, constructor)
}

// MustRegisterProvider is RegisterProvider for init blocks; a duplicate name panics.
func MustRegisterProvider(name string, constructor ProviderConstructor) {
	providers.MustRegister(name, constructor)
}

// LookupProvider returns a registered provider constructor by name.
func LookupProvider(name string) (ProviderConstructor, bool) {
	return providers.Get(name)
}

// Providers returns registered adapter names.
func Providers() []string {
	return providers.Names()
}
