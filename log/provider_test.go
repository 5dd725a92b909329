package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsorch/adminlog/schema"
)

type stubLogProvider struct{}

func (stubLogProvider) Query(ctx context.Context, q schema.LogQuery) (schema.LogEntries, error) {
	return schema.LogEntries{}, nil
}

func TestLogRegisterLookup(t *testing.T) {
	name := "test-log"
	ctor := func(cfg map[string]any) (Provider, error) { return stubLogProvider{}, nil }
	if err := RegisterProvider(name, ctor); err != nil {
		require.Equal(t, "registry: log provider test-log already registered", err.Error())
	}
	_, ok := LookupProvider(name)
	assert.True(t, ok)
	assert.Contains(t, Providers(), name)
}

func TestLogDuplicateFails(t *testing.T) {
	name := "dup-log"
	ctor := func(cfg map[string]any) (Provider, error) { return stubLogProvider{}, nil }
	_ = RegisterProvider(name, ctor)
	assert.Error(t, RegisterProvider(name, ctor))
}

func TestMustRegisterProviderPanicsOnDuplicate(t *testing.T) {
	ctor := func(cfg map[string]any) (Provider, error) { return stubLogProvider{}, nil }
	_ = RegisterProvider("must-log", ctor)
	assert.Panics(t, func() { MustRegisterProvider("must-log", ctor) })
}
