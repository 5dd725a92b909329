package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opsorch/adminlog/config"
	"github.com/opsorch/adminlog/log"
	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/version"
)

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/providers/") || r.Method != http.MethodGet {
		return false
	}
	raw := strings.TrimPrefix(r.URL.Path, "/providers/")
	capability, ok := normalizeCapability(raw)
	if !ok {
		writeError(w, r, http.StatusNotFound, orcherr.New(orcherr.CodeNotFound, "unknown capability", nil))
		return true
	}

	var providers []string
	switch capability {
	case "log":
		providers = log.Providers()
	case "version":
		providers = version.Providers()
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
	return true
}

// NewLogProvider builds the configured log adapter, or nil when none is selected.
func NewLogProvider(pc config.ProviderConfig) (log.Provider, error) {
	if !pc.Configured() {
		return nil, nil
	}
	cfg, err := pc.Settings()
	if err != nil {
		return nil, err
	}
	if pc.Plugin != "" {
		return newLogPluginProvider(pc.Plugin, cfg), nil
	}
	constructor, ok := log.LookupProvider(pc.Name)
	if !ok {
		return nil, fmt.Errorf("log provider %s not registered", pc.Name)
	}
	return constructor(cfg)
}

// NewVersionProvider builds the configured version adapter behind a TTL cache, or nil when none is selected.
func NewVersionProvider(pc config.ProviderConfig, ttl time.Duration) (version.Provider, error) {
	if !pc.Configured() {
		return nil, nil
	}
	cfg, err := pc.Settings()
	if err != nil {
		return nil, err
	}
	if pc.Plugin != "" {
		return version.NewCached(newVersionPluginProvider(pc.Plugin, cfg), ttl), nil
	}
	constructor, ok := version.LookupProvider(pc.Name)
	if !ok {
		return nil, fmt.Errorf("version provider %s not registered", pc.Name)
	}
	provider, err := constructor(cfg)
	if err != nil {
		return nil, err
	}
	return version.NewCached(provider, ttl), nil
}
