package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/opsorch/adminlog/config"
	"github.com/opsorch/adminlog/orcherr"
)

// providerConfigRequest captures the payload to set a provider for a capability.
type providerConfigRequest struct {
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config"`
	Plugin   string         `json:"plugin,omitempty"`
}

func (s *Server) handleProviderConfig(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/providers/") || r.Method != http.MethodPost {
		return false
	}
	raw := strings.TrimPrefix(r.URL.Path, "/providers/")
	capability, ok := normalizeCapability(raw)
	if !ok {
		writeError(w, r, http.StatusNotFound, orcherr.New(orcherr.CodeNotFound, "unknown capability", nil))
		return true
	}
	var req providerConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return true
	}
	if req.Provider == "" && req.Plugin == "" {
		writeBadRequest(w, r, errors.New("provider or plugin required"))
		return true
	}

	pc := config.ProviderConfig{
		Name:   strings.ToLower(strings.TrimSpace(req.Provider)),
		Plugin: strings.TrimSpace(req.Plugin),
		Config: req.Config,
	}
	var applyErr error
	switch capability {
	case "log":
		provider, err := NewLogProvider(pc)
		if err == nil {
			s.setLogProvider(provider)
		}
		applyErr = err
	case "version":
		provider, err := NewVersionProvider(pc, s.versionCacheTTL)
		if err == nil {
			s.setVersionProvider(provider)
		}
		applyErr = err
	}
	if applyErr != nil {
		writeBadRequest(w, r, applyErr)
		return true
	}

	logAudit(r, "provider.configure", "capability", capability, "provider", pc.Name, "plugin", pc.Plugin)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return true
}
