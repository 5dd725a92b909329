package api

import (
	"net/http"

	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/version"
)

// VersionHandler wraps provider wiring for default version lookups.
type VersionHandler struct {
	provider version.Provider
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path != "/versions/default" || r.Method != http.MethodGet {
		return false
	}
	provider := s.versionProvider()
	if provider == nil {
		writeError(w, r, http.StatusNotImplemented, orcherr.New("version_provider_missing", "version provider not configured", nil))
		return true
	}
	versions, err := provider.DefaultVersionIDs(r.Context())
	if err != nil {
		writeProviderError(w, r, orcherr.VersionResolution(err))
		return true
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
	return true
}
