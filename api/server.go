package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsorch/adminlog/config"
	"github.com/opsorch/adminlog/log"
	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/logquery"
	"github.com/opsorch/adminlog/metrics"
	"github.com/opsorch/adminlog/version"
)

// Server routes requests to the log and version handlers.
type Server struct {
	corsOrigin  string
	bearerToken string
	tlsCertFile string
	tlsKeyFile  string
	serve       func(*http.Server) error                 // optional override for tests
	serveTLS    func(*http.Server, string, string) error // optional override for tests

	policy          logquery.Policy
	clock           logquery.Clock
	history         config.HistoryConfig
	versionCacheTTL time.Duration

	// mu guards the adapters, which POST /providers/{capability} may swap at runtime.
	mu      sync.RWMutex
	log     LogHandler
	version VersionHandler

	health  http.Handler
	metrics http.Handler
}

// NewServer wires adapters and policy from cfg. Unconfigured adapters leave their routes answering 501.
func NewServer(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lp, err := NewLogProvider(cfg.LogProvider)
	if err != nil {
		return nil, fmt.Errorf("log provider: %w", err)
	}
	vp, err := NewVersionProvider(cfg.VersionProvider, cfg.VersionCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("version provider: %w", err)
	}

	s := &Server{
		corsOrigin:      cfg.CORSOrigin,
		bearerToken:     strings.TrimSpace(cfg.BearerToken),
		tlsCertFile:     strings.TrimSpace(cfg.TLSCertFile),
		tlsKeyFile:      strings.TrimSpace(cfg.TLSKeyFile),
		policy:          cfg.Policy(),
		clock:           logquery.SystemClock{},
		history:         cfg.History,
		versionCacheTTL: cfg.VersionCacheTTL,
		log:             LogHandler{provider: lp},
		version:         VersionHandler{provider: vp},
		metrics:         promhttp.Handler(),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	s.health = newHealthHandler(s)
	return s, nil
}

func (s *Server) logProvider() log.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.provider
}

// setLogProvider swaps the log adapter and releases the one it replaces.
func (s *Server) setLogProvider(p log.Provider) {
	s.mu.Lock()
	old := s.log.provider
	s.log.provider = p
	s.mu.Unlock()
	closeAdapter("log", old)
}

func (s *Server) versionProvider() version.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version.provider
}

// setVersionProvider swaps the version adapter and releases the one it replaces.
func (s *Server) setVersionProvider(p version.Provider) {
	s.mu.Lock()
	old := s.version.provider
	s.version.provider = p
	s.mu.Unlock()
	closeAdapter("version", old)
}

// closeAdapter stops adapters that hold resources, such as plugin processes.
func closeAdapter(capability string, adapter any) {
	c, ok := adapter.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Get().Warn("close replaced adapter", "capability", capability, "err", err)
	}
}

// ServeHTTP implements http.Handler and dispatches to capability handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		metrics.RequestTotal.WithLabelValues(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	}()
	w = rec

	// CORS headers for frontend consumption.
	w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !s.authorize(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
	w.Header().Set("X-Request-ID", requestID)

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		s.health.ServeHTTP(w, r)
	case r.URL.Path == "/metrics" && r.Method == http.MethodGet:
		s.metrics.ServeHTTP(w, r)
	case s.handleProviders(w, r):
	case s.handleProviderConfig(w, r):
	case s.handleVersion(w, r):
	case s.handleLog(w, r):
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.bearerToken == "" {
		return true
	}

	const prefix = "Bearer "
	authz := r.Header.Get("Authorization")

	if !strings.HasPrefix(authz, prefix) {
		return false
	}

	token := strings.TrimSpace(authz[len(prefix):])
	return token == s.bearerToken
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	serve := s.serve
	if serve == nil {
		serve = func(srv *http.Server) error { return srv.ListenAndServe() }
	}
	serveTLS := s.serveTLS
	if serveTLS == nil {
		serveTLS = func(srv *http.Server, cert, key string) error { return srv.ListenAndServeTLS(cert, key) }
	}

	// Enable TLS when both cert and key are provided.
	if s.tlsCertFile != "" || s.tlsKeyFile != "" {
		if s.tlsCertFile == "" || s.tlsKeyFile == "" {
			return fmt.Errorf("TLS requires both cert and key to be configured")
		}
		logger.Get().Info("adminlog api listening", "addr", addr, "tls", true)
		return serveTLS(srv, s.tlsCertFile, s.tlsKeyFile)
	}

	logger.Get().Info("adminlog api listening", "addr", addr, "tls", false)
	return serve(srv)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel keeps metric cardinality bounded.
func routeLabel(path string) string {
	switch {
	case path == "/", path == "/health", path == "/metrics", path == "/versions/default",
		path == "/logs/query", path == "/logs/history":
		return path
	case strings.HasPrefix(path, "/providers/"):
		return "/providers"
	default:
		return "other"
	}
}
