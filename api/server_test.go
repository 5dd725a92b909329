package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsorch/adminlog/config"
	"github.com/opsorch/adminlog/log"
	"github.com/opsorch/adminlog/logquery"
	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/schema"
	"github.com/opsorch/adminlog/version"
)

const testNowMillis int64 = 1_700_000_000_000

// stubLogProvider filters a fixed entry set with each descriptor it receives.
type stubLogProvider struct {
	entries []schema.LogEntry
	queries []schema.LogQuery
	err     error
}

func (s *stubLogProvider) Query(ctx context.Context, q schema.LogQuery) (schema.LogEntries, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return schema.LogEntries{}, s.err
	}
	out := schema.LogEntries{URL: "https://logs.example.com"}
	for _, e := range s.entries {
		if q.Matches(e) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out, nil
}

type stubVersionProvider struct {
	versions []string
	err      error
}

func (s stubVersionProvider) DefaultVersionIDs(ctx context.Context) ([]string, error) {
	return s.versions, s.err
}

func entryAt(ms int64, version string) schema.LogEntry {
	return schema.LogEntry{Timestamp: time.UnixMilli(ms).UTC(), Message: "line", Severity: schema.SeverityInfo, Version: version}
}

func newTestServer(lp log.Provider, vp version.Provider) *Server {
	s := &Server{
		corsOrigin: "*",
		policy:     logquery.DefaultPolicy(),
		clock:      logquery.ClockFunc(func() time.Time { return time.UnixMilli(testNowMillis) }),
		history:    config.HistoryConfig{Window: time.Second, MaxPages: 10},
		log:        LogHandler{provider: lp},
		version:    VersionHandler{provider: vp},
		metrics:    promhttp.Handler(),
	}
	s.health = newHealthHandler(s)
	return s
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(out), "body: %s", w.Body.String())
}

func TestRootAndCors(t *testing.T) {
	srv := newTestServer(nil, nil)

	w := get(srv, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodOptions, "/logs/query", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestBearerAuthRequired(t *testing.T) {
	srv := newTestServer(nil, nil)
	srv.bearerToken = "secret"

	w := get(srv, "/")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuthSuccess(t *testing.T) {
	srv := newTestServer(nil, nil)
	srv.bearerToken = "secret"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsVersionProvider(t *testing.T) {
	w := get(newTestServer(nil, stubVersionProvider{versions: []string{"v1"}}), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "up")

	w = get(newTestServer(nil, nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(newTestServer(nil, stubVersionProvider{err: errors.New("registry down")}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	require.Equal(t, http.StatusOK, get(srv, "/").Code)

	w := get(srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adminlog_http_requests_total")
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/logs/query", routeLabel("/logs/query"))
	assert.Equal(t, "/providers", routeLabel("/providers/log"))
	assert.Equal(t, "other", routeLabel("/incidents/1"))
}

func TestLogQueryExplicitWindow(t *testing.T) {
	lp := &stubLogProvider{entries: []schema.LogEntry{entryAt(1500, "v1"), entryAt(1500, "v2"), entryAt(6000, "v1")}}
	srv := newTestServer(lp, stubVersionProvider{versions: []string{"unused"}})

	w := postJSON(t, srv, "/logs/query", map[string]any{
		"versions":        []string{"v1"},
		"startTimeMillis": 1000,
		"endTimeMillis":   5000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logQueryResponse
	decodeInto(t, w, &res)
	window, ok := res.Query.Window()
	require.True(t, ok)
	assert.Equal(t, schema.Window{StartMillis: 1000, EndMillis: 5000}, window)
	assert.Equal(t, []string{"v1"}, res.Query.VersionIDs)
	assert.Equal(t, int64(5000), res.CursorMillis)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "v1", res.Entries[0].Version)
	assert.Equal(t, "https://logs.example.com", res.URL)
}

func TestLogQuerySlidesWindow(t *testing.T) {
	lp := &stubLogProvider{entries: []schema.LogEntry{entryAt(2999, "v1"), entryAt(3000, "v1"), entryAt(4999, "v1"), entryAt(5000, "v1")}}
	srv := newTestServer(lp, nil)

	w := postJSON(t, srv, "/logs/query", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 5000,
		"windowMillis":  2000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logQueryResponse
	decodeInto(t, w, &res)
	window, ok := res.Query.Window()
	require.True(t, ok)
	assert.Equal(t, schema.Window{StartMillis: 3000, EndMillis: 5000}, window)
	assert.Equal(t, int64(2999), res.CursorMillis)
	assert.Len(t, res.Entries, 2)
}

func TestLogQueryDefaultsEndToNowAndVersionsToRegistry(t *testing.T) {
	lp := &stubLogProvider{}
	srv := newTestServer(lp, stubVersionProvider{versions: []string{"v7", "v6"}})

	w := postJSON(t, srv, "/logs/query", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logQueryResponse
	decodeInto(t, w, &res)
	assert.Nil(t, res.Query.StartTimeMillis)
	assert.Equal(t, testNowMillis, res.Query.EndTimeMillis)
	assert.Equal(t, []string{"v7", "v6"}, res.Query.VersionIDs)
	assert.Equal(t, schema.SeverityInfo, res.Query.MinSeverity)
	assert.Equal(t, logquery.DefaultBatchSize, res.Query.BatchSize)
	assert.Empty(t, res.Entries)
	assert.NotNil(t, res.Entries)
}

func TestLogQueryRejectsStartWithWindow(t *testing.T) {
	srv := newTestServer(&stubLogProvider{}, nil)
	w := postJSON(t, srv, "/logs/query", map[string]any{
		"versions":        []string{"v1"},
		"startTimeMillis": 1,
		"windowMillis":    10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogQueryInvalidWindow(t *testing.T) {
	srv := newTestServer(&stubLogProvider{}, nil)
	for _, window := range []int64{0, -5} {
		w := postJSON(t, srv, "/logs/query", map[string]any{"versions": []string{"v1"}, "windowMillis": window})
		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		decodeInto(t, w, &body)
		assert.Equal(t, orcherr.CodeInvalidWindowDuration, body["code"])
	}
}

func TestLogQueryUnknownField(t *testing.T) {
	srv := newTestServer(&stubLogProvider{}, nil)
	w := postJSON(t, srv, "/logs/query", map[string]any{"query": "error"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogQueryVersionResolutionFailure(t *testing.T) {
	lp := &stubLogProvider{}
	srv := newTestServer(lp, stubVersionProvider{err: errors.New("registry down")})

	w := postJSON(t, srv, "/logs/query", map[string]any{"endTimeMillis": 10})
	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	decodeInto(t, w, &body)
	assert.Equal(t, orcherr.CodeVersionResolutionFailed, body["code"])
	assert.Contains(t, body["message"], "registry down")
	assert.Empty(t, lp.queries, "no query is issued when versions cannot be resolved")

	w = postJSON(t, newTestServer(lp, nil), "/logs/query", map[string]any{})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLogQueryProviderError(t *testing.T) {
	srv := newTestServer(&stubLogProvider{err: errors.New("backend timeout")}, nil)
	w := postJSON(t, srv, "/logs/query", map[string]any{"versions": []string{"v1"}})
	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	decodeInto(t, w, &body)
	assert.Equal(t, orcherr.CodeProviderError, body["code"])
}

func TestLogMissingProvider(t *testing.T) {
	srv := newTestServer(nil, nil)
	for _, path := range []string{"/logs/query", "/logs/history"} {
		w := postJSON(t, srv, path, map[string]any{"versions": []string{"v1"}})
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestLogHistoryWalksBackward(t *testing.T) {
	lp := &stubLogProvider{entries: []schema.LogEntry{
		entryAt(9500, "v1"),
		entryAt(8500, "v1"),
		entryAt(8400, "v1"),
		entryAt(1000, "v1"),
	}}
	srv := newTestServer(lp, nil)

	w := postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 10_000,
		"windowMillis":  1000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logHistoryResponse
	decodeInto(t, w, &res)
	require.Len(t, res.Pages, 2)
	assert.Len(t, res.Pages[0].Entries, 1)
	assert.Len(t, res.Pages[1].Entries, 2)
	assert.True(t, res.Done)
	assert.Equal(t, int64(6997), res.CursorMillis)
	assert.Len(t, lp.queries, 3)
}

func TestLogHistoryStopsAtMinEntries(t *testing.T) {
	lp := &stubLogProvider{entries: []schema.LogEntry{entryAt(9500, "v1"), entryAt(8500, "v1")}}
	srv := newTestServer(lp, nil)

	w := postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 10_000,
		"windowMillis":  1000,
		"minEntries":    1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logHistoryResponse
	decodeInto(t, w, &res)
	assert.Len(t, res.Pages, 1)
	assert.False(t, res.Done)
	assert.Equal(t, int64(8999), res.CursorMillis)
}

func TestLogHistoryUsesConfiguredWindowAndPageCap(t *testing.T) {
	var entries []schema.LogEntry
	for ms := int64(500); ms < 20_000; ms += 1000 {
		entries = append(entries, entryAt(ms, "v1"))
	}
	lp := &stubLogProvider{entries: entries}
	srv := newTestServer(lp, nil)
	srv.history.MaxPages = 3

	w := postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 20_000,
		"maxPages":      50,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logHistoryResponse
	decodeInto(t, w, &res)
	assert.Len(t, res.Pages, 3)
	assert.True(t, res.Done)
	assert.Len(t, lp.queries, 3)
}

func TestMaxPages(t *testing.T) {
	s := &Server{history: config.HistoryConfig{MaxPages: 5}}
	assert.Equal(t, 5, s.maxPages(0))
	assert.Equal(t, 2, s.maxPages(2))
	assert.Equal(t, 5, s.maxPages(9))

	s.history.MaxPages = 0
	assert.Equal(t, 9, s.maxPages(9))
}

func TestVersionsDefault(t *testing.T) {
	w := get(newTestServer(nil, stubVersionProvider{versions: []string{"v2", "v1"}}), "/versions/default")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Versions []string `json:"versions"`
	}
	decodeInto(t, w, &body)
	assert.Equal(t, []string{"v2", "v1"}, body.Versions)

	w = get(newTestServer(nil, nil), "/versions/default")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = get(newTestServer(nil, stubVersionProvider{err: errors.New("boom")}), "/versions/default")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProvidersList(t *testing.T) {
	srv := newTestServer(nil, nil)

	w := get(srv, "/providers/version")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Providers []string `json:"providers"`
	}
	decodeInto(t, w, &body)
	assert.Contains(t, body.Providers, "static")
	assert.Contains(t, body.Providers, "file")

	w = get(srv, "/providers/logs")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(srv, "/providers/incident")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewServerWiresConfiguredProviders(t *testing.T) {
	cfg := config.Default()
	cfg.VersionProvider = config.ProviderConfig{Name: "static", ConfigJSON: `{"versions":["v3"]}`}
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	w := get(srv, "/versions/default")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "v3")

	w = postJSON(t, srv, "/logs/query", map[string]any{})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestNewServerRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LogProvider = config.ProviderConfig{Name: "does-not-exist"}
	_, err := NewServer(cfg)
	assert.ErrorContains(t, err, "not registered")
}

func TestNewServerRejectsPartialTLS(t *testing.T) {
	cfg := config.Default()
	cfg.TLSCertFile = "cert.pem"
	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestListenAndServeRequiresTLSPair(t *testing.T) {
	srv := newTestServer(nil, nil)
	srv.tlsCertFile = "cert.pem"

	err := srv.ListenAndServe(":0")
	assert.ErrorContains(t, err, "TLS requires both cert and key")
}

func TestListenAndServeUsesTLSWhenConfigured(t *testing.T) {
	srv := newTestServer(nil, nil)
	srv.tlsCertFile = "cert.pem"
	srv.tlsKeyFile = "key.pem"

	var gotCert, gotKey string
	srv.serve = func(*http.Server) error {
		t.Fatal("plain serve must not be used when TLS is configured")
		return nil
	}
	srv.serveTLS = func(s *http.Server, cert, key string) error {
		gotCert, gotKey = cert, key
		assert.Equal(t, 10*time.Second, s.ReadHeaderTimeout)
		return http.ErrServerClosed
	}

	err := srv.ListenAndServe(":0")
	assert.ErrorIs(t, err, http.ErrServerClosed)
	assert.Equal(t, "cert.pem", gotCert)
	assert.Equal(t, "key.pem", gotKey)
}

func TestListenAndServePlain(t *testing.T) {
	srv := newTestServer(nil, nil)
	var addr string
	srv.serve = func(s *http.Server) error {
		addr = s.Addr
		return http.ErrServerClosed
	}
	assert.ErrorIs(t, srv.ListenAndServe(":9999"), http.ErrServerClosed)
	assert.Equal(t, ":9999", addr)
}

// buildPlugin compiles one of the plugins under ../plugins into a temp dir.
func buildPlugin(t *testing.T, name string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("plugin build skipped in short mode")
	}
	tmp := t.TempDir()
	path := filepath.Join(tmp, name)
	build := exec.Command("go", "build", "-o", path, "../plugins/"+name)
	build.Env = append(os.Environ(), "GOCACHE="+filepath.Join(tmp, "gocache"), "CGO_ENABLED=0")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "build plugin: %s", string(out))
	return path
}

func TestLogQueryViaPlugin(t *testing.T) {
	plugin := buildPlugin(t, "logmock")
	srv := newTestServer(newLogPluginProvider(plugin, nil), nil)

	w := postJSON(t, srv, "/logs/query", map[string]any{
		"versions":      []string{"v1", "v2"},
		"endTimeMillis": 5000,
		"windowMillis":  2000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logQueryResponse
	decodeInto(t, w, &res)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "plugin log: v1", res.Entries[0].Message)
	assert.Equal(t, int64(4999), res.Entries[0].Timestamp.UnixMilli())
	assert.True(t, strings.HasPrefix(res.URL, "https://logs.example.com/"))
	assert.Equal(t, int64(2999), res.CursorMillis)
}

func TestLogHistoryViaPlugin(t *testing.T) {
	plugin := buildPlugin(t, "logmock")
	srv := newTestServer(newLogPluginProvider(plugin, map[string]any{"floorMillis": 7000}), nil)

	w := postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 10_000,
		"windowMillis":  1000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res logHistoryResponse
	decodeInto(t, w, &res)
	assert.Len(t, res.Pages, 3)
	assert.True(t, res.Done)
}

func TestVersionsViaPlugin(t *testing.T) {
	plugin := buildPlugin(t, "versionmock")
	srv := newTestServer(nil, newVersionPluginProvider(plugin, map[string]any{"versions": []string{"v9", "v8"}}))

	w := get(srv, "/versions/default")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"v9"`)

	lp := &stubLogProvider{}
	srv.setLogProvider(lp)
	w = postJSON(t, srv, "/logs/query", map[string]any{"endTimeMillis": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, lp.queries, 1)
	assert.Equal(t, []string{"v9", "v8"}, lp.queries[0].VersionIDs)
}

func TestLogHistoryRejectsWindowBeyondDurationRange(t *testing.T) {
	lp := &stubLogProvider{}
	srv := newTestServer(lp, nil)

	w := postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 10_000_000,
		"windowMillis":  int64(18_446_744_074_710),
		"maxPages":      1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var body map[string]string
	decodeInto(t, w, &body)
	assert.Equal(t, orcherr.CodeBadRequest, body["code"])
	assert.Empty(t, lp.queries, "no window is queried")

	w = postJSON(t, srv, "/logs/history", map[string]any{
		"versions":      []string{"v1"},
		"endTimeMillis": 10_000_000,
		"windowMillis":  maxWindowMillis,
		"maxPages":      1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, lp.queries, 1)
	window, ok := lp.queries[0].Window()
	require.True(t, ok)
	assert.Equal(t, maxWindowMillis, window.EndMillis-window.StartMillis)
}
