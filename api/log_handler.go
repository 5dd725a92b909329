package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/opsorch/adminlog/log"
	"github.com/opsorch/adminlog/logquery"
	"github.com/opsorch/adminlog/metrics"
	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/schema"
)

// maxWindowMillis is the widest history window a time.Duration can hold.
const maxWindowMillis = math.MaxInt64 / int64(time.Millisecond)

// LogHandler wraps provider wiring for logs.
type LogHandler struct {
	provider log.Provider
}

// logQueryRequest asks for a single window. With WindowMillis set the window is
// [end-WindowMillis, end) and the returned cursor points just before it.
type logQueryRequest struct {
	Versions        []string `json:"versions,omitempty"`
	StartTimeMillis *int64   `json:"startTimeMillis,omitempty"`
	EndTimeMillis   *int64   `json:"endTimeMillis,omitempty"`
	WindowMillis    *int64   `json:"windowMillis,omitempty"`
}

type logQueryResponse struct {
	Query        schema.LogQuery   `json:"query"`
	Entries      []schema.LogEntry `json:"entries"`
	URL          string            `json:"url,omitempty"`
	CursorMillis int64             `json:"cursorMillis"`
}

// logHistoryRequest walks backward from EndTimeMillis (default now) one window at a time.
type logHistoryRequest struct {
	Versions      []string `json:"versions,omitempty"`
	EndTimeMillis *int64   `json:"endTimeMillis,omitempty"`
	WindowMillis  int64    `json:"windowMillis,omitempty"`
	MaxPages      int      `json:"maxPages,omitempty"`
	MinEntries    int      `json:"minEntries,omitempty"`
}

type logHistoryResponse struct {
	Pages        []log.Page `json:"pages"`
	CursorMillis int64      `json:"cursorMillis"`
	Done         bool       `json:"done"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path != "/logs/query" && r.URL.Path != "/logs/history" {
		return false
	}
	if r.Method != http.MethodPost {
		return false
	}
	provider := s.logProvider()
	if provider == nil {
		writeError(w, r, http.StatusNotImplemented, orcherr.New("log_provider_missing", "log provider not configured", nil))
		return true
	}
	if r.URL.Path == "/logs/query" {
		s.handleLogQuery(w, r, provider)
	} else {
		s.handleLogHistory(w, r, provider)
	}
	return true
}

func (s *Server) newBuilder(r *http.Request, req logquery.Request) (*logquery.Builder, error) {
	return logquery.New(r.Context(), req,
		logquery.WithPolicy(s.policy),
		logquery.WithClock(s.clock),
		logquery.WithVersionRegistry(s.versionProvider()),
	)
}

func (s *Server) handleLogQuery(w http.ResponseWriter, r *http.Request, provider log.Provider) {
	var req logQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if req.WindowMillis != nil && req.StartTimeMillis != nil {
		writeBadRequest(w, r, errors.New("startTimeMillis and windowMillis are mutually exclusive"))
		return
	}

	builder, err := s.newBuilder(r, logquery.Request{
		Versions:  req.Versions,
		StartTime: req.StartTimeMillis,
		EndTime:   req.EndTimeMillis,
	})
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	if req.WindowMillis != nil {
		if err := builder.SlideWindowBackward(*req.WindowMillis); err != nil {
			writeProviderError(w, r, err)
			return
		}
		metrics.WindowSlides.Inc()
	}

	query := builder.Query()
	res, err := provider.Query(r.Context(), query)
	if err != nil {
		metrics.LogQueries.WithLabelValues("error").Inc()
		writeProviderError(w, r, err)
		return
	}
	metrics.LogQueries.WithLabelValues("success").Inc()
	metrics.LogEntriesReturned.Add(float64(len(res.Entries)))

	entries := res.Entries
	if entries == nil {
		entries = []schema.LogEntry{}
	}
	logAudit(r, "log.query", "versions", query.VersionIDs, "entries", len(entries))
	writeJSON(w, http.StatusOK, logQueryResponse{
		Query:        query,
		Entries:      entries,
		URL:          res.URL,
		CursorMillis: builder.EndTime(),
	})
}

func (s *Server) handleLogHistory(w http.ResponseWriter, r *http.Request, provider log.Provider) {
	var req logHistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	builder, err := s.newBuilder(r, logquery.Request{Versions: req.Versions, EndTime: req.EndTimeMillis})
	if err != nil {
		writeProviderError(w, r, err)
		return
	}

	window := s.history.Window
	if req.WindowMillis != 0 {
		if req.WindowMillis > maxWindowMillis {
			writeBadRequest(w, r, fmt.Errorf("windowMillis must not exceed %d, got %d", maxWindowMillis, req.WindowMillis))
			return
		}
		window = time.Duration(req.WindowMillis) * time.Millisecond
	}
	pager, err := log.NewPager(provider, builder, log.PagerConfig{
		Window:   window,
		MaxPages: s.maxPages(req.MaxPages),
		Rate:     rate.Limit(s.history.PagesPerSecond),
		Burst:    1,
	})
	if err != nil {
		writeProviderError(w, r, err)
		return
	}

	pages, err := pager.Collect(r.Context(), req.MinEntries)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	if pages == nil {
		pages = []log.Page{}
	}
	logAudit(r, "log.history", "pages", pager.Pages(), "cursor", pager.Cursor())
	writeJSON(w, http.StatusOK, logHistoryResponse{
		Pages:        pages,
		CursorMillis: pager.Cursor(),
		Done:         pager.Done(),
	})
}

// maxPages lets a request lower the configured page cap but never raise it.
func (s *Server) maxPages(requested int) int {
	limit := s.history.MaxPages
	switch {
	case requested <= 0:
		return limit
	case limit > 0 && requested > limit:
		return limit
	default:
		return requested
	}
}
