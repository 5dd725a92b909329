// Package gcplog reads App Engine application logs from Cloud Logging.
package gcplog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/iterator"

	"github.com/opsorch/adminlog/log"
	"github.com/opsorch/adminlog/schema"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "gcp"

const defaultLimit = 10_000

// entryIterator is the part of *logadmin.EntryIterator the provider reads.
type entryIterator interface {
	Next() (*logging.Entry, error)
}

type fetchFunc func(ctx context.Context, filter string, pageSize int32) entryIterator

// Provider queries Cloud Logging with a filter derived from the descriptor.
type Provider struct {
	project string
	limit   int
	fetch   fetchFunc
}

// New builds a provider from config keys "project" (required) and "limit"
// (maximum entries returned per query, default 10000).
func New(config map[string]any) (log.Provider, error) {
	project, _ := config["project"].(string)
	if project == "" {
		return nil, errors.New("gcp log provider requires 'project' in config")
	}
	limit, err := intFromConfig(config["limit"], defaultLimit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("gcp log provider limit must be positive, got %d", limit)
	}
	client, err := logadmin.NewClient(context.Background(), project)
	if err != nil {
		return nil, fmt.Errorf("create logadmin client: %w", err)
	}
	return &Provider{
		project: project,
		limit:   limit,
		fetch: func(ctx context.Context, filter string, pageSize int32) entryIterator {
			return client.Entries(ctx,
				logadmin.Filter(filter),
				logadmin.NewestFirst(),
				logadmin.PageSize(pageSize),
			)
		},
	}, nil
}

// Query implements log.Provider. Entries come back newest first.
func (p *Provider) Query(ctx context.Context, q schema.LogQuery) (schema.LogEntries, error) {
	filter := BuildFilter(q)
	it := p.fetch(ctx, filter, pageSize(q.BatchSize))

	out := schema.LogEntries{Entries: []schema.LogEntry{}, URL: consoleURL(p.project, filter)}
	for len(out.Entries) < p.limit {
		e, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return schema.LogEntries{}, fmt.Errorf("read log entries: %w", err)
		}
		out.Entries = append(out.Entries, convertEntry(e))
	}
	return out, nil
}

// BuildFilter renders the descriptor in the Cloud Logging query language.
func BuildFilter(q schema.LogQuery) string {
	clauses := []string{`resource.type="gae_app"`}
	if q.StartTimeMillis != nil {
		clauses = append(clauses, "timestamp>="+strconv.Quote(formatMillis(*q.StartTimeMillis)))
	}
	clauses = append(clauses, "timestamp<"+strconv.Quote(formatMillis(q.EndTimeMillis)))
	if q.MinSeverity.Valid() && q.MinSeverity != schema.SeverityDefault {
		clauses = append(clauses, "severity>="+strings.ToUpper(q.MinSeverity.String()))
	}
	if len(q.VersionIDs) > 0 {
		terms := make([]string, 0, len(q.VersionIDs))
		for _, v := range q.VersionIDs {
			terms = append(terms, "resource.labels.version_id="+strconv.Quote(v))
		}
		clauses = append(clauses, "("+strings.Join(terms, " OR ")+")")
	}
	if !q.IncludeAppLogs {
		clauses = append(clauses, `logName:"request_log"`)
	}
	return strings.Join(clauses, " AND ")
}

// pageSize clamps a batch size to the int32 range the API accepts; 0 leaves the server default.
func pageSize(batch int) int32 {
	switch {
	case batch <= 0:
		return 0
	case batch > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(batch)
	}
}

func formatMillis(ms int64) string {
	return schema.MillisToTime(ms).Format(time.RFC3339Nano)
}

func consoleURL(project, filter string) string {
	return "https://console.cloud.google.com/logs/query;query=" + url.PathEscape(filter) + "?project=" + url.QueryEscape(project)
}

func convertEntry(e *logging.Entry) schema.LogEntry {
	sev, err := schema.ParseSeverity(e.Severity.String())
	if err != nil {
		sev = schema.SeverityDefault
	}
	entry := schema.LogEntry{
		Timestamp: e.Timestamp,
		Message:   payloadMessage(e.Payload),
		Severity:  sev,
		Labels:    e.Labels,
		Metadata: map[string]any{
			"insertId": e.InsertID,
			"logName":  e.LogName,
		},
	}
	if e.Resource != nil {
		entry.Version = e.Resource.GetLabels()["version_id"]
	}
	return entry
}

func payloadMessage(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func intFromConfig(raw any, fallback int) (int, error) {
	switch v := raw.(type) {
	case nil:
		return fallback, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid limit %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported limit value of type %T", raw)
	}
}

func init() {
	log.MustRegisterProvider(ProviderName, New)
}
