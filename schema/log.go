package schema

import (
	"slices"
	"time"
)

// LogQuery describes one page of application logs to fetch from a log service.
//
// Example:
//
//	{
//	  "startTimeMillis": 1000,
//	  "endTimeMillis": 5000,
//	  "minSeverity": "info",
//	  "includeAppLogs": true,
//	  "batchSize": 1000,
//	  "versionIds": ["v1"]
//	}
type LogQuery struct {
	StartTimeMillis *int64   `json:"startTimeMillis,omitempty"` // inclusive; nil means unbounded
	EndTimeMillis   int64    `json:"endTimeMillis"`             // exclusive
	MinSeverity     Severity `json:"minSeverity"`
	IncludeAppLogs  bool     `json:"includeAppLogs"`
	BatchSize       int      `json:"batchSize"` // retrieval chunking hint, never changes results
	VersionIDs      []string `json:"versionIds"`
}

// Window returns the bounded [start, end) interval, or false when the query has no lower bound.
func (q LogQuery) Window() (Window, bool) {
	if q.StartTimeMillis == nil {
		return Window{}, false
	}
	return Window{StartMillis: *q.StartTimeMillis, EndMillis: q.EndTimeMillis}, true
}

// Matches reports whether an entry satisfies the time window, severity threshold and version filter.
func (q LogQuery) Matches(e LogEntry) bool {
	ms := e.Timestamp.UnixMilli()
	if w, ok := q.Window(); ok {
		if !w.Contains(ms) {
			return false
		}
	} else if ms >= q.EndTimeMillis {
		return false
	}
	if !e.Severity.AtLeast(q.MinSeverity) {
		return false
	}
	return len(q.VersionIDs) == 0 || slices.Contains(q.VersionIDs, e.Version)
}

// Clone returns a deep copy that shares no memory with q.
func (q LogQuery) Clone() LogQuery {
	out := q
	if q.StartTimeMillis != nil {
		start := *q.StartTimeMillis
		out.StartTimeMillis = &start
	}
	out.VersionIDs = slices.Clone(q.VersionIDs)
	return out
}

// LogEntry is a normalized log record.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity"`
	Version   string            `json:"version,omitempty"`  // deployment version that emitted the line
	Labels    map[string]string `json:"labels,omitempty"`   // filterable tags (key:value)
	Metadata  map[string]any    `json:"metadata,omitempty"` // provider-specific (raw event, ids, etc.)
}

// LogEntries represents a collection of log entries with optional URL to view in source system.
type LogEntries struct {
	Entries []LogEntry `json:"entries"`
	URL     string     `json:"url,omitempty"`
}
