package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsorch/adminlog/logger"
)

// AuditLogEntry captures structured details for audit actions.
// Action is a dot-separated string, e.g. "log.query", "log.history".
type AuditLogEntry struct {
	RequestID string    `json:"request_id"`
	ActorType string    `json:"actor_type"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

func newAuditLogEntry(r *http.Request, action string) AuditLogEntry {
	return AuditLogEntry{
		RequestID: requestIDFromRequest(r),
		ActorType: actorTypeFromRequest(r),
		ActorID:   actorIDFromRequest(r),
		Timestamp: time.Now().UTC(),
		Action:    action,
	}
}

func logAudit(r *http.Request, action string, attrs ...any) {
	entry := newAuditLogEntry(r, action)
	args := append([]any{
		"request_id", entry.RequestID,
		"actor_type", entry.ActorType,
		"actor_id", entry.ActorID,
		"action", entry.Action,
		"timestamp", entry.Timestamp,
	}, attrs...)
	logger.Get().Info("audit_log", args...)
}

func actorTypeFromRequest(r *http.Request) string {
	if strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Type"))) == "service" {
		return "service"
	}
	return "user"
}

func actorIDFromRequest(r *http.Request) string {
	for _, header := range []string{"X-User-Id", "X-User-ID", "X-Actor-ID"} {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			return id
		}
	}
	return "unknown"
}

// requestIDFromRequest prefers the ID assigned by ServeHTTP, then tracing headers, then a fresh UUID.
func requestIDFromRequest(r *http.Request) string {
	if id, ok := logger.RequestID(r.Context()); ok {
		return id
	}
	for _, header := range []string{"X-Request-ID", "X-Amzn-Trace-Id", "X-Correlation-ID", "X-Trace-ID"} {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
