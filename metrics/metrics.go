// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminlog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// WindowSlides counts backward window moves made while paging history.
	WindowSlides = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adminlog_window_slides_total",
			Help: "Total number of backward query window slides",
		},
	)
	// LogQueries counts calls into the log provider.
	LogQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminlog_log_queries_total",
			Help: "Total number of log provider queries",
		},
		[]string{"status"},
	)
	// LogEntriesReturned counts entries handed back by the log provider.
	LogEntriesReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adminlog_log_entries_returned_total",
			Help: "Total number of log entries returned by providers",
		},
	)
	// VersionResolutions counts default-version lookups by source (cache, provider) and status.
	VersionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminlog_version_resolutions_total",
			Help: "Total number of default version lookups",
		},
		[]string{"source", "status"},
	)
)
