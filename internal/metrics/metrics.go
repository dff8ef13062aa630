// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portico_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_db_open_connections",
			Help: "Open connections in the database pool",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portico_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_api_rate_limit_hits_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Lifecycle Metrics
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_lifecycle_transitions_total",
			Help: "Quote, order and invoice transitions by action and result",
		},
		[]string{"action", "result"},
	)

	IdempotentReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_idempotent_replays_total",
			Help: "Requests answered from a stored idempotency key",
		},
		[]string{"action"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	WSOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_websocket_online_users",
			Help: "Users with at least one authenticated connection",
		},
	)

	WSRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_websocket_video_rooms",
			Help: "Video rooms with at least one member",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portico_websocket_messages_sent_total",
			Help: "Total WebSocket frames sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portico_websocket_messages_received_total",
			Help: "Total WebSocket frames received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_websocket_errors_total",
			Help: "WebSocket errors by type",
		},
		[]string{"error_type"},
	)

	// Event bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_events_published_total",
			Help: "Domain events published by topic",
		},
		[]string{"topic"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_event_publish_failures_total",
			Help: "Domain events that could not be published",
		},
		[]string{"topic"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portico_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Storage Metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_uploads_total",
			Help: "Uploaded files by kind",
		},
		[]string{"kind"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portico_upload_bytes_total",
			Help: "Bytes written to the uploads directory",
		},
	)

	// Backup Metrics
	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portico_backup_duration_seconds",
			Help:    "Duration of backup creation",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300},
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portico_backup_last_success_timestamp",
			Help: "Unix time of the last successful backup",
		},
	)

	// Auth Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portico_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTransition records a lifecycle action. result is ok, replayed,
// conflict, invalid or error.
func RecordTransition(action, result string) {
	LifecycleTransitions.WithLabelValues(action, result).Inc()
	if result == "replayed" {
		IdempotentReplays.WithLabelValues(action).Inc()
	}
}

// RecordEventPublish records the outcome of publishing one domain event.
func RecordEventPublish(topic string, err error) {
	if err != nil {
		EventPublishFailures.WithLabelValues(topic).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordUpload records a stored upload.
func RecordUpload(kind string, size int64) {
	UploadsTotal.WithLabelValues(kind).Inc()
	UploadBytes.Add(float64(size))
}

// RecordBackup records a finished backup run.
func RecordBackup(duration time.Duration, err error) {
	BackupDuration.Observe(duration.Seconds())
	if err == nil {
		BackupLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordLogin records a login attempt outcome: success, failure or locked.
func RecordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}
