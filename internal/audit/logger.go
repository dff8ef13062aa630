// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package audit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/portico/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	Enabled bool

	// MinSeverity filters out less severe events.
	MinSeverity Severity

	// Retention is how long events are kept; 0 keeps them forever.
	Retention       time.Duration
	CleanupInterval time.Duration

	BufferSize int

	// LogToStdout mirrors every event to the application log.
	LogToStdout bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MinSeverity:     SeverityInfo,
		Retention:       365 * 24 * time.Hour,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
	}
}

// Logger buffers events and writes them to a Store from one goroutine.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	now func() time.Time
}

// NewLogger creates an audit logger and starts its writer.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.config.LogToStdout {
		data, err := json.Marshal(event)
		if err == nil {
			logging.Info().RawJSON("event", data).Msg("Audit event")
		}
	}

	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to save audit event")
	}
}

// Log queues an event. It never blocks.
func (l *Logger) Log(event *Event) {
	if l == nil || !l.config.Enabled {
		return
	}
	if severityOrder[event.Severity] < severityOrder[l.config.MinSeverity] {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Close stops the writer after draining the buffer. Safe to call twice.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

// Serve runs retention cleanup until ctx is cancelled, then flushes the
// buffer. It is the supervised half of the logger.
func (l *Logger) Serve(ctx context.Context) error {
	defer func() { _ = l.Close() }()

	if l.config.Retention <= 0 || l.config.CleanupInterval <= 0 || l.store == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.purge(ctx)
		}
	}
}

func (l *Logger) purge(ctx context.Context) {
	cutoff := l.now().Add(-l.config.Retention)
	count, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
		return
	}
	if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
}

// String implements fmt.Stringer for the supervisor.
func (l *Logger) String() string { return "audit-logger" }

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// Record logs a successful event of the given type with info severity.
func (l *Logger) Record(ctx context.Context, typ EventType, actor Actor, target *Target, action, description string, metadata map[string]any) {
	l.Log(&Event{
		Type:        typ,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      target,
		SourceIP:    sourceIP(ctx),
		Action:      action,
		Description: description,
		Metadata:    mustJSON(metadata),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthSuccess logs a successful login.
func (l *Logger) LogAuthSuccess(ctx context.Context, actor Actor, ip string) {
	l.Log(&Event{
		Type:        EventTypeAuthSuccess,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		SourceIP:    ip,
		Action:      "login",
		Description: "User logged in",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthFailure logs a failed login attempt.
func (l *Logger) LogAuthFailure(ctx context.Context, username, ip, reason string) {
	l.Log(&Event{
		Type:        EventTypeAuthFailure,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{Name: logging.SanitizeUsername(username)},
		SourceIP:    ip,
		Action:      "login",
		Description: "Login failed: " + reason,
		Metadata:    mustJSON(map[string]any{"reason": reason}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthLockout logs a lockout triggered by repeated failures.
func (l *Logger) LogAuthLockout(ctx context.Context, subject, ip string, duration time.Duration, attempts int) {
	l.Log(&Event{
		Type:        EventTypeAuthLockout,
		Severity:    SeverityCritical,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{Name: logging.SanitizeLogValue(subject)},
		SourceIP:    ip,
		Action:      "lockout",
		Description: "Locked out after repeated failed logins",
		Metadata: mustJSON(map[string]any{
			"duration_seconds": duration.Seconds(),
			"failed_attempts":  attempts,
		}),
		RequestID: logging.RequestIDFromContext(ctx),
	})
}

// LogLogout logs a logout.
func (l *Logger) LogLogout(ctx context.Context, actor Actor, tokenID string) {
	l.Record(ctx, EventTypeLogout, actor, &Target{Type: "token", ID: tokenID}, "logout", "User logged out", nil)
}

// LogAuthzDenied logs an authorization denial.
func (l *Logger) LogAuthzDenied(ctx context.Context, actor Actor, resource, action string) {
	l.Log(&Event{
		Type:        EventTypeAuthzDenied,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       actor,
		Target:      &Target{Type: "resource", ID: resource},
		SourceIP:    sourceIP(ctx),
		Action:      action,
		Description: "Authorization denied for " + action + " on " + resource,
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

func mustJSON(v map[string]any) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// UserActor builds an Actor from a user id and name.
func UserActor(id int64, name string) Actor {
	return Actor{ID: strconv.FormatInt(id, 10), Name: name}
}

// SystemActor is used for scheduled jobs and the admin CLI.
func SystemActor() Actor {
	return Actor{ID: "system", Name: "Portico"}
}

// IDTarget builds a Target from a numeric id.
func IDTarget(typ string, id int64) *Target {
	return &Target{Type: typ, ID: strconv.FormatInt(id, 10)}
}

type contextKey struct{}

// WithSourceIP stores the client address for events recorded further down
// the call chain.
func WithSourceIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

func sourceIP(ctx context.Context) string {
	if ip, ok := ctx.Value(contextKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIP returns the request's remote host. Proxy headers are resolved
// earlier by the RealIP middleware.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
