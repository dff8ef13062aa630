// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package config

import (
	"fmt"
	"strings"
	"time"
)

var (
	validDialects   = map[string]bool{"sqlite": true, "postgres": true, "duckdb": true}
	validLogLevels  = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validStores     = map[string]bool{"badger": true, "memory": true}
)

// Validate checks the loaded configuration and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validateServer,
		c.validateAPI,
		c.validateSecurity,
		c.validateStorage,
		c.validateWebSocket,
		c.validateEvents,
		c.validateBackup,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production (or prod).
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

func (c *Config) validateDatabase() error {
	d := &c.Database
	d.Dialect = strings.ToLower(strings.TrimSpace(d.Dialect))
	if !validDialects[d.Dialect] {
		return fmt.Errorf("DB_DIALECT must be one of: sqlite, postgres, duckdb (got %q)", d.Dialect)
	}
	if d.Dialect == "postgres" && d.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DIALECT=postgres")
	}
	if d.Dialect != "postgres" && d.Path == "" {
		return fmt.Errorf("DB_PATH is required when DB_DIALECT=%s", d.Dialect)
	}
	if d.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	if d.IdempotencyTTL < time.Hour {
		return fmt.Errorf("IDEMPOTENCY_KEY_TTL must be at least 1h")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be at least 1")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE must not be smaller than API_DEFAULT_PAGE_SIZE")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security
	if err := validateJWTSecret(s.JWTSecret); err != nil {
		return err
	}
	if s.SessionTimeout < time.Minute {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 1m")
	}
	if s.MinPasswordLength < 8 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 8")
	}
	if s.AdminUsername != "" {
		if len(s.AdminPassword) < s.MinPasswordLength {
			return fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", s.MinPasswordLength)
		}
		if containsPlaceholder(s.AdminPassword) {
			return fmt.Errorf("ADMIN_PASSWORD contains a placeholder value - set a real password")
		}
	}
	if s.InviteTTL <= 0 || s.InviteTTL > s.MaxInviteTTL {
		return fmt.Errorf("INVITE_TTL must be positive and at most %s", s.MaxInviteTTL)
	}
	if !s.RateLimitDisabled {
		if s.RateLimitReqs < 1 || s.RateLimitReqs > 100000 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
		}
		if s.RateLimitWindow < time.Second || s.RateLimitWindow > time.Hour {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
		}
	}
	if !validStores[s.StateStore] {
		return fmt.Errorf("STATE_STORE must be one of: badger, memory")
	}
	if s.StateStore == "badger" && s.StateStorePath == "" {
		return fmt.Errorf("STATE_STORE_PATH is required when STATE_STORE=badger")
	}
	if s.Lockout.Enabled {
		if s.Lockout.MaxAttempts < 1 {
			return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
		}
		if s.Lockout.Duration <= 0 || s.Lockout.MaxDuration < s.Lockout.Duration {
			return fmt.Errorf("LOCKOUT_DURATION must be positive and not exceed the maximum lockout")
		}
	}
	if c.IsProduction() && hasWildcard(s.CORSOrigins) {
		return fmt.Errorf("CORS_ORIGINS must not contain * in production")
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(secret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate one with: openssl rand -base64 32")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.UploadsDir) == "" {
		return fmt.Errorf("UPLOADS_DIR is required")
	}
	if c.Storage.MaxUploadMB < 1 || c.Storage.MaxUploadMB > 2048 {
		return fmt.Errorf("MAX_UPLOAD_MB must be between 1 and 2048")
	}
	if c.Storage.ThumbnailSize < 32 || c.Storage.AvatarSize < 32 {
		return fmt.Errorf("thumbnail and avatar sizes must be at least 32 pixels")
	}
	if c.Storage.SweepInterval < 0 {
		return fmt.Errorf("UPLOADS_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	w := c.WebSocket
	if w.AuthTimeout <= 0 {
		return fmt.Errorf("WS_AUTH_TIMEOUT must be positive")
	}
	if w.MessagesPerSecond <= 0 || w.Burst < 1 {
		return fmt.Errorf("WS_MESSAGES_PER_SECOND and websocket.burst must be positive")
	}
	if w.MaxMessageBytes < 1024 {
		return fmt.Errorf("websocket.max_message_bytes must be at least 1024")
	}
	if w.MaxRoomSize < 2 {
		return fmt.Errorf("WS_MAX_ROOM_SIZE must be at least 2")
	}
	return nil
}

func (c *Config) validateEvents() error {
	e := c.Events
	if e.NATSURL != "" && !strings.HasPrefix(e.NATSURL, "nats://") && !strings.HasPrefix(e.NATSURL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://")
	}
	if e.EmbeddedNATS && (e.NATSPort < 1 || e.NATSPort > 65535) {
		return fmt.Errorf("NATS_PORT must be between 1 and 65535")
	}
	if e.TopicPrefix == "" {
		return fmt.Errorf("events.topic_prefix is required")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if c.Backup.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required")
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be at least 1")
	}
	if c.Backup.Interval != 0 && c.Backup.Interval < time.Hour {
		return fmt.Errorf("BACKUP_INTERVAL must be 0 (disabled) or at least 1h")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func hasWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, p := range placeholderPatterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}
