// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package config loads Portico configuration from defaults, an optional YAML
// file and environment variables (see koanf.go for the precedence rules).
package config

import "time"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Storage   StorageConfig   `koanf:"storage"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Events    EventsConfig    `koanf:"events"`
	Backup    BackupConfig    `koanf:"backup"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	// Dialect is sqlite, postgres or duckdb.
	Dialect string `koanf:"dialect"`

	// Path is the database file for sqlite and duckdb.
	Path string `koanf:"path"`

	// DSN is the connection URL for postgres.
	DSN string `koanf:"dsn"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`

	// BusyTimeout is how long sqlite waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout"`

	// IdempotencyTTL is how long idempotency keys are kept.
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
}

type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig covers authentication, registration and HTTP hardening.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername and AdminPassword bootstrap the first administrator.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
	AdminEmail    string `koanf:"admin_email"`

	MinPasswordLength int `koanf:"min_password_length"`

	// InviteTTL is the default lifetime of new invite codes.
	InviteTTL    time.Duration `koanf:"invite_ttl"`
	MaxInviteTTL time.Duration `koanf:"max_invite_ttl"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
	CookieSecure   bool     `koanf:"cookie_secure"`

	// StateStore keeps lockouts and revoked tokens: badger or memory.
	StateStore     string `koanf:"state_store"`
	StateStorePath string `koanf:"state_store_path"`

	Lockout LockoutConfig `koanf:"lockout"`
	Casbin  CasbinConfig  `koanf:"casbin"`
}

type LockoutConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxAttempts int           `koanf:"max_attempts"`
	Duration    time.Duration `koanf:"duration"`
	MaxDuration time.Duration `koanf:"max_duration"`
}

// CasbinConfig overrides the embedded RBAC model and policy when paths are set.
type CasbinConfig struct {
	ModelPath  string        `koanf:"model_path"`
	PolicyPath string        `koanf:"policy_path"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

type StorageConfig struct {
	UploadsDir    string `koanf:"uploads_dir"`
	MaxUploadMB   int    `koanf:"max_upload_mb"`
	ThumbnailSize int    `koanf:"thumbnail_size"`
	AvatarSize    int    `koanf:"avatar_size"`

	// SweepInterval is how often unreferenced blobs and expired
	// idempotency keys are purged. 0 disables the sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type WebSocketConfig struct {
	AuthTimeout       time.Duration `koanf:"auth_timeout"`
	MessagesPerSecond float64       `koanf:"messages_per_second"`
	Burst             int           `koanf:"burst"`
	MaxMessageBytes   int64         `koanf:"max_message_bytes"`
	MaxRoomSize       int           `koanf:"max_room_size"`
}

// EventsConfig selects the domain event transport. With neither NATSURL nor
// EmbeddedNATS set, events stay in process.
type EventsConfig struct {
	NATSURL         string        `koanf:"nats_url"`
	EmbeddedNATS    bool          `koanf:"embedded_nats"`
	NATSPort        int           `koanf:"nats_port"`
	TopicPrefix     string        `koanf:"topic_prefix"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// BackupConfig controls scheduled archives. Interval 0 disables scheduling.
type BackupConfig struct {
	Dir            string        `koanf:"dir"`
	Keep           int           `koanf:"keep"`
	Interval       time.Duration `koanf:"interval"`
	IncludeUploads bool          `koanf:"include_uploads"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration using koanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
