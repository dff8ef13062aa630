// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/portico/config.yaml",
	"/etc/portico/config.yml",
}

// ConfigPathEnvVar names an explicit config file.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:         "sqlite",
			Path:            "data/portico.db",
			MaxOpenConns:    10,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
			BusyTimeout:     5 * time.Second,
			IdempotencyTTL:  7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:        3000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 25,
			MaxPageSize:     200,
		},
		Security: SecurityConfig{
			SessionTimeout:    24 * time.Hour,
			MinPasswordLength: 8,
			InviteTTL:         72 * time.Hour,
			MaxInviteTTL:      30 * 24 * time.Hour,
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
			StateStore:        "badger",
			StateStorePath:    "data/state",
			Lockout: LockoutConfig{
				Enabled:     true,
				MaxAttempts: 5,
				Duration:    15 * time.Minute,
				MaxDuration: 24 * time.Hour,
			},
			Casbin: CasbinConfig{
				CacheTTL: 5 * time.Minute,
			},
		},
		Storage: StorageConfig{
			UploadsDir:    "uploads",
			MaxUploadMB:   50,
			ThumbnailSize: 320,
			AvatarSize:    256,
			SweepInterval: 6 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			AuthTimeout:       10 * time.Second,
			MessagesPerSecond: 20,
			Burst:             40,
			MaxMessageBytes:   64 * 1024,
			MaxRoomSize:       8,
		},
		Events: EventsConfig{
			NATSPort:        4222,
			TopicPrefix:     "portico",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Backup: BackupConfig{
			Dir:            "backups",
			Keep:           14,
			Interval:       0,
			IncludeUploads: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers configuration sources, later ones winning:
//
//  1. built-in defaults
//  2. YAML file (CONFIG_PATH or the first of DefaultConfigPaths that exists)
//  3. environment variables (see envMappings)
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths accept comma separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config keys.
// Variables that are not listed are ignored.
var envMappings = map[string]string{
	"db_dialect":             "database.dialect",
	"db_path":                "database.path",
	"database_url":           "database.dsn",
	"db_max_open_conns":      "database.max_open_conns",
	"db_max_idle_conns":      "database.max_idle_conns",
	"db_busy_timeout":        "database.busy_timeout",
	"idempotency_key_ttl":    "database.idempotency_ttl",
	"http_port":              "server.port",
	"port":                   "server.port",
	"http_host":              "server.host",
	"http_timeout":           "server.timeout",
	"environment":            "server.environment",
	"api_default_page_size":  "api.default_page_size",
	"api_max_page_size":      "api.max_page_size",
	"jwt_secret":             "security.jwt_secret",
	"session_timeout":        "security.session_timeout",
	"admin_username":         "security.admin_username",
	"admin_password":         "security.admin_password",
	"admin_email":            "security.admin_email",
	"min_password_length":    "security.min_password_length",
	"invite_ttl":             "security.invite_ttl",
	"rate_limit_requests":    "security.rate_limit_reqs",
	"rate_limit_window":      "security.rate_limit_window",
	"disable_rate_limit":     "security.rate_limit_disabled",
	"cors_origins":           "security.cors_origins",
	"trusted_proxies":        "security.trusted_proxies",
	"cookie_secure":          "security.cookie_secure",
	"state_store":            "security.state_store",
	"state_store_path":       "security.state_store_path",
	"lockout_enabled":        "security.lockout.enabled",
	"lockout_max_attempts":   "security.lockout.max_attempts",
	"lockout_duration":       "security.lockout.duration",
	"casbin_model_path":      "security.casbin.model_path",
	"casbin_policy_path":     "security.casbin.policy_path",
	"uploads_dir":            "storage.uploads_dir",
	"max_upload_mb":          "storage.max_upload_mb",
	"thumbnail_size":         "storage.thumbnail_size",
	"uploads_sweep_interval": "storage.sweep_interval",
	"ws_auth_timeout":        "websocket.auth_timeout",
	"ws_messages_per_second": "websocket.messages_per_second",
	"ws_max_room_size":       "websocket.max_room_size",
	"nats_url":               "events.nats_url",
	"nats_embedded":          "events.embedded_nats",
	"nats_port":              "events.nats_port",
	"backup_dir":             "backup.dir",
	"backup_keep":            "backup.keep",
	"backup_interval":        "backup.interval",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
