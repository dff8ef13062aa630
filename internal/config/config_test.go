// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Dialect != "sqlite" {
		t.Errorf("Database.Dialect = %q, want sqlite", cfg.Database.Dialect)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Security.InviteTTL != 72*time.Hour {
		t.Errorf("Security.InviteTTL = %v, want 72h", cfg.Security.InviteTTL)
	}
	if cfg.Storage.UploadsDir != "uploads" {
		t.Errorf("Storage.UploadsDir = %q, want uploads", cfg.Storage.UploadsDir)
	}
	if cfg.Events.TopicPrefix != "portico" {
		t.Errorf("Events.TopicPrefix = %q, want portico", cfg.Events.TopicPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Security.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "at least 32"},
		{"placeholder secret", func(c *Config) { c.Security.JWTSecret = "CHANGEME-CHANGEME-CHANGEME-CHANGEME" }, "placeholder"},
		{"bad dialect", func(c *Config) { c.Database.Dialect = "mysql" }, "DB_DIALECT"},
		{"postgres without dsn", func(c *Config) { c.Database.Dialect = "postgres" }, "DATABASE_URL"},
		{"postgres with dsn", func(c *Config) {
			c.Database.Dialect = "postgres"
			c.Database.DSN = "postgres://u:p@localhost/portico"
		}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"page sizes", func(c *Config) { c.API.MaxPageSize = 1 }, "API_MAX_PAGE_SIZE"},
		{"invite ttl too long", func(c *Config) { c.Security.InviteTTL = 365 * 24 * time.Hour }, "INVITE_TTL"},
		{"admin password too short", func(c *Config) {
			c.Security.AdminUsername = "admin"
			c.Security.AdminPassword = "short"
		}, "ADMIN_PASSWORD"},
		{"unknown state store", func(c *Config) { c.Security.StateStore = "redis" }, "STATE_STORE"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"bad nats url", func(c *Config) { c.Events.NATSURL = "http://x" }, "NATS_URL"},
		{"room too small", func(c *Config) { c.WebSocket.MaxRoomSize = 1 }, "WS_MAX_ROOM_SIZE"},
		{"backup interval too short", func(c *Config) { c.Backup.Interval = time.Minute }, "BACKUP_INTERVAL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  dialect: sqlite
  path: ` + filepath.Join(dir, "portico.db") + `
server:
  port: 8080
security:
  jwt_secret: ` + testSecret + `
storage:
  uploads_dir: /srv/uploads
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://intranet.example.org, https://portal.example.org")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("INVITE_TTL", "48h")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 (env overrides file)", cfg.Server.Port)
	}
	if cfg.Storage.UploadsDir != "/srv/uploads" {
		t.Errorf("Storage.UploadsDir = %q, want /srv/uploads", cfg.Storage.UploadsDir)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://portal.example.org" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Security.InviteTTL != 48*time.Hour {
		t.Errorf("Security.InviteTTL = %v, want 48h", cfg.Security.InviteTTL)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"DATABASE_URL": "database.dsn",
		"JWT_SECRET":   "security.jwt_secret",
		"NATS_URL":     "events.nats_url",
		"HOME":         "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
