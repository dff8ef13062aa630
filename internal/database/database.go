// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

// DB wraps a database/sql pool together with its dialect.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	cfg     *config.DatabaseConfig

	pageDefaultSize int
	pageMaxSize     int

	// now is replaced in tests.
	now func() time.Time

	// afterKeyLookup runs inside lifecycle transactions once an idempotency
	// key was not found. Tests use it to interleave a competing request.
	afterKeyLookup func()
}

// New opens the configured database and applies pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	dialect, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch dialect {
	case Postgres:
		dsn = cfg.DSN
	case SQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(cfg.Path, cfg.BusyTimeout)
	case DuckDB:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		dsn = cfg.Path
	}

	db, err := open(dialect, dsn, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := schemaContext()
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		closeQuietly(db.conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("dialect", string(dialect)).
		Str("path", cfg.Path).
		Msg("Database ready")
	return db, nil
}

// Open connects to an arbitrary database without migrating it. It is used by
// the admin CLI for copy sources and targets. For sqlite and duckdb dsn is a
// file path.
func Open(dialect Dialect, dsn string) (*DB, error) {
	cfg := &config.DatabaseConfig{
		Dialect:      string(dialect),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		BusyTimeout:  5 * time.Second,
	}
	switch dialect {
	case SQLite:
		cfg.Path = dsn
		dsn = sqliteDSN(dsn, cfg.BusyTimeout)
	case DuckDB:
		cfg.Path = dsn
	default:
		cfg.DSN = dsn
	}
	return open(dialect, dsn, cfg)
}

func open(dialect Dialect, dsn string, cfg *config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	db := &DB{
		conn:    conn,
		dialect: dialect,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}
	return db, nil
}

func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	maxIdle := db.cfg.MaxIdleConns
	if db.dialect == DuckDB {
		// DuckDB allows a single writer process; one pool connection keeps
		// transactions from tripping over each other.
		maxOpen, maxIdle = 1, 1
	}
	if maxOpen > 0 {
		db.conn.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.conn.SetMaxIdleConns(maxIdle)
	}
	if db.cfg.ConnMaxLifetime > 0 {
		db.conn.SetConnMaxLifetime(db.cfg.ConnMaxLifetime)
	}
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// SetPageSizes sets the default and maximum list page sizes.
func (db *DB) SetPageSizes(def, max int) {
	db.pageDefaultSize = def
	db.pageMaxSize = max
}

func (db *DB) pageDefault() int { return db.pageDefaultSize }

func (db *DB) pageMax() int { return db.pageMaxSize }

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Conn returns the underlying pool for packages that keep their own tables
// (audit) or need raw access (backup).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Dialect returns the engine behind db.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Path is the database file for sqlite and duckdb, empty for postgres.
func (db *DB) Path() string {
	if db.dialect == Postgres {
		return ""
	}
	return db.cfg.Path
}

// Rebind adapts a query written with ? placeholders to the dialect.
func (db *DB) Rebind(query string) string {
	return db.dialect.Rebind(query)
}

// HealthStatus is reported by GET /api/health.
type HealthStatus struct {
	Dialect         string `json:"dialect"`
	Connected       bool   `json:"connected"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	SchemaVersion   int    `json:"schema_version"`
	Error           string `json:"error,omitempty"`
}

// Health pings the database and reports pool statistics.
func (db *DB) Health(ctx context.Context) HealthStatus {
	stats := db.conn.Stats()
	metrics.DBOpenConnections.Set(float64(stats.OpenConnections))
	h := HealthStatus{
		Dialect:         string(db.dialect),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
	}
	if err := db.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Connected = true
	if v, err := db.SchemaVersion(ctx); err == nil {
		h.SchemaVersion = v
	}
	return h
}

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}
