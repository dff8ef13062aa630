// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	DuckDB   Dialect = "duckdb"
)

// ParseDialect accepts the names used in configuration and on the CLI.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "duckdb":
		return DuckDB, nil
	}
	return "", fmt.Errorf("unknown database dialect %q", s)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case DuckDB:
		return "duckdb"
	default:
		return "sqlite"
	}
}

// sqliteDSN adds the connection pragmas modernc.org/sqlite understands.
// _txlock=immediate makes every BEGIN take the write lock up front, so two
// concurrent lifecycle transactions serialize instead of failing at commit.
func sqliteDSN(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+strconv.FormatInt(busy.Milliseconds(), 10)+")")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	// Stored times then sort lexically in UTC, which range deletes rely on.
	q.Set("_time_format", "sqlite")
	return path + "?" + q.Encode()
}

// Rebind rewrites ? placeholders to $1, $2 ... for postgres. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// columnTypes maps the schema's portable type tokens to dialect types.
func (d Dialect) columnTypes() map[string]string {
	switch d {
	case Postgres:
		return map[string]string{
			"{{ID}}":      "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
			"{{BIGINT}}":  "BIGINT",
			"{{INT}}":     "INTEGER",
			"{{TEXT}}":    "TEXT",
			"{{REAL}}":    "DOUBLE PRECISION",
			"{{BOOL}}":    "BOOLEAN",
			"{{TS}}":      "TIMESTAMPTZ",
			"{{CASCADE}}": "ON DELETE CASCADE",
			"{{SETNULL}}": "ON DELETE SET NULL",
		}
	case DuckDB:
		// DuckDB has no referential actions; children are removed explicitly.
		return map[string]string{
			"{{ID}}":      "BIGINT PRIMARY KEY DEFAULT nextval('{{SEQ}}')",
			"{{BIGINT}}":  "BIGINT",
			"{{INT}}":     "INTEGER",
			"{{TEXT}}":    "VARCHAR",
			"{{REAL}}":    "DOUBLE",
			"{{BOOL}}":    "BOOLEAN",
			"{{TS}}":      "TIMESTAMP",
			"{{CASCADE}}": "",
			"{{SETNULL}}": "",
		}
	default:
		return map[string]string{
			"{{ID}}":      "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{BIGINT}}":  "INTEGER",
			"{{INT}}":     "INTEGER",
			"{{TEXT}}":    "TEXT",
			"{{REAL}}":    "REAL",
			"{{BOOL}}":    "BOOLEAN",
			"{{TS}}":      "TIMESTAMP",
			"{{CASCADE}}": "ON DELETE CASCADE",
			"{{SETNULL}}": "ON DELETE SET NULL",
		}
	}
}

// render substitutes type tokens in a table definition.
func (d Dialect) render(table, ddl string) string {
	out := ddl
	for token, typ := range d.columnTypes() {
		out = strings.ReplaceAll(out, token, typ)
	}
	return strings.ReplaceAll(out, "{{SEQ}}", "seq_"+table)
}
