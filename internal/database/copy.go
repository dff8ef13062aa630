// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/logging"
)

// CopyOptions controls CopyTables.
type CopyOptions struct {
	// Tables restricts the copy; empty means every table. Order is always
	// the schema's dependency order.
	Tables []string
	// Truncate empties the target tables first.
	Truncate bool
}

// TableCopy is the result for one table.
type TableCopy struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// CopyTables copies rows from src into dst inside one dst transaction. The
// target schema is migrated first; counters and identity sequences are
// raised afterwards so new rows do not collide with copied ones.
func CopyTables(ctx context.Context, src, dst *DB, opts CopyOptions) ([]TableCopy, error) {
	selected, err := selectTables(opts.Tables)
	if err != nil {
		return nil, err
	}
	if err := dst.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare target schema: %w", err)
	}

	var report []TableCopy
	err = dst.WithTx(ctx, func(tx *sql.Tx) error {
		if opts.Truncate {
			for i := len(selected) - 1; i >= 0; i-- {
				if _, err := dst.exec(ctx, tx, selected[i], `DELETE FROM `+selected[i]); err != nil {
					return fmt.Errorf("failed to truncate %s: %w", selected[i], err)
				}
			}
		}
		for _, table := range selected {
			n, err := copyTable(ctx, src, dst, tx, table)
			if err != nil {
				return fmt.Errorf("failed to copy %s: %w", table, err)
			}
			report = append(report, TableCopy{Table: table, Rows: n})
			logging.Info().Str("table", table).Int64("rows", n).Msg("Copied table")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := dst.fixIdentities(ctx, selected); err != nil {
		return report, err
	}
	if err := dst.SyncCounters(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func selectTables(names []string) ([]string, error) {
	all := TableNames()
	if len(names) == 0 {
		return all, nil
	}
	for _, n := range names {
		if !slices.Contains(all, n) {
			return nil, fmt.Errorf("unknown table %q", n)
		}
	}
	var out []string
	for _, t := range all {
		if slices.Contains(names, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func copyTable(ctx context.Context, src, dst *DB, tx *sql.Tx, table string) (int64, error) {
	order := ""
	if slices.Contains(IdentityTables(), table) {
		order = " ORDER BY id"
	}
	rows, err := src.query(ctx, src.conn, table, `SELECT * FROM `+table+order)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = "?"
	}
	insert := `INSERT INTO ` + table + ` (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(ph, ", ") + `)`
	stmt, err := tx.PrepareContext(ctx, dst.Rebind(insert))
	if err != nil {
		return 0, err
	}
	defer closeWithLog(stmt, "copy statement")

	kinds := columnKinds(table)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = convertValue(vals[i], kinds[strings.ToLower(c)])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, duplicate(err)
		}
		n++
	}
	return n, rows.Err()
}

// columnKinds reads the portable type token of each column from the table
// definition.
func columnKinds(table string) map[string]string {
	kinds := map[string]string{}
	for _, t := range tables {
		if t.name != table {
			continue
		}
		for _, line := range strings.Split(t.ddl, "\n") {
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) < 2 || !strings.HasPrefix(fields[1], "{{") {
				continue
			}
			kinds[fields[0]] = strings.TrimSuffix(fields[1], ",")
		}
	}
	return kinds
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// convertValue smooths over driver differences: sqlite hands back booleans
// as integers and may return timestamps as text.
func convertValue(v any, kind string) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case "{{BOOL}}":
		switch x := v.(type) {
		case int64:
			return x != 0
		case string:
			return x == "1" || strings.EqualFold(x, "true")
		}
	case "{{TS}}":
		if s, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return v
}

// fixIdentities moves generated id sequences past the copied rows.
func (db *DB) fixIdentities(ctx context.Context, copied []string) error {
	for _, table := range IdentityTables() {
		if !slices.Contains(copied, table) {
			continue
		}
		var maxID sql.NullInt64
		if err := db.queryRow(ctx, db.conn, `SELECT MAX(id) FROM `+table).Scan(&maxID); err != nil {
			return err
		}
		switch db.dialect {
		case Postgres:
			if _, err := db.exec(ctx, db.conn, table,
				`SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), ?, false)`, maxID.Int64+1); err != nil {
				return fmt.Errorf("failed to reset %s identity: %w", table, err)
			}
		case DuckDB:
			// sequences cannot be set directly; draw values until past max
			var cur sql.NullInt64
			if err := db.queryRow(ctx, db.conn, `SELECT currval('seq_`+table+`')`).Scan(&cur); err != nil {
				cur = sql.NullInt64{}
			}
			if gap := maxID.Int64 - cur.Int64; gap > 0 {
				if _, err := db.exec(ctx, db.conn, table,
					`SELECT MAX(nextval('seq_`+table+`')) FROM range(?)`, gap); err != nil {
					return fmt.Errorf("failed to advance %s sequence: %w", table, err)
				}
			}
		}
	}
	return nil
}

// ExportTable writes every row of table to w as JSON lines and returns the
// row count. Backups of server databases use it.
func (db *DB) ExportTable(ctx context.Context, table string, w io.Writer) (int64, error) {
	if !slices.Contains(TableNames(), table) && table != "schema_migrations" {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	rows, err := db.query(ctx, db.conn, table, `SELECT * FROM `+table)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		if err := enc.Encode(rec); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// SnapshotSQLite writes a consistent copy of a sqlite database to dest
// using VACUUM INTO.
func (db *DB) SnapshotSQLite(ctx context.Context, dest string) error {
	if db.dialect != SQLite {
		return fmt.Errorf("snapshot requires sqlite, database is %s", db.dialect)
	}
	if _, err := db.exec(ctx, db.conn, "database", `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}
