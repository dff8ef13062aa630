// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/portico/internal/metrics"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside one transaction. fn's error rolls the transaction
// back and is returned unchanged. On sqlite the transaction holds the write
// lock from BEGIN (see sqliteDSN).
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	var tx *sql.Tx
	for attempt := 0; ; attempt++ {
		tx, err = db.conn.BeginTx(ctx, nil)
		if err == nil {
			break
		}
		if !isBusy(err) || attempt >= 3 {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) exec(ctx context.Context, q querier, table, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := q.ExecContext(ctx, db.Rebind(query), args...)
	metrics.RecordDBQuery("exec", table, time.Since(start), err)
	return res, err
}

func (db *DB) query(ctx context.Context, q querier, table, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := q.QueryContext(ctx, db.Rebind(query), args...)
	metrics.RecordDBQuery("select", table, time.Since(start), err)
	return rows, err
}

func (db *DB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.Rebind(query), args...)
}

// insert runs an INSERT and returns the generated id. query must not end in
// a semicolon.
func (db *DB) insert(ctx context.Context, q querier, table, query string, args ...any) (int64, error) {
	start := time.Now()
	var id int64
	err := q.QueryRowContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id)
	metrics.RecordDBQuery("insert", table, time.Since(start), err)
	if err != nil {
		return 0, duplicate(err)
	}
	return id, nil
}

// execOne runs an UPDATE or DELETE that must touch exactly one row.
// Zero rows affected yields miss.
func (db *DB) execOne(ctx context.Context, q querier, table string, miss error, query string, args ...any) error {
	res, err := db.exec(ctx, q, table, query, args...)
	if err != nil {
		return constraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return miss
	}
	return nil
}

// clampPage applies defaults and the configured maximum page size.
func clampPage(limit, offset, def, max int) (int, int) {
	if def <= 0 {
		def = 25
	}
	if max <= 0 {
		max = 200
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// nullTime converts a nullable column into a pointer.
func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// timeArg turns a nil *time.Time into SQL NULL.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func intArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
