// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Document number series.
const (
	SeriesQuote   = "Q"
	SeriesOrder   = "O"
	SeriesInvoice = "INV"
)

// FormatNumber renders a document number such as Q-2026-0042.
func FormatNumber(series string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%04d", series, year, n)
}

// ParseNumber splits a document number into its parts.
func ParseNumber(number string) (series string, year int, n int64, ok bool) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	v, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], y, v, true
}

func counterName(series string, year int) string {
	return series + ":" + strconv.Itoa(year)
}

// nextNumber allocates the next number of a series inside tx. Numbers only
// become visible when tx commits and a rolled back transaction releases its
// increment, so the series stays gap free.
func (db *DB) nextNumber(ctx context.Context, tx *sql.Tx, series string, year int) (string, error) {
	var n int64
	err := db.queryRow(ctx, tx,
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		 RETURNING value`,
		counterName(series, year)).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", series, err)
	}
	return FormatNumber(series, year, n), nil
}

// SyncCounters raises every counter to at least the highest number already
// present in quotes and invoices. The admin CLI runs it after copying data.
func (db *DB) SyncCounters(ctx context.Context) error {
	sources := []struct{ query string }{
		{`SELECT quote_number FROM quotes`},
		{`SELECT order_number FROM quotes WHERE order_number IS NOT NULL`},
		{`SELECT invoice_number FROM invoices`},
	}
	highest := map[string]int64{}
	for _, src := range sources {
		rows, err := db.query(ctx, db.conn, "counters", src.query)
		if err != nil {
			return err
		}
		for rows.Next() {
			var number string
			if err := rows.Scan(&number); err != nil {
				closeQuietly(rows)
				return err
			}
			if series, year, n, ok := ParseNumber(number); ok {
				name := counterName(series, year)
				if n > highest[name] {
					highest[name] = n
				}
			}
		}
		closeQuietly(rows)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for name, n := range highest {
			_, err := db.exec(ctx, tx, "counters",
				`INSERT INTO counters (name, value) VALUES (?, ?)
				 ON CONFLICT (name) DO UPDATE SET value = CASE WHEN counters.value < excluded.value THEN excluded.value ELSE counters.value END`,
				name, n)
			if err != nil {
				return fmt.Errorf("failed to sync counter %s: %w", name, err)
			}
		}
		return nil
	})
}
