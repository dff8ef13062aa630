// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/lifecycle"
)

func seedCopySource(t *testing.T, db *DB) {
	t.Helper()
	user := createTestUser(t, db, "alice")
	customer := createTestCustomer(t, db, "acme")
	q := createTestQuote(t, db, customer, user)
	for _, a := range []lifecycle.Action{lifecycle.Send, lifecycle.Accept} {
		_, err := transition(t, db, q.ID, a, "")
		checkNoError(t, err)
	}
	_, _, err := db.CreateInvoiceFromOrder(context.Background(), CreateInvoiceRequest{QuoteID: q.ID, ActorID: user.ID})
	checkNoError(t, err)
}

func TestCopyTables(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)
	seedCopySource(t, src)
	dst := setupTestDB(t)

	report, err := CopyTables(ctx, src, dst, CopyOptions{Truncate: true})
	checkNoError(t, err)
	checkLen(t, "tables", len(report), len(TableNames()))

	rows := map[string]int64{}
	for _, r := range report {
		rows[r.Table] = r.Rows
	}
	for table, want := range map[string]int64{"users": 1, "quotes": 1, "quote_lines": 2, "invoices": 1, "invoice_lines": 2, "counters": 3} {
		checkInt64Equal(t, table, rows[table], want)
	}

	q, err := dst.GetQuote(ctx, 1)
	checkNoError(t, err)
	checkStringEqual(t, "status", string(q.Status), string(lifecycle.Invoiced))
	checkInt64Equal(t, "total", q.Totals.TotalCents, 28750)

	customer, err := dst.GetCustomer(ctx, 1)
	checkNoError(t, err)
	user, err := dst.GetUser(ctx, 1)
	checkNoError(t, err)
	next := createTestQuote(t, dst, customer, user)
	checkStringEqual(t, "next number", next.QuoteNumber, "Q-2026-0002")
	if next.ID != 2 {
		t.Errorf("identity not advanced, new id %d", next.ID)
	}

	t.Run("copy is repeatable with truncate", func(t *testing.T) {
		_, err := CopyTables(ctx, src, dst, CopyOptions{Truncate: true})
		checkNoError(t, err)
		page, err := dst.ListQuotes(ctx, QuoteFilter{})
		checkNoError(t, err)
		if page.Total != 1 {
			t.Errorf("expected target to mirror source, got %d quotes", page.Total)
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := CopyTables(ctx, src, dst, CopyOptions{Tables: []string{"payroll_runs"}})
		if err == nil || !strings.Contains(err.Error(), "unknown table") {
			t.Errorf("expected unknown table error, got %v", err)
		}
	})
}

func TestSelectTables_DependencyOrder(t *testing.T) {
	got, err := selectTables([]string{"invoices", "customers", "quotes"})
	checkNoError(t, err)
	want := []string{"customers", "quotes", "invoices"}
	for i := range want {
		checkStringEqual(t, "table", got[i], want[i])
	}
}

func TestConvertValue(t *testing.T) {
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		kind string
		want any
	}{
		{"bool from int", int64(1), "{{BOOL}}", true},
		{"bool from text", "false", "{{BOOL}}", false},
		{"timestamp from text", "2026-03-10T12:00:00Z", "{{TS}}", ts},
		{"bytes to text", []byte("abc"), "{{TEXT}}", "abc"},
		{"passthrough", int64(7), "{{BIGINT}}", int64(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertValue(tt.in, tt.kind)
			if gt, ok := got.(time.Time); ok {
				if !gt.Equal(tt.want.(time.Time)) {
					t.Errorf("got %v, want %v", gt, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExportTable(t *testing.T) {
	db := setupTestDB(t)
	seedCopySource(t, db)

	var buf bytes.Buffer
	n, err := db.ExportTable(context.Background(), "quote_lines", &buf)
	checkNoError(t, err)
	checkInt64Equal(t, "rows", n, 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	checkLen(t, "json lines", len(lines), 2)
	var rec map[string]any
	checkNoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	checkStringEqual(t, "description", rec["description"].(string), "Consulting")

	_, err = db.ExportTable(context.Background(), "sqlite_master", &buf)
	if err == nil {
		t.Error("expected unknown table error")
	}
}

func TestSnapshotSQLite(t *testing.T) {
	db := setupTestDB(t)
	seedCopySource(t, db)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	checkNoError(t, db.SnapshotSQLite(ctx, dest))

	snap, err := Open(SQLite, dest)
	checkNoError(t, err)
	defer closeQuietly(snap)
	snap.now = db.now

	inv, err := snap.ListInvoices(ctx, InvoiceFilter{})
	checkNoError(t, err)
	if inv.Total != 1 {
		t.Errorf("snapshot holds %d invoices", inv.Total)
	}
}
