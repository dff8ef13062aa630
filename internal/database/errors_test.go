// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomtom215/portico/internal/logging"
)

// mockCloser implements io.Closer for testing
type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

// captureLogs routes the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })
	return &buf
}

func TestCloseWithLog(t *testing.T) {
	t.Run("nil closer does not panic", func(t *testing.T) {
		buf := captureLogs(t)
		closeWithLog(nil, "test")
		if buf.Len() > 0 {
			t.Errorf("Expected no log output for nil closer, got: %s", buf.String())
		}
	})

	t.Run("successful close does not log", func(t *testing.T) {
		buf := captureLogs(t)
		closer := &mockCloser{}
		closeWithLog(closer, "test resource")

		if !closer.closed {
			t.Error("Expected closer to be closed")
		}
		if buf.Len() > 0 {
			t.Errorf("Expected no log output for successful close, got: %s", buf.String())
		}
	})

	t.Run("error during close is logged", func(t *testing.T) {
		buf := captureLogs(t)
		closer := &mockCloser{err: errors.New("close failed: connection reset")}
		closeWithLog(closer, "database connection")

		if !closer.closed {
			t.Error("Expected closer to be closed")
		}
		out := buf.String()
		for _, want := range []string{"Failed to close resource", "database connection", "close failed: connection reset"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected log to contain %q, got: %s", want, out)
			}
		}
	})
}

func TestCloseQuietly(t *testing.T) {
	t.Run("nil closer does not panic", func(t *testing.T) {
		closeQuietly(nil)
	})

	t.Run("error during close is ignored", func(t *testing.T) {
		closer := &mockCloser{err: errors.New("close failed")}
		closeQuietly(closer)
		if !closer.closed {
			t.Error("Expected closer to be closed even with error")
		}
	})

	t.Run("works with io.NopCloser", func(t *testing.T) {
		closeQuietly(io.NopCloser(strings.NewReader("test data")))
	})
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		unique  bool
		foreign bool
		busy    bool
	}{
		{"nil", nil, false, false, false},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), true, false, false},
		{"sqlite primary key", errors.New("PRIMARY KEY constraint failed"), true, false, false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true, false, false},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, false, true, false},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed (787)"), false, true, false},
		{"duckdb duplicate", errors.New("Constraint Error: Duplicate key \"id: 1\" violates primary key constraint"), true, false, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), false, false, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true, false, false},
		{"other", errors.New("syntax error"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("isUniqueViolation = %v, want %v", got, tt.unique)
			}
			if got := isForeignKeyViolation(tt.err); got != tt.foreign {
				t.Errorf("isForeignKeyViolation = %v, want %v", got, tt.foreign)
			}
			if got := isBusy(tt.err); got != tt.busy {
				t.Errorf("isBusy = %v, want %v", got, tt.busy)
			}
		})
	}
}

func TestNotFoundAndDuplicate(t *testing.T) {
	if !errors.Is(notFound(sql.ErrNoRows), ErrNotFound) {
		t.Error("sql.ErrNoRows should map to ErrNotFound")
	}
	other := errors.New("boom")
	if notFound(other) != other {
		t.Error("other errors must pass through notFound")
	}

	dup := duplicate(errors.New("UNIQUE constraint failed: files.stored_name"))
	if !errors.Is(dup, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", dup)
	}
	if duplicate(other) != other {
		t.Error("other errors must pass through duplicate")
	}

	fk := constraint(errors.New("constraint failed: FOREIGN KEY constraint failed (787)"))
	if !errors.Is(fk, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", fk)
	}
	if !errors.Is(constraint(&pgconn.PgError{Code: "23503"}), ErrConflict) {
		t.Error("postgres foreign key violation should map to ErrConflict")
	}
	if !errors.Is(constraint(&pgconn.PgError{Code: "23505"}), ErrDuplicate) {
		t.Error("unique violations still map to ErrDuplicate")
	}
}

func BenchmarkCloseQuietly(b *testing.B) {
	closer := &mockCloser{}
	for i := 0; i < b.N; i++ {
		closer.closed = false
		closeQuietly(closer)
	}
}
