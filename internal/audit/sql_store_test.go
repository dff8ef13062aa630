// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
)

func setupSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{
		Dialect:      "sqlite",
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		MaxOpenConns: 2,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db)
}

func TestSQLStore(t *testing.T) {
	store := setupSQLStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	events := []*Event{
		{ID: "e1", Timestamp: base, Type: EventTypeAuthSuccess, Severity: SeverityInfo, Outcome: OutcomeSuccess,
			Actor: Actor{ID: "1", Name: "alice"}, Action: "login", Description: "User logged in", SourceIP: "10.0.0.1"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Type: EventTypeInvoiceCreated, Severity: SeverityInfo, Outcome: OutcomeSuccess,
			Actor: Actor{ID: "1", Name: "alice"}, Target: &Target{Type: "invoice", ID: "7"}, Action: "create",
			Description: "Invoice INV-2026-0001 created", Metadata: []byte(`{"total_cents":28750}`)},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Type: EventTypeAuthFailure, Severity: SeverityWarning, Outcome: OutcomeFailure,
			Actor: Actor{Name: "mallory"}, Action: "login", Description: "Login failed: invalid credentials"},
	}
	for _, e := range events {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("save %s: %v", e.ID, err)
		}
	}

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, "e2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Target == nil || got.Target.ID != "7" || string(got.Metadata) != `{"total_cents":28750}` {
			t.Errorf("unexpected event %+v", got)
		}
		if !got.Timestamp.Equal(base.Add(time.Minute)) {
			t.Errorf("timestamp = %v", got.Timestamp)
		}
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
			t.Errorf("expected ErrEventNotFound, got %v", err)
		}
	})

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{"all newest first", QueryFilter{}, []string{"e3", "e2", "e1"}},
		{"by type", QueryFilter{Types: []EventType{EventTypeAuthSuccess, EventTypeAuthFailure}}, []string{"e3", "e1"}},
		{"by actor", QueryFilter{ActorID: "1"}, []string{"e2", "e1"}},
		{"by target", QueryFilter{TargetID: "7"}, []string{"e2"}},
		{"search", QueryFilter{Search: "INV-2026"}, []string{"e2"}},
		{"paged", QueryFilter{Limit: 1, Offset: 1}, []string{"e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	t.Run("count and delete", func(t *testing.T) {
		n, err := store.Count(ctx, QueryFilter{ActorID: "1"})
		if err != nil || n != 2 {
			t.Fatalf("count = %d, %v", n, err)
		}
		deleted, err := store.Delete(ctx, base.Add(90*time.Second))
		if err != nil || deleted != 2 {
			t.Fatalf("deleted = %d, %v", deleted, err)
		}
		n, _ = store.Count(ctx, QueryFilter{})
		if n != 1 {
			t.Errorf("remaining = %d", n)
		}
	})
}
