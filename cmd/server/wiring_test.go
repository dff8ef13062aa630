// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/storage"
)

func TestMaintenanceTask(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(&config.DatabaseConfig{
		Dialect:      "sqlite",
		Path:         filepath.Join(dir, "portico.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	uploads := filepath.Join(dir, "uploads")
	store, err := storage.New(storage.Config{Dir: uploads, MaxBytes: 1 << 20, ThumbnailSize: 64, AvatarSize: 32})
	if err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * orphanMinAge)
	orphan := filepath.Join(uploads, "orphan.bin")
	fresh := filepath.Join(uploads, "fresh.bin")
	for _, p := range []string{orphan, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	insert := `INSERT INTO idempotency_keys (key, action, quote_id, result_id, created_at) VALUES (?, ?, ?, ?, ?)`
	for key, age := range map[string]time.Duration{"expired": 10 * 24 * time.Hour, "live": time.Minute} {
		if _, err := db.Conn().ExecContext(ctx, db.Rebind(insert), key, "accept", 1, 1, time.Now().Add(-age).UTC()); err != nil {
			t.Fatalf("insert key: %v", err)
		}
	}

	if err := maintenanceTask(db, store, 7*24*time.Hour)(ctx); err != nil {
		t.Fatalf("maintenance: %v", err)
	}

	if _, err := os.Stat(orphan); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("orphan should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh upload removed: %v", err)
	}

	var n int
	if err := db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM idempotency_keys`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("idempotency keys left = %d, want 1", n)
	}
}

func TestBackupAuditHook(t *testing.T) {
	store := audit.NewMemoryStore(10)
	logger := audit.NewLogger(store, audit.DefaultConfig())
	hook := backupAuditHook(logger)

	hook(&backup.Info{File: "portico-20261015-020000.tar.xz", Size: 2048}, nil)
	hook(nil, errors.New("disk full"))
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := store.Query(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("recorded %d events, want 2", len(got))
	}
	outcomes := map[audit.Outcome]bool{}
	for _, e := range got {
		if e.Type != audit.EventTypeDataBackup {
			t.Errorf("type = %s", e.Type)
		}
		outcomes[e.Outcome] = true
	}
	if !outcomes[audit.OutcomeSuccess] || !outcomes[audit.OutcomeFailure] {
		t.Errorf("outcomes = %v", outcomes)
	}
}
