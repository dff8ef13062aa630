// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/spreadsheet"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setupEnv points every path the configuration knows about into a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "portico.db"))
	t.Setenv("UPLOADS_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("STATE_STORE", "memory")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("CONFIG_PATH", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		dialect database.Dialect
		dsn     string
		wantErr bool
	}{
		{"sqlite:data/portico.db", database.SQLite, "data/portico.db", false},
		{"postgres:postgres://u@host:5432/db", database.Postgres, "postgres://u@host:5432/db", false},
		{"duckdb:/tmp/x.duckdb", database.DuckDB, "/tmp/x.duckdb", false},
		{"sqlite:", "", "", true},
		{"portico.db", "", "", true},
		{"oracle:foo", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, dsn, err := parseTarget(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if d != tt.dialect || dsn != tt.dsn {
				t.Errorf("got (%q, %q), want (%q, %q)", d, dsn, tt.dialect, tt.dsn)
			}
		})
	}
}

func TestEnvFileLoaded(t *testing.T) {
	dir := setupEnv(t)
	os.Unsetenv("JWT_SECRET")
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("JWT_SECRET="+testSecret+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--env-file", envFile, "schema", "create"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("schema create with env file: %v", err)
	}
}

func TestSchemaCommands(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "--json", "schema", "status")
	var before schemaStatus
	if err := json.Unmarshal([]byte(out), &before); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if len(before.Pending) == 0 || before.Version != 0 {
		t.Fatalf("fresh database: version %d, %d pending", before.Version, len(before.Pending))
	}

	out = mustRun(t, "schema", "create")
	if !strings.Contains(out, "sqlite schema at version") {
		t.Errorf("schema create output = %q", out)
	}

	out = mustRun(t, "--json", "schema", "status")
	var after schemaStatus
	if err := json.Unmarshal([]byte(out), &after); err != nil {
		t.Fatal(err)
	}
	if len(after.Pending) != 0 {
		t.Errorf("pending after create = %d", len(after.Pending))
	}
	if after.Version != len(before.Pending) {
		t.Errorf("version = %d, want %d", after.Version, len(before.Pending))
	}
}

func TestSeedAdminAndInvite(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "seed-admin", "--username", "boss"); err == nil {
		t.Fatal("new admin without password should fail")
	}

	out := mustRun(t, "seed-admin", "--username", "boss", "--password", "Sturdy-Passphrase-42", "--email", "boss@example.com")
	if !strings.Contains(out, `created administrator "boss"`) {
		t.Errorf("seed-admin output = %q", out)
	}
	out = mustRun(t, "seed-admin", "--username", "boss")
	if !strings.Contains(out, `promoted administrator "boss"`) {
		t.Errorf("second seed-admin output = %q", out)
	}

	t.Run("invite as admin", func(t *testing.T) {
		out := mustRun(t, "--json", "invite", "create", "--as", "boss", "--ttl", "2h")
		var inv struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(out), &inv); err != nil {
			t.Fatal(err)
		}
		if inv.Code == "" {
			t.Error("empty invite code")
		}
	})

	t.Run("unknown issuer", func(t *testing.T) {
		if _, err := run(t, "invite", "create", "--as", "nobody"); err == nil {
			t.Error("expected error for unknown user")
		}
	})

	t.Run("issuer required", func(t *testing.T) {
		_, err := run(t, "invite", "create")
		if err == nil || !strings.Contains(err.Error(), "--as") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestBackupCommands(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "seed-admin", "--username", "boss", "--password", "Sturdy-Passphrase-42")

	mustRun(t, "backup", "create")
	mustRun(t, "backup", "create")

	out := mustRun(t, "--json", "backup", "list")
	var infos []backup.Info
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("archives = %d, want 2", len(infos))
	}
	for _, i := range infos {
		if i.Manifest == nil || i.Manifest.Trigger != backup.TriggerCLI {
			t.Errorf("%s: manifest %+v", i.File, i.Manifest)
		}
	}

	t.Run("inspect by name", func(t *testing.T) {
		out := mustRun(t, "backup", "inspect", infos[0].File)
		if !strings.Contains(out, "OK:") {
			t.Errorf("inspect output = %q", out)
		}
	})

	t.Run("inspect by path", func(t *testing.T) {
		mustRun(t, "backup", "inspect", filepath.Join(dir, "backups", infos[1].File))
	})

	t.Run("inspect unknown", func(t *testing.T) {
		if _, err := run(t, "backup", "inspect", "nope.tar.xz"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("prune", func(t *testing.T) {
		out := mustRun(t, "backup", "prune", "--keep", "1")
		if !strings.Contains(out, "1 archive(s) removed") {
			t.Errorf("prune output = %q", out)
		}
		entries, err := os.ReadDir(filepath.Join(dir, "backups"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != infos[0].File {
			t.Errorf("remaining = %v, want only %s", entries, infos[0].File)
		}
	})
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestImportCustomers(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "customers.xlsx")
	writeWorkbook(t, path, [][]any{
		{"Name", "Org Number", "Email", "City"},
		{"Acme AB", "556000-0001", "info@acme.example", "Stockholm"},
		{"Globex", "556000-0002", "", "Göteborg"},
		{"", "556000-0003", "orphan@example.com", ""},
	})

	out := mustRun(t, "--json", "import", "customers", path)
	var res spreadsheet.ImportResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 || res.Updated != 0 || res.Skipped != 1 {
		t.Errorf("first import = %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 4 {
		t.Errorf("row errors = %+v", res.Errors)
	}

	out = mustRun(t, "import", "customers", path)
	if !strings.Contains(out, "created 0, updated 2, skipped 1") {
		t.Errorf("second import output = %q", out)
	}

	if _, err := run(t, "import", "customers", filepath.Join(dir, "missing.xlsx")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMigrateSQLiteToSQLite(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "seed-admin", "--username", "boss", "--password", "Sturdy-Passphrase-42")

	src := "sqlite:" + filepath.Join(dir, "portico.db")
	dst := "sqlite:" + filepath.Join(dir, "copy.db")

	if _, err := run(t, "migrate", "--from", src, "--to", src); err == nil {
		t.Fatal("copying a database onto itself should fail")
	}

	out := mustRun(t, "--json", "migrate", "--from", src, "--to", dst, "--tables", "users")
	var copied []database.TableCopy
	if err := json.Unmarshal([]byte(out), &copied); err != nil {
		t.Fatal(err)
	}
	if len(copied) != 1 || copied[0].Table != "users" || copied[0].Rows != 1 {
		t.Errorf("copied = %+v", copied)
	}

	db, err := database.Open(database.SQLite, filepath.Join(dir, "copy.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	u, err := db.GetUserByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("copied user: %v", err)
	}
	if !u.IsAdmin() {
		t.Error("copied user lost the admin role")
	}
}
