// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

var (
	// ErrNotFound is returned for an unknown archive name.
	ErrNotFound = errors.New("backup not found")

	// ErrNoManifest marks archives that do not start with manifest.json.
	ErrNoManifest = errors.New("archive has no manifest")
)

const archiveSuffix = ".tar.xz"

var archiveNamePattern = regexp.MustCompile(`^portico-backup-[0-9TZ]+-[0-9a-f]{8}\.tar\.xz$`)

// Source is the database being backed up. *database.DB satisfies it.
type Source interface {
	Dialect() database.Dialect
	SchemaVersion(ctx context.Context) (int, error)
	SnapshotSQLite(ctx context.Context, dest string) error
	ExportTable(ctx context.Context, table string, w io.Writer) (int64, error)
}

// Config controls where archives go and what they contain.
type Config struct {
	Dir            string
	Keep           int
	Interval       time.Duration
	IncludeUploads bool
	UploadsDir     string
}

// ConfigFrom maps the backup and storage config sections.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Dir:            cfg.Backup.Dir,
		Keep:           cfg.Backup.Keep,
		Interval:       cfg.Backup.Interval,
		IncludeUploads: cfg.Backup.IncludeUploads,
		UploadsDir:     cfg.Storage.UploadsDir,
	}
}

// Manager creates, lists, verifies and prunes archives. Creation is
// serialized.
type Manager struct {
	cfg Config
	db  Source
	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates the backup directory if needed.
func NewManager(cfg Config, db Source) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if cfg.Keep < 1 {
		cfg.Keep = 7
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Manager{cfg: cfg, db: db, now: time.Now}, nil
}

// Dir returns the archive directory.
func (m *Manager) Dir() string { return m.cfg.Dir }

// Keep returns the configured retention count.
func (m *Manager) Keep() int { return m.cfg.Keep }

// Path resolves an archive file name inside the backup directory.
func (m *Manager) Path(name string) (string, error) {
	if !archiveNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p := filepath.Join(m.cfg.Dir, name)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	return p, nil
}

// staged is an entry waiting to be written, with the file that holds it.
type staged struct {
	entry Entry
	path  string
}

// Create writes a new archive and returns it.
func (m *Manager) Create(ctx context.Context, trigger Trigger) (info *Info, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	defer func() { metrics.RecordBackup(time.Since(started), err) }()

	stage, err := os.MkdirTemp(m.cfg.Dir, ".stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stage) //nolint:errcheck // best-effort cleanup

	created := m.now().UTC()
	id := uuid.NewString()
	man := &Manifest{
		Format:    ManifestFormat,
		ID:        id,
		CreatedAt: created,
		Trigger:   trigger,
		Dialect:   string(m.db.Dialect()),
	}
	if v, verr := m.db.SchemaVersion(ctx); verr == nil {
		man.SchemaVersion = v
	}

	items, err := m.stageDatabase(ctx, stage)
	if err != nil {
		return nil, err
	}
	if m.cfg.IncludeUploads {
		uploads, err := m.collectUploads(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, uploads...)
	}
	for _, it := range items {
		man.Entries = append(man.Entries, it.entry)
	}

	name := fmt.Sprintf("portico-backup-%s-%s%s", created.Format("20060102T150405Z"), id[:8], archiveSuffix)
	final := filepath.Join(m.cfg.Dir, name)
	partial := final + ".partial"
	if err := writeArchive(ctx, partial, man, items); err != nil {
		_ = os.Remove(partial)
		return nil, err
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	info, err = statInfo(final)
	if err != nil {
		return nil, err
	}
	info.Manifest = man
	logging.Info().
		Str("file", name).
		Str("trigger", string(trigger)).
		Int("entries", len(man.Entries)).
		Int64("size", info.Size).
		Dur("duration", time.Since(started)).
		Msg("backup created")
	return info, nil
}

// stageDatabase snapshots sqlite and exports every table of the other
// dialects as JSON lines.
func (m *Manager) stageDatabase(ctx context.Context, stage string) ([]staged, error) {
	if m.db.Dialect() == database.SQLite {
		dest := filepath.Join(stage, "portico.db")
		if err := m.db.SnapshotSQLite(ctx, dest); err != nil {
			return nil, err
		}
		e, err := hashEntry(dest, "database/portico.db", KindDatabase)
		if err != nil {
			return nil, err
		}
		return []staged{{entry: e, path: dest}}, nil
	}

	tables := append(database.TableNames(), "schema_migrations")
	out := make([]staged, 0, len(tables))
	for _, table := range tables {
		dest := filepath.Join(stage, table+".jsonl")
		rows, err := exportTable(ctx, m.db, table, dest)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		e, err := hashEntry(dest, "tables/"+table+".jsonl", KindTable)
		if err != nil {
			return nil, err
		}
		e.Rows = rows
		out = append(out, staged{entry: e, path: dest})
	}
	return out, nil
}

//nolint:gosec // G304: dest is inside the staging directory
func exportTable(ctx context.Context, db Source, table, dest string) (rows int64, err error) {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return db.ExportTable(ctx, table, f)
}

// collectUploads lists the upload directory. Hidden files are in-flight
// uploads and are skipped.
func (m *Manager) collectUploads(ctx context.Context) ([]staged, error) {
	root := m.cfg.UploadsDir
	if root == "" {
		return nil, nil
	}
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var out []staged
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Name()[0] == '.' && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		e, err := hashEntry(path, "uploads/"+filepath.ToSlash(rel), KindUpload)
		if err != nil {
			return err
		}
		out = append(out, staged{entry: e, path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect uploads: %w", err)
	}
	return out, nil
}

func statInfo(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Info{
		File:    filepath.Base(path),
		Path:    path,
		Size:    st.Size(),
		ModTime: st.ModTime().UTC(),
	}, nil
}
