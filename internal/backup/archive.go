// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package backup

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/ulikunitz/xz"
)

const maxManifestBytes = 16 << 20

// archiveWriters holds the file, xz and tar writers, closed in reverse.
type archiveWriters struct {
	tw      *tar.Writer
	closers []io.Closer
}

func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//nolint:gosec // G304: path is built from the configured backup directory
func openArchiveWriters(path string) (*archiveWriters, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	tw := tar.NewWriter(xw)
	return &archiveWriters{tw: tw, closers: []io.Closer{f, xw, tw}}, nil
}

// writeArchive writes the manifest followed by every staged file.
func writeArchive(ctx context.Context, path string, man *Manifest, items []staged) (err error) {
	aw, err := openArchiveWriters(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := aw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	manifest, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := aw.tw.WriteHeader(&tar.Header{
		Name:    ManifestName,
		Mode:    0o640,
		Size:    int64(len(manifest)),
		ModTime: man.CreatedAt,
	}); err != nil {
		return err
	}
	if _, err := aw.tw.Write(manifest); err != nil {
		return err
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(aw.tw, it, man); err != nil {
			return fmt.Errorf("add %s: %w", it.entry.Name, err)
		}
	}
	return nil
}

//nolint:gosec // G304: staged paths come from the staging or uploads directory
func addFile(tw *tar.Writer, it staged, man *Manifest) error {
	f, err := os.Open(it.path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only

	if err := tw.WriteHeader(&tar.Header{
		Name:    it.entry.Name,
		Mode:    0o640,
		Size:    it.entry.Size,
		ModTime: man.CreatedAt,
	}); err != nil {
		return err
	}
	// The size was fixed when the file was hashed.
	if _, err := io.CopyN(tw, f, it.entry.Size); err != nil {
		return fmt.Errorf("file changed while archiving: %w", err)
	}
	return nil
}

//nolint:gosec // G304: see addFile
func hashEntry(path, name string, kind EntryKind) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close() //nolint:errcheck // read-only

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", name, err)
	}
	return Entry{Name: name, Kind: kind, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// archiveReader reads an archive entry by entry.
type archiveReader struct {
	f  *os.File
	tr *tar.Reader
}

//nolint:gosec // G304: callers resolve path through Manager.Path or the CLI argument
func openArchive(path string) (*archiveReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("not an xz archive: %w", err)
	}
	return &archiveReader{f: f, tr: tar.NewReader(xr)}, nil
}

func (r *archiveReader) Close() error { return r.f.Close() }

// manifest reads the first entry.
func (r *archiveReader) manifest() (*Manifest, error) {
	hdr, err := r.tr.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}
	if hdr.Name != ManifestName {
		return nil, fmt.Errorf("%w: first entry is %s", ErrNoManifest, hdr.Name)
	}
	raw, err := io.ReadAll(io.LimitReader(r.tr, maxManifestBytes))
	if err != nil {
		return nil, err
	}
	var man Manifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &man, nil
}

// ReadManifest returns the manifest of the archive at path.
func ReadManifest(path string) (*Manifest, error) {
	r, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // read-only
	return r.manifest()
}

// Inspect reads the whole archive and checks every entry against the
// manifest.
func Inspect(path string) (*Verification, error) {
	r, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // read-only

	man, err := r.manifest()
	if err != nil {
		return nil, err
	}
	expected := make(map[string]Entry, len(man.Entries))
	for _, e := range man.Entries {
		expected[e.Name] = e
	}

	v := &Verification{Manifest: man}
	seen := make(map[string]bool, len(man.Entries))
	for {
		hdr, err := r.tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive is corrupt: %w", err)
		}
		want, ok := expected[hdr.Name]
		if !ok {
			v.Unexpected = append(v.Unexpected, hdr.Name)
			continue
		}
		seen[hdr.Name] = true
		h := sha256.New()
		n, err := io.Copy(h, r.tr)
		if err != nil {
			return nil, fmt.Errorf("archive is corrupt at %s: %w", hdr.Name, err)
		}
		if n != want.Size || hex.EncodeToString(h.Sum(nil)) != want.SHA256 {
			v.Mismatched = append(v.Mismatched, hdr.Name)
		}
	}
	for _, e := range man.Entries {
		if !seen[e.Name] {
			v.Missing = append(v.Missing, e.Name)
		}
	}
	v.Valid = len(v.Mismatched) == 0 && len(v.Missing) == 0 && len(v.Unexpected) == 0
	return v, nil
}
