// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package storage

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

var (
	ErrTooLarge    = errors.New("upload exceeds size limit")
	ErrEmpty       = errors.New("upload is empty")
	ErrNotImage    = errors.New("file is not a supported image")
	ErrInvalidName = errors.New("invalid stored file name")
)

const (
	thumbSuffix = "_thumb.png"
	tempPrefix  = ".upload-"
	sniffLen    = 512
)

// Config controls where uploads live and how they are processed.
type Config struct {
	Dir           string
	MaxBytes      int64
	ThumbnailSize int
	AvatarSize    int
}

// ConfigFrom converts the storage section of the application config.
func ConfigFrom(c *config.StorageConfig) Config {
	return Config{
		Dir:           c.UploadsDir,
		MaxBytes:      int64(c.MaxUploadMB) << 20,
		ThumbnailSize: c.ThumbnailSize,
		AvatarSize:    c.AvatarSize,
	}
}

// Stored describes a blob written to the uploads directory.
type Stored struct {
	StoredName    string
	ThumbnailName string
	MimeType      string
	Size          int64
	SHA256        string
}

// Store keeps uploaded blobs on local disk under random names.
type Store struct {
	cfg Config
	now func() time.Time
}

// New creates the uploads directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("uploads directory is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 << 20
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 320
	}
	if cfg.AvatarSize <= 0 {
		cfg.AvatarSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &Store{cfg: cfg, now: time.Now}, nil
}

// Dir returns the uploads directory.
func (s *Store) Dir() string { return s.cfg.Dir }

// MaxBytes returns the upload size cap.
func (s *Store) MaxBytes() int64 { return s.cfg.MaxBytes }

// Save streams r to disk, hashing it on the way. Images additionally get a
// PNG thumbnail; a thumbnail failure is logged and does not fail the upload.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader) (*Stored, error) {
	tmp, err := os.CreateTemp(s.cfg.Dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	br := bufio.NewReaderSize(io.LimitReader(r, s.cfg.MaxBytes+1), 32*1024)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	mimeType := detectMime(head, originalName)

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), br)
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		return nil, ErrEmpty
	}
	if n > s.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	stored := uuid.NewString() + safeExt(originalName)
	if err := os.Rename(tmpName, s.path(stored)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	committed = true

	out := &Stored{
		StoredName: stored,
		MimeType:   mimeType,
		Size:       n,
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
	}
	if isImageMime(mimeType) {
		if thumb, err := s.writeThumbnail(ctx, stored); err != nil {
			logging.Warn().Err(err).Str("file", stored).Msg("thumbnail generation failed")
		} else {
			out.ThumbnailName = thumb
		}
	}
	metrics.RecordUpload("file", n)
	return out, nil
}

// SaveAvatar center-crops the image to a square, scales it to the avatar
// size and stores it as PNG.
func (s *Store) SaveAvatar(ctx context.Context, r io.Reader) (*Stored, error) {
	raw, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(raw)) > s.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := uuid.NewString() + ".png"
	sum, size, err := writePNG(s.path(stored), squareCrop(img, s.cfg.AvatarSize))
	if err != nil {
		return nil, err
	}
	metrics.RecordUpload("avatar", size)
	return &Stored{StoredName: stored, MimeType: "image/png", Size: size, SHA256: sum}, nil
}

// Open opens a stored blob for reading.
func (s *Store) Open(name string) (*os.File, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	return os.Open(s.path(name))
}

// Delete removes blobs; names that are empty or already gone are ignored.
func (s *Store) Delete(names ...string) error {
	var errs []error
	for _, name := range names {
		if name == "" {
			continue
		}
		if !ValidName(name) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidName, name))
			continue
		}
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReferenceChecker reports whether a stored name is still used by a row.
type ReferenceChecker func(ctx context.Context, name string) (bool, error)

// Sweep removes blobs older than minAge that no row references, plus stale
// temp files left by interrupted uploads.
func (s *Store) Sweep(ctx context.Context, referenced ReferenceChecker, minAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read uploads directory: %w", err)
	}
	cutoff := s.now().Add(-minAge)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, tempPrefix) {
			used, err := referenced(ctx, name)
			if err != nil {
				return removed, err
			}
			if used {
				continue
			}
		}
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		logging.Info().Int("removed", removed).Msg("swept orphaned uploads")
	}
	return removed, nil
}

// ContentDisposition builds an attachment header carrying the original name.
func ContentDisposition(originalName string) string {
	name := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// ValidName reports whether name is a plain file name inside the uploads
// directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func (s *Store) path(name string) string {
	return filepath.Join(s.cfg.Dir, name)
}

// safeExt keeps a short alphanumeric extension so downloads stay typed.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func detectMime(head []byte, name string) string {
	sniffed := http.DetectContentType(head)
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "text/plain") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(safeExt(name)); byExt != "" {
		return byExt
	}
	return sniffed
}

func isImageMime(m string) bool {
	switch m {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}
