// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tomtom215/portico/internal/logging"
)

// List returns the archives in the backup directory, newest first. An
// archive whose manifest cannot be read is listed with ReadError set.
func (m *Manager) List() ([]Info, error) {
	paths, err := filepath.Glob(filepath.Join(m.cfg.Dir, "*"+archiveSuffix))
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(paths))
	for _, p := range paths {
		info, err := statInfo(p)
		if err != nil {
			continue
		}
		if man, err := ReadManifest(p); err != nil {
			info.ReadError = err.Error()
		} else {
			info.Manifest = man
		}
		out = append(out, *info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdAt(out[i]).After(createdAt(out[j]))
	})
	return out, nil
}

func createdAt(i Info) time.Time {
	if i.Manifest != nil {
		return i.Manifest.CreatedAt
	}
	return i.ModTime
}

// Prune deletes all but the keep newest archives and returns the removed
// file names. Unreadable archives count like any other.
func (m *Manager) Prune(keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}

	var removed []string
	var errs []error
	for _, info := range all[keep:] {
		if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, info.File)
	}
	if len(removed) > 0 {
		logging.Info().Int("removed", len(removed)).Int("kept", keep).Msg("old backups pruned")
	}
	return removed, errors.Join(errs...)
}

// ApplyRetention prunes to the configured count.
func (m *Manager) ApplyRetention() ([]string, error) {
	return m.Prune(m.cfg.Keep)
}
