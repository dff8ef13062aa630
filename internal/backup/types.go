// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package backup

import (
	"time"
)

// ManifestName is the first entry of every archive.
const ManifestName = "manifest.json"

// ManifestFormat is bumped when the archive layout changes.
const ManifestFormat = 1

// Trigger records what started a backup.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerCLI       Trigger = "cli"
)

// EntryKind classifies archive entries.
type EntryKind string

const (
	KindDatabase EntryKind = "database"
	KindTable    EntryKind = "table"
	KindUpload   EntryKind = "upload"
)

// Manifest describes an archive.
type Manifest struct {
	Format        int       `json:"format"`
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Trigger       Trigger   `json:"trigger"`
	Dialect       string    `json:"dialect"`
	SchemaVersion int       `json:"schema_version"`
	Entries       []Entry   `json:"entries"`
}

// Entry is one file inside the archive.
type Entry struct {
	Name   string    `json:"name"`
	Kind   EntryKind `json:"kind"`
	Size   int64     `json:"size"`
	SHA256 string    `json:"sha256"`
	Rows   int64     `json:"rows,omitempty"`
}

// TotalSize sums the uncompressed entry sizes.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// Info is a backup archive on disk.
type Info struct {
	File      string    `json:"file"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Manifest  *Manifest `json:"manifest,omitempty"`
	ReadError string    `json:"read_error,omitempty"`
}

// Verification is the result of Inspect.
type Verification struct {
	Manifest   *Manifest `json:"manifest"`
	Valid      bool      `json:"valid"`
	Mismatched []string  `json:"mismatched,omitempty"`
	Missing    []string  `json:"missing,omitempty"`
	Unexpected []string  `json:"unexpected,omitempty"`
}
