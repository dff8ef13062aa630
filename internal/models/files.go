// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import "time"

// Folder is a node in the shared file tree. ParentID nil is the root.
type Folder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// File is upload metadata. The blob lives under the uploads directory as
// StoredName; ThumbnailName is empty for non-images.
type File struct {
	ID            int64     `json:"id"`
	FolderID      *int64    `json:"folder_id,omitempty"`
	OriginalName  string    `json:"original_name"`
	StoredName    string    `json:"-"`
	MimeType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	SHA256        string    `json:"sha256"`
	ThumbnailName string    `json:"-"`
	HasThumbnail  bool      `json:"has_thumbnail"`
	UploadedBy    int64     `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}
