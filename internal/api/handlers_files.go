// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tomtom215/portico/internal/models"
)

// ListFolders returns the whole folder tree as a flat list.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.db.ListFolders(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, folders)
}

// CreateFolder adds a folder under parent_id, or at the root.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if !bind(w, r, &req) {
		return
	}
	f := &models.Folder{
		Name:      strings.TrimSpace(req.Name),
		ParentID:  req.ParentID,
		CreatedBy: claimsFrom(r).UserID,
	}
	if err := h.db.CreateFolder(r.Context(), f); err != nil {
		handleError(w, r, err)
		return
	}
	writeCreated(w, f)
}

// UpdateFolder renames or moves a folder.
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req folderRequest
	if !bind(w, r, &req) {
		return
	}
	if req.ParentID != nil && *req.ParentID == id {
		invalid(w, r, "parent_id", "a folder cannot be its own parent")
		return
	}
	if err := h.db.UpdateFolder(r.Context(), id, strings.TrimSpace(req.Name), req.ParentID); err != nil {
		handleError(w, r, err)
		return
	}
	f, err := h.db.GetFolder(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, f)
}

// DeleteFolder removes an empty folder.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteFolder(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ListFiles lists files in folder_id, or at the root when it is absent.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	folderID, ok := queryID(w, r, "folder_id")
	if !ok {
		return
	}
	var folder *int64
	if folderID != 0 {
		folder = &folderID
	}
	page, err := h.db.ListFiles(r.Context(), folder, opts)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// UploadFile stores a multipart "file" and records its metadata. Images get
// a thumbnail.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	var folderID *int64
	if raw := r.FormValue("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			invalid(w, r, "folder_id", "folder_id must be a positive integer")
			return
		}
		folderID = &id
	}
	name := filepath.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" || len(name) > 255 {
		invalid(w, r, "file", "invalid file name")
		return
	}

	stored, err := h.storage.Save(r.Context(), name, file)
	if err != nil {
		handleError(w, r, err)
		return
	}
	f := &models.File{
		FolderID:      folderID,
		OriginalName:  name,
		StoredName:    stored.StoredName,
		MimeType:      stored.MimeType,
		SizeBytes:     stored.Size,
		SHA256:        stored.SHA256,
		ThumbnailName: stored.ThumbnailName,
		UploadedBy:    claimsFrom(r).UserID,
	}
	if err := h.db.CreateFile(r.Context(), f); err != nil {
		h.removeBlobs(r, stored.StoredName, stored.ThumbnailName)
		handleError(w, r, err)
		return
	}
	writeCreated(w, f)
}

// GetFile returns file metadata.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.db.GetFile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, f)
}

// DownloadFile streams the original upload as an attachment.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.db.GetFile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.serveBlob(w, r, f.StoredName, f.MimeType, f.OriginalName)
}

// Thumbnail serves the PNG preview of an image upload.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.db.GetFile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if f.ThumbnailName == "" {
		notFound(w, r, "file has no thumbnail")
		return
	}
	h.serveBlob(w, r, f.ThumbnailName, "image/png", "")
}

// UpdateFile renames a file or moves it to another folder.
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req fileUpdateRequest
	if !bind(w, r, &req) {
		return
	}
	if err := h.db.UpdateFile(r.Context(), id, strings.TrimSpace(req.Name), req.FolderID); err != nil {
		handleError(w, r, err)
		return
	}
	f, err := h.db.GetFile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, f)
}

// DeleteFile removes the metadata row and then the blobs.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.db.DeleteFile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.removeBlobs(r, f.StoredName, f.ThumbnailName)
	writeNoContent(w)
}
