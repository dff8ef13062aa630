// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/storage"
)

// ListUsers returns the employee directory.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	page, err := h.db.ListUsers(r.Context(), opts)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// GetUser returns one account.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, u)
}

// UpdateProfile changes the caller's display name and email.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !bind(w, r, &req) {
		return
	}
	c := claimsFrom(r)
	if err := h.db.UpdateProfile(r.Context(), c.UserID, strings.TrimSpace(req.DisplayName), req.Email); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := h.db.GetUser(r.Context(), c.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, u)
}

// UploadAvatar stores a square PNG avatar and removes the previous one.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	file, _, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	stored, err := h.storage.SaveAvatar(r.Context(), file)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c := claimsFrom(r)
	previous, err := h.db.SetAvatar(r.Context(), c.UserID, stored.StoredName)
	if err != nil {
		h.removeBlobs(r, stored.StoredName)
		handleError(w, r, err)
		return
	}
	if previous != "" {
		h.removeBlobs(r, previous)
	}
	u, err := h.db.GetUser(r.Context(), c.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, u)
}

// Avatar serves a user's avatar image.
func (h *Handler) Avatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if u.AvatarFile == "" {
		notFound(w, r, "user has no avatar")
		return
	}
	h.serveBlob(w, r, u.AvatarFile, "image/png", "")
}

// formFile reads one multipart file field, bounded by the upload limit.
func (h *Handler) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.storage.MaxBytes()+1<<20)
	file, header, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			handleError(w, r, storage.ErrTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			invalid(w, r, field, "multipart field "+field+" is required")
		default:
			badRequest(w, r, "invalid multipart form: "+err.Error())
		}
		return nil, nil, false
	}
	return file, header, true
}

// serveBlob streams a stored blob. A non-empty downloadName sets an
// attachment Content-Disposition.
func (h *Handler) serveBlob(w http.ResponseWriter, r *http.Request, name, contentType, downloadName string) {
	f, err := h.storage.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
			notFound(w, r, "file content is missing")
			return
		}
		handleError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		handleError(w, r, err)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if downloadName != "" {
		w.Header().Set("Content-Disposition", storage.ContentDisposition(downloadName))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, "", info.ModTime(), io.ReadSeeker(f))
}

// removeBlobs deletes blobs that are no longer referenced. Failures leave
// orphans for the storage sweep.
func (h *Handler) removeBlobs(r *http.Request, names ...string) {
	if err := h.storage.Delete(names...); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Strs("files", names).Msg("Failed to remove stored files")
	}
}
