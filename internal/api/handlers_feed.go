// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/models"
)

// ListPosts returns the feed, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	page, err := h.db.ListPosts(r.Context(), opts, claimsFrom(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// CreatePost publishes a post and announces it to connected clients.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !bind(w, r, &req) {
		return
	}
	if !h.checkPostImage(w, r, req.ImageFileID) {
		return
	}
	c := claimsFrom(r)
	p := &models.Post{
		AuthorID:    c.UserID,
		AuthorName:  h.displayName(r, c.UserID, c.Username),
		Content:     strings.TrimSpace(req.Content),
		ImageFileID: req.ImageFileID,
	}
	if err := h.db.CreatePost(r.Context(), p); err != nil {
		handleError(w, r, err)
		return
	}
	h.events.Emit(r.Context(), events.PostCreated(p))
	writeCreated(w, p)
}

// GetPost returns one post with reaction counts.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.db.GetPost(r.Context(), id, claimsFrom(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, p)
}

// UpdatePost edits a post. Only the author or an admin may edit.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req postRequest
	if !bind(w, r, &req) {
		return
	}
	if _, ok := h.ownPost(w, r, id); !ok {
		return
	}
	if !h.checkPostImage(w, r, req.ImageFileID) {
		return
	}
	if err := h.db.UpdatePost(r.Context(), id, strings.TrimSpace(req.Content), req.ImageFileID); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.db.GetPost(r.Context(), id, claimsFrom(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, p)
}

// DeletePost removes a post and its reactions.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.ownPost(w, r, id); !ok {
		return
	}
	if err := h.db.DeletePost(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ListReactions returns every individual reaction on a post.
func (h *Handler) ListReactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.db.GetPost(r.Context(), id, 0); err != nil {
		handleError(w, r, err)
		return
	}
	reactions, err := h.db.ListReactions(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, reactions)
}

// ReactionResult is the body of a reaction toggle.
type ReactionResult struct {
	Added     bool                   `json:"added"`
	Reactions []models.ReactionCount `json:"reactions"`
}

// ToggleReaction adds the caller's emoji or removes it if already present.
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reactionRequest
	if !bind(w, r, &req) {
		return
	}
	added, counts, err := h.db.ToggleReaction(r.Context(), id, claimsFrom(r).UserID, req.Emoji)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, ReactionResult{Added: added, Reactions: counts})
}

// ownPost loads a post and rejects callers who are neither its author nor
// an admin.
func (h *Handler) ownPost(w http.ResponseWriter, r *http.Request, id int64) (*models.Post, bool) {
	c := claimsFrom(r)
	p, err := h.db.GetPost(r.Context(), id, c.UserID)
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	if p.AuthorID != c.UserID && !h.isAdmin(c) {
		forbidden(w, r, "only the author or an administrator may change this post")
		return nil, false
	}
	return p, true
}

// checkPostImage verifies that an attached file exists and is an image.
func (h *Handler) checkPostImage(w http.ResponseWriter, r *http.Request, fileID *int64) bool {
	if fileID == nil {
		return true
	}
	f, err := h.db.GetFile(r.Context(), *fileID)
	if errors.Is(err, database.ErrNotFound) {
		invalid(w, r, "image_file_id", "file does not exist")
		return false
	}
	if err != nil {
		handleError(w, r, err)
		return false
	}
	if !strings.HasPrefix(f.MimeType, "image/") {
		invalid(w, r, "image_file_id", "file is not an image")
		return false
	}
	return true
}

// displayName returns the user's display name, falling back to fallback.
func (h *Handler) displayName(r *http.Request, id int64, fallback string) string {
	u, err := h.db.GetUser(r.Context(), id)
	if err != nil || u.DisplayName == "" {
		return fallback
	}
	return u.DisplayName
}
