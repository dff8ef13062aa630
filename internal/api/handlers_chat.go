// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/validation"
)

// ListMessages returns a direct conversation (?with=<user id>) or channel
// history (?channel=<name>, default general), oldest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	other, ok := queryID(w, r, "with")
	if !ok {
		return
	}

	var (
		msgs []models.Message
		err  error
	)
	if other != 0 {
		msgs, err = h.db.Conversation(r.Context(), claimsFrom(r).UserID, other, opts)
	} else {
		channel := strings.TrimSpace(r.URL.Query().Get("channel"))
		if channel == "" {
			channel = models.DefaultChannel
		}
		if !validation.ValidChannel(channel) {
			invalid(w, r, "channel", "invalid channel name")
			return
		}
		msgs, err = h.db.ChannelMessages(r.Context(), channel, opts)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, msgs)
}

// SendMessage stores a message and delivers it over the hub exactly like a
// message sent on the socket.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !bind(w, r, &req) {
		return
	}
	c := claimsFrom(r)
	if req.RecipientID != nil && *req.RecipientID == c.UserID {
		invalid(w, r, "recipient_id", "cannot send a message to yourself")
		return
	}
	m := &models.Message{
		SenderID:    c.UserID,
		RecipientID: req.RecipientID,
		Channel:     req.Channel,
		Content:     strings.TrimSpace(req.Content),
	}
	if err := h.db.CreateMessage(r.Context(), m); err != nil {
		handleError(w, r, err)
		return
	}
	if h.hub != nil {
		h.hub.PublishChat(*m, h.displayName(r, c.UserID, c.Username))
	}
	writeCreated(w, m)
}

// MarkRead marks every unread message from sender_id to the caller as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !bind(w, r, &req) {
		return
	}
	n, err := h.db.MarkRead(r.Context(), claimsFrom(r).UserID, req.SenderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, map[string]int64{"marked": n})
}

// UnreadCounts returns unread direct messages grouped by sender.
func (h *Handler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.db.UnreadCounts(r.Context(), claimsFrom(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, counts)
}

// Presence lists users with at least one live socket.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeList(w, []models.PresenceEntry{})
		return
	}
	writeList(w, h.hub.Presence())
}
