// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/logging"
)

// ListPending returns registrations waiting for approval.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.db.ListPendingUsers(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, pending)
}

// ApprovePending activates a pending registration.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c := claimsFrom(r)
	u, err := h.auth.ApprovePending(r.Context(), c, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.events.Emit(r.Context(), events.UserApproved(c.UserID, u))
	writeCreated(w, u)
}

// RejectPending discards a pending registration.
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.auth.RejectPending(r.Context(), claimsFrom(r), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ListInvites returns all invite codes, used and unused.
func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.db.ListInvites(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, invites)
}

// CreateInvite issues an invite code. The body and its ttl are optional.
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !bindOptional(w, r, &req) {
		return
	}
	var ttl time.Duration
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			invalid(w, r, "ttl", "ttl must be a positive duration such as 72h")
			return
		}
		ttl = d
	}
	invite, err := h.auth.CreateInvite(r.Context(), claimsFrom(r), ttl)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeCreated(w, invite)
}

// RevokeInvite deletes an unused invite code.
func (h *Handler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.auth.RevokeInvite(r.Context(), claimsFrom(r), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ChangeRole sets a user's role.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !bind(w, r, &req) {
		return
	}
	if err := h.auth.ChangeRole(r.Context(), claimsFrom(r), id, req.Role); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondUser(w, r, id)
}

// SetActive activates or deactivates a user. Deactivation closes the user's
// sockets.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req activeRequest
	if !bind(w, r, &req) {
		return
	}
	if err := h.auth.SetActive(r.Context(), claimsFrom(r), id, *req.Active); err != nil {
		handleError(w, r, err)
		return
	}
	if !*req.Active {
		h.disconnect(r, id)
	}
	h.respondUser(w, r, id)
}

// DeleteUser removes an account and closes its sockets.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.auth.DeleteUser(r.Context(), claimsFrom(r), id); err != nil {
		handleError(w, r, err)
		return
	}
	h.disconnect(r, id)
	writeNoContent(w)
}

// AuditLog queries the audit trail. Filters: type (comma separated),
// actor_id, target_id, since, until, q, limit, offset.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := audit.QueryFilter{
		ActorID:  q.Get("actor_id"),
		TargetID: q.Get("target_id"),
		Search:   opts.Search,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			filter.Types = append(filter.Types, audit.EventType(strings.TrimSpace(t)))
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.StartTime}, {"until", &filter.EndTime}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			invalid(w, r, p.name, p.name+" must be a date or RFC 3339 timestamp")
			return
		}
		*p.dst = &t
	}
	if h.audit == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "audit log is disabled", nil)
		return
	}

	evts, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	total, err := h.audit.Count(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if evts == nil {
		evts = []audit.Event{}
	}
	n := int(total)
	resp := envelope(evts)
	resp.Metadata.Total = &n
	resp.Metadata.Limit = filter.Limit
	resp.Metadata.Offset = filter.Offset
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, id int64) {
	u, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, u)
}

func (h *Handler) disconnect(r *http.Request, userID int64) {
	if h.hub == nil {
		return
	}
	if n := h.hub.DisconnectUser(userID); n > 0 {
		logging.Ctx(r.Context()).Info().Int64("user_id", userID).Int("connections", n).Msg("Closed sockets of disabled user")
	}
}
