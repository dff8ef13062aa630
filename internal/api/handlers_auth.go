// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/models"
)

// Login verifies credentials and returns a token, also set as an HttpOnly
// cookie for the browser client.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !bind(w, r, &req) {
		return
	}
	ip := audit.ClientIP(r)
	ctx := audit.WithSourceIP(r.Context(), ip)

	session, err := h.auth.Login(ctx, req.Username, req.Password, ip)
	if err != nil {
		handleError(w, r, err)
		return
	}
	auth.SetTokenCookie(w, session.Token, session.ExpiresAt, h.cookieSecure())
	writeSuccess(w, session)
}

// RegisterResponse tells the client whether it was signed in or queued.
type RegisterResponse struct {
	Status         string              `json:"status"`
	Session        *auth.Session       `json:"session,omitempty"`
	Pending        *models.PendingUser `json:"pending,omitempty"`
	InviteRejected bool                `json:"invite_rejected,omitempty"`
}

// Register creates an account immediately with a usable invite code (201)
// and queues it for approval otherwise (202).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !bind(w, r, &req) {
		return
	}
	ctx := audit.WithSourceIP(r.Context(), audit.ClientIP(r))
	res, err := h.auth.Register(ctx, auth.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		InviteCode:  req.InviteCode,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	if res.Session != nil {
		auth.SetTokenCookie(w, res.Session.Token, res.Session.ExpiresAt, h.cookieSecure())
		writeCreated(w, RegisterResponse{Status: "active", Session: res.Session})
		return
	}
	writeStatus(w, http.StatusAccepted, RegisterResponse{
		Status:         "pending",
		Pending:        res.Pending,
		InviteRejected: res.InviteRejected,
	})
}

// InviteStatus answers the invite check.
type InviteStatus struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CheckInvite reports whether a code can be used. Unknown codes are simply
// invalid.
func (h *Handler) CheckInvite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" || len(code) > 64 {
		writeSuccess(w, InviteStatus{})
		return
	}
	invite, usable, err := h.auth.CheckInvite(r.Context(), code)
	if errors.Is(err, database.ErrNotFound) {
		writeSuccess(w, InviteStatus{})
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	status := InviteStatus{Valid: usable}
	if usable {
		status.ExpiresAt = &invite.ExpiresAt
	}
	writeSuccess(w, status)
}

// Logout revokes the token and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), claimsFrom(r)); err != nil {
		handleError(w, r, err)
		return
	}
	auth.ClearTokenCookie(w, h.cookieSecure())
	writeNoContent(w)
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.db.GetUser(r.Context(), claimsFrom(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, u)
}

// ChangePassword replaces the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !bind(w, r, &req) {
		return
	}
	err := h.auth.ChangePassword(r.Context(), claimsFrom(r).UserID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		invalid(w, r, "current_password", "current password is incorrect")
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}
