// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import "time"

// User is an approved account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	Role         string     `json:"role"`
	AvatarFile   string     `json:"avatar_file,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PendingUser is a self-registration waiting for an administrator.
type PendingUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// InviteCode lets one person register without approval.
type InviteCode struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	CreatedBy int64      `json:"created_by"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedBy    *int64     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the code is unused and not expired at now.
func (c *InviteCode) Usable(now time.Time) bool {
	return c.UsedBy == nil && now.Before(c.ExpiresAt)
}

// PresenceEntry is one row of GET /api/presence.
type PresenceEntry struct {
	UserID      int64  `json:"user_id"`
	Online      bool   `json:"online"`
	Status      string `json:"status,omitempty"`
	Connections int    `json:"connections"`
}
