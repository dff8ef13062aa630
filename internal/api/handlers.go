// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/authz"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/middleware"
	"github.com/tomtom215/portico/internal/storage"
	ws "github.com/tomtom215/portico/internal/websocket"
)

// Dependencies are the services the handlers use. Events, Audit, Backups and
// Authz may be nil; the corresponding features degrade instead of failing.
type Dependencies struct {
	DB      *database.DB
	Config  *config.Config
	Auth    *auth.Service
	Authz   *authz.Middleware
	Storage *storage.Store
	Hub     *ws.Hub
	Events  *events.Bus
	Audit   *audit.Logger
	Backups *backup.Manager
	PerfMon *middleware.PerformanceMonitor
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across multiple files:
//   - handlers_health.go: health endpoint
//   - handlers_auth.go: login, registration, logout, password
//   - handlers_users.go: directory, profile and avatar
//   - handlers_feed.go: posts and reactions
//   - handlers_chat.go: messages and presence
//   - handlers_files.go: folders and files
//   - handlers_customers.go: customers, contacts and import
//   - handlers_quotes.go: quotes, lifecycle actions and export
//   - handlers_invoices.go: invoices
//   - handlers_admin.go: approvals, invites, accounts and audit
//   - handlers_backup.go: backups and performance stats
type Handler struct {
	db        *database.DB
	config    *config.Config
	auth      *auth.Service
	authz     *authz.Middleware
	storage   *storage.Store
	hub       *ws.Hub
	events    *events.Bus
	audit     *audit.Logger
	backups   *backup.Manager
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates a new API handler with all required dependencies.
func NewHandler(deps Dependencies) *Handler {
	perfMon := deps.PerfMon
	if perfMon == nil {
		perfMon = middleware.NewPerformanceMonitor(1000)
	}
	return &Handler{
		db:        deps.DB,
		config:    deps.Config,
		auth:      deps.Auth,
		authz:     deps.Authz,
		storage:   deps.Storage,
		hub:       deps.Hub,
		events:    deps.Events,
		audit:     deps.Audit,
		backups:   deps.Backups,
		perfMon:   perfMon,
		startTime: time.Now(),
	}
}

// PerformanceMonitor exposes the monitor so the router can install its
// middleware.
func (h *Handler) PerformanceMonitor() *middleware.PerformanceMonitor {
	return h.perfMon
}

// isAdmin decides object-level checks such as editing another user's post.
// It asks the policy whether the role administers the portal.
func (h *Handler) isAdmin(c *auth.Claims) bool {
	if c == nil {
		return false
	}
	if h.authz != nil {
		return h.authz.Can(c.Role, "admin", "write")
	}
	return c.IsAdmin()
}

func (h *Handler) cookieSecure() bool {
	return h.config != nil && h.config.Security.CookieSecure
}

func actor(c *auth.Claims) audit.Actor {
	return audit.UserActor(c.UserID, c.Username)
}
