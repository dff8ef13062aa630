// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/middleware"
)

// CreateBackup writes a backup archive now.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "backups are not configured", nil)
		return
	}
	info, err := h.backups.Create(r.Context(), backup.TriggerManual)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EventTypeDataBackup, actor(claimsFrom(r)),
		&audit.Target{Type: "backup", ID: info.File}, "create", "Manual backup created",
		map[string]any{"size": info.Size})
	writeCreated(w, info)
}

// ListBackups returns the archives on disk, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeList(w, []backup.Info{})
		return
	}
	infos, err := h.backups.List()
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, infos)
}

// PerformanceReport is the body of GET /api/admin/performance.
type PerformanceReport struct {
	Endpoints []middleware.EndpointStats  `json:"endpoints"`
	Recent    []middleware.RequestMetrics `json:"recent"`
}

// Performance reports per-route latency over the recent request window.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, PerformanceReport{
		Endpoints: h.perfMon.GetStats(),
		Recent:    h.perfMon.GetRecentMetrics(50),
	})
}
