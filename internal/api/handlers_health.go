// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/portico/internal/database"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status        string                `json:"status"`
	Database      database.HealthStatus `json:"database"`
	WebSocket     *WebSocketHealth      `json:"websocket,omitempty"`
	Events        string                `json:"events,omitempty"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
}

// WebSocketHealth summarises the realtime hub.
type WebSocketHealth struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Health reports database connectivity. It answers 503 when the database
// cannot be reached so load balancers take the instance out of rotation.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		Database:      h.db.Health(ctx),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.hub != nil {
		resp.WebSocket = &WebSocketHealth{Connections: h.hub.GetClientCount(), Rooms: h.hub.RoomCount()}
	}
	if h.events != nil {
		resp.Events = h.events.Transport()
	}

	if !resp.Database.Connected {
		resp.Status = "unhealthy"
		writeStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeSuccess(w, resp)
}
