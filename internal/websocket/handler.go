// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

// ServeWS upgrades the request and starts the connection's pumps. A valid
// bearer token or session cookie on the upgrade request authenticates the
// connection immediately; otherwise the client must send an auth frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends when this handler returns.
	base := context.Background()
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		base = logging.ContextWithRequestID(base, id)
	}
	client := NewClient(base, h, conn)
	if !h.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
		_ = conn.Close()
		client.cancel()
		return
	}

	if token := auth.ExtractToken(r); token != "" && h.verifier != nil {
		if claims, err := h.verifier.Verify(r.Context(), token); err == nil {
			h.authenticate(client, claims)
		}
	}
	client.Start()
}

// checkOrigin accepts same-host origins, requests without an Origin header
// and the configured origins. "*" accepts everything.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}
