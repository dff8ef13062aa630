// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// clientIDCounter hands out connection ids. Ids order fan-out and address
// signaling targets.
var clientIDCounter atomic.Uint64

// Client is one WebSocket connection.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc

	authed    atomic.Bool
	closeOnce sync.Once

	// Guarded by hub.mu.
	userID   int64
	username string
	rooms    map[string]bool
	closed   bool
}

// NewClient creates a client for conn. ctx carries request-scoped log fields
// and outlives the HTTP handler.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, sendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.MessagesPerSecond), hub.cfg.Burst),
		ctx:     ctx,
		cancel:  cancel,
		rooms:   make(map[string]bool),
	}
}

// ID returns the connection id.
func (c *Client) ID() uint64 {
	return c.id
}

func (c *Client) member() RoomMember {
	return RoomMember{ConnID: c.id, UserID: c.userID, Username: c.username}
}

func (c *Client) roomIDs() []string {
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// kick closes the underlying connection; the read loop then unregisters.
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// onAuthenticated switches from the auth deadline to the keepalive deadline.
func (c *Client) onAuthenticated() {
	if c.conn == nil {
		return
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.kick()
	}
	logging.Ctx(c.ctx).Debug().Uint64("conn_id", c.id).Int64("user_id", c.userID).Msg("websocket client authenticated")
}

// readPump reads frames until the connection fails. Until the client
// authenticates, the read deadline is the auth timeout and pongs do not
// extend it.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.cancel()
		c.kick()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageBytes)
	deadline := pongWait
	if !c.authed.Load() {
		deadline = c.hub.cfg.AuthTimeout
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if !c.authed.Load() {
			return nil
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			switch {
			case !c.authed.Load() && errors.As(err, &netErr) && netErr.Timeout():
				metrics.WSErrors.WithLabelValues("auth_timeout").Inc()
				logging.Ctx(c.ctx).Debug().Uint64("conn_id", c.id).Msg("websocket client did not authenticate in time")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Ctx(c.ctx).Warn().Err(err).Uint64("conn_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues(CodeRateLimited).Inc()
			c.hub.reply(c, errorFrame(CodeRateLimited, "too many messages"))
			continue
		}
		if err := c.handleFrame(raw); err != nil {
			var fe frameError
			if !errors.As(err, &fe) {
				fe = frameError{code: CodeInternal, message: "internal error"}
			}
			c.hub.reply(c, errorFrame(fe.code, fe.message))
		}
	}
}

// writePump writes queued frames and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
