// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package websocket

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/validation"
)

// Client to server frame types.
const (
	TypeAuth           = "auth"
	TypePing           = "ping"
	TypeChatSend       = "chat:send"
	TypeCallUser       = "video:call-user"
	TypeJoinRoom       = "video:join-room"
	TypeLeaveRoom      = "video:leave-room"
	TypeOffer          = "video:offer"
	TypeAnswer         = "video:answer"
	TypeICECandidate   = "video:ice-candidate"
	TypePresenceUpdate = "presence:update"
)

// Server to client frame types. presence:update and the three signaling
// types are shared with the client direction.
const (
	TypeAuthOK       = "auth:ok"
	TypeAuthError    = "auth:error"
	TypeChatMessage  = "chat:message"
	TypeIncomingCall = "video:incoming-call"
	TypeRoomMembers  = "video:room-members"
	TypeUserJoined   = "video:user-joined"
	TypeUserLeft     = "video:user-left"
	TypeEvent        = "event"
	TypeError        = "error"
	TypePong         = "pong"
)

// Error codes carried by "error" frames.
const (
	CodeBadFrame        = "bad_frame"
	CodeInvalid         = "invalid"
	CodeUnauthenticated = "unauthenticated"
	CodeRateLimited     = "rate_limited"
	CodeUnknownType     = "unknown_type"
	CodeUserOffline     = "user_offline"
	CodeRoomFull        = "room_full"
	CodeNotInRoom       = "not_in_room"
	CodeUnknownTarget   = "unknown_target"
	CodeNotFound        = "not_found"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

const storeTimeout = 10 * time.Second

// Message is an outbound frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// inbound is a frame as read from a client; Data is decoded per type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type authData struct {
	Token string `json:"token" validate:"required"`
}

type chatSendData struct {
	RecipientID *int64 `json:"recipient_id" validate:"omitempty,min=1"`
	Channel     string `json:"channel" validate:"omitempty,channel"`
	Content     string `json:"content" validate:"required,max=4000"`
}

type statusData struct {
	Status string `json:"status" validate:"max=64"`
}

type callData struct {
	ToUserID int64  `json:"to_user_id" validate:"required,min=1"`
	RoomID   string `json:"room_id" validate:"required,max=64,printascii"`
}

type roomData struct {
	RoomID string `json:"room_id" validate:"required,max=64,printascii"`
}

type signalData struct {
	RoomID  string          `json:"room_id" validate:"required,max=64,printascii"`
	Target  uint64          `json:"target" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// AuthOK answers a successful auth frame with a snapshot of who is online.
type AuthOK struct {
	UserID int64                  `json:"user_id"`
	ConnID uint64                 `json:"conn_id"`
	Online []models.PresenceEntry `json:"online"`
}

// ErrorData is the payload of "error" and "auth:error" frames.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresenceUpdate announces a user coming online, going offline or changing
// status.
type PresenceUpdate struct {
	UserID int64  `json:"user_id"`
	Online bool   `json:"online"`
	Status string `json:"status,omitempty"`
}

// ChatMessage is a stored message plus the sender's username.
type ChatMessage struct {
	models.Message
	SenderName string `json:"sender_name"`
}

// IncomingCall rings the callee.
type IncomingCall struct {
	FromUserID   int64  `json:"from_user_id"`
	FromUsername string `json:"from_username"`
	RoomID       string `json:"room_id"`
}

// RoomMember identifies one connection in a room. A user may join from
// several tabs, so signaling addresses connections.
type RoomMember struct {
	ConnID   uint64 `json:"conn_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RoomMembers lists the other members to a connection that just joined.
type RoomMembers struct {
	RoomID  string       `json:"room_id"`
	Members []RoomMember `json:"members"`
}

// RoomPeer is sent with video:user-joined and video:user-left.
type RoomPeer struct {
	RoomID string `json:"room_id"`
	RoomMember
}

// Signal is a relayed offer, answer or ICE candidate.
type Signal struct {
	RoomID     string          `json:"room_id"`
	From       uint64          `json:"from"`
	FromUserID int64           `json:"from_user_id"`
	Payload    json.RawMessage `json:"payload"`
}

// frameError is reported back to the sender as an "error" frame.
type frameError struct {
	code    string
	message string
}

func (e frameError) Error() string { return e.code + ": " + e.message }

func errorFrame(code, message string) Message {
	return Message{Type: TypeError, Data: ErrorData{Code: code, Message: message}}
}

// handleFrame dispatches one inbound frame. Returned errors go back to the
// client; they never close the connection.
func (c *Client) handleFrame(raw []byte) error {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		return frameError{code: CodeBadFrame, message: "frame must be a JSON object with a type"}
	}

	switch in.Type {
	case TypePing:
		c.hub.reply(c, Message{Type: TypePong})
		return nil
	case TypeAuth:
		return c.handleAuth(in.Data)
	}

	if !c.authed.Load() {
		return frameError{code: CodeUnauthenticated, message: "send an auth frame first"}
	}

	switch in.Type {
	case TypeChatSend:
		var d chatSendData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		return c.handleChat(d)
	case TypePresenceUpdate:
		var d statusData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		c.hub.setStatus(c, strings.TrimSpace(d.Status))
		return nil
	case TypeCallUser:
		var d callData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		return c.hub.callUser(c, d.ToUserID, d.RoomID)
	case TypeJoinRoom:
		var d roomData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		return c.hub.joinRoom(c, d.RoomID)
	case TypeLeaveRoom:
		var d roomData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		return c.hub.leaveRoom(c, d.RoomID)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		var d signalData
		if err := decode(in.Data, &d); err != nil {
			return err
		}
		return c.hub.relay(c, in.Type, d)
	default:
		return frameError{code: CodeUnknownType, message: "unknown frame type " + in.Type}
	}
}

func (c *Client) handleAuth(data json.RawMessage) error {
	if c.authed.Load() {
		return frameError{code: CodeInvalid, message: "already authenticated"}
	}
	var d authData
	if err := decode(data, &d); err != nil {
		return err
	}
	if c.hub.verifier == nil {
		return frameError{code: CodeUnavailable, message: "authentication is not configured"}
	}

	ctx, cancel := context.WithTimeout(c.ctx, storeTimeout)
	defer cancel()
	claims, err := c.hub.verifier.Verify(ctx, d.Token)
	if err != nil {
		logging.Ctx(c.ctx).Debug().Err(err).Uint64("conn_id", c.id).Msg("websocket auth rejected")
		c.hub.reply(c, Message{Type: TypeAuthError, Data: ErrorData{Code: CodeUnauthenticated, Message: "invalid or expired token"}})
		return nil
	}
	if c.hub.authenticate(c, claims) {
		c.onAuthenticated()
	}
	return nil
}

// handleChat stores the message first; only a stored message is delivered.
func (c *Client) handleChat(d chatSendData) error {
	if c.hub.store == nil {
		return frameError{code: CodeUnavailable, message: "chat is not available"}
	}
	m := &models.Message{
		SenderID:    c.userID,
		RecipientID: d.RecipientID,
		Channel:     d.Channel,
		Content:     strings.TrimSpace(d.Content),
	}
	if m.Content == "" {
		return frameError{code: CodeInvalid, message: "content is required"}
	}

	ctx, cancel := context.WithTimeout(c.ctx, storeTimeout)
	defer cancel()
	if err := c.hub.store.CreateMessage(ctx, m); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return frameError{code: CodeNotFound, message: "recipient not found"}
		}
		logging.Ctx(c.ctx).Error().Err(err).Int64("user_id", c.userID).Msg("failed to store chat message")
		return frameError{code: CodeInternal, message: "message could not be stored"}
	}
	c.hub.deliverChat(ChatMessage{Message: *m, SenderName: c.username})
	return nil
}

func decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return frameError{code: CodeBadFrame, message: "malformed data"}
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return frameError{code: CodeInvalid, message: verr.Error()}
	}
	return nil
}
