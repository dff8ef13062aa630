// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package websocket

import (
	"github.com/tomtom215/portico/internal/logging"
)

// joinRoom adds c to a video room and tells both sides about each other.
// Joining a room twice resends the member list.
func (h *Hub) joinRoom(c *Client, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[roomID]
	if !room[c] {
		if len(room) >= h.cfg.MaxRoomSize {
			return frameError{code: CodeRoomFull, message: "room is full"}
		}
		if room == nil {
			room = make(map[*Client]bool)
			h.rooms[roomID] = room
		}
		room[c] = true
		c.rooms[roomID] = true
		joined := Message{Type: TypeUserJoined, Data: RoomPeer{RoomID: roomID, RoomMember: c.member()}}
		for _, peer := range sortClients(room) {
			if peer != c {
				h.sendLocked(peer, joined)
			}
		}
		h.updateGaugesLocked()
		logging.Debug().Str("room_id", roomID).Uint64("conn_id", c.id).Int("members", len(room)).Msg("joined video room")
	}

	members := make([]RoomMember, 0, len(room)-1)
	for _, peer := range sortClients(room) {
		if peer != c {
			members = append(members, peer.member())
		}
	}
	h.sendLocked(c, Message{Type: TypeRoomMembers, Data: RoomMembers{RoomID: roomID, Members: members}})
	return nil
}

// leaveRoom removes c from a room it belongs to.
func (h *Hub) leaveRoom(c *Client, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.rooms[roomID][c] {
		return frameError{code: CodeNotInRoom, message: "not a member of this room"}
	}
	h.leaveRoomLocked(c, roomID)
	return nil
}

func (h *Hub) leaveRoomLocked(c *Client, roomID string) {
	room := h.rooms[roomID]
	delete(room, c)
	delete(c.rooms, roomID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	} else {
		left := Message{Type: TypeUserLeft, Data: RoomPeer{RoomID: roomID, RoomMember: c.member()}}
		for _, peer := range sortClients(room) {
			h.sendLocked(peer, left)
		}
	}
	h.updateGaugesLocked()
}

// relay passes an offer, answer or ICE candidate to one member of a room
// both connections belong to.
func (h *Hub) relay(c *Client, kind string, sig signalData) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[sig.RoomID]
	if !room[c] {
		return frameError{code: CodeNotInRoom, message: "not a member of this room"}
	}
	for peer := range room {
		if peer.id != sig.Target || peer == c {
			continue
		}
		h.sendLocked(peer, Message{Type: kind, Data: Signal{
			RoomID:     sig.RoomID,
			From:       c.id,
			FromUserID: c.userID,
			Payload:    sig.Payload,
		}})
		return nil
	}
	return frameError{code: CodeUnknownTarget, message: "target is not in this room"}
}
