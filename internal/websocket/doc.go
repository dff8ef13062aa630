// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package websocket is the realtime side of the portal: chat delivery, presence
and WebRTC signaling over JSON frames of the form {"type": ..., "data": ...}.

Connection Lifecycle:

 1. The client connects to GET /api/ws and the hub registers the connection.
 2. The connection authenticates, either with a token on the upgrade request
    or with an auth frame. Until then only auth and ping are accepted, and the
    connection is closed after websocket.auth_timeout.
 3. The first authenticated connection of a user broadcasts presence:update
    with online=true; closing the last one broadcasts online=false.
 4. On close, error or missed pong the connection leaves every video room.

Video Rooms:

Rooms are created by the first video:join-room and deleted when the last
member leaves. Offers, answers and ICE candidates are addressed to a member's
conn_id and relayed only inside the room both connections belong to. The
media itself never passes through the server.

Chat:

chat:send is stored through MessageStore before delivery. A direct message
reaches every connection of sender and recipient; a channel message reaches
every authenticated connection.

Thread Safety:

Hub state is guarded by one mutex and every send to a client channel happens
under it. Slow clients whose send buffer fills up are disconnected.
*/
package websocket
