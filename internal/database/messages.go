// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/portico/internal/models"
)

const messageColumns = `id, sender_id, recipient_id, channel, content, created_at, read_at`

func scanMessage(r rowScanner) (*models.Message, error) {
	var m models.Message
	var recipient sql.NullInt64
	var readAt sql.NullTime
	if err := r.Scan(&m.ID, &m.SenderID, &recipient, &m.Channel, &m.Content, &m.CreatedAt, &readAt); err != nil {
		return nil, notFound(err)
	}
	m.RecipientID = nullInt(recipient)
	m.ReadAt = nullTime(readAt)
	return &m, nil
}

// CreateMessage stores a direct message (RecipientID set) or a channel
// message. A message with neither goes to the default channel.
func (db *DB) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.RecipientID != nil {
		m.Channel = ""
		var n int
		if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM users WHERE id = ?`, *m.RecipientID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: recipient %d", ErrNotFound, *m.RecipientID)
		}
	} else if m.Channel == "" {
		m.Channel = models.DefaultChannel
	}
	m.CreatedAt = db.now()
	id, err := db.insert(ctx, db.conn, "messages",
		`INSERT INTO messages (sender_id, recipient_id, channel, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.SenderID, intArg(m.RecipientID), m.Channel, m.Content, m.CreatedAt)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// Conversation returns the direct messages between two users, oldest first.
// Pagination counts back from the newest message.
func (db *DB) Conversation(ctx context.Context, userID, otherID int64, opts models.ListOptions) ([]models.Message, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	return db.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, otherID, otherID, userID, limit, offset)
}

// ChannelMessages returns messages posted to channel, oldest first.
func (db *DB) ChannelMessages(ctx context.Context, channel string, opts models.ListOptions) ([]models.Message, error) {
	if channel == "" {
		channel = models.DefaultChannel
	}
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	return db.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE recipient_id IS NULL AND channel = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		channel, limit, offset)
}

func (db *DB) listMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := db.query(ctx, db.conn, "messages", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest-first from SQL, oldest-first for the client
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead marks every unread message from senderID to recipientID as read.
func (db *DB) MarkRead(ctx context.Context, recipientID, senderID int64) (int64, error) {
	res, err := db.exec(ctx, db.conn, "messages",
		`UPDATE messages SET read_at = ? WHERE recipient_id = ? AND sender_id = ? AND read_at IS NULL`,
		db.now(), recipientID, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCounts returns unread direct messages per sender for userID.
func (db *DB) UnreadCounts(ctx context.Context, userID int64) ([]models.UnreadCount, error) {
	rows, err := db.query(ctx, db.conn, "messages",
		`SELECT sender_id, COUNT(*) FROM messages WHERE recipient_id = ? AND read_at IS NULL
		 GROUP BY sender_id ORDER BY sender_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.UnreadCount{}
	for rows.Next() {
		var uc models.UnreadCount
		if err := rows.Scan(&uc.SenderID, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}
