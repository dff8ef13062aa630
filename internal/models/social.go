// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import "time"

// Post is a feed entry.
type Post struct {
	ID          int64           `json:"id"`
	AuthorID    int64           `json:"author_id"`
	AuthorName  string          `json:"author_name,omitempty"`
	Content     string          `json:"content"`
	ImageFileID *int64          `json:"image_file_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Reactions   []ReactionCount `json:"reactions"`
}

// Reaction is one user's emoji on a post.
type Reaction struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionCount aggregates reactions per emoji. Reacted is relative to the
// requesting user.
type ReactionCount struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// Message is a chat message: direct when RecipientID is set, otherwise
// posted to Channel.
type Message struct {
	ID          int64      `json:"id"`
	SenderID    int64      `json:"sender_id"`
	RecipientID *int64     `json:"recipient_id,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// DefaultChannel receives messages sent without a recipient or channel.
const DefaultChannel = "general"

// UnreadCount is the number of unread direct messages from one sender.
type UnreadCount struct {
	SenderID int64 `json:"sender_id"`
	Count    int   `json:"count"`
}
