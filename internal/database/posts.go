// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/models"
)

const postSelect = `SELECT p.id, p.author_id, COALESCE(NULLIF(u.display_name, ''), u.username, ''), p.content,
	p.image_file_id, p.created_at, p.updated_at
	FROM posts p LEFT JOIN users u ON u.id = p.author_id`

func scanPost(r rowScanner) (*models.Post, error) {
	var p models.Post
	var image sql.NullInt64
	if err := r.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Content, &image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	p.ImageFileID = nullInt(image)
	p.Reactions = []models.ReactionCount{}
	return &p, nil
}

// CreatePost inserts p and fills its ID and timestamps.
func (db *DB) CreatePost(ctx context.Context, p *models.Post) error {
	now := db.now()
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := db.insert(ctx, db.conn, "posts",
		`INSERT INTO posts (author_id, content, image_file_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.AuthorID, p.Content, intArg(p.ImageFileID), now, now)
	if err != nil {
		return err
	}
	p.ID = id
	p.Reactions = []models.ReactionCount{}
	return nil
}

// GetPost returns a post with reaction counts as seen by viewerID.
func (db *DB) GetPost(ctx context.Context, id, viewerID int64) (*models.Post, error) {
	p, err := scanPost(db.queryRow(ctx, db.conn, postSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := db.attachReactions(ctx, []*models.Post{p}, viewerID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns the feed newest first.
func (db *DB) ListPosts(ctx context.Context, opts models.ListOptions, viewerID int64) (*models.Page[models.Post], error) {
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	where, args := query.NewWhereBuilder().AddSearch(opts.Search, "LOWER(p.content)").BuildWithPrefix()

	page := &models.Page[models.Post]{Items: []models.Post{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "posts",
		postSelect+where+` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			closeQuietly(rows)
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, err
	}
	closeWithLog(rows, "posts rows")

	if err := db.attachReactions(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	for _, p := range posts {
		page.Items = append(page.Items, *p)
	}
	return page, nil
}

// UpdatePost replaces the content and image of a post.
func (db *DB) UpdatePost(ctx context.Context, id int64, content string, imageFileID *int64) error {
	return db.execOne(ctx, db.conn, "posts", ErrNotFound,
		`UPDATE posts SET content = ?, image_file_id = ?, updated_at = ? WHERE id = ?`,
		content, intArg(imageFileID), db.now(), id)
}

// DeletePost removes a post and its reactions.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := db.exec(ctx, tx, "reactions", `DELETE FROM reactions WHERE post_id = ?`, id); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "posts", ErrNotFound, `DELETE FROM posts WHERE id = ?`, id)
	})
}

// ToggleReaction adds the reaction when absent and removes it when present.
// It reports whether the reaction now exists and the post's new counts.
func (db *DB) ToggleReaction(ctx context.Context, postID, userID int64, emoji string) (bool, []models.ReactionCount, error) {
	added := false
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := db.queryRow(ctx, tx, `SELECT COUNT(*) FROM posts WHERE id = ?`, postID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		res, err := db.exec(ctx, tx, "reactions",
			`DELETE FROM reactions WHERE post_id = ? AND user_id = ? AND emoji = ?`, postID, userID, emoji)
		if err != nil {
			return err
		}
		if removed, _ := res.RowsAffected(); removed > 0 {
			return nil
		}
		if _, err := db.insert(ctx, tx, "reactions",
			`INSERT INTO reactions (post_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?)`,
			postID, userID, emoji, db.now()); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	p := &models.Post{ID: postID}
	if err := db.attachReactions(ctx, []*models.Post{p}, userID); err != nil {
		return false, nil, err
	}
	return added, p.Reactions, nil
}

// ListReactions returns the individual reactions on a post.
func (db *DB) ListReactions(ctx context.Context, postID int64) ([]models.Reaction, error) {
	rows, err := db.query(ctx, db.conn, "reactions",
		`SELECT id, post_id, user_id, emoji, created_at FROM reactions WHERE post_id = ? ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Reaction{}
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.ID, &r.PostID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) attachReactions(ctx context.Context, posts []*models.Post, viewerID int64) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Post, len(posts))
	ph := make([]string, len(posts))
	args := []any{viewerID}
	for i, p := range posts {
		byID[p.ID] = p
		p.Reactions = []models.ReactionCount{}
		ph[i] = "?"
		args = append(args, p.ID)
	}
	rows, err := db.query(ctx, db.conn, "reactions",
		`SELECT post_id, emoji, COUNT(*), COUNT(CASE WHEN user_id = ? THEN 1 END)
		 FROM reactions WHERE post_id IN (`+strings.Join(ph, ", ")+`)
		 GROUP BY post_id, emoji ORDER BY post_id, MIN(created_at), emoji`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var postID int64
		var rc models.ReactionCount
		var mine int64
		if err := rows.Scan(&postID, &rc.Emoji, &rc.Count, &mine); err != nil {
			return err
		}
		rc.Reacted = mine > 0
		if p := byID[postID]; p != nil {
			p.Reactions = append(p.Reactions, rc)
		}
	}
	return rows.Err()
}
