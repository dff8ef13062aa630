// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, email, password_hash, display_name, role, avatar_file, is_active, created_at, last_seen_at`

func scanUser(r rowScanner) (*models.User, error) {
	var u models.User
	var lastSeen sql.NullTime
	if err := r.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Role, &u.AvatarFile, &u.IsActive, &u.CreatedAt, &lastSeen); err != nil {
		return nil, notFound(err)
	}
	u.LastSeenAt = nullTime(lastSeen)
	return &u, nil
}

// CreateUser inserts u and fills its ID and CreatedAt.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	return db.createUser(ctx, db.conn, u)
}

func (db *DB) createUser(ctx context.Context, q querier, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = db.now()
	id, err := db.insert(ctx, q, "users",
		`INSERT INTO users (username, email, password_hash, display_name, role, avatar_file, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.DisplayName, u.Role, u.AvatarFile, u.IsActive, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Username, err)
	}
	u.ID = id
	return nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(db.queryRow(ctx, db.conn, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByUsername looks a user up case-insensitively.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(db.queryRow(ctx, db.conn,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`, username))
}

// ListUsers returns active and inactive users ordered by display name.
func (db *DB) ListUsers(ctx context.Context, opts models.ListOptions) (*models.Page[models.User], error) {
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	where, args := query.NewWhereBuilder().
		AddSearch(opts.Search, "LOWER(username)", "LOWER(display_name)", "LOWER(email)").
		BuildWithPrefix()

	page := &models.Page[models.User]{Items: []models.User{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM users`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "users",
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY LOWER(display_name), id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *u)
	}
	return page, rows.Err()
}

// UpdateProfile changes the self-editable fields of a user.
func (db *DB) UpdateProfile(ctx context.Context, id int64, displayName, email string) error {
	return db.execOne(ctx, db.conn, "users", ErrNotFound,
		`UPDATE users SET display_name = ?, email = ? WHERE id = ?`, displayName, email, id)
}

// UpdatePasswordHash stores a new bcrypt hash.
func (db *DB) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return db.execOne(ctx, db.conn, "users", ErrNotFound,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

// SetAvatar stores a new avatar file name and returns the previous one.
func (db *DB) SetAvatar(ctx context.Context, id int64, file string) (string, error) {
	var old string
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.queryRow(ctx, tx, `SELECT avatar_file FROM users WHERE id = ?`, id).Scan(&old); err != nil {
			return notFound(err)
		}
		return db.execOne(ctx, tx, "users", ErrNotFound, `UPDATE users SET avatar_file = ? WHERE id = ?`, file, id)
	})
	return old, err
}

// SetRole changes a user's role.
func (db *DB) SetRole(ctx context.Context, id int64, role string) error {
	return db.execOne(ctx, db.conn, "users", ErrNotFound, `UPDATE users SET role = ? WHERE id = ?`, role, id)
}

// SetActive enables or disables a user.
func (db *DB) SetActive(ctx context.Context, id int64, active bool) error {
	return db.execOne(ctx, db.conn, "users", ErrNotFound, `UPDATE users SET is_active = ? WHERE id = ?`, active, id)
}

// DeleteUser removes a user. Rows that reference the user (quotes, posts,
// invites) keep their numeric ids; a user who authored posts cannot be
// deleted and should be deactivated instead.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := db.exec(ctx, tx, "reactions", `DELETE FROM reactions WHERE user_id = ?`, id); err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx, "invite_codes", `DELETE FROM invite_codes WHERE created_by = ? AND used_by IS NULL`, id); err != nil {
			return err
		}
		err := db.execOne(ctx, tx, "users", ErrNotFound, `DELETE FROM users WHERE id = ?`, id)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user still referenced, deactivate instead", ErrConflict)
		}
		return err
	})
}

// TouchLastSeen records activity for presence listings.
func (db *DB) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := db.exec(ctx, db.conn, "users", `UPDATE users SET last_seen_at = ? WHERE id = ?`, db.now(), id)
	return err
}

// CountAdmins returns the number of active administrators.
func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		`SELECT COUNT(*) FROM users WHERE role = ? AND is_active = ?`, models.RoleAdmin, true).Scan(&n)
	return n, err
}

// UsernameTaken reports whether username is used by a user or a pending
// registration.
func (db *DB) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		`SELECT (SELECT COUNT(*) FROM users WHERE LOWER(username) = LOWER(?)) +
		        (SELECT COUNT(*) FROM pending_users WHERE LOWER(username) = LOWER(?))`,
		username, username).Scan(&n)
	return n > 0, err
}

// CreatePendingUser stores a registration awaiting approval.
func (db *DB) CreatePendingUser(ctx context.Context, p *models.PendingUser) error {
	p.CreatedAt = db.now()
	id, err := db.insert(ctx, db.conn, "pending_users",
		`INSERT INTO pending_users (username, email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Username, p.Email, p.PasswordHash, p.DisplayName, p.CreatedAt)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func scanPending(r rowScanner) (*models.PendingUser, error) {
	var p models.PendingUser
	if err := r.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.DisplayName, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPendingUsers returns registrations oldest first.
func (db *DB) ListPendingUsers(ctx context.Context) ([]models.PendingUser, error) {
	rows, err := db.query(ctx, db.conn, "pending_users",
		`SELECT id, username, email, password_hash, display_name, created_at FROM pending_users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.PendingUser{}
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApprovePendingUser moves a registration into users in one transaction.
func (db *DB) ApprovePendingUser(ctx context.Context, id int64) (*models.User, error) {
	var user *models.User
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := scanPending(db.queryRow(ctx, tx,
			`SELECT id, username, email, password_hash, display_name, created_at FROM pending_users WHERE id = ?`, id))
		if err != nil {
			return err
		}
		u := &models.User{
			Username:     p.Username,
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
			DisplayName:  p.DisplayName,
			Role:         models.RoleUser,
			IsActive:     true,
		}
		if err := db.createUser(ctx, tx, u); err != nil {
			return err
		}
		if err := db.execOne(ctx, tx, "pending_users", ErrNotFound, `DELETE FROM pending_users WHERE id = ?`, id); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// RejectPendingUser deletes a registration.
func (db *DB) RejectPendingUser(ctx context.Context, id int64) error {
	return db.execOne(ctx, db.conn, "pending_users", ErrNotFound, `DELETE FROM pending_users WHERE id = ?`, id)
}

const inviteColumns = `id, code, created_by, expires_at, used_by, used_at, created_at`

func scanInvite(r rowScanner) (*models.InviteCode, error) {
	var c models.InviteCode
	var usedBy sql.NullInt64
	var usedAt sql.NullTime
	if err := r.Scan(&c.ID, &c.Code, &c.CreatedBy, &c.ExpiresAt, &usedBy, &usedAt, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	c.UsedBy = nullInt(usedBy)
	c.UsedAt = nullTime(usedAt)
	return &c, nil
}

// CreateInvite stores a new invite code.
func (db *DB) CreateInvite(ctx context.Context, code string, createdBy int64, ttl time.Duration) (*models.InviteCode, error) {
	now := db.now()
	c := &models.InviteCode{Code: code, CreatedBy: createdBy, ExpiresAt: now.Add(ttl), CreatedAt: now}
	id, err := db.insert(ctx, db.conn, "invite_codes",
		`INSERT INTO invite_codes (code, created_by, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		c.Code, c.CreatedBy, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// GetInviteByCode returns an invite code regardless of its state.
func (db *DB) GetInviteByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	return scanInvite(db.queryRow(ctx, db.conn, `SELECT `+inviteColumns+` FROM invite_codes WHERE code = ?`, code))
}

// ListInvites returns all invite codes, newest first.
func (db *DB) ListInvites(ctx context.Context) ([]models.InviteCode, error) {
	rows, err := db.query(ctx, db.conn, "invite_codes",
		`SELECT `+inviteColumns+` FROM invite_codes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.InviteCode{}
	for rows.Next() {
		c, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// RevokeInvite deletes an unused invite code. Used codes are kept as a
// record of who registered with them.
func (db *DB) RevokeInvite(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := scanInvite(db.queryRow(ctx, tx, `SELECT `+inviteColumns+` FROM invite_codes WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if c.UsedBy != nil {
			return fmt.Errorf("%w: invite already used", ErrConflict)
		}
		return db.execOne(ctx, tx, "invite_codes", ErrNotFound, `DELETE FROM invite_codes WHERE id = ?`, id)
	})
}

// RegisterWithInvite creates u and consumes the invite code in one
// transaction. Two registrations racing for the same code cannot both win.
func (db *DB) RegisterWithInvite(ctx context.Context, u *models.User, code string) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := scanInvite(db.queryRow(ctx, tx, `SELECT `+inviteColumns+` FROM invite_codes WHERE code = ?`, code))
		if err != nil {
			if isNotFound(err) {
				return ErrInviteUnusable
			}
			return err
		}
		if !c.Usable(db.now()) {
			return ErrInviteUnusable
		}
		u.Role = models.RoleUser
		u.IsActive = true
		if err := db.createUser(ctx, tx, u); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "invite_codes", ErrInviteUnusable,
			`UPDATE invite_codes SET used_by = ?, used_at = ? WHERE id = ? AND used_by IS NULL`,
			u.ID, db.now(), c.ID)
	})
}
