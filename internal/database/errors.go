// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"database/sql"
	"errors"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/logging"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the row changed between read and write, or another
	// request won the race for the same transition.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrInvalidTransition is the lifecycle error, re-exported so callers of
	// the store need not import lifecycle to match it.
	ErrInvalidTransition = lifecycle.ErrInvalidTransition

	// ErrIdempotencyKeyReuse means the key was already used for a different
	// action or quote.
	ErrIdempotencyKeyReuse = errors.New("idempotency key already used for a different request")

	// ErrNotEditable is returned when changing a quote outside draft or sent.
	ErrNotEditable = errors.New("quote can no longer be edited")

	// ErrDuplicate wraps a unique constraint violation.
	ErrDuplicate = errors.New("duplicate value")

	// ErrNotEmpty is returned when deleting a folder that still has content.
	ErrNotEmpty = errors.New("folder is not empty")
)

// isUniqueViolation reports whether err is a unique or primary key violation
// in any supported dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed") ||
		strings.Contains(strings.ToLower(msg), "duplicate key")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") || strings.Contains(s, "database is locked")
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// duplicate maps a unique violation to ErrDuplicate.
func duplicate(err error) error {
	if isUniqueViolation(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

// constraint classifies a failed write. Foreign key violations mean the row
// is still referenced and surface as ErrConflict.
func constraint(err error) error {
	if isForeignKeyViolation(err) {
		return errors.Join(ErrConflict, err)
	}
	return duplicate(err)
}

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// ErrInviteUnusable is returned for an unknown, expired or used invite code.
var ErrInviteUnusable = errors.New("invite code is invalid, expired or already used")

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
