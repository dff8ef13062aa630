// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/spreadsheet"
	"github.com/tomtom215/portico/internal/storage"
)

// errorMapping maps sentinel errors to a status and code. The first match
// wins; the message is the error text unless message is set.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{database.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "resource not found"},
	{backup.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "backup not found"},
	{database.ErrIdempotencyKeyReuse, http.StatusUnprocessableEntity, ErrCodeIdempotencyKeyReused, ""},
	{database.ErrConflict, http.StatusConflict, ErrCodeConflict, ""},
	{database.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict, ""},
	{database.ErrNotEditable, http.StatusConflict, ErrCodeConflict, ""},
	{database.ErrDuplicate, http.StatusConflict, ErrCodeConflict, ""},
	{database.ErrNotEmpty, http.StatusConflict, ErrCodeConflict, ""},
	{auth.ErrUsernameTaken, http.StatusConflict, ErrCodeConflict, ""},
	{auth.ErrLastAdmin, http.StatusConflict, ErrCodeConflict, ""},
	{auth.ErrSelfModification, http.StatusForbidden, ErrCodeForbidden, ""},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, ""},
	{auth.ErrAccountInactive, http.StatusForbidden, ErrCodeForbidden, ""},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, ErrCodeValidation, ""},
	{auth.ErrInvalidInviteTTL, http.StatusBadRequest, ErrCodeValidation, ""},
	{models.ErrAmountOutOfRange, http.StatusBadRequest, ErrCodeValidation, ""},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, ""},
	{storage.ErrEmpty, http.StatusBadRequest, ErrCodeValidation, ""},
	{storage.ErrNotImage, http.StatusBadRequest, ErrCodeValidation, ""},
	{spreadsheet.ErrUnsupportedFormat, http.StatusBadRequest, ErrCodeValidation, ""},
	{spreadsheet.ErrEmptySheet, http.StatusBadRequest, ErrCodeValidation, ""},
	{spreadsheet.ErrNoNameColumn, http.StatusBadRequest, ErrCodeValidation, ""},
}

// handleError writes the envelope for err. Unknown errors are logged and
// reported as 500 without their text.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *auth.LockedError
	if errors.As(err, &locked) {
		seconds := int(math.Ceil(locked.Remaining.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, r, http.StatusTooManyRequests, ErrCodeAccountLocked, auth.ErrAccountLocked.Error(),
			map[string]interface{}{"retry_after_seconds": seconds})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, r, m.status, m.code, msg, nil)
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Request timed out")
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "request timed out", nil)
		return
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody reads the response.
		return
	}

	logging.Ctx(r.Context()).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal server error", nil)
}
