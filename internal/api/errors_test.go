// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/storage"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("quote 3: %w", database.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"lifecycle", fmt.Errorf("%w: draft to accepted", lifecycle.ErrInvalidTransition), http.StatusConflict, ErrCodeConflict},
		{"version", database.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{"not editable", database.ErrNotEditable, http.StatusConflict, ErrCodeConflict},
		{"key reuse", database.ErrIdempotencyKeyReuse, http.StatusUnprocessableEntity, ErrCodeIdempotencyKeyReused},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"self", auth.ErrSelfModification, http.StatusForbidden, ErrCodeForbidden},
		{"too large", storage.ErrTooLarge, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/api/quotes/3", nil), tt.err)
			expectStatus(t, rec, tt.status)
			env := decode(t, rec, nil)
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
			if tt.status == http.StatusInternalServerError && env.Error.Message == tt.err.Error() {
				t.Error("internal error text leaked to the client")
			}
		})
	}
}

func TestHandleError_Locked(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), &auth.LockedError{Remaining: 90*time.Second + time.Millisecond})
	expectStatus(t, rec, http.StatusTooManyRequests)
	if got := rec.Header().Get("Retry-After"); got != "91" {
		t.Errorf("Retry-After = %q", got)
	}
}

func TestHandleError_Canceled(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), context.Canceled)
	if rec.Body.Len() != 0 {
		t.Errorf("canceled request got a body: %s", rec.Body.String())
	}
}
