// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
)

// Error codes for API responses
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeAccountLocked        = "ACCOUNT_LOCKED"
	ErrCodeTooManyRequests      = "TOO_MANY_REQUESTS"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// respondJSON writes the envelope with the given status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func envelope(data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
}

// writeSuccess writes a 200 response.
func writeSuccess(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope(data))
}

// writeCreated writes a 201 response.
func writeCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, envelope(data))
}

// writeStatus writes data with an explicit status, e.g. 202 for a queued
// registration.
func writeStatus(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, envelope(data))
}

// writeReplayable answers a lifecycle request. A replayed idempotent request
// gets 200 and metadata.replayed; a fresh one gets created.
func writeReplayable(w http.ResponseWriter, created int, data interface{}, replayed bool) {
	resp := envelope(data)
	resp.Metadata.Replayed = replayed
	status := created
	if replayed {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	respondJSON(w, status, resp)
}

// writePage writes a paginated list, carrying paging in the metadata.
func writePage[T any](w http.ResponseWriter, page *models.Page[T]) {
	resp := envelope(page.Items)
	total := page.Total
	resp.Metadata.Total = &total
	resp.Metadata.Limit = page.Limit
	resp.Metadata.Offset = page.Offset
	respondJSON(w, http.StatusOK, resp)
}

// writeList writes an unpaginated list with its length as total.
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	resp := envelope(items)
	total := len(items)
	resp.Metadata.Total = &total
	respondJSON(w, http.StatusOK, resp)
}

// writeNoContent answers deletes.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	if details == nil && r != nil {
		if id := logging.RequestIDFromContext(r.Context()); id != "" && status >= 500 {
			details = map[string]interface{}{"request_id": id}
		}
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// badRequest writes a 400 with the generic code.
func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}

// invalid writes a 400 VALIDATION_ERROR for a single field.
func invalid(w http.ResponseWriter, r *http.Request, field, message string) {
	writeError(w, r, http.StatusBadRequest, ErrCodeValidation, message, map[string]interface{}{"field": field})
}

// forbidden writes a 403.
func forbidden(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusForbidden, ErrCodeForbidden, message, nil)
}

// notFound writes a 404.
func notFound(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusNotFound, ErrCodeNotFound, message, nil)
}
