// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import (
	"time"
)

// APIResponse is the envelope returned by every JSON endpoint.
//
// Status is "success" (see Data) or "error" (see Error).
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"id": 12, "quote_number": "Q-2026-0012", "status": "accepted"},
//	  "metadata": {"timestamp": "2026-03-02T09:15:00Z"}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "metadata": {"timestamp": "2026-03-02T09:15:00Z"},
//	  "error": {
//	    "code": "CONFLICT",
//	    "message": "quote was modified concurrently",
//	    "details": {"quote_id": 12}
//	  }
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
//
// Replayed is set when an idempotent request returned a stored result.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Total     *int      `json:"total,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
	Replayed  bool      `json:"replayed,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
//
// Codes in use:
//   - VALIDATION_ERROR: malformed or invalid input (400)
//   - AUTHENTICATION_ERROR: missing or invalid credentials (401)
//   - FORBIDDEN: authenticated but not allowed (403)
//   - NOT_FOUND: resource does not exist (404)
//   - CONFLICT: lifecycle or concurrent modification conflict (409)
//   - IDEMPOTENCY_KEY_REUSED: key already bound to another request (422)
//   - RATE_LIMIT_EXCEEDED / ACCOUNT_LOCKED: throttled (429)
//   - INTERNAL_ERROR: anything else (500)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Page is one page of a listing together with the total match count.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListOptions is the common pagination and search input of list queries.
type ListOptions struct {
	Limit  int
	Offset int
	Search string
}
