// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by all handlers; it caches struct
// metadata and reports fields by their JSON names so that error details
// match what the client sent.
//
// Besides the built-in tags, the following domain tags are registered:
//
//	username   3-32 characters of letters, digits, '.', '_' or '-'
//	currency   ISO 4217 style code, three upper-case letters
//	role       a known account role (admin, user)
//	channel    chat channel slug, lower-case letters, digits and '-'
//	emoji      a short reaction without whitespace
//
// Example usage:
//
//	type createQuoteRequest struct {
//	    CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
//	    Title      string `json:"title" validate:"required,max=200"`
//	    Currency   string `json:"currency" validate:"omitempty,currency"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
