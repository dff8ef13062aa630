// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/validation"
)

// maxJSONBody caps request bodies that are not uploads.
const maxJSONBody = 1 << 20

// IdempotencyKeyHeader is honoured by accept and invoice creation.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// bind decodes the JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large", nil)
		case errors.Is(err, io.EOF):
			badRequest(w, r, "request body is empty")
		default:
			badRequest(w, r, "invalid JSON: "+err.Error())
		}
		return false
	}
	return validate(w, r, dst)
}

// bindOptional is bind for endpoints whose body may be omitted entirely.
func bindOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.ContentLength == 0 {
		return validate(w, r, dst)
	}
	return bind(w, r, dst)
}

// validate runs struct validation and writes a VALIDATION_ERROR on failure.
func validate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	writeError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	return false
}

// pathID parses a positive int64 URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		invalid(w, r, name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive int64 query parameter. Absent means 0.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		invalid(w, r, name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// listOptions reads limit, offset and q. The store clamps the page size.
func listOptions(w http.ResponseWriter, r *http.Request) (models.ListOptions, bool) {
	q := r.URL.Query()
	opts := models.ListOptions{Search: strings.TrimSpace(q.Get("q"))}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			invalid(w, r, p.name, p.name+" must be a non-negative integer")
			return opts, false
		}
		*p.dst = n
	}
	if len(opts.Search) > 100 {
		invalid(w, r, "q", "q must be at most 100 characters")
		return opts, false
	}
	return opts, true
}

// idempotencyKey reads the optional Idempotency-Key header.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		invalid(w, r, IdempotencyKeyHeader, "Idempotency-Key must be at most 128 characters")
		return "", false
	}
	return key, true
}

// claimsFrom returns the authenticated caller. Routes behind Authenticate
// always have claims.
func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := auth.ClaimsFromContext(r.Context())
	return c
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Request bodies.

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,username"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Password    string `json:"password" validate:"required,max=256"`
	DisplayName string `json:"display_name" validate:"max=100"`
	InviteCode  string `json:"invite_code" validate:"max=64"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required,max=256"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
}

type postRequest struct {
	Content     string `json:"content" validate:"required,max=10000"`
	ImageFileID *int64 `json:"image_file_id" validate:"omitempty,gt=0"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,emoji"`
}

type messageRequest struct {
	RecipientID *int64 `json:"recipient_id" validate:"omitempty,gt=0"`
	Channel     string `json:"channel" validate:"omitempty,channel"`
	Content     string `json:"content" validate:"required,max=4000"`
}

type markReadRequest struct {
	SenderID int64 `json:"sender_id" validate:"required,gt=0"`
}

type folderRequest struct {
	Name     string `json:"name" validate:"required,max=255,excludesall=/\\"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type fileUpdateRequest struct {
	Name     string `json:"name" validate:"required,max=255,excludesall=/\\"`
	FolderID *int64 `json:"folder_id" validate:"omitempty,gt=0"`
}

type customerRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	OrgNumber  string `json:"org_number" validate:"max=40"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	Phone      string `json:"phone" validate:"max=40"`
	Address    string `json:"address" validate:"max=200"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	City       string `json:"city" validate:"max=100"`
	Country    string `json:"country" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=5000"`
}

func (c *customerRequest) model() *models.Customer {
	return &models.Customer{
		Name:       strings.TrimSpace(c.Name),
		OrgNumber:  strings.TrimSpace(c.OrgNumber),
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		City:       c.City,
		Country:    c.Country,
		Notes:      c.Notes,
	}
}

type contactRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Phone string `json:"phone" validate:"max=40"`
	Title string `json:"title" validate:"max=100"`
}

type quoteLineRequest struct {
	Description    string  `json:"description" validate:"required,max=1000"`
	Quantity       float64 `json:"quantity" validate:"gt=0,lte=1000000000"`
	Unit           string  `json:"unit" validate:"max=20"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"gte=0,lte=100000000000"`
	DiscountPct    float64 `json:"discount_pct" validate:"gte=0,lte=100"`
	VATPct         float64 `json:"vat_pct" validate:"gte=0,lte=100"`
}

type quoteRequest struct {
	CustomerID int64              `json:"customer_id" validate:"required,gt=0"`
	ContactID  *int64             `json:"contact_id" validate:"omitempty,gt=0"`
	Title      string             `json:"title" validate:"required,max=200"`
	Currency   string             `json:"currency" validate:"omitempty,currency"`
	Notes      string             `json:"notes" validate:"max=5000"`
	ValidUntil string             `json:"valid_until" validate:"omitempty,max=40"`
	Lines      []quoteLineRequest `json:"lines" validate:"max=500,dive"`
	// Version is required for updates and ignored on create.
	Version int64 `json:"version" validate:"gte=0"`
}

type quoteLinesRequest struct {
	Version int64              `json:"version" validate:"gte=0"`
	Lines   []quoteLineRequest `json:"lines" validate:"max=500,dive"`
}

func toQuoteLines(in []quoteLineRequest) []models.QuoteLine {
	out := make([]models.QuoteLine, len(in))
	for i, l := range in {
		out[i] = models.QuoteLine{
			Position:       i + 1,
			Description:    strings.TrimSpace(l.Description),
			Quantity:       l.Quantity,
			Unit:           l.Unit,
			UnitPriceCents: l.UnitPriceCents,
			DiscountPct:    l.DiscountPct,
			VATPct:         l.VATPct,
		}
	}
	return out
}

type invoiceRequest struct {
	IssueDate string `json:"issue_date" validate:"omitempty,max=40"`
	DueDays   int    `json:"due_days" validate:"gte=0,lte=365"`
}

type inviteRequest struct {
	// TTL is a Go duration such as "72h"; empty uses the configured default.
	TTL string `json:"ttl" validate:"omitempty,max=20"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}
