// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/spreadsheet"
	"github.com/tomtom215/portico/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListQuotes lists quotes. Filters: status (comma separated), customer_id,
// orders=true for accepted and invoiced quotes.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	customerID, ok := queryID(w, r, "customer_id")
	if !ok {
		return
	}
	f := database.QuoteFilter{ListOptions: opts, CustomerID: customerID}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := lifecycle.ParseState(strings.TrimSpace(s))
			if err != nil {
				invalid(w, r, "status", err.Error())
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	switch q.Get("orders") {
	case "", "false", "0":
	case "true", "1":
		f.OrdersOnly = true
	default:
		invalid(w, r, "orders", "orders must be true or false")
		return
	}

	page, err := h.db.ListQuotes(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// CreateQuote creates a draft quote with optional lines.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !bind(w, r, &req) {
		return
	}
	q, ok := quoteFromRequest(w, r, &req)
	if !ok {
		return
	}
	q.CreatedBy = claimsFrom(r).UserID
	created, err := h.db.CreateQuote(r.Context(), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeCreated(w, created)
}

// GetQuote returns a quote with lines, totals and allowed actions.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.db.GetQuote(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, q)
}

// UpdateQuote changes the header of an editable quote. A non-zero version
// must match the stored one.
func (h *Handler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req quoteRequest
	if !bind(w, r, &req) {
		return
	}
	q, ok := quoteFromRequest(w, r, &req)
	if !ok {
		return
	}
	q.ID = id
	updated, err := h.db.UpdateQuote(r.Context(), q, req.Version)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Lines) > 0 {
		updated, err = h.db.ReplaceQuoteLines(r.Context(), id, toQuoteLines(req.Lines), updated.Version)
		if err != nil {
			handleError(w, r, err)
			return
		}
	}
	writeSuccess(w, updated)
}

// ReplaceQuoteLines swaps the full line list of an editable quote.
func (h *Handler) ReplaceQuoteLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req quoteLinesRequest
	if !bind(w, r, &req) {
		return
	}
	q, err := h.db.ReplaceQuoteLines(r.Context(), id, toQuoteLines(req.Lines), req.Version)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, q)
}

// DeleteQuote removes a draft or rejected quote.
func (h *Handler) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteQuote(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// TransitionQuote applies send, accept, reject or revert. An
// Idempotency-Key makes retries return the first result.
func (h *Handler) TransitionQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	action, err := lifecycle.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		notFound(w, r, "unknown quote action")
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	c := claimsFrom(r)
	q, replayed, err := h.db.TransitionQuote(r.Context(), database.TransitionRequest{
		QuoteID:        id,
		Action:         action,
		ActorID:        c.UserID,
		IdempotencyKey: key,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !replayed {
		h.events.Emit(r.Context(), events.QuoteTransitioned(c.UserID, q, action))
		meta := map[string]any{"status": q.Status, "version": q.Version}
		if q.OrderNumber != nil {
			meta["order_number"] = *q.OrderNumber
		}
		h.audit.Record(r.Context(), audit.EventTypeQuoteTransition, actor(c),
			audit.IDTarget("quote", q.ID), string(action), "Quote "+q.QuoteNumber+" "+string(action), meta)
	}
	writeReplayable(w, http.StatusOK, q, replayed)
}

// ExportQuote renders the quote, or the order once accepted, as xlsx.
func (h *Handler) ExportQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.db.GetQuote(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	customer, err := h.db.GetCustomer(r.Context(), q.CustomerID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	name := q.QuoteNumber
	if q.OrderNumber != nil {
		name = *q.OrderNumber
	}
	var buf bytes.Buffer
	if err := spreadsheet.ExportQuote(&buf, q, customer); err != nil {
		handleError(w, r, err)
		return
	}
	writeXLSX(w, name+".xlsx", buf.Bytes())
}

func quoteFromRequest(w http.ResponseWriter, r *http.Request, req *quoteRequest) (*models.Quote, bool) {
	q := &models.Quote{
		CustomerID: req.CustomerID,
		ContactID:  req.ContactID,
		Title:      strings.TrimSpace(req.Title),
		Currency:   req.Currency,
		Notes:      req.Notes,
		Lines:      toQuoteLines(req.Lines),
	}
	if req.ValidUntil != "" {
		t, err := parseDate(req.ValidUntil)
		if err != nil {
			invalid(w, r, "valid_until", "valid_until must be a date (YYYY-MM-DD)")
			return nil, false
		}
		t = t.UTC().Truncate(24 * time.Hour)
		q.ValidUntil = &t
	}
	return q, true
}

func writeXLSX(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", storage.ContentDisposition(filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
