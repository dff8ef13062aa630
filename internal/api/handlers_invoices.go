// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/spreadsheet"
)

// ListInvoices lists invoices. Filters: status, quote_id, customer_id.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	quoteID, ok := queryID(w, r, "quote_id")
	if !ok {
		return
	}
	customerID, ok := queryID(w, r, "customer_id")
	if !ok {
		return
	}
	f := database.InvoiceFilter{ListOptions: opts, QuoteID: quoteID, CustomerID: customerID}
	switch s := lifecycle.InvoiceStatus(r.URL.Query().Get("status")); s {
	case "":
	case lifecycle.InvoiceIssued, lifecycle.InvoicePaid, lifecycle.InvoiceCancelled:
		f.Status = s
	default:
		invalid(w, r, "status", "status must be issued, paid or cancelled")
		return
	}
	page, err := h.db.ListInvoices(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// GetInvoice returns an invoice with its lines.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.db.GetInvoice(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, inv)
}

// CreateInvoice invoices an accepted order. The body is optional. A repeated
// Idempotency-Key returns the invoice created by the first request.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req invoiceRequest
	if !bindOptional(w, r, &req) {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	var issue time.Time
	if req.IssueDate != "" {
		t, err := parseDate(req.IssueDate)
		if err != nil {
			invalid(w, r, "issue_date", "issue_date must be a date (YYYY-MM-DD)")
			return
		}
		issue = t
	}

	c := claimsFrom(r)
	inv, replayed, err := h.db.CreateInvoiceFromOrder(r.Context(), database.CreateInvoiceRequest{
		QuoteID:        id,
		IssueDate:      issue,
		DueDays:        req.DueDays,
		ActorID:        c.UserID,
		IdempotencyKey: key,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !replayed {
		h.invoiceChanged(r, c, events.TypeInvoiceCreated, audit.EventTypeInvoiceCreated, inv)
	}
	writeReplayable(w, http.StatusCreated, inv, replayed)
}

// MarkInvoicePaid records payment of an issued invoice.
func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.db.MarkInvoicePaid(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.invoiceChanged(r, claimsFrom(r), events.TypeInvoicePaid, audit.EventTypeInvoicePaid, inv)
	writeSuccess(w, inv)
}

// CancelInvoice cancels an issued invoice and reopens its order.
func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c := claimsFrom(r)
	inv, err := h.db.CancelInvoice(r.Context(), id, c.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.invoiceChanged(r, c, events.TypeInvoiceCancelled, audit.EventTypeInvoiceCanceled, inv)
	writeSuccess(w, inv)
}

// ExportInvoice renders an invoice as xlsx.
func (h *Handler) ExportInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.db.GetInvoice(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	customer, err := h.db.GetCustomer(r.Context(), inv.CustomerID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.ExportInvoice(&buf, inv, customer); err != nil {
		handleError(w, r, err)
		return
	}
	writeXLSX(w, inv.InvoiceNumber+".xlsx", buf.Bytes())
}

func (h *Handler) invoiceChanged(r *http.Request, c *auth.Claims, eventType string, auditType audit.EventType, inv *models.Invoice) {
	h.events.Emit(r.Context(), events.InvoiceChanged(eventType, c.UserID, inv))
	h.audit.Record(r.Context(), auditType, actor(c), audit.IDTarget("invoice", inv.ID),
		string(inv.Status), "Invoice "+inv.InvoiceNumber+" "+string(inv.Status),
		map[string]any{"quote_id": inv.QuoteID, "total_cents": inv.TotalCents, "currency": inv.Currency})
}
