// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
)

func (f *apiFixture) createCustomer(t *testing.T, token, name string) models.Customer {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/customers", token, map[string]string{"name": name, "org_number": "556677-" + name, "city": "Lund"})
	expectStatus(t, rec, http.StatusCreated)
	var c models.Customer
	decode(t, rec, &c)
	return c
}

func (f *apiFixture) createQuote(t *testing.T, token string, customerID int64) models.Quote {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/quotes", token, map[string]interface{}{
		"customer_id": customerID,
		"title":       "Office network",
		"valid_until": "2026-12-31",
		"lines": []map[string]interface{}{
			{"description": "Consulting", "quantity": 2, "unit": "h", "unit_price_cents": 10000, "discount_pct": 10, "vat_pct": 25},
			{"description": "Travel", "quantity": 1, "unit_price_cents": 5000, "vat_pct": 25},
		},
	})
	expectStatus(t, rec, http.StatusCreated)
	var q models.Quote
	decode(t, rec, &q)
	return q
}

func TestQuoteLifecycle(t *testing.T) {
	f := setupAPI(t)
	token, _ := f.userToken(t, "anna")
	customer := f.createCustomer(t, token, "Acme")
	q := f.createQuote(t, token, customer.ID)

	if q.Status != lifecycle.Draft || q.Currency != "SEK" || !strings.HasPrefix(q.QuoteNumber, "Q-") {
		t.Fatalf("created quote = %+v", q)
	}
	if q.Totals.SubtotalCents != 23000 || q.Totals.VATCents != 5750 || q.Totals.TotalCents != 28750 {
		t.Errorf("totals = %+v", q.Totals)
	}
	base := "/api/quotes/" + itoa(q.ID)

	// Accept straight from draft is illegal.
	rec := f.do(t, http.MethodPost, base+"/accept", token, nil)
	expectStatus(t, rec, http.StatusConflict)

	expectStatus(t, f.do(t, http.MethodPost, base+"/send", token, nil), http.StatusOK)

	rec = f.do(t, http.MethodPost, base+"/accept", token, nil, IdempotencyKeyHeader, "accept-1")
	expectStatus(t, rec, http.StatusOK)
	var accepted models.Quote
	env := decode(t, rec, &accepted)
	if env.Metadata.Replayed || rec.Header().Get("Idempotent-Replayed") != "" {
		t.Error("first accept must not be a replay")
	}
	if accepted.Status != lifecycle.Accepted || accepted.OrderNumber == nil || !strings.HasPrefix(*accepted.OrderNumber, "O-") {
		t.Fatalf("accepted = %+v", accepted)
	}

	t.Run("replay returns the accepted quote", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/accept", token, nil, IdempotencyKeyHeader, "accept-1")
		expectStatus(t, rec, http.StatusOK)
		var again models.Quote
		env := decode(t, rec, &again)
		if !env.Metadata.Replayed || rec.Header().Get("Idempotent-Replayed") != "true" {
			t.Error("expected replay markers")
		}
		if again.Version != accepted.Version || *again.OrderNumber != *accepted.OrderNumber {
			t.Errorf("replay changed the quote: %+v", again)
		}
	})

	t.Run("key reused for another action", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, base+"/reject", token, nil, IdempotencyKeyHeader, "accept-1")
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		if env := decode(t, rec, nil); env.Error.Code != ErrCodeIdempotencyKeyReused {
			t.Errorf("code = %s", env.Error.Code)
		}
	})

	t.Run("accepted quotes are not editable", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, base+"/lines", token, map[string]interface{}{
			"lines": []map[string]interface{}{{"description": "Extra", "quantity": 1, "unit_price_cents": 100}},
		})
		expectStatus(t, rec, http.StatusConflict)
	})

	t.Run("orders filter", func(t *testing.T) {
		f.createQuote(t, token, customer.ID)
		rec := f.do(t, http.MethodGet, "/api/quotes?orders=true", token, nil)
		expectStatus(t, rec, http.StatusOK)
		var page models.Page[models.Quote]
		decode(t, rec, &page)
		if page.Total != 1 || page.Items[0].ID != q.ID {
			t.Errorf("orders = %+v", page)
		}
		rec = f.do(t, http.MethodGet, "/api/quotes?status=draft,sent", token, nil)
		decode(t, rec, &page)
		if page.Total != 1 {
			t.Errorf("draft/sent total = %d", page.Total)
		}
		expectStatus(t, f.do(t, http.MethodGet, "/api/quotes?status=bogus", token, nil), http.StatusBadRequest)
	})

	t.Run("export", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, base+"/export", token, nil)
		expectStatus(t, rec, http.StatusOK)
		if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
			t.Errorf("content type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, *accepted.OrderNumber) {
			t.Errorf("content disposition = %q", cd)
		}
		if rec.Body.Len() == 0 || !strings.HasPrefix(rec.Body.String(), "PK") {
			t.Error("export is not a zip container")
		}
	})
}

func TestInvoiceFromOrder(t *testing.T) {
	f := setupAPI(t)
	token, _ := f.userToken(t, "anna")
	customer := f.createCustomer(t, token, "Globex")
	q := f.createQuote(t, token, customer.ID)
	base := "/api/quotes/" + itoa(q.ID)
	expectStatus(t, f.do(t, http.MethodPost, base+"/send", token, nil), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodPost, base+"/accept", token, nil), http.StatusOK)

	rec := f.do(t, http.MethodPost, base+"/invoice", token, map[string]interface{}{"issue_date": "2026-03-01", "due_days": 10},
		IdempotencyKeyHeader, "inv-1")
	expectStatus(t, rec, http.StatusCreated)
	var inv models.Invoice
	decode(t, rec, &inv)
	if inv.Status != lifecycle.InvoiceIssued || inv.TotalCents != 28750 || len(inv.Lines) != 2 {
		t.Fatalf("invoice = %+v", inv)
	}
	if got := inv.DueDate.Format("2006-01-02"); got != "2026-03-11" {
		t.Errorf("due date = %s", got)
	}

	rec = f.do(t, http.MethodPost, base+"/invoice", token, nil, IdempotencyKeyHeader, "inv-1")
	expectStatus(t, rec, http.StatusOK)
	var replay models.Invoice
	if env := decode(t, rec, &replay); !env.Metadata.Replayed || replay.ID != inv.ID {
		t.Errorf("replay = %+v", replay)
	}

	// A second invoice without a key conflicts: the order is already invoiced.
	expectStatus(t, f.do(t, http.MethodPost, base+"/invoice", token, nil), http.StatusConflict)

	rec = f.do(t, http.MethodGet, base, token, nil)
	var invoiced models.Quote
	decode(t, rec, &invoiced)
	if invoiced.Status != lifecycle.Invoiced {
		t.Errorf("quote status = %s", invoiced.Status)
	}

	rec = f.do(t, http.MethodPost, "/api/invoices/"+itoa(inv.ID)+"/cancel", token, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = f.do(t, http.MethodGet, base, token, nil)
	decode(t, rec, &invoiced)
	if invoiced.Status != lifecycle.Accepted {
		t.Errorf("after cancel quote status = %s", invoiced.Status)
	}
	expectStatus(t, f.do(t, http.MethodPost, "/api/invoices/"+itoa(inv.ID)+"/paid", token, nil), http.StatusConflict)

	rec = f.do(t, http.MethodGet, "/api/invoices?status=cancelled", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var page models.Page[models.Invoice]
	decode(t, rec, &page)
	if page.Total != 1 {
		t.Errorf("cancelled invoices = %d", page.Total)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/invoices/"+itoa(inv.ID)+"/export", token, nil), http.StatusOK)
}

func TestQuoteLineAmountLimits(t *testing.T) {
	f := setupAPI(t)
	token, _ := f.userToken(t, "anna")
	customer := f.createCustomer(t, token, "Initech")

	tests := []struct {
		name  string
		qty   float64
		price int64
		want  int
	}{
		{"quantity above limit", 1e12, 10_000_000_000, http.StatusBadRequest},
		{"unit price above limit", 1, 100_000_000_001, http.StatusBadRequest},
		{"line amount above limit", 1_000_000_000, 100_000_000_000, http.StatusBadRequest},
		{"largest accepted line", 10_000, 100_000_000_000, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/quotes", token, map[string]interface{}{
				"customer_id": customer.ID,
				"title":       "Limits",
				"lines": []map[string]interface{}{
					{"description": "Bulk", "quantity": tt.qty, "unit_price_cents": tt.price, "vat_pct": 25},
				},
			})
			expectStatus(t, rec, tt.want)
			if tt.want != http.StatusCreated {
				if env := decode(t, rec, nil); env.Error == nil || env.Error.Code != ErrCodeValidation {
					t.Errorf("error = %+v", env.Error)
				}
				return
			}
			var q models.Quote
			decode(t, rec, &q)
			if q.Totals.SubtotalCents != models.MaxLineCents || q.Totals.TotalCents <= q.Totals.SubtotalCents {
				t.Errorf("totals = %+v", q.Totals)
			}
		})
	}
}

func TestCustomerValidationAndDelete(t *testing.T) {
	f := setupAPI(t)
	token, _ := f.userToken(t, "anna")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing name", map[string]string{"city": "Lund"}, http.StatusBadRequest},
		{"bad email", map[string]string{"name": "X", "email": "not-an-email"}, http.StatusBadRequest},
		{"ok", map[string]string{"name": "Initech"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, f.do(t, http.MethodPost, "/api/customers", token, tt.body), tt.want)
		})
	}

	c := f.createCustomer(t, token, "Umbrella")
	rec := f.do(t, http.MethodPost, "/api/customers/"+itoa(c.ID)+"/contacts", token, map[string]string{"name": "Karin", "email": "karin@example.com"})
	expectStatus(t, rec, http.StatusCreated)

	f.createQuote(t, token, c.ID)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/customers/"+itoa(c.ID), token, nil), http.StatusConflict)
	expectStatus(t, f.do(t, http.MethodGet, "/api/customers/999999", token, nil), http.StatusNotFound)
}
