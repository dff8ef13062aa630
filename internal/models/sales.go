// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/portico/internal/lifecycle"
)

// Customer is a customer company.
type Customer struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	OrgNumber  string    `json:"org_number"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	PostalCode string    `json:"postal_code"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Contacts   []Contact `json:"contacts,omitempty"`
}

// Contact is a person at a customer.
type Contact struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Quote is a quote and, once accepted, an order.
//
// OrderNumber is set exactly when Status is accepted or invoiced. Version is
// incremented by every write and guards concurrent transitions.
type Quote struct {
	ID           int64           `json:"id"`
	QuoteNumber  string          `json:"quote_number"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	ContactID    *int64          `json:"contact_id,omitempty"`
	Title        string          `json:"title"`
	Status       lifecycle.State `json:"status"`
	Currency     string          `json:"currency"`
	Notes        string          `json:"notes"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt   *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt   *time.Time      `json:"rejected_at,omitempty"`
	OrderNumber  *string         `json:"order_number,omitempty"`
	InvoicedAt   *time.Time      `json:"invoiced_at,omitempty"`
	Version      int64           `json:"version"`

	Lines          []QuoteLine        `json:"lines,omitempty"`
	Totals         Totals             `json:"totals"`
	AllowedActions []lifecycle.Action `json:"allowed_actions"`
}

// Decorate fills the derived fields of q from its lines and status.
func (q *Quote) Decorate() {
	for i := range q.Lines {
		q.Lines[i].LineTotalCents = q.Lines[i].NetCents()
	}
	q.Totals = ComputeTotals(q.Lines)
	q.AllowedActions = lifecycle.Permitted(q.Status)
}

// QuoteLine is one line item of a quote.
type QuoteLine struct {
	ID             int64   `json:"id"`
	QuoteID        int64   `json:"quote_id"`
	Position       int     `json:"position"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	DiscountPct    float64 `json:"discount_pct"`
	VATPct         float64 `json:"vat_pct"`
	LineTotalCents int64   `json:"line_total_cents"`
}

// NetCents is quantity times unit price less discount, rounded to the cent.
func (l QuoteLine) NetCents() int64 {
	return ComputeLine(l.Quantity, l.UnitPriceCents, l.DiscountPct)
}

// VATCents is the VAT on NetCents, rounded to the cent.
func (l QuoteLine) VATCents() int64 {
	return vatOf(l.NetCents(), l.VATPct)
}

// Totals are document sums in minor units.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	VATCents      int64 `json:"vat_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Line limits. A document of MaxQuoteLines lines, each at most MaxLineCents
// net with at most 100% VAT, stays well inside int64 and inside the range
// where float64 holds whole cents exactly.
const (
	MaxQuantity       = 1e9
	MaxUnitPriceCents = 100_000_000_000
	MaxLineCents      = 1_000_000_000_000_000
	MaxQuoteLines     = 500
)

// ErrAmountOutOfRange is returned for line items whose amounts cannot be
// computed to the cent.
var ErrAmountOutOfRange = errors.New("amount out of range")

// CheckLine validates the inputs of ComputeLine and vatOf.
func CheckLine(quantity float64, unitPriceCents int64, discountPct, vatPct float64) error {
	switch {
	case !(quantity >= 0 && quantity <= MaxQuantity):
		return fmt.Errorf("%w: quantity %g outside 0..%g", ErrAmountOutOfRange, quantity, float64(MaxQuantity))
	case unitPriceCents < 0 || unitPriceCents > MaxUnitPriceCents:
		return fmt.Errorf("%w: unit price %d outside 0..%d", ErrAmountOutOfRange, unitPriceCents, int64(MaxUnitPriceCents))
	case !(discountPct >= 0 && discountPct <= 100):
		return fmt.Errorf("%w: discount %g%%", ErrAmountOutOfRange, discountPct)
	case !(vatPct >= 0 && vatPct <= 100):
		return fmt.Errorf("%w: vat %g%%", ErrAmountOutOfRange, vatPct)
	}
	if gross := quantity * float64(unitPriceCents); gross > MaxLineCents {
		return fmt.Errorf("%w: line amount %.0f exceeds %d", ErrAmountOutOfRange, gross, int64(MaxLineCents))
	}
	return nil
}

// ValidateLines checks the line count and every line.
func ValidateLines(lines []QuoteLine) error {
	if len(lines) > MaxQuoteLines {
		return fmt.Errorf("%w: %d lines, at most %d", ErrAmountOutOfRange, len(lines), MaxQuoteLines)
	}
	for i, l := range lines {
		if err := CheckLine(l.Quantity, l.UnitPriceCents, l.DiscountPct, l.VATPct); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// ComputeLine returns the net amount of one line in cents. Inputs that
// fail CheckLine saturate instead of wrapping.
func ComputeLine(quantity float64, unitPriceCents int64, discountPct float64) int64 {
	gross := quantity * float64(unitPriceCents)
	return roundCents(gross * (1 - discountPct/100))
}

func vatOf(netCents int64, vatPct float64) int64 {
	return roundCents(float64(netCents) * vatPct / 100)
}

// roundCents rounds to the nearest cent, clamped to the int64 range.
func roundCents(f float64) int64 {
	r := math.Round(f)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt64:
		return math.MaxInt64
	case r <= math.MinInt64:
		return math.MinInt64
	}
	return int64(r)
}

// addCents adds with saturation.
func addCents(a, b int64) int64 {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}

// ComputeTotals sums lines. VAT is rounded per line.
func ComputeTotals(lines []QuoteLine) Totals {
	var t Totals
	for _, l := range lines {
		net := l.NetCents()
		t.SubtotalCents = addCents(t.SubtotalCents, net)
		t.VATCents = addCents(t.VATCents, vatOf(net, l.VATPct))
	}
	t.TotalCents = addCents(t.SubtotalCents, t.VATCents)
	return t
}

// Invoice is created from an accepted order. Its lines are copies, so later
// changes to the quote never alter an issued invoice.
type Invoice struct {
	ID            int64                   `json:"id"`
	InvoiceNumber string                  `json:"invoice_number"`
	QuoteID       int64                   `json:"quote_id"`
	QuoteNumber   string                  `json:"quote_number,omitempty"`
	OrderNumber   string                  `json:"order_number,omitempty"`
	CustomerID    int64                   `json:"customer_id"`
	CustomerName  string                  `json:"customer_name,omitempty"`
	Status        lifecycle.InvoiceStatus `json:"status"`
	IssueDate     time.Time               `json:"issue_date"`
	DueDate       time.Time               `json:"due_date"`
	SubtotalCents int64                   `json:"subtotal_cents"`
	VATCents      int64                   `json:"vat_cents"`
	TotalCents    int64                   `json:"total_cents"`
	Currency      string                  `json:"currency"`
	PaidAt        *time.Time              `json:"paid_at,omitempty"`
	CancelledAt   *time.Time              `json:"cancelled_at,omitempty"`
	CreatedBy     int64                   `json:"created_by"`
	CreatedAt     time.Time               `json:"created_at"`
	Lines         []InvoiceLine           `json:"lines,omitempty"`
}

// InvoiceLine is a frozen copy of a quote line.
type InvoiceLine struct {
	ID             int64   `json:"id"`
	InvoiceID      int64   `json:"invoice_id"`
	Position       int     `json:"position"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	DiscountPct    float64 `json:"discount_pct"`
	VATPct         float64 `json:"vat_pct"`
	LineTotalCents int64   `json:"line_total_cents"`
}

// InvoiceLinesFromQuote copies lines and their computed net amounts.
func InvoiceLinesFromQuote(lines []QuoteLine) []InvoiceLine {
	out := make([]InvoiceLine, len(lines))
	for i, l := range lines {
		out[i] = InvoiceLine{
			Position:       l.Position,
			Description:    l.Description,
			Quantity:       l.Quantity,
			Unit:           l.Unit,
			UnitPriceCents: l.UnitPriceCents,
			DiscountPct:    l.DiscountPct,
			VATPct:         l.VATPct,
			LineTotalCents: l.NetCents(),
		}
	}
	return out
}
