// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/lifecycle"
)

func TestComputeLine(t *testing.T) {
	tests := []struct {
		name     string
		qty      float64
		price    int64
		discount float64
		want     int64
	}{
		{"whole units", 3, 12500, 0, 37500},
		{"fractional hours", 1.5, 95000, 0, 142500},
		{"discount", 2, 1000, 10, 1800},
		{"rounds half up", 1, 333, 50, 167},
		{"zero quantity", 0, 1000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeLine(tt.qty, tt.price, tt.discount); got != tt.want {
				t.Errorf("ComputeLine() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	lines := []QuoteLine{
		{Quantity: 2, UnitPriceCents: 10000, VATPct: 25},
		{Quantity: 1, UnitPriceCents: 999, DiscountPct: 10, VATPct: 12},
	}
	got := ComputeTotals(lines)
	// 20000 + 899 (899.1) net; VAT 5000 + 108 (107.88)
	want := Totals{SubtotalCents: 20899, VATCents: 5108, TotalCents: 26007}
	if got != want {
		t.Errorf("ComputeTotals() = %+v, want %+v", got, want)
	}
}

func TestCheckLine(t *testing.T) {
	tests := []struct {
		name     string
		qty      float64
		price    int64
		discount float64
		vat      float64
		wantErr  bool
	}{
		{"ordinary", 7.25, 110000, 15, 25, false},
		{"zero quantity", 0, 1000, 0, 0, false},
		{"largest line", 10_000, MaxUnitPriceCents, 0, 100, false},
		{"negative quantity", -1, 1000, 0, 25, true},
		{"quantity above limit", 1e12, 1, 0, 25, true},
		{"nan quantity", math.NaN(), 1000, 0, 25, true},
		{"price above limit", 1, MaxUnitPriceCents + 1, 0, 25, true},
		{"negative price", 1, -5, 0, 25, true},
		{"line too large", MaxQuantity, MaxUnitPriceCents, 0, 25, true},
		{"discount above 100", 1, 1000, 101, 25, true},
		{"vat below zero", 1, 1000, 0, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLine(tt.qty, tt.price, tt.discount, tt.vat)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrAmountOutOfRange) {
				t.Errorf("expected ErrAmountOutOfRange, got %v", err)
			}
		})
	}
}

func TestValidateLines(t *testing.T) {
	ok := QuoteLine{Quantity: 1, UnitPriceCents: 100, VATPct: 25}
	if err := ValidateLines([]QuoteLine{ok, ok}); err != nil {
		t.Errorf("valid lines: %v", err)
	}

	huge := QuoteLine{Quantity: 1e12, UnitPriceCents: 1e10, VATPct: 25}
	err := ValidateLines([]QuoteLine{ok, huge})
	if !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if got := err.Error(); !strings.HasPrefix(got, "line 2:") {
		t.Errorf("error should name the line, got %q", got)
	}

	if err := ValidateLines(make([]QuoteLine, MaxQuoteLines+1)); !errors.Is(err, ErrAmountOutOfRange) {
		t.Errorf("too many lines: %v", err)
	}
}

// Unchecked amounts must never wrap into negative totals.
func TestComputeTotals_Saturates(t *testing.T) {
	huge := QuoteLine{Quantity: 1e12, UnitPriceCents: 1e10, VATPct: 25}
	if got := huge.NetCents(); got != math.MaxInt64 {
		t.Errorf("NetCents() = %d, want saturation at MaxInt64", got)
	}
	got := ComputeTotals([]QuoteLine{huge, huge})
	if got.SubtotalCents != math.MaxInt64 || got.VATCents < 0 || got.TotalCents != math.MaxInt64 {
		t.Errorf("ComputeTotals() = %+v", got)
	}

	largest := QuoteLine{Quantity: 10_000, UnitPriceCents: MaxUnitPriceCents, VATPct: 100}
	lines := make([]QuoteLine, MaxQuoteLines)
	for i := range lines {
		lines[i] = largest
	}
	if err := ValidateLines(lines); err != nil {
		t.Fatal(err)
	}
	got = ComputeTotals(lines)
	want := int64(MaxQuoteLines) * MaxLineCents
	if got.SubtotalCents != want || got.TotalCents != 2*want {
		t.Errorf("ComputeTotals() at the limits = %+v, want subtotal %d", got, want)
	}
}

func TestInvoiceLinesFromQuote_MatchesQuoteTotals(t *testing.T) {
	lines := []QuoteLine{
		{Position: 1, Description: "Consulting", Quantity: 7.25, Unit: "h", UnitPriceCents: 110000, VATPct: 25},
		{Position: 2, Description: "Licence", Quantity: 3, Unit: "pcs", UnitPriceCents: 4999, DiscountPct: 15, VATPct: 25},
	}
	inv := InvoiceLinesFromQuote(lines)
	if len(inv) != 2 {
		t.Fatalf("len = %d, want 2", len(inv))
	}
	var sum int64
	for i, l := range inv {
		if l.Description != lines[i].Description || l.Position != lines[i].Position {
			t.Errorf("line %d not copied: %+v", i, l)
		}
		sum += l.LineTotalCents
	}
	if want := ComputeTotals(lines).SubtotalCents; sum != want {
		t.Errorf("sum of invoice lines = %d, want %d", sum, want)
	}
}

func TestQuoteDecorate(t *testing.T) {
	q := &Quote{Status: lifecycle.Sent, Lines: []QuoteLine{{Quantity: 1, UnitPriceCents: 500}}}
	q.Decorate()
	if q.Lines[0].LineTotalCents != 500 || q.Totals.TotalCents != 500 {
		t.Errorf("Decorate() totals = %+v", q.Totals)
	}
	if len(q.AllowedActions) != 2 {
		t.Errorf("AllowedActions = %v, want accept and reject", q.AllowedActions)
	}
}

func TestInviteCodeUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	used := int64(4)
	tests := []struct {
		name string
		code InviteCode
		want bool
	}{
		{"fresh", InviteCode{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", InviteCode{ExpiresAt: now.Add(-time.Second)}, false},
		{"used", InviteCode{ExpiresAt: now.Add(time.Hour), UsedBy: &used}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole("admin") || !IsValidRole("user") || IsValidRole("viewer") {
		t.Error("IsValidRole() mismatch")
	}
}
