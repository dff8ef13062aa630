// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/portico/internal/models"
)

const (
	moneyFormat = "#,##0.00"
	dateLayout  = "2006-01-02"
)

var lineHeader = []string{"Pos", "Description", "Quantity", "Unit", "Unit price", "Discount %", "VAT %", "Line total"}

// row is one rendered document line, shared by quotes and invoices.
type row struct {
	Position       int
	Description    string
	Quantity       float64
	Unit           string
	UnitPriceCents int64
	DiscountPct    float64
	VATPct         float64
	LineTotalCents int64
}

type field struct {
	label string
	value string
}

type document struct {
	sheet  string
	title  string
	fields []field
	lines  []row
	totals models.Totals
}

// ExportQuote writes the quote (or order) as an .xlsx workbook.
func ExportQuote(w io.Writer, q *models.Quote, customer *models.Customer) error {
	title := "Quote " + q.QuoteNumber
	if q.OrderNumber != nil {
		title = "Order " + *q.OrderNumber
	}
	doc := document{
		sheet:  "Quote",
		title:  title,
		fields: customerFields(customer, q.CustomerName),
		totals: q.Totals,
	}
	doc.fields = append(doc.fields,
		field{"Quote number", q.QuoteNumber},
		field{"Title", q.Title},
		field{"Status", string(q.Status)},
		field{"Date", q.CreatedAt.UTC().Format(dateLayout)},
	)
	if q.OrderNumber != nil {
		doc.fields = append(doc.fields, field{"Order number", *q.OrderNumber})
	}
	if q.ValidUntil != nil {
		doc.fields = append(doc.fields, field{"Valid until", q.ValidUntil.UTC().Format(dateLayout)})
	}
	doc.fields = append(doc.fields, field{"Currency", q.Currency})
	for _, l := range q.Lines {
		doc.lines = append(doc.lines, row{l.Position, l.Description, l.Quantity, l.Unit, l.UnitPriceCents, l.DiscountPct, l.VATPct, l.LineTotalCents})
	}
	return doc.write(w)
}

// ExportInvoice writes the invoice as an .xlsx workbook.
func ExportInvoice(w io.Writer, inv *models.Invoice, customer *models.Customer) error {
	doc := document{
		sheet:  "Invoice",
		title:  "Invoice " + inv.InvoiceNumber,
		fields: customerFields(customer, inv.CustomerName),
		totals: models.Totals{SubtotalCents: inv.SubtotalCents, VATCents: inv.VATCents, TotalCents: inv.TotalCents},
	}
	doc.fields = append(doc.fields,
		field{"Invoice number", inv.InvoiceNumber},
		field{"Order number", inv.OrderNumber},
		field{"Issue date", inv.IssueDate.UTC().Format(dateLayout)},
		field{"Due date", inv.DueDate.UTC().Format(dateLayout)},
		field{"Status", string(inv.Status)},
		field{"Currency", inv.Currency},
	)
	for _, l := range inv.Lines {
		doc.lines = append(doc.lines, row{l.Position, l.Description, l.Quantity, l.Unit, l.UnitPriceCents, l.DiscountPct, l.VATPct, l.LineTotalCents})
	}
	return doc.write(w)
}

func customerFields(c *models.Customer, fallbackName string) []field {
	if c == nil {
		return []field{{"Customer", fallbackName}}
	}
	fields := []field{{"Customer", c.Name}}
	if c.OrgNumber != "" {
		fields = append(fields, field{"Org number", c.OrgNumber})
	}
	addr := strings.TrimSpace(strings.Join(nonEmpty(c.Address, strings.TrimSpace(c.PostalCode+" "+c.City), c.Country), ", "))
	if addr != "" {
		fields = append(fields, field{"Address", addr})
	}
	return fields
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d *document) write(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", d.sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	s := &sheetWriter{f: f, sheet: d.sheet}
	s.set(1, 1, d.title, styles.title)
	r := 3
	for _, fl := range d.fields {
		s.set(1, r, fl.label, styles.label)
		s.set(2, r, fl.value, 0)
		r++
	}

	r++
	for i, h := range lineHeader {
		s.set(i+1, r, h, styles.header)
	}
	for _, l := range d.lines {
		r++
		s.set(1, r, l.Position, 0)
		s.set(2, r, l.Description, 0)
		s.set(3, r, l.Quantity, 0)
		s.set(4, r, l.Unit, 0)
		s.set(5, r, cents(l.UnitPriceCents), styles.money)
		s.set(6, r, l.DiscountPct, 0)
		s.set(7, r, l.VATPct, 0)
		s.set(8, r, cents(l.LineTotalCents), styles.money)
	}

	r += 2
	for _, t := range []struct {
		label string
		value int64
		style int
	}{
		{"Subtotal", d.totals.SubtotalCents, styles.money},
		{"VAT", d.totals.VATCents, styles.money},
		{"Total", d.totals.TotalCents, styles.total},
	} {
		s.set(7, r, t.label, styles.label)
		s.set(8, r, cents(t.value), t.style)
		r++
	}
	if s.err != nil {
		return s.err
	}

	for col, width := range map[string]float64{"A": 16, "B": 42, "C": 10, "D": 8, "E": 14, "F": 11, "G": 10, "H": 16} {
		if err := f.SetColWidth(d.sheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	title, label, header, money, total int
}

func newStyles(f *excelize.File) (styleSet, error) {
	numFmt := moneyFormat
	var set styleSet
	for _, d := range []struct {
		dst   *int
		style *excelize.Style
	}{
		{&set.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}},
		{&set.label, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&set.header, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDE4EE"}},
			Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
		}},
		{&set.money, &excelize.Style{CustomNumFmt: &numFmt}},
		{&set.total, &excelize.Style{CustomNumFmt: &numFmt, Font: &excelize.Font{Bold: true}}},
	} {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return set, fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return set, nil
}

// sheetWriter keeps the first error so cell writes can be chained.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (s *sheetWriter) set(col, rowNum int, v interface{}, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, rowNum)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetCellValue(s.sheet, cell, v); err != nil {
		s.err = fmt.Errorf("set %s: %w", cell, err)
		return
	}
	if style != 0 {
		if err := s.f.SetCellStyle(s.sheet, cell, cell, style); err != nil {
			s.err = fmt.Errorf("style %s: %w", cell, err)
		}
	}
}

func cents(v int64) float64 {
	return float64(v) / 100
}
