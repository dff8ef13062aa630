// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
)

const invoiceSelect = `SELECT i.id, i.invoice_number, i.quote_id, q.quote_number, COALESCE(q.order_number, ''),
	i.customer_id, c.name, i.status, i.issue_date, i.due_date, i.subtotal_cents, i.vat_cents, i.total_cents,
	i.currency, i.paid_at, i.cancelled_at, i.created_by, i.created_at
	FROM invoices i
	JOIN quotes q ON q.id = i.quote_id
	JOIN customers c ON c.id = i.customer_id`

func scanInvoice(r rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var status string
	var paidAt, cancelledAt sql.NullTime
	if err := r.Scan(&inv.ID, &inv.InvoiceNumber, &inv.QuoteID, &inv.QuoteNumber, &inv.OrderNumber,
		&inv.CustomerID, &inv.CustomerName, &status, &inv.IssueDate, &inv.DueDate, &inv.SubtotalCents,
		&inv.VATCents, &inv.TotalCents, &inv.Currency, &paidAt, &cancelledAt, &inv.CreatedBy,
		&inv.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	inv.Status = lifecycle.InvoiceStatus(status)
	inv.PaidAt = nullTime(paidAt)
	inv.CancelledAt = nullTime(cancelledAt)
	return &inv, nil
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	models.ListOptions
	Status     lifecycle.InvoiceStatus
	QuoteID    int64
	CustomerID int64
}

// GetInvoice returns an invoice with its copied lines.
func (db *DB) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	inv, err := scanInvoice(db.queryRow(ctx, db.conn, invoiceSelect+` WHERE i.id = ?`, id))
	if err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "invoice_lines",
		`SELECT id, invoice_id, position, description, quantity, unit, unit_price_cents, discount_pct, vat_pct,
		 line_total_cents FROM invoice_lines WHERE invoice_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	inv.Lines = []models.InvoiceLine{}
	for rows.Next() {
		var l models.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPriceCents, &l.DiscountPct, &l.VATPct, &l.LineTotalCents); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

// ListInvoices returns invoice headers newest first.
func (db *DB) ListInvoices(ctx context.Context, f InvoiceFilter) (*models.Page[models.Invoice], error) {
	limit, offset := clampPage(f.Limit, f.Offset, db.pageDefault(), db.pageMax())

	wb := query.NewWhereBuilder()
	wb.AddEquals("i.status", string(f.Status))
	wb.AddEquals("i.quote_id", f.QuoteID)
	wb.AddEquals("i.customer_id", f.CustomerID)
	wb.AddSearch(f.Search, "LOWER(i.invoice_number)", "LOWER(c.name)", "LOWER(COALESCE(q.order_number, ''))")
	where, args := wb.BuildWithPrefix()

	page := &models.Page[models.Invoice]{Items: []models.Invoice{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM invoices i
		JOIN quotes q ON q.id = i.quote_id
		JOIN customers c ON c.id = i.customer_id`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "invoices",
		invoiceSelect+where+` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *inv)
	}
	return page, rows.Err()
}
