// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/models"
)

const quoteSelect = `SELECT q.id, q.quote_number, q.customer_id, c.name, q.contact_id, q.title, q.status, q.currency,
	q.notes, q.valid_until, q.created_by, q.created_at, q.updated_at, q.sent_at, q.accepted_at, q.rejected_at,
	q.order_number, q.invoiced_at, q.version
	FROM quotes q JOIN customers c ON c.id = q.customer_id`

func scanQuote(r rowScanner) (*models.Quote, error) {
	var q models.Quote
	var contact sql.NullInt64
	var status string
	var validUntil, sentAt, acceptedAt, rejectedAt, invoicedAt sql.NullTime
	var orderNumber sql.NullString
	if err := r.Scan(&q.ID, &q.QuoteNumber, &q.CustomerID, &q.CustomerName, &contact, &q.Title, &status,
		&q.Currency, &q.Notes, &validUntil, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt, &sentAt,
		&acceptedAt, &rejectedAt, &orderNumber, &invoicedAt, &q.Version); err != nil {
		return nil, notFound(err)
	}
	q.Status = lifecycle.State(status)
	q.ContactID = nullInt(contact)
	q.ValidUntil = nullTime(validUntil)
	q.SentAt = nullTime(sentAt)
	q.AcceptedAt = nullTime(acceptedAt)
	q.RejectedAt = nullTime(rejectedAt)
	q.OrderNumber = nullString(orderNumber)
	q.InvoicedAt = nullTime(invoicedAt)
	return &q, nil
}

// QuoteFilter narrows ListQuotes.
type QuoteFilter struct {
	models.ListOptions
	Statuses   []lifecycle.State
	CustomerID int64
	// OrdersOnly lists accepted and invoiced quotes.
	OrdersOnly bool
}

// CreateQuote inserts a draft quote with its lines and allocates its number.
func (db *DB) CreateQuote(ctx context.Context, q *models.Quote) (*models.Quote, error) {
	var id int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkCustomerContact(ctx, tx, q.CustomerID, q.ContactID); err != nil {
			return err
		}
		now := db.now()
		number, err := db.nextNumber(ctx, tx, SeriesQuote, now.Year())
		if err != nil {
			return err
		}
		if q.Currency == "" {
			q.Currency = "SEK"
		}
		id, err = db.insert(ctx, tx, "quotes",
			`INSERT INTO quotes (quote_number, customer_id, contact_id, title, status, currency, notes, valid_until,
			 created_by, created_at, updated_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			number, q.CustomerID, intArg(q.ContactID), q.Title, string(lifecycle.Draft), q.Currency, q.Notes,
			timeArg(q.ValidUntil), q.CreatedBy, now, now)
		if err != nil {
			return err
		}
		return db.insertQuoteLines(ctx, tx, id, q.Lines)
	})
	if err != nil {
		return nil, err
	}
	return db.GetQuote(ctx, id)
}

func (db *DB) checkCustomerContact(ctx context.Context, q querier, customerID int64, contactID *int64) error {
	var n int
	if err := db.queryRow(ctx, q, `SELECT COUNT(*) FROM customers WHERE id = ?`, customerID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
	}
	if contactID == nil {
		return nil
	}
	if err := db.queryRow(ctx, q,
		`SELECT COUNT(*) FROM customer_contacts WHERE id = ? AND customer_id = ?`, *contactID, customerID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: contact %d of customer %d", ErrNotFound, *contactID, customerID)
	}
	return nil
}

func (db *DB) insertQuoteLines(ctx context.Context, tx *sql.Tx, quoteID int64, lines []models.QuoteLine) error {
	if err := models.ValidateLines(lines); err != nil {
		return err
	}
	for i, l := range lines {
		pos := l.Position
		if pos <= 0 {
			pos = i + 1
		}
		if _, err := db.insert(ctx, tx, "quote_lines",
			`INSERT INTO quote_lines (quote_id, position, description, quantity, unit, unit_price_cents, discount_pct, vat_pct)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			quoteID, pos, l.Description, l.Quantity, l.Unit, l.UnitPriceCents, l.DiscountPct, l.VATPct); err != nil {
			return fmt.Errorf("failed to insert quote line %d: %w", pos, err)
		}
	}
	return nil
}

// GetQuote returns a quote with lines, totals and allowed actions.
func (db *DB) GetQuote(ctx context.Context, id int64) (*models.Quote, error) {
	return db.getQuote(ctx, db.conn, id)
}

func (db *DB) getQuote(ctx context.Context, qr querier, id int64) (*models.Quote, error) {
	q, err := scanQuote(db.queryRow(ctx, qr, quoteSelect+` WHERE q.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if q.Lines, err = db.quoteLines(ctx, qr, id); err != nil {
		return nil, err
	}
	q.Decorate()
	return q, nil
}

func (db *DB) quoteLines(ctx context.Context, qr querier, quoteID int64) ([]models.QuoteLine, error) {
	rows, err := db.query(ctx, qr, "quote_lines",
		`SELECT id, quote_id, position, description, quantity, unit, unit_price_cents, discount_pct, vat_pct
		 FROM quote_lines WHERE quote_id = ? ORDER BY position, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.QuoteLine{}
	for rows.Next() {
		var l models.QuoteLine
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.Position, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPriceCents, &l.DiscountPct, &l.VATPct); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListQuotes returns quote headers (without lines) newest first.
func (db *DB) ListQuotes(ctx context.Context, f QuoteFilter) (*models.Page[models.Quote], error) {
	limit, offset := clampPage(f.Limit, f.Offset, db.pageDefault(), db.pageMax())

	statuses := f.Statuses
	if f.OrdersOnly {
		statuses = []lifecycle.State{lifecycle.Accepted, lifecycle.Invoiced}
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	wb := query.NewWhereBuilder()
	query.AddIn(wb, "q.status", names...)
	wb.AddEquals("q.customer_id", f.CustomerID)
	wb.AddSearch(f.Search, "LOWER(q.quote_number)", "LOWER(q.title)", "LOWER(c.name)", "LOWER(COALESCE(q.order_number, ''))")
	where, args := wb.BuildWithPrefix()

	page := &models.Page[models.Quote]{Items: []models.Quote{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn,
		`SELECT COUNT(*) FROM quotes q JOIN customers c ON c.id = q.customer_id`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "quotes",
		quoteSelect+where+` ORDER BY q.created_at DESC, q.id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		q.AllowedActions = lifecycle.Permitted(q.Status)
		page.Items = append(page.Items, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.fillTotals(ctx, page.Items); err != nil {
		return nil, err
	}
	return page, nil
}

// fillTotals computes totals for listed quotes from their lines.
func (db *DB) fillTotals(ctx context.Context, quotes []models.Quote) error {
	for i := range quotes {
		lines, err := db.quoteLines(ctx, db.conn, quotes[i].ID)
		if err != nil {
			return err
		}
		quotes[i].Totals = models.ComputeTotals(lines)
	}
	return nil
}

// editableQuote loads status and version under tx and checks that the quote
// may be changed. expectedVersion 0 skips the optimistic check.
func (db *DB) editableQuote(ctx context.Context, tx *sql.Tx, id, expectedVersion int64) (int64, error) {
	var status string
	var version int64
	if err := db.queryRow(ctx, tx, `SELECT status, version FROM quotes WHERE id = ?`, id).Scan(&status, &version); err != nil {
		return 0, notFound(err)
	}
	if !lifecycle.Editable(lifecycle.State(status)) {
		return 0, fmt.Errorf("%w: status is %s", ErrNotEditable, status)
	}
	if expectedVersion > 0 && expectedVersion != version {
		return 0, fmt.Errorf("%w: version is %d, request had %d", ErrConflict, version, expectedVersion)
	}
	return version, nil
}

// UpdateQuote changes the header of a draft or sent quote.
func (db *DB) UpdateQuote(ctx context.Context, q *models.Quote, expectedVersion int64) (*models.Quote, error) {
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		version, err := db.editableQuote(ctx, tx, q.ID, expectedVersion)
		if err != nil {
			return err
		}
		if err := db.checkCustomerContact(ctx, tx, q.CustomerID, q.ContactID); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "quotes", ErrConflict,
			`UPDATE quotes SET customer_id = ?, contact_id = ?, title = ?, currency = ?, notes = ?, valid_until = ?,
			 updated_at = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			q.CustomerID, intArg(q.ContactID), q.Title, q.Currency, q.Notes, timeArg(q.ValidUntil),
			db.now(), q.ID, version)
	})
	if err != nil {
		return nil, err
	}
	return db.GetQuote(ctx, q.ID)
}

// ReplaceQuoteLines swaps all lines of a draft or sent quote.
func (db *DB) ReplaceQuoteLines(ctx context.Context, id int64, lines []models.QuoteLine, expectedVersion int64) (*models.Quote, error) {
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		version, err := db.editableQuote(ctx, tx, id, expectedVersion)
		if err != nil {
			return err
		}
		if err := db.execOne(ctx, tx, "quotes", ErrConflict,
			`UPDATE quotes SET updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`,
			db.now(), id, version); err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx, "quote_lines", `DELETE FROM quote_lines WHERE quote_id = ?`, id); err != nil {
			return err
		}
		return db.insertQuoteLines(ctx, tx, id, lines)
	})
	if err != nil {
		return nil, err
	}
	return db.GetQuote(ctx, id)
}

// DeleteQuote removes a draft or rejected quote with its lines. Quotes that
// were ever invoiced stay, even when the invoice was cancelled.
func (db *DB) DeleteQuote(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		if err := db.queryRow(ctx, tx, `SELECT status FROM quotes WHERE id = ?`, id).Scan(&status); err != nil {
			return notFound(err)
		}
		if st := lifecycle.State(status); st != lifecycle.Draft && st != lifecycle.Rejected {
			return fmt.Errorf("%w: only draft or rejected quotes can be deleted (status %s)", ErrNotEditable, status)
		}
		var invoices int64
		if err := db.queryRow(ctx, tx, `SELECT COUNT(*) FROM invoices WHERE quote_id = ?`, id).Scan(&invoices); err != nil {
			return err
		}
		if invoices > 0 {
			return fmt.Errorf("%w: quote has %d invoice(s) on record", ErrNotEditable, invoices)
		}
		if _, err := db.exec(ctx, tx, "idempotency_keys", `DELETE FROM idempotency_keys WHERE quote_id = ?`, id); err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx, "quote_lines", `DELETE FROM quote_lines WHERE quote_id = ?`, id); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "quotes", ErrNotFound, `DELETE FROM quotes WHERE id = ? AND status = ?`, id, status)
	})
}
