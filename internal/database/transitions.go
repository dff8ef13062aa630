// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/portico/internal/lifecycle"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
	"github.com/tomtom215/portico/internal/models"
)

// TransitionRequest asks for one client action on a quote.
type TransitionRequest struct {
	QuoteID int64
	Action  lifecycle.Action
	ActorID int64

	// IdempotencyKey is optional. A repeated key for the same action and
	// quote returns the stored result without writing.
	IdempotencyKey string
}

// CreateInvoiceRequest asks for an invoice for an accepted order.
type CreateInvoiceRequest struct {
	QuoteID int64
	// IssueDate defaults to today (UTC).
	IssueDate time.Time
	// DueDays defaults to 30.
	DueDays        int
	ActorID        int64
	IdempotencyKey string
}

// DefaultDueDays is the payment term when a request does not set one.
const DefaultDueDays = 30

const actionInvoice = "invoice"

type idempotencyRecord struct {
	action   string
	quoteID  int64
	resultID int64
}

func (db *DB) lookupIdempotencyKey(ctx context.Context, q querier, key string) (*idempotencyRecord, error) {
	var rec idempotencyRecord
	err := db.queryRow(ctx, q, `SELECT action, quote_id, result_id FROM idempotency_keys WHERE key = ?`, key).
		Scan(&rec.action, &rec.quoteID, &rec.resultID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return &rec, nil
}

// match returns ErrIdempotencyKeyReuse when the stored key belongs to a
// different request.
func (r *idempotencyRecord) match(action string, quoteID int64) error {
	if r.action != action || r.quoteID != quoteID {
		return fmt.Errorf("%w: key was used for %s on quote %d", ErrIdempotencyKeyReuse, r.action, r.quoteID)
	}
	return nil
}

func (db *DB) storeIdempotencyKey(ctx context.Context, tx *sql.Tx, key, action string, quoteID, resultID int64) error {
	_, err := db.exec(ctx, tx, "idempotency_keys",
		`INSERT INTO idempotency_keys (key, action, quote_id, result_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, action, quoteID, resultID, db.now())
	return duplicate(err)
}

// keyLookupMissed is called when no stored key was found.
func (db *DB) keyLookupMissed() {
	if db.afterKeyLookup != nil {
		db.afterKeyLookup()
	}
}

// lostRace reports whether err can come from a concurrent request with the
// same key committing first. Under read committed the loser may see the
// winner's new status, which makes its own action invalid.
func lostRace(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition)
}

// recheckIdempotencyKey runs after a transaction lost a race. If the winner
// stored the same key the caller replays its result.
func (db *DB) recheckIdempotencyKey(ctx context.Context, key, action string, quoteID int64, cause error) (int64, error) {
	if key == "" || !lostRace(cause) {
		return 0, cause
	}
	rec, err := db.lookupIdempotencyKey(ctx, db.conn, key)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, cause
	}
	if err := rec.match(action, quoteID); err != nil {
		return 0, err
	}
	logging.Debug().Str("action", action).Int64("quote_id", quoteID).Msg("Replaying idempotent request after lost race")
	return rec.resultID, nil
}

// TransitionQuote applies a client action to a quote. The current state is
// read, the next state computed by lifecycle.Next and written with a
// conditional update on status and version, all in one transaction.
func (db *DB) TransitionQuote(ctx context.Context, req TransitionRequest) (*models.Quote, bool, error) {
	action := string(req.Action)
	if _, err := lifecycle.ParseAction(action); err != nil {
		return nil, false, err
	}

	replayed := false
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if req.IdempotencyKey != "" {
			rec, err := db.lookupIdempotencyKey(ctx, tx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := rec.match(action, req.QuoteID); err != nil {
					return err
				}
				replayed = true
				return nil
			}
			db.keyLookupMissed()
		}

		var status string
		var version int64
		if err := db.queryRow(ctx, tx, `SELECT status, version FROM quotes WHERE id = ?`, req.QuoteID).
			Scan(&status, &version); err != nil {
			return notFound(err)
		}
		from := lifecycle.State(status)
		to, err := lifecycle.Next(from, req.Action)
		if err != nil {
			return err
		}

		if err := db.applyTransition(ctx, tx, req.QuoteID, from, to, req.Action, version); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			return db.storeIdempotencyKey(ctx, tx, req.IdempotencyKey, action, req.QuoteID, req.QuoteID)
		}
		return nil
	})
	if err != nil {
		if _, rerr := db.recheckIdempotencyKey(ctx, req.IdempotencyKey, action, req.QuoteID, err); rerr != nil {
			metrics.RecordTransition(action, transitionResult(rerr))
			return nil, false, rerr
		}
		replayed = true
	}

	if replayed {
		metrics.RecordTransition(action, "replayed")
	} else {
		metrics.RecordTransition(action, "applied")
	}
	q, err := db.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, false, err
	}
	return q, replayed, nil
}

func (db *DB) applyTransition(ctx context.Context, tx *sql.Tx, id int64, from, to lifecycle.State, action lifecycle.Action, version int64) error {
	now := db.now()
	var query string
	var args []any
	switch action {
	case lifecycle.Send:
		query = `UPDATE quotes SET status = ?, sent_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), now, now}
	case lifecycle.Accept:
		orderNumber, err := db.nextNumber(ctx, tx, SeriesOrder, now.Year())
		if err != nil {
			return err
		}
		query = `UPDATE quotes SET status = ?, order_number = ?, accepted_at = ?, rejected_at = NULL,
			updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), orderNumber, now, now}
	case lifecycle.Reject:
		query = `UPDATE quotes SET status = ?, rejected_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), now, now}
	case lifecycle.Revert:
		query = `UPDATE quotes SET status = ?, accepted_at = NULL, rejected_at = NULL, order_number = NULL,
			updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), now}
	case lifecycle.Invoice:
		query = `UPDATE quotes SET status = ?, invoiced_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), now, now}
	case lifecycle.Uninvoice:
		query = `UPDATE quotes SET status = ?, invoiced_at = NULL, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
		args = []any{string(to), now}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, action)
	}
	args = append(args, id, string(from), version)
	if err := db.execOne(ctx, tx, "quotes", ErrConflict, query, args...); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("%w: quote %d changed while applying %s", ErrConflict, id, action)
		}
		return err
	}
	return nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, ErrIdempotencyKeyReuse):
		return "key_reuse"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// CreateInvoiceFromOrder invoices an accepted order. Lines are copied from
// the quote, totals computed, the invoice numbered and the order moved to
// invoiced in one transaction.
func (db *DB) CreateInvoiceFromOrder(ctx context.Context, req CreateInvoiceRequest) (*models.Invoice, bool, error) {
	var invoiceID int64
	replayed := false

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if req.IdempotencyKey != "" {
			rec, err := db.lookupIdempotencyKey(ctx, tx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := rec.match(actionInvoice, req.QuoteID); err != nil {
					return err
				}
				invoiceID, replayed = rec.resultID, true
				return nil
			}
			db.keyLookupMissed()
		}

		q, err := db.getQuote(ctx, tx, req.QuoteID)
		if err != nil {
			return err
		}
		to, err := lifecycle.Next(q.Status, lifecycle.Invoice)
		if err != nil {
			return err
		}

		var open int
		if err := db.queryRow(ctx, tx,
			`SELECT COUNT(*) FROM invoices WHERE quote_id = ? AND status <> ?`,
			req.QuoteID, string(lifecycle.InvoiceCancelled)).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: order %d already has an invoice", ErrConflict, req.QuoteID)
		}

		now := db.now()
		issue := req.IssueDate
		if issue.IsZero() {
			issue = now
		}
		issue = time.Date(issue.Year(), issue.Month(), issue.Day(), 0, 0, 0, 0, time.UTC)
		dueDays := req.DueDays
		if dueDays <= 0 {
			dueDays = DefaultDueDays
		}

		number, err := db.nextNumber(ctx, tx, SeriesInvoice, issue.Year())
		if err != nil {
			return err
		}
		totals := models.ComputeTotals(q.Lines)
		invoiceID, err = db.insert(ctx, tx, "invoices",
			`INSERT INTO invoices (invoice_number, quote_id, customer_id, status, issue_date, due_date,
			 subtotal_cents, vat_cents, total_cents, currency, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			number, q.ID, q.CustomerID, string(lifecycle.InvoiceIssued), issue, issue.AddDate(0, 0, dueDays),
			totals.SubtotalCents, totals.VATCents, totals.TotalCents, q.Currency, req.ActorID, now)
		if err != nil {
			return err
		}
		for _, l := range models.InvoiceLinesFromQuote(q.Lines) {
			if _, err := db.insert(ctx, tx, "invoice_lines",
				`INSERT INTO invoice_lines (invoice_id, position, description, quantity, unit, unit_price_cents,
				 discount_pct, vat_pct, line_total_cents)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				invoiceID, l.Position, l.Description, l.Quantity, l.Unit, l.UnitPriceCents,
				l.DiscountPct, l.VATPct, l.LineTotalCents); err != nil {
				return err
			}
		}

		if err := db.applyTransition(ctx, tx, q.ID, q.Status, to, lifecycle.Invoice, q.Version); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			return db.storeIdempotencyKey(ctx, tx, req.IdempotencyKey, actionInvoice, req.QuoteID, invoiceID)
		}
		return nil
	})
	if err != nil {
		id, rerr := db.recheckIdempotencyKey(ctx, req.IdempotencyKey, actionInvoice, req.QuoteID, err)
		if rerr != nil {
			metrics.RecordTransition(actionInvoice, transitionResult(rerr))
			return nil, false, rerr
		}
		invoiceID, replayed = id, true
	}

	if replayed {
		metrics.RecordTransition(actionInvoice, "replayed")
	} else {
		metrics.RecordTransition(actionInvoice, "applied")
	}
	inv, err := db.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, false, err
	}
	return inv, replayed, nil
}

// CancelInvoice cancels an issued invoice and returns its order to accepted
// in the same transaction, so the order can be invoiced again.
func (db *DB) CancelInvoice(ctx context.Context, invoiceID, actorID int64) (*models.Invoice, error) {
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		var quoteID int64
		if err := db.queryRow(ctx, tx, `SELECT status, quote_id FROM invoices WHERE id = ?`, invoiceID).
			Scan(&status, &quoteID); err != nil {
			return notFound(err)
		}
		if err := lifecycle.NextInvoice(lifecycle.InvoiceStatus(status), lifecycle.InvoiceCancelled); err != nil {
			return err
		}
		now := db.now()
		if err := db.execOne(ctx, tx, "invoices", ErrConflict,
			`UPDATE invoices SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
			string(lifecycle.InvoiceCancelled), now, invoiceID, status); err != nil {
			return err
		}

		var qStatus string
		var version int64
		if err := db.queryRow(ctx, tx, `SELECT status, version FROM quotes WHERE id = ?`, quoteID).
			Scan(&qStatus, &version); err != nil {
			return notFound(err)
		}
		to, err := lifecycle.Next(lifecycle.State(qStatus), lifecycle.Uninvoice)
		if err != nil {
			return err
		}
		return db.applyTransition(ctx, tx, quoteID, lifecycle.State(qStatus), to, lifecycle.Uninvoice, version)
	})
	if err != nil {
		metrics.RecordTransition("cancel_invoice", transitionResult(err))
		return nil, err
	}
	metrics.RecordTransition("cancel_invoice", "applied")
	logging.Info().Int64("invoice_id", invoiceID).Int64("actor_id", actorID).Msg("Invoice cancelled")
	return db.GetInvoice(ctx, invoiceID)
}

// MarkInvoicePaid moves an issued invoice to paid.
func (db *DB) MarkInvoicePaid(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		if err := db.queryRow(ctx, tx, `SELECT status FROM invoices WHERE id = ?`, invoiceID).Scan(&status); err != nil {
			return notFound(err)
		}
		if err := lifecycle.NextInvoice(lifecycle.InvoiceStatus(status), lifecycle.InvoicePaid); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "invoices", ErrConflict,
			`UPDATE invoices SET status = ?, paid_at = ? WHERE id = ? AND status = ?`,
			string(lifecycle.InvoicePaid), db.now(), invoiceID, status)
	})
	if err != nil {
		metrics.RecordTransition("pay_invoice", transitionResult(err))
		return nil, err
	}
	metrics.RecordTransition("pay_invoice", "applied")
	return db.GetInvoice(ctx, invoiceID)
}

// PurgeIdempotencyKeys deletes keys created before cutoff and returns how
// many were removed.
func (db *DB) PurgeIdempotencyKeys(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.exec(ctx, db.conn, "idempotency_keys",
		`DELETE FROM idempotency_keys WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}
	return res.RowsAffected()
}
