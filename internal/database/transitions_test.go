// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/portico/internal/lifecycle"
)

func transition(t *testing.T, db *DB, quoteID int64, action lifecycle.Action, key string) (bool, error) {
	t.Helper()
	_, replayed, err := db.TransitionQuote(context.Background(), TransitionRequest{
		QuoteID: quoteID, Action: action, ActorID: 1, IdempotencyKey: key,
	})
	return replayed, err
}

func TestTransitionQuote_FullLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)

	checkStringEqual(t, "quote number", q.QuoteNumber, "Q-2026-0001")
	checkStringEqual(t, "status", string(q.Status), string(lifecycle.Draft))
	checkInt64Equal(t, "version", q.Version, 1)

	steps := []struct {
		action     lifecycle.Action
		wantStatus lifecycle.State
		wantOrder  string
	}{
		{lifecycle.Send, lifecycle.Sent, ""},
		{lifecycle.Accept, lifecycle.Accepted, "O-2026-0001"},
		{lifecycle.Revert, lifecycle.Sent, ""},
		{lifecycle.Reject, lifecycle.Rejected, ""},
		{lifecycle.Revert, lifecycle.Sent, ""},
		{lifecycle.Accept, lifecycle.Accepted, "O-2026-0002"},
	}
	for i, step := range steps {
		got, replayed, err := db.TransitionQuote(ctx, TransitionRequest{QuoteID: q.ID, Action: step.action, ActorID: user.ID})
		checkNoError(t, err)
		if replayed {
			t.Errorf("step %d (%s): unexpected replay", i, step.action)
		}
		checkStringEqual(t, "status", string(got.Status), string(step.wantStatus))
		checkInt64Equal(t, "version", got.Version, int64(i+2))

		order := ""
		if got.OrderNumber != nil {
			order = *got.OrderNumber
		}
		checkStringEqual(t, "order number", order, step.wantOrder)
		if lifecycle.HasOrderNumber(got.Status) != (got.OrderNumber != nil) {
			t.Errorf("status %s with order number %v", got.Status, got.OrderNumber)
		}
	}

	final, err := db.GetQuote(ctx, q.ID)
	checkNoError(t, err)
	if final.AcceptedAt == nil || final.SentAt == nil {
		t.Error("expected sent_at and accepted_at to be set")
	}
	if final.RejectedAt != nil {
		t.Error("accept must clear rejected_at")
	}
}

func TestTransitionQuote_InvalidTransitions(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	customer := createTestCustomer(t, db, "acme")

	tests := []struct {
		name    string
		prepare []lifecycle.Action
		action  lifecycle.Action
		wantErr error
	}{
		{"accept draft", nil, lifecycle.Accept, ErrInvalidTransition},
		{"reject draft", nil, lifecycle.Reject, ErrInvalidTransition},
		{"revert draft", nil, lifecycle.Revert, ErrInvalidTransition},
		{"send twice", []lifecycle.Action{lifecycle.Send}, lifecycle.Send, ErrInvalidTransition},
		{"reject accepted", []lifecycle.Action{lifecycle.Send, lifecycle.Accept}, lifecycle.Reject, ErrInvalidTransition},
		{"client cannot invoice", []lifecycle.Action{lifecycle.Send, lifecycle.Accept}, lifecycle.Invoice, ErrInvalidTransition},
		{"unknown action", nil, lifecycle.Action("archive"), ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := createTestQuote(t, db, customer, user)
			for _, a := range tt.prepare {
				_, err := transition(t, db, q.ID, a, "")
				checkNoError(t, err)
			}
			_, err := transition(t, db, q.ID, tt.action, "")
			checkErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing quote", func(t *testing.T) {
		_, err := transition(t, db, 9999, lifecycle.Send, "")
		checkErrorIs(t, err, ErrNotFound)
	})
}

func TestTransitionQuote_Idempotency(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	customer := createTestCustomer(t, db, "acme")
	q := createTestQuote(t, db, customer, user)
	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)

	first, replayed, err := db.TransitionQuote(ctx, TransitionRequest{QuoteID: q.ID, Action: lifecycle.Accept, IdempotencyKey: "k-1"})
	checkNoError(t, err)
	if replayed {
		t.Fatal("first request must not be a replay")
	}

	second, replayed, err := db.TransitionQuote(ctx, TransitionRequest{QuoteID: q.ID, Action: lifecycle.Accept, IdempotencyKey: "k-1"})
	checkNoError(t, err)
	if !replayed {
		t.Fatal("second request must be a replay")
	}
	checkStringEqual(t, "order number", *second.OrderNumber, *first.OrderNumber)
	checkInt64Equal(t, "version", second.Version, first.Version)

	t.Run("same key different action", func(t *testing.T) {
		_, err := transition(t, db, q.ID, lifecycle.Revert, "k-1")
		checkErrorIs(t, err, ErrIdempotencyKeyReuse)
	})

	t.Run("same key different quote", func(t *testing.T) {
		other := createTestQuote(t, db, customer, user)
		_, err := transition(t, db, other.ID, lifecycle.Send, "")
		checkNoError(t, err)
		_, err = transition(t, db, other.ID, lifecycle.Accept, "k-1")
		checkErrorIs(t, err, ErrIdempotencyKeyReuse)

		got, err := db.GetQuote(ctx, other.ID)
		checkNoError(t, err)
		checkStringEqual(t, "status", string(got.Status), string(lifecycle.Sent))
	})

	t.Run("purge removes old keys", func(t *testing.T) {
		n, err := db.PurgeIdempotencyKeys(ctx, testClock.Add(-time.Hour))
		checkNoError(t, err)
		checkInt64Equal(t, "purged before creation", n, 0)

		n, err = db.PurgeIdempotencyKeys(ctx, testClock.Add(time.Hour))
		checkNoError(t, err)
		checkInt64Equal(t, "purged after creation", n, 1)
	})
}

// Replays report the quote as it is now, not as it was when the key was
// first used.
func TestTransitionQuote_ReplayReturnsCurrentState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)
	_, err = transition(t, db, q.ID, lifecycle.Accept, "accept-then-revert")
	checkNoError(t, err)
	_, err = transition(t, db, q.ID, lifecycle.Revert, "")
	checkNoError(t, err)

	got, replayed, err := db.TransitionQuote(ctx, TransitionRequest{QuoteID: q.ID, Action: lifecycle.Accept, IdempotencyKey: "accept-then-revert"})
	checkNoError(t, err)
	if !replayed {
		t.Fatal("expected replay")
	}
	checkStringEqual(t, "status", string(got.Status), string(lifecycle.Sent))
	if got.OrderNumber != nil {
		t.Errorf("order number = %q, want none after revert", *got.OrderNumber)
	}
	checkInt64Equal(t, "version", got.Version, 4)
}

func TestTransitionQuote_ConcurrentAcceptSameKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		orders   = map[string]bool{}
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, replayed, err := db.TransitionQuote(ctx, TransitionRequest{
				QuoteID: q.ID, Action: lifecycle.Accept, IdempotencyKey: "double-click",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if !replayed {
				applied++
			}
			orders[*got.OrderNumber] = true
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("expected every request to succeed, got %v", failures)
	}
	if applied != 1 {
		t.Errorf("expected exactly one applied accept, got %d", applied)
	}
	if len(orders) != 1 {
		t.Errorf("expected one order number, got %v", orders)
	}

	var counter int64
	checkNoError(t, db.conn.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = 'O:2026'`).Scan(&counter))
	checkInt64Equal(t, "order counter", counter, 1)
}

func TestTransitionQuote_ConcurrentAcceptWithoutKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)

	const workers = 6
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := db.TransitionQuote(ctx, TransitionRequest{QuoteID: q.ID, Action: lifecycle.Accept})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected one winner, got %d", wins)
	}
}

// A request that lost a race may fail with any error the winner's commit
// can cause. Each of those must fall back to the stored key.
func TestRecheckIdempotencyKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)
	_, err = transition(t, db, q.ID, lifecycle.Accept, "won")
	checkNoError(t, err)
	accept := string(lifecycle.Accept)

	tests := []struct {
		name    string
		key     string
		action  string
		quoteID int64
		cause   error
		wantID  int64
		wantErr error
	}{
		{"status moved on", "won", accept, q.ID, ErrInvalidTransition, q.ID, nil},
		{"version conflict", "won", accept, q.ID, ErrConflict, q.ID, nil},
		{"duplicate key insert", "won", accept, q.ID, errors.Join(ErrDuplicate, errors.New("unique")), q.ID, nil},
		{"no key", "", accept, q.ID, ErrInvalidTransition, 0, ErrInvalidTransition},
		{"unknown key", "lost", accept, q.ID, ErrInvalidTransition, 0, ErrInvalidTransition},
		{"other action", "won", string(lifecycle.Reject), q.ID, ErrInvalidTransition, 0, ErrIdempotencyKeyReuse},
		{"unrelated error", "won", accept, q.ID, ErrNotFound, 0, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := db.recheckIdempotencyKey(ctx, tt.key, tt.action, tt.quoteID, tt.cause)
			if tt.wantErr != nil {
				checkErrorIs(t, err, tt.wantErr)
				return
			}
			checkNoError(t, err)
			checkInt64Equal(t, "result id", id, tt.wantID)
		})
	}
}

// The hook fires inside the transaction but must not run on a key hit.
func TestTransitionQuote_KeyLookupHook(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	calls := 0
	db.afterKeyLookup = func() { calls++ }

	_, err := transition(t, db, q.ID, lifecycle.Send, "")
	checkNoError(t, err)
	checkInt64Equal(t, "calls without key", int64(calls), 0)

	_, err = transition(t, db, q.ID, lifecycle.Accept, "hooked")
	checkNoError(t, err)
	checkInt64Equal(t, "calls on miss", int64(calls), 1)

	replayed, err := transition(t, db, q.ID, lifecycle.Accept, "hooked")
	checkNoError(t, err)
	if !replayed {
		t.Error("expected replay")
	}
	checkInt64Equal(t, "calls on hit", int64(calls), 1)
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)

	t.Run("draft cannot be invoiced", func(t *testing.T) {
		_, _, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: q.ID})
		checkErrorIs(t, err, ErrInvalidTransition)
	})

	for _, a := range []lifecycle.Action{lifecycle.Send, lifecycle.Accept} {
		_, err := transition(t, db, q.ID, a, "")
		checkNoError(t, err)
	}

	inv, replayed, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{
		QuoteID:        q.ID,
		IssueDate:      time.Date(2026, 3, 12, 15, 30, 0, 0, time.UTC),
		ActorID:        user.ID,
		IdempotencyKey: "inv-1",
	})
	checkNoError(t, err)
	if replayed {
		t.Error("first invoice must not be a replay")
	}
	checkStringEqual(t, "invoice number", inv.InvoiceNumber, "INV-2026-0001")
	checkStringEqual(t, "status", string(inv.Status), string(lifecycle.InvoiceIssued))
	checkStringEqual(t, "order number", inv.OrderNumber, "O-2026-0001")
	checkInt64Equal(t, "subtotal", inv.SubtotalCents, 23000)
	checkInt64Equal(t, "vat", inv.VATCents, 5750)
	checkInt64Equal(t, "total", inv.TotalCents, 28750)
	checkStringEqual(t, "currency", inv.Currency, "SEK")
	if !inv.IssueDate.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("issue date = %v", inv.IssueDate)
	}
	if !inv.DueDate.Equal(time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due date = %v, want issue + %d days", inv.DueDate, DefaultDueDays)
	}
	checkLen(t, "invoice lines", len(inv.Lines), 2)
	checkInt64Equal(t, "line 1 total", inv.Lines[0].LineTotalCents, 18000)
	checkStringEqual(t, "line 1 description", inv.Lines[0].Description, "Consulting")

	order, err := db.GetQuote(ctx, q.ID)
	checkNoError(t, err)
	checkStringEqual(t, "order status", string(order.Status), string(lifecycle.Invoiced))
	if order.InvoicedAt == nil {
		t.Error("invoiced_at must be set")
	}

	t.Run("same key replays", func(t *testing.T) {
		again, replayed, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: q.ID, IdempotencyKey: "inv-1"})
		checkNoError(t, err)
		if !replayed {
			t.Error("expected replay")
		}
		checkInt64Equal(t, "invoice id", again.ID, inv.ID)
	})

	t.Run("second invoice without key is rejected", func(t *testing.T) {
		_, _, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: q.ID})
		checkErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("invoiced order cannot be reverted", func(t *testing.T) {
		_, err := transition(t, db, q.ID, lifecycle.Revert, "")
		checkErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("accept key cannot be reused for invoice", func(t *testing.T) {
		other := createTestQuote(t, db, createTestCustomer(t, db, "globex"), user)
		_, err := transition(t, db, other.ID, lifecycle.Send, "")
		checkNoError(t, err)
		_, err = transition(t, db, other.ID, lifecycle.Accept, "shared")
		checkNoError(t, err)
		_, _, err = db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: other.ID, IdempotencyKey: "shared"})
		checkErrorIs(t, err, ErrIdempotencyKeyReuse)
	})
}

func TestCancelAndPayInvoice(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	q := createTestQuote(t, db, createTestCustomer(t, db, "acme"), user)
	for _, a := range []lifecycle.Action{lifecycle.Send, lifecycle.Accept} {
		_, err := transition(t, db, q.ID, a, "")
		checkNoError(t, err)
	}

	inv, _, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: q.ID, ActorID: user.ID})
	checkNoError(t, err)

	cancelled, err := db.CancelInvoice(ctx, inv.ID, user.ID)
	checkNoError(t, err)
	checkStringEqual(t, "status", string(cancelled.Status), string(lifecycle.InvoiceCancelled))
	if cancelled.CancelledAt == nil {
		t.Error("cancelled_at must be set")
	}

	order, err := db.GetQuote(ctx, q.ID)
	checkNoError(t, err)
	checkStringEqual(t, "order status", string(order.Status), string(lifecycle.Accepted))
	if order.InvoicedAt != nil {
		t.Error("invoiced_at must be cleared")
	}

	_, err = db.CancelInvoice(ctx, inv.ID, user.ID)
	checkErrorIs(t, err, ErrInvalidTransition)
	_, err = db.MarkInvoicePaid(ctx, inv.ID)
	checkErrorIs(t, err, ErrInvalidTransition)

	reissued, _, err := db.CreateInvoiceFromOrder(ctx, CreateInvoiceRequest{QuoteID: q.ID, ActorID: user.ID})
	checkNoError(t, err)
	checkStringEqual(t, "reissued number", reissued.InvoiceNumber, "INV-2026-0002")

	paid, err := db.MarkInvoicePaid(ctx, reissued.ID)
	checkNoError(t, err)
	checkStringEqual(t, "status", string(paid.Status), string(lifecycle.InvoicePaid))

	_, err = db.CancelInvoice(ctx, reissued.ID, user.ID)
	checkErrorIs(t, err, ErrInvalidTransition)

	_, err = db.MarkInvoicePaid(ctx, 4242)
	checkErrorIs(t, err, ErrNotFound)

	page, err := db.ListInvoices(ctx, InvoiceFilter{QuoteID: q.ID})
	checkNoError(t, err)
	if page.Total != 2 {
		t.Errorf("expected 2 invoices for the order, got %d", page.Total)
	}
	page, err = db.ListInvoices(ctx, InvoiceFilter{Status: lifecycle.InvoicePaid})
	checkNoError(t, err)
	if page.Total != 1 || page.Items[0].ID != reissued.ID {
		t.Errorf("paid filter returned %+v", page.Items)
	}
}

func TestCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("format and parse", func(t *testing.T) {
		n := FormatNumber(SeriesInvoice, 2026, 42)
		checkStringEqual(t, "number", n, "INV-2026-0042")
		series, year, v, ok := ParseNumber(n)
		if !ok || series != SeriesInvoice || year != 2026 || v != 42 {
			t.Errorf("ParseNumber(%q) = %s %d %d %v", n, series, year, v, ok)
		}
		if _, _, _, ok := ParseNumber("garbage"); ok {
			t.Error("expected parse failure")
		}
	})

	t.Run("numbers restart per year", func(t *testing.T) {
		var got []string
		for _, year := range []int{2026, 2026, 2027} {
			err := db.WithTx(ctx, func(tx *sql.Tx) error {
				n, err := db.nextNumber(ctx, tx, SeriesQuote, year)
				got = append(got, n)
				return err
			})
			checkNoError(t, err)
		}
		want := []string{"Q-2026-0001", "Q-2026-0002", "Q-2027-0001"}
		for i := range want {
			checkStringEqual(t, "number", got[i], want[i])
		}
	})

	t.Run("rollback releases the number", func(t *testing.T) {
		_ = db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := db.nextNumber(ctx, tx, SeriesOrder, 2026); err != nil {
				return err
			}
			return errors.New("abort")
		})
		var n string
		checkNoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			n, err = db.nextNumber(ctx, tx, SeriesOrder, 2026)
			return err
		}))
		checkStringEqual(t, "order number", n, "O-2026-0001")
	})

	t.Run("sync raises counters", func(t *testing.T) {
		_, err := db.conn.ExecContext(ctx, `DELETE FROM counters`)
		checkNoError(t, err)
		user := createTestUser(t, db, "sync")
		customer := createTestCustomer(t, db, "sync")
		createTestQuote(t, db, customer, user)
		_, err = db.conn.ExecContext(ctx, `UPDATE quotes SET quote_number = 'Q-2026-0077'`)
		checkNoError(t, err)
		_, err = db.conn.ExecContext(ctx, `DELETE FROM counters`)
		checkNoError(t, err)

		checkNoError(t, db.SyncCounters(ctx))
		next := createTestQuote(t, db, customer, user)
		checkStringEqual(t, "next quote number", next.QuoteNumber, "Q-2026-0078")
	})
}
