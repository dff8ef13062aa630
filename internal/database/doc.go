// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package database is the relational store behind Portico.
//
// # Overview
//
// DB wraps a database/sql pool and a Dialect. The same queries run on three
// engines:
//   - sqlite (default): modernc.org/sqlite, WAL journal, foreign keys on,
//     immediate write transactions
//   - postgres: github.com/jackc/pgx/v5/stdlib
//   - duckdb: github.com/duckdb/duckdb-go/v2, used for reporting copies
//
// Queries are written with ? placeholders and passed through Rebind. The
// schema in schema.go uses type tokens ({{ID}}, {{TS}}, ...) rendered per
// dialect, and is applied by versioned migrations recorded in
// schema_migrations.
//
// # Files
//
//   - database.go: open, pool configuration, health
//   - dialect.go: dialect names, DSNs, placeholder rebinding, type tokens
//   - tx.go: WithTx and the query helpers every store method uses
//   - schema.go, migrations.go: tables, indexes, migrations
//   - counters.go: gap-free document numbers (Q-, O-, INV-YYYY-NNNN)
//   - users.go: users, pending registrations, invite codes
//   - customers.go: customers, contacts, spreadsheet import upsert
//   - quotes.go: quote CRUD and lines
//   - transitions.go: lifecycle transitions, invoicing, idempotency keys
//   - invoices.go: invoice reads
//   - posts.go, messages.go, files.go: feed, chat, folders and files
//   - copy.go: cross-dialect copy, JSON-lines export, sqlite snapshots
//
// # Lifecycle Transactions
//
// Every quote status change reads status and version, asks lifecycle.Next
// for the target state and writes it with
//
//	UPDATE quotes SET ... version = version + 1
//	WHERE id = ? AND status = ? AND version = ?
//
// inside one transaction. Zero affected rows means another request won and
// yields ErrConflict. Order and invoice numbers are taken from the counters
// table in the same transaction, so a rollback releases them.
//
// Accept and invoice creation accept an idempotency key. The key is stored
// with the action, the quote and the resulting id in the same transaction as
// the change. A repeated key replays the stored result; a key reused for a
// different action or quote fails with ErrIdempotencyKeyReuse. When two
// requests race with the same key, the loser rolls back, finds the winner's
// key and replays it.
//
// # Errors
//
// Store methods return sentinel errors (ErrNotFound, ErrConflict,
// ErrInvalidTransition, ErrIdempotencyKeyReuse, ErrNotEditable, ErrDuplicate,
// ErrNotEmpty, ErrInviteUnusable) wrapped with context; match them with
// errors.Is.
package database
