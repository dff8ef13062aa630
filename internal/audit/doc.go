// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package audit records security and business events in the audit_events
// table.
//
// Callers never wait on the database:
//
//	Logger.Log() -> buffered chan -> writer goroutine -> Store.Save()
//
// When the buffer is full the event is dropped and a warning is logged.
// Close drains whatever is still buffered.
//
// Event groups:
//   - auth.*: login success/failure, lockout, logout, registration
//   - user.*: approval, rejection, role and active changes, deletion
//   - invite.*: invite code created/revoked
//   - quote.*, invoice.*: lifecycle transitions and invoice state
//   - data.*: customer import, backups
//
// Two stores are provided: SQLStore on the application database and
// MemoryStore for tests.
package audit
