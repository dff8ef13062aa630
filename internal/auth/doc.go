// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package auth authenticates users of the portal.

Key Components:

  - JWTManager: HS256 tokens carrying user id, username and role
  - Middleware: accepts "Authorization: Bearer" or the "token" cookie,
    rejects revoked token ids and inactive accounts
  - LockoutManager: per-username and per-IP failed-login tracking with
    exponential backoff
  - RevocationStore: token ids revoked by logout, kept until expiry
  - Service: login, logout, registration (invite or approval), password
    changes, invites and account administration with audit records

Lockouts and revocations live in Badger (security.state_store: badger) so
they survive restarts, or in memory for tests and single-shot tools.

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	state, err := auth.OpenState(&cfg.Security)
	defer state.Close()

	svc := auth.NewService(db, jwtManager, state, auditLogger, &cfg.Security)
	mw := auth.NewMiddleware(jwtManager, state.Revocations, db)

	r.Group(func(r chi.Router) {
	    r.Use(mw.Authenticate)
	    r.Get("/api/auth/me", h.Me)
	})
*/
package auth
