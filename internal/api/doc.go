// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package api implements the portal's JSON HTTP API on a chi router.

Every endpoint answers with the models.APIResponse envelope. Handlers bind
and validate request bodies, call the store or the auth service, and map
sentinel errors to status codes in one table (see handleError).

Route groups:

  - /api/health, /api/auth/login, /api/auth/register, /api/auth/invite/{code}: public
  - /api/ws: WebSocket upgrade; the socket authenticates with its first frame
  - everything else: JWT (bearer or cookie) plus the casbin policy

State-changing sales operations publish domain events and write audit
records only when they actually changed state; an Idempotency-Key replay
returns 200 with metadata.replayed and the Idempotent-Replayed header.
*/
package api
