// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package metrics exposes Prometheus metrics for the portal.

All collectors are registered with the default registry through promauto and
served by promhttp at GET /metrics. Covered areas:

  - HTTP request latency, throughput and active requests
  - database query latency and errors
  - quote lifecycle transitions and idempotent replays
  - WebSocket connections, online users and video rooms
  - event bus publishing and circuit breaker state
  - uploads, backups and login attempts
*/
package metrics
