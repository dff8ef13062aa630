// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package middleware provides the HTTP plumbing shared by every route.

All middleware has the chi signature func(http.Handler) http.Handler.

Key Components:

  - RequestID: accepts a sane upstream X-Request-ID or generates a UUID and
    puts it, plus a fresh correlation id, into the logging context
  - AccessLog: one structured zerolog line per request
  - PrometheusMetrics: request count, latency and in-flight gauge labelled
    with the chi route pattern so path parameters do not explode cardinality
  - Compression: gzip for JSON responses; skipped for WebSocket upgrades and
    for payloads that are already compressed (images, xlsx, archives)
  - PerformanceMonitor: ring buffer of recent requests with per-route
    percentiles, served to administrators

Response wrappers keep http.Hijacker and http.Flusher available so the
WebSocket upgrade works behind every layer.

Typical order in the router:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perfMon.Middleware)
	r.Use(middleware.Compression)
*/
package middleware
