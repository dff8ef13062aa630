// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package main is the Portico server: the REST API, the WebSocket endpoint
for chat, presence and call signaling, and the background jobs, all
supervised by a suture tree.

# Startup

 1. Configuration: koanf (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Database: sqlite, postgres or duckdb, migrated on open
 4. Auth: JWT manager, badger state store, bootstrap administrator
 5. Authorization: casbin enforcer
 6. Uploads, event bus (in process or NATS), WebSocket hub
 7. Supervisor tree and HTTP server

# Supervision

	portico
	├── data-layer
	│   ├── audit-logger
	│   ├── backup-scheduler
	│   ├── lockout-cleanup
	│   └── maintenance
	├── messaging-layer
	│   ├── websocket-hub
	│   └── event-forwarder
	└── api-layer
	    └── http-server

# Environment

Common variables (see internal/config for the full list):

	JWT_SECRET        32+ character signing secret (required)
	ADMIN_USERNAME    bootstrap administrator, created on first start
	ADMIN_PASSWORD
	DB_DIALECT        sqlite (default), postgres or duckdb
	DB_PATH           sqlite/duckdb file, default data/portico.db
	DATABASE_URL      postgres connection URL
	HTTP_PORT         default 3000
	UPLOADS_DIR       default uploads
	NATS_URL          external NATS server for domain events
	NATS_EMBEDDED     run NATS in process
	BACKUP_INTERVAL   e.g. 24h; empty disables scheduled backups

# Signals

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up
to the configured shutdown timeout, WebSocket clients are closed, the audit
queue is flushed and the database is closed last.

# Example

	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_USERNAME=admin
	export ADMIN_PASSWORD=change-me-now
	./portico
*/
package main
