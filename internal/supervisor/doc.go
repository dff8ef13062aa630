// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package supervisor runs Portico's long-lived goroutines under a suture v4
tree.

	portico
	├── data-layer
	│   ├── audit-logger
	│   ├── backup-scheduler
	│   ├── lockout-cleanup
	│   └── maintenance (orphaned uploads, expired idempotency keys)
	├── messaging-layer
	│   ├── websocket-hub
	│   └── event-forwarder
	└── api-layer
	    └── http-server

A service that returns an error is restarted with backoff; returning nil
removes it from the tree. Canceling the context passed to Serve stops every
layer, each service getting TreeConfig.ShutdownTimeout to exit.
UnstoppedServiceReport lists the ones that did not.

Supervisor events (restarts, backoff, timeouts) are logged through the slog
adapter in internal/logging via sutureslog.

Service wrappers live in the services subpackage.
*/
package supervisor
