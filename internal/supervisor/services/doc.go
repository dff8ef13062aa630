// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package services adapts Portico components to suture.Service.

  - HTTPServerService: ListenAndServe plus graceful Shutdown.
  - RunnerService: anything with RunWithContext (WebSocket hub, event
    forwarder, backup scheduler).
  - PeriodicService: a task on a ticker (upload sweep, idempotency key
    purge).

Components that already implement Serve, such as the audit logger and the
lockout cleanup, are added to the tree directly.

Return values follow suture's contract: an error restarts the service,
ctx.Err() after cancellation is a normal stop.
*/
package services
