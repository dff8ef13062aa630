// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/storage"
	"github.com/tomtom215/portico/internal/supervisor"
	"github.com/tomtom215/portico/internal/supervisor/services"
	ws "github.com/tomtom215/portico/internal/websocket"
)

// orphanMinAge protects blobs whose row insert is still in flight.
const orphanMinAge = time.Hour

// components are the long-lived pieces the supervisor runs.
type components struct {
	db       *database.DB
	store    *storage.Store
	auditLog *audit.Logger
	lockout  *auth.LockoutManager
	backups  *backup.Manager
	hub      *ws.Hub
	bus      *events.Bus
	server   *http.Server
}

func addServices(tree *supervisor.SupervisorTree, cfg *config.Config, c *components) {
	tree.AddDataService(c.auditLog)
	tree.AddDataService(c.lockout)

	if c.backups != nil {
		sched := backup.NewScheduler(c.backups)
		sched.SetOnComplete(backupAuditHook(c.auditLog))
		tree.AddDataService(services.NewBackupSchedulerService(sched))
	}

	maint := services.NewPeriodicService("maintenance", cfg.Storage.SweepInterval,
		maintenanceTask(c.db, c.store, cfg.Database.IdempotencyTTL))
	maint.RunOnStart = true
	tree.AddDataService(maint)

	tree.AddMessagingService(services.NewWebSocketHubService(c.hub))
	tree.AddMessagingService(services.NewEventForwarderService(events.NewForwarder(c.bus, c.hub)))

	tree.AddAPIService(services.NewHTTPServerService(c.server, cfg.Server.Timeout))

	logging.Info().
		Bool("backups", c.backups != nil).
		Str("events", c.bus.Transport()).
		Dur("sweep_interval", cfg.Storage.SweepInterval).
		Msg("Services added to supervisor tree")
}

// maintenanceTask removes uploads no row references and idempotency keys
// older than ttl. Both halves run even if the other fails.
func maintenanceTask(db *database.DB, store *storage.Store, ttl time.Duration) services.Task {
	return func(ctx context.Context) error {
		var errs []error

		if _, err := store.Sweep(ctx, db.FileReferenced, orphanMinAge); err != nil {
			errs = append(errs, fmt.Errorf("sweep uploads: %w", err))
		}

		if ttl > 0 {
			n, err := db.PurgeIdempotencyKeys(ctx, time.Now().Add(-ttl))
			if err != nil {
				errs = append(errs, err)
			} else if n > 0 {
				logging.Info().Int64("removed", n).Msg("purged expired idempotency keys")
			}
		}
		return errors.Join(errs...)
	}
}

// backupAuditHook records every scheduled backup in the audit log.
func backupAuditHook(auditLog *audit.Logger) func(*backup.Info, error) {
	return func(info *backup.Info, err error) {
		ctx := context.Background()
		if err != nil {
			auditLog.Log(&audit.Event{
				Type:        audit.EventTypeDataBackup,
				Severity:    audit.SeverityError,
				Outcome:     audit.OutcomeFailure,
				Actor:       audit.SystemActor(),
				Action:      "create",
				Description: "Scheduled backup failed: " + err.Error(),
			})
			return
		}
		auditLog.Record(ctx, audit.EventTypeDataBackup, audit.SystemActor(),
			&audit.Target{Type: "backup", ID: info.File}, "create", "Scheduled backup created",
			map[string]any{"size": info.Size, "trigger": string(backup.TriggerScheduled)})
	}
}
