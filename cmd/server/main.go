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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/portico/internal/api"
	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/authz"
	"github.com/tomtom215/portico/internal/backup"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/middleware"
	"github.com/tomtom215/portico/internal/storage"
	"github.com/tomtom215/portico/internal/supervisor"
	ws "github.com/tomtom215/portico/internal/websocket"
)

//nolint:gocyclo // sequential startup
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Caller:      cfg.Logging.Caller,
		Timestamp:   true,
		Service:     "portico",
		Environment: cfg.Server.Environment,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("dialect", cfg.Database.Dialect).
		Msg("Starting Portico")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	db.SetPageSizes(cfg.API.DefaultPageSize, cfg.API.MaxPageSize)

	state, err := auth.OpenState(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open auth state store")
	}
	defer func() {
		if err := state.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing auth state store")
		}
	}()
	if cfg.Security.StateStore == "memory" && cfg.IsProduction() {
		logging.Warn().Msg("STATE_STORE=memory: lockouts and revoked tokens are lost on restart")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	// Events are written by the supervised audit logger; Close flushes
	// what is still queued after the tree has stopped.
	auditLog := audit.NewLogger(audit.NewSQLStore(db), audit.DefaultConfig())
	defer func() {
		if err := auditLog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	authService := auth.NewService(db, jwtManager, state, auditLog, &cfg.Security)
	if err := authService.BootstrapAdmin(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap administrator")
	}
	authn := auth.NewMiddleware(jwtManager, state.Revocations, db)

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(&cfg.Security.Casbin))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()
	authzMW := authz.NewMiddleware(enforcer, auditLog)

	store, err := storage.New(storage.ConfigFrom(&cfg.Storage))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize upload storage")
	}

	bus, err := events.NewBus(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := ws.NewHub(ws.ConfigFrom(&cfg.WebSocket, cfg.Security.CORSOrigins), authn, db)

	backups, err := backup.NewManager(backup.ConfigFrom(cfg), db)
	if err != nil {
		// The portal runs without backups; the endpoints answer 503.
		logging.Warn().Err(err).Msg("Backups disabled")
		backups = nil
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	warnWildcardCORS(cfg)

	handler := api.NewHandler(api.Dependencies{
		DB:      db,
		Config:  cfg,
		Auth:    authService,
		Authz:   authzMW,
		Storage: store,
		Hub:     hub,
		Events:  bus,
		Audit:   auditLog,
		Backups: backups,
		PerfMon: middleware.NewPerformanceMonitor(1000),
	})
	chiMW := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security))
	router := api.NewRouter(handler, authn, authzMW, chiMW)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.Timeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	addServices(tree, cfg, &components{
		db:       db,
		store:    store,
		auditLog: auditLog,
		lockout:  authService.Lockout(),
		backups:  backups,
		hub:      hub,
		bus:      bus,
		server:   server,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Portico stopped")
}

func warnWildcardCORS(cfg *config.Config) {
	for _, o := range cfg.Security.CORSOrigins {
		if o == "*" {
			logging.Warn().Msg("CORS_ORIGINS=* lets any website call the API; list explicit origins outside development")
			return
		}
	}
}
