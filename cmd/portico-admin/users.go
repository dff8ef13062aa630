// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/database"
)

// session is an auth service over the configured database. Lockouts and
// revocations are irrelevant offline, so the state is in memory.
type session struct {
	db    *database.DB
	auth  *auth.Service
	audit *audit.Logger
}

func (a *app) openSession() (*session, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	jwtManager, err := auth.NewJWTManager(&a.cfg.Security)
	if err != nil {
		db.Close()
		return nil, err
	}
	auditLog := audit.NewLogger(audit.NewSQLStore(db), audit.DefaultConfig())
	return &session{
		db:    db,
		auth:  auth.NewService(db, jwtManager, auth.NewMemoryState(), auditLog, &a.cfg.Security),
		audit: auditLog,
	}, nil
}

// Close flushes queued audit events before the database goes away.
func (s *session) Close() {
	_ = s.audit.Close()
	_ = s.db.Close()
}

func newSeedAdminCmd(a *app) *cobra.Command {
	var username, password, email string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator, or promote and reactivate an existing user",
		Long: `Without an existing account --password is required. For an existing
account the password is only replaced when --password is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			u, created, err := s.auth.EnsureAdmin(cmd.Context(), username, password, email)
			if err != nil {
				return err
			}
			action := "promoted"
			if created {
				action = "created"
			}
			s.audit.Record(cmd.Context(), audit.EventTypeRoleChanged, audit.SystemActor(),
				audit.IDTarget("user", u.ID), "seed_admin", "Administrator "+action+" from the command line",
				map[string]any{"username": u.Username})

			return a.printResult(cmd, map[string]any{"user": u, "created": created}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s administrator %q (id %d)\n", action, u.Username, u.ID)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "password (required for new accounts)")
	cmd.Flags().StringVar(&email, "email", "", "email address for new accounts")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newInviteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Manage registration invite codes",
	}

	var ttl time.Duration
	var issuer string
	create := &cobra.Command{
		Use:   "create",
		Short: "Print a new single-use invite code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if issuer == "" {
				issuer = a.cfg.Security.AdminUsername
			}
			if issuer == "" {
				return errors.New("--as is required when ADMIN_USERNAME is not configured")
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := s.db.GetUserByUsername(cmd.Context(), issuer)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("user %q does not exist", issuer)
			}
			if err != nil {
				return err
			}
			if !u.IsAdmin() {
				return fmt.Errorf("user %q is not an administrator", issuer)
			}

			invite, err := s.auth.CreateInvite(cmd.Context(), &auth.Claims{UserID: u.ID, Username: u.Username, Role: u.Role}, ttl)
			if err != nil {
				return err
			}
			return a.printResult(cmd, invite, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (expires %s)\n", invite.Code, invite.ExpiresAt.Format(time.RFC3339))
			})
		},
	}
	create.Flags().DurationVar(&ttl, "ttl", 0, "lifetime, e.g. 72h (default: INVITE_TTL)")
	create.Flags().StringVar(&issuer, "as", "", "administrator recorded as the issuer (default: ADMIN_USERNAME)")

	cmd.AddCommand(create)
	return cmd
}
