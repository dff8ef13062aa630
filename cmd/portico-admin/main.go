// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Command portico-admin performs operational tasks against a Portico
// installation: schema migrations, copying data between database dialects,
// seeding administrators, issuing invite codes, backups and customer
// imports.
//
// It reads a .env file from the working directory when present, then loads
// the same configuration as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/database"
	"github.com/tomtom215/portico/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	envFile    string
	configPath string
	logLevel   string
	jsonOutput bool

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "portico-admin",
		Short:         "Operational tasks for a Portico installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration (ignored if missing)")
	f.StringVar(&a.configPath, "config", "", "YAML config file (overrides CONFIG_PATH)")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level")
	f.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newMigrateCmd(a),
		newSchemaCmd(a),
		newSeedAdminCmd(a),
		newInviteCmd(a),
		newBackupCmd(a),
		newImportCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	if a.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, a.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Init(logging.Config{Level: a.logLevel, Format: "console", Timestamp: true, Service: "portico-admin", Output: os.Stderr})
	return nil
}

// openDB opens the configured database and applies pending migrations.
func (a *app) openDB() (*database.DB, error) {
	db, err := database.New(&a.cfg.Database)
	if err != nil {
		return nil, err
	}
	db.SetPageSizes(a.cfg.API.DefaultPageSize, a.cfg.API.MaxPageSize)
	return db, nil
}

// printResult writes v as indented JSON with --json, otherwise calls text.
func (a *app) printResult(cmd *cobra.Command, v any, text func()) error {
	if !a.jsonOutput {
		text()
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
