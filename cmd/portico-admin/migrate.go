// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/portico/internal/database"
)

// parseTarget splits "dialect:dsn". For sqlite and duckdb the dsn is a file
// path; for postgres it is a connection URL.
func parseTarget(s string) (database.Dialect, string, error) {
	name, dsn, ok := strings.Cut(s, ":")
	if !ok || dsn == "" {
		return "", "", fmt.Errorf("%q: expected <dialect>:<dsn>", s)
	}
	d, err := database.ParseDialect(name)
	if err != nil {
		return "", "", err
	}
	return d, dsn, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	var from, to string
	var tables []string
	var truncate bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy data between databases, e.g. sqlite to postgres",
		Long: `Creates the schema on the target and copies every table (or the ones
named with --tables) in dependency order inside a single target transaction.
Counters and identity sequences are raised afterwards.

  portico-admin migrate --from sqlite:data/portico.db --to postgres:postgres://portico@db/portico`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srcDialect, srcDSN, err := parseTarget(from)
			if err != nil {
				return fmt.Errorf("--from %w", err)
			}
			dstDialect, dstDSN, err := parseTarget(to)
			if err != nil {
				return fmt.Errorf("--to %w", err)
			}
			if srcDialect == dstDialect && srcDSN == dstDSN {
				return fmt.Errorf("source and target are the same database")
			}

			src, err := database.Open(srcDialect, srcDSN)
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer src.Close()
			dst, err := database.Open(dstDialect, dstDSN)
			if err != nil {
				return fmt.Errorf("open target: %w", err)
			}
			defer dst.Close()

			start := time.Now()
			copied, err := database.CopyTables(cmd.Context(), src, dst, database.CopyOptions{
				Tables:   tables,
				Truncate: truncate,
			})
			if err != nil {
				return err
			}

			return a.printResult(cmd, copied, func() {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TABLE\tROWS")
				var total int64
				for _, c := range copied {
					fmt.Fprintf(w, "%s\t%d\n", c.Table, c.Rows)
					total += c.Rows
				}
				w.Flush()
				fmt.Fprintf(cmd.OutOrStdout(), "copied %d rows from %s to %s in %s\n",
					total, srcDialect, dstDialect, time.Since(start).Round(time.Millisecond))
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source <dialect>:<dsn>")
	cmd.Flags().StringVar(&to, "to", "", "target <dialect>:<dsn>")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "only copy these tables")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "empty target tables before copying")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

type schemaStatus struct {
	Dialect string               `json:"dialect"`
	Version int                  `json:"version"`
	Applied []database.Migration `json:"applied"`
	Pending []database.Migration `json:"pending"`
}

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or inspect the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Apply pending migrations to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			v, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			return a.printResult(cmd, map[string]any{"dialect": db.Dialect(), "version": v}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", db.Dialect(), v)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := database.ParseDialect(a.cfg.Database.Dialect)
			if err != nil {
				return err
			}
			dsn := a.cfg.Database.Path
			if d == database.Postgres {
				dsn = a.cfg.Database.DSN
			}
			db, err := database.Open(d, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			pending, err := db.PendingMigrations(ctx)
			if err != nil {
				return err
			}
			applied, err := db.AppliedMigrations(ctx)
			if err != nil {
				return err
			}
			st := schemaStatus{Dialect: string(d), Applied: applied, Pending: pending}
			if n := len(applied); n > 0 {
				st.Version = applied[n-1].Version
			}

			return a.printResult(cmd, st, func() {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
				for _, m := range applied {
					fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(w, "%d\t%s\tpending\n", m.Version, m.Name)
				}
				w.Flush()
			})
		},
	})
	return cmd
}
