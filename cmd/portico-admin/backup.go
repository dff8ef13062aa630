// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/portico/internal/backup"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, verify and prune backup archives",
	}
	cmd.AddCommand(
		newBackupCreateCmd(a),
		newBackupListCmd(a),
		newBackupInspectCmd(a),
		newBackupPruneCmd(a),
	)
	return cmd
}

// offlineManager works on archives only; it never touches the database.
func (a *app) offlineManager() (*backup.Manager, error) {
	return backup.NewManager(backup.ConfigFrom(a.cfg), nil)
}

func newBackupCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Write a new archive of the database and uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := backup.NewManager(backup.ConfigFrom(a.cfg), db)
			if err != nil {
				return err
			}
			info, err := m.Create(cmd.Context(), backup.TriggerCLI)
			if err != nil {
				return err
			}
			return a.printResult(cmd, info, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", info.Path, info.Size)
			})
		},
	}
}

func newBackupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.offlineManager()
			if err != nil {
				return err
			}
			infos, err := m.List()
			if err != nil {
				return err
			}
			return a.printResult(cmd, infos, func() {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "FILE\tCREATED\tTRIGGER\tSIZE")
				for _, i := range infos {
					if i.Manifest == nil {
						fmt.Fprintf(w, "%s\t-\tunreadable: %s\t%d\n", i.File, i.ReadError, i.Size)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", i.File,
						i.Manifest.CreatedAt.Format(time.RFC3339), i.Manifest.Trigger, i.Size)
				}
				w.Flush()
			})
		},
	}
}

func newBackupInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the manifest and verify every checksum",
		Long: `<file> is a path or the name of an archive in the backup directory.
Exits non-zero when any entry is missing, unexpected or does not match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				m, merr := a.offlineManager()
				if merr != nil {
					return merr
				}
				if path, err = m.Path(args[0]); err != nil {
					return err
				}
			}

			v, err := backup.Inspect(path)
			if err != nil {
				return err
			}
			if err := a.printResult(cmd, v, func() { printVerification(cmd, v) }); err != nil {
				return err
			}
			if !v.Valid {
				return fmt.Errorf("archive %s failed verification", path)
			}
			return nil
		},
	}
}

func printVerification(cmd *cobra.Command, v *backup.Verification) {
	out := cmd.OutOrStdout()
	man := v.Manifest
	fmt.Fprintf(out, "id:       %s\ncreated:  %s\ntrigger:  %s\ndialect:  %s\nschema:   v%d\n\n",
		man.ID, man.CreatedAt.Format(time.RFC3339), man.Trigger, man.Dialect, man.SchemaVersion)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tKIND\tSIZE\tROWS")
	for _, e := range man.Entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", e.Name, e.Kind, e.Size, e.Rows)
	}
	w.Flush()

	for _, n := range v.Mismatched {
		fmt.Fprintf(out, "checksum mismatch: %s\n", n)
	}
	for _, n := range v.Missing {
		fmt.Fprintf(out, "missing: %s\n", n)
	}
	for _, n := range v.Unexpected {
		fmt.Fprintf(out, "unexpected: %s\n", n)
	}
	if v.Valid {
		fmt.Fprintf(out, "\nOK: %d entries, %d bytes\n", len(man.Entries), man.TotalSize())
	}
}

func newBackupPruneCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.offlineManager()
			if err != nil {
				return err
			}
			if keep == 0 {
				keep = m.Keep()
			}
			removed, err := m.Prune(keep)
			if err != nil {
				return err
			}
			return a.printResult(cmd, map[string]any{"kept": keep, "removed": removed}, func() {
				for _, r := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", r)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d archive(s) removed, keeping %d\n", len(removed), keep)
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "archives to keep (default: BACKUP_KEEP)")
	return cmd
}
