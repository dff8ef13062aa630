// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/spreadsheet"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import data from spreadsheets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "customers <file.xlsx|file.xls>",
		Short: "Create or update customers from a spreadsheet",
		Long: `The first sheet needs a header row with a "name" column. Optional columns:
org_number, email, phone, address, postal_code, city, country, notes.
Rows matching an existing organisation number (or name) update that customer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := spreadsheet.ImportCustomers(cmd.Context(), s.db, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			s.audit.Record(cmd.Context(), audit.EventTypeDataImport, audit.SystemActor(),
				&audit.Target{Type: "customers", ID: filepath.Base(args[0])}, "import",
				"Customer import from the command line",
				map[string]any{"created": res.Created, "updated": res.Updated, "skipped": res.Skipped})

			return a.printResult(cmd, res, func() {
				out := cmd.OutOrStdout()
				for _, e := range res.Errors {
					fmt.Fprintf(out, "row %d: %s\n", e.Row, e.Message)
				}
				fmt.Fprintf(out, "created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
			})
		},
	})
	return cmd
}
