// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package spreadsheet

import (
	"context"
	"fmt"
	"io"

	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
)

// CustomerUpserter stores one imported row, matching existing customers by
// org number and then by name.
type CustomerUpserter interface {
	UpsertImportedCustomer(ctx context.Context, c *models.Customer, contact *models.Contact) (bool, error)
}

// RowError describes a row that was not imported. Row is 1-based as shown in
// spreadsheet programs.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a customer import.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

var customerColumns = []string{
	"name", "org_number", "email", "phone", "address", "postal_code",
	"city", "country", "notes", "contact_name", "contact_email", "contact_phone",
}

// headerAliases maps common spellings onto the canonical column names.
var headerAliases = map[string]string{
	"company":        "name",
	"customer":       "name",
	"org_nr":         "org_number",
	"orgnr":          "org_number",
	"organisation":   "org_number",
	"e_mail":         "email",
	"zip":            "postal_code",
	"postcode":       "postal_code",
	"contact":        "contact_name",
	"contact_e_mail": "contact_email",
}

// ImportCustomers reads the first sheet of r and upserts one customer per
// row. Row failures are collected; only unreadable workbooks or a missing
// name column fail the whole import.
func ImportCustomers(ctx context.Context, store CustomerUpserter, filename string, r io.Reader) (*ImportResult, error) {
	rows, err := ReadRows(r, filename)
	if err != nil {
		return nil, err
	}

	cols := mapColumns(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, ErrNoNameColumn
	}

	res := &ImportResult{Errors: []RowError{}}
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rowNum := i + 2
		if rowEmpty(row) {
			continue
		}
		get := func(col string) string {
			idx, ok := cols[col]
			if !ok {
				return ""
			}
			return cellValue(row, idx)
		}

		c := &models.Customer{
			Name:       get("name"),
			OrgNumber:  get("org_number"),
			Email:      get("email"),
			Phone:      get("phone"),
			Address:    get("address"),
			PostalCode: get("postal_code"),
			City:       get("city"),
			Country:    get("country"),
			Notes:      get("notes"),
		}
		if c.Name == "" {
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Message: "missing customer name"})
			continue
		}
		var contact *models.Contact
		if name := get("contact_name"); name != "" {
			contact = &models.Contact{Name: name, Email: get("contact_email"), Phone: get("contact_phone")}
		}

		created, err := store.UpsertImportedCustomer(ctx, c, contact)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Message: fmt.Sprintf("save %q: %v", c.Name, err)})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	logging.Ctx(ctx).Info().
		Str("file", filename).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Msg("customer import finished")
	return res, nil
}

// mapColumns finds the known columns in the header row. The first
// occurrence of a column wins.
func mapColumns(header []string) map[string]int {
	known := make(map[string]bool, len(customerColumns))
	for _, c := range customerColumns {
		known[c] = true
	}
	cols := make(map[string]int)
	for i, h := range header {
		name := normalizeHeader(h)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if !known[name] {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}
