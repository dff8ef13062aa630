// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package query provides SQL query building utilities for the database package.
//
// # Overview
//
// WhereBuilder assembles the optional filters of list endpoints into one
// parameterized WHERE clause. Values never end up in the SQL text:
//
//	wb := query.NewWhereBuilder()
//	query.AddIn(wb, "q.status", "accepted", "invoiced")
//	wb.AddEquals("q.customer_id", filter.CustomerID)
//	wb.AddSearch(filter.Search, "LOWER(q.quote_number)", "LOWER(q.title)")
//	where, args := wb.BuildWithPrefix()
//
// Zero values passed to AddEquals, empty lists passed to AddIn and blank
// search terms are skipped, so handlers can pass query parameters through
// unchanged.
//
// # Placeholders
//
// Conditions use ? placeholders. The database package rebinds them for
// postgres before execution.
//
// # Search
//
// AddSearch lower-cases the term and escapes LIKE wildcards, so a search for
// "50%" matches the literal text.
package query
