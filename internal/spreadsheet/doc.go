// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package spreadsheet imports customers from .xlsx/.xls workbooks and
// exports quotes and invoices as .xlsx.
package spreadsheet
