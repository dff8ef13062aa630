// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package models defines the data structures shared by the store, the HTTP API
and the realtime hub.

Model groups:

  - Accounts: User, PendingUser, InviteCode
  - Sales: Customer, Contact, Quote, QuoteLine, Invoice, InvoiceLine
  - Social: Post, Reaction, Message
  - Files: Folder, File
  - API plumbing: APIResponse, APIError, Page, ListOptions

Money is always an int64 number of minor units (cents). Quantities and
percentages are float64. ComputeLine and ComputeTotals are the only place
line and document totals are calculated, so quotes and the invoices copied
from them agree to the cent.
*/
package models
