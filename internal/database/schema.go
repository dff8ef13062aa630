// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

// tableDef is one table in a portable form. Type tokens ({{ID}}, {{TS}}, ...)
// are substituted per dialect by Dialect.render.
type tableDef struct {
	name     string
	ddl      string
	identity bool // has a generated id column
}

// tables are listed in dependency order: every table appears after the
// tables it references. Copy and restore rely on this order.
var tables = []tableDef{
	{"users", `CREATE TABLE IF NOT EXISTS users (
	id {{ID}},
	username {{TEXT}} NOT NULL UNIQUE,
	email {{TEXT}} NOT NULL DEFAULT '',
	password_hash {{TEXT}} NOT NULL,
	display_name {{TEXT}} NOT NULL DEFAULT '',
	role {{TEXT}} NOT NULL DEFAULT 'user',
	avatar_file {{TEXT}} NOT NULL DEFAULT '',
	is_active {{BOOL}} NOT NULL DEFAULT TRUE,
	created_at {{TS}} NOT NULL,
	last_seen_at {{TS}}
)`, true},
	{"pending_users", `CREATE TABLE IF NOT EXISTS pending_users (
	id {{ID}},
	username {{TEXT}} NOT NULL UNIQUE,
	email {{TEXT}} NOT NULL DEFAULT '',
	password_hash {{TEXT}} NOT NULL,
	display_name {{TEXT}} NOT NULL DEFAULT '',
	created_at {{TS}} NOT NULL
)`, true},
	{"invite_codes", `CREATE TABLE IF NOT EXISTS invite_codes (
	id {{ID}},
	code {{TEXT}} NOT NULL UNIQUE,
	created_by {{BIGINT}} NOT NULL REFERENCES users(id),
	expires_at {{TS}} NOT NULL,
	used_by {{BIGINT}} REFERENCES users(id),
	used_at {{TS}},
	created_at {{TS}} NOT NULL
)`, true},
	{"customers", `CREATE TABLE IF NOT EXISTS customers (
	id {{ID}},
	name {{TEXT}} NOT NULL,
	org_number {{TEXT}} NOT NULL DEFAULT '',
	email {{TEXT}} NOT NULL DEFAULT '',
	phone {{TEXT}} NOT NULL DEFAULT '',
	address {{TEXT}} NOT NULL DEFAULT '',
	postal_code {{TEXT}} NOT NULL DEFAULT '',
	city {{TEXT}} NOT NULL DEFAULT '',
	country {{TEXT}} NOT NULL DEFAULT '',
	notes {{TEXT}} NOT NULL DEFAULT '',
	created_at {{TS}} NOT NULL,
	updated_at {{TS}} NOT NULL
)`, true},
	{"customer_contacts", `CREATE TABLE IF NOT EXISTS customer_contacts (
	id {{ID}},
	customer_id {{BIGINT}} NOT NULL REFERENCES customers(id) {{CASCADE}},
	name {{TEXT}} NOT NULL,
	email {{TEXT}} NOT NULL DEFAULT '',
	phone {{TEXT}} NOT NULL DEFAULT '',
	title {{TEXT}} NOT NULL DEFAULT '',
	created_at {{TS}} NOT NULL
)`, true},
	{"quotes", `CREATE TABLE IF NOT EXISTS quotes (
	id {{ID}},
	quote_number {{TEXT}} NOT NULL UNIQUE,
	customer_id {{BIGINT}} NOT NULL REFERENCES customers(id),
	contact_id {{BIGINT}},
	title {{TEXT}} NOT NULL,
	status {{TEXT}} NOT NULL DEFAULT 'draft',
	currency {{TEXT}} NOT NULL DEFAULT 'SEK',
	notes {{TEXT}} NOT NULL DEFAULT '',
	valid_until {{TS}},
	created_by {{BIGINT}} NOT NULL,
	created_at {{TS}} NOT NULL,
	updated_at {{TS}} NOT NULL,
	sent_at {{TS}},
	accepted_at {{TS}},
	rejected_at {{TS}},
	order_number {{TEXT}} UNIQUE,
	invoiced_at {{TS}},
	version {{BIGINT}} NOT NULL DEFAULT 1
)`, true},
	{"quote_lines", `CREATE TABLE IF NOT EXISTS quote_lines (
	id {{ID}},
	quote_id {{BIGINT}} NOT NULL REFERENCES quotes(id) {{CASCADE}},
	position {{INT}} NOT NULL,
	description {{TEXT}} NOT NULL,
	quantity {{REAL}} NOT NULL DEFAULT 1,
	unit {{TEXT}} NOT NULL DEFAULT '',
	unit_price_cents {{BIGINT}} NOT NULL DEFAULT 0,
	discount_pct {{REAL}} NOT NULL DEFAULT 0,
	vat_pct {{REAL}} NOT NULL DEFAULT 0
)`, true},
	{"invoices", `CREATE TABLE IF NOT EXISTS invoices (
	id {{ID}},
	invoice_number {{TEXT}} NOT NULL UNIQUE,
	quote_id {{BIGINT}} NOT NULL REFERENCES quotes(id),
	customer_id {{BIGINT}} NOT NULL REFERENCES customers(id),
	status {{TEXT}} NOT NULL DEFAULT 'issued',
	issue_date {{TS}} NOT NULL,
	due_date {{TS}} NOT NULL,
	subtotal_cents {{BIGINT}} NOT NULL,
	vat_cents {{BIGINT}} NOT NULL,
	total_cents {{BIGINT}} NOT NULL,
	currency {{TEXT}} NOT NULL,
	paid_at {{TS}},
	cancelled_at {{TS}},
	created_by {{BIGINT}} NOT NULL,
	created_at {{TS}} NOT NULL
)`, true},
	{"invoice_lines", `CREATE TABLE IF NOT EXISTS invoice_lines (
	id {{ID}},
	invoice_id {{BIGINT}} NOT NULL REFERENCES invoices(id) {{CASCADE}},
	position {{INT}} NOT NULL,
	description {{TEXT}} NOT NULL,
	quantity {{REAL}} NOT NULL,
	unit {{TEXT}} NOT NULL DEFAULT '',
	unit_price_cents {{BIGINT}} NOT NULL,
	discount_pct {{REAL}} NOT NULL DEFAULT 0,
	vat_pct {{REAL}} NOT NULL DEFAULT 0,
	line_total_cents {{BIGINT}} NOT NULL
)`, true},
	{"folders", `CREATE TABLE IF NOT EXISTS folders (
	id {{ID}},
	name {{TEXT}} NOT NULL,
	parent_id {{BIGINT}} REFERENCES folders(id),
	created_by {{BIGINT}} NOT NULL,
	created_at {{TS}} NOT NULL
)`, true},
	{"files", `CREATE TABLE IF NOT EXISTS files (
	id {{ID}},
	folder_id {{BIGINT}} REFERENCES folders(id),
	original_name {{TEXT}} NOT NULL,
	stored_name {{TEXT}} NOT NULL UNIQUE,
	mime_type {{TEXT}} NOT NULL DEFAULT 'application/octet-stream',
	size_bytes {{BIGINT}} NOT NULL,
	sha256 {{TEXT}} NOT NULL,
	thumbnail_name {{TEXT}} NOT NULL DEFAULT '',
	uploaded_by {{BIGINT}} NOT NULL,
	created_at {{TS}} NOT NULL
)`, true},
	{"posts", `CREATE TABLE IF NOT EXISTS posts (
	id {{ID}},
	author_id {{BIGINT}} NOT NULL REFERENCES users(id),
	content {{TEXT}} NOT NULL,
	image_file_id {{BIGINT}} REFERENCES files(id) {{SETNULL}},
	created_at {{TS}} NOT NULL,
	updated_at {{TS}} NOT NULL
)`, true},
	{"reactions", `CREATE TABLE IF NOT EXISTS reactions (
	id {{ID}},
	post_id {{BIGINT}} NOT NULL REFERENCES posts(id) {{CASCADE}},
	user_id {{BIGINT}} NOT NULL,
	emoji {{TEXT}} NOT NULL,
	created_at {{TS}} NOT NULL,
	UNIQUE (post_id, user_id, emoji)
)`, true},
	{"messages", `CREATE TABLE IF NOT EXISTS messages (
	id {{ID}},
	sender_id {{BIGINT}} NOT NULL,
	recipient_id {{BIGINT}},
	channel {{TEXT}} NOT NULL DEFAULT '',
	content {{TEXT}} NOT NULL,
	created_at {{TS}} NOT NULL,
	read_at {{TS}}
)`, true},
	{"counters", `CREATE TABLE IF NOT EXISTS counters (
	name {{TEXT}} PRIMARY KEY,
	value {{BIGINT}} NOT NULL
)`, false},
	{"idempotency_keys", `CREATE TABLE IF NOT EXISTS idempotency_keys (
	key {{TEXT}} PRIMARY KEY,
	action {{TEXT}} NOT NULL,
	quote_id {{BIGINT}} NOT NULL,
	result_id {{BIGINT}} NOT NULL,
	created_at {{TS}} NOT NULL
)`, false},
	{"audit_events", `CREATE TABLE IF NOT EXISTS audit_events (
	id {{TEXT}} PRIMARY KEY,
	timestamp {{TS}} NOT NULL,
	type {{TEXT}} NOT NULL,
	severity {{TEXT}} NOT NULL,
	outcome {{TEXT}} NOT NULL,
	actor_id {{TEXT}} NOT NULL DEFAULT '',
	actor_name {{TEXT}} NOT NULL DEFAULT '',
	target_type {{TEXT}} NOT NULL DEFAULT '',
	target_id {{TEXT}} NOT NULL DEFAULT '',
	action {{TEXT}} NOT NULL,
	description {{TEXT}} NOT NULL DEFAULT '',
	metadata {{TEXT}},
	source_ip {{TEXT}} NOT NULL DEFAULT '',
	request_id {{TEXT}} NOT NULL DEFAULT ''
)`, false},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_contacts_customer ON customer_contacts(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_org ON customers(org_number)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_customer ON quotes(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status)`,
	`CREATE INDEX IF NOT EXISTS idx_quote_lines_quote ON quote_lines(quote_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_quote ON invoices(quote_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reactions_post ON reactions(post_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_idempotency_created ON idempotency_keys(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id)`,
}

// TableNames lists every application table in dependency order.
func TableNames() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.name
	}
	return out
}

// IdentityTables lists tables whose id column is generated.
func IdentityTables() []string {
	var out []string
	for _, t := range tables {
		if t.identity {
			out = append(out, t.name)
		}
	}
	return out
}

// schemaStatements renders the full schema for dialect d.
func schemaStatements(d Dialect) []string {
	var stmts []string
	for _, t := range tables {
		if d == DuckDB && t.identity {
			stmts = append(stmts, "CREATE SEQUENCE IF NOT EXISTS seq_"+t.name)
		}
		stmts = append(stmts, d.render(t.name, t.ddl))
	}
	return stmts
}
