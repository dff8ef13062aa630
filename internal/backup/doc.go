// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package backup writes and inspects portal backups.

Archive Structure:

	portico-backup-{timestamp}-{id}.tar.xz
	├── manifest.json            (first entry: id, dialect, SHA-256 per entry)
	├── database/portico.db      (sqlite: VACUUM INTO snapshot)
	├── tables/{table}.jsonl     (postgres, duckdb: one JSON object per row)
	└── uploads/...              (when backup.include_uploads is set)

The manifest is written first so List only decompresses the head of each
archive. Entries are staged and hashed before the archive is written.

Retention keeps the newest backup.keep archives. The Scheduler creates a
backup every backup.interval and applies retention afterwards.
*/
package backup
