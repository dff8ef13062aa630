// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package storage keeps uploaded files on local disk.
//
// Blobs are stored flat in the uploads directory under random UUID names
// that keep the original extension; the original name lives in the files
// table. Images get a PNG thumbnail named <uuid>_thumb.png. Avatars are
// center-cropped squares re-encoded as PNG.
package storage
