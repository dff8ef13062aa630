// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

// Package testinfra starts containers for integration tests.
//
// Everything except this file is behind the integration build tag:
//
//	go test -tags integration ./internal/database/...
//
// # Postgres Container
//
// NewPostgresContainer runs a throwaway Postgres server so store tests
// exercise the postgres dialect (placeholder rebinding, identity columns,
// row locking under concurrent transitions) against a real server:
//
//	func TestPostgresStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//	}
//
// Tests are skipped when Docker is not available. The first run downloads
// the image.
package testinfra
