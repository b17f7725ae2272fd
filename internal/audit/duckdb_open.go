// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// OpenDuckDBStore opens (or creates) a DuckDB-backed audit store at path,
// creating the backing table if it does not already exist. An empty path
// opens an in-memory database, which is adequate for a single process
// lifetime but does not survive a restart.
func OpenDuckDBStore(ctx context.Context, path string) (*DuckDBStore, *sql.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: open duckdb at %q: %w", dsn, err)
	}

	store := NewDuckDBStore(db)
	if err := store.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("audit: create audit_events table: %w", err)
	}

	return store, db, nil
}
