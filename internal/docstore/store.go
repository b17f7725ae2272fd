// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package docstore

import (
	"context"
	"errors"
	"fmt"
)

// MaxQueryLimit bounds every index scan. Callers that need more must page
// through Cursor.
const MaxQueryLimit = 10000

// ErrConflict is returned when a write's ExpectedVersion does not match
// the version currently stored for that document.
type ErrConflict struct {
	Kind     string
	ID       string
	Expected int64
	Actual   int64
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("docstore: conflict on %s/%s: expected version %d, got %d", e.Kind, e.ID, e.Expected, e.Actual)
}

// ErrNotFound is returned by Load when no document exists for kind/id.
var ErrNotFound = errors.New("docstore: not found")

// Index describes one secondary index a WriteOp should maintain.
type Index struct {
	Name string
	Key  string
}

// WriteOp is one document write inside a Save call. When ExpectedVersion
// is 0 the write is treated as a create and fails with ErrConflict if a
// document already exists. Value must already be JSON-marshalable; Save
// marshals it itself so callers never juggle raw bytes.
type WriteOp struct {
	Kind            string
	ID              string
	ExpectedVersion int64
	Value           any
	Indexes         []Index
	Delete          bool
}

// QueryOptions controls an index scan.
type QueryOptions struct {
	Limit int
	// WaitForNonStale asks the backend to block until any async index
	// maintenance has settled. The Badger-backed Store implements index
	// updates synchronously inside the same transaction as the write, so
	// this is a documented no-op here; it exists so a future
	// eventually-consistent backend can honor it without changing the
	// interface.
	WaitForNonStale bool
	// Cursor resumes a previous bounded scan; empty starts from the
	// beginning of the index.
	Cursor string
}

// QueryResult carries a page of matches plus a cursor for the next page,
// which is empty once the scan is exhausted.
type QueryResult struct {
	NextCursor string
}

// Store is the document store gateway.
type Store interface {
	// Load fetches one document by kind/id, unmarshaling it into out
	// (a pointer), and returns its current version.
	Load(ctx context.Context, kind, id string, out any) (version int64, err error)

	// Query scans the named secondary index for documents whose indexed
	// value equals key, unmarshaling matches into outSlice (a pointer to
	// a slice). Callers MUST set opts.Limit; queries over MaxQueryLimit
	// are rejected.
	Query(ctx context.Context, kind, index string, key any, opts QueryOptions, outSlice any) (QueryResult, error)

	// Save commits one or more WriteOps atomically.
	Save(ctx context.Context, ops ...WriteOp) error

	// Delete removes a document, guarded by its expected version.
	Delete(ctx context.Context, kind, id string, expectedVersion int64) error

	// Close releases the underlying storage handle.
	Close() error
}
