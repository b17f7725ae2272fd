// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnavailable wraps any error from the underlying object store so
// callers in internal/resilience can classify it uniformly.
var ErrUnavailable = errors.New("objectstore: backend unavailable")

// ObjectCreatedEvent is emitted (via the NotificationBridge) whenever a
// PUT against a presigned URL completes successfully.
type ObjectCreatedEvent struct {
	ObjectKey string
	SizeBytes int64
	MIME      string
	ETag      string
	At        time.Time
}

// Store is the object store gateway.
type Store interface {
	// PresignPut returns a client-usable URL good for ttl that accepts a
	// single PUT of the given mime/size to key.
	PresignPut(ctx context.Context, key, mime string, size int64, ttl time.Duration) (url string, expiresAt time.Time, err error)

	// PresignGet returns a client-usable URL good for ttl that serves a
	// GET of key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (url string, expiresAt time.Time, err error)

	// DownloadToPath pulls the object at key to a local path, for worker
	// use (the analyzer needs a real file to hand to an external process).
	DownloadToPath(ctx context.Context, key, path string) error

	// UploadFromPath pushes a local path to key, used by workers that
	// write derived objects (e.g. waveform peaks).
	UploadFromPath(ctx context.Context, key, path, mime string) error

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// OpenReader streams key's bytes for server-side processing (the
	// ingestor's checksum pass). Errors, including a missing key, surface
	// on the first Read rather than on OpenReader itself.
	OpenReader(ctx context.Context, key string) (io.ReadCloser, error)

	// EnsureBucket provisions the configured bucket with versioning
	// enabled. Idempotent; called once at startup.
	EnsureBucket(ctx context.Context) error
}

// NotificationBridge republishes object-store notifications onto the
// event bus so C8 (the upload ingestor) can react to completed PUTs
// without polling.
type NotificationBridge interface {
	Run(ctx context.Context) error
}
