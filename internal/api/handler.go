// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"time"

	"github.com/tomtom215/cartographus/internal/audit"
	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	appmiddleware "github.com/tomtom215/cartographus/internal/middleware"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/principal"
	"github.com/tomtom215/cartographus/internal/resilience"
)

// Handler groups the dependencies every HTTP handler in this package
// needs: the document store gateway, the object store gateway (wrapped in
// a resilience pipeline), the encrypted presigned-URL cache, the event
// bus publisher, the principal verifier for endpoints that mint tokens
// directly, and the security-event audit logger.
type Handler struct {
	store       docstore.Store
	objects     *objectstore.MinioStore
	objectsPipe *resilience.Pipeline
	urlCache    *cache.EncryptedCache
	publisher   *eventprocessor.Publisher
	verifier    *principal.Verifier
	auditLog    *audit.Logger
	perf        *appmiddleware.PerformanceMonitor

	environment string
	startTime   time.Time

	defaultPageSize int
	maxPageSize     int

	streamTTL time.Duration
}

// HandlerDeps carries the constructed dependencies NewHandler wires
// together. Every field is required except urlCache, which degrades to
// uncached presign calls when nil (e.g. in tests), and AuditLog, which
// degrades to a no-op (audit.Logger tolerates a nil store internally, but
// a nil *Handler.auditLog skips logging outright so tests need not stand
// one up).
type HandlerDeps struct {
	Store       docstore.Store
	Objects     *objectstore.MinioStore
	ObjectsPipe *resilience.Pipeline
	URLCache    *cache.EncryptedCache
	Publisher   *eventprocessor.Publisher
	Verifier    *principal.Verifier
	AuditLog    *audit.Logger
	PerfMonitor *appmiddleware.PerformanceMonitor

	Environment     string
	DefaultPageSize int
	MaxPageSize     int
	StreamTTL       time.Duration
}

// NewHandler constructs a Handler from deps, applying sane defaults for
// pagination and stream URL TTL when the caller leaves them zero.
func NewHandler(deps HandlerDeps) *Handler {
	if deps.DefaultPageSize <= 0 {
		deps.DefaultPageSize = 50
	}
	if deps.MaxPageSize <= 0 {
		deps.MaxPageSize = 500
	}
	if deps.StreamTTL <= 0 {
		deps.StreamTTL = 5 * time.Minute
	}
	return &Handler{
		store:           deps.Store,
		objects:         deps.Objects,
		objectsPipe:     deps.ObjectsPipe,
		urlCache:        deps.URLCache,
		publisher:       deps.Publisher,
		verifier:        deps.Verifier,
		auditLog:        deps.AuditLog,
		perf:            deps.PerfMonitor,
		environment:     deps.Environment,
		startTime:       time.Now(),
		defaultPageSize: deps.DefaultPageSize,
		maxPageSize:     deps.MaxPageSize,
		streamTTL:       deps.StreamTTL,
	}
}
