// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package main is the entry point for the Cartographus audio library server.
//
// Cartographus is a self-hosted audio library service: users upload tracks,
// the service analyzes and streams them back via presigned object-store
// URLs, and playback telemetry feeds an auditable event stream.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Document store: BadgerDB-backed metadata gateway (tracks, playlists, users, audit log)
//  3. Object store: MinIO-compatible gateway for track audio and waveform artifacts
//  4. Event bus: Watermill over NATS JetStream (or an in-process stub without the nats tag)
//  5. Principal verifier: JWT access-token issuance and verification
//  6. Security audit trail: DuckDB-backed (falls back to an in-memory ring
//     buffer if DuckDB cannot be opened), recording auth failures, authz
//     denials, and admin actions, independent of the tamper-evident admin
//     audit hash chain kept in the document store
//  7. HTTP server: Chi router with RFC-7807 problem+json error handling
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server      # Enable real NATS JetStream publisher/subscriber
//
// Without the nats tag, internal/eventprocessor falls back to a stub
// publisher/subscriber that fails closed (returns an error rather than
// silently dropping events), matching the fail-closed telemetry contract
// documented on Handler.IngestPlayback.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (configured shutdown timeout)
//   - Closes the document store
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cartographus/internal/analyzer"
	"github.com/tomtom215/cartographus/internal/api"
	"github.com/tomtom215/cartographus/internal/audit"
	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/ingest"
	"github.com/tomtom215/cartographus/internal/lifecycle"
	"github.com/tomtom215/cartographus/internal/logging"
	appmiddleware "github.com/tomtom215/cartographus/internal/middleware"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/outbox"
	"github.com/tomtom215/cartographus/internal/principal"
	"github.com/tomtom215/cartographus/internal/resilience"
	"github.com/tomtom215/cartographus/internal/supervisor"
	"github.com/tomtom215/cartographus/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("environment", cfg.Environment).Msg("Starting Cartographus audio library server")

	store, err := docstore.NewBadgerStore(cfg.DocStore.Dir)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.DocStore.Dir).Msg("Failed to open document store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()
	logging.Info().Str("dir", cfg.DocStore.Dir).Msg("Document store opened")

	objects, err := objectstore.NewMinioStore(objectstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Bucket:    cfg.ObjectStore.Bucket,
		UseTLS:    cfg.ObjectStore.UseTLS,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("endpoint", cfg.ObjectStore.Endpoint).Msg("Failed to construct object store client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := objects.EnsureBucket(ctx); err != nil {
		logging.Warn().Err(err).Str("bucket", cfg.ObjectStore.Bucket).Msg("Failed to ensure object store bucket exists (will retry on first use)")
	} else {
		logging.Info().Str("bucket", cfg.ObjectStore.Bucket).Msg("Object store bucket ready")
	}
	objectsPipe := resilience.New(resilience.ObjectConfig)

	var urlCache *cache.EncryptedCache
	if cfg.Cache.EncryptionSecret != "" {
		key, err := cache.NewKeyFromSecret(byte(cfg.Cache.KeyVersion), []byte(cfg.Cache.EncryptionSecret))
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to derive cache encryption key, presigned URL caching disabled")
		} else {
			inner := cache.NewCacher(cache.CacheConfig{Type: cache.CacheTypeLFU, TTL: cfg.Cache.DefaultTTL, Capacity: cfg.Cache.MaxEntries})
			urlCache, err = cache.NewEncryptedCache(inner, key)
			if err != nil {
				logging.Warn().Err(err).Msg("Failed to construct encrypted cache, presigned URL caching disabled")
				urlCache = nil
			} else {
				logging.Info().Int("max_entries", cfg.Cache.MaxEntries).Dur("ttl", cfg.Cache.DefaultTTL).Msg("Encrypted presigned-URL cache enabled")
			}
		}
	} else {
		logging.Info().Msg("Cache encryption secret not configured, presigned URL caching disabled")
	}

	publisherCfg := eventprocessor.DefaultPublisherConfig(cfg.NATS.URL)
	publisherCfg.MaxReconnects = cfg.NATS.MaxReconnects
	publisherCfg.ReconnectWait = cfg.NATS.ReconnectWait
	publisher, err := eventprocessor.NewPublisher(publisherCfg, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to construct event bus publisher, telemetry ingestion will fail closed")
	} else {
		logging.Info().Str("url", cfg.NATS.URL).Msg("Event bus publisher constructed")
	}

	if cfg.Auth.JWTSecret == "" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: auth.jwt_secret is not configured")
		logging.Warn().Msg("  Token verification will fail for every request.")
		logging.Warn().Msg("  Set JWT_SECRET before running in production.")
		logging.Warn().Msg("============================================================")
	}
	verifier, err := principal.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to construct principal verifier")
	}

	var auditLogger *audit.Logger
	var auditDB *sql.DB
	if cfg.Audit.Enabled {
		duckStore, db, err := audit.OpenDuckDBStore(ctx, cfg.Audit.DBPath)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to open audit DuckDB store, falling back to in-memory ring buffer")
			auditLogger = audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MemoryRingLen), &audit.Config{
				Enabled:         true,
				RetentionDays:   cfg.Audit.RetentionDays,
				CleanupInterval: cfg.Audit.CleanupInterval,
				BufferSize:      cfg.Audit.BufferSize,
			})
		} else {
			auditDB = db
			auditLogger = audit.NewLogger(duckStore, &audit.Config{
				Enabled:         true,
				RetentionDays:   cfg.Audit.RetentionDays,
				CleanupInterval: cfg.Audit.CleanupInterval,
				BufferSize:      cfg.Audit.BufferSize,
			})
			logging.Info().Str("path", cfg.Audit.DBPath).Msg("Security audit trail backed by DuckDB")
		}
		auditLogger.StartCleanupRoutine(ctx)
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit logger")
			}
			if auditDB != nil {
				if err := auditDB.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing audit DuckDB handle")
				}
			}
		}()
	} else {
		logging.Info().Msg("Security audit trail disabled (AUDIT_ENABLED=false)")
	}

	perfMonitor := appmiddleware.NewPerformanceMonitor(1000)

	handler := api.NewHandler(api.HandlerDeps{
		Store:           store,
		Objects:         objects,
		ObjectsPipe:     objectsPipe,
		URLCache:        urlCache,
		Publisher:       publisher,
		Verifier:        verifier,
		AuditLog:        auditLogger,
		PerfMonitor:     perfMonitor,
		Environment:     cfg.Environment,
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
		StreamTTL:       5 * time.Minute,
	})

	chiMiddleware := api.NewChiMiddlewareFromAuth(
		cfg.API.CORSOrigins,
		cfg.API.RateLimitReqs,
		cfg.API.RateLimitWindow,
		cfg.API.RateLimitDisabled,
	)
	if cfg.API.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (API_RATE_LIMIT_DISABLED=true) - do not use in production")
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:     handler,
		Middleware:  chiMiddleware,
		Verifier:    verifier,
		PerfMonitor: perfMonitor,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added to supervisor tree")

	if publisher != nil {
		outboxProcessor := outbox.NewProcessor(store, publisher, cfg.Outbox)
		tree.AddDataService(outboxProcessor)
		logging.Info().Msg("Outbox processor added to supervisor tree")
	} else {
		logging.Warn().Msg("Event bus publisher unavailable, outbox processor not started")
	}

	var invalidator lifecycle.Invalidator
	if urlCache != nil {
		invalidator = urlCache
	}
	purgeWorker := lifecycle.NewPurgeWorker(store, objects, invalidator, cfg.Lifecycle)
	tree.AddDataService(purgeWorker)
	logging.Info().Msg("Track lifecycle purge worker added to supervisor tree")

	subscriberCfg := eventprocessor.DefaultSubscriberConfig(cfg.NATS.URL)
	subscriberCfg.MaxReconnects = cfg.NATS.MaxReconnects
	subscriberCfg.ReconnectWait = cfg.NATS.ReconnectWait

	uploadSubscriber, err := eventprocessor.NewSubscriber(&subscriberCfg, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to construct upload ingest subscriber, uploads will not be processed")
	} else {
		ingestSource := ingest.NewEventSource(uploadSubscriber, eventprocessor.EventObjectCreated.Topic(cfg.Environment))
		ingestor := ingest.NewIngestor(store, objects, ingestSource, cfg.Ingest)
		tree.AddMessagingService(ingestor)
		logging.Info().Msg("Upload ingestor added to supervisor tree")
	}

	analysisSubscriber, err := eventprocessor.NewSubscriber(&subscriberCfg, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to construct audio analysis subscriber, uploads will not be analyzed")
	} else {
		analysisSource := analyzer.NewEventSource(analysisSubscriber, eventprocessor.EventUploadCompleted.Topic(cfg.Environment))
		audioAnalyzer := analyzer.NewAnalyzer(store, objects, analysisSource, cfg.Analyzer, nil, nil)
		tree.AddMessagingService(audioAnalyzer)
		logging.Info().Msg("Audio analyzer added to supervisor tree")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
