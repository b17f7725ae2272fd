// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package lifecycle implements the track soft-delete purge sweep (C11): a
// periodic, suture-supervised service that hard-deletes tracks once their
// grace period has elapsed, removing both the object store payload and
// any cached presigned stream URL.
package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
)

const (
	trackKind          = "track"
	indexTrackByStatus = "track-by-status-for-lifecycle"
)

// ObjectDeleter is the narrow object store surface the purge worker needs.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Invalidator breaks the cache<->streaming<->lifecycle dependency cycle:
// the streaming issuer (C10) owns the encrypted presigned-URL cache, and
// the purge worker only needs to evict one key per purged track, so it
// depends on this narrow interface rather than *cache.EncryptedCache
// directly.
type Invalidator interface {
	Delete(key string)
}

// PurgeWorker is the suture-supervised periodic sweep.
type PurgeWorker struct {
	store       docstore.Store
	objects     ObjectDeleter
	invalidator Invalidator
	cfg         config.LifecycleConfig
	logger      zerolog.Logger
}

// NewPurgeWorker constructs a PurgeWorker. invalidator may be nil when no
// stream-URL cache is configured.
func NewPurgeWorker(store docstore.Store, objects ObjectDeleter, invalidator Invalidator, cfg config.LifecycleConfig) *PurgeWorker {
	return &PurgeWorker{
		store:       store,
		objects:     objects,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logging.WithComponent("lifecycle"),
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (w *PurgeWorker) String() string {
	return "lifecycle.PurgeWorker"
}

// Serve implements suture.Service: it sweeps at cfg.SweepInterval until
// ctx is canceled.
func (w *PurgeWorker) Serve(ctx context.Context) error {
	interval := w.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep purges every deleted track whose grace period has elapsed, paging
// through the track-by-status index with the cursor docstore.Query
// returns so a single run never holds an unbounded result set in memory.
func (w *PurgeWorker) sweep(ctx context.Context) {
	limit := w.cfg.SweepBatch
	if limit <= 0 {
		limit = 500
	}

	now := time.Now()
	cursor := ""
	purged := 0
	for {
		var batch []models.Track
		result, err := w.store.Query(ctx, trackKind, indexTrackByStatus, string(models.TrackDeleted), docstore.QueryOptions{
			Limit:  limit,
			Cursor: cursor,
		}, &batch)
		if err != nil {
			w.logger.Error().Err(err).Msg("lifecycle purge query failed")
			return
		}

		for i := range batch {
			track := &batch[i]
			if !track.ReadyForPurge(now) {
				continue
			}
			if w.purgeOne(ctx, track) {
				purged++
			}
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	if purged > 0 {
		w.logger.Info().Int("purged", purged).Msg("lifecycle purge sweep complete")
	}
}

// purgeOne hard-deletes a single track: object store payload, waveform
// artifact if present, cached stream URL, then the docstore row itself.
// Idempotent on re-run: an object store 404 on an already-removed key is
// not treated as a failure that blocks the docstore delete.
func (w *PurgeWorker) purgeOne(ctx context.Context, track *models.Track) bool {
	if err := w.objects.Delete(ctx, track.ObjectKey); err != nil {
		w.logger.Warn().Err(err).Str("track_id", track.TrackID).Str("object_key", track.ObjectKey).Msg("purge: object delete failed, will retry next sweep")
		return false
	}
	if track.WaveformObjectKey != "" {
		if err := w.objects.Delete(ctx, track.WaveformObjectKey); err != nil {
			w.logger.Warn().Err(err).Str("track_id", track.TrackID).Msg("purge: waveform delete failed, will retry next sweep")
			return false
		}
	}
	if w.invalidator != nil {
		w.invalidator.Delete("stream:" + track.ObjectKey)
	}

	if err := w.store.Delete(ctx, trackKind, track.TrackID, track.Version); err != nil {
		w.logger.Error().Err(err).Str("track_id", track.TrackID).Msg("purge: docstore delete failed")
		return false
	}

	metrics.RecordTrackPurged()
	return true
}
