// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package ingest implements the upload ingestor (C8): a bounded pool of
// bus consumers reacting to object-created events, turning a completed
// PUT into a Track row plus an outbox-enqueued analysis event in one
// docstore transaction.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/outbox"
)

const (
	trackKind                  = "track"
	uploadSessionKind          = "upload_session"
	indexTrackByStatus         = "track-by-status-for-lifecycle"
	indexUploadSessionByObject = "upload-session-by-object-key"
)

// ObjectReader is the narrow object store surface the ingestor needs: a
// streaming reader for the checksum pass and Delete for rejected uploads.
type ObjectReader interface {
	OpenReader(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventSource abstracts the bus subscription so tests can drive the
// ingestor's handler directly instead of standing up a NATS subscriber.
// *eventprocessor.Subscriber satisfies this via NewEventSource below.
type EventSource interface {
	Run(ctx context.Context, handle func(ctx context.Context, event *eventprocessor.AudioEvent) error) error
}

type subscriberSource struct {
	sub   *eventprocessor.Subscriber
	topic string
}

// NewEventSource adapts a durable bus subscriber bound to topic into an
// EventSource.
func NewEventSource(sub *eventprocessor.Subscriber, topic string) EventSource {
	return &subscriberSource{sub: sub, topic: topic}
}

func (s *subscriberSource) Run(ctx context.Context, handle func(context.Context, *eventprocessor.AudioEvent) error) error {
	return s.sub.NewEventHandler(s.topic).Handle(handle).Run(ctx)
}

// retryableError marks an error as transient: the caller should NACK so
// the bus redelivers rather than acking it as a terminal outcome.
type retryableError struct{ cause error }

func (e *retryableError) Error() string { return e.cause.Error() }
func (e *retryableError) Unwrap() error { return e.cause }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{cause: err}
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Ingestor is the suture-supervised upload ingestor.
type Ingestor struct {
	store   docstore.Store
	objects ObjectReader
	source  EventSource
	cfg     config.IngestConfig
	logger  zerolog.Logger
}

// NewIngestor constructs an Ingestor. source is typically built with
// NewEventSource bound to the `{env}-minio-events` topic.
func NewIngestor(store docstore.Store, objects ObjectReader, source EventSource, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{
		store:   store,
		objects: objects,
		source:  source,
		cfg:     cfg,
		logger:  logging.WithComponent("ingest"),
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (g *Ingestor) String() string {
	return "ingest.Ingestor"
}

// Serve implements suture.Service. It runs cfg.WorkerCount independent
// subscriptions against the same topic; NATS queue-group semantics
// (configured on the underlying SubscriberConfig) load-balance deliveries
// across them, giving the bounded-concurrency pool SPEC_FULL §4.8 calls for
// without this package reimplementing subscription fan-out itself.
func (g *Ingestor) Serve(ctx context.Context) error {
	workers := g.cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}

	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- g.source.Run(ctx, g.handle)
		}()
	}

	var first error
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil && first == nil && !errors.Is(err, context.Canceled) {
			first = err
		}
	}
	if first != nil {
		return first
	}
	return ctx.Err()
}

// handle implements SPEC_FULL §4.8's exact algorithm. It returns nil for
// every terminal outcome (ack, including business-rule rejections) and a
// retryable error only when the failure is transient and redelivery is
// expected to help.
func (g *Ingestor) handle(ctx context.Context, event *eventprocessor.AudioEvent) error {
	session, version, err := g.loadSessionByObjectKey(ctx, event.ObjectKey)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			g.logger.Warn().Str("object_key", event.ObjectKey).Msg("ingest: no upload session for object, treating as orphan")
			return nil
		}
		metrics.RecordIngestOutcome("store_unavailable")
		return retryable(err)
	}

	if session.Status == models.UploadCompleted {
		// Redelivery of an event whose upload already completed: the
		// object now belongs to a live Track, so this is an idempotent
		// no-op rather than a rejection.
		metrics.RecordIngestOutcome("already_completed")
		return nil
	}
	if session.IsExpired(time.Now()) || session.Status != models.UploadPending {
		if session.Status == models.UploadPending {
			session.Status = models.UploadExpired
			if err := g.saveSession(ctx, session, version); err != nil {
				metrics.RecordIngestOutcome("store_unavailable")
				return retryable(err)
			}
		}
		if err := g.objects.Delete(ctx, event.ObjectKey); err != nil {
			metrics.RecordIngestOutcome("store_unavailable")
			return retryable(err)
		}
		metrics.RecordIngestOutcome("expired_or_not_pending")
		return nil
	}

	if event.MIME != session.ExpectedMIME || event.SizeBytes > session.MaxSize {
		return g.rejectSession(ctx, session, version, event.ObjectKey, "validation_failed")
	}

	checksum, err := g.checksum(ctx, event.ObjectKey)
	if err != nil {
		metrics.RecordIngestOutcome("store_unavailable")
		return retryable(err)
	}

	track := &models.Track{
		TrackID:   session.ReservedTrackID,
		UserID:    session.UserID,
		Title:     session.Title,
		Artist:    session.Artist,
		ObjectKey: event.ObjectKey,
		MIME:      event.MIME,
		FileSize:  event.SizeBytes,
		Checksum:  checksum,
		Status:    models.TrackProcessing,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	session.Status = models.UploadCompleted

	analysisEvent := eventprocessor.NewAudioEvent(eventprocessor.EventUploadCompleted)
	analysisEvent.CorrelationID = event.CorrelationID
	analysisEvent.TrackID = track.TrackID
	analysisEvent.UserID = track.UserID
	analysisEvent.ObjectKey = track.ObjectKey
	analysisEvent.MIME = track.MIME
	analysisEvent.SizeBytes = track.FileSize
	analysisEvent.Checksum = track.Checksum

	outboxOp, err := outbox.NewWriteOp(analysisEvent, g.cfg.Environment)
	if err != nil {
		g.logger.Error().Err(err).Msg("ingest: building outbox write op failed")
		return nil
	}

	if err := g.store.Save(ctx,
		docstore.WriteOp{
			Kind:  trackKind,
			ID:    track.TrackID,
			Value: track,
			Indexes: []docstore.Index{
				{Name: "track-by-user-for-search", Key: track.UserID},
				{Name: indexTrackByStatus, Key: string(track.Status)},
			},
		},
		docstore.WriteOp{
			Kind:            uploadSessionKind,
			ID:              session.UploadID,
			ExpectedVersion: version,
			Value:           session,
			Indexes: []docstore.Index{
				{Name: "upload-session-by-status-and-expiry", Key: string(session.Status)},
				{Name: indexUploadSessionByObject, Key: session.ObjectKey},
			},
		},
		outboxOp,
	); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			return retryable(err)
		}
		metrics.RecordIngestOutcome("store_unavailable")
		return retryable(err)
	}

	metrics.RecordIngestOutcome("completed")
	return nil
}

func (g *Ingestor) rejectSession(ctx context.Context, session *models.UploadSession, version int64, objectKey, reason string) error {
	session.Status = models.UploadFailed
	if err := g.saveSession(ctx, session, version); err != nil {
		metrics.RecordIngestOutcome("store_unavailable")
		return retryable(err)
	}
	if err := g.objects.Delete(ctx, objectKey); err != nil {
		metrics.RecordIngestOutcome("store_unavailable")
		return retryable(err)
	}
	metrics.RecordIngestOutcome(reason)
	return nil
}

func (g *Ingestor) saveSession(ctx context.Context, session *models.UploadSession, version int64) error {
	return g.store.Save(ctx, docstore.WriteOp{
		Kind:            uploadSessionKind,
		ID:              session.UploadID,
		ExpectedVersion: version,
		Value:           session,
		Indexes: []docstore.Index{
			{Name: "upload-session-by-status-and-expiry", Key: string(session.Status)},
			{Name: indexUploadSessionByObject, Key: session.ObjectKey},
		},
	})
}

func (g *Ingestor) loadSessionByObjectKey(ctx context.Context, objectKey string) (*models.UploadSession, int64, error) {
	var matches []models.UploadSession
	_, err := g.store.Query(ctx, uploadSessionKind, indexUploadSessionByObject, objectKey, docstore.QueryOptions{Limit: 1}, &matches)
	if err != nil {
		return nil, 0, err
	}
	if len(matches) == 0 {
		return nil, 0, docstore.ErrNotFound
	}
	session := matches[0]
	version, err := g.store.Load(ctx, uploadSessionKind, session.UploadID, &session)
	if err != nil {
		return nil, 0, err
	}
	return &session, version, nil
}

func (g *Ingestor) checksum(ctx context.Context, objectKey string) (string, error) {
	r, err := g.objects.OpenReader(ctx, objectKey)
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := sha256.New()
	bufSize := g.cfg.ChecksumBufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	if _, err := io.CopyBuffer(h, r, make([]byte, bufSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
