// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/ids"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/outbox"
	"github.com/tomtom215/cartographus/internal/problem"
	"github.com/tomtom215/cartographus/internal/validation"
)

const (
	trackKind                  = "track"
	uploadSessionKind          = "upload_session"
	indexTrackByUser           = "track-by-user-for-search"
	indexTrackByStatus         = "track-by-status-for-lifecycle"
	indexUploadSessionByObject = "upload-session-by-object-key"

	uploadURLTTL = 15 * time.Minute

	trackLifecycleGracePeriod = 30 * 24 * time.Hour
)

// InitiateUpload handles POST /tracks/upload/initiate: reserves a track ID
// and an object store key, and returns a presigned PUT URL the client
// uploads bytes to directly.
func (h *Handler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req InitiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	trackID := ids.New()
	objectKey, err := objectstore.NewTrackObjectKey(hctx.UserID(), trackID)
	if err != nil {
		rw.Internal(err)
		return
	}

	uploadURL, expiresAt, err := h.presignPut(r.Context(), objectKey, req.ExpectedMIME, req.MaxSize)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("presign put failed")
		rw.Raise(problem.KindBadGateway, "object store is unavailable", nil)
		return
	}

	now := time.Now()
	session := &models.UploadSession{
		UploadID:        ids.New(),
		UserID:          hctx.UserID(),
		ReservedTrackID: trackID,
		ObjectKey:       objectKey,
		ExpectedMIME:    req.ExpectedMIME,
		MaxSize:         req.MaxSize,
		Title:           req.Title,
		Artist:          req.Artist,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		Status:          models.UploadPending,
		Version:         0,
	}

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:    uploadSessionKind,
		ID:      session.UploadID,
		Value:   session,
		Indexes: []docstore.Index{
			{Name: "upload-session-by-status-and-expiry", Key: string(session.Status)},
			{Name: indexUploadSessionByObject, Key: session.ObjectKey},
		},
	}); err != nil {
		rw.Internal(err)
		return
	}

	rw.Created(map[string]any{
		"upload_id":  session.UploadID,
		"track_id":   trackID,
		"upload_url": uploadURL,
		"expires_at": expiresAt,
	})
}

func (h *Handler) presignPut(ctx context.Context, key, mime string, size int64) (string, time.Time, error) {
	result, err := h.objectsPipe.Run(ctx, func(ctx context.Context) (any, error) {
		url, expiresAt, err := h.objects.PresignPut(ctx, key, mime, size, uploadURLTTL)
		if err != nil {
			return nil, err
		}
		return presignResult{url, expiresAt}, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	pr := result.(presignResult)
	return pr.url, pr.expiresAt, nil
}

type presignResult struct {
	url       string
	expiresAt time.Time
}

// ListTracks handles GET /tracks for the authenticated user.
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	limit := h.defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	if limit <= 0 || limit > h.maxPageSize {
		limit = h.defaultPageSize
	}

	var tracks []models.Track
	result, err := h.store.Query(r.Context(), trackKind, indexTrackByUser, hctx.UserID(), docstore.QueryOptions{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, &tracks)
	if err != nil {
		rw.Internal(err)
		return
	}

	rw.OK(map[string]any{
		"tracks":      tracks,
		"next_cursor": result.NextCursor,
	})
}

// GetTrack handles GET /tracks/{id}.
func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	trackID := chi.URLParam(r, "id")
	var track models.Track
	version, err := h.store.Load(r.Context(), trackKind, trackID, &track)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "track not found", nil)
		return
	} else if err != nil {
		rw.Internal(err)
		return
	}
	if !hctx.CanAccessTrack(track.UserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return
	}

	rw.OK(map[string]any{"track": track, "version": version})
}

// UpdateTrack handles PATCH /tracks/{id}.
func (h *Handler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req UpdateTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	trackID := chi.URLParam(r, "id")
	var track models.Track
	version, err := h.store.Load(r.Context(), trackKind, trackID, &track)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "track not found", nil)
		return
	} else if err != nil {
		rw.Internal(err)
		return
	}
	if !hctx.CanAccessTrack(track.UserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return
	}

	if req.Title != nil {
		track.Title = *req.Title
	}
	if req.Artist != nil {
		track.Artist = *req.Artist
	}
	track.UpdatedAt = time.Now()

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:            trackKind,
		ID:              trackID,
		ExpectedVersion: version,
		Value:           &track,
		Indexes: []docstore.Index{
			{Name: indexTrackByUser, Key: track.UserID},
			{Name: indexTrackByStatus, Key: string(track.Status)},
		},
	}); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "track was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}

	rw.OK(map[string]any{"track": track})
}

// DeleteTrack handles DELETE /tracks/{id}: soft-delete with a grace
// period, publishing track_deleted for the lifecycle worker (C11) to act
// on once the grace period elapses.
func (h *Handler) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	trackID := chi.URLParam(r, "id")
	var track models.Track
	version, err := h.store.Load(r.Context(), trackKind, trackID, &track)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "track not found", nil)
		return
	} else if err != nil {
		rw.Internal(err)
		return
	}
	if !hctx.CanAccessTrack(track.UserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return
	}
	if track.Status == models.TrackDeleted {
		rw.Raise(problem.KindConflict, "track is already deleted", nil)
		return
	}

	now := time.Now()
	scheduledAt := now.Add(trackLifecycleGracePeriod)
	track.StatusBeforeDeletion = track.Status
	track.Status = models.TrackDeleted
	track.DeletedAt = &now
	track.ScheduledDeletionAt = &scheduledAt
	track.UpdatedAt = now

	event := eventprocessor.NewAudioEvent(eventprocessor.EventTrackDeleted)
	event.TrackID = track.TrackID
	event.UserID = track.UserID
	event.ObjectKey = track.ObjectKey
	outboxOp, err := outbox.NewWriteOp(event, h.environment)
	if err != nil {
		rw.Internal(err)
		return
	}

	if err := h.store.Save(r.Context(),
		docstore.WriteOp{
			Kind:            trackKind,
			ID:              trackID,
			ExpectedVersion: version,
			Value:           &track,
			Indexes: []docstore.Index{
				{Name: indexTrackByUser, Key: track.UserID},
				{Name: indexTrackByStatus, Key: string(track.Status)},
			},
		},
		outboxOp,
	); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "track was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}

	rw.NoContent()
}

// RestoreTrack handles POST /tracks/{id}/restore: reverses a soft delete
// while the track is still inside its grace period.
func (h *Handler) RestoreTrack(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	trackID := chi.URLParam(r, "id")
	var track models.Track
	version, err := h.store.Load(r.Context(), trackKind, trackID, &track)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "track not found", nil)
		return
	} else if err != nil {
		rw.Internal(err)
		return
	}
	if !hctx.CanAccessTrack(track.UserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return
	}
	if !track.IsSoftDeleted() {
		rw.Raise(problem.KindConflict, "track is not pending deletion", nil)
		return
	}
	if track.ReadyForPurge(time.Now()) {
		rw.Raise(problem.KindConflict, "grace period has elapsed, track cannot be restored", nil)
		return
	}

	track.Status = track.StatusBeforeDeletion
	track.StatusBeforeDeletion = ""
	track.DeletedAt = nil
	track.ScheduledDeletionAt = nil
	track.UpdatedAt = time.Now()

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:            trackKind,
		ID:              trackID,
		ExpectedVersion: version,
		Value:           &track,
		Indexes: []docstore.Index{
			{Name: indexTrackByUser, Key: track.UserID},
			{Name: indexTrackByStatus, Key: string(track.Status)},
		},
	}); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "track was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}

	rw.OK(map[string]any{"track": track})
}

// StreamTrack handles POST /tracks/{id}/stream: issues a presigned GET
// URL for an audio-ready track, serving it from the encrypted cache when
// a live presign was already issued for this key.
func (h *Handler) StreamTrack(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	trackID := chi.URLParam(r, "id")
	var track models.Track
	_, err := h.store.Load(r.Context(), trackKind, trackID, &track)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "track not found", nil)
		return
	} else if err != nil {
		rw.Internal(err)
		return
	}
	if !hctx.CanAccessTrack(track.UserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return
	}
	if track.Status != models.TrackReady {
		rw.Raise(problem.KindConflict, "track is not ready for streaming", nil)
		return
	}

	cacheKey := "stream:" + track.ObjectKey
	if h.urlCache != nil {
		if cached, ok := h.urlCache.Get(cacheKey); ok {
			rw.OK(map[string]any{"stream_url": string(cached)})
			return
		}
	}

	result, err := h.objectsPipe.Run(r.Context(), func(ctx context.Context) (any, error) {
		url, expiresAt, err := h.objects.PresignGet(ctx, track.ObjectKey, h.streamTTL)
		if err != nil {
			return nil, err
		}
		return presignResult{url, expiresAt}, nil
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("presign get failed")
		rw.Raise(problem.KindBadGateway, "object store is unavailable", nil)
		return
	}
	pr := result.(presignResult)

	if h.urlCache != nil {
		ttl := time.Until(pr.expiresAt) - time.Minute
		if ttl > 0 {
			_ = h.urlCache.SetWithTTL(cacheKey, []byte(pr.url), ttl)
		}
	}

	rw.OK(map[string]any{"stream_url": pr.url, "expires_at": pr.expiresAt})
}
