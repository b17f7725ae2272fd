// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/problem"
	"github.com/tomtom215/cartographus/internal/validation"
)

// IngestPlayback handles POST /telemetry/playback: validates a single
// playback event and forwards it to the telemetry-events topic. The
// event is never persisted by the core; only the bus and whatever
// downstream consumer subscribes to it sees it.
func (h *Handler) IngestPlayback(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req PlaybackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	event, err := h.toPlaybackEvent(hctx.UserID(), &req)
	if err != nil {
		rw.Raise(problem.KindValidation, err.Error(), nil)
		return
	}

	if err := h.publishPlayback(r.Context(), event); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to publish playback event")
		rw.Raise(problem.KindBadGateway, "event bus is unavailable", nil)
		return
	}

	rw.NoContent()
}

// IngestPlaybackBatch handles POST /telemetry/playback/batch: validates
// and forwards up to 200 playback events in one request. Partial failure
// is reported per-index so the client can retry only the bad entries.
func (h *Handler) IngestPlaybackBatch(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req PlaybackBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	failures := make(map[string]string)
	accepted := 0
	for i, evReq := range req.Events {
		event, err := h.toPlaybackEvent(hctx.UserID(), &evReq)
		if err != nil {
			failures[fmtIndex(i)] = err.Error()
			continue
		}
		if err := h.publishPlayback(r.Context(), event); err != nil {
			failures[fmtIndex(i)] = "event bus unavailable"
			continue
		}
		accepted++
	}

	if len(failures) > 0 {
		rw.JSON(http.StatusMultiStatus, map[string]any{
			"accepted": accepted,
			"failed":   failures,
		})
		return
	}
	rw.NoContent()
}

func (h *Handler) toPlaybackEvent(userID string, req *PlaybackEventRequest) (*models.PlaybackEvent, error) {
	clientTS, err := time.Parse(time.RFC3339, req.ClientTS)
	if err != nil {
		return nil, err
	}
	event := &models.PlaybackEvent{
		Type:            models.PlaybackEventType(req.Type),
		TrackID:         req.TrackID,
		UserID:          userID,
		ClientTS:        clientTS,
		PositionSeconds: req.PositionSeconds,
		SessionID:       req.SessionID,
		DeviceIDHash:    req.DeviceIDHash,
	}
	if !event.Valid(time.Now()) {
		return nil, errPlaybackEventInvalid
	}
	return event, nil
}

func (h *Handler) publishPlayback(ctx context.Context, event *models.PlaybackEvent) error {
	ae := eventprocessor.NewAudioEvent(eventprocessor.EventPlayback)
	ae.TrackID = event.TrackID
	ae.UserID = event.UserID
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ae.RawPayload = payload
	return h.publisher.PublishEvent(ctx, h.environment, ae)
}

func fmtIndex(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(digits[i/10]) + string(digits[i%10])
}
