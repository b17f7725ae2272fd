// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api provides HTTP request validation structs with go-playground/validator tags.
// These structs are used to validate incoming API request parameters before processing.
//
// The validation tags follow the go-playground/validator v10 syntax:
//   - required: field must be present and non-zero
//   - min,max: numeric or string length bounds
//   - oneof: value must be one of the specified options
//   - omitempty: skip validation if field is empty/zero
//
// Example usage:
//
//	req := InitiateUploadRequest{Title: "...", ExpectedMIME: "audio/mpeg", MaxSize: size}
//	if err := validation.ValidateStruct(&req); err != nil {
//	    problem.NewResponseWriter(w, r).ValidationErrors(fieldMap(err))
//	    return
//	}
package api

import (
	"github.com/tomtom215/cartographus/internal/validation"
)

// InitiateUploadRequest validates POST /tracks/upload/initiate. ExpectedMIME
// is restricted to the closed set of audio MIME types the analyzer (C9)
// knows how to probe.
type InitiateUploadRequest struct {
	Title        string `json:"title" validate:"required,min=1,max=300"`
	Artist       string `json:"artist" validate:"omitempty,max=300"`
	ExpectedMIME string `json:"expected_mime" validate:"required,oneof=audio/mpeg audio/flac audio/wav audio/ogg audio/aac audio/mp4"`
	MaxSize      int64  `json:"max_size" validate:"required,min=1,max=524288000"`
}

// UpdateTrackRequest validates PATCH /tracks/{id}. Only non-nil fields are
// applied; this lets clients send a sparse patch rather than a full
// replacement.
type UpdateTrackRequest struct {
	Title  *string `json:"title" validate:"omitempty,min=1,max=300"`
	Artist *string `json:"artist" validate:"omitempty,max=300"`
}

// ListTracksRequest validates the query parameters for GET /tracks.
type ListTracksRequest struct {
	Limit  int    `validate:"min=1,max=500"`
	Cursor string `validate:"omitempty,max=512"`
	Status string `validate:"omitempty,oneof=processing ready failed deleted"`
}

// StreamRequest validates POST /tracks/{id}/stream. It has no body fields
// today but exists so a future expiry override has somewhere to live
// without changing the handler signature.
type StreamRequest struct {
	TTLSeconds int `json:"ttl_seconds" validate:"omitempty,min=30,max=3600"`
}

// CreatePlaylistRequest validates POST /playlists.
type CreatePlaylistRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// UpdatePlaylistRequest validates PATCH /playlists/{id}.
type UpdatePlaylistRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// AddPlaylistEntryRequest validates POST /playlists/{id}/entries. TrackID
// is a ULID (internal/ids), 26 Crockford base32 characters.
type AddPlaylistEntryRequest struct {
	TrackID  string `json:"track_id" validate:"required,len=26,alphanum"`
	Position *int   `json:"position" validate:"omitempty,min=0"`
}

// MovePlaylistEntryRequest validates POST /playlists/{id}/entries/move.
type MovePlaylistEntryRequest struct {
	FromPosition int `json:"from_position" validate:"min=0"`
	ToPosition   int `json:"to_position" validate:"min=0"`
}

// PlaybackEventRequest validates a single event in POST /telemetry/playback
// and /telemetry/playback/batch.
type PlaybackEventRequest struct {
	Type            string   `json:"type" validate:"required,oneof=play_start play_stop play_progress play_complete seek"`
	TrackID         string   `json:"track_id" validate:"required"`
	ClientTS        string   `json:"client_ts" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	PositionSeconds *float64 `json:"position_seconds" validate:"omitempty,min=0"`
	SessionID       string   `json:"session_id" validate:"omitempty,max=128"`
	DeviceIDHash    string   `json:"device_id_hash" validate:"omitempty,max=128"`
}

// PlaybackBatchRequest validates POST /telemetry/playback/batch.
type PlaybackBatchRequest struct {
	Events []PlaybackEventRequest `json:"events" validate:"required,min=1,max=200,dive"`
}

// SetUserRoleRequest validates POST /admin/users/{id}/roles.
type SetUserRoleRequest struct {
	Role   string `json:"role" validate:"required,oneof=viewer editor admin"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// SetUserStatusRequest validates POST /admin/users/{id}/status.
type SetUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled"`
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// fieldErrors converts a validation.RequestValidationError into a
// field->message map suitable for problem.ResponseWriter.ValidationErrors.
func fieldErrors(err *validation.RequestValidationError) map[string]string {
	out := make(map[string]string, len(err.Errors()))
	for _, fe := range err.Errors() {
		out[fe.Field()] = fe.Error()
	}
	return out
}
