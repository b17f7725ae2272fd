// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version. Increment when making
// breaking changes to AudioEvent.
const SchemaVersion = 1

// EventKind is the closed set of audio-domain events flowing over the bus.
type EventKind string

const (
	EventObjectCreated   EventKind = "object_created"
	EventUploadCompleted EventKind = "upload_completed"
	EventTrackReady      EventKind = "track_ready"
	EventTrackFailed     EventKind = "track_failed"
	EventTrackDeleted    EventKind = "track_deleted"
	EventTrackPurged     EventKind = "track_purged"
	EventPlayback        EventKind = "playback"
)

// Topic maps an EventKind to the bus topic it is published on, per the
// four topics the service exposes: {env}-audio-events, {env}-minio-events,
// {env}-track-deletions, {env}-telemetry-events.
func (k EventKind) Topic(env string) string {
	switch k {
	case EventObjectCreated:
		return env + "-minio-events"
	case EventTrackDeleted, EventTrackPurged:
		return env + "-track-deletions"
	case EventPlayback:
		return env + "-telemetry-events"
	default:
		return env + "-audio-events"
	}
}

// AudioEvent is the canonical envelope for every event the service
// publishes: upload completion, analyzer results, lifecycle transitions,
// and forwarded playback telemetry.
type AudioEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	Kind          EventKind `json:"kind"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	TrackID   string `json:"track_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	UploadID  string `json:"upload_id,omitempty"`

	SizeBytes int64  `json:"size_bytes,omitempty"`
	MIME      string `json:"mime,omitempty"`
	ETag      string `json:"etag,omitempty"`
	Checksum  string `json:"checksum,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	RawPayload []byte `json:"raw_payload,omitempty"`
}

// NewAudioEvent stamps a fresh EventID/Timestamp/SchemaVersion.
func NewAudioEvent(kind EventKind) *AudioEvent {
	return &AudioEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		Kind:          kind,
		Timestamp:     time.Now(),
	}
}

// Validate enforces the minimal shape every event must carry before it is
// eligible for publish.
func (e *AudioEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Kind == "" {
		return &ValidationError{Field: "kind", Message: "required"}
	}
	return nil
}

// ValidationError reports a single malformed field on an AudioEvent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("eventprocessor: field %q: %s", e.Field, e.Message)
}
