// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// TrackStatus is the closed set of lifecycle states for a Track.
// Legal transitions: Processing->Ready, Processing->Failed, Ready<->Deleted,
// Failed->Deleted. Ready->Processing and Failed->Processing never happen
// implicitly; only an explicit admin reprocess operation may re-enter
// Processing from Failed.
type TrackStatus string

const (
	TrackProcessing TrackStatus = "processing"
	TrackReady      TrackStatus = "ready"
	TrackFailed     TrackStatus = "failed"
	TrackDeleted    TrackStatus = "deleted"
)

// CanTransitionTo reports whether moving from s to next is a legal
// ordinary (non-admin-reprocess) Track transition.
func (s TrackStatus) CanTransitionTo(next TrackStatus) bool {
	switch s {
	case TrackProcessing:
		return next == TrackReady || next == TrackFailed
	case TrackReady:
		return next == TrackDeleted
	case TrackFailed:
		return next == TrackDeleted
	case TrackDeleted:
		return next == TrackReady || next == TrackFailed
	default:
		return false
	}
}

// TrackMetadata holds the fields the analyzer (C9) populates once a track
// reaches Ready. PeakCount and the encoded waveform live alongside it via
// WaveformObjectKey; the numeric peak array itself is stored in the object
// store, not inline, to keep documents small.
type TrackMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	Codec           string  `json:"codec"`
	PeakCount       int     `json:"peak_count"`
}

// Track is an uploaded audio file and its processing state.
type Track struct {
	TrackID              string         `json:"track_id"`
	UserID               string         `json:"user_id"`
	Title                string         `json:"title"`
	Artist               string         `json:"artist,omitempty"`
	ObjectKey            string         `json:"object_key"`
	WaveformObjectKey     string        `json:"waveform_object_key,omitempty"`
	MIME                 string         `json:"mime"`
	FileSize             int64          `json:"file_size"`
	Checksum             string         `json:"checksum"`
	Status               TrackStatus    `json:"status"`
	StatusBeforeDeletion TrackStatus    `json:"status_before_deletion,omitempty"`
	FailureReason        string         `json:"failure_reason,omitempty"`
	Metadata             *TrackMetadata `json:"metadata,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            *time.Time     `json:"deleted_at,omitempty"`
	ScheduledDeletionAt  *time.Time     `json:"scheduled_deletion_at,omitempty"`
	Version              int64         `json:"version"`
}

// IsSoftDeleted reports whether the track is in the deleted/grace-period
// state, i.e. both DeletedAt and ScheduledDeletionAt are set.
func (t *Track) IsSoftDeleted() bool {
	return t.Status == TrackDeleted && t.DeletedAt != nil && t.ScheduledDeletionAt != nil
}

// ReadyForPurge reports whether the grace period has elapsed.
func (t *Track) ReadyForPurge(now time.Time) bool {
	return t.IsSoftDeleted() && t.ScheduledDeletionAt != nil && now.After(*t.ScheduledDeletionAt)
}
