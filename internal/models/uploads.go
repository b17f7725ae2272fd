// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// UploadSessionStatus is the closed set of lifecycle states for an
// UploadSession. Transitions are Pending -> {Completed|Expired|Failed} only.
type UploadSessionStatus string

const (
	UploadPending   UploadSessionStatus = "pending"
	UploadCompleted UploadSessionStatus = "completed"
	UploadExpired   UploadSessionStatus = "expired"
	UploadFailed    UploadSessionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s UploadSessionStatus) IsTerminal() bool {
	switch s {
	case UploadCompleted, UploadExpired, UploadFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is a legal
// UploadSession transition.
func (s UploadSessionStatus) CanTransitionTo(next UploadSessionStatus) bool {
	if s != UploadPending {
		return false
	}
	switch next {
	case UploadCompleted, UploadExpired, UploadFailed:
		return true
	default:
		return false
	}
}

// UploadSession reserves an object-store key and a track-id before the
// client has uploaded any bytes. ObjectKey always has the shape
// audio/{user-id}/{track-id}/{16-byte-random}.
type UploadSession struct {
	UploadID        string              `json:"upload_id"`
	UserID          string              `json:"user_id"`
	ReservedTrackID string              `json:"reserved_track_id"`
	ObjectKey       string              `json:"object_key"`
	ExpectedMIME    string              `json:"expected_mime"`
	MaxSize         int64               `json:"max_size"`
	Title           string              `json:"title,omitempty"`
	Artist          string              `json:"artist,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
	Status          UploadSessionStatus `json:"status"`
	Version         int64               `json:"version"`
}

// IsExpired reports whether the session's presigned URL has lapsed.
func (s *UploadSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
