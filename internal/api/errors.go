// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api provides HTTP handlers for the audio library service.
//
// errors.go - Common API error definitions
package api

import "errors"

// Common API errors
var (
	// ErrQuotaExceeded indicates the user's storage or track-count quota
	// would be exceeded by the requested operation.
	ErrQuotaExceeded = errors.New("api: storage or track quota exceeded")

	// ErrUploadSessionExpired indicates the upload session's presigned
	// URL has lapsed.
	ErrUploadSessionExpired = errors.New("api: upload session expired")

	// ErrTrackNotReady indicates an operation that requires Status ==
	// Ready was attempted against a track still processing or failed.
	ErrTrackNotReady = errors.New("api: track is not ready")

	// errPlaybackEventInvalid indicates a playback event failed its
	// acceptance-window or non-negativity invariant (models.PlaybackEvent.Valid).
	errPlaybackEventInvalid = errors.New("api: playback event outside acceptance window or invalid")
)
