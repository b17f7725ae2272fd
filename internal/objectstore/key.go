// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package objectstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewTrackObjectKey composes the object key an UploadSession reserves,
// of the shape audio/{user-id}/{track-id}/{16-byte-random}.
func NewTrackObjectKey(userID, trackID string) (string, error) {
	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("objectstore: generate key suffix: %w", err)
	}
	return fmt.Sprintf("audio/%s/%s/%s", userID, trackID, hex.EncodeToString(suffix)), nil
}

// WaveformObjectKey derives the companion key for a track's peak data.
func WaveformObjectKey(trackObjectKey string) string {
	return trackObjectKey + ".peaks.json"
}
