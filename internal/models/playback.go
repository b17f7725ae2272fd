// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// PlaybackEventType is the closed set of telemetry event kinds emitted by
// listening clients. PlaybackEvent is ephemeral: it is validated and
// forwarded to the bus, never persisted by the core.
type PlaybackEventType string

const (
	PlaybackStart    PlaybackEventType = "play_start"
	PlaybackStop     PlaybackEventType = "play_stop"
	PlaybackProgress PlaybackEventType = "play_progress"
	PlaybackComplete PlaybackEventType = "play_complete"
	PlaybackSeek     PlaybackEventType = "seek"
)

// PlaybackEvent is a single telemetry record from a listening client.
type PlaybackEvent struct {
	Type                  PlaybackEventType `json:"type"`
	TrackID               string            `json:"track_id"`
	UserID                string            `json:"user_id"`
	ClientTS              time.Time         `json:"client_ts"`
	PositionSeconds       *float64          `json:"position_seconds,omitempty"`
	DurationPlayedSeconds *float64          `json:"duration_played_seconds,omitempty"`
	SessionID             string            `json:"session_id,omitempty"`
	DeviceIDHash          string            `json:"device_id_hash,omitempty"`
}

// Valid reports whether the event satisfies the acceptance window and
// non-negativity invariants. now is injected so tests stay deterministic.
func (e *PlaybackEvent) Valid(now time.Time) bool {
	earliest := now.Add(-24 * time.Hour)
	latest := now.Add(5 * time.Minute)
	if e.ClientTS.Before(earliest) || e.ClientTS.After(latest) {
		return false
	}
	if e.PositionSeconds != nil && *e.PositionSeconds < 0 {
		return false
	}
	if e.DurationPlayedSeconds != nil && *e.DurationPlayedSeconds < 0 {
		return false
	}
	return e.TrackID != "" && e.UserID != ""
}
