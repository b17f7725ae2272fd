// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// MaxPlaylistEntries bounds the number of tracks a single playlist may hold.
const MaxPlaylistEntries = 10000

// MaxPlaylistsPerOwner bounds the number of playlists a single owner may hold.
const MaxPlaylistsPerOwner = 200

// PlaylistEntry is one (position, track) pairing inside a Playlist.
// Entries are indexed by contiguous 0..n-1 position.
type PlaylistEntry struct {
	Position int       `json:"position"`
	TrackID  string    `json:"track_id"`
	AddedAt  time.Time `json:"added_at"`
}

// Playlist is an ordered collection of tracks owned by one user.
// TotalDuration and TrackCount are derived fields that must always equal
// the sum/count over Entries; they are recomputed on every mutation rather
// than trusted from a caller.
type Playlist struct {
	ID            string          `json:"id"`
	OwnerUserID   string          `json:"owner_user_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Entries       []PlaylistEntry `json:"entries"`
	TotalDuration float64         `json:"total_duration"`
	TrackCount    int             `json:"track_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

// Renumber reassigns contiguous 0..n-1 positions to Entries in their
// current slice order. Callers must call this after any insert, move, or
// remove so the position invariant always holds.
func (p *Playlist) Renumber() {
	for i := range p.Entries {
		p.Entries[i].Position = i
	}
	p.TrackCount = len(p.Entries)
}
