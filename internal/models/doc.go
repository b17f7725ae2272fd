// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package models defines the data structures persisted by the audio library
// service: users, upload sessions, tracks, outbox messages, playlists,
// playback events and audit log entries. These are the only types the
// docstore gateway ever marshals; every status/role field is a closed
// string-typed enum with an IsTerminal-style helper rather than a bare
// string, so an invalid transition fails to compile rather than fail at
// runtime.
package models
