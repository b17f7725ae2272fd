// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package problem implements RFC-7807 (application/problem+json) error
responses for the HTTP API.

# Usage

	rw := problem.NewResponseWriter(w, r)
	track, err := store.GetTrack(ctx, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
	        rw.Raise(problem.KindNotFound, "track not found", nil)
	        return
	case err != nil:
	        rw.Internal(err)
	        return
	}
	rw.OK(track)

# Kinds

Each well-known Kind constant maps to a stable Type URI suffix, an RFC
7231 status code, and a default Title. Extensions carries structured,
machine-readable context (e.g. a field->message validation map) that a
client can act on without parsing Detail.
*/
package problem
