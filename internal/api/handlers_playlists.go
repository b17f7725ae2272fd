// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/ids"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/problem"
	"github.com/tomtom215/cartographus/internal/validation"
)

const (
	playlistKind         = "playlist"
	indexPlaylistByOwner = "playlist-by-owner"
)

// CreatePlaylist handles POST /playlists.
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req CreatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	var existing []models.Playlist
	result, err := h.store.Query(r.Context(), playlistKind, indexPlaylistByOwner, hctx.UserID(), docstore.QueryOptions{Limit: models.MaxPlaylistsPerOwner + 1}, &existing)
	if err != nil {
		rw.Internal(err)
		return
	}
	if len(existing) >= models.MaxPlaylistsPerOwner && result.NextCursor == "" {
		rw.Raise(problem.KindQuotaExceeded, "playlist limit reached", nil)
		return
	}

	now := time.Now()
	playlist := &models.Playlist{
		ID:          ids.New(),
		OwnerUserID: hctx.UserID(),
		Name:        req.Name,
		Description: req.Description,
		Entries:     []models.PlaylistEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:    playlistKind,
		ID:      playlist.ID,
		Value:   playlist,
		Indexes: []docstore.Index{{Name: indexPlaylistByOwner, Key: playlist.OwnerUserID}},
	}); err != nil {
		rw.Internal(err)
		return
	}

	rw.Created(playlist)
}

// ListPlaylists handles GET /playlists for the authenticated owner.
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var playlists []models.Playlist
	result, err := h.store.Query(r.Context(), playlistKind, indexPlaylistByOwner, hctx.UserID(), docstore.QueryOptions{
		Limit:  h.defaultPageSize,
		Cursor: r.URL.Query().Get("cursor"),
	}, &playlists)
	if err != nil {
		rw.Internal(err)
		return
	}

	rw.OK(map[string]any{"playlists": playlists, "next_cursor": result.NextCursor})
}

// loadOwnedPlaylist loads a playlist by ID and checks the caller owns it,
// writing a problem response and returning ok=false on any failure.
func (h *Handler) loadOwnedPlaylist(w http.ResponseWriter, r *http.Request, hctx *HandlerContext) (playlist *models.Playlist, version int64, ok bool) {
	rw := problem.NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	var p models.Playlist
	version, err := h.store.Load(r.Context(), playlistKind, id, &p)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "playlist not found", nil)
		return nil, 0, false
	} else if err != nil {
		rw.Internal(err)
		return nil, 0, false
	}
	if !hctx.CanAccessUser(p.OwnerUserID) {
		rw.Raise(problem.KindForbidden, "access denied", nil)
		return nil, 0, false
	}
	return &p, version, true
}

// GetPlaylist handles GET /playlists/{id}.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		problem.NewResponseWriter(w, r).Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	playlist, _, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}
	problem.NewResponseWriter(w, r).OK(playlist)
}

// UpdatePlaylist handles PATCH /playlists/{id}.
func (h *Handler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req UpdatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	playlist, version, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}

	if req.Name != nil {
		playlist.Name = *req.Name
	}
	if req.Description != nil {
		playlist.Description = *req.Description
	}
	playlist.UpdatedAt = time.Now()

	if err := h.savePlaylist(r.Context(), playlist, version); err != nil {
		h.respondPlaylistSaveError(rw, err)
		return
	}
	rw.OK(playlist)
}

// DeletePlaylist handles DELETE /playlists/{id}.
func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	playlist, version, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), playlistKind, playlist.ID, version); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "playlist was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}
	rw.NoContent()
}

// AddPlaylistEntry handles POST /playlists/{id}/entries.
func (h *Handler) AddPlaylistEntry(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req AddPlaylistEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	playlist, version, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}
	if len(playlist.Entries) >= models.MaxPlaylistEntries {
		rw.Raise(problem.KindQuotaExceeded, "playlist entry limit reached", nil)
		return
	}

	entry := models.PlaylistEntry{TrackID: req.TrackID, AddedAt: time.Now()}
	insertAt := len(playlist.Entries)
	if req.Position != nil && *req.Position >= 0 && *req.Position <= len(playlist.Entries) {
		insertAt = *req.Position
	}
	playlist.Entries = append(playlist.Entries, models.PlaylistEntry{})
	copy(playlist.Entries[insertAt+1:], playlist.Entries[insertAt:])
	playlist.Entries[insertAt] = entry
	playlist.Renumber()
	playlist.UpdatedAt = time.Now()

	if err := h.savePlaylist(r.Context(), playlist, version); err != nil {
		h.respondPlaylistSaveError(rw, err)
		return
	}
	rw.OK(playlist)
}

// MovePlaylistEntry handles POST /playlists/{id}/entries/move.
func (h *Handler) MovePlaylistEntry(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	var req MovePlaylistEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	playlist, version, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}
	if req.FromPosition >= len(playlist.Entries) || req.ToPosition >= len(playlist.Entries) {
		rw.Raise(problem.KindValidation, "position out of range", nil)
		return
	}

	entry := playlist.Entries[req.FromPosition]
	playlist.Entries = append(playlist.Entries[:req.FromPosition], playlist.Entries[req.FromPosition+1:]...)
	rest := append([]models.PlaylistEntry{}, playlist.Entries[:req.ToPosition]...)
	rest = append(rest, entry)
	rest = append(rest, playlist.Entries[req.ToPosition:]...)
	playlist.Entries = rest
	playlist.Renumber()
	playlist.UpdatedAt = time.Now()

	if err := h.savePlaylist(r.Context(), playlist, version); err != nil {
		h.respondPlaylistSaveError(rw, err)
		return
	}
	rw.OK(playlist)
}

// RemovePlaylistEntry handles DELETE /playlists/{id}/entries/{position}.
func (h *Handler) RemovePlaylistEntry(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}

	playlist, version, ok := h.loadOwnedPlaylist(w, r, hctx)
	if !ok {
		return
	}

	position := -1
	fmt.Sscanf(chi.URLParam(r, "position"), "%d", &position)
	if position < 0 || position >= len(playlist.Entries) {
		rw.Raise(problem.KindValidation, "position out of range", nil)
		return
	}

	playlist.Entries = append(playlist.Entries[:position], playlist.Entries[position+1:]...)
	playlist.Renumber()
	playlist.UpdatedAt = time.Now()

	if err := h.savePlaylist(r.Context(), playlist, version); err != nil {
		h.respondPlaylistSaveError(rw, err)
		return
	}
	rw.OK(playlist)
}

// savePlaylist persists playlist. TotalDuration is maintained by the
// playlist reorder engine (C13) when it recomputes durations from
// Track.Metadata; callers here only touch entry order and identity.
func (h *Handler) savePlaylist(ctx context.Context, playlist *models.Playlist, version int64) error {
	return h.store.Save(ctx, docstore.WriteOp{
		Kind:            playlistKind,
		ID:              playlist.ID,
		ExpectedVersion: version,
		Value:           playlist,
		Indexes:         []docstore.Index{{Name: indexPlaylistByOwner, Key: playlist.OwnerUserID}},
	})
}

func (h *Handler) respondPlaylistSaveError(rw *problem.ResponseWriter, err error) {
	var conflict *docstore.ErrConflict
	if errors.As(err, &conflict) {
		rw.Raise(problem.KindConflict, "playlist was modified concurrently, retry", nil)
		return
	}
	rw.Internal(err)
}
