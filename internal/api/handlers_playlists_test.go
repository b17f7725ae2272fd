// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/models"
)

func newPlaylistTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/playlists", h.CreatePlaylist)
	r.Get("/playlists", h.ListPlaylists)
	r.Get("/playlists/{id}", h.GetPlaylist)
	r.Patch("/playlists/{id}", h.UpdatePlaylist)
	r.Delete("/playlists/{id}", h.DeletePlaylist)
	r.Post("/playlists/{id}/entries", h.AddPlaylistEntry)
	r.Post("/playlists/{id}/entries/move", h.MovePlaylistEntry)
	r.Delete("/playlists/{id}/entries/{position}", h.RemovePlaylistEntry)
	return r
}

func TestCreatePlaylist_RequiresAuth(t *testing.T) {
	h := NewHandler(HandlerDeps{Store: newFakeStore()})
	router := newPlaylistTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/playlists", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateAndGetPlaylist_RoundTrip(t *testing.T) {
	h := NewHandler(HandlerDeps{Store: newFakeStore()})
	router := newPlaylistTestRouter(h)

	createReq := authedRequest(http.MethodPost, "/playlists", "user-1", []string{"viewer"}, CreatePlaylistRequest{
		Name: "Road Trip",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created playlist: %v", err)
	}
	if created.Name != "Road Trip" {
		t.Fatalf("expected name Road Trip, got %q", created.Name)
	}

	getReq := authedRequest(http.MethodGet, "/playlists/"+created.ID, "user-1", []string{"viewer"}, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, getReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetPlaylist_ForbiddenForOtherOwner(t *testing.T) {
	h := NewHandler(HandlerDeps{Store: newFakeStore()})
	router := newPlaylistTestRouter(h)

	createReq := authedRequest(http.MethodPost, "/playlists", "user-1", []string{"viewer"}, CreatePlaylistRequest{Name: "Mine"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, createReq)

	var created models.Playlist
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	getReq := authedRequest(http.MethodGet, "/playlists/"+created.ID, "user-2", []string{"viewer"}, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, getReq)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAddPlaylistEntry_AppendsAtEnd(t *testing.T) {
	h := NewHandler(HandlerDeps{Store: newFakeStore()})
	router := newPlaylistTestRouter(h)

	createReq := authedRequest(http.MethodPost, "/playlists", "user-1", []string{"viewer"}, CreatePlaylistRequest{Name: "Mix"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, createReq)
	var created models.Playlist
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	addReq := authedRequest(http.MethodPost, "/playlists/"+created.ID+"/entries", "user-1", []string{"viewer"}, AddPlaylistEntryRequest{
		TrackID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, addReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated playlist: %v", err)
	}
	if len(updated.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(updated.Entries))
	}
	if updated.Entries[0].TrackID != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Fatalf("unexpected track id %q", updated.Entries[0].TrackID)
	}
}

func TestCreatePlaylist_RejectsInvalidName(t *testing.T) {
	h := NewHandler(HandlerDeps{Store: newFakeStore()})
	router := newPlaylistTestRouter(h)

	req := authedRequest(http.MethodPost, "/playlists", "user-1", []string{"viewer"}, CreatePlaylistRequest{Name: ""})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
