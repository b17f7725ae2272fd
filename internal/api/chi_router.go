// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api provides the Chi router wiring for the audio library HTTP
// surface.
//
// chi_router.go - Route table and middleware composition
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	appmiddleware "github.com/tomtom215/cartographus/internal/middleware"
	"github.com/tomtom215/cartographus/internal/principal"
	"github.com/tomtom215/cartographus/internal/problem"
)

// RouterConfig carries everything NewRouter needs beyond the Handler
// itself: the middleware factory and the token verifier that gates every
// authenticated route.
type RouterConfig struct {
	Handler     *Handler
	Middleware  *ChiMiddleware
	Verifier    *principal.Verifier
	PerfMonitor *appmiddleware.PerformanceMonitor
}

// NewRouter builds the complete Chi router for the audio library service,
// per the HTTP surface: health is unauthenticated, tracks/playlists/
// telemetry require any authenticated user, and /admin requires the admin
// role. principal.SetAuthErrorResponder is wired once here so 401/403
// rejections from principal.Authenticate/RequireRole render as RFC-7807
// problem+json instead of bare status codes.
func NewRouter(cfg RouterConfig) chi.Router {
	principal.SetAuthErrorResponder(func(w http.ResponseWriter, r *http.Request, status int, err error) {
		problem.NewResponseWriter(w, r).Raise(statusToKind(status), err.Error(), nil)
	})
	principal.SetAuthEventRecorder(func(r *http.Request, principalID string, denied bool, detail string) {
		cfg.Handler.recordAuthEvent(r, principalID, denied, detail)
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(RequestIDWithLogging())
	r.Use(APISecurityHeaders())
	r.Use(cfg.Middleware.CORS())
	r.Use(appmiddleware.PrometheusMetrics)
	r.Use(appmiddleware.Compression)
	if cfg.PerfMonitor != nil {
		r.Use(cfg.PerfMonitor.Middleware)
	}
	r.Use(E2EDebugLogging())

	h := cfg.Handler

	r.Group(func(r chi.Router) {
		r.Use(cfg.Middleware.RateLimitCustom(RateLimitHealth))
		r.Get("/health", h.Health)
		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(principal.Authenticate(cfg.Verifier))

		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitUploadInitiate))
			r.Post("/tracks/upload/initiate", h.InitiateUpload)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitStreamURL))
			r.Post("/tracks/{id}/stream", h.StreamTrack)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitTrackList))
			r.Get("/tracks", h.ListTracks)
			r.Get("/tracks/{id}", h.GetTrack)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitTrackUpdate))
			r.Patch("/tracks/{id}", h.UpdateTrack)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitTrackDelete))
			r.Delete("/tracks/{id}", h.DeleteTrack)
			r.Post("/tracks/{id}/restore", h.RestoreTrack)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitPlaylist))
			r.Post("/playlists", h.CreatePlaylist)
			r.Get("/playlists", h.ListPlaylists)
			r.Get("/playlists/{id}", h.GetPlaylist)
			r.Patch("/playlists/{id}", h.UpdatePlaylist)
			r.Delete("/playlists/{id}", h.DeletePlaylist)
			r.Post("/playlists/{id}/entries", h.AddPlaylistEntry)
			r.Post("/playlists/{id}/entries/move", h.MovePlaylistEntry)
			r.Delete("/playlists/{id}/entries/{position}", h.RemovePlaylistEntry)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitTelemetryIngest))
			r.Post("/telemetry/playback", h.IngestPlayback)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitTelemetryIngestBatch))
			r.Post("/telemetry/playback/batch", h.IngestPlaybackBatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(principal.RequireRole("admin"))
			r.Use(cfg.Middleware.RateLimitCustom(RateLimitAdmin))
			r.Post("/admin/users/{id}/roles", h.SetUserRole)
			r.Post("/admin/users/{id}/status", h.SetUserStatus)
			r.Get("/admin/audit", h.ListAuditLog)
			r.Post("/admin/audit/verify", h.VerifyAuditChain)
			r.Get("/admin/security-events", h.ListSecurityEvents)
			r.Get("/admin/performance", h.PerformanceStats)
		})
	})

	return r
}
