// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package api provides the HTTP REST API layer for the audio library
service: track upload, streaming, playlists, telemetry ingest, and admin
operations, backed by internal/docstore and internal/objectstore.

Key Components:

  - Handler: request handlers grouped by domain (tracks, uploads, playlists,
    telemetry, admin, health) sharing one set of store/bus/cache dependencies.
  - Router: chi route tree and middleware stack assembly (chi_router.go).
  - HandlerContext: per-request principal and authorization helpers.
  - internal/problem: RFC-7807 problem+json error responses.
  - internal/principal: bearer token verification and context propagation.

API Surface (see SPEC_FULL.md §6 for the full table):

  - POST   /tracks/upload/initiate
  - GET    /tracks, /tracks/{id}
  - PATCH  /tracks/{id}
  - DELETE /tracks/{id}
  - POST   /tracks/{id}/restore
  - POST   /tracks/{id}/stream
  - CRUD+ops /playlists/...
  - POST   /telemetry/playback[/batch]
  - admin  /admin/...

Usage Example:

	handler := api.NewHandler(deps)
	router := api.NewRouter(handler, principalVerifier, middlewareConfig)
	http.ListenAndServe(":3857", router.SetupChi())

Security:

  - Bearer JWT authentication on every route except health and upload
    object-store callbacks.
  - Rate limiting per endpoint class via go-chi/httprate.
  - CORS via go-chi/cors, origins must be explicitly configured.

See Also:

  - internal/principal: authentication
  - internal/docstore: document persistence
  - internal/objectstore: presigned URL issuance
  - internal/models: request/response data structures
  - internal/middleware: HTTP middleware components
*/
package api
