// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
handler_context.go - Request Context Helpers for Authorization

Thin wrapper around internal/principal giving handlers convenient
authorization checks without repeating role-hierarchy logic inline.

Usage:

	func (h *Handler) SomeHandler(w http.ResponseWriter, r *http.Request) {
	    hctx := GetHandlerContext(r)
	    if !hctx.IsAuthenticated() {
	        problem.NewResponseWriter(w, r).Raise(problem.KindUnauthorized, "authentication required", nil)
	        return
	    }
	    if !hctx.CanAccessUser(targetUserID) {
	        problem.NewResponseWriter(w, r).Raise(problem.KindForbidden, "access denied", nil)
	        return
	    }
	    // ... proceed with handler logic
	}
*/
package api

import (
	"net/http"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/principal"
)

// HandlerContext provides request-scoped authorization context for handlers.
type HandlerContext struct {
	// Principal is the authenticated caller. Nil for unauthenticated requests.
	Principal *principal.Principal

	// RequestID is the unique identifier for this request.
	RequestID string
}

// GetHandlerContext extracts the principal stored on the request context
// by principal.Authenticate and wraps it for handler-level checks.
func GetHandlerContext(r *http.Request) *HandlerContext {
	return &HandlerContext{
		Principal: principal.FromContext(r.Context()),
		RequestID: r.Header.Get("X-Request-ID"),
	}
}

// IsAuthenticated returns true if the request carries a verified principal.
func (hctx *HandlerContext) IsAuthenticated() bool {
	return hctx != nil && hctx.Principal != nil
}

// UserID returns the authenticated user's ID, or "" if unauthenticated.
func (hctx *HandlerContext) UserID() string {
	if !hctx.IsAuthenticated() {
		return ""
	}
	return hctx.Principal.UserID
}

// IsAdmin reports whether the caller holds the admin role.
func (hctx *HandlerContext) IsAdmin() bool {
	return hctx.IsAuthenticated() && hctx.Principal.IsAdmin()
}

// CanAccessUser reports whether the caller may access targetUserID's data:
// either they are that user, or they are an admin.
func (hctx *HandlerContext) CanAccessUser(targetUserID string) bool {
	if !hctx.IsAuthenticated() {
		return false
	}
	return hctx.Principal.UserID == targetUserID || hctx.Principal.IsAdmin()
}

// CanAccessTrack reports whether the caller may read or mutate a track
// owned by ownerUserID.
func (hctx *HandlerContext) CanAccessTrack(ownerUserID string) bool {
	return hctx.CanAccessUser(ownerUserID)
}

// HasRole reports whether the caller holds role (or a role that implies
// it, per models.RoleAdmin > RoleEditor > RoleViewer).
func (hctx *HandlerContext) HasRole(role string) bool {
	return hctx.IsAuthenticated() && hctx.Principal.HasRole(role)
}

// RequireAdmin reports whether the caller holds the admin role.
func (hctx *HandlerContext) RequireAdmin() bool {
	return hctx.HasRole(models.RoleAdmin)
}
