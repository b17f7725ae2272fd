// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package principal

import (
	"errors"
	"net/http"
)

// RespondAuthError is overridden by the api package via SetAuthErrorResponder
// so this package does not need to depend on the problem+json envelope.
var RespondAuthError = func(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	w.WriteHeader(status)
}

// SetAuthErrorResponder lets callers install a richer auth-error response
// writer (e.g. RFC-7807 problem+json) without creating an import cycle.
func SetAuthErrorResponder(fn func(http.ResponseWriter, *http.Request, int, error)) {
	RespondAuthError = fn
}

// RecordAuthEvent is overridden by the api package via SetAuthEventRecorder
// so every bearer-token rejection and role-check denial can reach the
// security audit trail without this package depending on it directly.
var RecordAuthEvent = func(r *http.Request, principalID string, denied bool, detail string) {}

// SetAuthEventRecorder installs a callback invoked after every Authenticate
// rejection and RequireRole denial. principalID is empty when the request
// carried no valid token.
func SetAuthEventRecorder(fn func(r *http.Request, principalID string, denied bool, detail string)) {
	RecordAuthEvent = fn
}

// Authenticate returns middleware that verifies the bearer token and, on
// success, stores the resulting Principal on the request context. Requests
// without a valid token are rejected with 401 before reaching the handler.
func Authenticate(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := v.FromRequest(r)
			if err != nil {
				RecordAuthEvent(r, "", true, err.Error())
				RespondAuthError(w, r, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole returns middleware that rejects requests whose principal
// lacks role. Must run after Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p == nil {
				RecordAuthEvent(r, "", true, "no authenticated principal")
				RespondAuthError(w, r, http.StatusUnauthorized, errors.New("principal: no authenticated principal"))
				return
			}
			if !p.HasRole(role) {
				RecordAuthEvent(r, p.UserID, true, "role "+role+" required")
				RespondAuthError(w, r, http.StatusForbidden, errors.New("principal: role "+role+" required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
