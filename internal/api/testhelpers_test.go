// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/tomtom215/cartographus/internal/principal"
)

// authedRequest builds an httptest request carrying a verified principal
// directly on the context, bypassing principal.Authenticate so handler
// tests don't need a live Verifier/token round trip.
func authedRequest(method, target, userID string, roles []string, body any) *http.Request {
	var reader *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewBuffer(b)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	p := &principal.Principal{UserID: userID, Roles: roles}
	return req.WithContext(principal.ContextWithPrincipal(req.Context(), p))
}
