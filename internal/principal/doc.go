// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package principal implements the service's authentication boundary: a
// short-lived HMAC-signed access token (golang-jwt/jwt/v5), a Verifier that
// mints and checks it, and chi middleware that stores the resulting
// Principal on the request context for handlers to read.
//
// It intentionally knows nothing about the document store. Refresh-token
// exchange, role assignment, and quota enforcement are handled by the
// caller using models.User and models.RefreshToken; this package only
// answers "who is making this request, and what roles did their token
// carry at mint time".
package principal
