// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package principal_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/principal"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	v, err := principal.NewVerifier("test-secret-value-long-enough", time.Minute)
	require.NoError(t, err)

	token, expiresAt, err := v.Issue("user-1", "a@example.com", []string{models.RoleEditor})
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	p, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", p.UserID)
	require.True(t, p.HasRole(models.RoleEditor))
	require.True(t, p.HasRole(models.RoleViewer))
	require.False(t, p.HasRole(models.RoleAdmin))
}

func TestNewVerifierRejectsEmptySecret(t *testing.T) {
	_, err := principal.NewVerifier("", time.Minute)
	require.Error(t, err)
}

func TestFromRequestRequiresBearerPrefix(t *testing.T) {
	v, err := principal.NewVerifier("test-secret-value-long-enough", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tracks", nil)
	_, err = v.FromRequest(req)
	require.ErrorIs(t, err, principal.ErrMissingToken)

	token, _, err := v.Issue("user-1", "a@example.com", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	p, err := v.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "user-1", p.UserID)
}

func TestAdminImpliesEditorAndViewer(t *testing.T) {
	p := &principal.Principal{UserID: "u", Roles: []string{models.RoleAdmin}}
	require.True(t, p.IsAdmin())
	require.True(t, p.HasRole(models.RoleEditor))
	require.True(t, p.HasRole(models.RoleViewer))
}
