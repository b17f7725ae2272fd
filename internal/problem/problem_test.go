// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package problem_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/problem"
)

func TestRaiseWritesProblemJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tracks/abc", nil)
	rec := httptest.NewRecorder()

	problem.NewResponseWriter(rec, req).Raise(problem.KindNotFound, "track abc not found", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body problem.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "https://cartographus.dev/problems/not-found", body.Type)
	require.Equal(t, "Not Found", body.Title)
	require.Equal(t, http.StatusNotFound, body.Status)
	require.Equal(t, "/tracks/abc", body.Instance)
}

func TestValidationErrorsCarriesFieldMap(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tracks/upload/initiate", nil)
	rec := httptest.NewRecorder()

	problem.NewResponseWriter(rec, req).ValidationErrors(map[string]string{"title": "required"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body problem.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	ext, ok := body.Extensions.(map[string]interface{})
	require.True(t, ok)
	fields, ok := ext["fields"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "required", fields["title"])
}

func TestUnknownKindFallsBackToInternal(t *testing.T) {
	p := problem.New("not-a-real-kind", "/x", "oops", nil)
	require.Equal(t, http.StatusInternalServerError, p.Status)
	require.Equal(t, "Internal Server Error", p.Title)
}
