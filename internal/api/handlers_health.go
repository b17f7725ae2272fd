// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cartographus/internal/problem"
)

// healthStatus is the /health response body.
type healthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DocStoreConnected bool    `json:"docstore_connected"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	docstoreConnected := h.store != nil

	status := "healthy"
	if !docstoreConnected {
		status = "degraded"
	}

	problem.NewResponseWriter(w, r).OK(&healthStatus{
		Status:            status,
		Version:           "1.0.0",
		DocStoreConnected: docstoreConnected,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	})
}

// HealthLive handles GET /health/live: returns 200 if the process is
// alive, regardless of dependency state. Kubernetes liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	problem.NewResponseWriter(w, r).OK(map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /health/ready: returns 200 only once the
// document store is reachable. Kubernetes readiness probe.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.store != nil
	rw := problem.NewResponseWriter(w, r)
	if !ready {
		rw.Raise(problem.KindUnavailable, "document store is not ready", nil)
		return
	}
	rw.OK(map[string]any{"ready": true})
}
