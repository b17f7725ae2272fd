// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/audit"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/models"
)

func newAdminTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/admin/users/{id}/roles", h.SetUserRole)
	r.Post("/admin/users/{id}/status", h.SetUserStatus)
	r.Get("/admin/audit", h.ListAuditLog)
	r.Post("/admin/audit/verify", h.VerifyAuditChain)
	r.Get("/admin/security-events", h.ListSecurityEvents)
	r.Get("/admin/performance", h.PerformanceStats)
	return r
}

func seedUser(t *testing.T, store *fakeStore, id string) {
	t.Helper()
	user := &models.User{ID: id, NormalizedEmail: id + "@example.test", Status: models.UserActive, Roles: []string{"viewer"}}
	if err := store.Save(context.Background(), docstore.WriteOp{
		Kind:    userKind,
		ID:      id,
		Value:   user,
		Indexes: []docstore.Index{{Name: indexUserByEmail, Key: user.NormalizedEmail}},
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestSetUserRole_RequiresAdmin(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "target-user")
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	req := authedRequest(http.MethodPost, "/admin/users/target-user/roles", "caller", []string{"viewer"}, SetUserRoleRequest{
		Role: "editor",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetUserRole_AdminSucceedsAndWritesAuditEntry(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "target-user")
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	req := authedRequest(http.MethodPost, "/admin/users/target-user/roles", "admin-user", []string{"admin"}, SetUserRoleRequest{
		Role:   "editor",
		Reason: "promoted for moderation duties",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reloaded models.User
	if _, err := store.Load(context.Background(), userKind, "target-user", &reloaded); err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !reloaded.HasRole("editor") {
		t.Fatalf("expected user to carry editor role, got %v", reloaded.Roles)
	}

	auditReq := authedRequest(http.MethodGet, "/admin/audit?target_id=target-user", "admin-user", []string{"admin"}, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, auditReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for audit query, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetUserStatus_RejectsInvalidStatus(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "target-user")
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	req := authedRequest(http.MethodPost, "/admin/users/target-user/status", "admin-user", []string{"admin"}, SetUserStatusRequest{
		Status: "banned",
		Reason: "policy violation",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyAuditChain_DetectsIntactChain(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "target-user")
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	// Two admin mutations append two linked entries to the hash chain.
	roleReq := authedRequest(http.MethodPost, "/admin/users/target-user/roles", "admin-user", []string{"admin"}, SetUserRoleRequest{
		Role: "editor",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, roleReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed role change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	statusReq := authedRequest(http.MethodPost, "/admin/users/target-user/status", "admin-user", []string{"admin"}, SetUserStatusRequest{
		Status: "disabled",
		Reason: "policy violation",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, statusReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed status change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	verifyReq := authedRequest(http.MethodPost, "/admin/audit/verify", "admin-user", []string{"admin"}, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, verifyReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report AuditTamperReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	// verify_audit_chain itself appends a third entry, but that happens
	// after the scan runs, so the scan should see exactly the two seeded
	// entries intact.
	if !report.OK || report.Verified != 2 || len(report.BrokenEntries) != 0 {
		t.Fatalf("expected intact chain of 2 entries, got %+v", report)
	}
}

func TestVerifyAuditChain_RequiresAdmin(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	req := authedRequest(http.MethodPost, "/admin/audit/verify", "caller", []string{"viewer"}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListSecurityEvents_ReturnsLoggedAuthFailure(t *testing.T) {
	store := newFakeStore()
	auditLog := audit.NewLogger(audit.NewMemoryStore(100), &audit.Config{Enabled: true, BufferSize: 10})
	h := NewHandler(HandlerDeps{Store: store, AuditLog: auditLog})
	router := newAdminTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/admin/security-events", nil)
	h.recordAuthEvent(req, "", true, "missing bearer token")

	// Log buffers writes on an async channel; Close drains it synchronously
	// so the event is guaranteed visible to the query below. The underlying
	// MemoryStore outlives the logger, so querying after Close is safe.
	if err := auditLog.Close(); err != nil {
		t.Fatalf("close audit logger: %v", err)
	}

	listReq := authedRequest(http.MethodGet, "/admin/security-events", "admin-user", []string{"admin"}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, listReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Events []audit.Event `json:"events"`
	}
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Events) == 0 {
		t.Fatal("expected at least one logged security event")
	}
}

func TestPerformanceStats_RequiresAdmin(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(HandlerDeps{Store: store})
	router := newAdminTestRouter(h)

	req := authedRequest(http.MethodGet, "/admin/performance", "caller", []string{"viewer"}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}
