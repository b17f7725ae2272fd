// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/audit"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/ids"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/problem"
	"github.com/tomtom215/cartographus/internal/validation"
)

const (
	userKind      = "user"
	auditKind     = "audit_log"
	auditHeadKind = "audit_chain_head"
	auditHeadID   = "global"
	auditChainAll = "all"

	indexUserByEmail   = "user-by-normalized-email"
	indexAuditByTarget = "audit-by-target"
	indexAuditByChain  = "audit-by-chain"
)

// auditChainHead tracks the tip of the tamper-evident audit hash chain so
// each new entry can link to the previous one without scanning the index.
type auditChainHead struct {
	LastHash string `json:"last_hash"`
}

// loadAdminTargetUser loads the user named by the {id} path param and
// verifies the caller is an admin, writing a problem response and
// returning ok=false on any failure.
func (h *Handler) loadAdminTargetUser(w http.ResponseWriter, r *http.Request, hctx *HandlerContext) (user *models.User, version int64, ok bool) {
	rw := problem.NewResponseWriter(w, r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return nil, 0, false
	}
	if !hctx.RequireAdmin() {
		rw.Raise(problem.KindForbidden, "admin role required", nil)
		return nil, 0, false
	}

	id := chi.URLParam(r, "id")
	var u models.User
	version, err := h.store.Load(r.Context(), userKind, id, &u)
	if errors.Is(err, docstore.ErrNotFound) {
		rw.Raise(problem.KindNotFound, "user not found", nil)
		return nil, 0, false
	} else if err != nil {
		rw.Internal(err)
		return nil, 0, false
	}
	return &u, version, true
}

// SetUserRole handles POST /admin/users/{id}/roles: replaces the target
// user's role with the requested one and appends an audit log entry.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)

	var req SetUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	user, version, ok := h.loadAdminTargetUser(w, r, hctx)
	if !ok {
		return
	}

	oldRole := ""
	if len(user.Roles) > 0 {
		oldRole = user.Roles[0]
	}
	user.Roles = []string{req.Role}

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:            userKind,
		ID:              user.ID,
		ExpectedVersion: version,
		Value:           user,
		Indexes:         []docstore.Index{{Name: indexUserByEmail, Key: user.NormalizedEmail}},
	}); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "user was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}

	if err := h.appendAuditEntry(r.Context(), auditEntryInput{
		actor:      hctx,
		action:     "set_user_role",
		targetType: "user",
		targetID:   user.ID,
		reasonCode: models.ReasonUserRoleChanged,
		reasonText: req.Reason,
		prevState:  oldRole,
		newState:   req.Role,
	}); err != nil {
		rw.Internal(err)
		return
	}
	h.logAdminAction(r, hctx, "set_user_role", "changed role for user "+user.ID+" from "+oldRole+" to "+req.Role)

	rw.OK(map[string]any{"user_id": user.ID, "role": req.Role})
}

// SetUserStatus handles POST /admin/users/{id}/status: enables or disables
// a user account and appends an audit log entry.
func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)

	var req SetUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationErrors(fieldErrors(verr))
		return
	}

	user, version, ok := h.loadAdminTargetUser(w, r, hctx)
	if !ok {
		return
	}

	oldStatus := user.Status
	newStatus := models.UserStatus(req.Status)
	user.Status = newStatus

	if err := h.store.Save(r.Context(), docstore.WriteOp{
		Kind:            userKind,
		ID:              user.ID,
		ExpectedVersion: version,
		Value:           user,
		Indexes:         []docstore.Index{{Name: indexUserByEmail, Key: user.NormalizedEmail}},
	}); err != nil {
		var conflict *docstore.ErrConflict
		if errors.As(err, &conflict) {
			rw.Raise(problem.KindConflict, "user was modified concurrently, retry", nil)
			return
		}
		rw.Internal(err)
		return
	}

	reasonCode := models.ReasonUserDisabled
	if newStatus == models.UserActive {
		reasonCode = models.ReasonUserReenabled
	}
	if err := h.appendAuditEntry(r.Context(), auditEntryInput{
		actor:      hctx,
		action:     "set_user_status",
		targetType: "user",
		targetID:   user.ID,
		reasonCode: reasonCode,
		reasonText: req.Reason,
		prevState:  string(oldStatus),
		newState:   string(newStatus),
	}); err != nil {
		rw.Internal(err)
		return
	}
	h.logAdminAction(r, hctx, "set_user_status", "changed status for user "+user.ID+" from "+string(oldStatus)+" to "+string(newStatus))

	rw.OK(map[string]any{"user_id": user.ID, "status": string(newStatus)})
}

// ListAuditLog handles GET /admin/audit?target_id=... returning entries
// for a single target, newest-insertion-order-agnostic (the hash chain,
// not index order, is the source of truth for integrity).
func (h *Handler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	if !hctx.RequireAdmin() {
		rw.Raise(problem.KindForbidden, "admin role required", nil)
		return
	}

	targetID := r.URL.Query().Get("target_id")
	if targetID == "" {
		rw.Raise(problem.KindValidation, "target_id query parameter is required", nil)
		return
	}

	var entries []models.AuditLogEntry
	result, err := h.store.Query(r.Context(), auditKind, indexAuditByTarget, targetID, docstore.QueryOptions{
		Limit:  h.defaultPageSize,
		Cursor: r.URL.Query().Get("cursor"),
	}, &entries)
	if err != nil {
		rw.Internal(err)
		return
	}

	rw.OK(map[string]any{"entries": entries, "next_cursor": result.NextCursor})
}

type auditEntryInput struct {
	actor      *HandlerContext
	action     string
	targetType string
	targetID   string
	reasonCode models.ReasonCode
	reasonText string
	prevState  string
	newState   string
}

// appendAuditEntry writes one link in the tamper-evident audit hash
// chain: it loads the chain head, computes ContentHash over the new
// entry plus PreviousHash, and saves both the entry and the updated head
// atomically so a concurrent writer cannot fork the chain.
func (h *Handler) appendAuditEntry(ctx context.Context, in auditEntryInput) error {
	var head auditChainHead
	headVersion, err := h.store.Load(ctx, auditHeadKind, auditHeadID, &head)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	entry := models.AuditLogEntry{
		AuditID:       ids.New(),
		ActorUserID:   in.actor.UserID(),
		Action:        in.action,
		TargetType:    in.targetType,
		TargetID:      in.targetID,
		ReasonCode:    in.reasonCode,
		ReasonText:    in.reasonText,
		PreviousState: in.prevState,
		NewState:      in.newState,
		TS:            time.Now(),
		PreviousHash:  head.LastHash,
	}
	entry.ContentHash = hashAuditEntry(&entry)

	return h.store.Save(ctx,
		docstore.WriteOp{
			Kind:  auditKind,
			ID:    entry.AuditID,
			Value: &entry,
			Indexes: []docstore.Index{
				{Name: indexAuditByTarget, Key: entry.TargetID},
				{Name: indexAuditByChain, Key: auditChainAll},
			},
		},
		docstore.WriteOp{
			Kind:            auditHeadKind,
			ID:              auditHeadID,
			ExpectedVersion: headVersion,
			Value:           &auditChainHead{LastHash: entry.ContentHash},
		},
	)
}

// hashAuditEntry computes the chain-link hash over every field except
// ContentHash itself, including PreviousHash.
func hashAuditEntry(e *models.AuditLogEntry) string {
	h := sha256.New()
	h.Write([]byte(e.AuditID))
	h.Write([]byte(e.ActorUserID))
	h.Write([]byte(e.Action))
	h.Write([]byte(e.TargetType))
	h.Write([]byte(e.TargetID))
	h.Write([]byte(e.ReasonCode))
	h.Write([]byte(e.ReasonText))
	h.Write([]byte(e.PreviousState))
	h.Write([]byte(e.NewState))
	h.Write([]byte(e.TS.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.PreviousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyAuditChainRequest bounds a POST /admin/audit/verify scan. A zero
// value for either field leaves that end of the range open.
type VerifyAuditChainRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AuditTamperReport is the result of walking the hash chain: Verified
// counts the entries whose stored ContentHash and chain linkage checked
// out, and BrokenEntries lists any whose ContentHash no longer matches
// what hashAuditEntry recomputes or whose PreviousHash does not match the
// prior entry's ContentHash.
type AuditTamperReport struct {
	Verified      int      `json:"verified"`
	BrokenEntries []string `json:"broken_entries"`
	OK            bool     `json:"ok"`
}

// VerifyAuditChain handles POST /admin/audit/verify: walks the
// tamper-evident hash chain within the requested ts range (or the whole
// chain if both bounds are zero) and reports any broken links.
func (h *Handler) VerifyAuditChain(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	if !hctx.RequireAdmin() {
		rw.Raise(problem.KindForbidden, "admin role required", nil)
		return
	}

	var req VerifyAuditChainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.Raise(problem.KindValidation, "request body must be valid JSON", nil)
			return
		}
	}

	entries, err := h.loadAuditChain(r.Context())
	if err != nil {
		rw.Internal(err)
		return
	}

	report := verifyAuditChain(entries, req.From, req.To)
	h.logAdminAction(r, hctx, "verify_audit_chain", "ran hash-chain verification over the admin audit log")
	rw.OK(report)
}

// loadAuditChain pages through the audit-by-chain index in full, relying
// on the index key ordering by ULID (and therefore by creation time) to
// return entries in chain order.
func (h *Handler) loadAuditChain(ctx context.Context) ([]models.AuditLogEntry, error) {
	var all []models.AuditLogEntry
	cursor := ""
	for {
		var page []models.AuditLogEntry
		result, err := h.store.Query(ctx, auditKind, indexAuditByChain, auditChainAll, docstore.QueryOptions{
			Limit:  docstore.MaxQueryLimit,
			Cursor: cursor,
		}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	return all, nil
}

// verifyAuditChain recomputes each entry's ContentHash and checks that its
// PreviousHash matches the prior entry's ContentHash, restricting the
// report to entries whose TS falls within [from, to] when those bounds are
// non-zero. Linkage is still checked against neighbors outside the window
// so a tampered entry just before the window is still caught.
func verifyAuditChain(entries []models.AuditLogEntry, from, to time.Time) AuditTamperReport {
	report := AuditTamperReport{OK: true}
	var prevHash string
	for i, e := range entries {
		wantHash := hashAuditEntry(&e)
		linkOK := i == 0 || e.PreviousHash == prevHash
		contentOK := e.ContentHash == wantHash
		inWindow := (from.IsZero() || !e.TS.Before(from)) && (to.IsZero() || !e.TS.After(to))

		if !linkOK || !contentOK {
			if inWindow {
				report.BrokenEntries = append(report.BrokenEntries, e.AuditID)
				report.OK = false
			}
		} else if inWindow {
			report.Verified++
		}
		prevHash = e.ContentHash
	}
	return report
}

// ListSecurityEvents handles GET /admin/security-events: queries the
// security-event audit trail (internal/audit), which is distinct from the
// tamper-evident hash chain above — it records auth failures, authz
// denials, and admin actions for forensic review rather than
// business-state changes.
func (h *Handler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	if !hctx.RequireAdmin() {
		rw.Raise(problem.KindForbidden, "admin role required", nil)
		return
	}
	if h.auditLog == nil {
		rw.OK(map[string]any{"events": []audit.Event{}})
		return
	}

	filter := audit.DefaultQueryFilter()
	if actorID := r.URL.Query().Get("actor_id"); actorID != "" {
		filter.ActorID = actorID
	}

	events, err := h.auditLog.Query(r.Context(), filter)
	if err != nil {
		rw.Internal(err)
		return
	}
	rw.OK(map[string]any{"events": events})
}

// PerformanceStats handles GET /admin/performance: returns request
// latency percentiles gathered by the performance-monitoring middleware.
func (h *Handler) PerformanceStats(w http.ResponseWriter, r *http.Request) {
	rw := problem.NewResponseWriter(w, r)
	hctx := GetHandlerContext(r)
	if !hctx.IsAuthenticated() {
		rw.Raise(problem.KindUnauthorized, "authentication required", nil)
		return
	}
	if !hctx.RequireAdmin() {
		rw.Raise(problem.KindForbidden, "admin role required", nil)
		return
	}
	if h.perf == nil {
		rw.OK(map[string]any{"endpoints": []any{}})
		return
	}
	rw.OK(map[string]any{"endpoints": h.perf.GetStats()})
}

// logAdminAction mirrors an admin mutation into the security audit trail
// alongside the hash-chain entry appendAuditEntry already wrote. It is
// best-effort: a nil auditLog (e.g. in tests) is a silent no-op.
func (h *Handler) logAdminAction(r *http.Request, hctx *HandlerContext, action, description string) {
	if h.auditLog == nil {
		return
	}
	actor := audit.ActorFromUser(hctx.UserID(), hctx.UserID(), hctx.Principal.Roles, "bearer", "")
	h.auditLog.LogAdminAction(r.Context(), actor, audit.SourceFromRequest(r), action, description, nil)
}

// recordAuthEvent bridges principal.SetAuthEventRecorder into the
// security audit trail, logging authentication rejections distinctly
// from authorization denials (a request with no principal at all is an
// auth failure; a request with a principal lacking the required role is
// an authz denial).
func (h *Handler) recordAuthEvent(r *http.Request, principalID string, denied bool, detail string) {
	if h.auditLog == nil || !denied {
		return
	}
	source := audit.SourceFromRequest(r)
	if principalID == "" {
		h.auditLog.LogAuthFailure(r.Context(), "", "", source, detail)
		return
	}
	actor := audit.Actor{ID: principalID, Type: "user"}
	h.auditLog.LogAuthzDenied(r.Context(), actor, source, r.URL.Path, r.Method)
}
