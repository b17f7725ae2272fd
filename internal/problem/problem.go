// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package problem implements RFC-7807 problem+json error responses for
// the HTTP API, replacing the {success,data,error,meta} envelope with the
// standard type/title/status/detail/instance shape plus an extensions bag
// for machine-readable context (validation field errors, retry hints).
package problem

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
)

// baseURI prefixes every Type URI this service mints. Clients should treat
// the full URI as an opaque, dereferenceable identifier for the problem
// kind, not attempt to fetch it.
const baseURI = "https://cartographus.dev/problems/"

// Problem is the RFC-7807 response body.
type Problem struct {
	Type       string      `json:"type"`
	Title      string      `json:"title"`
	Status     int         `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	Instance   string      `json:"instance,omitempty"`
	Extensions interface{} `json:"extensions,omitempty"`
}

// Well-known problem kinds. The slug becomes both the Type URI suffix and
// the default Title.
const (
	KindValidation    = "validation-failed"
	KindNotFound      = "not-found"
	KindConflict      = "conflict"
	KindUnauthorized  = "unauthorized"
	KindForbidden     = "forbidden"
	KindRateLimited   = "rate-limited"
	KindInternal      = "internal-error"
	KindUnavailable   = "service-unavailable"
	KindQuotaExceeded = "quota-exceeded"
	KindBadGateway    = "upstream-unavailable"
)

var titleFor = map[string]string{
	KindValidation:    "Validation Failed",
	KindNotFound:      "Not Found",
	KindConflict:      "Conflict",
	KindUnauthorized:  "Unauthorized",
	KindForbidden:     "Forbidden",
	KindRateLimited:   "Too Many Requests",
	KindInternal:      "Internal Server Error",
	KindUnavailable:   "Service Unavailable",
	KindQuotaExceeded: "Quota Exceeded",
	KindBadGateway:    "Upstream Unavailable",
}

var statusFor = map[string]int{
	KindValidation:    http.StatusBadRequest,
	KindNotFound:      http.StatusNotFound,
	KindConflict:      http.StatusConflict,
	KindUnauthorized:  http.StatusUnauthorized,
	KindForbidden:     http.StatusForbidden,
	KindRateLimited:   http.StatusTooManyRequests,
	KindInternal:      http.StatusInternalServerError,
	KindUnavailable:   http.StatusServiceUnavailable,
	KindQuotaExceeded: http.StatusUnprocessableEntity,
	KindBadGateway:    http.StatusBadGateway,
}

// New builds a Problem for kind, deriving Type/Title/Status from the
// well-known table above. Pass detail for the human-readable explanation
// and extensions for structured context (may be nil).
func New(kind, instance, detail string, extensions interface{}) *Problem {
	status, ok := statusFor[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	title := titleFor[kind]
	if title == "" {
		title = "Internal Server Error"
		kind = KindInternal
	}
	return &Problem{
		Type:       baseURI + kind,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: extensions,
	}
}

// ResponseWriter writes problem+json responses and plain JSON success
// payloads for a single request, mirroring the ergonomics of a
// conventional success/error response wrapper.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a ResponseWriter scoped to one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

// JSON writes statusCode with data encoded as application/json.
func (rw *ResponseWriter) JSON(statusCode int, data interface{}) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode json response")
	}
}

// Created writes a 201 with the created resource.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.JSON(http.StatusCreated, data)
}

// OK writes a 200 with data.
func (rw *ResponseWriter) OK(data interface{}) {
	rw.JSON(http.StatusOK, data)
}

// NoContent writes a 204 with no body.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

// Problem writes p as application/problem+json, stamping Instance from
// the request path when the caller left it empty.
func (rw *ResponseWriter) Problem(p *Problem) {
	if p.Instance == "" {
		p.Instance = rw.r.URL.Path
	}
	requestID := logging.RequestIDFromContext(rw.r.Context())
	logging.Ctx(rw.r.Context()).Warn().
		Str("problem_type", p.Type).
		Int("status", p.Status).
		Str("request_id", requestID).
		Msg(p.Detail)

	rw.w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	rw.w.WriteHeader(p.Status)
	if err := json.NewEncoder(rw.w).Encode(p); err != nil {
		logging.Error().Err(err).Msg("failed to encode problem response")
	}
}

// Raise is a convenience wrapper around New + Problem.
func (rw *ResponseWriter) Raise(kind, detail string, extensions interface{}) {
	rw.Problem(New(kind, rw.r.URL.Path, detail, extensions))
}

// ValidationErrors writes a validation-failed problem carrying a
// field->message map as extensions.
func (rw *ResponseWriter) ValidationErrors(fields map[string]string) {
	rw.Raise(KindValidation, "one or more fields failed validation", map[string]interface{}{"fields": fields})
}

// Internal writes a generic 500 problem and logs err server-side; the
// detail sent to the client never includes err's text.
func (rw *ResponseWriter) Internal(err error) {
	logging.Ctx(rw.r.Context()).Error().Err(err).Msg("internal error")
	rw.Raise(KindInternal, "an internal error occurred", nil)
}

// WriteProblem is a convenience function for handlers that do not need the
// full ResponseWriter.
func WriteProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	NewResponseWriter(w, r).Problem(p)
}
