// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package middleware provides infrastructure HTTP middleware: gzip
compression, Prometheus instrumentation, and request latency tracking.
Authentication, rate limiting, CORS, and request-ID stamping live in
internal/api and internal/principal instead, since they need the
problem+json envelope and the chi route tree.

Key Components:

  - Compression: gzip for clients that advertise Accept-Encoding: gzip
  - PrometheusMetrics: per-request count/duration/active-gauge instrumentation
  - PerformanceMonitor: sliding-window latency percentiles per endpoint,
    surfaced at GET /admin/performance

Middleware Stack:

chi_router.go composes these ahead of the route table:

	r.Use(chimiddleware.Recoverer)
	r.Use(RequestIDWithLogging())       // internal/api: chi request ID + logging context
	r.Use(APISecurityHeaders())
	r.Use(cfg.Middleware.CORS())
	r.Use(appmiddleware.PrometheusMetrics)
	r.Use(appmiddleware.Compression)
	r.Use(cfg.PerfMonitor.Middleware)
	r.Use(E2EDebugLogging())

Usage Example - Compression:

	import "github.com/tomtom215/cartographus/internal/middleware"

	r.Use(middleware.Compression)

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)
	r.Use(perfMon.Middleware)

	stats := perfMon.GetStats()
	fmt.Printf("p50: %dms p95: %dms p99: %dms\n",
	    stats[0].P50Duration, stats[0].P95Duration, stats[0].P99Duration)

Thread Safety:

All three components are safe for concurrent use: Compression pools gzip
writers per request, PerformanceMonitor guards its window with
sync.RWMutex, and PrometheusMetrics delegates to internal/metrics's atomic
counters.

See Also:

  - internal/principal: bearer-token authentication middleware
  - internal/api: route table, rate limiting, CORS, RFC-7807 error envelope
  - internal/audit: security-event audit trail fed by authentication failures
  - internal/metrics: Prometheus metric definitions
*/
package middleware
