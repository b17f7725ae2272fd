// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package metrics provides Prometheus metrics collection and export for
observability.

# Overview

The package instruments:
  - HTTP request latency and throughput (internal/middleware)
  - Document store and object store operation latency and conflicts
  - Resilience pipeline state (circuit breaker, bulkhead rejections)
  - Cache hit/miss rates (the encrypted presigned-URL cache)
  - Transactional outbox throughput and claim conflicts
  - Event bus publish/consume counters and dead letter queue depth

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:3857/metrics

# Cardinality Management

Endpoint labels are normalized (no query parameters, no path IDs) and
error categories are limited to the predefined constants in
internal/eventprocessor. Avoid adding user- or track-specific labels;
record those in the audit log instead.

# See Also

  - internal/middleware: HTTP middleware recording API metrics
  - internal/resilience: circuit breaker / bulkhead pipeline
  - internal/eventprocessor: DLQ and NATS publish/consume metrics
*/
package metrics
