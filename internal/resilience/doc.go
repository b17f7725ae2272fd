// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package resilience composes the bulkhead -> breaker -> timeout pipeline
// every gateway call goes through (C4). Bulkhead is outermost: a caller
// that cannot acquire a concurrency slot fails immediately rather than
// queuing behind an already-degraded dependency. One Pipeline is built per
// dependency class (cache/store/object/bus), each with its own
// concurrency, breaker, and timeout defaults.
package resilience
