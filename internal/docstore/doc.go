// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package docstore is the generic document store gateway (C1). It is
// backed by BadgerDB: every entity is a JSON document under a
// "{kind}:{id}" key, secondary indexes are maintained as extra keys under
// "{kind}:{index}:{indexed-value}:{id}" pointing back at the primary key,
// and every write carries the caller's expected version so concurrent
// writers never silently clobber each other.
//
// All of a write's documents commit in one BadgerDB transaction, which is
// what lets callers such as the upload coordinator create a Track and its
// OutboxMessage atomically (see internal/outbox).
package docstore
