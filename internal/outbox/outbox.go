// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package outbox implements the transactional outbox processor (C6): a
// poll-claim-publish loop atop the docstore that guarantees an event
// written in the same transaction as its aggregate eventually reaches the
// bus, even across process restarts or a temporarily unreachable NATS.
package outbox

import (
	"time"

	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/models"
)

const (
	// Kind is the docstore kind under which outbox rows are stored.
	Kind = "outbox"

	// IndexPendingByCreatedAt is the secondary index the processor scans.
	// Every row is indexed under the same constant key ("pending") so the
	// index behaves as a work queue ordered by insertion; rows move out of
	// it implicitly once their Status leaves Pending, since re-saving a row
	// with its Indexes unset on a terminal transition drops the entry.
	IndexPendingByCreatedAt = "pending_by_created_at"

	pendingIndexKey = "pending"
)

// NewWriteOp builds the docstore.WriteOp that enqueues event for durable
// publish. Callers append this to the same Save call that commits the
// aggregate mutation the event describes, giving the pair atomicity.
func NewWriteOp(event *eventprocessor.AudioEvent, env string) (docstore.WriteOp, error) {
	payload, err := eventprocessor.SerializeEvent(event)
	if err != nil {
		return docstore.WriteOp{}, err
	}

	msg := &models.OutboxMessage{
		ID:            event.EventID,
		Topic:         event.Kind.Topic(env),
		PartitionKey:  event.TrackID,
		EventType:     string(event.Kind),
		Payload:       payload,
		CorrelationID: event.CorrelationID,
		CreatedAt:     event.Timestamp,
		NextAttemptAt: event.Timestamp,
		Status:        models.OutboxPending,
	}

	return docstore.WriteOp{
		Kind:    Kind,
		ID:      msg.ID,
		Value:   msg,
		Indexes: []docstore.Index{{Name: IndexPendingByCreatedAt, Key: pendingIndexKey}},
	}, nil
}

// backoff computes the next retry delay for attempts failed publishes,
// exponential with a base and ceiling, plus up to 10% jitter so that a
// batch of rows that failed together does not retry in lockstep.
func backoff(base, max time.Duration, attempts int, jitter func() float64) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base << uint(attempts-1) //nolint:gosec // attempts is bounded by MaxAttempts
	if d <= 0 || d > max {
		d = max
	}
	return d + time.Duration(float64(d)*0.1*jitter())
}
