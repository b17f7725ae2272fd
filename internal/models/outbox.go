// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// OutboxStatus is the closed set of lifecycle states for an OutboxMessage.
// Exactly one Pending->Published transition per row; Pending->Failed only
// after attempts reach the configured maximum.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxPublished || s == OutboxFailed
}

// OutboxMessage is written inside the same transaction that mutates the
// aggregate it describes, and is mutated only by the outbox processor (C6)
// thereafter.
type OutboxMessage struct {
	ID            string       `json:"id"`
	Topic         string       `json:"topic"`
	PartitionKey  string       `json:"partition_key"`
	EventType     string       `json:"event_type"`
	Payload       []byte       `json:"payload"`
	CorrelationID string       `json:"correlation_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	Status        OutboxStatus `json:"status"`
	LastError     string       `json:"last_error,omitempty"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
	Version       int64        `json:"version"`
}

// DueForAttempt reports whether the processor should try this row now.
func (m *OutboxMessage) DueForAttempt(now time.Time) bool {
	return m.Status == OutboxPending && !now.Before(m.NextAttemptAt)
}
