// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package outbox

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/docstore"
	"github.com/tomtom215/cartographus/internal/eventprocessor"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
)

// Publisher is the narrow surface Processor needs from
// *eventprocessor.Publisher, kept as an interface so tests can substitute a
// fake without standing up NATS.
type Publisher interface {
	PublishEvent(ctx context.Context, env string, event *eventprocessor.AudioEvent) error
}

// Processor is the suture-supervised outbox poll-claim-publish loop (C6).
type Processor struct {
	store     docstore.Store
	publisher Publisher
	cfg       config.OutboxConfig
	logger    zerolog.Logger
}

// NewProcessor constructs a Processor from its gateway dependencies.
func NewProcessor(store docstore.Store, publisher Publisher, cfg config.OutboxConfig) *Processor {
	return &Processor{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logging.WithComponent("outbox"),
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (p *Processor) String() string {
	return "outbox.Processor"
}

// Serve implements suture.Service: it ticks at cfg.PollInterval until ctx
// is canceled, running one sweep per tick.
func (p *Processor) Serve(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep claims and publishes one batch of due rows. It never returns an
// error: a failed row is recorded on the row itself (attempts/last_error)
// and metrics are incremented, but the service keeps running.
func (p *Processor) sweep(ctx context.Context) {
	limit := p.cfg.BatchSize
	if limit <= 0 {
		limit = 50
	}

	var rows []models.OutboxMessage
	if _, err := p.store.Query(ctx, Kind, IndexPendingByCreatedAt, pendingIndexKey, docstore.QueryOptions{Limit: limit}, &rows); err != nil {
		p.logger.Error().Err(err).Msg("outbox query failed")
		return
	}

	now := time.Now()
	pending := int64(0)
	for i := range rows {
		row := &rows[i]
		if !row.DueForAttempt(now) {
			pending++
			continue
		}
		p.attempt(ctx, row, now)
	}
	metrics.SetOutboxPending(pending)
}

// attempt runs one claim-publish-commit cycle for a single row. The
// version-guarded Save is the optimistic-concurrency equivalent of
// SELECT ... FOR UPDATE SKIP LOCKED: if another processor instance already
// claimed and advanced this row, the Save fails with ErrConflict and this
// instance simply drops the row for this tick.
func (p *Processor) attempt(ctx context.Context, row *models.OutboxMessage, now time.Time) {
	event, err := eventprocessor.DeserializeEvent(row.Payload)
	if err != nil {
		p.fail(ctx, row, now, err, true)
		return
	}

	env := p.cfg.Environment
	pubErr := p.publisher.PublishEvent(ctx, env, event)
	metrics.RecordOutboxPublish(row.Topic, pubErr)

	if pubErr == nil {
		published := now
		row.Status = models.OutboxPublished
		row.PublishedAt = &published
		row.LastError = ""
		if err := p.save(ctx, row, nil); err != nil {
			p.logClaimOutcome(err)
		}
		return
	}

	maxAttempts := p.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	p.fail(ctx, row, now, pubErr, row.Attempts+1 >= maxAttempts)
}

// fail records a publish failure, moving the row to Failed once terminal
// is true (attempts exhausted or the payload is unrecoverably malformed).
func (p *Processor) fail(ctx context.Context, row *models.OutboxMessage, now time.Time, cause error, terminal bool) {
	row.Attempts++
	row.LastError = cause.Error()

	var indexes []docstore.Index
	if terminal {
		row.Status = models.OutboxFailed
		p.logger.Warn().Str("outbox_id", row.ID).Str("topic", row.Topic).Int("attempts", row.Attempts).Msg("outbox message moved to failed, giving up")
	} else {
		row.NextAttemptAt = now.Add(backoff(p.cfg.BaseBackoff, p.cfg.MaxBackoff, row.Attempts, rand.Float64))
		indexes = []docstore.Index{{Name: IndexPendingByCreatedAt, Key: pendingIndexKey}}
	}

	if err := p.save(ctx, row, indexes); err != nil {
		p.logClaimOutcome(err)
	}
}

func (p *Processor) save(ctx context.Context, row *models.OutboxMessage, indexes []docstore.Index) error {
	return p.store.Save(ctx, docstore.WriteOp{
		Kind:            Kind,
		ID:              row.ID,
		ExpectedVersion: row.Version,
		Value:           row,
		Indexes:         indexes,
	})
}

func (p *Processor) logClaimOutcome(err error) {
	var conflict *docstore.ErrConflict
	if errors.As(err, &conflict) {
		metrics.RecordOutboxClaimConflict()
		return
	}
	p.logger.Error().Err(err).Msg("outbox save failed")
}
