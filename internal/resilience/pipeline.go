// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull is returned when a Pipeline's concurrency limit is
// already saturated; the caller should treat this the same as a timeout,
// never block waiting for a slot.
var ErrBulkheadFull = errors.New("resilience: bulkhead full")

// ErrBreakerOpen mirrors gobreaker.ErrOpenState so callers outside this
// package never need to import gobreaker directly.
var ErrBreakerOpen = gobreaker.ErrOpenState

// Config describes one dependency class's pipeline.
type Config struct {
	Name              string
	MaxConcurrent     int64
	Timeout           time.Duration
	BreakerInterval   time.Duration
	BreakerOpenFor    time.Duration
	MinThroughput     uint32
	FailureRatioTrip  float64
}

// Defaults for the four named pipelines the service wires at startup.
var (
	CacheConfig  = Config{Name: "cache", MaxConcurrent: 100, Timeout: 500 * time.Millisecond, BreakerInterval: 30 * time.Second, BreakerOpenFor: 30 * time.Second, MinThroughput: 10, FailureRatioTrip: 0.5}
	StoreConfig  = Config{Name: "store", MaxConcurrent: 50, Timeout: 5 * time.Second, BreakerInterval: 30 * time.Second, BreakerOpenFor: 30 * time.Second, MinThroughput: 10, FailureRatioTrip: 0.5}
	ObjectConfig = Config{Name: "object", MaxConcurrent: 20, Timeout: 10 * time.Second, BreakerInterval: 30 * time.Second, BreakerOpenFor: 30 * time.Second, MinThroughput: 10, FailureRatioTrip: 0.5}
	BusConfig    = Config{Name: "bus", MaxConcurrent: 50, Timeout: 2 * time.Second, BreakerInterval: 30 * time.Second, BreakerOpenFor: 30 * time.Second, MinThroughput: 10, FailureRatioTrip: 0.5}
)

// Pipeline wraps a dependency call in bulkhead -> breaker -> timeout.
type Pipeline struct {
	name     string
	bulkhead *semaphore.Weighted
	breaker  *gobreaker.CircuitBreaker[any]
	timeout  time.Duration
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	settings := gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinThroughput {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatioTrip
		},
	}
	return &Pipeline{
		name:     cfg.Name,
		bulkhead: semaphore.NewWeighted(cfg.MaxConcurrent),
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		timeout:  cfg.Timeout,
	}
}

// Run executes fn under the pipeline's concurrency limit, circuit breaker,
// and deadline. It never blocks acquiring the bulkhead slot: if none is
// free it returns ErrBulkheadFull immediately.
func (p *Pipeline) Run(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if !p.bulkhead.TryAcquire(1) {
		return nil, fmt.Errorf("%s: %w", p.name, ErrBulkheadFull)
	}
	defer p.bulkhead.Release(1)

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.breaker.Execute(func() (any, error) {
		return fn(timeoutCtx)
	})
}

// State reports the breaker's current state string, for metrics/health.
func (p *Pipeline) State() string {
	return p.breaker.State().String()
}
