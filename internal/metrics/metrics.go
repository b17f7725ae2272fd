// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the audio library service: API latency/throughput,
// object/document store effort, the resilience pipelines (circuit breaker +
// bulkhead), the transactional outbox, and bus publish/consume counters.

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Document/Object Store Metrics
	DocStoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "kind"},
	)

	DocStoreConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		},
		[]string{"kind"},
	)

	ObjectStoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_operation_duration_seconds",
			Help:    "Duration of object store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ObjectStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_errors_total",
			Help: "Total number of object store errors",
		},
		[]string{"operation"},
	)

	// Cache Metrics (General, shared by the encrypted presigned-URL cache)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker / Bulkhead Metrics (internal/resilience.Pipeline)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	BulkheadRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejections_total",
			Help: "Total number of calls rejected because the bulkhead was full",
		},
		[]string{"name"},
	)

	// Transactional Outbox Metrics
	OutboxPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_messages",
			Help: "Current number of outbox messages not yet published",
		},
	)

	OutboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox messages successfully published",
		},
	)

	OutboxFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_failed_total",
			Help: "Total number of outbox publish attempts that failed",
		},
		[]string{"topic"},
	)

	OutboxClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_claim_conflicts_total",
			Help: "Total number of outbox claim attempts that lost an optimistic concurrency race",
		},
	)

	// Track Lifecycle Metrics
	TracksPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracks_purged_total",
			Help: "Total number of tracks hard-deleted by the lifecycle purge sweep",
		},
	)

	// Upload Ingestor Metrics
	IngestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_outcomes_total",
			Help: "Total number of ingest messages processed, by terminal outcome",
		},
		[]string{"outcome"},
	)

	// Dead Letter Queue Metrics
	DLQEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_entries_total",
			Help: "Current number of entries in the Dead Letter Queue",
		},
	)

	DLQEntriesByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dlq_entries_by_category",
			Help: "Current number of DLQ entries by error category",
		},
		[]string{"category"},
	)

	DLQMessagesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_added_total",
			Help: "Total number of messages added to the DLQ",
		},
	)

	DLQMessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_removed_total",
			Help: "Total number of messages removed from the DLQ (successfully reprocessed)",
		},
	)

	DLQMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_expired_total",
			Help: "Total number of messages expired from the DLQ",
		},
	)

	DLQRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_attempts_total",
			Help: "Total number of retry attempts for DLQ messages",
		},
	)

	DLQRetrySuccesses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_successes_total",
			Help: "Total number of successful DLQ message retries",
		},
	)

	DLQRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_failures_total",
			Help: "Total number of failed DLQ message retries",
		},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest entry in the DLQ in seconds",
		},
	)

	// NATS / Event Bus Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	NATSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_deduplicated_total",
			Help: "Total number of messages skipped due to deduplication",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of NATS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NATSConsumerLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_consumer_lag",
			Help: "Number of pending messages in NATS consumer",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDocStoreOp records a document store operation's latency and, if kind
// is non-empty, attributes it to that entity kind.
func RecordDocStoreOp(operation, kind string, duration time.Duration) {
	DocStoreOpDuration.WithLabelValues(operation, kind).Observe(duration.Seconds())
}

// RecordDocStoreConflict records an optimistic concurrency conflict.
func RecordDocStoreConflict(kind string) {
	DocStoreConflicts.WithLabelValues(kind).Inc()
}

// RecordObjectStoreOp records an object store operation's latency.
func RecordObjectStoreOp(operation string, duration time.Duration, err error) {
	ObjectStoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		ObjectStoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordBulkheadRejection records a call rejected because a resilience
// pipeline's bulkhead was at capacity.
func RecordBulkheadRejection(name string) {
	BulkheadRejections.WithLabelValues(name).Inc()
}

// RecordOutboxPublish records the outcome of one outbox publish attempt.
func RecordOutboxPublish(topic string, err error) {
	if err != nil {
		OutboxFailedTotal.WithLabelValues(topic).Inc()
		return
	}
	OutboxPublishedTotal.Inc()
}

// RecordOutboxClaimConflict records a claim attempt that lost its
// optimistic-version race to another worker.
func RecordOutboxClaimConflict() {
	OutboxClaimConflicts.Inc()
}

// SetOutboxPending sets the current pending-message gauge.
func SetOutboxPending(count int64) {
	OutboxPendingGauge.Set(float64(count))
}

// RecordTrackPurged records one track hard-deleted by the lifecycle sweep.
func RecordTrackPurged() {
	TracksPurgedTotal.Inc()
}

// RecordIngestOutcome records the terminal outcome of one ingest message.
func RecordIngestOutcome(outcome string) {
	IngestOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordDLQEntry records a message being added to the DLQ.
func RecordDLQEntry(category string) {
	DLQMessagesAdded.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Inc()
}

// RecordDLQRemoval records a message being successfully removed from the DLQ.
func RecordDLQRemoval(category string) {
	DLQMessagesRemoved.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQExpiry records a message expiring from the DLQ.
func RecordDLQExpiry(category string) {
	DLQMessagesExpired.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQRetry records a retry attempt and its outcome.
func RecordDLQRetry(success bool) {
	DLQRetryAttempts.Inc()
	if success {
		DLQRetrySuccesses.Inc()
	} else {
		DLQRetryFailures.Inc()
	}
}

// UpdateDLQGauges updates DLQ gauge metrics with current stats.
func UpdateDLQGauges(totalEntries int64, oldestEntryAge float64, entriesByCategory map[string]int64) {
	DLQEntriesTotal.Set(float64(totalEntries))
	DLQOldestEntryAge.Set(oldestEntryAge)
	for category, count := range entriesByCategory {
		DLQEntriesByCategory.WithLabelValues(category).Set(float64(count))
	}
}

// RecordNATSPublish records a message being published to NATS.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS.
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed.
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSDeduplicated records a message being skipped due to deduplication.
func RecordNATSDeduplicated() {
	NATSMessagesDeduplicated.Inc()
}

// RecordNATSParseFailed records a message that failed to parse.
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing.
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}

// UpdateNATSConsumerLag updates the NATS consumer lag gauge.
func UpdateNATSConsumerLag(lag int64) {
	NATSConsumerLag.Set(float64(lag))
}
