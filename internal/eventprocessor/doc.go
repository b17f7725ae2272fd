// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package eventprocessor provides the audio library service's event bus:
// a Watermill publisher/subscriber pair over NATS JetStream carrying
// AudioEvent messages between the upload coordinator, the ingestor, the
// analyzer, the track lifecycle worker, and the streaming issuer.
//
// # Architecture
//
// Every state change a background worker needs to react to is published
// as an AudioEvent rather than invoked directly, so that ingest, analysis,
// and lifecycle processing can scale independently and a slow consumer
// never blocks the producer:
//
//	Upload Coordinator → object_created          → {env}-minio-events
//	Ingestor           → upload_completed        → {env}-audio-events
//	Analyzer           → track_ready/track_failed→ {env}-audio-events
//	Lifecycle worker   → track_deleted/purged    → {env}-track-deletions
//	Streaming issuer   → playback                → {env}-telemetry-events
//
// Four JetStream streams back these topics; each has its own durable
// consumer group so one slow subscriber does not stall another.
//
// # Key Components
//
//   - Publisher: Watermill publisher with circuit breaker and reconnection handling.
//   - Subscriber: durable JetStream consumer with exactly-once delivery via AckWait + MaxDeliver.
//   - Serializer: JSON encode/decode between AudioEvent and the wire message.
//   - DeadLetterQueue: holds messages that exhausted their retry budget for operator replay.
//
// # Usage Example
//
//	pub, err := eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(natsURL), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pub.Close()
//
//	event := eventprocessor.NewAudioEvent(eventprocessor.EventTrackReady)
//	event.TrackID = trackID
//	event.UserID = userID
//
//	pub.PublishEvent(ctx, env, event)
//
// # Configuration
//
//	cfg := eventprocessor.DefaultNATSConfig()
//	cfg.StoreDir = "/data/nats/jetstream"
//	cfg.MaxMemory = 1 << 30 // 1GB
package eventprocessor
