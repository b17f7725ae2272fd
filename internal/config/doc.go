// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package config provides centralized configuration management for the audio
library service via Koanf v2, layering three sources in increasing priority:
built-in defaults, an optional YAML file, then environment variables.

# Configuration Structure

  - ServerConfig: HTTP listener (host, port, timeouts)
  - APIConfig: pagination defaults, rate limiting, CORS
  - DocStoreConfig: BadgerDB directory for the document store gateway
  - ObjectStoreConfig: MinIO endpoint, credentials, bucket
  - NATSConfig: JetStream URL and consumer tuning for the event bus
  - CacheConfig: the encrypted presigned-URL cache's TTL and key material
  - AuthConfig: JWT signing secret and token lifetimes
  - OutboxConfig: poll interval, batch size, and backoff for the outbox processor
  - AnalyzerConfig: ffprobe/ffmpeg paths and worker pool size
  - LifecycleConfig: soft-delete grace period and purge sweep cadence
  - LoggingConfig: zerolog level/format

# Usage Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}
	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

# Validation

Config.Validate() enforces required fields (docstore directory, object store
bucket, a JWT secret in production) and rejects an undersized cache encryption
secret before the service starts.

# Credential Encryption

encryption.go provides CredentialEncryptor, an AES-256-GCM helper for
encrypting secrets (e.g. the object store secret key) at rest when persisted
outside of environment variables, independent of configuration loading.
*/
package config
