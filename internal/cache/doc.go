// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package cache provides thread-safe in-memory caching with pluggable
eviction strategies, plus an authenticated-encryption wrapper for values
that must never be stored at rest in plaintext.

# Overview

The package offers two interchangeable cache implementations behind a
single Cacher interface:

  - Cache (cache.go): a simple TTL-based cache. Entries expire lazily on
    Get; no background goroutine scans for expired keys. Unbounded size.
  - LFUCache (lfu.go): a capacity-bounded least-frequently-used cache with
    O(1) Get/Set/evict, used where access patterns are skewed (a small
    set of hot keys dominate reads) and an eviction policy matters more
    than raw simplicity.

NewCacher(CacheConfig) selects between them at construction time so
callers can depend on the Cacher interface and defer the TTL-vs-LFU
choice to configuration.

# Encrypted cache (C5)

EncryptedCache (encrypted.go) wraps any Cacher with AES-256-GCM, keyed via
HKDF-SHA256 from a configured secret. It exists specifically for the
presigned streaming-URL cache: a leaked cache backend (or a disk snapshot,
for an on-disk Cacher implementation) must not hand out live stream URLs.
Stored values carry the key version that encrypted them; a version
mismatch on read is treated as a cache miss rather than an error, so
secret rotation degrades gracefully instead of surfacing failures.

# Usage

Plain cache:

	c := cache.NewCacher(cache.CacheConfig{Type: cache.CacheTypeLFU, TTL: 5 * time.Minute, Capacity: 10000})
	c.Set("track:meta:abc123", meta)
	if v, ok := c.Get("track:meta:abc123"); ok {
	    meta := v.(TrackMeta)
	}

Encrypted cache, wrapping either implementation:

	inner := cache.NewTTL(2 * time.Minute)
	key, err := cache.NewKeyFromSecret(1, secret)
	enc, err := cache.NewEncryptedCache(inner, key)

	enc.SetWithTTL("stream:"+objectKey, []byte(presignedURL), 2*time.Minute)
	if plaintext, ok := enc.Get("stream:" + objectKey); ok {
	    presignedURL := string(plaintext)
	}

# Cache key conventions

	track:meta:{track_id}     // Track metadata lookups
	stream:{object_key}       // EncryptedCache: presigned stream URLs (C5)
	playlist:{playlist_id}    // Playlist entry listings

# Thread safety

All three types (Cache, LFUCache, EncryptedCache) are safe for concurrent
use; Cache and LFUCache guard their state with sync.Mutex/RWMutex,
EncryptedCache delegates locking to its wrapped Cacher.

# See Also

  - internal/api: handlers that read/write through Cacher and EncryptedCache
  - internal/resilience: wraps cache calls with circuit breakers/retries
*/
package cache
