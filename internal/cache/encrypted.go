// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package cache: this file layers authenticated encryption over any
// Cacher so presigned-URL caching (C5) never stores plaintext streaming
// URLs at rest. Algorithm: AES-256-GCM, key derived via HKDF-SHA256 from
// a configured secret plus a version label, nonce and tag sizes native to
// GCM (96-bit nonce, 128-bit tag). Stored values are tagged with the key
// version that encrypted them; a version mismatch on read is treated as a
// cache miss, never an error, so rotating the secret degrades gracefully
// instead of returning stale-looking failures.
package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const encryptedCacheInfo = "vaultcast-stream-cache-v1"

// EncryptionKey is one versioned AES-256 key. KeyVersion lets the cache
// fail closed on old entries once a secret rotates rather than decrypt
// with the wrong key.
type EncryptionKey struct {
	KeyVersion byte
	Secret     []byte
}

func deriveAEAD(secret []byte) (cipher.AEAD, error) {
	hk := hkdf.New(sha256.New, secret, nil, []byte(encryptedCacheInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("cache: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cache: aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptedCache wraps an inner Cacher, encrypting every []byte value
// before Set and decrypting (or fail-closed-missing) on Get.
type EncryptedCache struct {
	inner   Cacher
	key     EncryptionKey
	aead    cipher.AEAD
}

// NewEncryptedCache builds the wrapper from the active key. Only one key
// version is active for writes at a time; older versions simply miss on
// read once rotated out, which is the intended degrade-not-error behavior.
func NewEncryptedCache(inner Cacher, key EncryptionKey) (*EncryptedCache, error) {
	aead, err := deriveAEAD(key.Secret)
	if err != nil {
		return nil, err
	}
	return &EncryptedCache{inner: inner, key: key, aead: aead}, nil
}

// stored is the on-the-wire shape held inside the underlying Cacher.
type stored struct {
	keyVersion byte
	nonce      []byte
	ciphertext []byte
}

// Set encrypts plaintext and stores it with the default TTL. Encryption
// failures here are logged by the caller and swallowed (fail-open per the
// cache's overall semantics): a cache write is never load-bearing.
func (c *EncryptedCache) Set(key string, plaintext []byte) error {
	return c.SetWithTTL(key, plaintext, 0)
}

// SetWithTTL encrypts plaintext and stores it with ttl; ttl of 0 uses the
// inner cache's default.
func (c *EncryptedCache) SetWithTTL(key string, plaintext []byte, ttl time.Duration) error {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("cache: generate nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)
	entry := stored{keyVersion: c.key.KeyVersion, nonce: nonce, ciphertext: ciphertext}
	if ttl > 0 {
		c.inner.SetWithTTL(key, entry, ttl)
	} else {
		c.inner.Set(key, entry)
	}
	return nil
}

// Get decrypts and returns the plaintext for key. A decryption failure,
// an authentication failure, or a key-version mismatch are all treated
// identically to a cache miss: this method never returns a partially
// decrypted value.
func (c *EncryptedCache) Get(key string) ([]byte, bool) {
	raw, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := raw.(stored)
	if !ok {
		return nil, false
	}
	if entry.keyVersion != c.key.KeyVersion {
		return nil, false
	}
	plaintext, err := c.aead.Open(nil, entry.nonce, entry.ciphertext, nil)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// Delete removes key from the underlying cache.
func (c *EncryptedCache) Delete(key string) {
	c.inner.Delete(key)
}

// ErrKeyTooShort is returned by NewKeyFromSecret when the supplied
// material is too weak to derive from safely.
var ErrKeyTooShort = errors.New("cache: encryption secret must be at least 16 bytes")

// NewKeyFromSecret validates secret length and wraps it as an
// EncryptionKey at the given version.
func NewKeyFromSecret(version byte, secret []byte) (EncryptionKey, error) {
	if len(secret) < 16 {
		return EncryptionKey{}, ErrKeyTooShort
	}
	return EncryptionKey{KeyVersion: version, Secret: secret}, nil
}
