// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/cache"
)

func TestEncryptedCacheRoundTrip(t *testing.T) {
	key, err := cache.NewKeyFromSecret(1, []byte("0123456789abcdef"))
	require.NoError(t, err)
	enc, err := cache.NewEncryptedCache(cache.NewTTL(time.Minute), key)
	require.NoError(t, err)

	require.NoError(t, enc.Set("stream:u1:t1", []byte("https://example/presigned")))

	got, ok := enc.Get("stream:u1:t1")
	require.True(t, ok)
	require.Equal(t, "https://example/presigned", string(got))
}

func TestEncryptedCacheKeyVersionMismatchIsMiss(t *testing.T) {
	key1, _ := cache.NewKeyFromSecret(1, []byte("0123456789abcdef"))
	inner := cache.NewTTL(time.Minute)
	enc1, _ := cache.NewEncryptedCache(inner, key1)
	require.NoError(t, enc1.Set("k", []byte("v")))

	key2, _ := cache.NewKeyFromSecret(2, []byte("fedcba9876543210"))
	enc2, _ := cache.NewEncryptedCache(inner, key2)

	_, ok := enc2.Get("k")
	require.False(t, ok)
}

func TestNewKeyFromSecretTooShort(t *testing.T) {
	_, err := cache.NewKeyFromSecret(1, []byte("short"))
	require.ErrorIs(t, err, cache.ErrKeyTooShort)
}
