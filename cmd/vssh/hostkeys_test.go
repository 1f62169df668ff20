package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostKeyCacheTrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts.cbor")
	cache, err := loadHostKeyCache(path)
	require.NoError(t, err)

	verify := cache.verifier()
	key := []byte("fake-ed25519-blob")

	// First sight: trusted and recorded.
	assert.Equal(t, 0, verify("example.com", key, "ssh-ed25519"))
	assert.Contains(t, cache.Entries, "example.com")

	// Same key again: still trusted, including after a reload.
	assert.Equal(t, 0, verify("example.com", key, "ssh-ed25519"))

	reloaded, err := loadHostKeyCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.verifier()("example.com", key, "ssh-ed25519"))
}

func TestHostKeyCacheRejectsChangedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts.cbor")
	cache, err := loadHostKeyCache(path)
	require.NoError(t, err)

	verify := cache.verifier()
	require.Equal(t, 0, verify("example.com", []byte("key-one"), "ssh-ed25519"))
	assert.Equal(t, 1, verify("example.com", []byte("key-two"), "ssh-ed25519"))
}

func TestHostKeyCacheMissingFileIsEmpty(t *testing.T) {
	cache, err := loadHostKeyCache(filepath.Join(t.TempDir(), "absent.cbor"))
	require.NoError(t, err)
	assert.Empty(t, cache.Entries)
}
