package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/splanck/viper/runtime/ssh"
)

// hostKeyCache is the trusted-key store persisted as CBOR: hostname to the
// SHA-256 fingerprint of the raw key blob plus the key type name.
type hostKeyCache struct {
	path    string
	Entries map[string]hostKeyEntry `cbor:"entries"`
}

type hostKeyEntry struct {
	Fingerprint string `cbor:"fingerprint"`
	KeyType     string `cbor:"key_type"`
}

func loadHostKeyCache(path string) (*hostKeyCache, error) {
	cache := &hostKeyCache{path: path, Entries: make(map[string]hostKeyEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return nil, err
	}
	if err := cbor.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("corrupt host key cache %s: %w", path, err)
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]hostKeyEntry)
	}
	cache.path = path
	return cache, nil
}

func (c *hostKeyCache) save() error {
	data, err := cbor.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o600)
}

func fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// verifier returns the host-key callback: known hosts must match their
// stored fingerprint, unknown hosts are trusted on first use and recorded.
func (c *hostKeyCache) verifier() ssh.HostKeyVerifier {
	return func(hostname string, key []byte, keyType string) int {
		fp := fingerprint(key)
		if entry, known := c.Entries[hostname]; known {
			if entry.Fingerprint == fp {
				return 0
			}
			fmt.Fprintf(os.Stderr, "host key for %s changed (stored %s..., got %s...)\n",
				hostname, entry.Fingerprint[:16], fp[:16])
			return 1
		}
		c.Entries[hostname] = hostKeyEntry{Fingerprint: fp, KeyType: keyType}
		if err := c.save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save host key cache: %v\n", err)
		}
		return 0
	}
}
