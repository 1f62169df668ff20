package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
)

// ed25519Verify checks a 64-byte signature over message with a 32-byte
// public key.
func ed25519Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}

// drbg is the hash-based fallback generator used when the OS source fails:
// SHA-256 over a reseeded counter chain. It is deliberately simple; the OS
// source is always preferred.
type drbg struct {
	mu      sync.Mutex
	state   [32]byte
	counter uint64
	seeded  bool
}

var fallbackRand drbg

func (d *drbg) read(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.seeded {
		copy(d.state[:], hashSHA256([]byte("viper-ssh-fallback-drbg")))
		d.seeded = true
	}
	for len(p) > 0 {
		d.counter++
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], d.counter)
		block := hashSHA256(append(d.state[:], ctr[:]...))
		n := copy(p, block)
		p = p[n:]
		copy(d.state[:], hashSHA256(append(block, d.state[:]...)))
	}
}

// randomBytes fills p from the OS RNG, falling back to the hash DRBG when
// the OS source is unavailable.
func randomBytes(p []byte) error {
	if _, err := io.ReadFull(rand.Reader, p); err != nil {
		fallbackRand.read(p)
	}
	return nil
}

func zeroBytes(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
