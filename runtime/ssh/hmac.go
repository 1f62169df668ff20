package ssh

import (
	"crypto/subtle"
	"encoding/binary"
)

// HMAC per RFC 2104: the standard ipad/opad construction with a 64-byte
// block, over the hash implementations in this package.

const hmacBlockSize = 64

type hashFn func([]byte) []byte

// hmacSum computes HMAC(key, data) with the given hash. Keys longer than the
// block are hashed first; shorter keys are zero-padded.
func hmacSum(h hashFn, key, data []byte) []byte {
	var block [hmacBlockSize]byte
	if len(key) > hmacBlockSize {
		copy(block[:], h(key))
	} else {
		copy(block[:], key)
	}

	inner := make([]byte, hmacBlockSize, hmacBlockSize+len(data))
	outer := make([]byte, hmacBlockSize, hmacBlockSize+64)
	for i := 0; i < hmacBlockSize; i++ {
		inner[i] = block[i] ^ 0x36
		outer[i] = block[i] ^ 0x5c
	}

	innerDigest := h(append(inner, data...))
	return h(append(outer, innerDigest...))
}

// macContext computes per-packet MACs keyed by the negotiated algorithm.
type macContext struct {
	hash hashFn
	key  []byte
	size int
}

func newMacContext(algo string, key []byte) *macContext {
	switch algo {
	case macHmacSHA256:
		return &macContext{hash: hashSHA256, key: append([]byte(nil), key[:32]...), size: 32}
	case macHmacSHA1:
		return &macContext{hash: hashSHA1, key: append([]byte(nil), key[:20]...), size: 20}
	default:
		return nil
	}
}

// sum computes HMAC(key, seq_be32 || packet) for the encrypt-and-MAC scheme.
func (m *macContext) sum(seq uint32, packet []byte) []byte {
	data := make([]byte, 4, 4+len(packet))
	binary.BigEndian.PutUint32(data, seq)
	data = append(data, packet...)
	return m.sumRaw(data)
}

// sumRaw computes HMAC over data alone, without the sequence prefix.
func (m *macContext) sumRaw(data []byte) []byte {
	return hmacSum(m.hash, m.key, data)
}

func (m *macContext) verify(seq uint32, packet, received []byte) bool {
	expected := m.sum(seq, packet)
	return subtle.ConstantTimeCompare(expected, received) == 1
}

func (m *macContext) zero() {
	for i := range m.key {
		m.key[i] = 0
	}
}
