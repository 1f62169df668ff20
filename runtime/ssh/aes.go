package ssh

import (
	"encoding/binary"
	"fmt"
)

// AES-128/256 encryption per FIPS-197 (key expansion and the forward cipher
// only; CTR never needs the inverse), plus the CTR keystream used by the
// packet layer.

var aesSbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

var aesRcon = [11]byte{0x00, 0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0x1b, 0x36}

type aesKey struct {
	rounds    int
	roundKeys [60]uint32 // 4*(rounds+1) words
}

func subWord(w uint32) uint32 {
	return uint32(aesSbox[w>>24])<<24 |
		uint32(aesSbox[w>>16&0xff])<<16 |
		uint32(aesSbox[w>>8&0xff])<<8 |
		uint32(aesSbox[w&0xff])
}

func rotWord(w uint32) uint32 { return w<<8 | w>>24 }

// expandAESKey runs the FIPS-197 key schedule for Nk = 4 or 8.
func expandAESKey(key []byte) (*aesKey, error) {
	nk := len(key) / 4
	var rounds int
	switch len(key) {
	case 16:
		rounds = 10
	case 32:
		rounds = 14
	default:
		return nil, fmt.Errorf("ssh: invalid AES key length %d", len(key))
	}

	k := &aesKey{rounds: rounds}
	for i := 0; i < nk; i++ {
		k.roundKeys[i] = binary.BigEndian.Uint32(key[i*4:])
	}
	for i := nk; i < 4*(rounds+1); i++ {
		temp := k.roundKeys[i-1]
		if i%nk == 0 {
			temp = subWord(rotWord(temp)) ^ uint32(aesRcon[i/nk])<<24
		} else if nk == 8 && i%nk == 4 {
			temp = subWord(temp)
		}
		k.roundKeys[i] = k.roundKeys[i-nk] ^ temp
	}
	return k, nil
}

// xtime multiplies by x in GF(2^8) modulo the AES polynomial.
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

// encryptBlock runs the forward cipher on one 16-byte block.
func (k *aesKey) encryptBlock(dst, src []byte) {
	var state [16]byte
	copy(state[:], src)
	addRoundKey(&state, k.roundKeys[0:4])

	for round := 1; round < k.rounds; round++ {
		subBytes(&state)
		shiftRows(&state)
		mixColumns(&state)
		addRoundKey(&state, k.roundKeys[round*4:round*4+4])
	}
	subBytes(&state)
	shiftRows(&state)
	addRoundKey(&state, k.roundKeys[k.rounds*4:k.rounds*4+4])
	copy(dst, state[:])
}

func addRoundKey(state *[16]byte, words []uint32) {
	for c := 0; c < 4; c++ {
		w := words[c]
		state[c*4+0] ^= byte(w >> 24)
		state[c*4+1] ^= byte(w >> 16)
		state[c*4+2] ^= byte(w >> 8)
		state[c*4+3] ^= byte(w)
	}
}

func subBytes(state *[16]byte) {
	for i := range state {
		state[i] = aesSbox[state[i]]
	}
}

// shiftRows rotates row r of the column-major state left by r.
func shiftRows(state *[16]byte) {
	s := *state
	for r := 1; r < 4; r++ {
		state[0*4+r] = s[((0+r)%4)*4+r]
		state[1*4+r] = s[((1+r)%4)*4+r]
		state[2*4+r] = s[((2+r)%4)*4+r]
		state[3*4+r] = s[((3+r)%4)*4+r]
	}
}

func mixColumns(state *[16]byte) {
	for c := 0; c < 4; c++ {
		a0 := state[c*4+0]
		a1 := state[c*4+1]
		a2 := state[c*4+2]
		a3 := state[c*4+3]
		state[c*4+0] = xtime(a0) ^ (xtime(a1) ^ a1) ^ a2 ^ a3
		state[c*4+1] = a0 ^ xtime(a1) ^ (xtime(a2) ^ a2) ^ a3
		state[c*4+2] = a0 ^ a1 ^ xtime(a2) ^ (xtime(a3) ^ a3)
		state[c*4+3] = (xtime(a0) ^ a0) ^ a1 ^ a2 ^ xtime(a3)
	}
}

// ctrStream is the per-direction AES-CTR keystream. The 16-byte counter is
// the negotiated IV treated as a big-endian integer, incremented after each
// block; the keystream byte cursor wraps every 16 bytes. The stream
// continues across packets and is reset only when direction keys are
// installed.
type ctrStream struct {
	key       *aesKey
	counter   [16]byte
	keystream [16]byte
	cursor    int
	rawKey    []byte
}

func newCTRStream(key, iv []byte) (*ctrStream, error) {
	expanded, err := expandAESKey(key)
	if err != nil {
		return nil, err
	}
	c := &ctrStream{
		key:    expanded,
		cursor: 16,
		rawKey: append([]byte(nil), key...),
	}
	copy(c.counter[:], iv)
	return c, nil
}

// process encrypts or decrypts in place; CTR mode is symmetric.
func (c *ctrStream) process(dst, src []byte) {
	for i := range src {
		if c.cursor == 16 {
			c.key.encryptBlock(c.keystream[:], c.counter[:])
			for j := 15; j >= 0; j-- {
				c.counter[j]++
				if c.counter[j] != 0 {
					break
				}
			}
			c.cursor = 0
		}
		dst[i] = src[i] ^ c.keystream[c.cursor]
		c.cursor++
	}
}

func (c *ctrStream) zero() {
	for i := range c.rawKey {
		c.rawKey[i] = 0
	}
	zeroBytes(c.keystream[:])
	for i := range c.key.roundKeys {
		c.key.roundKeys[i] = 0
	}
}
