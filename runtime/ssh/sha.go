package ssh

import "encoding/binary"

// SHA-1, SHA-256, and SHA-512 implemented directly from FIPS 180-4. Each
// helper produces a standalone digest with no hidden state between calls.

func rotr32(x uint32, n uint) uint32 { return x>>n | x<<(32-n) }
func rotl32(x uint32, n uint) uint32 { return x<<n | x>>(32-n) }
func rotr64(x uint64, n uint) uint64 { return x>>n | x<<(64-n) }

var sha256K = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

func sha256Transform(state *[8]uint32, block []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr32(w[i-15], 7) ^ rotr32(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr32(w[i-2], 17) ^ rotr32(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d := state[0], state[1], state[2], state[3]
	e, f, g, h := state[4], state[5], state[6], state[7]
	for i := 0; i < 64; i++ {
		s1 := rotr32(e, 6) ^ rotr32(e, 11) ^ rotr32(e, 25)
		ch := (e & f) ^ (^e & g)
		t1 := h + s1 + ch + sha256K[i] + w[i]
		s0 := rotr32(a, 2) ^ rotr32(a, 13) ^ rotr32(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := s0 + maj
		h, g, f, e = g, f, e, d+t1
		d, c, b, a = c, b, a, t1+t2
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
	state[4] += e
	state[5] += f
	state[6] += g
	state[7] += h
}

// pad64 builds the trailing blocks for the 64-byte-block hashes: 0x80, zero
// fill, and the 64-bit message bit length.
func pad64(remainder []byte, total uint64) []byte {
	padded := make([]byte, 0, 128)
	padded = append(padded, remainder...)
	padded = append(padded, 0x80)
	for (len(padded)+8)%64 != 0 {
		padded = append(padded, 0)
	}
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], total*8)
	return append(padded, length[:]...)
}

// hashSHA256 returns the 32-byte SHA-256 digest of data.
func hashSHA256(data []byte) []byte {
	state := [8]uint32{
		0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
		0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
	}
	total := uint64(len(data))
	for len(data) >= 64 {
		sha256Transform(&state, data[:64])
		data = data[64:]
	}
	tail := pad64(data, total)
	for len(tail) > 0 {
		sha256Transform(&state, tail[:64])
		tail = tail[64:]
	}

	digest := make([]byte, 32)
	for i, word := range state {
		binary.BigEndian.PutUint32(digest[i*4:], word)
	}
	return digest
}

func sha1Transform(state *[5]uint32, block []byte) {
	var w [80]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 80; i++ {
		w[i] = rotl32(w[i-3]^w[i-8]^w[i-14]^w[i-16], 1)
	}

	a, b, c, d, e := state[0], state[1], state[2], state[3], state[4]
	for i := 0; i < 80; i++ {
		var f, k uint32
		switch {
		case i < 20:
			f = (b & c) | (^b & d)
			k = 0x5a827999
		case i < 40:
			f = b ^ c ^ d
			k = 0x6ed9eba1
		case i < 60:
			f = (b & c) | (b & d) | (c & d)
			k = 0x8f1bbcdc
		default:
			f = b ^ c ^ d
			k = 0xca62c1d6
		}
		t := rotl32(a, 5) + f + e + k + w[i]
		e, d, c, b, a = d, c, rotl32(b, 30), a, t
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
	state[4] += e
}

// hashSHA1 returns the 20-byte SHA-1 digest of data.
func hashSHA1(data []byte) []byte {
	state := [5]uint32{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476, 0xc3d2e1f0}
	total := uint64(len(data))
	for len(data) >= 64 {
		sha1Transform(&state, data[:64])
		data = data[64:]
	}
	tail := pad64(data, total)
	for len(tail) > 0 {
		sha1Transform(&state, tail[:64])
		tail = tail[64:]
	}

	digest := make([]byte, 20)
	for i, word := range state {
		binary.BigEndian.PutUint32(digest[i*4:], word)
	}
	return digest
}

var sha512K = [80]uint64{
	0x428a2f98d728ae22, 0x7137449123ef65cd, 0xb5c0fbcfec4d3b2f, 0xe9b5dba58189dbbc,
	0x3956c25bf348b538, 0x59f111f1b605d019, 0x923f82a4af194f9b, 0xab1c5ed5da6d8118,
	0xd807aa98a3030242, 0x12835b0145706fbe, 0x243185be4ee4b28c, 0x550c7dc3d5ffb4e2,
	0x72be5d74f27b896f, 0x80deb1fe3b1696b1, 0x9bdc06a725c71235, 0xc19bf174cf692694,
	0xe49b69c19ef14ad2, 0xefbe4786384f25e3, 0x0fc19dc68b8cd5b5, 0x240ca1cc77ac9c65,
	0x2de92c6f592b0275, 0x4a7484aa6ea6e483, 0x5cb0a9dcbd41fbd4, 0x76f988da831153b5,
	0x983e5152ee66dfab, 0xa831c66d2db43210, 0xb00327c898fb213f, 0xbf597fc7beef0ee4,
	0xc6e00bf33da88fc2, 0xd5a79147930aa725, 0x06ca6351e003826f, 0x142929670a0e6e70,
	0x27b70a8546d22ffc, 0x2e1b21385c26c926, 0x4d2c6dfc5ac42aed, 0x53380d139d95b3df,
	0x650a73548baf63de, 0x766a0abb3c77b2a8, 0x81c2c92e47edaee6, 0x92722c851482353b,
	0xa2bfe8a14cf10364, 0xa81a664bbc423001, 0xc24b8b70d0f89791, 0xc76c51a30654be30,
	0xd192e819d6ef5218, 0xd69906245565a910, 0xf40e35855771202a, 0x106aa07032bbd1b8,
	0x19a4c116b8d2d0c8, 0x1e376c085141ab53, 0x2748774cdf8eeb99, 0x34b0bcb5e19b48a8,
	0x391c0cb3c5c95a63, 0x4ed8aa4ae3418acb, 0x5b9cca4f7763e373, 0x682e6ff3d6b2b8a3,
	0x748f82ee5defb2fc, 0x78a5636f43172f60, 0x84c87814a1f0ab72, 0x8cc702081a6439ec,
	0x90befffa23631e28, 0xa4506cebde82bde9, 0xbef9a3f7b2c67915, 0xc67178f2e372532b,
	0xca273eceea26619c, 0xd186b8c721c0c207, 0xeada7dd6cde0eb1e, 0xf57d4f7fee6ed178,
	0x06f067aa72176fba, 0x0a637dc5a2c898a6, 0x113f9804bef90dae, 0x1b710b35131c471b,
	0x28db77f523047d84, 0x32caab7b40c72493, 0x3c9ebe0a15c9bebc, 0x431d67c49c100d4c,
	0x4cc5d4becb3e42b6, 0x597f299cfc657e2a, 0x5fcb6fab3ad6faec, 0x6c44198c4a475817,
}

func sha512Transform(state *[8]uint64, block []byte) {
	var w [80]uint64
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint64(block[i*8:])
	}
	for i := 16; i < 80; i++ {
		s0 := rotr64(w[i-15], 1) ^ rotr64(w[i-15], 8) ^ (w[i-15] >> 7)
		s1 := rotr64(w[i-2], 19) ^ rotr64(w[i-2], 61) ^ (w[i-2] >> 6)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d := state[0], state[1], state[2], state[3]
	e, f, g, h := state[4], state[5], state[6], state[7]
	for i := 0; i < 80; i++ {
		s1 := rotr64(e, 14) ^ rotr64(e, 18) ^ rotr64(e, 41)
		ch := (e & f) ^ (^e & g)
		t1 := h + s1 + ch + sha512K[i] + w[i]
		s0 := rotr64(a, 28) ^ rotr64(a, 34) ^ rotr64(a, 39)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := s0 + maj
		h, g, f, e = g, f, e, d+t1
		d, c, b, a = c, b, a, t1+t2
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
	state[4] += e
	state[5] += f
	state[6] += g
	state[7] += h
}

// hashSHA512 returns the 64-byte SHA-512 digest of data. Padding carries a
// 128-bit length field; message sizes here keep the high word zero.
func hashSHA512(data []byte) []byte {
	state := [8]uint64{
		0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
		0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
	}
	total := uint64(len(data))
	for len(data) >= 128 {
		sha512Transform(&state, data[:128])
		data = data[128:]
	}

	padded := make([]byte, 0, 256)
	padded = append(padded, data...)
	padded = append(padded, 0x80)
	for (len(padded)+16)%128 != 0 {
		padded = append(padded, 0)
	}
	var length [16]byte
	binary.BigEndian.PutUint64(length[8:], total*8)
	padded = append(padded, length[:]...)
	for len(padded) > 0 {
		sha512Transform(&state, padded[:128])
		padded = padded[128:]
	}

	digest := make([]byte, 64)
	for i, word := range state {
		binary.BigEndian.PutUint64(digest[i*8:], word)
	}
	return digest
}
