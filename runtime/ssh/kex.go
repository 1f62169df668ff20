package ssh

import (
	"strings"

	"github.com/splanck/viper/core/invariant"
)

// buildKexInit assembles the KEXINIT payload: cookie, the ten algorithm name
// lists, first_kex_packet_follows, and the reserved field.
func buildKexInit() ([]byte, error) {
	cookie := make([]byte, 16)
	if err := randomBytes(cookie); err != nil {
		return nil, err
	}
	payload := append([]byte(nil), cookie...)
	payload = appendStringText(payload, strings.Join(kexAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(hostKeyAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(cipherAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(cipherAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(macAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(macAlgorithms, ","))
	payload = appendStringText(payload, strings.Join(compressionAlgos, ","))
	payload = appendStringText(payload, strings.Join(compressionAlgos, ","))
	payload = appendStringText(payload, "")
	payload = appendStringText(payload, "")
	payload = appendBool(payload, false)
	payload = appendU32(payload, 0)
	return payload, nil
}

// parseKexInit negotiates each slot against the server's KEXINIT: the first
// locally-offered algorithm present in the server list wins.
func (s *Session) parseKexInit(payload []byte) error {
	if len(payload) < 16 {
		return protocolErrorf("short KEXINIT")
	}
	rest := payload[16:]

	next := func() (string, error) {
		field, remainder, err := takeString(rest)
		if err != nil {
			return "", protocolErrorf("truncated KEXINIT")
		}
		rest = remainder
		return string(field), nil
	}

	kexList, err := next()
	if err != nil {
		return err
	}
	hostKeyList, err := next()
	if err != nil {
		return err
	}
	cipherC2S, err := next()
	if err != nil {
		return err
	}
	cipherS2C, err := next()
	if err != nil {
		return err
	}
	macC2S, err := next()
	if err != nil {
		return err
	}
	macS2C, err := next()
	if err != nil {
		return err
	}
	compC2S, err := next()
	if err != nil {
		return err
	}
	compS2C, err := next()
	if err != nil {
		return err
	}

	if s.algs.kex, err = pickFirstCommon(kexAlgorithms, kexList, "kex"); err != nil {
		return err
	}
	if s.algs.hostKey, err = pickFirstCommon(hostKeyAlgorithms, hostKeyList, "host key"); err != nil {
		return err
	}
	if s.algs.cipherC2S, err = pickFirstCommon(cipherAlgorithms, cipherC2S, "cipher"); err != nil {
		return err
	}
	if s.algs.cipherS2C, err = pickFirstCommon(cipherAlgorithms, cipherS2C, "cipher"); err != nil {
		return err
	}
	if s.algs.macC2S, err = pickFirstCommon(macAlgorithms, macC2S, "mac"); err != nil {
		return err
	}
	if s.algs.macS2C, err = pickFirstCommon(macAlgorithms, macS2C, "mac"); err != nil {
		return err
	}
	if _, err = pickFirstCommon(compressionAlgos, compC2S, "compression"); err != nil {
		return err
	}
	if _, err = pickFirstCommon(compressionAlgos, compS2C, "compression"); err != nil {
		return err
	}
	return nil
}

// runKex drives the full key exchange: KEXINIT both ways, curve25519 ECDH,
// host-key verification, key derivation, and the NEWKEYS transition.
func (s *Session) runKex() error {
	s.state = StateKexInit

	local, err := buildKexInit()
	if err != nil {
		return err
	}
	s.kexInitLocal = local
	if err := s.sendPacket(msgKexInit, local); err != nil {
		return err
	}

	remote, err := s.waitPacket(msgKexInit)
	if err != nil {
		return err
	}
	s.kexInitRemote = append([]byte(nil), remote...)
	if err := s.parseKexInit(s.kexInitRemote); err != nil {
		return err
	}

	s.state = StateKex
	sharedK, exchangeH, err := s.kexCurve25519()
	if err != nil {
		return err
	}
	defer zeroBytes(sharedK)

	s.deriveKeys(sharedK, exchangeH)
	if s.sessionID == nil {
		s.sessionID = append([]byte(nil), exchangeH...)
	}

	if err := s.sendPacket(msgNewKeys, nil); err != nil {
		return err
	}
	if _, err := s.waitPacket(msgNewKeys); err != nil {
		return err
	}

	return s.activateKeys()
}

// kexCurve25519 performs the ECDH round trip and returns (K, H). The
// signature inside KEX_ECDH_REPLY is verified against the server host key,
// then the host-key verifier callback gets the final say.
func (s *Session) kexCurve25519() (sharedK, exchangeH []byte, err error) {
	secret, public, err := x25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	defer zeroBytes(secret[:])

	init := appendString(nil, public[:])
	if err := s.sendPacket(msgKexECDHInit, init); err != nil {
		return nil, nil, err
	}

	reply, err := s.waitPacket(msgKexECDHReply)
	if err != nil {
		return nil, nil, err
	}

	hostKey, rest, err := takeString(reply)
	if err != nil {
		return nil, nil, protocolErrorf("truncated KEX_ECDH_REPLY")
	}
	serverPublic, rest, err := takeString(rest)
	if err != nil || len(serverPublic) != 32 {
		return nil, nil, protocolErrorf("bad server ephemeral key")
	}
	signature, _, err := takeString(rest)
	if err != nil {
		return nil, nil, protocolErrorf("truncated KEX_ECDH_REPLY signature")
	}
	s.serverHostKey = append([]byte(nil), hostKey...)

	sharedK, err = x25519Shared(secret[:], serverPublic)
	if err != nil {
		return nil, nil, err
	}

	// Exchange hash H over the concatenated, length-prefixed transcript.
	// I_C and I_S include the KEXINIT message byte.
	var transcript []byte
	transcript = appendStringText(transcript, Banner)
	transcript = appendStringText(transcript, s.serverBanner)
	transcript = appendU32(transcript, uint32(len(s.kexInitLocal)+1))
	transcript = appendU8(transcript, msgKexInit)
	transcript = append(transcript, s.kexInitLocal...)
	transcript = appendU32(transcript, uint32(len(s.kexInitRemote)+1))
	transcript = appendU8(transcript, msgKexInit)
	transcript = append(transcript, s.kexInitRemote...)
	transcript = appendString(transcript, hostKey)
	transcript = appendString(transcript, public[:])
	transcript = appendString(transcript, serverPublic)
	transcript = appendMpint(transcript, sharedK)
	exchangeH = hashSHA256(transcript)

	if err := s.verifyHostKeySignature(hostKey, signature, exchangeH); err != nil {
		return nil, nil, err
	}

	if s.hostKeyVerifier != nil {
		keyType, _, typeErr := takeString(hostKey)
		typeName := s.algs.hostKey
		if typeErr == nil {
			typeName = string(keyType)
		}
		if s.hostKeyVerifier(s.hostname, hostKey, typeName) != 0 {
			return nil, nil, ErrHostKeyRejected
		}
	}
	return sharedK, exchangeH, nil
}

// verifyHostKeySignature parses "string alg || string sig" and checks the
// signature over H. Ed25519 is verified for real; other key types cannot be
// verified here and are rejected unless a host-key verifier callback is
// installed, which then decides whether to accept the key.
func (s *Session) verifyHostKeySignature(hostKey, signature, exchangeH []byte) error {
	sigAlg, rest, err := takeString(signature)
	if err != nil {
		return protocolErrorf("malformed kex signature")
	}
	sigBytes, _, err := takeString(rest)
	if err != nil {
		return protocolErrorf("malformed kex signature")
	}

	if string(sigAlg) == hostKeyEd25519 {
		keyType, keyRest, err := takeString(hostKey)
		if err != nil || string(keyType) != hostKeyEd25519 {
			return protocolErrorf("host key type mismatch")
		}
		publicKey, _, err := takeString(keyRest)
		if err != nil || len(publicKey) != 32 {
			return protocolErrorf("bad ed25519 host key")
		}
		if len(sigBytes) != 64 || !ed25519Verify(publicKey, exchangeH, sigBytes) {
			return &KexError{Reason: "host key signature verification failed"}
		}
		return nil
	}

	// RSA host keys are accepted in negotiation, but the signature cannot be
	// verified here; refuse unless a callback is installed to take
	// responsibility for the key.
	if s.hostKeyVerifier == nil {
		return ErrHostKeyRejected
	}
	return nil
}

// deriveKeys produces the six key slots via
// K_i = SHA-256(K_mpint || H || X || session_id), extending the cipher and
// MAC slots with a second block hashed over the previous output.
func (s *Session) deriveKeys(sharedK, exchangeH []byte) {
	base := appendMpint(nil, sharedK)
	base = append(base, exchangeH...)

	sessionID := s.sessionID
	if sessionID == nil {
		sessionID = exchangeH
	}

	derive := func(letter byte, out []byte, extend bool) {
		input := append(append([]byte(nil), base...), letter)
		input = append(input, sessionID...)
		first := hashSHA256(input)
		copy(out, first)
		if extend {
			second := hashSHA256(append(input, first...))
			copy(out[32:], second)
		}
	}

	derive('A', s.keys.ivC2S[:], false)
	derive('B', s.keys.ivS2C[:], false)
	derive('C', s.keys.keyC2S[:], true)
	derive('D', s.keys.keyS2C[:], true)
	derive('E', s.keys.macC2S[:], true)
	derive('F', s.keys.macS2C[:], true)
}

// activateKeys installs the cipher and MAC contexts and flips the session to
// encrypted operation; this happens exactly once, at the NEWKEYS boundary.
func (s *Session) activateKeys() error {
	invariant.Precondition(!s.encrypted, "encryption must activate exactly once")
	s.state = StateNewKeys

	keyLen := keyLenForCipher(s.algs.cipherC2S)
	out, err := newCTRStream(s.keys.keyC2S[:keyLen], s.keys.ivC2S[:16])
	if err != nil {
		return err
	}
	keyLen = keyLenForCipher(s.algs.cipherS2C)
	in, err := newCTRStream(s.keys.keyS2C[:keyLen], s.keys.ivS2C[:16])
	if err != nil {
		return err
	}
	s.cipherOut = out
	s.cipherIn = in
	s.macOut = newMacContext(s.algs.macC2S, s.keys.macC2S[:])
	s.macIn = newMacContext(s.algs.macS2C, s.keys.macS2C[:])
	s.encrypted = true

	s.log.WithField("cipher", s.algs.cipherC2S).WithField("mac", s.algs.macC2S).
		Debug("encryption active")
	return nil
}
