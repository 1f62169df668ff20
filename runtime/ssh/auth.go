package ssh

import (
	"crypto/ed25519"
	"strings"
)

// authPrefix is the shared USERAUTH_REQUEST head: username, service,
// method.
func (s *Session) authPrefix(method string) []byte {
	payload := appendStringText(nil, s.user)
	payload = appendStringText(payload, "ssh-connection")
	payload = appendStringText(payload, method)
	return payload
}

// waitAuthResult drives the receive loop until SUCCESS or FAILURE, printing
// or discarding BANNER messages along the way.
func (s *Session) waitAuthResult() (bool, error) {
	for {
		msgType, payload, err := s.recvPacket()
		if err != nil {
			return false, err
		}
		switch msgType {
		case msgUserauthSuccess:
			s.state = StateAuthenticated
			return true, nil
		case msgUserauthFailure:
			methods, _, err := takeString(payload)
			if err == nil {
				s.remainingAuth = strings.Split(string(methods), ",")
			}
			return false, nil
		case msgUserauthBanner:
			banner, _, err := takeString(payload)
			if err == nil {
				s.log.WithField("banner", string(banner)).Info("server banner")
			}
		default:
			if _, err := s.routeUnexpected(msgType, payload); err != nil {
				return false, err
			}
		}
	}
}

// AuthNone attempts the "none" method; servers use the failure to advertise
// the methods they accept.
func (s *Session) AuthNone() error {
	if err := s.sendPacket(msgUserauthRequest, s.authPrefix("none")); err != nil {
		return err
	}
	ok, err := s.waitAuthResult()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthDenied
	}
	return nil
}

// AuthPassword attempts password authentication.
func (s *Session) AuthPassword(password string) error {
	payload := s.authPrefix("password")
	payload = appendBool(payload, false)
	payload = appendStringText(payload, password)
	if err := s.sendPacket(msgUserauthRequest, payload); err != nil {
		return err
	}
	ok, err := s.waitAuthResult()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthDenied
	}
	return nil
}

// Ed25519KeyPair is the client identity used for publickey auth.
type Ed25519KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Blob renders the public key in SSH wire format.
func (k *Ed25519KeyPair) Blob() []byte {
	blob := appendStringText(nil, hostKeyEd25519)
	return appendString(blob, k.Public)
}

// ProbePublicKey asks the server whether the key would be acceptable without
// signing anything; a PK_OK reply reports acceptance.
func (s *Session) ProbePublicKey(key *Ed25519KeyPair) (bool, error) {
	payload := s.authPrefix("publickey")
	payload = appendBool(payload, false)
	payload = appendStringText(payload, hostKeyEd25519)
	payload = appendString(payload, key.Blob())
	if err := s.sendPacket(msgUserauthRequest, payload); err != nil {
		return false, err
	}
	for {
		msgType, reply, err := s.recvPacket()
		if err != nil {
			return false, err
		}
		switch msgType {
		case msgUserauthPkOK:
			return true, nil
		case msgUserauthFailure:
			methods, _, err := takeString(reply)
			if err == nil {
				s.remainingAuth = strings.Split(string(methods), ",")
			}
			return false, nil
		default:
			if _, err := s.routeUnexpected(msgType, reply); err != nil {
				return false, err
			}
		}
	}
}

// AuthPublicKey signs the transcript-bound blob with the client key and
// sends the full publickey request.
func (s *Session) AuthPublicKey(key *Ed25519KeyPair) error {
	blob := key.Blob()

	prefix := s.authPrefix("publickey")
	prefix = appendBool(prefix, true)
	prefix = appendStringText(prefix, hostKeyEd25519)
	prefix = appendString(prefix, blob)

	// The signature covers: string session_id || byte USERAUTH_REQUEST ||
	// the request body up to and including the key blob.
	signed := appendString(nil, s.sessionID)
	signed = appendU8(signed, msgUserauthRequest)
	signed = append(signed, prefix...)

	rawSig := ed25519.Sign(key.Private, signed)
	sig := appendStringText(nil, hostKeyEd25519)
	sig = appendString(sig, rawSig)

	payload := append(prefix, appendString(nil, sig)...)
	if err := s.sendPacket(msgUserauthRequest, payload); err != nil {
		return err
	}
	ok, err := s.waitAuthResult()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthDenied
	}
	return nil
}
