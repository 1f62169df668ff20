package ssh

import (
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Banner is the client identification string sent during version exchange.
const Banner = "SSH-2.0-viperSSH_0.1"

// State tracks the session lifecycle. Transitions are monotonic; once
// Disconnected is reached no further packets are sent.
type State uint8

const (
	StateNone State = iota
	StateConnecting
	StateVersionExchange
	StateKexInit
	StateKex
	StateNewKeys
	StateServiceRequest
	StateAuthenticated
	StateDisconnected
)

// HostKeyVerifier decides whether to trust a server host key. It receives
// the hostname, the raw key blob from the wire, and the key type name; a
// zero return accepts. It is invoked once per connection, after the kex
// signature is verified and before NEWKEYS.
type HostKeyVerifier func(hostname string, key []byte, keyType string) int

// Config carries the caller-supplied session parameters.
type Config struct {
	Hostname        string
	User            string
	HostKeyVerifier HostKeyVerifier
	Logger          logrus.FieldLogger
}

// keyMaterial is the derived key block; each slot holds up to 64 bytes so a
// second derivation round can extend cipher and MAC keys.
type keyMaterial struct {
	ivC2S  [64]byte
	ivS2C  [64]byte
	keyC2S [64]byte
	keyS2C [64]byte
	macC2S [64]byte
	macS2C [64]byte
}

func (k *keyMaterial) zero() {
	zeroBytes(k.ivC2S[:])
	zeroBytes(k.ivS2C[:])
	zeroBytes(k.keyC2S[:])
	zeroBytes(k.keyS2C[:])
	zeroBytes(k.macC2S[:])
	zeroBytes(k.macS2C[:])
}

// Session is an SSH-2 client connection. It owns the socket and every
// channel opened on it; operations are blocking and single-threaded.
type Session struct {
	conn net.Conn
	log  logrus.FieldLogger

	state     State
	encrypted bool

	seqIn  uint32
	seqOut uint32

	cipherIn  *ctrStream
	cipherOut *ctrStream
	macIn     *macContext
	macOut    *macContext

	keys      keyMaterial
	sessionID []byte

	serverBanner  string
	kexInitLocal  []byte
	kexInitRemote []byte
	algs          negotiated
	serverHostKey []byte

	hostname        string
	user            string
	hostKeyVerifier HostKeyVerifier

	channels      map[uint32]*Channel
	nextChannelID uint32

	// server-advertised methods after a USERAUTH_FAILURE
	remainingAuth []string
}

// NewSession wraps an established connection. The caller still runs
// Handshake before any other operation.
func NewSession(conn net.Conn, cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		log = logger
	}
	return &Session{
		conn:            conn,
		log:             log.WithField("ssh", cfg.Hostname),
		state:           StateConnecting,
		hostname:        cfg.Hostname,
		user:            cfg.User,
		hostKeyVerifier: cfg.HostKeyVerifier,
		channels:        make(map[uint32]*Channel),
	}
}

// Dial connects to addr and performs the full handshake through service
// request, leaving the session ready for authentication.
func Dial(addr string, cfg Config) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(ErrConnectionLost, err.Error())
	}
	if cfg.Hostname == "" {
		if host, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
			cfg.Hostname = host
		} else {
			cfg.Hostname = addr
		}
	}
	s := NewSession(conn, cfg)
	if err := s.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Handshake runs version exchange, key exchange, and the ssh-userauth
// service request.
func (s *Session) Handshake() error {
	if err := s.versionExchange(); err != nil {
		return err
	}
	if err := s.runKex(); err != nil {
		return err
	}
	return s.requestService("ssh-userauth")
}

// versionExchange sends the client banner and reads the server's line by
// line; the server banner must start with SSH-2.0-.
func (s *Session) versionExchange() error {
	s.state = StateVersionExchange
	if err := writeFull(s.conn, []byte(Banner+"\r\n")); err != nil {
		s.state = StateDisconnected
		return errors.Wrap(ErrConnectionLost, err.Error())
	}

	line, err := s.readBannerLine()
	if err != nil {
		return err
	}
	// Servers may send informational lines before the banner.
	for !strings.HasPrefix(line, "SSH-") {
		line, err = s.readBannerLine()
		if err != nil {
			return err
		}
	}
	if !strings.HasPrefix(line, "SSH-2.0-") {
		return protocolErrorf("unsupported server version %q", line)
	}
	s.serverBanner = line
	s.log.WithField("server", line).Debug("version exchange complete")
	return nil
}

func (s *Session) readBannerLine() (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < 512 {
		if err := readFull(s.conn, buf); err != nil {
			s.state = StateDisconnected
			return "", errors.Wrap(ErrConnectionLost, err.Error())
		}
		if buf[0] == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		line = append(line, buf[0])
	}
	return "", protocolErrorf("server banner line too long")
}

// requestService sends SERVICE_REQUEST and waits for SERVICE_ACCEPT.
func (s *Session) requestService(name string) error {
	s.state = StateServiceRequest
	payload := appendStringText(nil, name)
	if err := s.sendPacket(msgServiceRequest, payload); err != nil {
		return err
	}
	if _, err := s.waitPacket(msgServiceAccept); err != nil {
		return err
	}
	return nil
}

// Disconnect sends a best-effort DISCONNECT when the session reached the
// authenticated state, then transitions to Disconnected.
func (s *Session) Disconnect() {
	if s.state == StateDisconnected {
		return
	}
	if s.state >= StateAuthenticated {
		payload := appendU32(nil, 11) // SSH_DISCONNECT_BY_APPLICATION
		payload = appendStringText(payload, "closed by user")
		payload = appendStringText(payload, "")
		_ = s.sendPacket(msgDisconnect, payload)
	}
	s.state = StateDisconnected
}

// Close disconnects, zeroes the derived key material, and closes the socket.
func (s *Session) Close() error {
	s.Disconnect()
	s.keys.zero()
	zeroBytes(s.sessionID)
	if s.cipherIn != nil {
		s.cipherIn.zero()
	}
	if s.cipherOut != nil {
		s.cipherOut.zero()
	}
	if s.macIn != nil {
		s.macIn.zero()
	}
	if s.macOut != nil {
		s.macOut.zero()
	}
	return s.conn.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// ServerHostKey returns the raw host-key blob captured during kex.
func (s *Session) ServerHostKey() []byte { return s.serverHostKey }

// RemainingAuthMethods lists the methods the server advertised in the last
// USERAUTH_FAILURE.
func (s *Session) RemainingAuthMethods() []string { return s.remainingAuth }
