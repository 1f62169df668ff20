package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough server-side SSH-2 to exercise the client:
// banner, curve25519 kex with an ed25519 host key, password auth, and a
// session channel that runs "exec" by printing a fixed payload.
type fakeServer struct {
	t        *testing.T
	s        *Session
	banner   string
	pub      ed25519.PublicKey
	priv     ed25519.PrivateKey
	password string

	sharedK         []byte
	exchangeH       []byte
	clientChannelID uint32
}

func newFakeServer(t *testing.T, conn net.Conn, password string) *fakeServer {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &fakeServer{
		t:        t,
		s:        NewSession(conn, Config{Hostname: "server"}),
		banner:   "SSH-2.0-fake_1.0",
		pub:      pub,
		priv:     priv,
		password: password,
	}
}

func (f *fakeServer) hostKeyBlob() []byte {
	blob := appendStringText(nil, hostKeyEd25519)
	return appendString(blob, f.pub)
}

func (f *fakeServer) mustSend(msgType uint8, payload []byte) {
	require.NoError(f.t, f.s.sendPacket(msgType, payload))
}

func (f *fakeServer) mustRecv(expected uint8) []byte {
	msgType, payload, err := f.s.recvPacket()
	require.NoError(f.t, err)
	require.Equal(f.t, expected, msgType)
	return payload
}

// serveHandshake runs version exchange, kex, and the userauth service
// acceptance.
func (f *fakeServer) serveHandshake() {
	f.serveKexUntilReply()
	f.finishHandshake()
}

// serveKexUntilReply serves through the KEX_ECDH_REPLY, the last message the
// client consumes before deciding about the host key.
func (f *fakeServer) serveKexUntilReply() {
	clientBanner, err := f.s.readBannerLine()
	require.NoError(f.t, err)
	require.Equal(f.t, Banner, clientBanner)
	require.NoError(f.t, writeFull(f.s.conn, []byte(f.banner+"\r\n")))

	clientKexInit := append([]byte(nil), f.mustRecv(msgKexInit)...)
	serverKexInit, err := buildKexInit()
	require.NoError(f.t, err)
	f.mustSend(msgKexInit, serverKexInit)

	ecdhInit := f.mustRecv(msgKexECDHInit)
	clientPublic, _, err := takeString(ecdhInit)
	require.NoError(f.t, err)

	serverSecret, serverPublic, err := x25519KeyPair()
	require.NoError(f.t, err)
	sharedK, err := x25519Shared(serverSecret[:], clientPublic)
	require.NoError(f.t, err)

	hostKey := f.hostKeyBlob()
	var transcript []byte
	transcript = appendStringText(transcript, Banner)
	transcript = appendStringText(transcript, f.banner)
	transcript = appendU32(transcript, uint32(len(clientKexInit)+1))
	transcript = appendU8(transcript, msgKexInit)
	transcript = append(transcript, clientKexInit...)
	transcript = appendU32(transcript, uint32(len(serverKexInit)+1))
	transcript = appendU8(transcript, msgKexInit)
	transcript = append(transcript, serverKexInit...)
	transcript = appendString(transcript, hostKey)
	transcript = appendString(transcript, clientPublic)
	transcript = appendString(transcript, serverPublic[:])
	transcript = appendMpint(transcript, sharedK)
	exchangeH := hashSHA256(transcript)

	sig := appendStringText(nil, hostKeyEd25519)
	sig = appendString(sig, ed25519.Sign(f.priv, exchangeH))

	reply := appendString(nil, hostKey)
	reply = appendString(reply, serverPublic[:])
	reply = appendString(reply, sig)
	f.mustSend(msgKexECDHReply, reply)

	f.sharedK = sharedK
	f.exchangeH = exchangeH
}

func (f *fakeServer) finishHandshake() {
	// The client sends NEWKEYS first; reading it before writing ours keeps
	// the unbuffered pipe from deadlocking.
	f.mustRecv(msgNewKeys)
	f.mustSend(msgNewKeys, nil)

	f.s.deriveKeys(f.sharedK, f.exchangeH)
	f.s.sessionID = append([]byte(nil), f.exchangeH...)
	f.activateServerKeys()

	f.mustRecv(msgServiceRequest)
	f.mustSend(msgServiceAccept, appendStringText(nil, "ssh-userauth"))
}

// activateServerKeys installs the derived material with the directions
// swapped relative to the client.
func (f *fakeServer) activateServerKeys() {
	s := f.s
	out, err := newCTRStream(s.keys.keyS2C[:32], s.keys.ivS2C[:16])
	require.NoError(f.t, err)
	in, err := newCTRStream(s.keys.keyC2S[:32], s.keys.ivC2S[:16])
	require.NoError(f.t, err)
	s.cipherOut = out
	s.cipherIn = in
	s.macOut = newMacContext(macHmacSHA256, s.keys.macS2C[:])
	s.macIn = newMacContext(macHmacSHA256, s.keys.macC2S[:])
	s.encrypted = true
}

// serveAuth answers one USERAUTH_REQUEST.
func (f *fakeServer) serveAuth() {
	payload := f.mustRecv(msgUserauthRequest)
	_, rest, err := takeString(payload) // username
	require.NoError(f.t, err)
	_, rest, err = takeString(rest) // service
	require.NoError(f.t, err)
	method, rest, err := takeString(rest)
	require.NoError(f.t, err)

	if string(method) == "password" {
		_, rest2, err := takeU8(rest)
		require.NoError(f.t, err)
		password, _, err := takeString(rest2)
		require.NoError(f.t, err)
		if string(password) == f.password {
			f.mustSend(msgUserauthSuccess, nil)
			return
		}
	}
	failure := appendStringText(nil, "password")
	failure = appendBool(failure, false)
	f.mustSend(msgUserauthFailure, failure)
}

// serveExec accepts one session channel, answers an exec request, emits
// output and an exit status, then closes.
func (f *fakeServer) serveExec(output string, exitStatus uint32) {
	open := f.mustRecv(msgChannelOpen)
	chanType, rest, err := takeString(open)
	require.NoError(f.t, err)
	require.Equal(f.t, "session", string(chanType))
	clientID, _, err := takeU32(rest)
	require.NoError(f.t, err)
	f.clientChannelID = clientID

	confirm := appendU32(nil, clientID)
	confirm = appendU32(confirm, 99) // server-side channel id
	confirm = appendU32(confirm, channelWindowSize)
	confirm = appendU32(confirm, channelMaxPacket)
	f.mustSend(msgChannelOpenConfirmation, confirm)

	request := f.mustRecv(msgChannelRequest)
	_, rest, err = takeU32(request) // our channel id
	require.NoError(f.t, err)
	requestType, rest, err := takeString(rest)
	require.NoError(f.t, err)
	require.Equal(f.t, "exec", string(requestType))
	wantReply, _, err := takeU8(rest)
	require.NoError(f.t, err)
	if wantReply != 0 {
		f.mustSend(msgChannelSuccess, appendU32(nil, clientID))
	}

	data := appendU32(nil, clientID)
	data = appendStringText(data, output)
	f.mustSend(msgChannelData, data)

	status := appendU32(nil, clientID)
	status = appendStringText(status, "exit-status")
	status = appendBool(status, false)
	status = appendU32(status, exitStatus)
	f.mustSend(msgChannelRequest, status)

	f.mustSend(msgChannelEOF, appendU32(nil, clientID))
	f.mustRecv(msgChannelClose)
	f.mustSend(msgChannelClose, appendU32(nil, clientID))
}

func TestHandshakeAndPasswordAuth(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	server := newFakeServer(t, serverConn, "hunter2")

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.serveHandshake()
		server.serveAuth()
	}()

	var seenHost string
	var seenType string
	client := NewSession(clientConn, Config{
		Hostname: "testhost",
		User:     "alice",
		HostKeyVerifier: func(hostname string, key []byte, keyType string) int {
			seenHost = hostname
			seenType = keyType
			return 0
		},
	})
	require.NoError(t, client.Handshake())
	assert.True(t, client.encrypted, "encryption must be active after NEWKEYS")
	assert.Equal(t, "testhost", seenHost)
	assert.Equal(t, hostKeyEd25519, seenType)
	assert.NotEmpty(t, client.ServerHostKey())

	require.NoError(t, client.AuthPassword("hunter2"))
	assert.Equal(t, StateAuthenticated, client.State())
	<-done
}

func TestHandshakeRejectsBadPassword(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	server := newFakeServer(t, serverConn, "right")

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.serveHandshake()
		server.serveAuth()
	}()

	client := NewSession(clientConn, Config{Hostname: "testhost", User: "alice"})
	require.NoError(t, client.Handshake())
	err := client.AuthPassword("wrong")
	require.ErrorIs(t, err, ErrAuthDenied)
	assert.Contains(t, client.RemainingAuthMethods(), "password")
	<-done
}

func TestHostKeyVerifierRejection(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	server := newFakeServer(t, serverConn, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The client aborts after the verifier callback, so only serve
		// through the ECDH reply.
		server.serveKexUntilReply()
	}()

	client := NewSession(clientConn, Config{
		Hostname: "testhost",
		User:     "alice",
		HostKeyVerifier: func(string, []byte, string) int {
			return 1
		},
	})
	err := client.Handshake()
	require.ErrorIs(t, err, ErrHostKeyRejected)
	<-done
}

func TestExecOverChannel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	server := newFakeServer(t, serverConn, "pw")

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.serveHandshake()
		server.serveAuth()
		server.serveExec("hello from remote\n", 42)
	}()

	client := NewSession(clientConn, Config{Hostname: "testhost", User: "alice"})
	require.NoError(t, client.Handshake())
	require.NoError(t, client.AuthPassword("pw"))

	channel, err := client.OpenChannel()
	require.NoError(t, err)
	assert.True(t, channel.IsOpen())

	require.NoError(t, channel.RequestExec("echo hello"))

	out, err := io.ReadAll(channel)
	require.NoError(t, err)
	assert.Equal(t, "hello from remote\n", string(out))

	status, ok := channel.ExitStatus()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), status)
	assert.True(t, channel.Eof())

	require.NoError(t, channel.Close())
	require.NoError(t, client.pumpOnePacket())
	assert.False(t, channel.IsOpen())
	<-done
}
