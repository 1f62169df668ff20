package ssh

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufConn is an in-memory net.Conn over a byte buffer, for single-threaded
// packet-layer tests.
type bufConn struct {
	bytes.Buffer
}

func (c *bufConn) Close() error                       { return nil }
func (c *bufConn) LocalAddr() net.Addr                { return nil }
func (c *bufConn) RemoteAddr() net.Addr               { return nil }
func (c *bufConn) SetDeadline(t time.Time) error      { return nil }
func (c *bufConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *bufConn) SetWriteDeadline(t time.Time) error { return nil }

func testSessionPair(t *testing.T, conn net.Conn) (*Session, *Session) {
	t.Helper()
	sender := NewSession(conn, Config{Hostname: "a"})
	receiver := NewSession(conn, Config{Hostname: "b"})
	return sender, receiver
}

// installSymmetricKeys gives sender's outbound contexts and receiver's
// inbound contexts the same material, as if one kex produced them.
func installSymmetricKeys(t *testing.T, sender, receiver *Session) {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	iv := bytes.Repeat([]byte{0x24}, 16)
	macKey := bytes.Repeat([]byte{0x7f}, 64)

	out, err := newCTRStream(key, iv)
	require.NoError(t, err)
	in, err := newCTRStream(key, iv)
	require.NoError(t, err)

	sender.cipherOut = out
	sender.macOut = newMacContext(macHmacSHA256, macKey)
	sender.encrypted = true

	receiver.cipherIn = in
	receiver.macIn = newMacContext(macHmacSHA256, macKey)
	receiver.encrypted = true
}

func TestPlaintextPacketRoundTrip(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)

	payload := appendStringText(nil, "ssh-userauth")
	require.NoError(t, sender.sendPacket(msgServiceRequest, payload))

	msgType, got, err := receiver.recvPacket()
	require.NoError(t, err)
	assert.Equal(t, uint8(msgServiceRequest), msgType)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint32(1), sender.seqOut)
	assert.Equal(t, uint32(1), receiver.seqIn)
}

func TestPlaintextPaddingAlignment(t *testing.T) {
	conn := &bufConn{}
	sender, _ := testSessionPair(t, conn)
	require.NoError(t, sender.sendPacket(msgIgnore, []byte("x")))

	raw := conn.Bytes()
	packetLength := readU32(raw[:4])
	// Total length excluding the length field is a multiple of 8 before
	// NEWKEYS.
	assert.Zero(t, (4+packetLength)%8)
	paddingLen := raw[4]
	assert.GreaterOrEqual(t, paddingLen, uint8(4))
}

func TestEncryptedPacketRoundTrip(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)
	installSymmetricKeys(t, sender, receiver)

	payload := []byte("secret payload")
	require.NoError(t, sender.sendPacket(msgDebug, payload))

	// Ciphertext on the wire must not contain the plaintext.
	assert.NotContains(t, string(conn.Bytes()), "secret payload")

	msgType, got, err := receiver.recvPacket()
	require.NoError(t, err)
	assert.Equal(t, uint8(msgDebug), msgType)
	assert.Equal(t, payload, got)
}

func TestEncryptedPacketSequenceRuns(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)
	installSymmetricKeys(t, sender, receiver)

	for i := 0; i < 5; i++ {
		require.NoError(t, sender.sendPacket(msgIgnore, []byte{byte(i)}))
	}
	for i := 0; i < 5; i++ {
		msgType, payload, err := receiver.recvPacket()
		require.NoError(t, err)
		assert.Equal(t, uint8(msgIgnore), msgType)
		assert.Equal(t, []byte{byte(i)}, payload)
	}
	assert.Equal(t, sender.seqOut, receiver.seqIn)
}

func TestTamperedCiphertextRejected(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)
	installSymmetricKeys(t, sender, receiver)

	require.NoError(t, sender.sendPacket(msgDebug, []byte("payload")))

	raw := conn.Bytes()
	raw[9] ^= 0x01 // flip one ciphertext byte past the length field

	_, _, err := receiver.recvPacket()
	require.ErrorIs(t, err, ErrMacVerificationFailed)
	assert.Equal(t, StateDisconnected, receiver.state)
}

func TestTamperedMacRejected(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)
	installSymmetricKeys(t, sender, receiver)

	require.NoError(t, sender.sendPacket(msgDebug, []byte("payload")))

	raw := conn.Bytes()
	raw[len(raw)-1] ^= 0x01 // flip the last MAC byte

	_, _, err := receiver.recvPacket()
	require.ErrorIs(t, err, ErrMacVerificationFailed)
}

func TestWrongSequenceNumberFailsMac(t *testing.T) {
	conn := &bufConn{}
	sender, receiver := testSessionPair(t, conn)
	installSymmetricKeys(t, sender, receiver)
	receiver.seqIn = 7 // simulate a dropped or replayed packet

	require.NoError(t, sender.sendPacket(msgDebug, []byte("payload")))
	_, _, err := receiver.recvPacket()
	require.ErrorIs(t, err, ErrMacVerificationFailed)
}

func TestOversizePacketRejected(t *testing.T) {
	conn := &bufConn{}
	_, receiver := testSessionPair(t, conn)

	conn.Write(appendU32(nil, maxPacketSize+1))
	conn.Write(make([]byte, 16))
	_, _, err := receiver.recvPacket()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestSendAfterDisconnectRefused(t *testing.T) {
	conn := &bufConn{}
	sender, _ := testSessionPair(t, conn)
	sender.state = StateDisconnected
	err := sender.sendPacket(msgIgnore, nil)
	require.ErrorIs(t, err, ErrDisconnected)
	assert.Empty(t, conn.Bytes())
}
