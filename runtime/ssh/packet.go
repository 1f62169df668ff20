package ssh

import (
	"io"
	"net"

	"github.com/pkg/errors"
)

// maxPacketSize bounds any single binary packet, matching the limit the
// protocol recommends for implementations.
const maxPacketSize = 35000

// sendPacket frames, MACs, encrypts, and writes one packet:
// packet_length || padding_length || msg_type || payload || padding, with
// total length (excluding the length field and MAC) a multiple of the cipher
// block size and 4 <= padding <= 255. The MAC covers seq_out and the full
// plaintext packet and is computed before encryption.
func (s *Session) sendPacket(msgType uint8, payload []byte) error {
	if s.state == StateDisconnected {
		return ErrDisconnected
	}

	blockSize := uint32(8)
	if s.encrypted {
		blockSize = 16
	}
	payloadTotal := uint32(1 + len(payload))
	paddingLen := blockSize - ((4 + 1 + payloadTotal) % blockSize)
	if paddingLen < 4 {
		paddingLen += blockSize
	}
	packetLength := 1 + payloadTotal + paddingLen

	packet := make([]byte, 0, 4+packetLength+64)
	packet = appendU32(packet, packetLength)
	packet = appendU8(packet, uint8(paddingLen))
	packet = appendU8(packet, msgType)
	packet = append(packet, payload...)

	padding := make([]byte, paddingLen)
	if err := randomBytes(padding); err != nil {
		return err
	}
	packet = append(packet, padding...)

	if s.encrypted {
		mac := s.macOut.sum(s.seqOut, packet)
		s.cipherOut.process(packet, packet)
		packet = append(packet, mac...)
	}

	s.log.WithField("seq", s.seqOut).WithField("msg", msgName(msgType)).
		WithField("len", len(packet)).Debug("tx packet")
	s.seqOut++

	if err := writeFull(s.conn, packet); err != nil {
		s.state = StateDisconnected
		return errors.Wrap(ErrConnectionLost, err.Error())
	}
	return nil
}

// recvPacket reads, decrypts, MAC-verifies, and strips one packet, returning
// the message type and payload.
func (s *Session) recvPacket() (uint8, []byte, error) {
	header := make([]byte, 4)
	if err := readFull(s.conn, header); err != nil {
		// A deadline expiring on the initial descriptor wait is not fatal;
		// anything else is.
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return 0, nil, ErrTimeout
		}
		s.state = StateDisconnected
		return 0, nil, errors.Wrap(ErrConnectionLost, err.Error())
	}
	if s.encrypted {
		s.cipherIn.process(header, header)
	}

	packetLength := readU32(header)
	if packetLength < 1 || packetLength > maxPacketSize-4 {
		return 0, nil, protocolErrorf("packet length %d out of range", packetLength)
	}

	body := make([]byte, packetLength)
	if err := readFull(s.conn, body); err != nil {
		s.state = StateDisconnected
		return 0, nil, errors.Wrap(ErrConnectionLost, err.Error())
	}
	if s.encrypted {
		s.cipherIn.process(body, body)

		mac := make([]byte, s.macIn.size)
		if err := readFull(s.conn, mac); err != nil {
			s.state = StateDisconnected
			return 0, nil, errors.Wrap(ErrConnectionLost, err.Error())
		}
		full := make([]byte, 0, 4+len(body))
		full = append(full, header...)
		full = append(full, body...)
		if !s.macIn.verify(s.seqIn, full, mac) {
			s.state = StateDisconnected
			return 0, nil, ErrMacVerificationFailed
		}
	}

	s.log.WithField("seq", s.seqIn).WithField("len", packetLength).Debug("rx packet")
	s.seqIn++

	paddingLen := int(body[0])
	if len(body) < 2+paddingLen {
		return 0, nil, protocolErrorf("padding length %d exceeds packet", paddingLen)
	}
	msgType := body[1]
	payload := body[2 : len(body)-paddingLen]
	return msgType, payload, nil
}

// waitPacket reads packets until one of the expected type arrives, applying
// the unexpected-message rules: DISCONNECT tears the session down, IGNORE
// and DEBUG are dropped, channel messages are routed to their channel, and
// anything else is answered with UNIMPLEMENTED.
func (s *Session) waitPacket(expected uint8) ([]byte, error) {
	for {
		msgType, payload, err := s.recvPacket()
		if err != nil {
			return nil, err
		}
		if msgType == expected {
			return payload, nil
		}
		handled, err := s.routeUnexpected(msgType, payload)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
	}
}

// routeUnexpected applies the shared handling for packets that a waiter did
// not ask for. It returns an error only for fatal conditions.
func (s *Session) routeUnexpected(msgType uint8, payload []byte) (bool, error) {
	switch msgType {
	case msgDisconnect:
		reason := uint32(0)
		if len(payload) >= 4 {
			reason = readU32(payload)
		}
		s.state = StateDisconnected
		return false, protocolErrorf("disconnected by server: reason %d", reason)
	case msgIgnore, msgDebug:
		return true, nil
	case msgChannelOpenConfirmation, msgChannelOpenFailure, msgChannelWindowAdjust,
		msgChannelData, msgChannelExtendedData, msgChannelEOF, msgChannelClose,
		msgChannelRequest, msgChannelSuccess, msgChannelFailure:
		if err := s.processChannelMessage(msgType, payload); err != nil {
			return false, err
		}
		return true, nil
	default:
		unimpl := appendU32(nil, s.seqIn-1)
		if err := s.sendPacket(msgUnimplemented, unimpl); err != nil {
			return false, err
		}
		return true, nil
	}
}

func writeFull(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

func readFull(r io.Reader, p []byte) error {
	_, err := io.ReadFull(r, p)
	return err
}
