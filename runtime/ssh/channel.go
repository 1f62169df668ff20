package ssh

import (
	"bytes"
	"io"
	"time"
)

// Flow-control constants: the advertised receive window and the largest
// packet we accept per channel.
const (
	channelWindowSize = 2 * 1024 * 1024
	channelMaxPacket  = 32 * 1024
)

// ChannelState tracks one channel's lifecycle.
type ChannelState uint8

const (
	ChannelClosed ChannelState = iota
	ChannelOpening
	ChannelOpen
	ChannelEofSeen
	ChannelClosing
)

// Channel is one flow-controlled byte stream multiplexed over the session.
// The session owns the channel; a channel exclusively owns its buffers.
type Channel struct {
	session *Session

	localID  uint32
	remoteID uint32

	state ChannelState

	localWindow     uint32
	remoteWindow    uint32
	remoteMaxPacket uint32

	stdin  bytes.Buffer // inbound CHANNEL_DATA
	stderr bytes.Buffer // inbound EXTENDED_DATA type 1

	eofSent     bool
	eofReceived bool
	closeSent   bool

	exitStatus    uint32
	hasExitStatus bool

	// pending want_reply request resolution
	awaitingReply bool
	replyOK       bool
	replyArrived  bool
}

// OpenChannel opens a "session" channel and drives the receive loop until
// the server confirms or refuses it.
func (s *Session) OpenChannel() (*Channel, error) {
	if s.state != StateAuthenticated {
		return nil, ErrDisconnected
	}
	ch := &Channel{
		session:     s,
		localID:     s.nextChannelID,
		state:       ChannelOpening,
		localWindow: channelWindowSize,
	}
	s.nextChannelID++
	s.channels[ch.localID] = ch

	payload := appendStringText(nil, "session")
	payload = appendU32(payload, ch.localID)
	payload = appendU32(payload, channelWindowSize)
	payload = appendU32(payload, channelMaxPacket)
	if err := s.sendPacket(msgChannelOpen, payload); err != nil {
		return nil, err
	}

	for ch.state == ChannelOpening {
		if err := s.pumpOnePacket(); err != nil {
			return nil, err
		}
	}
	if ch.state != ChannelOpen {
		return nil, ErrChannelClosed
	}
	return ch, nil
}

// pumpOnePacket reads one packet and routes it; non-channel traffic follows
// the unexpected-message rules.
func (s *Session) pumpOnePacket() error {
	msgType, payload, err := s.recvPacket()
	if err != nil {
		return err
	}
	_, err = s.routeUnexpected(msgType, payload)
	return err
}

func (s *Session) findChannel(localID uint32) *Channel {
	return s.channels[localID]
}

// processChannelMessage demultiplexes one CHANNEL_* message to its channel.
// Messages for other channels update their buffers and windows even while a
// different channel's operation is blocked in the receive loop.
func (s *Session) processChannelMessage(msgType uint8, payload []byte) error {
	localID, rest, err := takeU32(payload)
	if err != nil {
		return protocolErrorf("short channel message")
	}
	ch := s.findChannel(localID)
	if ch == nil {
		s.log.WithField("channel", localID).Debug("message for unknown channel")
		return nil
	}

	switch msgType {
	case msgChannelOpenConfirmation:
		remoteID, rest2, err := takeU32(rest)
		if err != nil {
			return protocolErrorf("short OPEN_CONFIRMATION")
		}
		window, rest3, err := takeU32(rest2)
		if err != nil {
			return protocolErrorf("short OPEN_CONFIRMATION")
		}
		maxPacket, _, err := takeU32(rest3)
		if err != nil {
			return protocolErrorf("short OPEN_CONFIRMATION")
		}
		ch.remoteID = remoteID
		ch.remoteWindow = window
		ch.remoteMaxPacket = maxPacket
		ch.state = ChannelOpen

	case msgChannelOpenFailure:
		ch.state = ChannelClosed

	case msgChannelWindowAdjust:
		delta, _, err := takeU32(rest)
		if err != nil {
			return protocolErrorf("short WINDOW_ADJUST")
		}
		ch.remoteWindow += delta

	case msgChannelData:
		data, _, err := takeString(rest)
		if err != nil {
			return protocolErrorf("short CHANNEL_DATA")
		}
		ch.stdin.Write(data)
		ch.consumeLocalWindow(uint32(len(data)))

	case msgChannelExtendedData:
		dataType, rest2, err := takeU32(rest)
		if err != nil {
			return protocolErrorf("short EXTENDED_DATA")
		}
		data, _, err := takeString(rest2)
		if err != nil {
			return protocolErrorf("short EXTENDED_DATA")
		}
		if dataType == 1 {
			ch.stderr.Write(data)
		}
		ch.consumeLocalWindow(uint32(len(data)))

	case msgChannelEOF:
		ch.eofReceived = true

	case msgChannelClose:
		ch.state = ChannelClosed
		if !ch.closeSent {
			ch.closeSent = true
			_ = s.sendPacket(msgChannelClose, appendU32(nil, ch.remoteID))
		}

	case msgChannelRequest:
		requestType, rest2, err := takeString(rest)
		if err != nil {
			return protocolErrorf("short CHANNEL_REQUEST")
		}
		wantReply, rest3, err := takeBool(rest2)
		if err != nil {
			return protocolErrorf("short CHANNEL_REQUEST")
		}
		if string(requestType) == "exit-status" {
			if status, _, err := takeU32(rest3); err == nil {
				ch.exitStatus = status
				ch.hasExitStatus = true
			}
		}
		if wantReply {
			_ = s.sendPacket(msgChannelFailure, appendU32(nil, ch.remoteID))
		}

	case msgChannelSuccess:
		if ch.awaitingReply {
			ch.replyArrived = true
			ch.replyOK = true
		}

	case msgChannelFailure:
		if ch.awaitingReply {
			ch.replyArrived = true
			ch.replyOK = false
		}
	}
	return nil
}

// consumeLocalWindow decrements the receive window and tops it back up with
// WINDOW_ADJUST when it falls below half the original size.
func (c *Channel) consumeLocalWindow(n uint32) {
	if n > c.localWindow {
		c.localWindow = 0
	} else {
		c.localWindow -= n
	}
	if c.localWindow < channelWindowSize/2 {
		adjust := appendU32(nil, c.remoteID)
		adjust = appendU32(adjust, channelWindowSize-c.localWindow)
		if err := c.session.sendPacket(msgChannelWindowAdjust, adjust); err == nil {
			c.localWindow = channelWindowSize
		}
	}
}

// request sends a CHANNEL_REQUEST; with wantReply it waits for the matching
// SUCCESS or FAILURE, demultiplexing other traffic meanwhile.
func (c *Channel) request(name string, data []byte, wantReply bool) error {
	if c.state != ChannelOpen {
		return ErrChannelClosed
	}
	payload := appendU32(nil, c.remoteID)
	payload = appendStringText(payload, name)
	payload = appendBool(payload, wantReply)
	payload = append(payload, data...)
	if err := c.session.sendPacket(msgChannelRequest, payload); err != nil {
		return err
	}
	if !wantReply {
		return nil
	}

	c.awaitingReply = true
	c.replyArrived = false
	defer func() { c.awaitingReply = false }()
	for !c.replyArrived {
		if c.state != ChannelOpen {
			return ErrChannelClosed
		}
		if err := c.session.pumpOnePacket(); err != nil {
			return err
		}
	}
	if !c.replyOK {
		return protocolErrorf("channel request %q refused", name)
	}
	return nil
}

// RequestPty asks for a pseudo-terminal with the given geometry.
func (c *Channel) RequestPty(term string, cols, rows uint32) error {
	data := appendStringText(nil, term)
	data = appendU32(data, cols)
	data = appendU32(data, rows)
	data = appendU32(data, 0)
	data = appendU32(data, 0)
	data = appendStringText(data, "") // empty terminal modes
	return c.request("pty-req", data, true)
}

// RequestShell starts the user's shell on the channel.
func (c *Channel) RequestShell() error {
	return c.request("shell", nil, true)
}

// RequestExec runs a single command on the channel.
func (c *Channel) RequestExec(command string) error {
	return c.request("exec", appendStringText(nil, command), true)
}

// RequestSubsystem starts a named subsystem, e.g. "sftp".
func (c *Channel) RequestSubsystem(name string) error {
	return c.request("subsystem", appendStringText(nil, name), true)
}

// WindowChange reports a new terminal geometry; the peer does not reply.
func (c *Channel) WindowChange(cols, rows uint32) error {
	data := appendU32(nil, cols)
	data = appendU32(data, rows)
	data = appendU32(data, 0)
	data = appendU32(data, 0)
	return c.request("window-change", data, false)
}

// Write sends p in chunks bounded by the remote window and max packet size,
// pumping the receive loop while the window is exhausted.
func (c *Channel) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		for c.remoteWindow == 0 && c.state == ChannelOpen {
			if err := c.session.pumpOnePacket(); err != nil {
				return total, err
			}
		}
		if c.state != ChannelOpen {
			if total > 0 {
				return total, nil
			}
			return 0, ErrChannelClosed
		}

		chunk := uint32(len(p))
		if chunk > c.remoteWindow {
			chunk = c.remoteWindow
		}
		if c.remoteMaxPacket > 0 && chunk > c.remoteMaxPacket {
			chunk = c.remoteMaxPacket
		}

		payload := appendU32(nil, c.remoteID)
		payload = appendString(payload, p[:chunk])
		if err := c.session.sendPacket(msgChannelData, payload); err != nil {
			return total, err
		}
		c.remoteWindow -= chunk
		total += int(chunk)
		p = p[chunk:]
	}
	return total, nil
}

// Read drains buffered stdin first, then stderr; with both empty it pumps
// one packet. A drained channel that has seen EOF, or is closed, returns
// 0, io.EOF.
func (c *Channel) Read(p []byte) (int, error) {
	for {
		if c.stdin.Len() > 0 {
			return c.stdin.Read(p)
		}
		if c.stderr.Len() > 0 {
			return c.stderr.Read(p)
		}
		if c.eofReceived || c.state == ChannelClosed {
			return 0, io.EOF
		}
		if err := c.session.pumpOnePacket(); err != nil {
			return 0, err
		}
	}
}

// ReadStderr drains only the stderr buffer without pumping.
func (c *Channel) ReadStderr(p []byte) (int, error) {
	if c.stderr.Len() == 0 {
		return 0, nil
	}
	return c.stderr.Read(p)
}

// Poll waits until data is buffered, EOF is seen, or the timeout elapses.
// The timeout only gates the next descriptor wait.
func (c *Channel) Poll(timeoutMs int) (int, error) {
	if c.stdin.Len() > 0 || c.stderr.Len() > 0 {
		return c.stdin.Len() + c.stderr.Len(), nil
	}
	if c.eofReceived || c.state == ChannelClosed {
		return 0, nil
	}
	if timeoutMs >= 0 {
		deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
		if err := c.session.conn.SetReadDeadline(deadline); err == nil {
			defer c.session.conn.SetReadDeadline(time.Time{})
		}
	}
	if err := c.session.pumpOnePacket(); err != nil {
		return 0, err
	}
	return c.stdin.Len() + c.stderr.Len(), nil
}

// SendEOF tells the peer no more data will be written.
func (c *Channel) SendEOF() error {
	if c.eofSent || c.state != ChannelOpen {
		return nil
	}
	c.eofSent = true
	return c.session.sendPacket(msgChannelEOF, appendU32(nil, c.remoteID))
}

// Close sends CHANNEL_CLOSE and marks the channel closing; the peer's CLOSE
// completes the teardown.
func (c *Channel) Close() error {
	if c.state == ChannelClosed || c.closeSent {
		return nil
	}
	c.closeSent = true
	c.state = ChannelClosing
	return c.session.sendPacket(msgChannelClose, appendU32(nil, c.remoteID))
}

// IsOpen reports whether the channel is usable.
func (c *Channel) IsOpen() bool { return c.state == ChannelOpen }

// Eof reports whether the peer sent EOF.
func (c *Channel) Eof() bool { return c.eofReceived }

// ExitStatus returns the captured exit status, if the server reported one.
func (c *Channel) ExitStatus() (uint32, bool) { return c.exitStatus, c.hasExitStatus }
