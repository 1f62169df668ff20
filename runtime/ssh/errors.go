package ssh

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transport, auth, and channel layers. Error strings
// stay short, context-prefixed, and never include key material.
var (
	// ErrMacVerificationFailed means a received packet failed MAC
	// verification; the condition is fatal for the session.
	ErrMacVerificationFailed = errors.New("ssh: MAC verification failed")

	// ErrHostKeyRejected means the host-key verifier callback denied the
	// server's key.
	ErrHostKeyRejected = errors.New("ssh: host key rejected")

	// ErrConnectionLost wraps socket-level failures.
	ErrConnectionLost = errors.New("ssh: connection lost")

	// ErrTimeout is returned when a poll deadline elapses.
	ErrTimeout = errors.New("ssh: timeout")

	// ErrAuthDenied means the server rejected every attempted auth method.
	ErrAuthDenied = errors.New("ssh: authentication denied")

	// ErrChannelClosed means the operation's channel is closed or was
	// refused by the server.
	ErrChannelClosed = errors.New("ssh: channel closed")

	// ErrAgain means the operation would block; only non-blocking code
	// paths return it.
	ErrAgain = errors.New("ssh: operation would block")

	// ErrDisconnected means the session already transitioned to the
	// Disconnected state and sends no further packets.
	ErrDisconnected = errors.New("ssh: session disconnected")
)

// ProtocolError reports a malformed packet, an unknown message, or a size
// over the limit.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "ssh: protocol error: " + e.Reason }

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// KexError reports a key-exchange failure, including the all-zero shared
// secret case.
type KexError struct {
	Reason string
}

func (e *KexError) Error() string { return "ssh: key exchange failed: " + e.Reason }

// NoCommonAlgorithmError reports an empty intersection for one negotiation
// slot.
type NoCommonAlgorithmError struct {
	Slot string
}

func (e *NoCommonAlgorithmError) Error() string {
	return "ssh: no common " + e.Slot + " algorithm"
}
