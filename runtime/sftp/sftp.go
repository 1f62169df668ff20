// Package sftp implements an SFTP version 3 client over an SSH channel, per
// draft-ietf-secsh-filexfer-02: file handles, directory iteration with
// batching, stat/setstat, rename/remove, and realpath.
package sftp

import "fmt"

// ProtocolVersion is the SFTP version this client speaks.
const ProtocolVersion = 3

// Packet types.
const (
	fxpInit     = 1
	fxpVersion  = 2
	fxpOpen     = 3
	fxpClose    = 4
	fxpRead     = 5
	fxpWrite    = 6
	fxpLstat    = 7
	fxpFstat    = 8
	fxpSetstat  = 9
	fxpFsetstat = 10
	fxpOpendir  = 11
	fxpReaddir  = 12
	fxpRemove   = 13
	fxpMkdir    = 14
	fxpRmdir    = 15
	fxpRealpath = 16
	fxpStat     = 17
	fxpRename   = 18
	fxpReadlink = 19
	fxpSymlink  = 20
	fxpStatus   = 101
	fxpHandle   = 102
	fxpData     = 103
	fxpName     = 104
	fxpAttrs    = 105
)

// Open-flag bitmask, SSH_FXF_*.
const (
	FlagRead   = 0x01
	FlagWrite  = 0x02
	FlagAppend = 0x04
	FlagCreate = 0x08
	FlagTrunc  = 0x10
	FlagExcl   = 0x20
)

// StatusCode is an SSH_FX_* wire status.
type StatusCode uint32

const (
	StatusOK StatusCode = iota
	StatusEOF
	StatusNoSuchFile
	StatusPermissionDenied
	StatusFailure
	StatusBadMessage
	StatusNoConnection
	StatusConnectionLost
	StatusOpUnsupported
	StatusInvalidHandle
	StatusNoSuchPath
	StatusFileAlreadyExists
	StatusWriteProtect
	StatusNoMedia
)

var statusNames = map[StatusCode]string{
	StatusOK:                "ok",
	StatusEOF:               "end of file",
	StatusNoSuchFile:        "no such file",
	StatusPermissionDenied:  "permission denied",
	StatusFailure:           "failure",
	StatusBadMessage:        "bad message",
	StatusNoConnection:      "no connection",
	StatusConnectionLost:    "connection lost",
	StatusOpUnsupported:     "operation unsupported",
	StatusInvalidHandle:     "invalid handle",
	StatusNoSuchPath:        "no such path",
	StatusFileAlreadyExists: "file already exists",
	StatusWriteProtect:      "write protect",
	StatusNoMedia:           "no media",
}

// StatusError is a non-OK server status surfaced to the caller.
type StatusError struct {
	Code    StatusCode
	Message string
}

func (e *StatusError) Error() string {
	name, ok := statusNames[e.Code]
	if !ok {
		name = fmt.Sprintf("status %d", e.Code)
	}
	if e.Message != "" {
		return "sftp: " + name + ": " + e.Message
	}
	return "sftp: " + name
}

// IsEOFStatus reports whether err is the SSH_FX_EOF status.
func IsEOFStatus(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusEOF
}
