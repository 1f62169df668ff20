package sftp

import (
	"io"

	"github.com/pkg/errors"
)

// Transport is the byte stream the SFTP protocol runs over; an SSH channel
// with the "sftp" subsystem started satisfies it.
type Transport interface {
	io.Reader
	io.Writer
}

// Client is an SFTP v3 session over one channel. Requests are issued one at
// a time; request ids are allocated monotonically and replies must echo
// them.
type Client struct {
	t       Transport
	nextID  uint32
	version uint32
}

// NewClient performs the INIT/VERSION handshake on t. Protocol versions
// below 3 are refused with an OpUnsupported status.
func NewClient(t Transport) (*Client, error) {
	c := &Client{t: t}
	if err := writePacket(t, fxpInit, appendU32(nil, ProtocolVersion)); err != nil {
		return nil, errors.Wrap(err, "sftp: init")
	}
	pktType, payload, err := readPacket(t)
	if err != nil {
		return nil, errors.Wrap(err, "sftp: version")
	}
	if pktType != fxpVersion {
		return nil, &StatusError{Code: StatusBadMessage, Message: "expected VERSION"}
	}
	version, _, err := takeU32(payload)
	if err != nil {
		return nil, errShortPacket
	}
	if version < 3 {
		return nil, &StatusError{Code: StatusOpUnsupported, Message: "server protocol too old"}
	}
	c.version = version
	return c, nil
}

// Version returns the negotiated protocol version.
func (c *Client) Version() uint32 { return c.version }

// roundTrip sends one request and reads its reply, checking the echoed id.
func (c *Client) roundTrip(pktType uint8, body []byte) (uint8, []byte, error) {
	c.nextID++
	id := c.nextID
	payload := appendU32(nil, id)
	payload = append(payload, body...)
	if err := writePacket(c.t, pktType, payload); err != nil {
		return 0, nil, errors.Wrap(err, "sftp: send")
	}
	replyType, reply, err := readPacket(c.t)
	if err != nil {
		return 0, nil, errors.Wrap(err, "sftp: recv")
	}
	replyID, rest, err := takeU32(reply)
	if err != nil {
		return 0, nil, errShortPacket
	}
	if replyID != id {
		return 0, nil, &StatusError{Code: StatusBadMessage, Message: "reply id mismatch"}
	}
	return replyType, rest, nil
}

// parseStatus decodes an FXP_STATUS payload into an error (nil for OK).
func parseStatus(payload []byte) error {
	code, rest, err := takeU32(payload)
	if err != nil {
		return errShortPacket
	}
	if StatusCode(code) == StatusOK {
		return nil
	}
	message := ""
	if msg, _, err := takeString(rest); err == nil {
		message = string(msg)
	}
	return &StatusError{Code: StatusCode(code), Message: message}
}

// expectStatus runs a request whose only success reply is STATUS(OK).
func (c *Client) expectStatus(pktType uint8, body []byte) error {
	replyType, payload, err := c.roundTrip(pktType, body)
	if err != nil {
		return err
	}
	if replyType != fxpStatus {
		return &StatusError{Code: StatusBadMessage, Message: "expected STATUS"}
	}
	return parseStatus(payload)
}

// expectHandle runs a request replied to with HANDLE or STATUS.
func (c *Client) expectHandle(pktType uint8, body []byte) ([]byte, error) {
	replyType, payload, err := c.roundTrip(pktType, body)
	if err != nil {
		return nil, err
	}
	switch replyType {
	case fxpHandle:
		handle, _, err := takeString(payload)
		if err != nil {
			return nil, errShortPacket
		}
		return append([]byte(nil), handle...), nil
	case fxpStatus:
		if err := parseStatus(payload); err != nil {
			return nil, err
		}
		return nil, &StatusError{Code: StatusBadMessage, Message: "HANDLE reply missing"}
	default:
		return nil, &StatusError{Code: StatusBadMessage, Message: "expected HANDLE"}
	}
}

// expectAttrs runs a request replied to with ATTRS or STATUS.
func (c *Client) expectAttrs(pktType uint8, body []byte) (*Attrs, error) {
	replyType, payload, err := c.roundTrip(pktType, body)
	if err != nil {
		return nil, err
	}
	switch replyType {
	case fxpAttrs:
		attrs, _, err := takeAttrs(payload)
		if err != nil {
			return nil, errShortPacket
		}
		return attrs, nil
	case fxpStatus:
		if err := parseStatus(payload); err != nil {
			return nil, err
		}
		return nil, &StatusError{Code: StatusBadMessage, Message: "ATTRS reply missing"}
	default:
		return nil, &StatusError{Code: StatusBadMessage, Message: "expected ATTRS"}
	}
}

// expectName runs a request replied to with NAME or STATUS and returns the
// decoded entries.
func (c *Client) expectName(pktType uint8, body []byte) ([]Attrs, error) {
	replyType, payload, err := c.roundTrip(pktType, body)
	if err != nil {
		return nil, err
	}
	switch replyType {
	case fxpName:
		return parseNameEntries(payload)
	case fxpStatus:
		if err := parseStatus(payload); err != nil {
			return nil, err
		}
		return nil, &StatusError{Code: StatusBadMessage, Message: "NAME reply missing"}
	default:
		return nil, &StatusError{Code: StatusBadMessage, Message: "expected NAME"}
	}
}

func parseNameEntries(payload []byte) ([]Attrs, error) {
	count, rest, err := takeU32(payload)
	if err != nil {
		return nil, errShortPacket
	}
	entries := make([]Attrs, 0, count)
	for i := uint32(0); i < count; i++ {
		var filename, longname []byte
		if filename, rest, err = takeString(rest); err != nil {
			return nil, errShortPacket
		}
		if longname, rest, err = takeString(rest); err != nil {
			return nil, errShortPacket
		}
		var attrs *Attrs
		if attrs, rest, err = takeAttrs(rest); err != nil {
			return nil, errShortPacket
		}
		attrs.Filename = string(filename)
		attrs.Longname = string(longname)
		entries = append(entries, *attrs)
	}
	return entries, nil
}

// Open opens path with the given SSH_FXF_* flags and optional attributes.
func (c *Client) Open(path string, flags uint32, attrs *Attrs) (*File, error) {
	if attrs == nil {
		attrs = &Attrs{}
	}
	body := appendStringText(nil, path)
	body = appendU32(body, flags)
	body = appendAttrs(body, attrs)
	handle, err := c.expectHandle(fxpOpen, body)
	if err != nil {
		return nil, err
	}
	return &File{client: c, handle: handle}, nil
}

// OpenDir opens a directory for iteration.
func (c *Client) OpenDir(path string) (*Dir, error) {
	handle, err := c.expectHandle(fxpOpendir, appendStringText(nil, path))
	if err != nil {
		return nil, err
	}
	return &Dir{client: c, handle: handle}, nil
}

// Stat follows symlinks; Lstat does not.
func (c *Client) Stat(path string) (*Attrs, error) {
	return c.expectAttrs(fxpStat, appendStringText(nil, path))
}

// Lstat stats path without following symlinks.
func (c *Client) Lstat(path string) (*Attrs, error) {
	return c.expectAttrs(fxpLstat, appendStringText(nil, path))
}

// Setstat applies attrs to path.
func (c *Client) Setstat(path string, attrs *Attrs) error {
	body := appendStringText(nil, path)
	body = appendAttrs(body, attrs)
	return c.expectStatus(fxpSetstat, body)
}

// Mkdir creates a directory with the given permissions.
func (c *Client) Mkdir(path string, perm uint32) error {
	body := appendStringText(nil, path)
	body = appendAttrs(body, &Attrs{Flags: attrFlagPermissions, Permissions: perm})
	return c.expectStatus(fxpMkdir, body)
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(path string) error {
	return c.expectStatus(fxpRmdir, appendStringText(nil, path))
}

// Remove deletes a file.
func (c *Client) Remove(path string) error {
	return c.expectStatus(fxpRemove, appendStringText(nil, path))
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) error {
	body := appendStringText(nil, oldPath)
	body = appendStringText(body, newPath)
	return c.expectStatus(fxpRename, body)
}

// Symlink creates a symlink at linkPath pointing at targetPath. The wire
// order is (targetpath, linkpath), matching OpenSSH.
func (c *Client) Symlink(targetPath, linkPath string) error {
	body := appendStringText(nil, targetPath)
	body = appendStringText(body, linkPath)
	return c.expectStatus(fxpSymlink, body)
}

// Readlink resolves the target of a symlink.
func (c *Client) Readlink(path string) (string, error) {
	entries, err := c.expectName(fxpReadlink, appendStringText(nil, path))
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", &StatusError{Code: StatusBadMessage, Message: "empty NAME reply"}
	}
	return entries[0].Filename, nil
}

// Realpath canonicalises path server-side.
func (c *Client) Realpath(path string) (string, error) {
	entries, err := c.expectName(fxpRealpath, appendStringText(nil, path))
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", &StatusError{Code: StatusBadMessage, Message: "empty NAME reply"}
	}
	return entries[0].Filename, nil
}
