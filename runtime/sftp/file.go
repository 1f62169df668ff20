package sftp

import "io"

// File is an open remote file: the opaque server handle plus the current
// offset. The handle stays valid until Close sends SSH_FXP_CLOSE.
type File struct {
	client *Client
	handle []byte
	offset uint64
	eof    bool
	closed bool
}

// Read reads up to len(p) bytes at the current offset. A STATUS(EOF) reply
// surfaces as io.EOF.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &StatusError{Code: StatusInvalidHandle}
	}
	if f.eof {
		return 0, io.EOF
	}
	body := appendString(nil, f.handle)
	body = appendU64(body, f.offset)
	body = appendU32(body, uint32(len(p)))

	replyType, payload, err := f.client.roundTrip(fxpRead, body)
	if err != nil {
		return 0, err
	}
	switch replyType {
	case fxpData:
		data, _, err := takeString(payload)
		if err != nil {
			return 0, errShortPacket
		}
		n := copy(p, data)
		f.offset += uint64(n)
		return n, nil
	case fxpStatus:
		statusErr := parseStatus(payload)
		if IsEOFStatus(statusErr) {
			f.eof = true
			return 0, io.EOF
		}
		if statusErr == nil {
			return 0, &StatusError{Code: StatusBadMessage, Message: "DATA reply missing"}
		}
		return 0, statusErr
	default:
		return 0, &StatusError{Code: StatusBadMessage, Message: "expected DATA"}
	}
}

// Write writes p at the current offset.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, &StatusError{Code: StatusInvalidHandle}
	}
	body := appendString(nil, f.handle)
	body = appendU64(body, f.offset)
	body = appendString(body, p)
	if err := f.client.expectStatus(fxpWrite, body); err != nil {
		return 0, err
	}
	f.offset += uint64(len(p))
	return len(p), nil
}

// Seek sets the file offset for subsequent reads and writes.
func (f *File) Seek(offset uint64) {
	f.offset = offset
	f.eof = false
}

// Rewind resets the offset to the beginning.
func (f *File) Rewind() { f.Seek(0) }

// Stat fetches attributes through the open handle.
func (f *File) Stat() (*Attrs, error) {
	if f.closed {
		return nil, &StatusError{Code: StatusInvalidHandle}
	}
	return f.client.expectAttrs(fxpFstat, appendString(nil, f.handle))
}

// Setstat applies attributes through the open handle.
func (f *File) Setstat(attrs *Attrs) error {
	if f.closed {
		return &StatusError{Code: StatusInvalidHandle}
	}
	body := appendString(nil, f.handle)
	body = appendAttrs(body, attrs)
	return f.client.expectStatus(fxpFsetstat, body)
}

// Close releases the server handle.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.client.expectStatus(fxpClose, appendString(nil, f.handle))
}

// Dir is an open remote directory with a readdir batch buffer; entries are
// served one per ReadDir call and refilled on exhaustion.
type Dir struct {
	client *Client
	handle []byte
	batch  []Attrs
	cursor int
	eof    bool
	closed bool
}

// ReadDir returns the next entry, or io.EOF when the iteration ends.
func (d *Dir) ReadDir() (*Attrs, error) {
	if d.closed {
		return nil, &StatusError{Code: StatusInvalidHandle}
	}
	for d.cursor >= len(d.batch) {
		if d.eof {
			return nil, io.EOF
		}
		entries, err := d.client.expectName(fxpReaddir, appendString(nil, d.handle))
		if err != nil {
			if IsEOFStatus(err) {
				d.eof = true
				return nil, io.EOF
			}
			return nil, err
		}
		d.batch = entries
		d.cursor = 0
		if len(entries) == 0 {
			d.eof = true
			return nil, io.EOF
		}
	}
	entry := &d.batch[d.cursor]
	d.cursor++
	return entry, nil
}

// Close releases the server handle.
func (d *Dir) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.client.expectStatus(fxpClose, appendString(nil, d.handle))
}
