package sftp

// Attribute flag bits, SSH_FILEXFER_ATTR_*.
const (
	attrFlagSize        = 0x00000001
	attrFlagUIDGID      = 0x00000002
	attrFlagPermissions = 0x00000004
	attrFlagAcModTime   = 0x00000008
)

// Attrs is the v3 file attribute block. Only fields whose flag bit is set
// are meaningful.
type Attrs struct {
	Flags       uint32
	Size        uint64
	UID, GID    uint32
	Permissions uint32
	ATime       uint32
	MTime       uint32

	// Directory entries carry these alongside the attributes.
	Filename string
	Longname string
}

// HasSize reports whether the size field is valid.
func (a *Attrs) HasSize() bool { return a.Flags&attrFlagSize != 0 }

// HasPermissions reports whether the permissions field is valid.
func (a *Attrs) HasPermissions() bool { return a.Flags&attrFlagPermissions != 0 }

// IsDir derives the directory bit from the POSIX type bits of permissions.
func (a *Attrs) IsDir() bool {
	return a.HasPermissions() && a.Permissions&0xF000 == 0x4000
}

// IsRegular derives the regular-file bit from the POSIX type bits.
func (a *Attrs) IsRegular() bool {
	return a.HasPermissions() && a.Permissions&0xF000 == 0x8000
}

// IsSymlink derives the symlink bit from the POSIX type bits.
func (a *Attrs) IsSymlink() bool {
	return a.HasPermissions() && a.Permissions&0xF000 == 0xA000
}

// encodedSize returns the wire size of the attribute block.
func (a *Attrs) encodedSize() int {
	size := 4
	if a.Flags&attrFlagSize != 0 {
		size += 8
	}
	if a.Flags&attrFlagUIDGID != 0 {
		size += 8
	}
	if a.Flags&attrFlagPermissions != 0 {
		size += 4
	}
	if a.Flags&attrFlagAcModTime != 0 {
		size += 8
	}
	return size
}

// appendAttrs writes the flags word followed by exactly the fields whose
// bits are set, in wire order.
func appendAttrs(b []byte, a *Attrs) []byte {
	b = appendU32(b, a.Flags)
	if a.Flags&attrFlagSize != 0 {
		b = appendU64(b, a.Size)
	}
	if a.Flags&attrFlagUIDGID != 0 {
		b = appendU32(b, a.UID)
		b = appendU32(b, a.GID)
	}
	if a.Flags&attrFlagPermissions != 0 {
		b = appendU32(b, a.Permissions)
	}
	if a.Flags&attrFlagAcModTime != 0 {
		b = appendU32(b, a.ATime)
		b = appendU32(b, a.MTime)
	}
	return b
}

// takeAttrs parses an attribute block, returning the remainder.
func takeAttrs(b []byte) (*Attrs, []byte, error) {
	var a Attrs
	var err error
	if a.Flags, b, err = takeU32(b); err != nil {
		return nil, nil, err
	}
	if a.Flags&attrFlagSize != 0 {
		if a.Size, b, err = takeU64(b); err != nil {
			return nil, nil, err
		}
	}
	if a.Flags&attrFlagUIDGID != 0 {
		if a.UID, b, err = takeU32(b); err != nil {
			return nil, nil, err
		}
		if a.GID, b, err = takeU32(b); err != nil {
			return nil, nil, err
		}
	}
	if a.Flags&attrFlagPermissions != 0 {
		if a.Permissions, b, err = takeU32(b); err != nil {
			return nil, nil, err
		}
	}
	if a.Flags&attrFlagAcModTime != 0 {
		if a.ATime, b, err = takeU32(b); err != nil {
			return nil, nil, err
		}
		if a.MTime, b, err = takeU32(b); err != nil {
			return nil, nil, err
		}
	}
	return &a, b, nil
}
