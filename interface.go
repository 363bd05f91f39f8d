package capnp

// An Interface is a reference to a capability, as seen on the wire:
// an index into its message's capability table.
type Interface struct {
	seg *Segment
	cap CapabilityID
}

// NewInterface allocates a new interface pointer in s's message
// referencing capability c.
func NewInterface(s *Segment, c Capability) Interface {
	return Interface{seg: s, cap: s.msg.AddCap(c)}
}

// ToPtr returns the pointer to the interface.
func (i Interface) ToPtr() Ptr {
	if i.seg == nil {
		return Ptr{}
	}
	return Ptr{seg: i.seg, lenOrCap: uint32(i.cap), flags: interfacePtrFlag}
}

// IsValid reports whether i is a non-null interface pointer.
func (i Interface) IsValid() bool { return i.seg != nil }

// Segment returns the segment i is stored in, or nil if i is invalid.
func (i Interface) Segment() *Segment { return i.seg }

// Message returns the message containing i, or nil if i is invalid.
func (i Interface) Message() *Message {
	if i.seg == nil {
		return nil
	}
	return i.seg.msg
}

// Capability returns the capability i's table index refers to, or
// nil if i is invalid or its index is out of range.
func (i Interface) Capability() Capability {
	if i.seg == nil {
		return nil
	}
	return i.seg.msg.Capability(i.cap)
}

// CapabilityID returns i's index into its message's capability table.
func (i Interface) CapabilityID() CapabilityID { return i.cap }
