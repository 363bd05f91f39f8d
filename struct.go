package capnp

// A Struct is a pointer to a Cap'n Proto struct: a fixed-size data
// section followed by a fixed-size pointer section, both word-aligned
// and counted in words. The zero value is an empty, invalid struct.
type Struct struct {
	seg        *Segment
	off        address
	size       ObjectSize
	flags      structFlags
	depthLimit uint
}

type structFlags uint8

const (
	// isListMember marks a Struct living inside a composite List: such a
	// struct must always be copied, never pointed to in place, when
	// written elsewhere (its neighbors in the list are not part of
	// the copy).
	isListMember structFlags = 1 << iota
)

// NewRootStruct allocates a new struct of sz in msg's first segment
// and sets it as the message's root.
func NewRootStruct(msg *Message, sz ObjectSize) (Struct, error) {
	st, err := NewStruct(msg.firstSegment(), sz)
	if err != nil {
		return Struct{}, annotatef(err, "new root struct")
	}
	if err := msg.SetRoot(st.ToPtr()); err != nil {
		return Struct{}, annotatef(err, "new root struct")
	}
	return st, nil
}

// NewStruct allocates a new struct of sz in s's message, preferring
// s itself when it has room.
func NewStruct(s *Segment, sz ObjectSize) (Struct, error) {
	if !sz.isValid() {
		return Struct{}, errorf("new struct: size too large")
	}
	seg, addr, err := alloc(s, sz.totalSize())
	if err != nil {
		return Struct{}, annotatef(err, "new struct")
	}
	return Struct{seg: seg, off: addr, size: sz, depthLimit: maxDepth}, nil
}

// ToPtr returns the pointer to the struct.
func (s Struct) ToPtr() Ptr {
	if s.seg == nil {
		return Ptr{}
	}
	return Ptr{
		seg:        s.seg,
		off:        s.off,
		size:       s.size,
		flags:      structPtrFlag(s.flags),
		depthLimit: s.depthLimit,
	}
}

// Segment returns the segment this struct is stored in, or nil if the
// struct is invalid.
func (s Struct) Segment() *Segment { return s.seg }

// Message returns the message containing s, or nil if s is invalid.
func (s Struct) Message() *Message {
	if s.seg == nil {
		return nil
	}
	return s.seg.msg
}

// Size returns the struct's data and pointer section sizes.
func (s Struct) Size() ObjectSize { return s.size }

// IsValid reports whether s is a non-null struct pointer.
func (s Struct) IsValid() bool { return s.seg != nil }

func (s Struct) dataAddress(off DataOffset, sz Size) (address, bool) {
	if s.seg == nil || Size(off)+sz > s.size.DataSize {
		return 0, false
	}
	return s.off.addOffset(off), true
}

func (s Struct) readUint8(off DataOffset) uint8 {
	addr, ok := s.dataAddress(off, 1)
	if !ok {
		return 0
	}
	return s.seg.readUint8(addr)
}

func (s Struct) readUint16(off DataOffset) uint16 {
	addr, ok := s.dataAddress(off, 2)
	if !ok {
		return 0
	}
	return s.seg.readUint16(addr)
}

func (s Struct) readUint32(off DataOffset) uint32 {
	addr, ok := s.dataAddress(off, 4)
	if !ok {
		return 0
	}
	return s.seg.readUint32(addr)
}

func (s Struct) readUint64(off DataOffset) uint64 {
	addr, ok := s.dataAddress(off, 8)
	if !ok {
		return 0
	}
	return s.seg.readUint64(addr)
}

// Uint8 returns the uint8 at byte offset off in s's data section.
func (s Struct) Uint8(off DataOffset) uint8 { return s.readUint8(off) }

// Uint16 returns the uint16 at byte offset off in s's data section.
func (s Struct) Uint16(off DataOffset) uint16 { return s.readUint16(off) }

// Uint32 returns the uint32 at byte offset off in s's data section.
func (s Struct) Uint32(off DataOffset) uint32 { return s.readUint32(off) }

// Uint64 returns the uint64 at byte offset off in s's data section.
func (s Struct) Uint64(off DataOffset) uint64 { return s.readUint64(off) }

// Bit reports the value of the given bit within the data section.
func (s Struct) Bit(bit BitOffset) bool {
	addr, ok := s.dataAddress(bit.offset(), 1)
	if !ok {
		return false
	}
	return s.seg.readUint8(addr)&bit.mask() != 0
}

// SetBit sets the given bit within the data section.
func (s Struct) SetBit(bit BitOffset, v bool) {
	addr, ok := s.dataAddress(bit.offset(), 1)
	if !ok {
		return
	}
	b := s.seg.readUint8(addr)
	if v {
		b |= bit.mask()
	} else {
		b &^= bit.mask()
	}
	s.seg.writeUint8(addr, b)
}

func (s Struct) SetUint8(off DataOffset, v uint8) {
	if addr, ok := s.dataAddress(off, 1); ok {
		s.seg.writeUint8(addr, v)
	}
}

func (s Struct) SetUint16(off DataOffset, v uint16) {
	if addr, ok := s.dataAddress(off, 2); ok {
		s.seg.writeUint16(addr, v)
	}
}

func (s Struct) SetUint32(off DataOffset, v uint32) {
	if addr, ok := s.dataAddress(off, 4); ok {
		s.seg.writeUint32(addr, v)
	}
}

func (s Struct) SetUint64(off DataOffset, v uint64) {
	if addr, ok := s.dataAddress(off, 8); ok {
		s.seg.writeUint64(addr, v)
	}
}

func (s Struct) pointerAddress(i uint16) (address, bool) {
	if s.seg == nil || i >= s.size.PointerCount {
		return 0, false
	}
	addr := s.off.addOffset(DataOffset(s.size.DataSize))
	addr, ok := addr.addSize(wordSize.timesUnchecked(int32(i)))
	return addr, ok
}

// HasPtr reports whether pointer field i is non-null, without paying
// the cost of decoding it.
func (s Struct) HasPtr(i uint16) bool {
	addr, ok := s.pointerAddress(i)
	if !ok {
		return false
	}
	return s.seg.readRawPointer(addr) != 0
}

// Ptr returns pointer field i.
func (s Struct) Ptr(i uint16) (Ptr, error) {
	addr, ok := s.pointerAddress(i)
	if !ok {
		return Ptr{}, nil
	}
	if s.depthLimit == 0 {
		return Ptr{}, errorf("read struct pointer %d: depth limit reached", i)
	}
	p, err := s.seg.readPtr(addr, s.depthLimit)
	if err != nil {
		return Ptr{}, annotatef(err, "read struct pointer %d", i)
	}
	return p, nil
}

// SetPtr sets pointer field i to src, copying src into s's segment if
// it does not already live in s's message.
func (s Struct) SetPtr(i uint16, src Ptr) error {
	addr, ok := s.pointerAddress(i)
	if !ok {
		return errorf("set struct pointer %d: index out of bounds", i)
	}
	if err := s.seg.writePtr(addr, src, false); err != nil {
		return annotatef(err, "set struct pointer %d", i)
	}
	return nil
}

// copyStruct copies src's data and pointer sections into dst, which
// must already be allocated with dst.size >= src.size in both
// sections (a struct can only grow across schema evolution, never
// shrink). Pointers are deep-copied so the result is self-contained
// regardless of where src's pointees live.
func copyStruct(dst, src Struct) error {
	if src.seg == nil {
		return nil
	}
	n := src.size.DataSize
	if dst.size.DataSize < n {
		n = dst.size.DataSize
	}
	srcData := src.seg.slice(src.off, n)
	dstData := dst.seg.slice(dst.off, n)
	copy(dstData, srcData)

	numPtrs := src.size.PointerCount
	if dst.size.PointerCount < numPtrs {
		numPtrs = dst.size.PointerCount
	}
	for i := uint16(0); i < numPtrs; i++ {
		p, err := src.Ptr(i)
		if err != nil {
			return annotatef(err, "copy struct: field %d", i)
		}
		dstAddr, _ := dst.pointerAddress(i)
		if err := dst.seg.writePtr(dstAddr, p, true); err != nil {
			return annotatef(err, "copy struct: field %d", i)
		}
	}
	return nil
}
