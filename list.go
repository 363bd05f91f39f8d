package capnp

// A List is a pointer to a Cap'n Proto list. Lists have one of three
// physical layouts: a bit-packed list of booleans, a fixed-stride
// list of data/pointer elements, or an InlineComposite list of equal-
// sized structs preceded by a tag word.
type List struct {
	seg        *Segment
	off        address
	length     int32
	size       ObjectSize // element size; meaningless (zero) for bit lists
	flags      listFlags
	depthLimit uint
}

type listFlags uint8

const (
	isBitList listFlags = 1 << iota
	isCompositeList
)

// Len returns the number of elements in the list.
func (l List) Len() int { return int(l.length) }

// Segment returns the segment the list is stored in, or nil if the
// list is invalid.
func (l List) Segment() *Segment { return l.seg }

// Message returns the message containing l, or nil if l is invalid.
func (l List) Message() *Message {
	if l.seg == nil {
		return nil
	}
	return l.seg.msg
}

// IsValid reports whether l is a non-null list pointer.
func (l List) IsValid() bool { return l.seg != nil }

// ToPtr returns the pointer to the list.
func (l List) ToPtr() Ptr {
	if l.seg == nil {
		return Ptr{}
	}
	return Ptr{
		seg:        l.seg,
		off:        l.off,
		lenOrCap:   uint32(l.length),
		size:       l.size,
		flags:      listPtrFlag(l.flags),
		depthLimit: l.depthLimit,
	}
}

// raw encodes l's header fields back into the rawPointer form
// writePtr uses (offset left zero; the caller fills it in).
func (l List) raw() rawPointer {
	switch {
	case l.flags&isBitList != 0:
		return rawListPointer(0, bit1List, l.length)
	case l.flags&isCompositeList != 0:
		return rawListPointer(0, compositeList, l.length*int32(l.size.totalWordCount()))
	default:
		return rawListPointer(0, elementListType(l.size), l.length)
	}
}

// elementListType picks the non-composite list tag for a fixed-stride
// element of sz, panicking if sz does not correspond to exactly one
// of the fixed wire widths (callers build sz from a small fixed set
// of constructors, so this should never happen in practice).
func elementListType(sz ObjectSize) listType {
	switch {
	case sz.PointerCount > 0:
		return pointerList
	case sz.DataSize == 0:
		return voidList
	case sz.DataSize == 1:
		return byte1List
	case sz.DataSize == 2:
		return byte2List
	case sz.DataSize == 4:
		return byte4List
	case sz.DataSize == 8:
		return byte8List
	default:
		panic("elementListType: size is not a valid fixed-width element")
	}
}

// bitListSize returns the byte length of a bit list's body holding n
// elements, rounded up to a whole byte (and, for the wire encoding,
// implicitly to a whole word by the allocator).
func bitListSize(n int32) Size {
	return Size((n + 7) / 8)
}

// allocSize returns the number of bytes l's body occupies, tag word
// included for composite lists — the quantity a copy or an
// allocation needs.
func (l List) allocSize() Size {
	switch {
	case l.flags&isBitList != 0:
		return bitListSize(l.length)
	case l.flags&isCompositeList != 0:
		sz, _ := wordSize.times(l.length*int32(l.size.totalWordCount()) + 1)
		return sz
	default:
		sz, _ := l.size.totalSize().times(l.length)
		return sz
	}
}

func (l List) elementAddress(i int) (address, bool) {
	if l.seg == nil || i < 0 || i >= int(l.length) {
		return 0, false
	}
	return l.off.element(int32(i), l.size.totalSize())
}

// Struct returns list element i interpreted as a struct. For a list
// of primitives, this treats the element's data as a single-field
// struct's data section (a fixed-width primitive list is a struct
// list in all but name on the wire).
func (l List) Struct(i int) Struct {
	addr, ok := l.elementAddress(i)
	if !ok {
		return Struct{}
	}
	return Struct{
		seg:        l.seg,
		off:        addr,
		size:       l.size,
		flags:      isListMember,
		depthLimit: l.depthLimit,
	}
}

// SetStruct copies v into list element i.
func (l List) SetStruct(i int, v Struct) error {
	addr, ok := l.elementAddress(i)
	if !ok {
		return errorf("set list element %d: index out of bounds", i)
	}
	dst := Struct{seg: l.seg, off: addr, size: l.size, flags: isListMember, depthLimit: l.depthLimit}
	if err := copyStruct(dst, v); err != nil {
		return annotatef(err, "set list element %d", i)
	}
	return nil
}

// BitAt reports the value of bit list element i.
func (l List) BitAt(i int) bool {
	if l.seg == nil || l.flags&isBitList == 0 || i < 0 || i >= int(l.length) {
		return false
	}
	addr, ok := l.off.addSize(Size(i / 8))
	if !ok {
		return false
	}
	// Bits are packed LSB-first within each byte: element 0 is bit 0
	// of byte 0, element 8 is bit 0 of byte 1, and so on.
	return l.seg.readUint8(addr)&(1<<uint(i%8)) != 0
}

// SetBitAt sets the value of bit list element i.
func (l List) SetBitAt(i int, v bool) {
	if l.seg == nil || l.flags&isBitList == 0 || i < 0 || i >= int(l.length) {
		return
	}
	addr, ok := l.off.addSize(Size(i / 8))
	if !ok {
		return
	}
	b := l.seg.readUint8(addr)
	mask := byte(1 << uint(i%8))
	if v {
		b |= mask
	} else {
		b &^= mask
	}
	l.seg.writeUint8(addr, b)
}

func (l List) readUint8(i int) uint8 {
	addr, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint8(addr)
}

func (l List) readUint16(i int) uint16 {
	addr, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint16(addr)
}

func (l List) readUint32(i int) uint32 {
	addr, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint32(addr)
}

func (l List) readUint64(i int) uint64 {
	addr, ok := l.elementAddress(i)
	if !ok {
		return 0
	}
	return l.seg.readUint64(addr)
}

func (l List) writeUint8(i int, v uint8) {
	if addr, ok := l.elementAddress(i); ok {
		l.seg.writeUint8(addr, v)
	}
}

func (l List) writeUint16(i int, v uint16) {
	if addr, ok := l.elementAddress(i); ok {
		l.seg.writeUint16(addr, v)
	}
}

func (l List) writeUint32(i int, v uint32) {
	if addr, ok := l.elementAddress(i); ok {
		l.seg.writeUint32(addr, v)
	}
}

func (l List) writeUint64(i int, v uint64) {
	if addr, ok := l.elementAddress(i); ok {
		l.seg.writeUint64(addr, v)
	}
}

// Uint8At returns primitive list element i as a uint8.
func (l List) Uint8At(i int) uint8 { return l.readUint8(i) }

// Uint16At returns primitive list element i as a uint16.
func (l List) Uint16At(i int) uint16 { return l.readUint16(i) }

// Uint32At returns primitive list element i as a uint32.
func (l List) Uint32At(i int) uint32 { return l.readUint32(i) }

// Uint64At returns primitive list element i as a uint64.
func (l List) Uint64At(i int) uint64 { return l.readUint64(i) }

// SetUint8At sets primitive list element i to v.
func (l List) SetUint8At(i int, v uint8) { l.writeUint8(i, v) }

// SetUint16At sets primitive list element i to v.
func (l List) SetUint16At(i int, v uint16) { l.writeUint16(i, v) }

// SetUint32At sets primitive list element i to v.
func (l List) SetUint32At(i int, v uint32) { l.writeUint32(i, v) }

// SetUint64At sets primitive list element i to v.
func (l List) SetUint64At(i int, v uint64) { l.writeUint64(i, v) }

// NewUint16List allocates a new list of n uint16 elements.
func NewUint16List(s *Segment, n int32) (List, error) {
	l, err := NewList(s, ObjectSize{DataSize: 2}, n)
	if err != nil {
		return List{}, annotatef(err, "new uint16 list")
	}
	return l, nil
}

// PointerList wraps a List of pointers (used for Text/Data lists and
// the segment-level synthetic root reference).
type PointerList struct{ List }

// At returns pointer element i.
func (l PointerList) At(i int) (Ptr, error) {
	addr, ok := l.elementAddress(i)
	if !ok {
		return Ptr{}, errorf("pointer list: index %d out of bounds", i)
	}
	if l.depthLimit == 0 {
		return Ptr{}, errorf("pointer list: depth limit reached")
	}
	return l.seg.readPtr(addr, l.depthLimit)
}

// SetAt sets pointer element i to v.
func (l PointerList) SetAt(i int, v Ptr) error {
	addr, ok := l.elementAddress(i)
	if !ok {
		return errorf("pointer list: index %d out of bounds", i)
	}
	return l.seg.writePtr(addr, v, false)
}

// NewList allocates a new list with n elements of sz, in s's
// message.
func NewList(s *Segment, sz ObjectSize, n int32) (List, error) {
	if n < 0 {
		return List{}, errorf("new list: negative length")
	}
	total, ok := sz.totalSize().times(n)
	if !ok {
		return List{}, errorf("new list: size overflow")
	}
	seg, addr, err := alloc(s, total)
	if err != nil {
		return List{}, annotatef(err, "new list")
	}
	return List{seg: seg, off: addr, length: n, size: sz, depthLimit: maxDepth}, nil
}

// NewBitList allocates a new list of n booleans.
func NewBitList(s *Segment, n int32) (List, error) {
	if n < 0 {
		return List{}, errorf("new bit list: negative length")
	}
	seg, addr, err := alloc(s, bitListSize(n))
	if err != nil {
		return List{}, annotatef(err, "new bit list")
	}
	return List{seg: seg, off: addr, length: n, flags: isBitList, depthLimit: maxDepth}, nil
}

// NewCompositeList allocates a new InlineComposite list of n elements
// of sz, writing the tag word ahead of the returned list's body.
func NewCompositeList(s *Segment, sz ObjectSize, n int32) (List, error) {
	if n < 0 {
		return List{}, errorf("new composite list: negative length")
	}
	total, ok := sz.totalSize().times(n)
	if !ok {
		return List{}, errorf("new composite list: size overflow")
	}
	total += wordSize
	seg, addr, err := alloc(s, total)
	if err != nil {
		return List{}, annotatef(err, "new composite list")
	}
	seg.writeRawPointer(addr, rawStructPointer(pointerOffset(n), sz))
	body, ok := addr.addSize(wordSize)
	if !ok {
		return List{}, errorf("new composite list: content address overflow")
	}
	return List{seg: seg, off: body, length: n, size: sz, flags: isCompositeList, depthLimit: maxDepth}, nil
}

// NewPointerList allocates a new list of n pointers.
func NewPointerList(s *Segment, n int32) (PointerList, error) {
	l, err := NewList(s, ObjectSize{PointerCount: 1}, n)
	if err != nil {
		return PointerList{}, annotatef(err, "new pointer list")
	}
	return PointerList{l}, nil
}

func isOneByteList(p Ptr) bool {
	if p.flags.ptrType() != listPtrType {
		return false
	}
	return p.size.PointerCount == 0 && p.size.DataSize == 1
}
