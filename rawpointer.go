package capnp

import "fmt"

// pointerOffset is a signed word displacement, bounded to
// [-1<<29, 1<<29).  Near pointers measure it from the word past the
// pointer itself; far pointers measure it from the start of the
// target segment.
type pointerOffset int32

// resolve turns off into an absolute address relative to base.
func (off pointerOffset) resolve(base address) (_ address, ok bool) {
	return base.element(int32(off), wordSize)
}

// nearPointerOffset computes the offset field for a near pointer at
// paddr that targets addr.
func nearPointerOffset(paddr, addr address) pointerOffset {
	return pointerOffset(addr/address(wordSize) - paddr/address(wordSize) - 1)
}

// rawPointer is the 8-byte wire encoding of a pointer: low 32 bits are
// offset_and_kind, high 32 bits are a kind-specific size/count field.
// This is the "pointer preamble" of the spec.
type rawPointer uint64

// rawStructPointer builds a struct pointer.  off is measured from the
// end of the pointer word to the start of the struct.
func rawStructPointer(off pointerOffset, sz ObjectSize) rawPointer {
	return rawPointer(structPointer) |
		rawPointer(uint32(off)<<2) |
		rawPointer(sz.dataWordCount())<<32 |
		rawPointer(sz.PointerCount)<<48
}

// rawListPointer builds a list pointer.  For compositeList, length is
// the number of words the list body occupies (excluding the tag);
// otherwise it is the element count.
func rawListPointer(off pointerOffset, lt listType, length int32) rawPointer {
	return rawPointer(listPointer) |
		rawPointer(uint32(off)<<2) |
		rawPointer(lt)<<32 |
		rawPointer(length)<<35
}

// rawInterfacePointer builds an interface pointer referencing a
// capability-table index.
func rawInterfacePointer(capability CapabilityID) rawPointer {
	return rawPointer(otherPointer) | rawPointer(capability)<<32
}

// rawFarPointer builds a single-far pointer to a landing pad at
// (segID, off).
func rawFarPointer(segID SegmentID, off address) rawPointer {
	return rawPointer(farPointer) | rawPointer(off&^7) | rawPointer(segID)<<32
}

// rawDoubleFarPointer builds a double-far pointer to a two-word
// landing pad at (segID, off): a far pointer followed by a tag word.
func rawDoubleFarPointer(segID SegmentID, off address) rawPointer {
	return rawPointer(doubleFarPointer) | rawPointer(off&^7) | rawPointer(segID)<<32
}

// landingPadNearPointer combines a double-far's far word and tag word
// into the near pointer that the tag describes, with the far's offset
// substituted in.  tag must be a struct or list pointer.
func landingPadNearPointer(far, tag rawPointer) rawPointer {
	return tag&^0xfffffffc | rawPointer(uint32(far&^3)>>1)
}

type pointerType int

const (
	structPointer    pointerType = 0
	listPointer      pointerType = 1
	farPointer       pointerType = 2
	doubleFarPointer pointerType = 6
	otherPointer     pointerType = 3
)

// pointerType decodes the low kind bits; far pointers additionally
// distinguish single vs. double via bit 2.
func (p rawPointer) pointerType() pointerType {
	if t := pointerType(p & 3); t == farPointer {
		return pointerType(p & 7)
	}
	return pointerType(p & 3)
}

func (p rawPointer) structSize() ObjectSize {
	dataWords := uint16(p >> 32)
	ptrs := uint16(p >> 48)
	return ObjectSize{
		DataSize:     wordSize.timesUnchecked(int32(dataWords)),
		PointerCount: ptrs,
	}
}

type listType int

const (
	voidList      listType = 0
	bit1List      listType = 1
	byte1List     listType = 2
	byte2List     listType = 3
	byte4List     listType = 4
	byte8List     listType = 5
	pointerList   listType = 6
	compositeList listType = 7
)

func (p rawPointer) listType() listType { return listType((p >> 32) & 7) }

// numListElements returns the element count, or — for compositeList —
// the word count of the list body.  Always in [0, 1<<29).
func (p rawPointer) numListElements() int32 { return int32(p >> 35) }

// elementSize returns the per-element size for any non-composite list
// type.  Panics on compositeList, whose element size comes from the
// tag word instead.
func (p rawPointer) elementSize() ObjectSize {
	switch p.listType() {
	case voidList, bit1List:
		return ObjectSize{}
	case byte1List:
		return ObjectSize{DataSize: 1}
	case byte2List:
		return ObjectSize{DataSize: 2}
	case byte4List:
		return ObjectSize{DataSize: 4}
	case byte8List:
		return ObjectSize{DataSize: 8}
	case pointerList:
		return ObjectSize{PointerCount: 1}
	default:
		panic("elementSize: not valid for composite or unknown list type")
	}
}

// totalListSize returns the byte length of the list body (tag word
// included for composite lists).
func (p rawPointer) totalListSize() (sz Size, ok bool) {
	n := p.numListElements()
	switch p.listType() {
	case bit1List:
		return bitListSize(n), true
	case compositeList:
		return wordSize.times(n + 1)
	default:
		return p.elementSize().totalSize().timesUnchecked(n), true
	}
}

// offset reads a struct/list pointer's signed word offset.
func (p rawPointer) offset() pointerOffset { return pointerOffset(int32(p) >> 2) }

// withOffset returns p with its offset field replaced.  Only valid
// for struct or list pointers.
func (p rawPointer) withOffset(off pointerOffset) rawPointer {
	return p&^0xfffffffc | rawPointer(uint32(off<<2))
}

// farAddress is the landing-pad address a far/double-far pointer
// names.
func (p rawPointer) farAddress() address { return address(p) &^ 7 }

// farSegment is the landing-pad segment a far/double-far pointer
// names.
func (p rawPointer) farSegment() SegmentID { return SegmentID(p >> 32) }

func (p rawPointer) otherPointerType() uint32 { return uint32(p) >> 2 }

func (p rawPointer) capabilityIndex() CapabilityID { return CapabilityID(p >> 32) }

// GoString renders p as a call to whichever raw*Pointer constructor
// produced it; used in test failures and debug dumps.
func (p rawPointer) GoString() string {
	if p == 0 {
		return "rawPointer(0)"
	}
	switch p.pointerType() {
	case structPointer:
		return fmt.Sprintf("rawStructPointer(%d, %#v)", p.offset(), p.structSize())
	case listPointer:
		return fmt.Sprintf("rawListPointer(%d, %s, %d)", p.offset(), p.listType().goString(), p.numListElements())
	case farPointer:
		return fmt.Sprintf("rawFarPointer(%d, %v)", p.farSegment(), p.farAddress())
	case doubleFarPointer:
		return fmt.Sprintf("rawDoubleFarPointer(%d, %v)", p.farSegment(), p.farAddress())
	default:
		if p.otherPointerType() != 0 {
			return fmt.Sprintf("rawPointer(%#016x)", uint64(p))
		}
		return fmt.Sprintf("rawInterfacePointer(%d)", p.capabilityIndex())
	}
}

func (lt listType) goString() string {
	switch lt {
	case voidList:
		return "voidList"
	case bit1List:
		return "bit1List"
	case byte1List:
		return "byte1List"
	case byte2List:
		return "byte2List"
	case byte4List:
		return "byte4List"
	case byte8List:
		return "byte8List"
	case pointerList:
		return "pointerList"
	case compositeList:
		return "compositeList"
	default:
		return fmt.Sprintf("listType(%d)", int(lt))
	}
}
