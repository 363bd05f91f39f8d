package capnp

import "fmt"

// address is a byte offset into a segment's data.  It is bounded to
// [0, maxSegmentSize).
type address uint32

func (a address) String() string   { return fmt.Sprintf("%#08x", uint64(a)) }
func (a address) GoString() string { return fmt.Sprintf("capnp.address(%#08x)", uint64(a)) }

// addSize returns a+sz, or ok=false if that would overflow a valid
// address.
func (a address) addSize(sz Size) (_ address, ok bool) {
	x := int64(a) + int64(sz)
	if x > int64(maxSegmentSize) {
		return invalidAddress, false
	}
	return address(x), true
}

// addSizeUnchecked is addSize without the overflow check, for callers
// that have already validated the region.
func (a address) addSizeUnchecked(sz Size) address {
	return a + address(sz)
}

// element returns a+i*sz, or ok=false on overflow or a negative
// result.  Used to index into fixed-stride lists.
func (a address) element(i int32, sz Size) (_ address, ok bool) {
	x := int64(a) + int64(i)*int64(sz)
	if x > int64(maxSegmentSize) || x < 0 {
		return invalidAddress, false
	}
	return address(x), true
}

// addOffset adds a struct data-section byte offset to a.  Panics if
// the offset itself is out of range; callers are expected to have
// validated it against a schema-declared bound first.
func (a address) addOffset(o DataOffset) address {
	if o >= 1<<19 {
		panic("data offset overflow")
	}
	return a + address(o)
}

const invalidAddress address = 0xffffffff

// Size is a size, in bytes.
type Size uint32

// wordSize is the width of a Cap'n Proto word: the atomic unit of
// segment allocation and the unit pointer offsets are expressed in.
const wordSize Size = 8

// maxSegmentSize is the largest size the 32-bit wire encoding can
// represent.
const maxSegmentSize Size = 1<<32 - 8

// maxAllocSize caps allocation requests so that Size<->int conversions
// never overflow, on either 32- or 64-bit int platforms.
func maxAllocSize() Size {
	if maxInt == 0x7fffffff {
		return Size(0x7ffffff8)
	}
	return maxSegmentSize
}

func (sz Size) String() string {
	if sz == 1 {
		return "1 byte"
	}
	return fmt.Sprintf("%d bytes", sz)
}

func (sz Size) GoString() string { return fmt.Sprintf("capnp.Size(%d)", sz) }

// times returns sz*n, or ok=false if the product would exceed
// maxSegmentSize or go negative.
func (sz Size) times(n int32) (_ Size, ok bool) {
	x := int64(sz) * int64(n)
	if x > int64(maxSegmentSize) || x < 0 {
		return invalidSize, false
	}
	return Size(x), true
}

// timesUnchecked is times without bounds checking.
func (sz Size) timesUnchecked(n int32) Size { return sz * Size(n) }

// padToWord rounds sz up to the next word boundary.
func (sz Size) padToWord() Size {
	const mask = Size(wordSize - 1)
	return (sz + mask) &^ mask
}

const invalidSize Size = 0xffffffff

// DataOffset is a byte offset from the start of a struct's data
// section.  Bounded to [0, 1<<19).
type DataOffset uint32

func (off DataOffset) String() string {
	if off == 1 {
		return "+1 byte"
	}
	return fmt.Sprintf("+%d bytes", off)
}

func (off DataOffset) GoString() string { return fmt.Sprintf("capnp.DataOffset(%d)", off) }

// ObjectSize records the data-section and pointer-section sizes of a
// struct, or of the elements of a composite list.  This is the shape
// the schema adapter hands the reference engine when it initializes a
// typed ref — see the Schema adapter contract.
type ObjectSize struct {
	DataSize     Size // must be <= 0xffff*wordSize
	PointerCount uint16
}

func (sz ObjectSize) isZero() bool      { return sz.DataSize == 0 && sz.PointerCount == 0 }
func (sz ObjectSize) isOneByte() bool   { return sz.DataSize == 1 && sz.PointerCount == 0 }
func (sz ObjectSize) isValid() bool     { return sz.DataSize <= 0xffff*wordSize }
func (sz ObjectSize) pointerSize() Size { return wordSize * Size(sz.PointerCount) }
func (sz ObjectSize) totalSize() Size   { return sz.DataSize + sz.pointerSize() }

// dataWordCount returns the data section's length in words.  Panics if
// DataSize is not word-aligned, which would indicate a bug in whatever
// constructed the ObjectSize.
func (sz ObjectSize) dataWordCount() int32 {
	if sz.DataSize%wordSize != 0 {
		panic("ObjectSize.DataSize is not word-aligned")
	}
	return int32(sz.DataSize / wordSize)
}

func (sz ObjectSize) totalWordCount() int32 {
	return sz.dataWordCount() + int32(sz.PointerCount)
}

func (sz ObjectSize) String() string {
	return fmt.Sprintf("{datasz=%d ptrs=%d}", sz.DataSize, sz.PointerCount)
}

func (sz ObjectSize) GoString() string {
	return fmt.Sprintf("capnp.ObjectSize{DataSize: %d, PointerCount: %d}", sz.DataSize, sz.PointerCount)
}

// BitOffset is a bit offset from the start of a struct's data
// section.  Bounded to [0, 1<<22).
type BitOffset uint32

func (bit BitOffset) offset() DataOffset { return DataOffset(bit / 8) }
func (bit BitOffset) mask() byte         { return byte(1 << (bit % 8)) }

func (bit BitOffset) String() string   { return fmt.Sprintf("bit %d", bit) }
func (bit BitOffset) GoString() string { return fmt.Sprintf("capnp.BitOffset(%d)", bit) }
