package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFarPointerResolution exercises scenario 4 from spec.md §8: a
// struct placed in a different segment than its parent forces
// writePtr to emit a far pointer, which readPtr must then follow back
// to the same struct.
func TestFarPointerResolution(t *testing.T) {
	msg, _, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)

	// Inject a second, independently-backed segment directly (rather
	// than routing through an Arena's growth policy, which is free to
	// place a fresh allocation whenever it likes) so the target is
	// deterministically placed in a different segment than the root,
	// forcing writePtr to emit a far pointer.
	s1 := &Segment{msg: msg, id: 1, data: make([]byte, 0, 64)}
	msg.segs[1] = s1

	target, err := NewStruct(s1, ObjectSize{DataSize: wordSize})
	require.NoError(t, err)
	target.SetUint64(0, 0xcafef00dcafef00d)

	require.NoError(t, msg.SetRoot(target.ToPtr()))

	got, err := msg.Root()
	require.NoError(t, err)
	gotStruct := got.Struct()
	require.True(t, gotStruct.IsValid())
	assert.Equal(t, uint64(0xcafef00dcafef00d), gotStruct.Uint64(0))

	// Following twice is idempotent: reading the root a second time
	// lands on the same address.
	got2, err := msg.Root()
	require.NoError(t, err)
	assert.Equal(t, got.Struct().off, got2.Struct().off)
	assert.Equal(t, got.Struct().seg.id, got2.Struct().seg.id)
}

func TestDoubleFarPointer(t *testing.T) {
	// landingPadNearPointer combines a far word and a tag word into
	// the near pointer the tag describes, substituting the far's
	// offset in place of the tag's own (zero) offset.
	tag := rawStructPointer(0, ObjectSize{DataSize: wordSize, PointerCount: 2})
	far := rawFarPointer(5, 128)
	near := landingPadNearPointer(far, tag)
	assert.Equal(t, structPointer, near.pointerType())
	assert.Equal(t, ObjectSize{DataSize: wordSize, PointerCount: 2}, near.structSize())
	assert.Equal(t, pointerOffset(128/int32(wordSize)), near.offset())
}

func TestReadModifyWriteStructData(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	st, err := NewStruct(seg, ObjectSize{DataSize: wordSize})
	require.NoError(t, err)

	st.SetUint8(0, 0xff)
	st.SetUint8(1, 0x11)
	assert.Equal(t, uint8(0xff), st.Uint8(0))
	assert.Equal(t, uint8(0x11), st.Uint8(1))

	st.SetBit(BitOffset(16), true)
	assert.True(t, st.Bit(BitOffset(16)))
	// Unrelated bits in the same byte are untouched.
	assert.False(t, st.Bit(BitOffset(17)))
	assert.Equal(t, uint8(0xff), st.Uint8(0))
}

func TestStructFieldPastDataWordsReturnsDefault(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	st, err := NewStruct(seg, ObjectSize{DataSize: wordSize})
	require.NoError(t, err)
	// Reading byte offset 8 (one word past a one-word data section)
	// must not touch adjacent memory; it reads as the zero default.
	assert.Equal(t, uint8(0), st.Uint8(8))
}
