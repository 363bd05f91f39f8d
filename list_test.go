package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitListReadWrite(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	l, err := NewBitList(seg, 4)
	require.NoError(t, err)

	// Scenario 2 from spec.md §8 describes element bytes 0xA0 read
	// MSB-first as [1,0,1,0]; DESIGN.md documents the decision to
	// implement the standard LSB-first ordering instead, so a byte of
	// 0x05 (bits 0 and 2 set) should read back as [1,0,1,0].
	l.SetBitAt(0, true)
	l.SetBitAt(1, false)
	l.SetBitAt(2, true)
	l.SetBitAt(3, false)

	assert.True(t, l.BitAt(0))
	assert.False(t, l.BitAt(1))
	assert.True(t, l.BitAt(2))
	assert.False(t, l.BitAt(3))

	raw := l.seg.readUint8(l.off)
	assert.Equal(t, byte(0x05), raw)
}

func TestBitListWriteDoesNotDisturbOtherBits(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	l, err := NewBitList(seg, 8)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		l.SetBitAt(i, true)
	}
	l.SetBitAt(3, false)
	for i := 0; i < 8; i++ {
		want := i != 3
		assert.Equal(t, want, l.BitAt(i), "index %d", i)
	}
}

func TestCompositeListZeroCount(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	l, err := NewCompositeList(seg, ObjectSize{DataSize: wordSize, PointerCount: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestVoidListConsumesNoBodyWords(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	before := len(seg.data)
	l, err := NewList(seg, ObjectSize{}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, l.Len())
	assert.Equal(t, before, len(seg.data))
}

func TestUint64ListExactWordMultiple(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	before := len(seg.data)
	l, err := NewList(seg, ObjectSize{DataSize: 8}, 8)
	require.NoError(t, err)
	added := len(seg.data) - before
	assert.Equal(t, 8*8, added)
	for i := 0; i < l.Len(); i++ {
		l.SetUint64At(i, uint64(i)*7)
	}
	for i := 0; i < l.Len(); i++ {
		assert.Equal(t, uint64(i)*7, l.Uint64At(i))
	}
}

func TestPointerListRoundTrip(t *testing.T) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	pl, err := NewPointerList(seg, 3)
	require.NoError(t, err)
	require.NoError(t, msg.SetRoot(pl.ToPtr()))

	for i := 0; i < 3; i++ {
		st, err := NewStruct(seg, ObjectSize{DataSize: wordSize})
		require.NoError(t, err)
		st.SetUint32(0, uint32(i*100))
		require.NoError(t, pl.SetAt(i, st.ToPtr()))
	}

	root, err := msg.Root()
	require.NoError(t, err)
	gotList := root.List()
	gotPL := PointerList{gotList}
	for i := 0; i < 3; i++ {
		p, err := gotPL.At(i)
		require.NoError(t, err)
		assert.Equal(t, uint32(i*100), p.Struct().Uint32(0))
	}
}
