package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawStructPointerEncode(t *testing.T) {
	// Scenario 1 from spec.md §8: offset=3, data_words=2, ptr_words=1
	// encodes to preamble bytes 0C 00 00 00 02 00 01 00.
	p := rawStructPointer(3, ObjectSize{DataSize: 2 * wordSize, PointerCount: 1})
	var want uint64 = 0x0001_0002_0000_000C
	assert.Equal(t, want, uint64(p))
}

func TestRawPointerRoundTrip(t *testing.T) {
	cases := []rawPointer{
		rawStructPointer(0, ObjectSize{}),
		rawStructPointer(5, ObjectSize{DataSize: 3 * wordSize, PointerCount: 2}),
		rawStructPointer(-4, ObjectSize{DataSize: wordSize, PointerCount: 1}),
		rawListPointer(2, byte1List, 10),
		rawListPointer(0, pointerList, 0),
		rawListPointer(-1, compositeList, 30),
		rawListPointer(7, bit1List, 4),
		rawFarPointer(3, 16),
		rawDoubleFarPointer(9, 800),
		rawInterfacePointer(42),
	}
	for _, p := range cases {
		switch p.pointerType() {
		case structPointer:
			got := rawStructPointer(p.offset(), p.structSize())
			assert.Equal(t, p, got)
		case listPointer:
			got := rawListPointer(p.offset(), p.listType(), p.numListElements())
			assert.Equal(t, p, got)
		case farPointer:
			got := rawFarPointer(p.farSegment(), p.farAddress())
			assert.Equal(t, p, got)
		case doubleFarPointer:
			got := rawDoubleFarPointer(p.farSegment(), p.farAddress())
			assert.Equal(t, p, got)
		case otherPointer:
			got := rawInterfacePointer(p.capabilityIndex())
			assert.Equal(t, p, got)
		}
	}
}

func TestStructPointerRoundTrip(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	st, err := NewStruct(seg, ObjectSize{DataSize: 2 * wordSize, PointerCount: 1})
	require.NoError(t, err)
	st.SetUint32(0, 0xdeadbeef)

	root, err := NewRootStruct(st.Message(), ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	require.NoError(t, root.SetPtr(0, st.ToPtr()))

	got, err := root.Ptr(0)
	require.NoError(t, err)
	gotStruct := got.Struct()
	require.True(t, gotStruct.IsValid())
	assert.Equal(t, uint32(0xdeadbeef), gotStruct.Uint32(0))
}
