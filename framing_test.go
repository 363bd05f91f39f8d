package capnp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	root, err := NewRootStruct(msg, ObjectSize{DataSize: wordSize, PointerCount: 1})
	require.NoError(t, err)
	root.SetUint64(0, 0x1122334455667788)
	txt, err := NewText(seg, "hello")
	require.NoError(t, err)
	require.NoError(t, root.SetPtr(0, txt))

	b, err := Marshal(msg)
	require.NoError(t, err)
	// Single segment: header is one word (count-1, then the length),
	// so the body starts at byte 8.
	assert.Equal(t, uint32(0), bytesToUint32(b[0:4]))

	got, err := Unmarshal(b)
	require.NoError(t, err)
	gotRoot, err := got.Root()
	require.NoError(t, err)
	gotStruct := gotRoot.Struct()
	assert.Equal(t, uint64(0x1122334455667788), gotStruct.Uint64(0))
	field, err := gotStruct.Ptr(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", field.Text())
}

func TestEncoderDecoderRoundTripsMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	for i := 0; i < 3; i++ {
		msg, _, err := NewMessage(SingleSegment(nil))
		require.NoError(t, err)
		root, err := NewRootStruct(msg, ObjectSize{DataSize: wordSize})
		require.NoError(t, err)
		root.SetUint32(0, uint32(i))
		require.NoError(t, enc.Encode(msg))
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		msg, err := dec.Decode()
		require.NoError(t, err)
		root, err := msg.Root()
		require.NoError(t, err)
		assert.Equal(t, uint32(i), root.Struct().Uint32(0))
	}
	_, err := dec.Decode()
	assert.Error(t, err)
}

func TestUnmarshalRejectsShortSegmentTable(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func bytesToUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
