package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyProducesStandaloneStructuallyEqualMessage(t *testing.T) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	src, err := NewRootStruct(msg, ObjectSize{DataSize: wordSize, PointerCount: 1})
	require.NoError(t, err)
	src.SetUint64(0, 0x0102030405060708)

	txt, err := NewText(seg, "payload")
	require.NoError(t, err)
	require.NoError(t, src.SetPtr(0, txt))

	dstMsg, dstSeg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	copied, err := Copy(dstSeg, src.ToPtr())
	require.NoError(t, err)
	require.NoError(t, dstMsg.SetRoot(copied))

	// The copy shares no segment with the source.
	assert.NotEqual(t, src.Segment(), copied.Struct().Segment())

	eq, err := Equal(src.ToPtr(), copied)
	require.NoError(t, err)
	assert.True(t, eq)

	root, err := dstMsg.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), root.Struct().Uint64(0))
	field, err := root.Struct().Ptr(0)
	require.NoError(t, err)
	assert.Equal(t, "payload", field.Text())
}

func TestCopyOfNullIsNull(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	p, err := Copy(seg, Ptr{})
	require.NoError(t, err)
	assert.False(t, p.IsValid())
}

func TestIsCanonicalAfterCopy(t *testing.T) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	src, err := NewRootStruct(msg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: wordSize})
	require.NoError(t, err)
	child.SetUint64(0, 42)
	require.NoError(t, src.SetPtr(0, child.ToPtr()))

	dstMsg, dstSeg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	copied, err := Copy(dstSeg, src.ToPtr())
	require.NoError(t, err)
	require.NoError(t, dstMsg.SetRoot(copied))

	canon, err := IsCanonical(copied)
	require.NoError(t, err)
	assert.True(t, canon)
}
