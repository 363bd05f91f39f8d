package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRoundTrip(t *testing.T) {
	// Scenario 3 from spec.md §8: writing "hi" allocates one word,
	// bytes 68 69 00 00 00 00 00 00; read_text yields "hi" (length 2).
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	p, err := NewText(seg, "hi")
	require.NoError(t, err)

	raw := p.List().seg.slice(p.List().off, 8)
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 0, 0}, raw)
	assert.Equal(t, "hi", p.Text())
}

func TestEmptyTextWritesSoleNUL(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	p, err := NewText(seg, "")
	require.NoError(t, err)
	l := p.List()
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, byte(0), l.seg.readUint8(l.off))
	assert.Equal(t, "", p.Text())
}

func TestDataHasNoTrailingNUL(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	p, err := NewData(seg, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p.Data())
	assert.Equal(t, 3, p.List().Len())
}

func TestTextDefaultOnNonTextPtr(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	st, err := NewStruct(seg, ObjectSize{DataSize: wordSize})
	require.NoError(t, err)
	assert.Equal(t, "fallback", st.ToPtr().TextDefault("fallback"))
}
