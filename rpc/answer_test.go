package rpc

import (
	"testing"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnForAnswerTest() *Conn {
	return &Conn{
		answers: make(map[AnswerID]*answer),
	}
}

func TestNewAnswerRegistersInTable(t *testing.T) {
	c := newConnForAnswerTest()
	a := c.newAnswer(AnswerID(3))

	assert.Same(t, a, c.answers[AnswerID(3)])
	assert.False(t, a.promise.Resolved())
}

// TestFinishReleasesCaps is scenario 6 from spec.md §8: once both a
// Return has been sent and the peer's Finish has arrived, any export
// refs the answer was still holding (because releaseResultCaps was
// requested) are released and the answer is dropped from the table.
func TestFinishReleasesCaps(t *testing.T) {
	c := newConnForAnswerTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "x"}}
	id := c.exportFor(cap1)
	require.Equal(t, uint32(1), c.exports[id].refs)

	a := c.newAnswer(AnswerID(1))
	a.releaseOnFinish = true
	a.exportRefs = map[ExportID]uint32{id: 1}

	a.returnSent = true
	a.maybeDestroy()
	// Finish has not arrived yet: the answer and the export both
	// remain live.
	assert.NotNil(t, c.answers[AnswerID(1)])
	require.NotNil(t, c.exports[id])
	assert.Equal(t, uint32(1), c.exports[id].refs)

	a.finishReceived = true
	a.maybeDestroy()

	assert.Nil(t, c.answers[AnswerID(1)])
	assert.Nil(t, c.exports[id])
}

// TestDestroyWithoutReleaseOnFinishKeepsExports checks that an answer
// whose Finish did not request releaseResultCaps leaves any exports
// it produced untouched.
func TestDestroyWithoutReleaseOnFinishKeepsExports(t *testing.T) {
	c := newConnForAnswerTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "y"}}
	id := c.exportFor(cap1)

	a := c.newAnswer(AnswerID(2))
	a.exportRefs = map[ExportID]uint32{id: 1}
	a.returnSent = true
	a.finishReceived = true

	a.maybeDestroy()

	assert.Nil(t, c.answers[AnswerID(2)])
	require.NotNil(t, c.exports[id])
	assert.Equal(t, uint32(1), c.exports[id].refs)
}

func TestMaybeDestroyWaitsForBothHalves(t *testing.T) {
	c := newConnForAnswerTest()
	a := c.newAnswer(AnswerID(5))

	a.returnSent = true
	a.maybeDestroy()
	assert.NotNil(t, c.answers[AnswerID(5)])

	a.finishReceived = true
	a.maybeDestroy()
	assert.Nil(t, c.answers[AnswerID(5)])
}
