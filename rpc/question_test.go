package rpc

import (
	"testing"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnForQuestionTest() *Conn {
	return &Conn{}
}

func TestNewQuestionAllocatesDenseIDs(t *testing.T) {
	c := newConnForQuestionTest()

	q1 := c.newQuestion()
	q2 := c.newQuestion()

	assert.Equal(t, QuestionID(0), q1.id)
	assert.Equal(t, QuestionID(1), q2.id)
	require.Len(t, c.questions, 2)
	assert.Same(t, q1, c.questions[0])
	assert.Same(t, q2, c.questions[1])
}

// TestFinishQuestionReleasesSlotAndID checks that finishing a question
// drops it from the table and frees its id for reuse, matching the
// Pending->Ready->Released lifecycle from spec.md §4.6.
func TestFinishQuestionReleasesSlotAndID(t *testing.T) {
	c := newConnForQuestionTest()
	q := c.newQuestion()

	c.finishQuestion(q)

	assert.Nil(t, c.questions[q.id])
	assert.True(t, q.flags&questionFinished != 0)

	select {
	case <-q.finishMsgSend:
	default:
		t.Fatal("finishMsgSend was not closed")
	}

	q2 := c.newQuestion()
	assert.Equal(t, q.id, q2.id)
}

func TestQuestionPromiseFulfillsIndependently(t *testing.T) {
	c := newConnForQuestionTest()
	q := c.newQuestion()

	_, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	require.NoError(t, err)
	txt, err := capnp.NewText(seg, "result")
	require.NoError(t, err)

	q.p.Fulfill(txt)
	assert.True(t, q.p.Resolved())
}
