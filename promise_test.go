package capnp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromiseFulfillWakesWaiters(t *testing.T) {
	p := NewPromise()
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	txt, err := NewText(seg, "done")
	require.NoError(t, err)

	done := make(chan struct{})
	var got Ptr
	p.OnResolve(func(v Ptr, err error) {
		got = v
		assert.NoError(t, err)
		close(done)
	})

	assert.False(t, p.Resolved())
	p.Fulfill(txt)
	<-done
	assert.True(t, p.Resolved())
	assert.Equal(t, "done", got.Text())
}

func TestPromiseSecondResolveIsNoop(t *testing.T) {
	p := NewPromise()
	p.Fulfill(Ptr{})
	p.Break(errorf("should not take effect"))

	v, err := p.Wait(context.Background())
	assert.NoError(t, err)
	assert.False(t, v.IsValid())
}

func TestPromiseWaitReturnsBreakError(t *testing.T) {
	p := NewPromise()
	wantErr := errorf("boom")
	p.Break(wantErr)

	_, err := p.Wait(context.Background())
	assert.Error(t, err)
}

func TestAnswerAtChainsTransform(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)

	inner, err := NewStruct(seg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	leaf, err := NewText(seg, "leaf")
	require.NoError(t, err)
	require.NoError(t, inner.SetPtr(0, leaf))

	p := NewPromise()
	a := NewAnswer(p)
	sub := a.At(PipelineOp{PointerIndex: 0})

	p.Fulfill(inner.ToPtr())
	v, err := sub.Struct(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "leaf", v.Text())
}

func TestTransformThroughInvalidPointerYieldsInvalid(t *testing.T) {
	v, err := Transform(Ptr{}, []PipelineOp{{PointerIndex: 0}})
	require.NoError(t, err)
	assert.False(t, v.IsValid())
}
