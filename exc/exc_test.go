package exc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormatsPrefixAndMessage(t *testing.T) {
	err := New(Failed, "rpc", "connection reset")
	assert.Equal(t, "rpc: connection reset", err.Error())
	assert.Equal(t, Failed, TypeOf(err))
}

func TestNewWithoutPrefix(t *testing.T) {
	err := New(Overloaded, "", "too busy")
	assert.Equal(t, "too busy", err.Error())
}

func TestAnnotateNilIsNil(t *testing.T) {
	assert.NoError(t, Annotate(Failed, "x", nil))
}

func TestAnnotatePreservesUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Annotate(Disconnected, "rpc", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, Disconnected, TypeOf(err))
}

func TestTypeOfUnknownErrorIsFailed(t *testing.T) {
	assert.Equal(t, Failed, TypeOf(errors.New("plain")))
	assert.Equal(t, Failed, TypeOf(nil))
}

func TestIsType(t *testing.T) {
	err := New(Unimplemented, "vat", "no such method")
	assert.True(t, IsType(err, Unimplemented))
	assert.False(t, IsType(err, Failed))
	assert.False(t, IsType(errors.New("plain"), Unimplemented))
}

func TestAnnotatorFailedf(t *testing.T) {
	a := Annotator("segment")
	err := a.Failedf("bad offset %d", 42)
	assert.Equal(t, "segment: bad offset 42", err.Error())
	assert.Equal(t, Failed, TypeOf(err))
}

func TestAnnotatorAnnotateKeepsOriginalType(t *testing.T) {
	a := Annotator("rpc")
	cause := New(Overloaded, "", "backed up")
	wrapped := a.Annotatef(cause, "sending %s", "call")
	assert.Equal(t, Overloaded, TypeOf(wrapped))
	assert.Equal(t, "rpc: sending call: backed up", wrapped.Error())
}

func TestAnnotatorAnnotateNilIsNil(t *testing.T) {
	a := Annotator("rpc")
	assert.NoError(t, a.Annotate("msg", nil))
}

func TestTypeStringAndGoString(t *testing.T) {
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Unimplemented", Unimplemented.GoString())
	assert.Equal(t, fmt.Sprintf("type(%d)", 99), Type(99).String())
	assert.Equal(t, fmt.Sprintf("Type(%d)", 99), Type(99).GoString())
}
