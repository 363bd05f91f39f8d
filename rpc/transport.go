package rpc

import (
	"github.com/kwohlfahrt/ecapnp"
)

// Transport is the boundary between a Conn and the byte stream (a
// pipe, a socket, an in-process queue) carrying it to the peer vat.
// A Conn never touches bytes directly below this interface, the same
// separation the wire-format Encoder/Decoder draw for application
// messages.
type Transport interface {
	// SendMessage writes msg to the peer. Implementations should
	// flush eagerly; Conn serializes calls to SendMessage itself, so
	// an implementation need not be safe for concurrent use.
	SendMessage(msg *capnp.Message) error
	// RecvMessage blocks until the next message arrives from the
	// peer, or returns an error (including io.EOF on a clean close).
	RecvMessage() (*capnp.Message, error)
	// Close shuts down the underlying connection.
	Close() error
}

// StreamTransport adapts a capnp.Encoder/Decoder pair — i.e. an
// io.ReadWriter carrying standard Cap'n Proto stream framing — to the
// Transport interface.
type StreamTransport struct {
	enc    *capnp.Encoder
	dec    *capnp.Decoder
	closer interface{ Close() error }
}

// NewStreamTransport wraps rw's framed stream as a Transport. rw's
// concrete type must also implement io.Closer for Close to do
// anything.
func NewStreamTransport(rw interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}) *StreamTransport {
	t := &StreamTransport{enc: capnp.NewEncoder(rw), dec: capnp.NewDecoder(rw)}
	if c, ok := rw.(interface{ Close() error }); ok {
		t.closer = c
	}
	return t
}

func (t *StreamTransport) SendMessage(msg *capnp.Message) error { return t.enc.Encode(msg) }

func (t *StreamTransport) RecvMessage() (*capnp.Message, error) { return t.dec.Decode() }

func (t *StreamTransport) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
