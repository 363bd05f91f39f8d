package capnp

import (
	"github.com/kwohlfahrt/ecapnp/internal/strquote"
)

// NewText allocates a new Text value in s's message and returns the
// pointer to it. Text is a 1-byte list carrying v's UTF-8 bytes
// followed by a trailing NUL, which is excluded from the logical
// string but required on the wire.
func NewText(s *Segment, v string) (Ptr, error) {
	l, err := NewList(s, ObjectSize{DataSize: 1}, int32(len(v))+1)
	if err != nil {
		return Ptr{}, annotatef(err, "new text")
	}
	b := l.seg.slice(l.off, Size(len(v)+1))
	copy(b, v)
	b[len(v)] = 0
	return l.ToPtr(), nil
}

// NewData allocates a new Data value in s's message. Unlike Text,
// Data carries no implicit trailing NUL.
func NewData(s *Segment, v []byte) (Ptr, error) {
	l, err := NewList(s, ObjectSize{DataSize: 1}, int32(len(v)))
	if err != nil {
		return Ptr{}, annotatef(err, "new data")
	}
	copy(l.seg.slice(l.off, Size(len(v))), v)
	return l.ToPtr(), nil
}

// textGoString quotes a Text pointer's bytes for debug output as a
// Cap'n Proto string literal (see internal/strquote).
func textGoString(p Ptr) string {
	b, ok := p.text()
	if !ok {
		return "<not text>"
	}
	return string(strquote.Append(nil, b))
}
