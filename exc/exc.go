package exc

import (
	"errors"
	"fmt"
)

// Exception is an error that has crossed, or will cross, the RPC
// wire: it carries a Type tag mirroring rpc.capnp's Exception struct,
// and an optional Prefix identifying where it was raised.
type Exception struct {
	Type   Type
	Prefix string
	Cause  error
}

// Error returns the exception's message, prefixed if Prefix is set.
func (e *Exception) Error() string {
	msg := ""
	if e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Prefix == "" {
		return msg
	}
	return e.Prefix + ": " + msg
}

// Unwrap returns e.Cause, so errors.Is/As see through an Exception to
// whatever it wraps.
func (e *Exception) Unwrap() error { return e.Cause }

// TypeOf returns the Type of err, or Failed if err is nil or was
// never tagged with a Type.
func TypeOf(err error) Type {
	if err == nil {
		return Failed
	}
	var e *Exception
	if !errors.As(err, &e) {
		return Failed
	}
	return e.Type
}

// New returns an error of the given type and message, with prefix
// prepended to its Error() string if non-empty.
func New(typ Type, prefix, msg string) error {
	return &Exception{Type: typ, Prefix: prefix, Cause: errors.New(msg)}
}

// Annotate wraps err, tagging the result with typ and prepending
// prefix. Returns nil if err is nil.
func Annotate(typ Type, prefix string, err error) error {
	if err == nil {
		return nil
	}
	return &Exception{Type: typ, Prefix: prefix, Cause: err}
}

// Annotator builds and wraps errors under a fixed prefix, typically a
// package or component name.
type Annotator string

// New returns a Type-tagged error with msg, prefixed by a.
func (a Annotator) New(typ Type, msg string) error {
	return New(typ, string(a), msg)
}

// Failedf formats a Failed-type error, prefixed by a.
func (a Annotator) Failedf(format string, args ...interface{}) error {
	return a.New(Failed, fmt.Sprintf(format, args...))
}

// Unimplementedf formats an Unimplemented-type error, prefixed by a.
func (a Annotator) Unimplementedf(format string, args ...interface{}) error {
	return a.New(Unimplemented, fmt.Sprintf(format, args...))
}

// Annotate wraps err, prefixed by "a: msg". Returns nil if err is nil.
func (a Annotator) Annotate(msg string, err error) error {
	if err == nil {
		return nil
	}
	return Annotate(TypeOf(err), string(a)+": "+msg, err)
}

// Annotatef is Annotate with a formatted message.
func (a Annotator) Annotatef(err error, format string, args ...interface{}) error {
	return a.Annotate(fmt.Sprintf(format, args...), err)
}
