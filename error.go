package capnp

import (
	"github.com/kwohlfahrt/ecapnp/exc"
)

var capnperr = exc.Annotator("capnp")

// Failed returns an error that formats as the given text and reports
// true when passed to IsFailed. Failed is the error kind for
// ordinary application-level failures — the default kind when no
// more specific one applies.
func Failed(s string) error { return exc.New(exc.Failed, "", s) }

// IsFailed reports whether e is (or wraps) a Failed-kind error.
func IsFailed(e error) bool { return exc.TypeOf(e) == exc.Failed }

// Overloaded returns an error that formats as the given text and
// reports true when passed to IsOverloaded.
func Overloaded(s string) error { return exc.New(exc.Overloaded, "", s) }

// IsOverloaded reports whether e indicates the callee is overloaded
// and the caller should retry later or reduce its load.
func IsOverloaded(e error) bool { return exc.TypeOf(e) == exc.Overloaded }

// Unimplemented returns an error that formats as the given text and
// reports true when passed to IsUnimplemented.
func Unimplemented(s string) error { return exc.New(exc.Unimplemented, "", s) }

// IsUnimplemented reports whether e indicates that functionality is
// unimplemented.
func IsUnimplemented(e error) bool { return exc.TypeOf(e) == exc.Unimplemented }

// Disconnected returns an error that formats as the given text and
// reports true when passed to IsDisconnected.
func Disconnected(s string) error { return exc.New(exc.Disconnected, "", s) }

// IsDisconnected reports whether e indicates a failure due to loss of
// a necessary capability or connection.
func IsDisconnected(e error) bool { return exc.TypeOf(e) == exc.Disconnected }

func errorf(format string, args ...interface{}) error {
	return capnperr.Failedf(format, args...)
}

func annotatef(err error, format string, args ...interface{}) error {
	return capnperr.Annotatef(err, format, args...)
}
