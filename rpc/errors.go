package rpc

import "github.com/kwohlfahrt/ecapnp/exc"

// rpcerr annotates errors raised by this package with a "rpc" prefix,
// the way the root package's errorf/annotatef do for "capnp".
var rpcerr = exc.Annotator("rpc")

// ExcClosed is returned by operations attempted on a Conn that has
// already shut down.
var ExcClosed = exc.New(exc.Disconnected, "rpc", "connection closed")
