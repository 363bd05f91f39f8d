// Command ecapnpdump inspects serialized Cap'n Proto messages and
// can drive a loopback RPC exchange against the ecapnp library, the
// way a hand-written capnpc-go consumer would use it.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := Execute(); err != nil {
		logrus.WithError(err).Debug("ecapnpdump failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
