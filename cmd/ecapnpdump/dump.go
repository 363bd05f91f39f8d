package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var dumpInPath string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Decode a serialized message and print its root pointer's structure",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpInPath, "in", "-", "path to a framed Cap'n Proto message, or - for stdin")
}

func runDump(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if dumpInPath != "-" {
		f, err := os.Open(dumpInPath)
		if err != nil {
			return errors.Wrapf(err, "open %q", dumpInPath)
		}
		defer f.Close()
		r = f
	}

	msg, err := capnp.NewDecoder(r).Decode()
	if err != nil {
		return errors.Wrap(err, "decode message")
	}
	msg.TraverseLimit = cfg.TraverseLimit
	msg.DepthLimit = cfg.DepthLimit

	root, err := msg.Root()
	if err != nil {
		return errors.Wrap(err, "read root")
	}
	return printPtr(cmd.OutOrStdout(), root)
}

func printPtr(w io.Writer, p capnp.Ptr) error {
	if !p.IsValid() {
		fmt.Fprintln(w, "root: (null)")
		return nil
	}
	fmt.Fprintf(w, "root: %#v\n", p)
	if s := p.Struct(); s.IsValid() {
		sz := s.Size()
		fmt.Fprintf(w, "  struct: data=%s pointers=%d\n", sz.DataSize, sz.PointerCount)
		return nil
	}
	if l := p.List(); l.IsValid() {
		fmt.Fprintf(w, "  list: len=%d\n", l.Len())
		return nil
	}
	if i := p.Interface(); i.IsValid() {
		fmt.Fprintf(w, "  interface: capability id=%d\n", i.CapabilityID())
		return nil
	}
	return nil
}
