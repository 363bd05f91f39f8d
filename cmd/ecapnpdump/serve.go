package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/kwohlfahrt/ecapnp/flowcontrol"
	"github.com/kwohlfahrt/ecapnp/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveMessage string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Drive a loopback RPC exchange: bootstrap an echo capability and call it once",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMessage, "message", "hello, vat", "text to send to the loopback echo capability")
}

// echoObject is the bootstrap capability serve exposes: its one
// method returns its argument struct unmodified, the simplest
// possible exercise of the Call/Return round trip.
type echoObject struct{}

func (echoObject) Call(ctx context.Context, interfaceID uint64, methodID uint16, params capnp.Ptr) (capnp.Ptr, error) {
	return params, nil
}

var echoArgsSize = capnp.ObjectSize{PointerCount: 1}

func runServe(cmd *cobra.Command, args []string) error {
	serverSide, clientSide := net.Pipe()

	var limiter flowcontrol.FlowLimiter = flowcontrol.NopLimiter()
	if cfg.FlowLimitBytes > 0 {
		limiter = flowcontrol.NewFixedLimiter(cfg.FlowLimitBytes)
	}

	server := rpc.NewConn(rpc.NewStreamTransport(serverSide), rpc.Options{
		Bootstrap:     echoObject{},
		ErrorReporter: rpc.LogReporter{Log: logrus.StandardLogger()},
		PeerName:      "client",
	})
	defer server.Close()

	client := rpc.NewConn(rpc.NewStreamTransport(clientSide), rpc.Options{
		ErrorReporter: rpc.LogReporter{Log: logrus.StandardLogger()},
		FlowLimiter:   limiter,
		PeerName:      "server",
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bs, err := client.Bootstrap(ctx).Wait(ctx)
	if err != nil {
		return errors.Wrap(err, "bootstrap")
	}
	cap := bs.Interface().Capability()
	if cap == nil {
		return errors.New("bootstrap: peer returned no capability")
	}

	result := client.Call(ctx, cap, 0, 0, echoArgsSize, func(s capnp.Struct) error {
		txt, err := capnp.NewText(s.Segment(), serveMessage)
		if err != nil {
			return err
		}
		return s.SetPtr(0, txt)
	})

	v, err := result.Wait(ctx)
	if err != nil {
		return errors.Wrap(err, "call")
	}
	reply, err := v.Struct().Ptr(0)
	if err != nil {
		return errors.Wrap(err, "read reply")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "echo: %s\n", reply.Text())
	return nil
}
