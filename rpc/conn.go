// Package rpc implements the Cap'n Proto RPC session layer: a vat
// that exchanges Call/Return/Finish/Release/Bootstrap/Resolve messages
// with one peer over a Transport, tracking the four bookkeeping
// tables (questions, answers, exports, imports) the protocol needs to
// keep promise pipelining and capability lifetimes straight.
package rpc

import (
	"context"
	"sync"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/kwohlfahrt/ecapnp/flowcontrol"
	"github.com/sirupsen/logrus"
)

// ErrorReporter receives errors that occur outside the scope of any
// call a client is blocked on — a malformed inbound message, a
// failure sending an async Finish — so they are not silently dropped.
type ErrorReporter interface {
	ReportError(err error)
}

// LogReporter reports errors to a logrus.FieldLogger, the way the
// rest of this module's ambient logging does.
type LogReporter struct{ Log logrus.FieldLogger }

func (r LogReporter) ReportError(err error) {
	if err == nil {
		return
	}
	r.Log.WithError(err).Error("rpc: uncaught error")
}

// vatRef is the concrete VatRef a Conn presents to the capnp package
// as the identity its RemoteCapability/ExportedCapability values are
// relative to. Two Conns are never == to each other, so comparing a
// capability's Vat field against a Conn's vatRef pointer is how this
// package checks "does this capability belong to this connection".
type vatRef struct {
	name string
}

func (v *vatRef) String() string { return v.name }

// Conn is one end of a two-party Cap'n Proto RPC session.
type Conn struct {
	transport Transport
	bootstrap capnp.LocalObject
	schema    *capnp.SchemaCache
	er        ErrorReporter
	limiter   flowcontrol.FlowLimiter
	peer      *vatRef

	sendMu sync.Mutex

	mu          sync.Mutex
	questions   []*question
	questionIDs idgen
	answers     map[AnswerID]*answer
	exports     []*expEntry
	exportIDs   idgen
	imports     map[ImportID]*impEntry
	importIDs   idgen

	bgctx  context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

// Options configures a new Conn. All fields are optional.
type Options struct {
	// Bootstrap is the capability returned to the peer's Bootstrap
	// messages. A nil Bootstrap causes such requests to fail.
	Bootstrap capnp.LocalObject
	// Schema is stored on the Conn; no code path of this package
	// reads it, so logs carry no method names.
	Schema *capnp.SchemaCache
	// ErrorReporter receives errors not otherwise delivered to a
	// caller. Defaults to a LogReporter over logrus.StandardLogger().
	ErrorReporter ErrorReporter
	// FlowLimiter bounds the message bytes being written to the
	// transport at once. Defaults to flowcontrol.NopLimiter().
	FlowLimiter flowcontrol.FlowLimiter
	// PeerName labels this Conn's peer in String()/log output.
	PeerName string
}

// NewConn creates a Conn speaking the RPC protocol over t, and starts
// its receive loop in a background goroutine. Call Close to shut it
// down.
func NewConn(t Transport, opts Options) *Conn {
	if opts.ErrorReporter == nil {
		opts.ErrorReporter = LogReporter{Log: logrus.StandardLogger()}
	}
	if opts.FlowLimiter == nil {
		opts.FlowLimiter = flowcontrol.NopLimiter()
	}
	if opts.PeerName == "" {
		opts.PeerName = "peer"
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		transport: t,
		bootstrap: opts.Bootstrap,
		schema:    opts.Schema,
		er:        opts.ErrorReporter,
		limiter:   opts.FlowLimiter,
		peer:      &vatRef{name: opts.PeerName},
		questions: []*question{},
		answers:   make(map[AnswerID]*answer),
		imports:   make(map[ImportID]*impEntry),
		bgctx:     ctx,
		cancel:    cancel,
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		c.receive()
	}()
	return c
}

// startTask reports whether the Conn is still accepting new work,
// incrementing c.tasks if so. The caller must call c.tasks.Done when
// finished. Safe to call without c.mu held.
func (c *Conn) startTask() bool {
	select {
	case <-c.bgctx.Done():
		return false
	default:
		c.tasks.Add(1)
		return true
	}
}

// Close shuts the connection down: every outstanding question is
// rejected with ExcClosed, the transport is closed (which ends the
// receive loop), Close waits for all background tasks to finish, and
// the flow limiter is released.
func (c *Conn) Close() error {
	c.shutdown(ExcClosed)
	err := c.transport.Close()
	c.tasks.Wait()
	c.limiter.Release()
	return err
}

// Done returns a channel closed once the connection has shut down,
// for callers selecting on multiple conditions alongside a pending
// call.
func (c *Conn) Done() <-chan struct{} { return c.bgctx.Done() }

func (c *Conn) shutdown(cause error) {
	c.cancel()
	c.mu.Lock()
	qs := c.questions
	c.questions = nil
	c.mu.Unlock()
	for _, q := range qs {
		if q != nil {
			q.p.Break(cause)
		}
	}
}

// sendMessage encodes and writes msg over the transport, serialized
// against concurrent senders and bounded by the flow limiter.
func (c *Conn) sendMessage(ctx context.Context, msg *capnp.Message) error {
	sz, err := msg.TotalSize()
	if err != nil {
		sz = 0
	}
	gotResponse, err := c.limiter.StartMessage(ctx, sz)
	if err != nil {
		return rpcerr.Annotatef(err, "send message")
	}
	c.sendMu.Lock()
	err = c.transport.SendMessage(msg)
	c.sendMu.Unlock()
	gotResponse()
	if err != nil {
		return rpcerr.Annotatef(err, "send message")
	}
	return nil
}

func (c *Conn) newOutgoingMessage(which MessageWhich) (Message, *capnp.Message, error) {
	arena := capnp.SingleSegment(nil)
	msg, seg, err := capnp.NewMessage(arena)
	if err != nil {
		return Message{}, nil, err
	}
	m, err := NewMessage(seg, which)
	if err != nil {
		return Message{}, nil, err
	}
	if err := msg.SetRoot(m.ToPtr()); err != nil {
		return Message{}, nil, err
	}
	return m, msg, nil
}

// receive is the Conn's inbound dispatch loop: one goroutine, for the
// lifetime of the connection, decoding and routing every message the
// peer sends.
func (c *Conn) receive() {
	for {
		msg, err := c.transport.RecvMessage()
		if err != nil {
			c.shutdown(rpcerr.Annotatef(err, "receive"))
			return
		}
		root, err := msg.Root()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "receive"))
			continue
		}
		m, err := ReadMessage(root)
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "receive"))
			continue
		}
		if !c.startTask() {
			return
		}
		go func() {
			defer c.tasks.Done()
			c.dispatch(m)
		}()
	}
}

func (c *Conn) dispatch(m Message) {
	switch m.Which() {
	case WhichCall:
		call, err := m.Call()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "dispatch call"))
			return
		}
		c.handleCall(call)
	case WhichReturn:
		ret, err := m.Return()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "dispatch return"))
			return
		}
		c.handleReturn(ret)
	case WhichFinish:
		fin, err := m.Finish()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "dispatch finish"))
			return
		}
		c.handleFinish(fin)
	case WhichRelease:
		rel, err := m.Release()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "dispatch release"))
			return
		}
		c.handleRelease(rel)
	case WhichBootstrap:
		bs, err := m.Bootstrap()
		if err != nil {
			c.er.ReportError(rpcerr.Annotatef(err, "dispatch bootstrap"))
			return
		}
		c.handleBootstrap(bs)
	case WhichAbort:
		ab, err := m.Abort()
		if err == nil {
			ex, _ := ab.Exception()
			reason, _ := ex.Reason()
			c.shutdown(rpcerr.Failedf("peer aborted: %s", reason))
		}
	case WhichResolve, WhichUnimplemented:
		// Resolve (promise settlement notifications) and graceful
		// Unimplemented replies are accepted but not required for
		// the two-party subset this vat implements.
	default:
		c.replyUnimplemented(m)
	}
}

func (c *Conn) replyUnimplemented(orig Message) {
	reply, outer, err := c.newOutgoingMessage(WhichUnimplemented)
	if err != nil {
		c.er.ReportError(err)
		return
	}
	if err := reply.SetUnimplemented(orig); err != nil {
		c.er.ReportError(err)
		return
	}
	if err := c.sendMessage(c.bgctx, outer); err != nil {
		c.er.ReportError(err)
	}
}

// Bootstrap asks the peer for its bootstrap capability, returning a
// Promise for it.
func (c *Conn) Bootstrap(ctx context.Context) *capnp.Promise {
	c.mu.Lock()
	q := c.newQuestion()
	c.mu.Unlock()

	m, outer, err := c.newOutgoingMessage(WhichBootstrap)
	if err != nil {
		q.p.Break(err)
		return q.p
	}
	bs, err := m.NewBootstrap()
	if err != nil {
		q.p.Break(err)
		return q.p
	}
	bs.SetQuestionID(uint32(q.id))

	if err := c.sendMessage(ctx, outer); err != nil {
		c.mu.Lock()
		c.finishQuestion(q)
		c.mu.Unlock()
		q.p.Break(err)
		return q.p
	}
	go q.handleCancel(ctx)
	return q.p
}
