package rpc

import (
	"context"

	"github.com/kwohlfahrt/ecapnp"
)

// question is a Conn's record of a call it sent to its peer: the
// Promise callers wait on for the Return, and the bookkeeping needed
// to send Finish exactly once, however the wait ends.
type question struct {
	c  *Conn
	id QuestionID

	p       *capnp.Promise
	release func() // run once p settles; newQuestion sets a no-op

	// Below are protected by c.mu.
	flags         questionFlags
	finishSent    bool
	finishMsgSend chan struct{}
}

type questionFlags uint8

const (
	questionFinished questionFlags = 1 << iota
)

// newQuestion adds a new question to c's table. The caller must hold
// c.mu.
func (c *Conn) newQuestion() *question {
	q := &question{
		c:             c,
		id:            QuestionID(c.questionIDs.alloc()),
		p:             capnp.NewPromise(),
		release:       func() {},
		finishMsgSend: make(chan struct{}),
	}
	if int(q.id) == len(c.questions) {
		c.questions = append(c.questions, q)
	} else {
		c.questions[q.id] = q
	}
	return q
}

// finishQuestion marks q as needing no further bookkeeping and drops
// it from the table without sending a Finish — used when a call
// never reached the wire. The caller must hold c.mu.
func (c *Conn) finishQuestion(q *question) {
	q.flags |= questionFinished
	if int(q.id) < len(c.questions) {
		c.questions[q.id] = nil
	}
	c.questionIDs.release(uint32(q.id))
	close(q.finishMsgSend)
}

// handleCancel sends Finish once q's Promise settles or the
// connection shuts down, whichever comes first. The caller must not
// hold c.mu.
func (q *question) handleCancel(ctx context.Context) {
	var rejectErr error
	select {
	case <-ctx.Done():
		rejectErr = ctx.Err()
	case <-q.c.bgctx.Done():
		rejectErr = ExcClosed
	case <-waitSettled(q.p):
		// The Return already settled q.p; fall through to send the
		// Finish the peer's answer is waiting on, same as the
		// cancellation paths below. q.p.Break(nil) further down is a
		// no-op, since a Promise only ever settles once.
	}

	q.c.mu.Lock()
	if q.flags&questionFinished != 0 {
		q.c.mu.Unlock()
		return
	}
	q.flags |= questionFinished
	q.c.mu.Unlock()

	m, outer, err := q.c.newOutgoingMessage(WhichFinish)
	if err == nil {
		var fin Finish
		fin, err = m.NewFinish()
		if err == nil {
			fin.SetQuestionID(uint32(q.id))
			fin.SetReleaseResultCaps(true)
			err = q.c.sendMessage(q.c.bgctx, outer)
		}
	}
	if err != nil && q.c.bgctx.Err() == nil {
		q.c.er.ReportError(rpcerr.Annotatef(err, "send finish"))
	}
	close(q.finishMsgSend)
	q.p.Break(rejectErr)
	q.release()

	q.c.mu.Lock()
	if int(q.id) < len(q.c.questions) {
		q.c.questions[q.id] = nil
	}
	q.c.questionIDs.release(uint32(q.id))
	q.c.mu.Unlock()
}

// waitSettled returns a channel closed once p resolves.
func waitSettled(p *capnp.Promise) <-chan struct{} {
	done := make(chan struct{})
	p.OnResolve(func(capnp.Ptr, error) { close(done) })
	return done
}

// call sends a Call message addressing target (either ImportedCap or
// PromisedAnswer, filled in by the caller's setTarget callback),
// with an argsSize struct placeArgs fills in as the call's arguments,
// the same way a local dispatch builds its args in callLocal.
func (c *Conn) call(ctx context.Context, interfaceID uint64, methodID uint16, argsSize capnp.ObjectSize, setTarget func(MessageTarget) error, placeArgs func(capnp.Struct) error) *capnp.Promise {
	c.mu.Lock()
	if c.questions == nil {
		c.mu.Unlock()
		p := capnp.NewPromise()
		p.Break(ExcClosed)
		return p
	}
	q := c.newQuestion()
	c.mu.Unlock()

	m, outer, err := c.newOutgoingMessage(WhichCall)
	if err != nil {
		c.finishQuestionLocked(q)
		q.p.Break(err)
		return q.p
	}
	call, err := m.NewCall()
	if err == nil {
		call.SetQuestionID(uint32(q.id))
		call.SetInterfaceID(interfaceID)
		call.SetMethodID(methodID)
		var target MessageTarget
		target, err = call.NewTarget()
		if err == nil {
			err = setTarget(target)
		}
	}
	if err == nil {
		var payload Payload
		payload, err = call.NewParams()
		if err == nil {
			var args capnp.Struct
			args, err = capnp.NewStruct(payload.Segment(), argsSize)
			if err == nil && placeArgs != nil {
				err = placeArgs(args)
			}
			if err == nil {
				err = payload.SetContent(args.ToPtr())
			}
			if err == nil {
				c.mu.Lock()
				_, err = c.fillPayloadCapTable(payload)
				c.mu.Unlock()
			}
		}
	}
	if err != nil {
		c.mu.Lock()
		c.finishQuestion(q)
		c.mu.Unlock()
		q.p.Break(err)
		return q.p
	}

	if err := c.sendMessage(ctx, outer); err != nil {
		c.mu.Lock()
		c.finishQuestion(q)
		c.mu.Unlock()
		q.p.Break(rpcerr.Annotatef(err, "send call"))
		return q.p
	}
	go q.handleCancel(ctx)
	return q.p
}

func (c *Conn) finishQuestionLocked(q *question) {
	c.mu.Lock()
	c.finishQuestion(q)
	c.mu.Unlock()
}
