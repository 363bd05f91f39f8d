package rpc

import (
	"context"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/kwohlfahrt/ecapnp/exc"
)

// Call invokes a method on cap, dispatching locally or sending a wire
// Call depending on what cap denotes. It is the single entry point
// every capability invocation in this vat goes through, whether the
// caller is application code or a pipelined call arriving from the
// peer.
func (c *Conn) Call(ctx context.Context, cap capnp.Capability, interfaceID uint64, methodID uint16, argsSize capnp.ObjectSize, placeArgs func(capnp.Struct) error) *capnp.Promise {
	switch v := cap.(type) {
	case capnp.LocalCapability:
		return c.callLocal(ctx, v.Object, interfaceID, methodID, argsSize, placeArgs)
	case capnp.ExportedCapability:
		c.mu.Lock()
		e := c.exports[v.ID]
		c.mu.Unlock()
		if e == nil {
			p := capnp.NewPromise()
			p.Break(rpcerr.Failedf("call: export %d no longer exists", v.ID))
			return p
		}
		return c.Call(ctx, e.cap, interfaceID, methodID, argsSize, placeArgs)
	case capnp.RemoteCapability:
		if v.Vat != c.peer {
			p := capnp.NewPromise()
			p.Break(rpcerr.Failedf("call: capability belongs to a different vat"))
			return p
		}
		c.mu.Lock()
		remoteID := c.remoteExportID(ImportID(v.ID))
		c.mu.Unlock()
		return c.call(ctx, interfaceID, methodID, argsSize, func(t MessageTarget) error {
			t.SetImportedCap(remoteID)
			return nil
		}, placeArgs)
	case capnp.PromiseCapability:
		if v.Variant != capnp.PromiseAnswer {
			p := capnp.NewPromise()
			p.Break(rpcerr.Failedf("call: capability has not resolved"))
			return p
		}
		return c.call(ctx, interfaceID, methodID, argsSize, func(t MessageTarget) error {
			_, err := t.SetPromisedAnswer(v.ID, v.Transform)
			return err
		}, placeArgs)
	default:
		p := capnp.NewPromise()
		p.Break(rpcerr.Failedf("call: unknown capability kind"))
		return p
	}
}

func (c *Conn) callLocal(ctx context.Context, obj capnp.LocalObject, interfaceID uint64, methodID uint16, argsSize capnp.ObjectSize, placeArgs func(capnp.Struct) error) *capnp.Promise {
	p := capnp.NewPromise()
	arena := capnp.SingleSegment(nil)
	msg, seg, err := capnp.NewMessage(arena)
	if err != nil {
		p.Break(err)
		return p
	}
	args, err := capnp.NewRootStruct(msg, argsSize)
	if err != nil {
		p.Break(err)
		return p
	}
	if placeArgs != nil {
		if err := placeArgs(args); err != nil {
			p.Break(err)
			return p
		}
	}
	result, err := obj.Call(ctx, interfaceID, methodID, args.ToPtr())
	_, _ = seg, result
	if err != nil {
		p.Break(err)
		return p
	}
	p.Fulfill(result)
	return p
}

// handleCall dispatches an inbound Call: resolves its target to a
// Capability this vat can invoke, then either runs it immediately (a
// bootstrap/export target) or defers it until the target answer
// resolves (a promisedAnswer target, i.e. a pipelined call).
func (c *Conn) handleCall(call Call) {
	answerID := AnswerID(call.QuestionID())
	c.mu.Lock()
	a := c.newAnswer(answerID)
	c.mu.Unlock()

	target, err := call.Target()
	if err != nil {
		c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
		return
	}
	params, err := call.Params()
	if err != nil {
		c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
		return
	}
	content, err := params.Content()
	if err != nil {
		c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
		return
	}
	if msg := content.Message(); msg != nil {
		c.mu.Lock()
		err = c.readPayloadCapTable(params, msg)
		c.mu.Unlock()
		if err != nil {
			c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
			return
		}
	}

	interfaceID, methodID := call.InterfaceID(), call.MethodID()

	switch target.Which() {
	case TargetImportedCap:
		c.mu.Lock()
		e := c.exports[ExportID(target.ImportedCap())]
		c.mu.Unlock()
		if e == nil {
			c.failAnswer(a, rpcerr.Failedf("handle call: no such export"))
			return
		}
		result := c.Call(c.bgctx, e.cap, interfaceID, methodID, content.Struct().Size(), func(s capnp.Struct) error {
			return copyArgsInto(s, content)
		})
		result.OnResolve(func(v capnp.Ptr, err error) { c.finishAnswer(a, v, err) })
	case TargetPromisedAnswer:
		pa, err := target.PromisedAnswer()
		if err != nil {
			c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
			return
		}
		ops, err := pa.Transform()
		if err != nil {
			c.failAnswer(a, rpcerr.Annotatef(err, "handle call"))
			return
		}
		c.mu.Lock()
		target := c.answers[AnswerID(pa.QuestionID())]
		c.mu.Unlock()
		if target == nil {
			c.failAnswer(a, rpcerr.Failedf("handle call: no such pipelined answer"))
			return
		}
		target.promise.OnResolve(func(v capnp.Ptr, err error) {
			if err != nil {
				c.finishAnswer(a, capnp.Ptr{}, err)
				return
			}
			tv, err := capnp.Transform(v, ops)
			if err != nil {
				c.finishAnswer(a, capnp.Ptr{}, err)
				return
			}
			cap := tv.Interface().Capability()
			result := c.Call(c.bgctx, cap, interfaceID, methodID, content.Struct().Size(), func(s capnp.Struct) error {
				return copyArgsInto(s, content)
			})
			result.OnResolve(func(v capnp.Ptr, err error) { c.finishAnswer(a, v, err) })
		})
	default:
		c.failAnswer(a, rpcerr.Failedf("handle call: unknown target kind"))
	}
}

func copyArgsInto(dst capnp.Struct, src capnp.Ptr) error {
	s := src.Struct()
	if !s.IsValid() {
		return nil
	}
	for off := capnp.DataOffset(0); capnp.Size(off) < s.Size().DataSize; off += 8 {
		dst.SetUint64(off, s.Uint64(off))
	}
	for i := uint16(0); i < s.Size().PointerCount; i++ {
		p, err := s.Ptr(i)
		if err != nil {
			return err
		}
		if err := dst.SetPtr(i, p); err != nil {
			return err
		}
	}
	return nil
}

// failAnswer settles a's promise with err and sends an exception
// Return to the peer.
func (c *Conn) failAnswer(a *answer, err error) {
	a.promise.Break(err)
	c.sendReturn(a, capnp.Ptr{}, err)
}

// finishAnswer settles a's promise with v and sends the Return
// carrying it (or the error, as an exception).
func (c *Conn) finishAnswer(a *answer, v capnp.Ptr, err error) {
	if err != nil {
		a.promise.Break(err)
	} else {
		a.promise.Fulfill(v)
	}
	c.sendReturn(a, v, err)
}

func (c *Conn) sendReturn(a *answer, v capnp.Ptr, callErr error) {
	m, outer, err := c.newOutgoingMessage(WhichReturn)
	if err != nil {
		c.er.ReportError(err)
		return
	}
	ret, err := m.NewReturn()
	if err != nil {
		c.er.ReportError(err)
		return
	}
	ret.SetAnswerID(uint32(a.id))

	if callErr != nil {
		if err := ret.SetException(uint16(excType(callErr)), callErr.Error()); err != nil {
			c.er.ReportError(err)
			return
		}
	} else {
		payload, err := ret.NewResults()
		if err != nil {
			c.er.ReportError(err)
			return
		}
		dst, err := capnp.Copy(payload.Segment(), v)
		if err != nil {
			c.er.ReportError(err)
			return
		}
		if err := payload.SetContent(dst); err != nil {
			c.er.ReportError(err)
			return
		}
		c.mu.Lock()
		refs, err := c.fillPayloadCapTable(payload)
		c.mu.Unlock()
		if err != nil {
			c.er.ReportError(err)
		}
		a.exportRefs = refs
	}

	c.mu.Lock()
	a.returnSent = true
	a.maybeDestroy()
	c.mu.Unlock()

	if err := c.sendMessage(c.bgctx, outer); err != nil {
		c.er.ReportError(rpcerr.Annotatef(err, "send return"))
	}
}

// excType maps a Go error to the wire Exception.Type value sent in a
// Return's exception field, via the same Type tag exc.Exception
// carries internally.
func excType(err error) int {
	return int(exc.TypeOf(err))
}

// handleReturn routes a Return to the question it answers.
func (c *Conn) handleReturn(ret Return) {
	c.mu.Lock()
	id := QuestionID(ret.AnswerID())
	var q *question
	if int(id) < len(c.questions) {
		q = c.questions[id]
	}
	c.mu.Unlock()
	if q == nil {
		return
	}

	if ret.IsException() {
		ex, err := ret.Exception()
		if err != nil {
			q.p.Break(rpcerr.Annotatef(err, "handle return"))
			return
		}
		reason, _ := ex.Reason()
		q.p.Break(rpcerr.Failedf("%s", reason))
		return
	}

	payload, err := ret.Results()
	if err != nil {
		q.p.Break(rpcerr.Annotatef(err, "handle return"))
		return
	}
	content, err := payload.Content()
	if err != nil {
		q.p.Break(rpcerr.Annotatef(err, "handle return"))
		return
	}
	if msg := content.Message(); msg != nil {
		c.mu.Lock()
		err = c.readPayloadCapTable(payload, msg)
		c.mu.Unlock()
		if err != nil {
			q.p.Break(rpcerr.Annotatef(err, "handle return"))
			return
		}
	}
	q.p.Fulfill(content)
}

// handleFinish releases the answer the peer is done with.
func (c *Conn) handleFinish(fin Finish) {
	c.mu.Lock()
	a := c.answers[AnswerID(fin.QuestionID())]
	if a == nil {
		c.mu.Unlock()
		return
	}
	a.finishReceived = true
	a.releaseOnFinish = fin.ReleaseResultCaps()
	a.maybeDestroy()
	c.mu.Unlock()
}

// handleRelease drops references to one of this vat's exports.
func (c *Conn) handleRelease(rel Release) {
	c.mu.Lock()
	c.releaseExport(ExportID(rel.ID()), rel.ReferenceCount())
	c.mu.Unlock()
}

// handleBootstrap answers a Bootstrap request with this vat's
// configured bootstrap capability.
func (c *Conn) handleBootstrap(bs Bootstrap) {
	id := AnswerID(bs.QuestionID())
	c.mu.Lock()
	a := c.newAnswer(id)
	c.mu.Unlock()

	if c.bootstrap == nil {
		c.failAnswer(a, rpcerr.Unimplementedf("bootstrap: no capability exported"))
		return
	}

	arena := capnp.SingleSegment(nil)
	msg, seg, err := capnp.NewMessage(arena)
	if err != nil {
		c.failAnswer(a, err)
		return
	}
	iface := capnp.NewInterface(seg, capnp.LocalCapability{Object: c.bootstrap})
	if err := msg.SetRoot(iface.ToPtr()); err != nil {
		c.failAnswer(a, err)
		return
	}
	c.finishAnswer(a, iface.ToPtr(), nil)
}
