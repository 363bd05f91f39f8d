package rpc

import (
	"github.com/kwohlfahrt/ecapnp"
)

// MessageWhich identifies which variant of the RPC protocol's message
// union a Message carries, mirroring rpc.capnp's Message union
// discriminant values.
type MessageWhich uint16

const (
	WhichUnimplemented MessageWhich = 0
	WhichAbort         MessageWhich = 1
	WhichBootstrap     MessageWhich = 8
	WhichCall          MessageWhich = 2
	WhichReturn        MessageWhich = 3
	WhichFinish        MessageWhich = 4
	WhichResolve       MessageWhich = 5
	WhichRelease       MessageWhich = 6
)

func (w MessageWhich) String() string {
	switch w {
	case WhichUnimplemented:
		return "unimplemented"
	case WhichAbort:
		return "abort"
	case WhichBootstrap:
		return "bootstrap"
	case WhichCall:
		return "call"
	case WhichReturn:
		return "return"
	case WhichFinish:
		return "finish"
	case WhichResolve:
		return "resolve"
	case WhichRelease:
		return "release"
	default:
		return "unknown"
	}
}

// message layout: data word 0 holds the discriminant in its first two
// bytes; pointer 0 holds the active variant's body. Every variant
// below is itself an ordinary struct living under that one pointer,
// the same encoding rpc.capnp's anonymous union gives each case.
var messageLayout = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

// Message is one frame of the RPC protocol: a discriminated union
// over the eight message kinds a Conn exchanges with its peer.
type Message struct {
	s capnp.Struct
}

// NewMessage allocates an empty Message of kind which in s.
func NewMessage(s *capnp.Segment, which MessageWhich) (Message, error) {
	st, err := capnp.NewStruct(s, messageLayout)
	if err != nil {
		return Message{}, err
	}
	st.SetUint16(0, uint16(which))
	return Message{s: st}, nil
}

// Which returns the message's discriminant.
func (m Message) Which() MessageWhich { return MessageWhich(m.s.Uint16(0)) }

// IsValid reports whether m wraps a non-null struct.
func (m Message) IsValid() bool { return m.s.IsValid() }

func (m Message) body() (capnp.Ptr, error) { return m.s.Ptr(0) }

func (m Message) setBody(st capnp.Struct) error { return m.s.SetPtr(0, st.ToPtr()) }

// ToPtr returns the pointer to the message, for framing as a
// top-level capnp.Message root.
func (m Message) ToPtr() capnp.Ptr { return m.s.ToPtr() }

// ReadMessage reinterprets p (typically a Message's root pointer) as
// an RPC Message.
func ReadMessage(p capnp.Ptr) (Message, error) {
	st := p.Struct()
	return Message{s: st}, nil
}

// Call returns the message's Call body. It only reads; NewCall
// allocates a body.
func (m Message) Call() (Call, error) {
	p, err := m.body()
	if err != nil {
		return Call{}, err
	}
	st := p.Struct()
	return Call{s: st}, nil
}

// NewCall allocates a Call body for m and returns it.
func (m Message) NewCall() (Call, error) {
	st, err := capnp.NewStruct(m.s.Segment(), callLayout)
	if err != nil {
		return Call{}, err
	}
	if err := m.setBody(st); err != nil {
		return Call{}, err
	}
	return Call{s: st}, nil
}

func (m Message) Return() (Return, error) {
	p, err := m.body()
	if err != nil {
		return Return{}, err
	}
	st := p.Struct()
	return Return{s: st}, nil
}

func (m Message) NewReturn() (Return, error) {
	st, err := capnp.NewStruct(m.s.Segment(), returnLayout)
	if err != nil {
		return Return{}, err
	}
	if err := m.setBody(st); err != nil {
		return Return{}, err
	}
	return Return{s: st}, nil
}

func (m Message) Finish() (Finish, error) {
	p, err := m.body()
	if err != nil {
		return Finish{}, err
	}
	st := p.Struct()
	return Finish{s: st}, nil
}

func (m Message) NewFinish() (Finish, error) {
	st, err := capnp.NewStruct(m.s.Segment(), finishLayout)
	if err != nil {
		return Finish{}, err
	}
	if err := m.setBody(st); err != nil {
		return Finish{}, err
	}
	return Finish{s: st}, nil
}

func (m Message) Release() (Release, error) {
	p, err := m.body()
	if err != nil {
		return Release{}, err
	}
	st := p.Struct()
	return Release{s: st}, nil
}

func (m Message) NewRelease() (Release, error) {
	st, err := capnp.NewStruct(m.s.Segment(), releaseLayout)
	if err != nil {
		return Release{}, err
	}
	if err := m.setBody(st); err != nil {
		return Release{}, err
	}
	return Release{s: st}, nil
}

func (m Message) Bootstrap() (Bootstrap, error) {
	p, err := m.body()
	if err != nil {
		return Bootstrap{}, err
	}
	st := p.Struct()
	return Bootstrap{s: st}, nil
}

func (m Message) NewBootstrap() (Bootstrap, error) {
	st, err := capnp.NewStruct(m.s.Segment(), bootstrapLayout)
	if err != nil {
		return Bootstrap{}, err
	}
	if err := m.setBody(st); err != nil {
		return Bootstrap{}, err
	}
	return Bootstrap{s: st}, nil
}

func (m Message) Resolve() (Resolve, error) {
	p, err := m.body()
	if err != nil {
		return Resolve{}, err
	}
	st := p.Struct()
	return Resolve{s: st}, nil
}

func (m Message) NewResolve() (Resolve, error) {
	st, err := capnp.NewStruct(m.s.Segment(), resolveLayout)
	if err != nil {
		return Resolve{}, err
	}
	if err := m.setBody(st); err != nil {
		return Resolve{}, err
	}
	return Resolve{s: st}, nil
}

func (m Message) Abort() (Abort, error) {
	p, err := m.body()
	if err != nil {
		return Abort{}, err
	}
	st := p.Struct()
	return Abort{s: st}, nil
}

func (m Message) NewAbort() (Abort, error) {
	st, err := capnp.NewStruct(m.s.Segment(), abortLayout)
	if err != nil {
		return Abort{}, err
	}
	if err := m.setBody(st); err != nil {
		return Abort{}, err
	}
	return Abort{s: st}, nil
}

// Unimplemented returns the copy of the unhandled message m carries.
func (m Message) Unimplemented() (Message, error) {
	p, err := m.body()
	if err != nil {
		return Message{}, err
	}
	st := p.Struct()
	return Message{s: st}, nil
}

// SetUnimplemented embeds a copy of orig as m's body.
func (m Message) SetUnimplemented(orig Message) error {
	return m.s.SetPtr(0, orig.s.ToPtr())
}

// MessageTargetWhich selects whether a Call addresses an already-
// exported capability or a not-yet-resolved answer's eventual result.
type MessageTargetWhich uint16

const (
	TargetImportedCap     MessageTargetWhich = 0
	TargetPromisedAnswer  MessageTargetWhich = 1
)

var (
	callLayout          = capnp.ObjectSize{DataSize: 24, PointerCount: 2}
	returnLayout        = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
	finishLayout        = capnp.ObjectSize{DataSize: 8, PointerCount: 0}
	releaseLayout       = capnp.ObjectSize{DataSize: 8, PointerCount: 0}
	bootstrapLayout     = capnp.ObjectSize{DataSize: 8, PointerCount: 0}
	resolveLayout       = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
	abortLayout         = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
	payloadLayout       = capnp.ObjectSize{DataSize: 0, PointerCount: 2}
	capDescriptorLayout = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
	messageTargetLayout = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
	promisedAnswerLayout = capnp.ObjectSize{DataSize: 4, PointerCount: 1}
	exceptionLayout     = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
)

// Call is an outstanding method invocation: which capability and
// method, the argument struct and its cap table.
type Call struct{ s capnp.Struct }

func (c Call) QuestionID() uint32     { return c.s.Uint32(0) }
func (c Call) SetQuestionID(id uint32) { c.s.SetUint32(0, id) }
func (c Call) InterfaceID() uint64    { return c.s.Uint64(8) }
func (c Call) SetInterfaceID(id uint64) { c.s.SetUint64(8, id) }
func (c Call) MethodID() uint16       { return c.s.Uint16(16) }
func (c Call) SetMethodID(id uint16)  { c.s.SetUint16(16, id) }

func (c Call) Target() (MessageTarget, error) {
	p, err := c.s.Ptr(0)
	if err != nil {
		return MessageTarget{}, err
	}
	st := p.Struct()
	return MessageTarget{s: st}, nil
}

func (c Call) NewTarget() (MessageTarget, error) {
	st, err := capnp.NewStruct(c.s.Segment(), messageTargetLayout)
	if err != nil {
		return MessageTarget{}, err
	}
	if err := c.s.SetPtr(0, st.ToPtr()); err != nil {
		return MessageTarget{}, err
	}
	return MessageTarget{s: st}, nil
}

func (c Call) Params() (Payload, error) {
	p, err := c.s.Ptr(1)
	if err != nil {
		return Payload{}, err
	}
	st := p.Struct()
	return Payload{s: st}, nil
}

func (c Call) NewParams() (Payload, error) {
	st, err := capnp.NewStruct(c.s.Segment(), payloadLayout)
	if err != nil {
		return Payload{}, err
	}
	if err := c.s.SetPtr(1, st.ToPtr()); err != nil {
		return Payload{}, err
	}
	return Payload{s: st}, nil
}

// MessageTarget names what a Call addresses.
type MessageTarget struct{ s capnp.Struct }

func (t MessageTarget) Which() MessageTargetWhich { return MessageTargetWhich(t.s.Uint16(0)) }

func (t MessageTarget) ImportedCap() uint32 { return t.s.Uint32(4) }

func (t MessageTarget) SetImportedCap(id uint32) {
	t.s.SetUint16(0, uint16(TargetImportedCap))
	t.s.SetUint32(4, id)
}

func (t MessageTarget) PromisedAnswer() (PromisedAnswer, error) {
	p, err := t.s.Ptr(0)
	if err != nil {
		return PromisedAnswer{}, err
	}
	st := p.Struct()
	return PromisedAnswer{s: st}, nil
}

func (t MessageTarget) SetPromisedAnswer(questionID uint32, ops []capnp.PipelineOp) (PromisedAnswer, error) {
	t.s.SetUint16(0, uint16(TargetPromisedAnswer))
	st, err := capnp.NewStruct(t.s.Segment(), promisedAnswerLayout)
	if err != nil {
		return PromisedAnswer{}, err
	}
	pa := PromisedAnswer{s: st}
	pa.SetQuestionID(questionID)
	if err := pa.SetTransform(ops); err != nil {
		return PromisedAnswer{}, err
	}
	if err := t.s.SetPtr(0, st.ToPtr()); err != nil {
		return PromisedAnswer{}, err
	}
	return pa, nil
}

// PromisedAnswer names a not-yet-resolved answer and, optionally, the
// pointer path into its eventual result — the wire form of a
// capnp.PipelineOp chain.
type PromisedAnswer struct{ s capnp.Struct }

func (pa PromisedAnswer) QuestionID() uint32      { return pa.s.Uint32(0) }
func (pa PromisedAnswer) SetQuestionID(id uint32) { pa.s.SetUint32(0, id) }

func (pa PromisedAnswer) Transform() ([]capnp.PipelineOp, error) {
	p, err := pa.s.Ptr(0)
	if err != nil {
		return nil, err
	}
	if !p.IsValid() {
		return nil, nil
	}
	l := p.List()
	ops := make([]capnp.PipelineOp, l.Len())
	for i := range ops {
		ops[i] = capnp.PipelineOp{PointerIndex: l.Uint16At(i)}
	}
	return ops, nil
}

func (pa PromisedAnswer) SetTransform(ops []capnp.PipelineOp) error {
	l, err := capnp.NewUint16List(pa.s.Segment(), int32(len(ops)))
	if err != nil {
		return err
	}
	for i, op := range ops {
		l.SetUint16At(i, op.PointerIndex)
	}
	return pa.s.SetPtr(0, l.ToPtr())
}

// Payload carries an application-level value plus the descriptors of
// any capabilities reachable from it, the unit Call params and Return
// results travel as.
type Payload struct{ s capnp.Struct }

// Segment returns the segment p's struct lives on, the segment new
// content placed in this payload should be allocated from.
func (p Payload) Segment() *capnp.Segment { return p.s.Segment() }

func (p Payload) Content() (capnp.Ptr, error) { return p.s.Ptr(0) }

func (p Payload) SetContent(v capnp.Ptr) error { return p.s.SetPtr(0, v) }

func (p Payload) CapTable() (CapDescriptorList, error) {
	ptr, err := p.s.Ptr(1)
	if err != nil {
		return CapDescriptorList{}, err
	}
	l := ptr.List()
	return CapDescriptorList{l}, nil
}

func (p Payload) NewCapTable(n int32) (CapDescriptorList, error) {
	l, err := capnp.NewCompositeList(p.s.Segment(), capDescriptorLayout, n)
	if err != nil {
		return CapDescriptorList{}, err
	}
	if err := p.s.SetPtr(1, l.ToPtr()); err != nil {
		return CapDescriptorList{}, err
	}
	return CapDescriptorList{l}, nil
}

// CapDescriptorList is a list of CapDescriptor structs.
type CapDescriptorList struct{ l capnp.List }

func (l CapDescriptorList) Len() int { return l.l.Len() }

func (l CapDescriptorList) At(i int) CapDescriptor { return CapDescriptor{s: l.l.Struct(i)} }

// CapDescriptorWhich selects how a capability crossing the wire is
// described: one the sender hosts, a promise the sender resolves
// later, one the receiver itself hosts, or a not-yet-returned
// answer's eventual capability.
type CapDescriptorWhich uint16

const (
	DescNone           CapDescriptorWhich = 0
	DescSenderHosted   CapDescriptorWhich = 1
	DescSenderPromise  CapDescriptorWhich = 2
	DescReceiverHosted CapDescriptorWhich = 3
	DescReceiverAnswer CapDescriptorWhich = 4
)

// CapDescriptor is one entry of a Payload's cap table.
type CapDescriptor struct{ s capnp.Struct }

func (d CapDescriptor) Which() CapDescriptorWhich { return CapDescriptorWhich(d.s.Uint16(0)) }

func (d CapDescriptor) ID() uint32 { return d.s.Uint32(4) }

func (d CapDescriptor) SetSenderHosted(id uint32) {
	d.s.SetUint16(0, uint16(DescSenderHosted))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) SetSenderPromise(id uint32) {
	d.s.SetUint16(0, uint16(DescSenderPromise))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) SetReceiverHosted(id uint32) {
	d.s.SetUint16(0, uint16(DescReceiverHosted))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) ReceiverAnswer() (PromisedAnswer, error) {
	p, err := d.s.Ptr(0)
	if err != nil {
		return PromisedAnswer{}, err
	}
	st := p.Struct()
	return PromisedAnswer{s: st}, nil
}

func (d CapDescriptor) SetReceiverAnswer(questionID uint32, ops []capnp.PipelineOp) error {
	d.s.SetUint16(0, uint16(DescReceiverAnswer))
	st, err := capnp.NewStruct(d.s.Segment(), promisedAnswerLayout)
	if err != nil {
		return err
	}
	pa := PromisedAnswer{s: st}
	pa.SetQuestionID(questionID)
	if err := pa.SetTransform(ops); err != nil {
		return err
	}
	return d.s.SetPtr(0, st.ToPtr())
}

// Return carries back either a call's results or the exception that
// aborted it.
type Return struct{ s capnp.Struct }

const (
	returnResults   uint16 = 0
	returnException uint16 = 1
)

func (r Return) AnswerID() uint32      { return r.s.Uint32(0) }
func (r Return) SetAnswerID(id uint32) { r.s.SetUint32(0, id) }

func (r Return) ReleaseParamCaps() bool    { return r.s.Bit(capnp.BitOffset(32)) }
func (r Return) SetReleaseParamCaps(v bool) { r.s.SetBit(capnp.BitOffset(32), v) }

func (r Return) IsException() bool { return r.s.Uint16(6) == returnException }

func (r Return) Results() (Payload, error) {
	p, err := r.s.Ptr(0)
	if err != nil {
		return Payload{}, err
	}
	st := p.Struct()
	return Payload{s: st}, nil
}

func (r Return) NewResults() (Payload, error) {
	r.s.SetUint16(6, returnResults)
	st, err := capnp.NewStruct(r.s.Segment(), payloadLayout)
	if err != nil {
		return Payload{}, err
	}
	if err := r.s.SetPtr(0, st.ToPtr()); err != nil {
		return Payload{}, err
	}
	return Payload{s: st}, nil
}

func (r Return) Exception() (Exception, error) {
	p, err := r.s.Ptr(0)
	if err != nil {
		return Exception{}, err
	}
	st := p.Struct()
	return Exception{s: st}, nil
}

func (r Return) SetException(excType uint16, reason string) error {
	r.s.SetUint16(6, returnException)
	st, err := capnp.NewStruct(r.s.Segment(), exceptionLayout)
	if err != nil {
		return err
	}
	ex := Exception{s: st}
	ex.SetType(excType)
	if err := ex.SetReason(reason); err != nil {
		return err
	}
	return r.s.SetPtr(0, st.ToPtr())
}

// Exception is the wire form of a failed call: a coarse type code
// plus a human-readable reason, mirroring exc.Exception's fields.
type Exception struct{ s capnp.Struct }

func (e Exception) Type() uint16      { return e.s.Uint16(0) }
func (e Exception) SetType(t uint16)  { e.s.SetUint16(0, t) }

func (e Exception) Reason() (string, error) {
	p, err := e.s.Ptr(0)
	if err != nil {
		return "", err
	}
	return p.TextDefault(""), nil
}

func (e Exception) SetReason(s string) error {
	t, err := capnp.NewText(e.s.Segment(), s)
	if err != nil {
		return err
	}
	return e.s.SetPtr(0, t)
}

// Finish releases a question: the caller is done waiting on it and,
// unless ReleaseResultCaps is false, wants its result capabilities
// dropped too.
type Finish struct{ s capnp.Struct }

func (f Finish) QuestionID() uint32      { return f.s.Uint32(0) }
func (f Finish) SetQuestionID(id uint32) { f.s.SetUint32(0, id) }

func (f Finish) ReleaseResultCaps() bool     { return f.s.Bit(capnp.BitOffset(32)) }
func (f Finish) SetReleaseResultCaps(v bool) { f.s.SetBit(capnp.BitOffset(32), v) }

// Release drops ReferenceCount references to an imported capability.
type Release struct{ s capnp.Struct }

func (r Release) ID() uint32      { return r.s.Uint32(0) }
func (r Release) SetID(id uint32) { r.s.SetUint32(0, id) }

func (r Release) ReferenceCount() uint32      { return r.s.Uint32(4) }
func (r Release) SetReferenceCount(n uint32)  { r.s.SetUint32(4, n) }

// Bootstrap asks the peer for its bootstrap capability.
type Bootstrap struct{ s capnp.Struct }

func (b Bootstrap) QuestionID() uint32      { return b.s.Uint32(0) }
func (b Bootstrap) SetQuestionID(id uint32) { b.s.SetUint32(0, id) }

// ResolveWhich selects whether a Resolve carries the capability a
// promise settled to, or the exception that broke it.
type ResolveWhich uint16

const (
	ResolveCap       ResolveWhich = 0
	ResolveException ResolveWhich = 1
)

// Resolve announces what a previously-sent promise capability
// resolved to.
type Resolve struct{ s capnp.Struct }

func (r Resolve) PromiseID() uint32      { return r.s.Uint32(0) }
func (r Resolve) SetPromiseID(id uint32) { r.s.SetUint32(0, id) }

func (r Resolve) Which() ResolveWhich { return ResolveWhich(r.s.Uint16(4)) }

func (r Resolve) Cap() (CapDescriptor, error) {
	p, err := r.s.Ptr(0)
	if err != nil {
		return CapDescriptor{}, err
	}
	st := p.Struct()
	return CapDescriptor{s: st}, nil
}

func (r Resolve) NewCap() (CapDescriptor, error) {
	r.s.SetUint16(4, uint16(ResolveCap))
	st, err := capnp.NewStruct(r.s.Segment(), capDescriptorLayout)
	if err != nil {
		return CapDescriptor{}, err
	}
	if err := r.s.SetPtr(0, st.ToPtr()); err != nil {
		return CapDescriptor{}, err
	}
	return CapDescriptor{s: st}, nil
}

func (r Resolve) SetException(excType uint16, reason string) error {
	r.s.SetUint16(4, uint16(ResolveException))
	st, err := capnp.NewStruct(r.s.Segment(), exceptionLayout)
	if err != nil {
		return err
	}
	ex := Exception{s: st}
	ex.SetType(excType)
	if err := ex.SetReason(reason); err != nil {
		return err
	}
	return r.s.SetPtr(0, st.ToPtr())
}

// Abort terminates a connection unconditionally, carrying the
// exception that caused the shutdown.
type Abort struct{ s capnp.Struct }

func (a Abort) Exception() (Exception, error) {
	p, err := a.s.Ptr(0)
	if err != nil {
		return Exception{}, err
	}
	st := p.Struct()
	return Exception{s: st}, nil
}

func (a Abort) SetException(excType uint16, reason string) error {
	st, err := capnp.NewStruct(a.s.Segment(), exceptionLayout)
	if err != nil {
		return err
	}
	ex := Exception{s: st}
	ex.SetType(excType)
	if err := ex.SetReason(reason); err != nil {
		return err
	}
	return a.s.SetPtr(0, st.ToPtr())
}
