package capnp

import "context"

// CapabilityID indexes into a Message's capability table. It is the
// payload of an interface pointer on the wire.
type CapabilityID uint32

// VatRef identifies the peer connection a Remote or Exported
// capability is relative to. It is implemented by rpc.Conn; this
// package only needs to print and compare identity, so a minimal
// interface here avoids importing the rpc package back into capnp.
type VatRef interface {
	String() string
}

// PromiseVariant distinguishes how an unresolved capability will
// eventually resolve.
type PromiseVariant int

const (
	// PromiseAnswer resolves when a pending question's answer is
	// returned, at the given transform path into its results.
	PromiseAnswer PromiseVariant = iota
	// PromiseRemote forwards a promise the peer itself returned to
	// us; it resolves the same way PromiseAnswer does, relative to a
	// question we sent.
	PromiseRemote
	// PromiseResolve resolves via a later, explicit Resolve message
	// naming this promise's import id.
	PromiseResolve
)

func (v PromiseVariant) String() string {
	switch v {
	case PromiseAnswer:
		return "answer"
	case PromiseRemote:
		return "remote"
	case PromiseResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// LocalObject is the external collaborator a Local capability
// dispatches to: the application's implementation of a capability's
// methods. The engine never interprets interfaceID/methodID itself;
// it only routes a Call to Call.
type LocalObject interface {
	Call(ctx context.Context, interfaceID uint64, methodID uint16, params Ptr) (Ptr, error)
}

// Capability is the tagged union of capability handle kinds the vat
// reasons about: a value a caller holds, passes as a method argument,
// or stores in an Exports/Imports table entry. Every translation
// boundary — outbound cap-table fill, inbound cap-table decode, local
// pipelined dispatch — matches exhaustively over these four variants.
//
// isCapability is unexported so the union is closed to this package.
type Capability interface {
	isCapability()
}

// LocalCapability is a handle to an object implemented in this
// process.
type LocalCapability struct {
	Object LocalObject
}

func (LocalCapability) isCapability() {}

// RemoteCapability is senderHosted from the peer named by Vat: the
// peer hosts the object, addressed by an id it assigned (our import
// table key).
type RemoteCapability struct {
	ID  uint32
	Vat VatRef
}

func (RemoteCapability) isCapability() {}

// ExportedCapability is receiverHosted on the peer named by Vat: one
// of our own previously-exported objects, addressed by the export id
// we assigned, being referenced again (e.g. handed back to us as a
// call argument).
type ExportedCapability struct {
	ID  uint32
	Vat VatRef
}

func (ExportedCapability) isCapability() {}

// PromiseCapability is a capability that has not yet resolved.
// Transform names the path into the eventual result this capability
// refers to (empty for "the whole result").
type PromiseCapability struct {
	ID        uint32
	Variant   PromiseVariant
	Transform []PipelineOp
}

func (PromiseCapability) isCapability() {}

// sameCapability reports whether a and b denote the same capability
// for the purposes of Ptr.Equal's Interface case: same variant, same
// identity fields. LocalCapability compares by the LocalObject's
// identity, which requires it to be a comparable type (as podman's
// own handle types are); an incomparable LocalObject is never equal
// to another.
func sameCapability(a, b Capability) bool {
	switch a := a.(type) {
	case LocalCapability:
		b, ok := b.(LocalCapability)
		if !ok {
			return false
		}
		return sameLocalObject(a.Object, b.Object)
	case RemoteCapability:
		b, ok := b.(RemoteCapability)
		return ok && a.ID == b.ID && a.Vat == b.Vat
	case ExportedCapability:
		b, ok := b.(ExportedCapability)
		return ok && a.ID == b.ID && a.Vat == b.Vat
	case PromiseCapability:
		b, ok := b.(PromiseCapability)
		return ok && a.ID == b.ID && a.Variant == b.Variant && transformEqual(a.Transform, b.Transform)
	default:
		return false
	}
}

// SameCapabilityForExport reports whether a and b denote the same
// capability, for deduplicating a vat's exports table: exporting the
// same LocalObject (or the same already-exported/remote capability)
// twice should bump one entry's ref count rather than create a second.
func SameCapabilityForExport(a, b Capability) bool {
	return sameCapability(a, b)
}

func sameLocalObject(a, b LocalObject) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func transformEqual(a, b []PipelineOp) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
