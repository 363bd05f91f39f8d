package rpc

import "github.com/kwohlfahrt/ecapnp"

// fillPayloadCapTable walks the cap table of payload's content message
// and writes a matching CapDescriptor for each entry, translating
// this vat's local Capability values into their wire form. It returns
// the number of references added per export, so a later Finish with
// releaseResultCaps can undo exactly what was added here. The caller
// must hold c.mu.
func (c *Conn) fillPayloadCapTable(payload Payload) (map[ExportID]uint32, error) {
	content, err := payload.Content()
	if err != nil {
		return nil, err
	}
	msg := content.Message()
	if msg == nil || len(msg.CapTable) == 0 {
		return nil, nil
	}
	descs, err := payload.NewCapTable(int32(len(msg.CapTable)))
	if err != nil {
		return nil, err
	}
	refs := make(map[ExportID]uint32)
	for i, cp := range msg.CapTable {
		d := descs.At(i)
		switch v := cp.(type) {
		case capnp.LocalCapability:
			id := c.exportFor(cp)
			d.SetSenderHosted(uint32(id))
			refs[id]++
		case capnp.ExportedCapability:
			if v.Vat != c.peer {
				return refs, rpcerr.Failedf("fill cap table: export belongs to a different vat")
			}
			id := ExportID(v.ID)
			if e := c.exports[id]; e != nil {
				e.refs++
			}
			d.SetSenderHosted(v.ID)
			refs[id]++
		case capnp.RemoteCapability:
			if v.Vat != c.peer {
				return refs, rpcerr.Failedf("fill cap table: capability belongs to a different vat")
			}
			d.SetReceiverHosted(c.remoteExportID(ImportID(v.ID)))
		case capnp.PromiseCapability:
			if v.Variant != capnp.PromiseAnswer {
				return refs, rpcerr.Failedf("fill cap table: unsupported promise capability")
			}
			if err := d.SetReceiverAnswer(v.ID, v.Transform); err != nil {
				return refs, err
			}
		default:
			return refs, rpcerr.Failedf("fill cap table: unknown capability kind")
		}
	}
	return refs, nil
}

// readPayloadCapTable decodes payload's CapDescriptor list into this
// vat's local Capability representation and installs it as the cap
// table of msg, the message payload.Content() was unmarshaled into.
// The caller must hold c.mu.
func (c *Conn) readPayloadCapTable(payload Payload, msg *capnp.Message) error {
	descs, err := payload.CapTable()
	if err != nil {
		return err
	}
	if descs.Len() == 0 {
		return nil
	}
	caps := make([]capnp.Capability, descs.Len())
	for i := range caps {
		d := descs.At(i)
		switch d.Which() {
		case DescSenderHosted:
			id := c.importFor(d.ID())
			caps[i] = capnp.RemoteCapability{ID: uint32(id), Vat: c.peer}
		case DescSenderPromise:
			id := c.importFor(d.ID())
			caps[i] = capnp.PromiseCapability{ID: uint32(id), Variant: capnp.PromiseResolve}
		case DescReceiverHosted:
			caps[i] = capnp.ExportedCapability{ID: d.ID(), Vat: c.peer}
		case DescReceiverAnswer:
			pa, err := d.ReceiverAnswer()
			if err != nil {
				return err
			}
			ops, err := pa.Transform()
			if err != nil {
				return err
			}
			caps[i] = capnp.PromiseCapability{ID: pa.QuestionID(), Variant: capnp.PromiseAnswer, Transform: ops}
		default:
			return rpcerr.Failedf("read cap table: unsupported descriptor kind")
		}
	}
	msg.CapTable = caps
	return nil
}
