package rpc

import "github.com/kwohlfahrt/ecapnp"

// QuestionID indexes a Conn's questions table: a call this vat sent
// to its peer and is waiting on the answer for.
type QuestionID uint32

// AnswerID indexes a Conn's answers table: a call the peer sent to
// this vat, identified by the peer's own QuestionID for that call.
type AnswerID uint32

// ExportID indexes a Conn's exports table: a capability this vat
// hosts and has disclosed to its peer.
type ExportID uint32

// ImportID indexes a Conn's imports table: a capability the peer
// hosts that this vat holds a reference to.
type ImportID uint32

// expEntry is one row of the exports table: the capability being
// disclosed and how many CapDescriptors the peer currently holds
// referring to it.
type expEntry struct {
	cap  capnp.Capability
	refs uint32
}

// impEntry is one row of the imports table: the peer's own export id
// for the capability (used to address outgoing calls to it) and how
// many times this vat has received a descriptor for it.
type impEntry struct {
	remoteID uint32
	refs     uint32
}

// exportFor returns the export id for cap, creating a new exports
// table entry (or bumping an existing one's ref count) if this is the
// first time cap has crossed the wire to this peer. The caller must
// hold c.mu.
func (c *Conn) exportFor(cap capnp.Capability) ExportID {
	for id, e := range c.exports {
		if e != nil && capnp.SameCapabilityForExport(e.cap, cap) {
			e.refs++
			return ExportID(id)
		}
	}
	id := c.exportIDs.alloc()
	e := &expEntry{cap: cap, refs: 1}
	if int(id) == len(c.exports) {
		c.exports = append(c.exports, e)
	} else {
		c.exports[id] = e
	}
	return ExportID(id)
}

// releaseExport drops n references from export id, deleting the
// table entry (and freeing its id for reuse) once the count reaches
// zero. The caller must hold c.mu.
func (c *Conn) releaseExport(id ExportID, n uint32) {
	e := c.exports[id]
	if e == nil || n == 0 {
		return
	}
	if n >= e.refs {
		c.exports[id] = nil
		c.exportIDs.release(uint32(id))
		return
	}
	e.refs -= n
}

// importFor returns the import id tracking the peer's export remoteID,
// creating a new imports table entry (or bumping an existing one's
// ref count) if this is the first descriptor received for it. The
// caller must hold c.mu.
func (c *Conn) importFor(remoteID uint32) ImportID {
	for id, e := range c.imports {
		if e != nil && e.remoteID == remoteID {
			e.refs++
			return id
		}
	}
	id := ImportID(c.importIDs.alloc())
	c.imports[id] = &impEntry{remoteID: remoteID, refs: 1}
	return id
}

// remoteExportID returns the peer's own export id for import id,
// without changing its reference count. The caller must hold c.mu.
func (c *Conn) remoteExportID(id ImportID) uint32 {
	e := c.imports[id]
	if e == nil {
		return 0
	}
	return e.remoteID
}

// releaseImport drops n references from import id, deleting the
// table entry once the count reaches zero. It sends no message itself;
// it returns the peer's export id and whether a Release for it is due
// on the wire. The caller must hold c.mu.
func (c *Conn) releaseImport(id ImportID, n uint32) (remoteID uint32, release bool) {
	e := c.imports[id]
	if e == nil || n == 0 {
		return 0, false
	}
	remoteID = e.remoteID
	if n >= e.refs {
		delete(c.imports, id)
		c.importIDs.release(uint32(id))
		return remoteID, true
	}
	e.refs -= n
	return remoteID, false
}
