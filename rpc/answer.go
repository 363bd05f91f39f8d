package rpc

import "github.com/kwohlfahrt/ecapnp"

// answer is a Conn's record of a call its peer sent: the promise for
// the eventual result (so a further pipelined Call targeting it can
// be resolved locally before the Return is even sent) and the
// bookkeeping needed to release result capabilities once both sides
// are done with them.
type answer struct {
	c  *Conn
	id AnswerID

	promise *capnp.Promise

	// Below are protected by c.mu.
	returnSent      bool
	finishReceived  bool
	releaseOnFinish bool
	resultCapTable  []capnp.Capability
	exportRefs      map[ExportID]uint32
}

// newAnswer registers an answer for a call identified by id. The
// caller must hold c.mu.
func (c *Conn) newAnswer(id AnswerID) *answer {
	a := &answer{c: c, id: id, promise: capnp.NewPromise()}
	c.answers[id] = a
	return a
}

// destroy drops a from the table and, when releaseOnFinish is set,
// releases the exports it is still holding references for. It is
// called once both a Return has been sent and a Finish has been
// received. The caller must hold c.mu.
func (a *answer) destroy() {
	delete(a.c.answers, a.id)
	if !a.releaseOnFinish {
		return
	}
	for id, n := range a.exportRefs {
		a.c.releaseExport(id, n)
	}
}

// maybeDestroy calls destroy once both halves of the answer's
// lifecycle have completed. The caller must hold c.mu.
func (a *answer) maybeDestroy() {
	if a.returnSent && a.finishReceived {
		a.destroy()
	}
}
