package capnp

// defaultTraverseLimit is the default read traversal budget, in
// bytes: the total size of every struct and list a single read may
// touch while decoding one message. It exists to bound the cost of
// decoding adversarial or corrupt input, not because any spec
// invariant requires it.
const defaultTraverseLimit = 64 << 20

// maxDepth is the default pointer-nesting depth limit, for the same
// reason as defaultTraverseLimit.
const maxDepth = 64

// A Message is a tree of Cap'n Proto objects, split across one or
// more Segments for allocation purposes. A Message's root is always
// the single pointer occupying the first word of its first segment.
type Message struct {
	Arena Arena

	// TraverseLimit bounds the total bytes a single read of this
	// message may traverse. Zero means defaultTraverseLimit; a
	// negative value disables the limit entirely.
	TraverseLimit int64
	// DepthLimit bounds pointer nesting depth. Zero means maxDepth.
	DepthLimit uint

	// CapTable holds the capabilities referenced by interface
	// pointers in this message, indexed by CapabilityID.
	CapTable []Capability

	segs      map[SegmentID]*Segment
	budget    int64
	budgetSet bool
}

// NewMessage creates a new message, backed by arena, and returns the
// message along with its first segment. The first word of the first
// segment is reserved for the root pointer, so the message's first
// real allocation never lands on top of it.
func NewMessage(arena Arena) (*Message, *Segment, error) {
	msg := &Message{Arena: arena}
	seg, err := msg.Segment(0)
	if err != nil {
		return nil, nil, annotatef(err, "new message")
	}
	if len(seg.data) == 0 {
		if _, _, err := alloc(seg, wordSize); err != nil {
			return nil, nil, annotatef(err, "new message: reserve root pointer")
		}
	}
	return msg, seg, nil
}

func (m *Message) firstSegment() *Segment {
	seg, err := m.Segment(0)
	if err != nil {
		panic(err)
	}
	return seg
}

// Segment returns the segment with the given id, reading it from the
// arena on first access.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	if m.segs == nil {
		m.segs = make(map[SegmentID]*Segment)
	}
	if s := m.segs[id]; s != nil {
		return s, nil
	}
	if m.Arena == nil {
		m.Arena = SingleSegment(nil)
	}
	data, err := m.Arena.Data(id)
	if err != nil {
		return nil, annotatef(err, "segment %d", id)
	}
	s := &Segment{msg: m, id: id, data: data}
	m.segs[id] = s
	return s, nil
}

func (m *Message) depthLimit() uint {
	if m.DepthLimit == 0 {
		return maxDepth
	}
	return m.DepthLimit
}

// canRead charges sz against the message's remaining traversal
// budget, returning false once the budget is exhausted.
func (m *Message) canRead(sz Size) bool {
	limit := m.TraverseLimit
	if limit == 0 {
		limit = defaultTraverseLimit
	}
	if limit < 0 {
		return true
	}
	if !m.budgetSet {
		m.budget = limit
		m.budgetSet = true
	}
	if int64(sz) > m.budget {
		return false
	}
	m.budget -= int64(sz)
	return true
}

// ResetReadLimit resets the message's remaining traversal budget, for
// callers that reuse a Message across multiple logical reads (as the
// rpc package does for each inbound call's parameter struct).
func (m *Message) ResetReadLimit() { m.budget, m.budgetSet = 0, false }

// Root returns the message's root pointer.
func (m *Message) Root() (Ptr, error) {
	seg, err := m.Segment(0)
	if err != nil {
		return Ptr{}, annotatef(err, "read root")
	}
	p, err := seg.root().At(0)
	if err != nil {
		return Ptr{}, annotatef(err, "read root")
	}
	return p, nil
}

// SetRoot sets the message's root pointer to p.
func (m *Message) SetRoot(p Ptr) error {
	seg, err := m.Segment(0)
	if err != nil {
		return annotatef(err, "set root")
	}
	if err := seg.root().SetAt(0, p); err != nil {
		return annotatef(err, "set root")
	}
	return nil
}

// AddCap appends c to the message's capability table and returns its
// index.
func (m *Message) AddCap(c Capability) CapabilityID {
	m.CapTable = append(m.CapTable, c)
	return CapabilityID(len(m.CapTable) - 1)
}

// Capability returns the capability at index id, or nil if id is out
// of range.
func (m *Message) Capability(id CapabilityID) Capability {
	if int64(id) < 0 || int(id) >= len(m.CapTable) {
		return nil
	}
	return m.CapTable[int(id)]
}

// TotalSize returns the sum, in bytes, of every segment's current
// length — an estimate of how much this message costs to send, used
// to size flow-control accounting.
func (m *Message) TotalSize() (uint64, error) {
	var n uint64
	for id := SegmentID(0); ; id++ {
		if int64(id) >= m.Arena.NumSegments() {
			break
		}
		seg, err := m.Segment(id)
		if err != nil {
			return 0, annotatef(err, "total size")
		}
		n += uint64(len(seg.data))
	}
	return n, nil
}

// alloc allocates sz bytes, preferring s's own segment and falling
// back to the message's arena for a new or larger segment.
func alloc(s *Segment, sz Size) (*Segment, address, error) {
	sz = sz.padToWord()
	if hasCapacity(s.data, sz) {
		addr := address(len(s.data))
		s.data = s.data[:len(s.data)+int(sz)]
		return s, addr, nil
	}
	id, data, err := s.msg.Arena.Allocate(sz, s.msg.segs)
	if err != nil {
		return nil, 0, annotatef(err, "allocate %v", sz)
	}
	seg, err := s.msg.Segment(id)
	if err != nil {
		return nil, 0, annotatef(err, "allocate %v", sz)
	}
	addr := address(len(data))
	seg.data = data[:len(data)+int(sz)]
	return seg, addr, nil
}
