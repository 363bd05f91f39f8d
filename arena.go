package capnp

// Arena is a message's segment-allocation policy: it supplies
// existing segment data for reads, and grows or creates segments to
// satisfy write allocations.
type Arena interface {
	// NumSegments returns the number of segments currently in the
	// arena.
	NumSegments() int64
	// Data returns the data for the segment with the given ID.
	Data(id SegmentID) ([]byte, error)
	// Allocate returns a segment ID and that segment's full data
	// slice, grown or newly created so it has room for at least minsz
	// more bytes beyond its current length. segs holds the Message's
	// already-materialized segments, which may be ahead of the
	// arena's own bookkeeping (a segment the caller has been writing
	// to via append).
	Allocate(minsz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error)
}

const minSegmentGrowth = 1024

func growSlice(data []byte, minsz Size) []byte {
	want := len(data) + int(minsz)
	newCap := cap(data) * 2
	if newCap < want {
		newCap = want
	}
	if newCap < minSegmentGrowth {
		newCap = minSegmentGrowth
	}
	newData := make([]byte, len(data), newCap)
	copy(newData, data)
	return newData
}

// singleSegmentArena is an Arena that keeps a message's entire
// content in one segment, growing it geometrically as needed.
type singleSegmentArena struct{ data []byte }

// SingleSegment returns an Arena that holds the whole message in one
// segment. b, if non-nil, seeds the segment's initial data (for
// decoding); its length is the segment's existing content, not its
// capacity.
func SingleSegment(b []byte) Arena { return &singleSegmentArena{data: b} }

func (a *singleSegmentArena) NumSegments() int64 { return 1 }

func (a *singleSegmentArena) Data(id SegmentID) ([]byte, error) {
	if id != 0 {
		return nil, errorf("single-segment arena: requested segment %d", id)
	}
	return a.data, nil
}

func (a *singleSegmentArena) Allocate(minsz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	data := a.data
	if s := segs[0]; s != nil {
		data = s.data
	}
	if hasCapacity(data, minsz) {
		return 0, data, nil
	}
	a.data = growSlice(data, minsz)
	return 0, a.data, nil
}

// multiSegmentArena is an Arena that spreads a message across
// multiple independently-growable segments, creating a new one
// whenever the most recent segment runs out of room.
type multiSegmentArena struct{ segs [][]byte }

// MultiSegment returns an Arena that may split a message across more
// than one segment. bs, if non-nil, seeds the arena's initial
// segments (for decoding a multi-segment message).
func MultiSegment(bs [][]byte) Arena { return &multiSegmentArena{segs: bs} }

func (a *multiSegmentArena) NumSegments() int64 { return int64(len(a.segs)) }

func (a *multiSegmentArena) Data(id SegmentID) ([]byte, error) {
	if int64(id) >= int64(len(a.segs)) {
		return nil, errorf("multi-segment arena: requested segment %d of %d", id, len(a.segs))
	}
	return a.segs[id], nil
}

func (a *multiSegmentArena) Allocate(minsz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	if n := len(a.segs); n > 0 {
		id := SegmentID(n - 1)
		data := a.segs[id]
		if s := segs[id]; s != nil {
			data = s.data
		}
		if hasCapacity(data, minsz) {
			return id, data, nil
		}
	}
	capSz := int(minsz)
	if capSz < minSegmentGrowth {
		capSz = minSegmentGrowth
	}
	data := make([]byte, 0, capSz)
	id := SegmentID(len(a.segs))
	a.segs = append(a.segs, data)
	return id, data, nil
}
