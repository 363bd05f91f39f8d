package capnp

import (
	"encoding/binary"
	"io"
)

// streamHeaderSize returns the size of a stream frame's segment-count
// and segment-length table for n segments: one header word (segment
// count minus one, then per-segment lengths), padded to a whole
// number of words.
func streamHeaderSize(n int) Size {
	return Size(4 + 4*n).padToWord()
}

// Marshal encodes msg in the standard Cap'n Proto stream framing: a
// segment table (segment count, then each segment's length in words)
// followed by the segments themselves, back to back.
func Marshal(msg *Message) ([]byte, error) {
	nsegs := msg.Arena.NumSegments()
	if nsegs <= 0 {
		return nil, errorf("marshal: message has no segments")
	}
	segs := make([][]byte, nsegs)
	for i := range segs {
		seg, err := msg.Segment(SegmentID(i))
		if err != nil {
			return nil, annotatef(err, "marshal")
		}
		data := seg.data
		if len(data)%int(wordSize) != 0 {
			return nil, errorf("marshal: segment %d is not word-aligned", i)
		}
		segs[i] = data
	}

	hdrSize := streamHeaderSize(len(segs))
	total := int(hdrSize)
	for _, s := range segs {
		total += len(s)
	}
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out, uint32(len(segs)-1))
	for i, s := range segs {
		binary.LittleEndian.PutUint32(out[4+4*i:], uint32(len(s)/int(wordSize)))
	}
	off := int(hdrSize)
	for _, s := range segs {
		copy(out[off:], s)
		off += len(s)
	}
	return out, nil
}

// Unmarshal decodes a single stream-framed message from data. The
// returned Message's segments alias data; callers that need to
// mutate the result after decoding should treat it as read-only or
// deep-copy first.
func Unmarshal(data []byte) (*Message, error) {
	segs, _, err := parseStreamHeader(data)
	if err != nil {
		return nil, annotatef(err, "unmarshal")
	}
	var arena Arena
	if len(segs) == 1 {
		arena = SingleSegment(segs[0])
	} else {
		arena = MultiSegment(segs)
	}
	return &Message{Arena: arena}, nil
}

// parseStreamHeader reads the segment table at the start of data and
// returns the slice of each segment's data (aliasing data) plus the
// total number of bytes the header and segments together occupy.
func parseStreamHeader(data []byte) (segs [][]byte, n int, err error) {
	if len(data) < 4 {
		return nil, 0, errorf("short header")
	}
	nsegs := int(binary.LittleEndian.Uint32(data)) + 1
	if nsegs <= 0 {
		return nil, 0, errorf("invalid segment count")
	}
	hdrSize := int(streamHeaderSize(nsegs))
	if len(data) < hdrSize {
		return nil, 0, errorf("short segment table")
	}
	lengths := make([]int, nsegs)
	total := hdrSize
	for i := 0; i < nsegs; i++ {
		wc := binary.LittleEndian.Uint32(data[4+4*i:])
		lengths[i] = int(wc) * int(wordSize)
		total += lengths[i]
	}
	if len(data) < total {
		return nil, 0, errorf("message shorter than segment table declares")
	}
	segs = make([][]byte, nsegs)
	off := hdrSize
	for i, l := range lengths {
		segs[i] = data[off : off+l : off+l]
		off += l
	}
	return segs, total, nil
}

// Encoder writes a sequence of stream-framed messages to an
// underlying io.Writer.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes msg to the encoder's writer.
func (e *Encoder) Encode(msg *Message) error {
	b, err := Marshal(msg)
	if err != nil {
		return annotatef(err, "encode")
	}
	if _, err := e.w.Write(b); err != nil {
		return annotatef(err, "encode")
	}
	return nil
}

// Decoder reads a sequence of stream-framed messages from an
// underlying io.Reader.
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Decode reads and returns the next message from the decoder's
// reader.
func (d *Decoder) Decode() (*Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return nil, err
	}
	nsegs := int(binary.LittleEndian.Uint32(hdr[:])) + 1
	if nsegs <= 0 {
		return nil, errorf("decode: invalid segment count")
	}
	tableRest := int(streamHeaderSize(nsegs)) - 4
	table := make([]byte, tableRest)
	if _, err := io.ReadFull(d.r, table); err != nil {
		return nil, annotatef(err, "decode")
	}
	lengths := make([]int, nsegs)
	bodySize := 0
	for i := 0; i < nsegs; i++ {
		wc := binary.LittleEndian.Uint32(table[4*i:])
		lengths[i] = int(wc) * int(wordSize)
		bodySize += lengths[i]
	}
	body := make([]byte, bodySize)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, annotatef(err, "decode")
	}
	segs := make([][]byte, nsegs)
	off := 0
	for i, l := range lengths {
		segs[i] = body[off : off+l : off+l]
		off += l
	}
	var arena Arena
	if len(segs) == 1 {
		arena = SingleSegment(segs[0])
	} else {
		arena = MultiSegment(segs)
	}
	return &Message{Arena: arena}, nil
}
