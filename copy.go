package capnp

// Copy deep-copies src into a freshly allocated location in into's
// message, returning the copy. The result shares no storage with
// src — every struct, list, and sub-pointer reachable from it is
// copied too — which is what lets a vat hand a call's result to a
// different message without that message's lifetime leaking into the
// copy (the "self-contained byte image" a forwarded answer needs).
func Copy(into *Segment, src Ptr) (Ptr, error) {
	if !src.IsValid() {
		return Ptr{}, nil
	}
	scratch, err := NewStruct(into, ObjectSize{PointerCount: 1})
	if err != nil {
		return Ptr{}, annotatef(err, "copy")
	}
	if err := scratch.seg.writePtr(scratch.off, src, true); err != nil {
		return Ptr{}, annotatef(err, "copy")
	}
	return scratch.Ptr(0)
}

// IsCanonical reports whether every pointer reachable from p through
// struct fields and composite-list elements targets the same segment
// as the struct holding it, so no far pointers are involved. Where
// each object sits within the segment is not checked.
func IsCanonical(p Ptr) (bool, error) {
	if !p.IsValid() {
		return true, nil
	}
	switch p.flags.ptrType() {
	case structPtrType:
		s := p.Struct()
		for i := uint16(0); i < s.size.PointerCount; i++ {
			field, err := s.Ptr(i)
			if err != nil {
				return false, err
			}
			if field.IsValid() && field.seg != s.seg {
				return false, nil
			}
			if ok, err := IsCanonical(field); err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	case listPtrType:
		l := p.List()
		if l.size.PointerCount == 0 {
			return true, nil
		}
		for i := 0; i < l.Len(); i++ {
			if ok, err := IsCanonical(l.Struct(i).ToPtr()); err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	default:
		return true, nil
	}
}
