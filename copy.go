package flatptr

import "fmt"

// byteLen is the number of bytes the list's elements occupy, excluding the
// composite tag.
func (l List) byteLen() Size {
	switch l.ElementSize() {
	case BitElement:
		return Size((int64(l.length) + 7) / 8)
	default:
		sz, _ := l.size.TotalSize().times(l.length)
		return sz
	}
}

// copyPtr deep-copies src into dst's message. Nesting is bounded by the
// depth limit carried by src.
func copyPtr(dst *Segment, src Ptr) (Ptr, error) {
	switch src.kind {
	case structPtr:
		s := src.Struct()
		ns, err := NewStruct(dst, s.size)
		if err != nil {
			return Ptr{}, err
		}
		if err := ns.CopyFrom(s); err != nil {
			return Ptr{}, err
		}
		return ns.ToPtr(), nil
	case listPtr:
		l := src.List()
		switch e := l.ElementSize(); e {
		case CompositeElement:
			nl, err := NewCompositeList(dst, l.size, l.length)
			if err != nil {
				return Ptr{}, err
			}
			for i := 0; i < l.Len(); i++ {
				if err := nl.Struct(i).CopyFrom(l.Struct(i)); err != nil {
					return Ptr{}, fmt.Errorf("copy element %d: %w", i, err)
				}
			}
			return nl.ToPtr(), nil
		case PointerElement:
			nl, err := NewPointerList(dst, l.length)
			if err != nil {
				return Ptr{}, err
			}
			for i := 0; i < l.Len(); i++ {
				p, err := PointerList{l}.At(i)
				if err != nil {
					return Ptr{}, fmt.Errorf("copy element %d: %w", i, err)
				}
				if err := nl.Set(i, p); err != nil {
					return Ptr{}, fmt.Errorf("copy element %d: %w", i, err)
				}
			}
			return nl.ToPtr(), nil
		default:
			nl, err := newPrimitiveList(dst, e, l.length)
			if err != nil {
				return Ptr{}, err
			}
			n := l.byteLen()
			copy(nl.seg.slice(nl.off, n), l.seg.slice(l.off, n))
			return nl.ToPtr(), nil
		}
	case interfacePtr:
		return NewInterface(dst, src.Interface().Capability()).ToPtr(), nil
	default:
		return Ptr{}, nil
	}
}

// Copy returns a deep copy of p allocated in seg's message.
func Copy(seg *Segment, p Ptr) (Ptr, error) {
	if !p.IsValid() {
		return Ptr{}, nil
	}
	return copyPtr(seg, p)
}

// erasePtr zeroes the object the pointer at paddr references, its children,
// any landing pads on the way, and finally the pointer itself.
func (s *Segment) erasePtr(paddr address, depthLimit uint) error {
	if !s.regionInBounds(paddr, wordSize) {
		return ErrOutOfBounds
	}
	raw := s.readRawPointer(paddr)
	if raw == 0 {
		return nil
	}
	p, err := s.readPtr(paddr, depthLimit)
	if err != nil {
		return err
	}
	if err := eraseObject(p); err != nil {
		return err
	}
	if t := raw.pointerType(); t == farPointer || t == doubleFarPointer {
		pad := wordSize
		if t == doubleFarPointer {
			pad *= 2
		}
		if padSeg, err := s.msg.Segment(raw.farSegment()); err == nil && padSeg.regionInBounds(raw.farAddress(), pad) {
			clear(padSeg.slice(raw.farAddress(), pad))
		}
	}
	s.writeRawPointer(paddr, 0)
	return nil
}

func eraseObject(p Ptr) error {
	switch p.kind {
	case structPtr:
		st := p.Struct()
		for i := uint16(0); i < st.size.PointerCount; i++ {
			if err := st.seg.erasePtr(st.pointerAddress(i), st.depthLimit); err != nil {
				return err
			}
		}
		clear(st.seg.slice(st.off, st.size.TotalSize()))
	case listPtr:
		l := p.List()
		if l.flags&isBitList == 0 && l.size.PointerCount > 0 {
			for i := 0; i < l.Len(); i++ {
				base := l.elementAddress(i).addOffset(DataOffset(l.size.DataSize))
				for j := uint16(0); j < l.size.PointerCount; j++ {
					if err := l.seg.erasePtr(base+address(j)*address(wordSize), l.depthLimit); err != nil {
						return err
					}
				}
			}
		}
		n := l.byteLen()
		if l.flags&isCompositeList != 0 {
			n += wordSize
		}
		clear(l.seg.slice(p.startAddr(), n))
	}
	return nil
}
