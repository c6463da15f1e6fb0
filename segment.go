package flatptr

import (
	"encoding/binary"
	"fmt"
)

// SegmentID is the index of a segment within a message.
type SegmentID uint32

// A Segment is one contiguous region of a message.
type Segment struct {
	msg  *Message
	id   SegmentID
	data []byte
}

func (s *Segment) Message() *Message { return s.msg }
func (s *Segment) ID() SegmentID     { return s.id }

// Data returns the raw bytes of the segment. The slice is invalidated by
// allocations that move the segment.
func (s *Segment) Data() []byte { return s.data }

func (s *Segment) inBounds(addr address) bool {
	return uint64(addr) < uint64(len(s.data))
}

func (s *Segment) regionInBounds(base address, sz Size) bool {
	end, ok := base.addSize(sz)
	return ok && uint64(end) <= uint64(len(s.data))
}

// slice returns the region [base, base+sz). The caller checks bounds.
func (s *Segment) slice(base address, sz Size) []byte {
	return s.data[base : base+address(sz) : base+address(sz)]
}

func (s *Segment) readUint8(addr address) uint8 { return s.data[addr] }

func (s *Segment) readUint16(addr address) uint16 {
	return binary.LittleEndian.Uint16(s.data[addr:])
}

func (s *Segment) readUint32(addr address) uint32 {
	return binary.LittleEndian.Uint32(s.data[addr:])
}

func (s *Segment) readUint64(addr address) uint64 {
	return binary.LittleEndian.Uint64(s.data[addr:])
}

func (s *Segment) readRawPointer(addr address) rawPointer {
	return rawPointer(s.readUint64(addr))
}

func (s *Segment) writeUint8(addr address, val uint8) { s.data[addr] = val }

func (s *Segment) writeUint16(addr address, val uint16) {
	binary.LittleEndian.PutUint16(s.data[addr:], val)
}

func (s *Segment) writeUint32(addr address, val uint32) {
	binary.LittleEndian.PutUint32(s.data[addr:], val)
}

func (s *Segment) writeUint64(addr address, val uint64) {
	binary.LittleEndian.PutUint64(s.data[addr:], val)
}

func (s *Segment) writeRawPointer(addr address, val rawPointer) {
	s.writeUint64(addr, uint64(val))
}

// ------------------------------------------------------------------------------
// Pointer reads
// ------------------------------------------------------------------------------

// resolveFarPointer follows any far pointer stored at paddr and returns the
// segment and address of the object together with the pointer describing it.
func (s *Segment) resolveFarPointer(paddr address) (*Segment, address, rawPointer, error) {
	if !s.regionInBounds(paddr, wordSize) {
		return nil, 0, 0, fmt.Errorf("pointer at %#x: %w", paddr, ErrOutOfBounds)
	}
	val := s.readRawPointer(paddr)
	switch val.pointerType() {
	case farPointer:
		padSeg, err := s.msg.Segment(val.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		padAddr := val.farAddress()
		if !padSeg.regionInBounds(padAddr, wordSize) {
			return nil, 0, 0, fmt.Errorf("landing pad %d:%#x: %w", padSeg.id, padAddr, ErrOutOfBounds)
		}
		landing := padSeg.readRawPointer(padAddr)
		if t := landing.pointerType(); t == farPointer || t == doubleFarPointer {
			return nil, 0, 0, ErrBadLandingPad
		}
		if landing == 0 || landing.pointerType() == otherPointer {
			return padSeg, 0, landing, nil
		}
		target, ok := landing.offset().resolve(padAddr)
		if !ok {
			return nil, 0, 0, ErrOutOfBounds
		}
		return padSeg, target, landing, nil
	case doubleFarPointer:
		padSeg, err := s.msg.Segment(val.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		padAddr := val.farAddress()
		if !padSeg.regionInBounds(padAddr, wordSize*2) {
			return nil, 0, 0, fmt.Errorf("landing pad %d:%#x: %w", padSeg.id, padAddr, ErrOutOfBounds)
		}
		far := padSeg.readRawPointer(padAddr)
		if far.pointerType() != farPointer {
			return nil, 0, 0, ErrBadLandingPad
		}
		tag := padSeg.readRawPointer(padAddr + address(wordSize))
		if t := tag.pointerType(); (t != structPointer && t != listPointer) || tag.offset() != 0 {
			return nil, 0, 0, ErrBadLandingPad
		}
		dst, err := s.msg.Segment(far.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		return dst, far.farAddress(), tag, nil
	case otherPointer:
		return s, 0, val, nil
	default:
		if val == 0 {
			return s, 0, 0, nil
		}
		target, ok := val.offset().resolve(paddr)
		if !ok {
			return nil, 0, 0, ErrOutOfBounds
		}
		return s, target, val, nil
	}
}

// readPtr decodes the pointer stored at paddr, charging the message's read
// limiter for the object it refers to.
func (s *Segment) readPtr(paddr address, depthLimit uint) (Ptr, error) {
	seg, target, val, err := s.resolveFarPointer(paddr)
	if err != nil {
		return Ptr{}, err
	}
	if val == 0 {
		return Ptr{}, nil
	}
	if depthLimit == 0 {
		return Ptr{}, ErrDepthLimit
	}
	switch val.pointerType() {
	case structPointer:
		sp, err := seg.readStructPtr(target, val)
		if err != nil {
			return Ptr{}, err
		}
		if !s.msg.canRead(uint64(sp.readSize())) {
			return Ptr{}, ErrTraverseLimit
		}
		sp.depthLimit = depthLimit - 1
		return sp.ToPtr(), nil
	case listPointer:
		lp, err := seg.readListPtr(target, val)
		if err != nil {
			return Ptr{}, err
		}
		if !s.msg.canRead(lp.readSize()) {
			return Ptr{}, ErrTraverseLimit
		}
		lp.depthLimit = depthLimit - 1
		return lp.ToPtr(), nil
	case otherPointer:
		if val.otherPointerType() != 0 {
			return Ptr{}, fmt.Errorf("%v: %w", val, ErrUnknownOther)
		}
		return Interface{seg: seg, cap: val.capabilityIndex()}.ToPtr(), nil
	default:
		return Ptr{}, ErrBadLandingPad
	}
}

func (s *Segment) readStructPtr(addr address, val rawPointer) (Struct, error) {
	sz := val.structSize()
	if !s.regionInBounds(addr, sz.TotalSize()) {
		return Struct{}, fmt.Errorf("struct at %d:%#x %v: %w", s.id, addr, sz, ErrOutOfBounds)
	}
	return Struct{seg: s, off: addr, size: sz}, nil
}

func (s *Segment) readListPtr(addr address, val rawPointer) (List, error) {
	lsize, ok := val.totalListSize()
	if !ok || !s.regionInBounds(addr, lsize) {
		return List{}, fmt.Errorf("list at %d:%#x: %w", s.id, addr, ErrOutOfBounds)
	}
	n := val.numListElements()
	switch e := val.elementSize(); e {
	case CompositeElement:
		tag := s.readRawPointer(addr)
		if tag.pointerType() != structPointer {
			return List{}, ErrBadTag
		}
		count := int32(tag.offset())
		if count < 0 {
			return List{}, ErrBadTag
		}
		sz := tag.structSize()
		used, ok := sz.TotalSize().times(count)
		if !ok || used > lsize-wordSize {
			return List{}, fmt.Errorf("%d elements of %v exceed %d words: %w", count, sz, n, ErrBadTag)
		}
		return List{
			seg:    s,
			off:    addr + address(wordSize),
			length: count,
			size:   sz,
			flags:  isCompositeList,
		}, nil
	case BitElement:
		return List{seg: s, off: addr, length: n, flags: isBitList}, nil
	default:
		return List{seg: s, off: addr, length: n, size: e.objectSize()}, nil
	}
}

// ------------------------------------------------------------------------------
// Pointer writes
// ------------------------------------------------------------------------------

// writePtr stores a pointer to src at paddr. A src owned by another message
// is deep-copied into this one first.
func (s *Segment) writePtr(paddr address, src Ptr) error {
	if !s.regionInBounds(paddr, wordSize) {
		return fmt.Errorf("pointer at %#x: %w", paddr, ErrOutOfBounds)
	}
	if !src.IsValid() {
		s.writeRawPointer(paddr, 0)
		return nil
	}
	if src.kind == interfacePtr {
		s.writeRawPointer(paddr, rawInterfacePointer(src.Interface().Capability()))
		return nil
	}
	if src.seg.msg != s.msg {
		c, err := copyPtr(s, src)
		if err != nil {
			return err
		}
		src = c
	}
	start := src.startAddr()
	val := src.rawWithOffset(0)
	if src.seg == s {
		if src.kind == structPtr && src.size.isZero() {
			s.writeRawPointer(paddr, val.withOffset(-1))
			return nil
		}
		off, ok := makePointerOffset(paddr, start)
		if !ok {
			return ErrOffsetOverflow
		}
		s.writeRawPointer(paddr, val.withOffset(off))
		return nil
	}

	// Land in the object's segment when there is room for a pad.
	padSeg, padAddr, err := s.msg.alloc(wordSize, src.seg)
	if err != nil {
		return err
	}
	if padSeg == src.seg {
		off, ok := makePointerOffset(padAddr, start)
		if !ok {
			return ErrOffsetOverflow
		}
		padSeg.writeRawPointer(padAddr, val.withOffset(off))
		s.writeRawPointer(paddr, rawFarPointer(padSeg.id, padAddr))
		return nil
	}
	padSeg, padAddr, err = s.msg.alloc(wordSize*2, padSeg)
	if err != nil {
		return err
	}
	padSeg.writeRawPointer(padAddr, rawFarPointer(src.seg.id, start))
	padSeg.writeRawPointer(padAddr+address(wordSize), val)
	s.writeRawPointer(paddr, rawDoubleFarPointer(padSeg.id, padAddr))
	return nil
}

func (s *Segment) String() string {
	return fmt.Sprintf("segment %d [%d bytes]", s.id, len(s.data))
}
