package flatptr

import (
	"fmt"
	"math"
)

type structFlags uint8

const isListMember structFlags = 1 << iota

// Struct is a fixed-layout record made of a data section followed by a
// pointer section.
type Struct struct {
	seg        *Segment
	off        address
	size       ObjectSize
	depthLimit uint
	flags      structFlags
}

// NewStruct allocates a zeroed struct in seg's message, preferring seg.
func NewStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	if !sz.isValid() {
		return Struct{}, fmt.Errorf("new struct %v: %w", sz, ErrInvalidSize)
	}
	s, addr, err := seg.msg.alloc(sz.TotalSize(), seg)
	if err != nil {
		return Struct{}, fmt.Errorf("new struct: %w", err)
	}
	return Struct{seg: s, off: addr, size: sz, depthLimit: seg.msg.depthLimit()}, nil
}

// NewRootStruct allocates a struct and makes it the message root.
func NewRootStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	st, err := NewStruct(seg, sz)
	if err != nil {
		return Struct{}, err
	}
	if err := seg.msg.SetRoot(st.ToPtr()); err != nil {
		return Struct{}, err
	}
	return st, nil
}

func (s Struct) IsValid() bool     { return s.seg != nil }
func (s Struct) Segment() *Segment { return s.seg }
func (s Struct) Size() ObjectSize  { return s.size }
func (s Struct) ToPtr() Ptr        { return s.toPtr() }
func (s Struct) readSize() Size    { return s.size.TotalSize() }

func (s Struct) Message() *Message {
	if s.seg == nil {
		return nil
	}
	return s.seg.msg
}

func (s Struct) toPtr() Ptr {
	if !s.IsValid() {
		return Ptr{}
	}
	return Ptr{
		seg:        s.seg,
		off:        s.off,
		size:       s.size,
		depthLimit: s.depthLimit,
		flags:      uint8(s.flags),
		kind:       structPtr,
	}
}

// dataAddress returns the address of sz bytes at off, or false if they lie
// outside the data section.
func (s Struct) dataAddress(off DataOffset, sz Size) (address, bool) {
	if s.seg == nil || uint64(off)+uint64(sz) > uint64(s.size.DataSize) {
		return 0, false
	}
	return s.off.addOffset(off), true
}

// ------------------------------------------------------------------------------
// Data section
// ------------------------------------------------------------------------------

// Reads outside the data section return zero and writes are dropped, so
// older and newer layouts of the same struct interoperate.

func (s Struct) Uint8(off DataOffset) uint8 {
	if addr, ok := s.dataAddress(off, 1); ok {
		return s.seg.readUint8(addr)
	}
	return 0
}

func (s Struct) Uint16(off DataOffset) uint16 {
	if addr, ok := s.dataAddress(off, 2); ok {
		return s.seg.readUint16(addr)
	}
	return 0
}

func (s Struct) Uint32(off DataOffset) uint32 {
	if addr, ok := s.dataAddress(off, 4); ok {
		return s.seg.readUint32(addr)
	}
	return 0
}

func (s Struct) Uint64(off DataOffset) uint64 {
	if addr, ok := s.dataAddress(off, 8); ok {
		return s.seg.readUint64(addr)
	}
	return 0
}

func (s Struct) Float32(off DataOffset) float32 { return math.Float32frombits(s.Uint32(off)) }
func (s Struct) Float64(off DataOffset) float64 { return math.Float64frombits(s.Uint64(off)) }

func (s Struct) SetUint8(off DataOffset, v uint8) {
	if addr, ok := s.dataAddress(off, 1); ok {
		s.seg.writeUint8(addr, v)
	}
}

func (s Struct) SetUint16(off DataOffset, v uint16) {
	if addr, ok := s.dataAddress(off, 2); ok {
		s.seg.writeUint16(addr, v)
	}
}

func (s Struct) SetUint32(off DataOffset, v uint32) {
	if addr, ok := s.dataAddress(off, 4); ok {
		s.seg.writeUint32(addr, v)
	}
}

func (s Struct) SetUint64(off DataOffset, v uint64) {
	if addr, ok := s.dataAddress(off, 8); ok {
		s.seg.writeUint64(addr, v)
	}
}

func (s Struct) SetFloat32(off DataOffset, v float32) { s.SetUint32(off, math.Float32bits(v)) }
func (s Struct) SetFloat64(off DataOffset, v float64) { s.SetUint64(off, math.Float64bits(v)) }

// Bit returns the bit at the given offset of the data section.
func (s Struct) Bit(bit BitOffset) bool {
	addr, ok := s.dataAddress(bit.offset(), 1)
	if !ok {
		return false
	}
	return s.seg.readUint8(addr)&bit.mask() != 0
}

func (s Struct) SetBit(bit BitOffset, v bool) {
	addr, ok := s.dataAddress(bit.offset(), 1)
	if !ok {
		return
	}
	b := s.seg.readUint8(addr)
	if v {
		b |= bit.mask()
	} else {
		b &^= bit.mask()
	}
	s.seg.writeUint8(addr, b)
}

// ------------------------------------------------------------------------------
// Pointer section
// ------------------------------------------------------------------------------

func (s Struct) pointerAddress(i uint16) address {
	return s.off.addOffset(DataOffset(s.size.DataSize)) + address(i)*address(wordSize)
}

// HasPtr reports whether pointer i is non-null.
func (s Struct) HasPtr(i uint16) bool {
	if s.seg == nil || i >= s.size.PointerCount {
		return false
	}
	return s.seg.readRawPointer(s.pointerAddress(i)) != 0
}

// Ptr returns pointer i. Pointers past the end of the section read as null.
func (s Struct) Ptr(i uint16) (Ptr, error) {
	if s.seg == nil || i >= s.size.PointerCount {
		return Ptr{}, nil
	}
	p, err := s.seg.readPtr(s.pointerAddress(i), s.depthLimit)
	if err != nil {
		return Ptr{}, fmt.Errorf("read pointer %d: %w", i, err)
	}
	return p, nil
}

// SetPtr stores p in pointer i. A p from another message is deep-copied; a
// p from this message is linked without copying.
func (s Struct) SetPtr(i uint16, p Ptr) error {
	if s.seg == nil || i >= s.size.PointerCount {
		return fmt.Errorf("set pointer %d of %v: %w", i, s.size, ErrOutOfBounds)
	}
	if err := s.seg.writePtr(s.pointerAddress(i), p); err != nil {
		return fmt.Errorf("set pointer %d: %w", i, err)
	}
	return nil
}

// CopyPtr stores a deep copy of p in pointer i, even when p belongs to this
// message. Later changes to p do not show through s.
func (s Struct) CopyPtr(i uint16, p Ptr) error {
	if s.seg == nil || i >= s.size.PointerCount {
		return fmt.Errorf("copy pointer %d of %v: %w", i, s.size, ErrOutOfBounds)
	}
	c, err := Copy(s.seg, p)
	if err != nil {
		return fmt.Errorf("copy pointer %d: %w", i, err)
	}
	return s.SetPtr(i, c)
}

// ClearPtr zeroes the object referenced by pointer i, recursively, and
// nulls the pointer. Other references to the same object see zeroes.
func (s Struct) ClearPtr(i uint16) error {
	if s.seg == nil || i >= s.size.PointerCount {
		return nil
	}
	if err := s.seg.erasePtr(s.pointerAddress(i), s.depthLimit); err != nil {
		return fmt.Errorf("clear pointer %d: %w", i, err)
	}
	return nil
}

// Data returns the byte list at pointer i, or nil if the pointer is null.
func (s Struct) Data(i uint16) ([]byte, error) {
	p, err := s.Ptr(i)
	if err != nil || !p.IsValid() {
		return nil, err
	}
	if b := p.Data(); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("pointer %d is %v, want data: %w", i, p, ErrWrongPointerType)
}

// SetData copies b into a new byte list at pointer i. A nil b nulls it.
func (s Struct) SetData(i uint16, b []byte) error {
	if b == nil {
		return s.SetPtr(i, Ptr{})
	}
	l, err := NewData(s.seg, b)
	if err != nil {
		return err
	}
	return s.SetPtr(i, l.ToPtr())
}

// InitData allocates n zero bytes at pointer i and returns them for writing.
func (s Struct) InitData(i uint16, n int) ([]byte, error) {
	if n < 0 || n > maxListElements {
		return nil, fmt.Errorf("init data %d: %w", n, ErrInvalidSize)
	}
	l, err := NewUInt8List(s.seg, int32(n))
	if err != nil {
		return nil, err
	}
	if err := s.SetPtr(i, l.ToPtr()); err != nil {
		return nil, err
	}
	return l.seg.slice(l.off, Size(n)), nil
}

// Text returns the text at pointer i without its NUL terminator.
func (s Struct) Text(i uint16) (string, error) {
	p, err := s.Ptr(i)
	if err != nil || !p.IsValid() {
		return "", err
	}
	if p.Data() == nil {
		return "", fmt.Errorf("pointer %d is %v, want text: %w", i, p, ErrWrongPointerType)
	}
	return p.Text(), nil
}

// SetText stores v as NUL-terminated text at pointer i.
func (s Struct) SetText(i uint16, v string) error {
	l, err := NewText(s.seg, v)
	if err != nil {
		return err
	}
	return s.SetPtr(i, l.ToPtr())
}

// CopyFrom overwrites s with other. Data and pointers other lacks are zeroed
// and nulled; pointers into another message are deep-copied.
func (s Struct) CopyFrom(other Struct) error {
	if !s.IsValid() {
		return nil
	}
	var n Size
	var np uint16
	if other.IsValid() {
		n = min(s.size.DataSize, other.size.DataSize)
		np = min(s.size.PointerCount, other.size.PointerCount)
		copy(s.seg.slice(s.off, n), other.seg.slice(other.off, n))
	}
	clear(s.seg.slice(s.off+address(n), s.size.DataSize-n))
	for i := uint16(0); i < np; i++ {
		p, err := other.Ptr(i)
		if err != nil {
			return fmt.Errorf("copy struct: %w", err)
		}
		if err := s.SetPtr(i, p); err != nil {
			return fmt.Errorf("copy struct: %w", err)
		}
	}
	for i := np; i < s.size.PointerCount; i++ {
		s.seg.writeRawPointer(s.pointerAddress(i), 0)
	}
	return nil
}

func (s Struct) String() string {
	if !s.IsValid() {
		return "<nil struct>"
	}
	return fmt.Sprintf("struct(seg=%d off=%#x size=%v)", s.seg.id, s.off, s.size)
}
