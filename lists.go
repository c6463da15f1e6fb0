package flatptr

import (
	"math"
	"strconv"
)

// VoidList is a list of elements with no content.
type VoidList struct{ List }

func NewVoidList(seg *Segment, n int32) (VoidList, error) {
	l, err := newPrimitiveList(seg, VoidElement, n)
	return VoidList{l}, err
}

// BitList is a packed list of booleans.
type BitList struct{ List }

func NewBitList(seg *Segment, n int32) (BitList, error) {
	l, err := newPrimitiveList(seg, BitElement, n)
	return BitList{l}, err
}

func (p BitList) At(i int) bool {
	p.checkIndex(i)
	if p.flags&isBitList == 0 {
		return false
	}
	bit := BitOffset(i)
	return p.seg.readUint8(p.off.addOffset(bit.offset()))&bit.mask() != 0
}

func (p BitList) Set(i int, v bool) {
	p.checkIndex(i)
	if p.flags&isBitList == 0 {
		return
	}
	bit := BitOffset(i)
	addr := p.off.addOffset(bit.offset())
	b := p.seg.readUint8(addr)
	if v {
		b |= bit.mask()
	} else {
		b &^= bit.mask()
	}
	p.seg.writeUint8(addr, b)
}

func (p BitList) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatBool(p.At(i)) })
}

// ------------------------------------------------------------------------------
// Fixed-width numeric lists
// ------------------------------------------------------------------------------

// UInt8List is a list of bytes. Data and Text values are UInt8Lists.
type UInt8List struct{ List }

func NewUInt8List(seg *Segment, n int32) (UInt8List, error) {
	l, err := newPrimitiveList(seg, ByteElement, n)
	return UInt8List{l}, err
}

// NewData allocates a byte list holding a copy of b.
func NewData(seg *Segment, b []byte) (UInt8List, error) {
	if len(b) > maxListElements {
		return UInt8List{}, ErrInvalidSize
	}
	l, err := NewUInt8List(seg, int32(len(b)))
	if err != nil {
		return UInt8List{}, err
	}
	copy(l.seg.slice(l.off, Size(len(b))), b)
	return l, nil
}

// NewText allocates a NUL-terminated byte list holding v.
func NewText(seg *Segment, v string) (UInt8List, error) {
	if len(v) >= maxListElements {
		return UInt8List{}, ErrInvalidSize
	}
	l, err := NewUInt8List(seg, int32(len(v)+1))
	if err != nil {
		return UInt8List{}, err
	}
	copy(l.seg.slice(l.off, Size(len(v))), v)
	return l, nil
}

func (p UInt8List) At(i int) uint8 {
	if addr, ok := p.primitiveAddress(i, 1); ok {
		return p.seg.readUint8(addr)
	}
	return 0
}

func (p UInt8List) Set(i int, v uint8) {
	if addr, ok := p.primitiveAddress(i, 1); ok {
		p.seg.writeUint8(addr, v)
	}
}

func (p UInt8List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatUint(uint64(p.At(i)), 10) })
}

type Int8List struct{ List }

func NewInt8List(seg *Segment, n int32) (Int8List, error) {
	l, err := newPrimitiveList(seg, ByteElement, n)
	return Int8List{l}, err
}

func (p Int8List) At(i int) int8     { return int8(UInt8List(p).At(i)) }
func (p Int8List) Set(i int, v int8) { UInt8List(p).Set(i, uint8(v)) }

func (p Int8List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatInt(int64(p.At(i)), 10) })
}

type UInt16List struct{ List }

func NewUInt16List(seg *Segment, n int32) (UInt16List, error) {
	l, err := newPrimitiveList(seg, TwoByteElement, n)
	return UInt16List{l}, err
}

func (p UInt16List) At(i int) uint16 {
	if addr, ok := p.primitiveAddress(i, 2); ok {
		return p.seg.readUint16(addr)
	}
	return 0
}

func (p UInt16List) Set(i int, v uint16) {
	if addr, ok := p.primitiveAddress(i, 2); ok {
		p.seg.writeUint16(addr, v)
	}
}

func (p UInt16List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatUint(uint64(p.At(i)), 10) })
}

type Int16List struct{ List }

func NewInt16List(seg *Segment, n int32) (Int16List, error) {
	l, err := newPrimitiveList(seg, TwoByteElement, n)
	return Int16List{l}, err
}

func (p Int16List) At(i int) int16     { return int16(UInt16List(p).At(i)) }
func (p Int16List) Set(i int, v int16) { UInt16List(p).Set(i, uint16(v)) }

func (p Int16List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatInt(int64(p.At(i)), 10) })
}

type UInt32List struct{ List }

func NewUInt32List(seg *Segment, n int32) (UInt32List, error) {
	l, err := newPrimitiveList(seg, FourByteElement, n)
	return UInt32List{l}, err
}

func (p UInt32List) At(i int) uint32 {
	if addr, ok := p.primitiveAddress(i, 4); ok {
		return p.seg.readUint32(addr)
	}
	return 0
}

func (p UInt32List) Set(i int, v uint32) {
	if addr, ok := p.primitiveAddress(i, 4); ok {
		p.seg.writeUint32(addr, v)
	}
}

func (p UInt32List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatUint(uint64(p.At(i)), 10) })
}

type Int32List struct{ List }

func NewInt32List(seg *Segment, n int32) (Int32List, error) {
	l, err := newPrimitiveList(seg, FourByteElement, n)
	return Int32List{l}, err
}

func (p Int32List) At(i int) int32     { return int32(UInt32List(p).At(i)) }
func (p Int32List) Set(i int, v int32) { UInt32List(p).Set(i, uint32(v)) }

func (p Int32List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatInt(int64(p.At(i)), 10) })
}

type UInt64List struct{ List }

func NewUInt64List(seg *Segment, n int32) (UInt64List, error) {
	l, err := newPrimitiveList(seg, EightByteElement, n)
	return UInt64List{l}, err
}

func (p UInt64List) At(i int) uint64 {
	if addr, ok := p.primitiveAddress(i, 8); ok {
		return p.seg.readUint64(addr)
	}
	return 0
}

func (p UInt64List) Set(i int, v uint64) {
	if addr, ok := p.primitiveAddress(i, 8); ok {
		p.seg.writeUint64(addr, v)
	}
}

func (p UInt64List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatUint(p.At(i), 10) })
}

type Int64List struct{ List }

func NewInt64List(seg *Segment, n int32) (Int64List, error) {
	l, err := newPrimitiveList(seg, EightByteElement, n)
	return Int64List{l}, err
}

func (p Int64List) At(i int) int64     { return int64(UInt64List(p).At(i)) }
func (p Int64List) Set(i int, v int64) { UInt64List(p).Set(i, uint64(v)) }

func (p Int64List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatInt(p.At(i), 10) })
}

type Float32List struct{ List }

func NewFloat32List(seg *Segment, n int32) (Float32List, error) {
	l, err := newPrimitiveList(seg, FourByteElement, n)
	return Float32List{l}, err
}

func (p Float32List) At(i int) float32     { return math.Float32frombits(UInt32List(p).At(i)) }
func (p Float32List) Set(i int, v float32) { UInt32List(p).Set(i, math.Float32bits(v)) }

func (p Float32List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatFloat(float64(p.At(i)), 'g', -1, 32) })
}

type Float64List struct{ List }

func NewFloat64List(seg *Segment, n int32) (Float64List, error) {
	l, err := newPrimitiveList(seg, EightByteElement, n)
	return Float64List{l}, err
}

func (p Float64List) At(i int) float64     { return math.Float64frombits(UInt64List(p).At(i)) }
func (p Float64List) Set(i int, v float64) { UInt64List(p).Set(i, math.Float64bits(v)) }

func (p Float64List) String() string {
	return formatList(p.Len(), func(i int) string { return strconv.FormatFloat(p.At(i), 'g', -1, 64) })
}

// ------------------------------------------------------------------------------
// Pointer lists
// ------------------------------------------------------------------------------

// PointerList is a list of pointers of any kind.
type PointerList struct{ List }

func NewPointerList(seg *Segment, n int32) (PointerList, error) {
	l, err := newPrimitiveList(seg, PointerElement, n)
	return PointerList{l}, err
}

// At returns the pointer at index i. Composite lists yield each element's
// first pointer.
func (p PointerList) At(i int) (Ptr, error) {
	addr, ok := p.pointerAddress(i)
	if !ok {
		return Ptr{}, nil
	}
	return p.seg.readPtr(addr, p.depthLimit)
}

func (p PointerList) Set(i int, v Ptr) error {
	addr, ok := p.pointerAddress(i)
	if !ok {
		return ErrWrongPointerType
	}
	return p.seg.writePtr(addr, v)
}

// TextList is a list of NUL-terminated strings.
type TextList struct{ List }

func NewTextList(seg *Segment, n int32) (TextList, error) {
	l, err := newPrimitiveList(seg, PointerElement, n)
	return TextList{l}, err
}

func (p TextList) At(i int) (string, error) {
	v, err := PointerList(p).At(i)
	if err != nil {
		return "", err
	}
	return v.Text(), nil
}

func (p TextList) Set(i int, v string) error {
	t, err := NewText(p.seg, v)
	if err != nil {
		return err
	}
	return PointerList(p).Set(i, t.ToPtr())
}

func (p TextList) String() string {
	return formatList(p.Len(), func(i int) string {
		s, err := p.At(i)
		if err != nil {
			return "<error>"
		}
		return strconv.Quote(s)
	})
}

// DataList is a list of byte blobs.
type DataList struct{ List }

func NewDataList(seg *Segment, n int32) (DataList, error) {
	l, err := newPrimitiveList(seg, PointerElement, n)
	return DataList{l}, err
}

func (p DataList) At(i int) ([]byte, error) {
	v, err := PointerList(p).At(i)
	if err != nil {
		return nil, err
	}
	return v.Data(), nil
}

func (p DataList) Set(i int, v []byte) error {
	if v == nil {
		return PointerList(p).Set(i, Ptr{})
	}
	d, err := NewData(p.seg, v)
	if err != nil {
		return err
	}
	return PointerList(p).Set(i, d.ToPtr())
}

// StructList is a composite list of structs.
type StructList struct{ List }

func NewStructList(seg *Segment, sz ObjectSize, n int32) (StructList, error) {
	l, err := NewCompositeList(seg, sz, n)
	return StructList{l}, err
}

func (p StructList) At(i int) Struct { return p.Struct(i) }

func (p StructList) Set(i int, s Struct) error { return p.SetStruct(i, s) }
