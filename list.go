package flatptr

import (
	"fmt"
	"strings"
)

// maxListElements is the largest count a list pointer can carry.
const maxListElements = 1<<29 - 1

type listFlags uint8

const (
	isBitList listFlags = 1 << iota
	isCompositeList
)

// A List is a sequence of same-sized elements. Typed views such as
// UInt32List or StructList wrap it.
type List struct {
	seg        *Segment
	off        address // first element; the tag precedes it for composite lists
	length     int32
	size       ObjectSize
	depthLimit uint
	flags      listFlags
}

// NewCompositeList allocates a list of n structs of size sz.
func NewCompositeList(seg *Segment, sz ObjectSize, n int32) (List, error) {
	if !sz.isValid() || n < 0 || n > maxListElements {
		return List{}, fmt.Errorf("new composite list of %d %v: %w", n, sz, ErrInvalidSize)
	}
	body, ok := sz.TotalSize().times(n)
	if !ok || body.words() > maxListElements {
		return List{}, fmt.Errorf("new composite list of %d %v: %w", n, sz, ErrInvalidSize)
	}
	total, ok := body.plus(wordSize)
	if !ok {
		return List{}, ErrSegmentTooLarge
	}
	s, addr, err := seg.msg.alloc(total, seg)
	if err != nil {
		return List{}, fmt.Errorf("new composite list: %w", err)
	}
	s.writeRawPointer(addr, rawStructPointer(pointerOffset(n), sz))
	return List{
		seg:        s,
		off:        addr + address(wordSize),
		length:     n,
		size:       sz,
		depthLimit: seg.msg.depthLimit(),
		flags:      isCompositeList,
	}, nil
}

func newPrimitiveList(seg *Segment, e ElementSize, n int32) (List, error) {
	if n < 0 || n > maxListElements {
		return List{}, fmt.Errorf("new list of %d: %w", n, ErrInvalidSize)
	}
	l := List{length: n, depthLimit: seg.msg.depthLimit()}
	var total Size
	if e == BitElement {
		l.flags = isBitList
		total = Size((int64(n) + 7) / 8)
	} else {
		l.size = e.objectSize()
		var ok bool
		if total, ok = l.size.TotalSize().times(n); !ok {
			return List{}, ErrSegmentTooLarge
		}
	}
	s, addr, err := seg.msg.alloc(total, seg)
	if err != nil {
		return List{}, fmt.Errorf("new %v list: %w", e, err)
	}
	l.seg, l.off = s, addr
	return l, nil
}

func (l List) IsValid() bool     { return l.seg != nil }
func (l List) Segment() *Segment { return l.seg }

func (l List) Message() *Message {
	if l.seg == nil {
		return nil
	}
	return l.seg.msg
}

// Len returns the number of elements, or 0 for an invalid list.
func (l List) Len() int {
	if l.seg == nil {
		return 0
	}
	return int(l.length)
}

// ElementSize reports how the list's elements are encoded.
func (l List) ElementSize() ElementSize {
	switch {
	case l.flags&isCompositeList != 0:
		return CompositeElement
	case l.flags&isBitList != 0:
		return BitElement
	case l.size.PointerCount == 1 && l.size.DataSize == 0:
		return PointerElement
	}
	switch l.size.DataSize {
	case 1:
		return ByteElement
	case 2:
		return TwoByteElement
	case 4:
		return FourByteElement
	case 8:
		return EightByteElement
	default:
		return VoidElement
	}
}

// ElementObjectSize is the size of each element viewed as a struct.
func (l List) ElementObjectSize() ObjectSize { return l.size }

func (l List) ToPtr() Ptr {
	if !l.IsValid() {
		return Ptr{}
	}
	return Ptr{
		seg:        l.seg,
		off:        l.off,
		lenOrCap:   uint32(l.length),
		size:       l.size,
		depthLimit: l.depthLimit,
		flags:      uint8(l.flags),
		kind:       listPtr,
	}
}

func (l List) raw() rawPointer {
	if !l.IsValid() {
		return 0
	}
	e := l.ElementSize()
	if e == CompositeElement {
		return rawListPointer(0, e, l.size.totalWordCount()*l.length)
	}
	return rawListPointer(0, e, l.length)
}

// readSize is what reading the list costs against the traversal limit.
// Elements that occupy no space are charged a word each to bound
// amplification.
func (l List) readSize() uint64 {
	n := uint64(l.length)
	switch l.ElementSize() {
	case VoidElement:
		return n * uint64(wordSize)
	case BitElement:
		return (n + 7) / 8
	case CompositeElement:
		elem := max(uint64(l.size.TotalSize()), uint64(wordSize))
		return elem*n + uint64(wordSize)
	default:
		return uint64(l.size.TotalSize()) * n
	}
}

func (l List) checkIndex(i int) {
	if i < 0 || i >= l.Len() {
		panic(fmt.Sprintf("list index out of range [%d] with length %d", i, l.Len()))
	}
}

func (l List) elementAddress(i int) address {
	addr, _ := l.off.element(int32(i), l.size.TotalSize())
	return addr
}

// primitiveAddress returns the address of element i when each element has at
// least sz data bytes. Composite lists expose the head of each element's data
// section.
func (l List) primitiveAddress(i int, sz Size) (address, bool) {
	l.checkIndex(i)
	if l.flags&isBitList != 0 || l.size.DataSize < sz {
		return 0, false
	}
	return l.elementAddress(i), true
}

// pointerAddress returns the address of the first pointer of element i.
func (l List) pointerAddress(i int) (address, bool) {
	l.checkIndex(i)
	if l.flags&isBitList != 0 || l.size.PointerCount == 0 {
		return 0, false
	}
	return l.elementAddress(i).addOffset(DataOffset(l.size.DataSize)), true
}

// Bytes returns the memory holding the elements of a list of scalars or bits.
// It returns nil for pointer and composite lists.
func (l List) Bytes() []byte {
	if !l.IsValid() {
		return nil
	}
	switch l.ElementSize() {
	case PointerElement, CompositeElement:
		return nil
	}
	return l.seg.slice(l.off, l.byteLen())
}

// Struct returns element i viewed as a struct.
func (l List) Struct(i int) Struct {
	l.checkIndex(i)
	if l.flags&isBitList != 0 {
		return Struct{}
	}
	return Struct{
		seg:        l.seg,
		off:        l.elementAddress(i),
		size:       l.size,
		depthLimit: l.depthLimit,
		flags:      isListMember,
	}
}

// SetStruct copies s into element i.
func (l List) SetStruct(i int, s Struct) error {
	dst := l.Struct(i)
	if !dst.IsValid() {
		return fmt.Errorf("set struct in %v list: %w", l.ElementSize(), ErrWrongPointerType)
	}
	return dst.CopyFrom(s)
}

func (l List) String() string {
	if !l.IsValid() {
		return "<nil list>"
	}
	return fmt.Sprintf("list(seg=%d off=%#x elem=%v len=%d)", l.seg.id, l.off, l.ElementSize(), l.length)
}

func formatList(n int, at func(i int) string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(at(i))
	}
	sb.WriteByte(']')
	return sb.String()
}
