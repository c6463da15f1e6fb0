package flatptr

import "fmt"

type ptrKind uint8

const (
	nonePtr ptrKind = iota
	structPtr
	listPtr
	interfacePtr
)

// A Ptr is a reference to a struct, a list, or a capability. The zero
// value is the null pointer.
type Ptr struct {
	seg        *Segment
	off        address
	lenOrCap   uint32
	size       ObjectSize
	depthLimit uint
	flags      uint8
	kind       ptrKind
}

// IsValid reports whether p is non-null.
func (p Ptr) IsValid() bool { return p.kind != nonePtr }

func (p Ptr) Segment() *Segment { return p.seg }

func (p Ptr) Message() *Message {
	if p.seg == nil {
		return nil
	}
	return p.seg.msg
}

// Struct converts p to a struct. It returns the zero Struct if p is not one.
func (p Ptr) Struct() Struct {
	if p.kind != structPtr {
		return Struct{}
	}
	return Struct{
		seg:        p.seg,
		off:        p.off,
		size:       p.size,
		depthLimit: p.depthLimit,
		flags:      structFlags(p.flags),
	}
}

// List converts p to a list. It returns the zero List if p is not one.
func (p Ptr) List() List {
	if p.kind != listPtr {
		return List{}
	}
	return List{
		seg:        p.seg,
		off:        p.off,
		length:     int32(p.lenOrCap),
		size:       p.size,
		depthLimit: p.depthLimit,
		flags:      listFlags(p.flags),
	}
}

// Interface converts p to a capability reference.
func (p Ptr) Interface() Interface {
	if p.kind != interfacePtr {
		return Interface{}
	}
	return Interface{seg: p.seg, cap: CapabilityID(p.lenOrCap)}
}

// Data returns the bytes of a byte list, or nil if p is not one.
func (p Ptr) Data() []byte {
	l := p.List()
	if !l.IsValid() || l.flags != 0 || l.size != (ObjectSize{DataSize: 1}) {
		return nil
	}
	return l.seg.slice(l.off, Size(l.length))
}

// Text returns the contents of a NUL-terminated byte list.
func (p Ptr) Text() string {
	b := p.Data()
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// startAddr is where the object's memory begins.
func (p Ptr) startAddr() address {
	if p.kind == listPtr && listFlags(p.flags)&isCompositeList != 0 {
		return p.off - address(wordSize)
	}
	return p.off
}

// rawWithOffset encodes p as a pointer word with the given offset.
func (p Ptr) rawWithOffset(off pointerOffset) rawPointer {
	switch p.kind {
	case structPtr:
		return rawStructPointer(off, p.size)
	case listPtr:
		return p.List().raw().withOffset(off)
	case interfacePtr:
		return rawInterfacePointer(CapabilityID(p.lenOrCap))
	default:
		return 0
	}
}

func (p Ptr) String() string {
	switch p.kind {
	case structPtr:
		return p.Struct().String()
	case listPtr:
		return p.List().String()
	case interfacePtr:
		return p.Interface().String()
	default:
		return "<nil>"
	}
}

// CapabilityID indexes a message's capability table.
type CapabilityID uint32

// Interface is a capability pointer. Only its index is carried.
type Interface struct {
	seg *Segment
	cap CapabilityID
}

// NewInterface returns a capability pointer in seg's message.
func NewInterface(seg *Segment, cap CapabilityID) Interface {
	return Interface{seg: seg, cap: cap}
}

func (i Interface) IsValid() bool            { return i.seg != nil }
func (i Interface) Capability() CapabilityID { return i.cap }

func (i Interface) ToPtr() Ptr {
	if !i.IsValid() {
		return Ptr{}
	}
	return Ptr{seg: i.seg, lenOrCap: uint32(i.cap), kind: interfacePtr}
}

func (i Interface) String() string {
	return fmt.Sprintf("<capability %d>", i.cap)
}
