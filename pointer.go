package flatptr

import "fmt"

// Pointer word layout (little-endian, bit 0 is the least significant):
//
//	struct: [0:2)=0 [2:32)=offset [32:48)=data words [48:64)=pointers
//	list:   [0:2)=1 [2:32)=offset [32:35)=element size [35:64)=count
//	far:    [0:2)=2 [2]=double [3:32)=pad word [32:64)=segment id
//	other:  [0:2)=3 [2:32)=0 [32:64)=capability index
//
// Offsets are signed word counts from the end of the pointer word.
type rawPointer uint64

type pointerType int

const (
	structPointer pointerType = iota
	listPointer
	farPointer
	doubleFarPointer
	otherPointer
)

func (t pointerType) String() string {
	switch t {
	case structPointer:
		return "struct"
	case listPointer:
		return "list"
	case farPointer:
		return "far"
	case doubleFarPointer:
		return "double-far"
	case otherPointer:
		return "other"
	default:
		return fmt.Sprintf("pointerType(%d)", int(t))
	}
}

// pointerOffset is a signed 30-bit word offset.
type pointerOffset int32

const (
	maxPointerOffset pointerOffset = 1<<29 - 1
	minPointerOffset pointerOffset = -1 << 29
)

// resolve returns the address the offset refers to when read from a pointer
// stored at paddr.
func (off pointerOffset) resolve(paddr address) (address, bool) {
	t := int64(paddr) + int64(wordSize) + int64(off)*int64(wordSize)
	if t < 0 || t > int64(maxSegmentSize) {
		return 0, false
	}
	return address(t), true
}

func makePointerOffset(paddr, target address) (pointerOffset, bool) {
	d := (int64(target) - int64(paddr) - int64(wordSize)) / int64(wordSize)
	if d < int64(minPointerOffset) || d > int64(maxPointerOffset) {
		return 0, false
	}
	return pointerOffset(d), true
}

// ElementSize is the element encoding of a list.
type ElementSize uint8

const (
	VoidElement ElementSize = iota
	BitElement
	ByteElement
	TwoByteElement
	FourByteElement
	EightByteElement
	PointerElement
	CompositeElement
)

var elementSizeNames = [...]string{"void", "bit", "byte", "2 bytes", "4 bytes", "8 bytes", "pointer", "composite"}

func (e ElementSize) String() string {
	if int(e) < len(elementSizeNames) {
		return elementSizeNames[e]
	}
	return fmt.Sprintf("ElementSize(%d)", uint8(e))
}

// objectSize returns the per-element size of a non-bit, non-composite list.
func (e ElementSize) objectSize() ObjectSize {
	switch e {
	case ByteElement:
		return ObjectSize{DataSize: 1}
	case TwoByteElement:
		return ObjectSize{DataSize: 2}
	case FourByteElement:
		return ObjectSize{DataSize: 4}
	case EightByteElement:
		return ObjectSize{DataSize: 8}
	case PointerElement:
		return ObjectSize{PointerCount: 1}
	default:
		return ObjectSize{}
	}
}

func rawStructPointer(off pointerOffset, sz ObjectSize) rawPointer {
	return rawPointer(structPointer) |
		rawPointer(uint32(off)<<2) |
		rawPointer(sz.dataWordCount())<<32 |
		rawPointer(sz.PointerCount)<<48
}

func rawListPointer(off pointerOffset, e ElementSize, n int32) rawPointer {
	return rawPointer(listPointer) |
		rawPointer(uint32(off)<<2) |
		rawPointer(e&7)<<32 |
		rawPointer(uint32(n))<<35
}

func rawFarPointer(seg SegmentID, pad address) rawPointer {
	return rawPointer(farPointer) | rawPointer(uint32(pad)&^7) | rawPointer(seg)<<32
}

func rawDoubleFarPointer(seg SegmentID, pad address) rawPointer {
	return rawPointer(farPointer) | 4 | rawPointer(uint32(pad)&^7) | rawPointer(seg)<<32
}

func rawInterfacePointer(cap CapabilityID) rawPointer {
	return 3 | rawPointer(cap)<<32
}

func (p rawPointer) pointerType() pointerType {
	switch p & 3 {
	case 0:
		return structPointer
	case 1:
		return listPointer
	case 2:
		if p&4 != 0 {
			return doubleFarPointer
		}
		return farPointer
	default:
		return otherPointer
	}
}

func (p rawPointer) offset() pointerOffset {
	return pointerOffset(int32(uint32(p)) >> 2)
}

func (p rawPointer) withOffset(off pointerOffset) rawPointer {
	return p&^0xfffffffc | rawPointer(uint32(off)<<2)
}

func (p rawPointer) structSize() ObjectSize {
	return ObjectSize{
		DataSize:     Size(uint16(p>>32)) * wordSize,
		PointerCount: uint16(p >> 48),
	}
}

func (p rawPointer) elementSize() ElementSize { return ElementSize((p >> 32) & 7) }

// numListElements is the element count, or the word count for composite lists.
func (p rawPointer) numListElements() int32 { return int32(p >> 35) }

// totalListSize returns the bytes spanned by the list, including the tag word
// of a composite list.
func (p rawPointer) totalListSize() (Size, bool) {
	n := p.numListElements()
	switch p.elementSize() {
	case VoidElement:
		return 0, true
	case BitElement:
		return Size((int64(n) + 7) / 8).padToWord(), true
	case CompositeElement:
		sz, ok := wordSize.times(n)
		if !ok {
			return 0, false
		}
		return sz.plus(wordSize)
	default:
		sz, ok := p.elementSize().objectSize().TotalSize().times(n)
		if !ok {
			return 0, false
		}
		return sz.padToWord(), true
	}
}

func (p rawPointer) farAddress() address   { return address(uint32(p) &^ 7) }
func (p rawPointer) farSegment() SegmentID { return SegmentID(p >> 32) }

func (p rawPointer) otherPointerType() uint32      { return uint32(p) >> 2 }
func (p rawPointer) capabilityIndex() CapabilityID { return CapabilityID(p >> 32) }

func (p rawPointer) String() string {
	if p == 0 {
		return "null"
	}
	switch t := p.pointerType(); t {
	case structPointer:
		return fmt.Sprintf("struct(off=%d, sz=%v)", p.offset(), p.structSize())
	case listPointer:
		return fmt.Sprintf("list(off=%d, elem=%v, n=%d)", p.offset(), p.elementSize(), p.numListElements())
	case farPointer, doubleFarPointer:
		return fmt.Sprintf("%v(seg=%d, pad=%#x)", t, p.farSegment(), p.farAddress())
	default:
		return fmt.Sprintf("other(type=%d, cap=%d)", p.otherPointerType(), p.capabilityIndex())
	}
}
