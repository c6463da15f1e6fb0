package flatptr

import (
	"fmt"
	"math"
)

// Size is a byte count or byte length inside a segment.
type Size uint32

const (
	wordSize Size = 8

	// maxSegmentSize is the largest segment the 30-bit word offsets of a
	// pointer can address.
	maxSegmentSize Size = math.MaxUint32 &^ 7
)

// DataOffset is a byte offset into a struct's data section.
type DataOffset uint32

// BitOffset is a bit offset into a struct's data section.
type BitOffset uint32

func (bit BitOffset) offset() DataOffset { return DataOffset(bit / 8) }
func (bit BitOffset) mask() byte         { return 1 << (bit % 8) }

func (sz Size) padToWord() Size {
	n := uint64(sz)
	return Size((n + uint64(wordSize) - 1) &^ (uint64(wordSize) - 1))
}

func (sz Size) words() int32 { return int32(sz / wordSize) }

// times returns sz*n, reporting false on overflow.
func (sz Size) times(n int32) (Size, bool) {
	if n < 0 {
		return 0, false
	}
	x := uint64(sz) * uint64(n)
	return Size(x), x <= uint64(maxSegmentSize)
}

func (sz Size) plus(x Size) (Size, bool) {
	y := uint64(sz) + uint64(x)
	return Size(y), y <= uint64(maxSegmentSize)
}

// address is a byte offset from the start of a segment.
type address uint32

func (a address) addSize(sz Size) (address, bool) {
	x := uint64(a) + uint64(sz)
	return address(x), x <= uint64(maxSegmentSize)
}

func (a address) addOffset(off DataOffset) address { return a + address(off) }

// element returns the address of the i-th element of size sz starting at a.
func (a address) element(i int32, sz Size) (address, bool) {
	x, ok := sz.times(i)
	if !ok {
		return 0, false
	}
	return a.addSize(x)
}

// ObjectSize records the section sizes of a struct.
type ObjectSize struct {
	DataSize     Size // must be a multiple of 8
	PointerCount uint16
}

func (sz ObjectSize) isZero() bool { return sz.DataSize == 0 && sz.PointerCount == 0 }

func (sz ObjectSize) isValid() bool {
	return sz.DataSize%wordSize == 0 && sz.DataSize <= math.MaxUint16*wordSize
}

func (sz ObjectSize) pointerSize() Size { return wordSize * Size(sz.PointerCount) }

// TotalSize returns the number of bytes the struct occupies.
func (sz ObjectSize) TotalSize() Size { return sz.DataSize + sz.pointerSize() }

func (sz ObjectSize) dataWordCount() uint16 { return uint16(sz.DataSize / wordSize) }
func (sz ObjectSize) totalWordCount() int32 { return sz.TotalSize().words() }

func (sz ObjectSize) String() string {
	return fmt.Sprintf("{datasz=%d ptrs=%d}", sz.DataSize, sz.PointerCount)
}
