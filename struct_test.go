package flatptr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessage(t testing.TB) (*Message, *Segment) {
	t.Helper()
	msg, seg, err := NewMessage(SingleSegment(nil))
	require.NoError(t, err)
	return msg, seg
}

func TestNewMessageReservesRoot(t *testing.T) {
	msg, seg := newTestMessage(t)
	assert.Equal(t, SegmentID(0), seg.ID())
	assert.Len(t, seg.Data(), 8)
	assert.Equal(t, 1, msg.NumSegments())

	root, err := msg.Root()
	require.NoError(t, err)
	assert.False(t, root.IsValid())
}

func TestNewMessageRejectsUsedArena(t *testing.T) {
	_, _, err := NewMessage(SingleSegment(make([]byte, 8)))
	require.ErrorIs(t, err, ErrArenaNotEmpty)
}

func TestStructDataSection(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 24})
	require.NoError(t, err)

	s.SetUint8(0, 0xab)
	s.SetUint16(2, 0xbeef)
	s.SetUint32(4, 0xdeadbeef)
	s.SetUint64(8, math.MaxUint64-1)
	s.SetFloat64(16, 3.25)

	assert.Equal(t, uint8(0xab), s.Uint8(0))
	assert.Equal(t, uint16(0xbeef), s.Uint16(2))
	assert.Equal(t, uint32(0xdeadbeef), s.Uint32(4))
	assert.Equal(t, uint64(math.MaxUint64-1), s.Uint64(8))
	assert.Equal(t, 3.25, s.Float64(16))

	s.SetFloat32(16, 1.5)
	assert.Equal(t, float32(1.5), s.Float32(16))
}

func TestStructOutsideDataSection(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)

	s.SetUint64(8, 42)
	s.SetUint32(6, 7)
	assert.Equal(t, uint64(0), s.Uint64(8))
	assert.Equal(t, uint32(0), s.Uint32(6))
	assert.False(t, s.HasPtr(0), "write past the data section must not reach the pointer section")

	var zero Struct
	assert.Equal(t, uint64(0), zero.Uint64(0))
	zero.SetUint64(0, 1)
}

func TestStructBits(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)

	s.SetBit(0, true)
	s.SetBit(13, true)
	s.SetBit(63, true)
	assert.True(t, s.Bit(0))
	assert.False(t, s.Bit(1))
	assert.True(t, s.Bit(13))
	assert.True(t, s.Bit(63))
	assert.False(t, s.Bit(64))
	assert.Equal(t, uint64(1|1<<13|1<<63), s.Uint64(0))

	s.SetBit(13, false)
	assert.False(t, s.Bit(13))
}

func TestStructTextAndData(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{PointerCount: 3})
	require.NoError(t, err)

	require.NoError(t, s.SetText(0, "hello"))
	require.NoError(t, s.SetData(1, []byte{1, 2, 3}))

	txt, err := s.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", txt)

	b, err := s.Data(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	b, err = s.Data(2)
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, s.SetData(1, nil))
	assert.False(t, s.HasPtr(1))
}

func TestStructDataWrongType(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)
	require.NoError(t, s.SetPtr(0, child.ToPtr()))

	_, err = s.Data(0)
	require.ErrorIs(t, err, ErrWrongPointerType)
	_, err = s.Text(0)
	require.ErrorIs(t, err, ErrWrongPointerType)
}

func TestStructPointerSection(t *testing.T) {
	msg, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8, PointerCount: 2})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)
	child.SetUint64(0, 99)

	require.NoError(t, s.SetPtr(1, child.ToPtr()))
	assert.False(t, s.HasPtr(0))
	assert.True(t, s.HasPtr(1))
	assert.False(t, s.HasPtr(2))

	p, err := s.Ptr(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), p.Struct().Uint64(0))

	p, err = s.Ptr(7)
	require.NoError(t, err)
	assert.False(t, p.IsValid())

	require.ErrorIs(t, s.SetPtr(2, child.ToPtr()), ErrOutOfBounds)

	root, err := msg.Root()
	require.NoError(t, err)
	assert.Equal(t, s.Size(), root.Struct().Size())
}

func TestStructZeroSized(t *testing.T) {
	msg, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{})
	require.NoError(t, err)
	assert.Equal(t, rawPointer(0xfffffffc), seg.readRawPointer(0))

	root, err := msg.Root()
	require.NoError(t, err)
	require.True(t, root.IsValid())
	assert.Equal(t, ObjectSize{}, root.Struct().Size())
	assert.Equal(t, s.ToPtr().kind, root.kind)
}

func TestStructInvalidSize(t *testing.T) {
	_, seg := newTestMessage(t)
	_, err := NewStruct(seg, ObjectSize{DataSize: 3})
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestStructInitData(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)

	buf, err := s.InitData(0, 5)
	require.NoError(t, err)
	require.Len(t, buf, 5)
	assert.Equal(t, make([]byte, 5), buf)
	copy(buf, "abcde")

	got, err := s.Data(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), got)

	_, err = s.InitData(0, -1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestStructClearPtr(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)
	child.SetUint64(0, 0x1122334455667788)
	require.NoError(t, child.SetText(0, "gone"))
	require.NoError(t, s.SetPtr(0, child.ToPtr()))

	require.NoError(t, s.ClearPtr(0))
	assert.False(t, s.HasPtr(0))
	assert.Equal(t, uint64(0), child.Uint64(0))
	assert.False(t, child.HasPtr(0))

	// Everything after the root pointer and root struct is zero again.
	data := seg.Data()
	assert.Equal(t, make([]byte, len(data)-16), data[16:])
}

func TestStructCopyFrom(t *testing.T) {
	_, seg := newTestMessage(t)
	src, err := NewStruct(seg, ObjectSize{DataSize: 16, PointerCount: 2})
	require.NoError(t, err)
	src.SetUint64(0, 1)
	src.SetUint64(8, 2)
	require.NoError(t, src.SetText(0, "a"))
	require.NoError(t, src.SetText(1, "b"))

	_, other := newTestMessage(t)
	dst, err := NewRootStruct(other, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)
	require.NoError(t, dst.CopyFrom(src))

	assert.Equal(t, uint64(1), dst.Uint64(0))
	assert.Equal(t, uint64(0), dst.Uint64(8))
	txt, err := dst.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "a", txt)
}

func TestStructCopyFromClearsTail(t *testing.T) {
	_, seg := newTestMessage(t)
	small, err := NewStruct(seg, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)
	small.SetUint64(0, 5)
	require.NoError(t, small.SetText(0, "new"))

	l, err := NewCompositeList(seg, ObjectSize{DataSize: 16, PointerCount: 2}, 1)
	require.NoError(t, err)
	elem := l.Struct(0)
	elem.SetUint64(0, 1)
	elem.SetUint64(8, 2)
	require.NoError(t, elem.SetText(0, "old"))
	require.NoError(t, elem.SetText(1, "stale"))

	require.NoError(t, l.SetStruct(0, small))
	assert.Equal(t, uint64(5), elem.Uint64(0))
	assert.Zero(t, elem.Uint64(8))
	txt, err := elem.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "new", txt)
	assert.False(t, elem.HasPtr(1))

	// A null source clears the element.
	require.NoError(t, l.SetStruct(0, Struct{}))
	assert.Zero(t, elem.Uint64(0))
	assert.False(t, elem.HasPtr(0))
}

func TestStructCopyPtr(t *testing.T) {
	_, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{PointerCount: 2})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)
	child.SetUint64(0, 3)
	require.NoError(t, child.SetText(0, "kept"))

	require.NoError(t, s.CopyPtr(0, child.ToPtr()))
	require.NoError(t, s.SetPtr(1, child.ToPtr()))
	child.SetUint64(0, 4)
	require.NoError(t, child.SetText(0, "gone"))

	p, err := s.Ptr(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p.Struct().Uint64(0))
	txt, err := p.Struct().Text(0)
	require.NoError(t, err)
	assert.Equal(t, "kept", txt)

	linked, err := s.Ptr(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), linked.Struct().Uint64(0))

	require.NoError(t, s.CopyPtr(0, Ptr{}))
	assert.False(t, s.HasPtr(0))
	require.ErrorIs(t, s.CopyPtr(2, child.ToPtr()), ErrOutOfBounds)
}
