package flatptr

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLayout(t *testing.T) {
	msg, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)
	s.SetUint64(0, 0x0102030405060708)

	data, err := msg.Marshal()
	require.NoError(t, err)
	want := []byte{
		0, 0, 0, 0, 2, 0, 0, 0, // one segment of two words
		0, 0, 0, 0, 1, 0, 0, 0, // root: struct, offset 0, one data word
		8, 7, 6, 5, 4, 3, 2, 1,
	}
	assert.Equal(t, want, data)
}

func TestUnmarshalRoundTrip(t *testing.T) {
	msg, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8, PointerCount: 2})
	require.NoError(t, err)
	s.SetUint32(4, 77)
	require.NoError(t, s.SetText(0, "round trip"))
	l, err := NewInt16List(seg, 3)
	require.NoError(t, err)
	l.Set(2, -300)
	require.NoError(t, s.SetPtr(1, l.ToPtr()))

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)

	root, err := out.Root()
	require.NoError(t, err)
	rs := root.Struct()
	assert.Equal(t, uint32(77), rs.Uint32(4))
	txt, err := rs.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "round trip", txt)
	p, err := rs.Ptr(1)
	require.NoError(t, err)
	assert.Equal(t, int16(-300), Int16List{p.List()}.At(2))
}

func TestUnmarshalErrors(t *testing.T) {
	tooMany := make([]byte, 8)
	binary.LittleEndian.PutUint32(tooMany, MaxSegments)

	truncated := []byte{0, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, io.ErrUnexpectedEOF},
		{"short header", []byte{1, 0, 0, 0}, io.ErrUnexpectedEOF},
		{"too many segments", tooMany, ErrTooManySegments},
		{"truncated segment", truncated, io.ErrUnexpectedEOF},
		{"empty first segment", []byte{0, 0, 0, 0, 0, 0, 0, 0}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

// smallSegments returns a message whose first segment holds only the root
// pointer, forcing every object into later segments.
func smallSegments(t testing.TB) (*Message, *Segment) {
	t.Helper()
	msg, seg, err := NewMessage(MultiSegment([][]byte{make([]byte, 0, 8)}))
	require.NoError(t, err)
	return msg, seg
}

func TestFarPointer(t *testing.T) {
	msg, seg := smallSegments(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)
	s.SetUint64(0, 1234)
	assert.Equal(t, SegmentID(1), s.Segment().ID())
	assert.Equal(t, farPointer, seg.readRawPointer(0).pointerType())

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumSegments())
	root, err := out.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), root.Struct().Uint64(0))
}

func TestDoubleFarPointer(t *testing.T) {
	msg, seg := smallSegments(t)
	// Fill the new segment exactly so no landing pad fits next to the struct.
	s, err := NewStruct(seg, ObjectSize{DataSize: minSegmentGrowth})
	require.NoError(t, err)
	s.SetUint64(minSegmentGrowth-8, 42)
	require.NoError(t, msg.SetRoot(s.ToPtr()))
	assert.Equal(t, doubleFarPointer, seg.readRawPointer(0).pointerType())
	assert.Equal(t, 3, msg.NumSegments())

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	root, err := out.Root()
	require.NoError(t, err)
	assert.Equal(t, ObjectSize{DataSize: minSegmentGrowth}, root.Struct().Size())
	assert.Equal(t, uint64(42), root.Struct().Uint64(minSegmentGrowth-8))
}

func TestBadLandingPad(t *testing.T) {
	seg0 := make([]byte, 8)
	binary.LittleEndian.PutUint64(seg0, uint64(rawFarPointer(1, 0)))
	seg1 := make([]byte, 8)
	binary.LittleEndian.PutUint64(seg1, uint64(rawFarPointer(0, 0)))
	msg := &Message{Arena: MultiSegment([][]byte{seg0, seg1})}

	_, err := msg.Root()
	require.ErrorIs(t, err, ErrBadLandingPad)
}

func TestStructOutOfBounds(t *testing.T) {
	seg0 := make([]byte, 8)
	binary.LittleEndian.PutUint64(seg0, uint64(rawStructPointer(3, ObjectSize{DataSize: 8})))
	msg := &Message{Arena: SingleSegment(seg0)}

	_, err := msg.Root()
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMissingSegment(t *testing.T) {
	seg0 := make([]byte, 8)
	binary.LittleEndian.PutUint64(seg0, uint64(rawFarPointer(5, 0)))
	msg := &Message{Arena: SingleSegment(seg0)}

	_, err := msg.Root()
	require.ErrorIs(t, err, ErrNoSegment)
}

func TestTraverseLimit(t *testing.T) {
	msg, seg := newTestMessage(t)
	_, err := NewRootStruct(seg, ObjectSize{DataSize: 16})
	require.NoError(t, err)

	msg.ResetReadLimit(24)
	_, err = msg.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), msg.ReadLimiter().Remaining())

	_, err = msg.Root()
	require.ErrorIs(t, err, ErrTraverseLimit)

	msg.ReadLimiter().Unread(16)
	_, err = msg.Root()
	require.NoError(t, err)
}

func TestTraverseLimitVoidList(t *testing.T) {
	data := make([]byte, 8+8)
	binary.LittleEndian.PutUint32(data[4:], 1)
	// Root points at a list of 2^29-1 void elements occupying no space.
	binary.LittleEndian.PutUint64(data[8:], uint64(rawListPointer(-1, VoidElement, maxListElements)))

	msg, err := UnmarshalWith(data, ReadOptions{TraverseLimit: 1 << 20})
	require.NoError(t, err)
	_, err = msg.Root()
	require.ErrorIs(t, err, ErrTraverseLimit)
}

func TestTraverseLimitZeroSizedElements(t *testing.T) {
	// Root points at a composite list whose tag declares 2^29-1 elements
	// of zero size.
	data := make([]byte, 8+16)
	binary.LittleEndian.PutUint32(data[4:], 2)
	binary.LittleEndian.PutUint64(data[8:], uint64(rawListPointer(0, CompositeElement, 0)))
	binary.LittleEndian.PutUint64(data[16:], uint64(rawStructPointer(maxListElements, ObjectSize{})))

	msg, err := UnmarshalWith(data, ReadOptions{TraverseLimit: 1 << 20})
	require.NoError(t, err)
	_, err = msg.Root()
	require.ErrorIs(t, err, ErrTraverseLimit)

	// A word per element plus the tag.
	binary.LittleEndian.PutUint64(data[16:], uint64(rawStructPointer(100, ObjectSize{})))
	msg, err = UnmarshalWith(data, ReadOptions{TraverseLimit: 100*8 + 8})
	require.NoError(t, err)
	root, err := msg.Root()
	require.NoError(t, err)
	assert.Equal(t, 100, root.List().Len())
	assert.Zero(t, msg.ReadLimiter().Remaining())

	msg, err = UnmarshalWith(data, ReadOptions{TraverseLimit: 100*8 + 7})
	require.NoError(t, err)
	_, err = msg.Root()
	require.ErrorIs(t, err, ErrTraverseLimit)
}

func TestTraverseLimitVoidListPerWord(t *testing.T) {
	data := make([]byte, 8+8)
	binary.LittleEndian.PutUint32(data[4:], 1)
	binary.LittleEndian.PutUint64(data[8:], uint64(rawListPointer(-1, VoidElement, 1000)))

	msg, err := UnmarshalWith(data, ReadOptions{TraverseLimit: 1000 * 8})
	require.NoError(t, err)
	_, err = msg.Root()
	require.NoError(t, err)

	msg, err = UnmarshalWith(data, ReadOptions{TraverseLimit: 1000*8 - 1})
	require.NoError(t, err)
	_, err = msg.Root()
	require.ErrorIs(t, err, ErrTraverseLimit)
}

func TestDepthLimit(t *testing.T) {
	msg, seg := newTestMessage(t)
	parent, err := NewRootStruct(seg, ObjectSize{PointerCount: 1})
	require.NoError(t, err)
	for range 3 {
		child, err := NewStruct(seg, ObjectSize{PointerCount: 1})
		require.NoError(t, err)
		require.NoError(t, parent.SetPtr(0, child.ToPtr()))
		parent = child
	}

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := UnmarshalWith(data, ReadOptions{DepthLimit: 2})
	require.NoError(t, err)

	root, err := out.Root()
	require.NoError(t, err)
	a, err := root.Struct().Ptr(0)
	require.NoError(t, err)
	_, err = a.Struct().Ptr(0)
	require.ErrorIs(t, err, ErrDepthLimit)
}

func TestDecodedMessageIsWritable(t *testing.T) {
	msg, seg := newTestMessage(t)
	_, err := NewRootStruct(seg, ObjectSize{DataSize: 8, PointerCount: 1})
	require.NoError(t, err)
	data, err := msg.Marshal()
	require.NoError(t, err)
	orig := append([]byte(nil), data...)

	out, err := Unmarshal(data)
	require.NoError(t, err)
	root, err := out.Root()
	require.NoError(t, err)
	rs := root.Struct()
	rs.SetUint64(0, 5)
	require.NoError(t, rs.SetText(0, "appended"))
	assert.Equal(t, 2, out.NumSegments())
	assert.Len(t, data, len(orig), "the decoded buffer must not grow in place")

	again, err := out.Marshal()
	require.NoError(t, err)
	out2, err := Unmarshal(again)
	require.NoError(t, err)
	root, err = out2.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), root.Struct().Uint64(0))
	txt, err := root.Struct().Text(0)
	require.NoError(t, err)
	assert.Equal(t, "appended", txt)
}

func TestMessageReset(t *testing.T) {
	msg, seg := newTestMessage(t)
	_, err := NewRootStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)

	require.NoError(t, msg.Reset(SingleSegment(nil)))
	root, err := msg.Root()
	require.NoError(t, err)
	assert.False(t, root.IsValid())

	seg, err = msg.Segment(0)
	require.NoError(t, err)
	assert.Len(t, seg.Data(), 8)
}

func TestMarshalPackedRoundTrip(t *testing.T) {
	msg, seg := newTestMessage(t)
	s, err := NewRootStruct(seg, ObjectSize{DataSize: 64, PointerCount: 1})
	require.NoError(t, err)
	s.SetUint16(40, 9)
	require.NoError(t, s.SetText(0, "mostly zeroes"))

	plain, err := msg.Marshal()
	require.NoError(t, err)
	packed, err := msg.MarshalPacked()
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))

	out, err := UnmarshalPacked(packed)
	require.NoError(t, err)
	root, err := out.Root()
	require.NoError(t, err)
	assert.Equal(t, uint16(9), root.Struct().Uint16(40))
}

func TestUnmarshalPackedMaxMessageSize(t *testing.T) {
	msg, seg := newTestMessage(t)
	_, err := NewRootStruct(seg, ObjectSize{DataSize: 64})
	require.NoError(t, err)
	plain, err := msg.Marshal()
	require.NoError(t, err)
	packed, err := msg.MarshalPacked()
	require.NoError(t, err)

	_, err = UnmarshalPackedWith(packed, ReadOptions{MaxMessageSize: uint64(len(plain))})
	require.NoError(t, err)
	_, err = UnmarshalPackedWith(packed, ReadOptions{MaxMessageSize: uint64(len(plain)) - 8})
	require.ErrorIs(t, err, ErrMessageTooLarge)

	dec := NewPackedDecoder(bytes.NewReader(packed))
	dec.ReadOptions.MaxMessageSize = uint64(len(plain)) - 8
	_, err = dec.Decode()
	require.ErrorIs(t, err, ErrMessageTooLarge)
}
