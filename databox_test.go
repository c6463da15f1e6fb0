package flatptr_test

import (
	"fmt"
	"testing"

	"github.com/rawbytedev/flatptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DataBox is a hand-written binding of the shape a schema compiler emits for
// a record holding one Data field.
type DataBox struct{ flatptr.Struct }

var dataBoxSize = flatptr.ObjectSize{DataSize: 0, PointerCount: 1}

func NewDataBox(seg *flatptr.Segment) (DataBox, error) {
	st, err := flatptr.NewStruct(seg, dataBoxSize)
	return DataBox{st}, err
}

func NewRootDataBox(seg *flatptr.Segment) (DataBox, error) {
	st, err := flatptr.NewRootStruct(seg, dataBoxSize)
	return DataBox{st}, err
}

func ReadRootDataBox(msg *flatptr.Message) (DataBox, error) {
	p, err := msg.Root()
	return DataBox{p.Struct()}, err
}

func (b DataBox) AdoptValue(o *flatptr.Orphan) error    { return b.Adopt(0, o) }
func (b DataBox) DisownValue() (*flatptr.Orphan, error) { return b.Disown(0) }
func (b DataBox) Value() ([]byte, error)                { return b.Data(0) }
func (b DataBox) HasValue() bool                        { return b.HasPtr(0) }
func (b DataBox) InitValue(n int) ([]byte, error)       { return b.InitData(0, n) }
func (b DataBox) SetValue(v []byte) error               { return b.SetData(0, v) }
func (b DataBox) SetValuePtr(p flatptr.Ptr) error       { return b.CopyPtr(0, p) }
func (b DataBox) ValuePtr() (flatptr.Ptr, error)        { return b.Ptr(0) }
func (b DataBox) String() string                        { return "DataBox_" + b.Struct.String() }

func newBox(t *testing.T) (*flatptr.Message, DataBox) {
	t.Helper()
	msg, seg, err := flatptr.NewMessage(flatptr.SingleSegment(nil))
	require.NoError(t, err)
	box, err := NewRootDataBox(seg)
	require.NoError(t, err)
	return msg, box
}

func TestDataBoxSetAndGet(t *testing.T) {
	msg, box := newBox(t)
	assert.False(t, box.HasValue())
	v, err := box.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, box.SetValue([]byte("payload")))
	assert.True(t, box.HasValue())

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := flatptr.Unmarshal(data)
	require.NoError(t, err)
	got, err := ReadRootDataBox(out)
	require.NoError(t, err)
	v, err = got.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), v)
}

func TestDataBoxInit(t *testing.T) {
	_, box := newBox(t)
	buf, err := box.InitValue(4)
	require.NoError(t, err)
	copy(buf, []byte{1, 2, 3, 4})

	v, err := box.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, v)

	buf, err = box.InitValue(0)
	require.NoError(t, err)
	assert.Empty(t, buf)
	assert.True(t, box.HasValue(), "an empty blob is still a value")
}

func TestDataBoxDisownAdopt(t *testing.T) {
	msg, box := newBox(t)
	require.NoError(t, box.SetValue([]byte("moved")))

	o, err := box.DisownValue()
	require.NoError(t, err)
	assert.False(t, box.HasValue())
	assert.False(t, o.IsNull())

	seg, err := msg.Segment(0)
	require.NoError(t, err)
	other, err := NewDataBox(seg)
	require.NoError(t, err)
	require.NoError(t, other.AdoptValue(o))
	v, err := other.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("moved"), v)

	assert.True(t, o.IsNull())
	require.ErrorIs(t, box.AdoptValue(o), flatptr.ErrOrphanUsed)
}

func TestDataBoxAdoptNew(t *testing.T) {
	msg, box := newBox(t)
	seg, err := msg.Segment(0)
	require.NoError(t, err)
	o, err := flatptr.NewOrphanData(seg, 3)
	require.NoError(t, err)
	copy(o.Ptr().Data(), "abc")

	require.NoError(t, box.AdoptValue(o))
	v, err := box.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	require.NoError(t, box.AdoptValue(nil))
	assert.False(t, box.HasValue())
}

func TestDataBoxAdoptForeign(t *testing.T) {
	_, box := newBox(t)
	_, seg2, err := flatptr.NewMessage(flatptr.SingleSegment(nil))
	require.NoError(t, err)
	o, err := flatptr.NewOrphanData(seg2, 1)
	require.NoError(t, err)
	require.ErrorIs(t, box.AdoptValue(o), flatptr.ErrForeignOrphan)
	assert.False(t, box.HasValue())
}

func TestDataBoxSetForeignPtrCopies(t *testing.T) {
	_, box := newBox(t)
	_, seg2, err := flatptr.NewMessage(flatptr.SingleSegment(nil))
	require.NoError(t, err)
	src, err := flatptr.NewData(seg2, []byte("copied"))
	require.NoError(t, err)

	require.NoError(t, box.SetValuePtr(src.ToPtr()))
	copy(src.ToPtr().Data(), "XXXXXX")

	v, err := box.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("copied"), v)
}

func TestDataBoxSetValuePtrSameMessage(t *testing.T) {
	_, box := newBox(t)
	src, err := flatptr.NewData(box.Segment(), []byte("shared"))
	require.NoError(t, err)

	require.NoError(t, box.SetValuePtr(src.ToPtr()))
	copy(src.ToPtr().Data(), "XXXXXX")

	v, err := box.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), v)
}

func TestDataBoxAdoptAcrossSegments(t *testing.T) {
	msg, seg, err := flatptr.NewMessage(flatptr.MultiSegment([][]byte{make([]byte, 0, 8)}))
	require.NoError(t, err)
	box, err := NewRootDataBox(seg)
	require.NoError(t, err)
	o, err := flatptr.NewOrphanData(seg, 2000)
	require.NoError(t, err)
	o.Ptr().Data()[1999] = 7
	require.NoError(t, box.AdoptValue(o))
	require.Greater(t, msg.NumSegments(), 2)

	data, err := msg.Marshal()
	require.NoError(t, err)
	out, err := flatptr.Unmarshal(data)
	require.NoError(t, err)
	got, err := ReadRootDataBox(out)
	require.NoError(t, err)
	v, err := got.Value()
	require.NoError(t, err)
	require.Len(t, v, 2000)
	assert.Equal(t, byte(7), v[1999])
}

func ExampleStruct_InitData() {
	msg, seg, err := flatptr.NewMessage(flatptr.SingleSegment(nil))
	if err != nil {
		panic(err)
	}
	box, err := NewRootDataBox(seg)
	if err != nil {
		panic(err)
	}
	buf, _ := box.InitValue(3)
	copy(buf, "hey")

	data, _ := msg.Marshal()
	out, _ := flatptr.Unmarshal(data)
	got, _ := ReadRootDataBox(out)
	v, _ := got.Value()
	fmt.Printf("%d bytes on the wire, value %q\n", len(data), v)
	// Output: 32 bytes on the wire, value "hey"
}
