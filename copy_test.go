package flatptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree fills seg's message with a root struct that references every kind
// of object.
func buildTree(t testing.TB, seg *Segment) Struct {
	t.Helper()
	root, err := NewRootStruct(seg, ObjectSize{DataSize: 16, PointerCount: 6})
	require.NoError(t, err)
	root.SetUint64(0, 0xfeedface)
	root.SetBit(64, true)

	require.NoError(t, root.SetText(0, "tree"))

	bits, err := NewBitList(seg, 5)
	require.NoError(t, err)
	bits.Set(3, true)
	require.NoError(t, root.SetPtr(1, bits.ToPtr()))

	sl, err := NewStructList(seg, ObjectSize{DataSize: 8, PointerCount: 1}, 2)
	require.NoError(t, err)
	sl.At(0).SetUint64(0, 1)
	require.NoError(t, sl.At(1).SetData(0, []byte{0xaa, 0xbb}))
	require.NoError(t, root.SetPtr(2, sl.ToPtr()))

	tl, err := NewTextList(seg, 2)
	require.NoError(t, err)
	require.NoError(t, tl.Set(0, "x"))
	require.NoError(t, tl.Set(1, "yz"))
	require.NoError(t, root.SetPtr(3, tl.ToPtr()))

	require.NoError(t, root.SetPtr(4, NewInterface(seg, 12).ToPtr()))
	return root
}

func checkTree(t testing.TB, root Struct) {
	t.Helper()
	assert.Equal(t, uint64(0xfeedface), root.Uint64(0))
	assert.True(t, root.Bit(64))

	txt, err := root.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "tree", txt)

	p, err := root.Ptr(1)
	require.NoError(t, err)
	bits := BitList{p.List()}
	require.Equal(t, 5, bits.Len())
	assert.True(t, bits.At(3))
	assert.False(t, bits.At(4))

	p, err = root.Ptr(2)
	require.NoError(t, err)
	sl := StructList{p.List()}
	require.Equal(t, 2, sl.Len())
	assert.Equal(t, uint64(1), sl.At(0).Uint64(0))
	b, err := sl.At(1).Data(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb}, b)

	p, err = root.Ptr(3)
	require.NoError(t, err)
	assert.Equal(t, `["x", "yz"]`, TextList{p.List()}.String())

	p, err = root.Ptr(4)
	require.NoError(t, err)
	assert.Equal(t, CapabilityID(12), p.Interface().Capability())

	assert.False(t, root.HasPtr(5))
}

func TestCopyAcrossMessages(t *testing.T) {
	_, src := smallSegments(t)
	root := buildTree(t, src)

	dstMsg, dst := newTestMessage(t)
	c, err := Copy(dst, root.ToPtr())
	require.NoError(t, err)
	require.NoError(t, dstMsg.SetRoot(c))
	assert.Equal(t, 1, dstMsg.NumSegments())

	got, err := dstMsg.Root()
	require.NoError(t, err)
	checkTree(t, got.Struct())
}

func TestSetRootFromOtherMessage(t *testing.T) {
	_, src := newTestMessage(t)
	root := buildTree(t, src)

	dstMsg, _ := smallSegments(t)
	require.NoError(t, dstMsg.SetRoot(root.ToPtr()))

	data, err := dstMsg.Marshal()
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	got, err := out.Root()
	require.NoError(t, err)
	checkTree(t, got.Struct())
}

func TestCopyNull(t *testing.T) {
	_, seg := newTestMessage(t)
	p, err := Copy(seg, Ptr{})
	require.NoError(t, err)
	assert.False(t, p.IsValid())
}

func TestSetPtrSameMessageLinks(t *testing.T) {
	_, seg := newTestMessage(t)
	a, err := NewRootStruct(seg, ObjectSize{PointerCount: 2})
	require.NoError(t, err)
	child, err := NewStruct(seg, ObjectSize{DataSize: 8})
	require.NoError(t, err)
	require.NoError(t, a.SetPtr(0, child.ToPtr()))
	require.NoError(t, a.SetPtr(1, child.ToPtr()))

	child.SetUint64(0, 3)
	p0, err := a.Ptr(0)
	require.NoError(t, err)
	p1, err := a.Ptr(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p0.Struct().Uint64(0))
	assert.Equal(t, uint64(3), p1.Struct().Uint64(0))
}
