package flatptr

import (
	"bytes"
	"testing"
)

func BenchmarkNewMessage(b *testing.B) {
	buf := make([]byte, 0, 4096)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, seg, _ := NewMessage(SingleSegment(buf[:0]))
		s, _ := NewRootStruct(seg, ObjectSize{DataSize: 8, PointerCount: 2})
		s.SetUint64(0, uint64(i))
		_ = s.SetText(0, "benchmark")
		_, _ = s.InitData(1, 64)
	}
}

func BenchmarkMarshal(b *testing.B) {
	_, seg := newTestMessage(b)
	buildTree(b, seg)
	msg := seg.Message()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = msg.Marshal()
	}
}

func BenchmarkUnmarshalAndRead(b *testing.B) {
	_, seg := newTestMessage(b)
	buildTree(b, seg)
	data, _ := seg.Message().Marshal()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		msg, _ := Unmarshal(data)
		root, _ := msg.Root()
		_, _ = root.Struct().Text(0)
	}
}

func BenchmarkPack(b *testing.B) {
	_, seg := newTestMessage(b)
	buildTree(b, seg)
	data, _ := seg.Message().Marshal()
	dst := make([]byte, 0, len(data)*2)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		dst = Pack(dst[:0], data)
	}
}

func BenchmarkPackedDecode(b *testing.B) {
	_, seg := newTestMessage(b)
	buildTree(b, seg)
	packed, _ := seg.Message().MarshalPacked()
	b.SetBytes(int64(len(packed)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = NewPackedDecoder(bytes.NewReader(packed)).Decode()
	}
}

func BenchmarkCanonicalize(b *testing.B) {
	_, seg := newTestMessage(b)
	root := buildTree(b, seg)
	_ = root.SetPtr(4, Ptr{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Canonicalize(root)
	}
}
