package common

import (
	"math"
	"reflect"
	"testing"
	"testing/quick"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarUint(t *testing.T) {
	for _, x := range []uint64{0, 1, 0x7f, 0x80, 300, math.MaxUint32, math.MaxUint64} {
		b := WriteVarUint(nil, x)
		got, n := ReadVarUint(b)
		assert.Equal(t, len(b), n)
		assert.Equal(t, x, got)
	}
	assert.Equal(t, []byte{0xac, 0x02}, WriteVarUint(nil, 300))

	_, n := ReadVarUint([]byte{0x80, 0x80})
	assert.Zero(t, n, "truncated")
	over := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, n = ReadVarUint(over)
	assert.Zero(t, n, "longer than ten bytes")
}

func TestQuickVarUint(t *testing.T) {
	condition := func(x uint64) bool {
		got, n := ReadVarUint(WriteVarUint([]byte{}, x))
		return n > 0 && got == x
	}
	require.NoError(t, quick.Check(condition, nil))
}

func TestFixedBits(t *testing.T) {
	type myInt16 int16
	cases := []any{true, int8(-1), myInt16(-2), int32(-3), int64(-4),
		uint8(5), uint16(6), uint32(7), uint64(8), float32(1.5), float64(-2.25)}
	for _, c := range cases {
		src := reflect.ValueOf(c)
		dst := reflect.New(src.Type()).Elem()
		bits := FixedBits(src)
		if size := FixedSize(src.Kind()); size < 8 {
			assert.Less(t, bits, uint64(1)<<(8*size), src.Type().String())
		}
		SetFixedBits(dst, bits)
		assert.Equal(t, c, dst.Interface())
	}
	assert.Equal(t, uint64(0xffff), FixedBits(reflect.ValueOf(int16(-1))))
}

func TestAliasFixed(t *testing.T) {
	// Backed by uint64s so the bytes are word aligned.
	buf := make([]uint64, 2)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), 16)
	raw[0], raw[4] = 1, 2

	var u32 []uint32
	require.True(t, AliasFixed(reflect.ValueOf(&u32).Elem(), raw, 2))
	assert.Equal(t, []uint32{1, 2}, u32)
	raw[0] = 9
	assert.Equal(t, uint32(9), u32[0])

	assert.False(t, AliasFixed(reflect.ValueOf(&u32).Elem(), raw[1:], 2), "misaligned")
	assert.False(t, AliasFixed(reflect.ValueOf(&u32).Elem(), raw, 5), "short")

	type named []uint32
	var n named
	assert.False(t, AliasFixed(reflect.ValueOf(&n).Elem(), raw, 2), "named slice type")
}
