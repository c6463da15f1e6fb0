package common

import (
	"math"
	"reflect"
	"unsafe"
)

// IsFixedKind reports whether k is a fixed-size primitive kind.
func IsFixedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// FixedSize returns the byte width for fixed-size primitive kinds.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return -1
	}
}

// FixedBits returns the little-endian bit pattern of a fixed-kind value,
// truncated to the kind's width.
func FixedBits(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int8:
		return uint64(uint8(v.Int()))
	case reflect.Int16:
		return uint64(uint16(v.Int()))
	case reflect.Int32:
		return uint64(uint32(v.Int()))
	case reflect.Int64:
		return uint64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return uint64(math.Float32bits(float32(v.Float())))
	case reflect.Float64:
		return math.Float64bits(v.Float())
	default:
		panic("unsupported fixed kind " + v.Kind().String())
	}
}

// SetFixedBits is the inverse of FixedBits.
func SetFixedBits(dst reflect.Value, bits uint64) {
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(bits != 0)
	case reflect.Int8:
		dst.SetInt(int64(int8(bits)))
	case reflect.Int16:
		dst.SetInt(int64(int16(bits)))
	case reflect.Int32:
		dst.SetInt(int64(int32(bits)))
	case reflect.Int64:
		dst.SetInt(int64(bits))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetUint(bits)
	case reflect.Float32:
		dst.SetFloat(float64(math.Float32frombits(uint32(bits))))
	case reflect.Float64:
		dst.SetFloat(math.Float64frombits(bits))
	}
}

var aliasable = map[reflect.Type]bool{
	reflect.TypeFor[[]int8]():    true,
	reflect.TypeFor[[]uint8]():   true,
	reflect.TypeFor[[]int16]():   true,
	reflect.TypeFor[[]uint16]():  true,
	reflect.TypeFor[[]int32]():   true,
	reflect.TypeFor[[]uint32]():  true,
	reflect.TypeFor[[]int64]():   true,
	reflect.TypeFor[[]uint64]():  true,
	reflect.TypeFor[[]float32](): true,
	reflect.TypeFor[[]float64](): true,
}

// AliasFixed points the numeric slice dst at the n elements stored in b
// without copying. It reports false, leaving dst untouched, when dst is not
// an unnamed numeric slice type or b is not aligned for its elements.
// The host must be little-endian.
func AliasFixed(dst reflect.Value, b []byte, n int) bool {
	if !aliasable[dst.Type()] || n == 0 {
		return false
	}
	k := dst.Type().Elem().Kind()
	size := FixedSize(k)
	if len(b) < n*size || uintptr(unsafe.Pointer(&b[0]))%uintptr(size) != 0 {
		return false
	}
	p := unsafe.Pointer(&b[0])
	var val any
	switch k {
	case reflect.Int8:
		val = unsafe.Slice((*int8)(p), n)
	case reflect.Uint8:
		val = unsafe.Slice((*uint8)(p), n)
	case reflect.Int16:
		val = unsafe.Slice((*int16)(p), n)
	case reflect.Uint16:
		val = unsafe.Slice((*uint16)(p), n)
	case reflect.Int32:
		val = unsafe.Slice((*int32)(p), n)
	case reflect.Uint32:
		val = unsafe.Slice((*uint32)(p), n)
	case reflect.Int64:
		val = unsafe.Slice((*int64)(p), n)
	case reflect.Uint64:
		val = unsafe.Slice((*uint64)(p), n)
	case reflect.Float32:
		val = unsafe.Slice((*float32)(p), n)
	case reflect.Float64:
		val = unsafe.Slice((*float64)(p), n)
	}
	dst.Set(reflect.ValueOf(val))
	return true
}

// WriteVarUint appends a varint to buf.
func WriteVarUint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
// It returns 0, 0 if b ends mid-varint.
func ReadVarUint(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == 10 {
			return 0, 0
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}
