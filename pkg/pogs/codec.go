package pogs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/flatptr"
	"github.com/rawbytedev/flatptr/internal/common"
)

func (c *Codec) insert(s flatptr.Struct, v reflect.Value, plan *structPlan) error {
	sz := s.Size()
	if !s.IsValid() || sz.DataSize < plan.size.DataSize || sz.PointerCount < plan.size.PointerCount {
		return fmt.Errorf("insert %v into %v: %w", v.Type(), sz, ErrTooSmall)
	}
	for i := range plan.fields {
		f := &plan.fields[i]
		if err := c.insertField(s, v.Field(f.idx), f); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func (c *Codec) insertField(s flatptr.Struct, fv reflect.Value, f *fieldPlan) error {
	seg := s.Segment()
	switch f.class {
	case fixedField:
		bits := common.FixedBits(fv)
		off := flatptr.DataOffset(f.off)
		switch common.FixedSize(f.kind) {
		case 1:
			if f.kind == reflect.Bool {
				s.SetBit(flatptr.BitOffset(f.off), bits != 0)
			} else {
				s.SetUint8(off, uint8(bits))
			}
		case 2:
			s.SetUint16(off, uint16(bits))
		case 4:
			s.SetUint32(off, uint32(bits))
		case 8:
			s.SetUint64(off, bits)
		}
		return nil
	case textField:
		if fv.Len() == 0 {
			return s.SetPtr(f.ptr, flatptr.Ptr{})
		}
		return s.SetText(f.ptr, fv.String())
	case dataField:
		if fv.IsNil() {
			return s.SetPtr(f.ptr, flatptr.Ptr{})
		}
		return s.SetData(f.ptr, fv.Bytes())
	}

	// Remaining classes are slices or structs behind a pointer.
	if (fv.Kind() == reflect.Slice || fv.Kind() == reflect.Ptr) && fv.IsNil() {
		return s.SetPtr(f.ptr, flatptr.Ptr{})
	}
	if fv.Kind() == reflect.Slice && fv.Len() > math.MaxInt32 {
		return flatptr.ErrInvalidSize
	}
	var p flatptr.Ptr
	switch f.class {
	case fixedListField:
		l, err := newFixedList(seg, f.kind, fv)
		if err != nil {
			return err
		}
		p = l.ToPtr()
	case textListField:
		l, err := flatptr.NewTextList(seg, int32(fv.Len()))
		if err != nil {
			return err
		}
		for i := 0; i < fv.Len(); i++ {
			if err := l.Set(i, fv.Index(i).String()); err != nil {
				return err
			}
		}
		p = l.ToPtr()
	case dataListField:
		l, err := flatptr.NewDataList(seg, int32(fv.Len()))
		if err != nil {
			return err
		}
		for i := 0; i < fv.Len(); i++ {
			ev := fv.Index(i)
			if ev.IsNil() {
				continue
			}
			if err := l.Set(i, ev.Bytes()); err != nil {
				return err
			}
		}
		p = l.ToPtr()
	case structField, structPtrField:
		if fv.Kind() == reflect.Ptr {
			fv = fv.Elem()
		}
		plan, err := c.getPlan(fv.Type())
		if err != nil {
			return err
		}
		child, err := flatptr.NewStruct(seg, plan.size)
		if err != nil {
			return err
		}
		if err := c.insert(child, fv, plan); err != nil {
			return err
		}
		p = child.ToPtr()
	case structListField:
		plan, err := c.getPlan(fv.Type().Elem())
		if err != nil {
			return err
		}
		l, err := flatptr.NewStructList(seg, plan.size, int32(fv.Len()))
		if err != nil {
			return err
		}
		for i := 0; i < fv.Len(); i++ {
			if err := c.insert(l.At(i), fv.Index(i), plan); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		p = l.ToPtr()
	}
	return s.SetPtr(f.ptr, p)
}

func newFixedList(seg *flatptr.Segment, k reflect.Kind, fv reflect.Value) (flatptr.List, error) {
	n := fv.Len()
	if k == reflect.Bool {
		l, err := flatptr.NewBitList(seg, int32(n))
		if err != nil {
			return flatptr.List{}, err
		}
		for i := 0; i < n; i++ {
			l.Set(i, fv.Index(i).Bool())
		}
		return l.List, nil
	}
	var l flatptr.List
	var err error
	switch size := common.FixedSize(k); size {
	case 1:
		var u flatptr.UInt8List
		u, err = flatptr.NewUInt8List(seg, int32(n))
		l = u.List
	case 2:
		var u flatptr.UInt16List
		u, err = flatptr.NewUInt16List(seg, int32(n))
		l = u.List
	case 4:
		var u flatptr.UInt32List
		u, err = flatptr.NewUInt32List(seg, int32(n))
		l = u.List
	default:
		var u flatptr.UInt64List
		u, err = flatptr.NewUInt64List(seg, int32(n))
		l = u.List
	}
	if err != nil {
		return flatptr.List{}, err
	}
	b := l.Bytes()
	size := common.FixedSize(k)
	for i := 0; i < n; i++ {
		bits := common.FixedBits(fv.Index(i))
		switch size {
		case 1:
			b[i] = uint8(bits)
		case 2:
			binary.LittleEndian.PutUint16(b[2*i:], uint16(bits))
		case 4:
			binary.LittleEndian.PutUint32(b[4*i:], uint32(bits))
		case 8:
			binary.LittleEndian.PutUint64(b[8*i:], bits)
		}
	}
	return l, nil
}

func (c *Codec) extract(s flatptr.Struct, v reflect.Value, plan *structPlan) error {
	for i := range plan.fields {
		f := &plan.fields[i]
		if err := c.extractField(s, v.Field(f.idx), f); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func (c *Codec) extractField(s flatptr.Struct, fv reflect.Value, f *fieldPlan) error {
	if f.class == fixedField {
		off := flatptr.DataOffset(f.off)
		var bits uint64
		switch common.FixedSize(f.kind) {
		case 1:
			if f.kind == reflect.Bool {
				if s.Bit(flatptr.BitOffset(f.off)) {
					bits = 1
				}
			} else {
				bits = uint64(s.Uint8(off))
			}
		case 2:
			bits = uint64(s.Uint16(off))
		case 4:
			bits = uint64(s.Uint32(off))
		case 8:
			bits = s.Uint64(off)
		}
		common.SetFixedBits(fv, bits)
		return nil
	}

	p, err := s.Ptr(f.ptr)
	if err != nil {
		return err
	}
	if !p.IsValid() {
		fv.SetZero()
		return nil
	}
	switch f.class {
	case textField:
		b := p.Data()
		if b == nil {
			return fmt.Errorf("%v is not text: %w", p, flatptr.ErrWrongPointerType)
		}
		fv.SetString(c.text(b))
	case dataField:
		b := p.Data()
		if b == nil {
			return fmt.Errorf("%v is not data: %w", p, flatptr.ErrWrongPointerType)
		}
		if !c.Opts.UnsafePrimitives {
			b = bytes.Clone(b)
		}
		fv.SetBytes(b)
	case structField:
		return c.extractStruct(p, fv)
	case structPtrField:
		nv := reflect.New(fv.Type().Elem())
		if err := c.extractStruct(p, nv.Elem()); err != nil {
			return err
		}
		fv.Set(nv)
	default:
		l := p.List()
		if !l.IsValid() {
			return fmt.Errorf("%v is not a list: %w", p, flatptr.ErrWrongPointerType)
		}
		return c.extractList(l, fv, f)
	}
	return nil
}

func (c *Codec) text(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	if len(b) == 0 {
		return ""
	}
	if c.Opts.UnsafeStrings {
		return unsafe.String(&b[0], len(b))
	}
	return string(b)
}

func (c *Codec) extractStruct(p flatptr.Ptr, fv reflect.Value) error {
	st := p.Struct()
	if !st.IsValid() {
		return fmt.Errorf("%v is not a struct: %w", p, flatptr.ErrWrongPointerType)
	}
	plan, err := c.getPlan(fv.Type())
	if err != nil {
		return err
	}
	return c.extract(st, fv, plan)
}

func (c *Codec) extractList(l flatptr.List, fv reflect.Value, f *fieldPlan) error {
	n := l.Len()
	if f.class == fixedListField && c.Opts.UnsafePrimitives && l.ElementSize() == elementSize(f.kind) &&
		common.AliasFixed(fv, l.Bytes(), n) {
		return nil
	}
	out := reflect.MakeSlice(fv.Type(), n, n)
	switch f.class {
	case fixedListField:
		for i := 0; i < n; i++ {
			common.SetFixedBits(out.Index(i), listBits(l, i, f.kind))
		}
	case textListField:
		for i := 0; i < n; i++ {
			p, err := flatptr.PointerList{List: l}.At(i)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).SetString(c.text(p.Data()))
		}
	case dataListField:
		for i := 0; i < n; i++ {
			b, err := flatptr.DataList{List: l}.At(i)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if b != nil && !c.Opts.UnsafePrimitives {
				b = bytes.Clone(b)
			}
			out.Index(i).SetBytes(b)
		}
	case structListField:
		plan, err := c.getPlan(fv.Type().Elem())
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := c.extract(l.Struct(i), out.Index(i), plan); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	fv.Set(out)
	return nil
}

func elementSize(k reflect.Kind) flatptr.ElementSize {
	switch common.FixedSize(k) {
	case 1:
		if k == reflect.Bool {
			return flatptr.BitElement
		}
		return flatptr.ByteElement
	case 2:
		return flatptr.TwoByteElement
	case 4:
		return flatptr.FourByteElement
	default:
		return flatptr.EightByteElement
	}
}

// listBits reads element i of l as a k. Lists of another element size read
// through the list's typed accessors, which yield zero where they do not fit.
func listBits(l flatptr.List, i int, k reflect.Kind) uint64 {
	switch common.FixedSize(k) {
	case 1:
		if k == reflect.Bool {
			if (flatptr.BitList{List: l}).At(i) {
				return 1
			}
			return 0
		}
		return uint64(flatptr.UInt8List{List: l}.At(i))
	case 2:
		return uint64(flatptr.UInt16List{List: l}.At(i))
	case 4:
		return uint64(flatptr.UInt32List{List: l}.At(i))
	default:
		return flatptr.UInt64List{List: l}.At(i)
	}
}
