package pogs

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/rawbytedev/flatptr"
	"github.com/rawbytedev/flatptr/internal/common"
)

type fieldClass uint8

const (
	fixedField fieldClass = iota
	textField
	dataField
	fixedListField
	textListField
	dataListField
	structField
	structPtrField
	structListField
)

type fieldPlan struct {
	idx   int
	name  string
	class fieldClass
	kind  reflect.Kind // the field's kind, or its elements' for lists
	off   uint32       // byte offset, or bit offset for bools
	ptr   uint16
}

type structPlan struct {
	size   flatptr.ObjectSize
	fields []fieldPlan
}

func (c *Codec) getPlan(t reflect.Type) (*structPlan, error) {
	c.mu.RLock()
	if plan, ok := c.plans[t]; ok {
		c.mu.RUnlock()
		return plan, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check
	if plan, ok := c.plans[t]; ok {
		return plan, nil
	}
	plan, err := buildPlan(t)
	if err != nil {
		return nil, err
	}
	c.plans[t] = plan
	return plan, nil
}

func classify(t reflect.Type) (fieldClass, reflect.Kind, error) {
	k := t.Kind()
	switch {
	case common.IsFixedKind(k):
		return fixedField, k, nil
	case k == reflect.String:
		return textField, k, nil
	case k == reflect.Struct:
		return structField, k, nil
	case k == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		return structPtrField, reflect.Struct, nil
	case k == reflect.Slice:
		e := t.Elem()
		switch ek := e.Kind(); {
		case ek == reflect.Uint8:
			return dataField, ek, nil
		case common.IsFixedKind(ek):
			return fixedListField, ek, nil
		case ek == reflect.String:
			return textListField, ek, nil
		case ek == reflect.Slice && e.Elem().Kind() == reflect.Uint8:
			return dataListField, reflect.Uint8, nil
		case ek == reflect.Struct:
			return structListField, ek, nil
		}
	}
	return 0, 0, fmt.Errorf("%v: %w", t, ErrUnsupported)
}

type fieldTag struct {
	name string
	skip bool
	off  int // -1 when unset
	ptr  int // -1 when unset
}

// parseTag reads `flat:"name,@N,ptr=N"`. @N is a byte offset, or a bit
// offset for bool fields.
func parseTag(sf reflect.StructField) (fieldTag, error) {
	tag := fieldTag{name: sf.Name, off: -1, ptr: -1}
	raw, ok := sf.Tag.Lookup("flat")
	if !ok {
		return tag, nil
	}
	if raw == "-" {
		tag.skip = true
		return tag, nil
	}
	parts := strings.Split(raw, ",")
	if parts[0] != "" {
		tag.name = parts[0]
	}
	for _, opt := range parts[1:] {
		var err error
		switch {
		case strings.HasPrefix(opt, "@"):
			tag.off, err = strconv.Atoi(opt[1:])
		case strings.HasPrefix(opt, "ptr="):
			tag.ptr, err = strconv.Atoi(opt[4:])
		default:
			return tag, fmt.Errorf("field %s: unknown tag option %q", sf.Name, opt)
		}
		if err != nil || tag.off < -1 || tag.ptr < -1 {
			return tag, fmt.Errorf("field %s: bad tag option %q", sf.Name, opt)
		}
	}
	return tag, nil
}

type span struct{ lo, hi uint32 }

func overlaps(spans []span, lo, hi uint32) bool {
	for _, s := range spans {
		if lo < s.hi && s.lo < hi {
			return true
		}
	}
	return false
}

// buildPlan lays fields out in declaration order. Scalars take the first
// naturally aligned free slot of the data section, bools a single bit, and
// everything else the next free pointer. Explicit offsets are placed first.
func buildPlan(t reflect.Type) (*structPlan, error) {
	if t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	plan := &structPlan{}
	var tags []fieldTag
	var dataUsed []span
	ptrUsed := map[uint16]bool{}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, err := parseTag(sf)
		if err != nil {
			return nil, err
		}
		if tag.skip {
			continue
		}
		class, kind, err := classify(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		f := fieldPlan{idx: i, name: tag.name, class: class, kind: kind}
		switch {
		case class == fixedField && tag.off >= 0:
			lo, width := uint32(tag.off), bitWidth(kind)
			if kind != reflect.Bool {
				if tag.off%common.FixedSize(kind) != 0 {
					return nil, fmt.Errorf("field %s: offset %d is not aligned", sf.Name, tag.off)
				}
				lo *= 8
			}
			if overlaps(dataUsed, lo, lo+width) {
				return nil, fmt.Errorf("field %s: overlapping offset %d", sf.Name, tag.off)
			}
			dataUsed = append(dataUsed, span{lo, lo + width})
			f.off = uint32(tag.off)
		case class != fixedField && tag.ptr >= 0:
			if tag.ptr >= 0xffff || ptrUsed[uint16(tag.ptr)] {
				return nil, fmt.Errorf("field %s: bad pointer index %d", sf.Name, tag.ptr)
			}
			ptrUsed[uint16(tag.ptr)] = true
			f.ptr = uint16(tag.ptr)
		}
		plan.fields = append(plan.fields, f)
		tags = append(tags, tag)
	}

	var ptrCursor uint16
	for i := range plan.fields {
		f := &plan.fields[i]
		if f.class == fixedField {
			if tags[i].off >= 0 {
				continue
			}
			width := bitWidth(f.kind)
			var lo uint32
			for overlaps(dataUsed, lo, lo+width) {
				lo += width
			}
			dataUsed = append(dataUsed, span{lo, lo + width})
			f.off = lo
			if f.kind != reflect.Bool {
				f.off = lo / 8
			}
			continue
		}
		if tags[i].ptr >= 0 {
			continue
		}
		for ptrUsed[ptrCursor] {
			ptrCursor++
		}
		ptrUsed[ptrCursor] = true
		f.ptr = ptrCursor
	}

	var dataBits uint32
	for _, s := range dataUsed {
		dataBits = max(dataBits, s.hi)
	}
	plan.size.DataSize = flatptr.Size(alignUp(dataBits, 64) / 8)
	for p := range ptrUsed {
		plan.size.PointerCount = max(plan.size.PointerCount, p+1)
	}
	return plan, nil
}

func bitWidth(k reflect.Kind) uint32 {
	if k == reflect.Bool {
		return 1
	}
	return uint32(common.FixedSize(k)) * 8
}

func alignUp(n, a uint32) uint32 {
	return (n + a - 1) / a * a
}
