package flatptr

import "fmt"

// An Orphan is an object that lives in a message but is not referenced from
// any pointer. It can be adopted into exactly one pointer of the same
// message.
type Orphan struct {
	ptr     Ptr
	msg     *Message
	adopted bool
}

// NewOrphan wraps an object that has no referencing pointer, typically one
// just allocated with NewStruct or NewData.
func NewOrphan(p Ptr) *Orphan {
	return &Orphan{ptr: p, msg: p.Message()}
}

// NewOrphanData allocates a detached byte blob of n zero bytes.
func NewOrphanData(seg *Segment, n int32) (*Orphan, error) {
	l, err := NewUInt8List(seg, n)
	if err != nil {
		return nil, err
	}
	return NewOrphan(l.ToPtr()), nil
}

// Ptr returns the orphaned object, or null once it has been adopted.
func (o *Orphan) Ptr() Ptr {
	if o == nil || o.adopted {
		return Ptr{}
	}
	return o.ptr
}

// IsNull reports whether the orphan holds nothing.
func (o *Orphan) IsNull() bool { return !o.Ptr().IsValid() }

// Disown detaches the object at pointer i and nulls the pointer. The
// object's memory is left in place.
func (s Struct) Disown(i uint16) (*Orphan, error) {
	p, err := s.Ptr(i)
	if err != nil {
		return nil, fmt.Errorf("disown: %w", err)
	}
	if s.seg != nil && i < s.size.PointerCount {
		s.seg.writeRawPointer(s.pointerAddress(i), 0)
	}
	return &Orphan{ptr: p, msg: s.Message()}, nil
}

// Adopt links the orphan into pointer i. The orphan must come from the same
// message and may be adopted only once. Adopting a null orphan nulls the
// pointer.
func (s Struct) Adopt(i uint16, o *Orphan) error {
	if o == nil {
		return s.SetPtr(i, Ptr{})
	}
	if o.adopted {
		return ErrOrphanUsed
	}
	if o.ptr.IsValid() && o.msg != s.Message() {
		return ErrForeignOrphan
	}
	if err := s.SetPtr(i, o.ptr); err != nil {
		return fmt.Errorf("adopt: %w", err)
	}
	o.adopted = true
	return nil
}
