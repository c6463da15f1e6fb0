package flatptr

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// NodeKind says what a Node refers to.
type NodeKind uint8

const (
	StructNode NodeKind = iota + 1
	ListNode
	CapabilityNode
)

func (k NodeKind) String() string {
	switch k {
	case StructNode:
		return "struct"
	case ListNode:
		return "list"
	case CapabilityNode:
		return "capability"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// A Node is one object reached while walking a message. Path names the
// pointers followed from the root, e.g. "root.p0[2].p1".
type Node struct {
	Path    string
	Kind    NodeKind
	Segment SegmentID
	Offset  uint32 // byte offset of the object within its segment

	Size ObjectSize // struct size, or list element size
	Elem ElementSize
	Len  int

	Capability CapabilityID
}

// Walk calls fn for every object reachable from the root in pre-order. It
// stops at the first malformed pointer or at the first error from fn.
func Walk(msg *Message, fn func(Node) error) error {
	w := walker{
		fn: fn,
		report: func(path string, err error) error {
			return fmt.Errorf("%s: %w", path, err)
		},
	}
	return w.ptr("root", msg.Root)
}

// Verify walks the whole message and reports every malformed pointer it
// finds. The returned error is a *multierror.Error. Verification charges the
// message's traversal limit and stops once it is exhausted.
func Verify(msg *Message) error {
	var result *multierror.Error
	for i := 0; i < msg.NumSegments(); i++ {
		if _, err := msg.Segment(SegmentID(i)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		return result
	}
	w := walker{
		fn: func(Node) error { return nil },
		report: func(path string, err error) error {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			if errors.Is(err, ErrTraverseLimit) {
				return err
			}
			return nil
		},
	}
	if err := w.ptr("root", msg.Root); err != nil && !errors.Is(err, ErrTraverseLimit) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type walker struct {
	fn     func(Node) error
	report func(path string, err error) error
}

func (w *walker) ptr(path string, read func() (Ptr, error)) error {
	p, err := read()
	if err != nil {
		return w.report(path, err)
	}
	return w.visit(path, p)
}

func (w *walker) visit(path string, p Ptr) error {
	switch p.kind {
	case structPtr:
		s := p.Struct()
		node := Node{Path: path, Kind: StructNode, Segment: s.seg.id, Offset: uint32(s.off), Size: s.size}
		if err := w.fn(node); err != nil {
			return err
		}
		for i := uint16(0); i < s.size.PointerCount; i++ {
			if err := w.ptr(fmt.Sprintf("%s.p%d", path, i), func() (Ptr, error) { return s.Ptr(i) }); err != nil {
				return err
			}
		}
	case listPtr:
		l := p.List()
		node := Node{
			Path:    path,
			Kind:    ListNode,
			Segment: l.seg.id,
			Offset:  uint32(p.startAddr()),
			Size:    l.size,
			Elem:    l.ElementSize(),
			Len:     l.Len(),
		}
		if err := w.fn(node); err != nil {
			return err
		}
		if l.flags&isBitList != 0 || l.size.PointerCount == 0 {
			return nil
		}
		for i := 0; i < l.Len(); i++ {
			base := l.elementAddress(i).addOffset(DataOffset(l.size.DataSize))
			for j := uint16(0); j < l.size.PointerCount; j++ {
				addr := base + address(j)*address(wordSize)
				elem := fmt.Sprintf("%s[%d]", path, i)
				if l.flags&isCompositeList != 0 {
					elem = fmt.Sprintf("%s.p%d", elem, j)
				}
				if err := w.ptr(elem, func() (Ptr, error) { return l.seg.readPtr(addr, l.depthLimit) }); err != nil {
					return err
				}
			}
		}
	case interfacePtr:
		in := p.Interface()
		return w.fn(Node{Path: path, Kind: CapabilityNode, Segment: in.seg.id, Capability: in.cap})
	}
	return nil
}
