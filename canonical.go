package flatptr

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

var errCanonicalCapability = errors.New("capabilities have no canonical form")

// Canonicalize encodes s in canonical form: a single segment holding the root
// pointer followed by every reachable object in pre-order, with data and
// pointer sections trimmed of trailing zeroes.
func Canonicalize(s Struct) ([]byte, error) {
	msg, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		return nil, err
	}
	if s.IsValid() {
		root, err := NewRootStruct(seg, canonicalStructSize(s))
		if err != nil {
			return nil, fmt.Errorf("canonicalize: %w", err)
		}
		if err := fillCanonicalStruct(root, s); err != nil {
			return nil, fmt.Errorf("canonicalize: %w", err)
		}
	}
	seg, err = msg.Segment(0)
	if err != nil {
		return nil, err
	}
	return seg.Data(), nil
}

// Digest returns the sha256 digest of the canonical encoding of s.
func Digest(s Struct) (digest.Digest, error) {
	b, err := Canonicalize(s)
	if err != nil {
		return "", err
	}
	return digest.FromBytes(b), nil
}

func isZeroWord(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func canonicalStructSize(s Struct) ObjectSize {
	var sz ObjectSize
	data := s.seg.slice(s.off, s.size.DataSize)
	for n := len(data) / int(wordSize); n > 0; n-- {
		if !isZeroWord(data[(n-1)*int(wordSize) : n*int(wordSize)]) {
			sz.DataSize = Size(n) * wordSize
			break
		}
	}
	for i := s.size.PointerCount; i > 0; i-- {
		if s.HasPtr(i - 1) {
			sz.PointerCount = i
			break
		}
	}
	return sz
}

func fillCanonicalStruct(dst, src Struct) error {
	copy(dst.seg.slice(dst.off, dst.size.DataSize), src.seg.slice(src.off, dst.size.DataSize))
	for i := uint16(0); i < dst.size.PointerCount; i++ {
		p, err := src.Ptr(i)
		if err != nil {
			return err
		}
		cp, err := canonicalPtr(dst.seg, p)
		if err != nil {
			return err
		}
		if err := dst.SetPtr(i, cp); err != nil {
			return err
		}
	}
	return nil
}

func canonicalPtr(dst *Segment, p Ptr) (Ptr, error) {
	switch p.kind {
	case structPtr:
		s := p.Struct()
		ns, err := NewStruct(dst, canonicalStructSize(s))
		if err != nil {
			return Ptr{}, err
		}
		return ns.ToPtr(), fillCanonicalStruct(ns, s)
	case listPtr:
		l := p.List()
		switch e := l.ElementSize(); e {
		case CompositeElement:
			var sz ObjectSize
			for i := 0; i < l.Len(); i++ {
				esz := canonicalStructSize(l.Struct(i))
				sz.DataSize = max(sz.DataSize, esz.DataSize)
				sz.PointerCount = max(sz.PointerCount, esz.PointerCount)
			}
			nl, err := NewCompositeList(dst, sz, l.length)
			if err != nil {
				return Ptr{}, err
			}
			for i := 0; i < l.Len(); i++ {
				if err := fillCanonicalStruct(nl.Struct(i), l.Struct(i)); err != nil {
					return Ptr{}, err
				}
			}
			return nl.ToPtr(), nil
		case PointerElement:
			nl, err := NewPointerList(dst, l.length)
			if err != nil {
				return Ptr{}, err
			}
			for i := 0; i < l.Len(); i++ {
				ep, err := PointerList{l}.At(i)
				if err != nil {
					return Ptr{}, err
				}
				cp, err := canonicalPtr(dst, ep)
				if err != nil {
					return Ptr{}, err
				}
				if err := nl.Set(i, cp); err != nil {
					return Ptr{}, err
				}
			}
			return nl.ToPtr(), nil
		default:
			nl, err := newPrimitiveList(dst, e, l.length)
			if err != nil {
				return Ptr{}, err
			}
			n := l.byteLen()
			out := nl.seg.slice(nl.off, n)
			copy(out, l.seg.slice(l.off, n))
			if e == BitElement && l.length%8 != 0 {
				out[n-1] &= byte(1)<<uint(l.length%8) - 1
			}
			return nl.ToPtr(), nil
		}
	case interfacePtr:
		return Ptr{}, errCanonicalCapability
	default:
		return Ptr{}, nil
	}
}
