// Package pogs copies plain Go structs into and out of flatptr structs.
//
// Fields are laid out in declaration order. Bool and numeric fields live in
// the data section at naturally aligned offsets, bools taking one bit each.
// Strings, byte slices, slices, and nested structs take successive pointer
// slots. A `flat:"-"` tag skips a field; `flat:"name,@N"` pins a scalar to
// byte offset N (bit offset for bools) and `flat:"name,ptr=N"` pins a
// pointer field to slot N.
package pogs

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rawbytedev/flatptr"
)

var (
	ErrNotStruct    = errors.New("expected struct")
	ErrNotStructPtr = errors.New("expected pointer to struct")
	ErrUnsupported  = errors.New("unsupported type")
	ErrTooSmall     = errors.New("struct is smaller than the layout")
)

type Options struct {
	// UnsafeStrings makes Extract alias text into the message instead of
	// copying it. The strings are only valid while the message is.
	UnsafeStrings bool
	// UnsafePrimitives makes Extract alias byte slices and aligned numeric
	// slices into the message.
	UnsafePrimitives bool
}

// A Codec caches one layout plan per Go type. It is safe for concurrent use.
type Codec struct {
	Opts  Options
	plans map[reflect.Type]*structPlan
	mu    sync.RWMutex
}

func NewCodec(opts Options) *Codec {
	return &Codec{
		Opts:  opts,
		plans: make(map[reflect.Type]*structPlan),
	}
}

var defaultCodec = NewCodec(Options{})

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotStruct
	}
	return rv, nil
}

// SizeOf returns the flat struct size of values of type t.
func (c *Codec) SizeOf(t reflect.Type) (flatptr.ObjectSize, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	plan, err := c.getPlan(t)
	if err != nil {
		return flatptr.ObjectSize{}, err
	}
	return plan.size, nil
}

// Insert writes v, a struct or pointer to struct, into s.
func (c *Codec) Insert(s flatptr.Struct, v any) error {
	rv, err := structValue(v)
	if err != nil {
		return err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return err
	}
	return c.insert(s, rv, plan)
}

// Extract reads s into the struct out points to.
func (c *Codec) Extract(s flatptr.Struct, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	dst := rv.Elem()
	plan, err := c.getPlan(dst.Type())
	if err != nil {
		return err
	}
	return c.extract(s, dst, plan)
}

// Marshal encodes v as the root of a new single-segment message.
func (c *Codec) Marshal(v any) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return nil, err
	}
	msg, seg, err := flatptr.NewMessage(flatptr.SingleSegment(nil))
	if err != nil {
		return nil, err
	}
	root, err := flatptr.NewRootStruct(seg, plan.size)
	if err != nil {
		return nil, err
	}
	if err := c.insert(root, rv, plan); err != nil {
		return nil, err
	}
	return msg.Marshal()
}

// Unmarshal decodes a message produced by Marshal into out.
func (c *Codec) Unmarshal(data []byte, out any) error {
	msg, err := flatptr.Unmarshal(data)
	if err != nil {
		return err
	}
	root, err := msg.Root()
	if err != nil {
		return err
	}
	if root.IsValid() && !root.Struct().IsValid() {
		return fmt.Errorf("root is %v: %w", root, flatptr.ErrWrongPointerType)
	}
	return c.Extract(root.Struct(), out)
}

func SizeOf(t reflect.Type) (flatptr.ObjectSize, error) { return defaultCodec.SizeOf(t) }
func Insert(s flatptr.Struct, v any) error              { return defaultCodec.Insert(s, v) }
func Extract(s flatptr.Struct, out any) error           { return defaultCodec.Extract(s, out) }
func Marshal(v any) ([]byte, error)                     { return defaultCodec.Marshal(v) }
func Unmarshal(data []byte, out any) error              { return defaultCodec.Unmarshal(data, out) }
