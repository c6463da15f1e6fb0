// Package flatptr reads and writes structured records packed into flat,
// word-aligned buffers with pointer indirection.
//
// A Message is a set of segments. Segment 0 begins with the root pointer,
// and every object (a Struct, a List, or a capability reference) is reached
// by following pointers from it. A struct has a data section of scalars and a
// pointer section; lists hold primitives, pointers, or inline structs. Reads
// never trust the buffer: every pointer is bounds checked and charged against
// the message's traversal and depth limits.
//
// Generated bindings sit on top of this package. A record whose only field is
// a byte blob at pointer 0 maps its accessors as follows:
//
//	has    -> Struct.HasPtr(0)
//	get    -> Struct.Data(0)
//	set    -> Struct.SetData(0, b) or Struct.CopyPtr(0, p)
//	init   -> Struct.InitData(0, n)
//	adopt  -> Struct.Adopt(0, o)
//	disown -> Struct.Disown(0)
//
// Messages are framed for streams with Marshal/Unmarshal and Encoder/Decoder,
// optionally packed to squeeze out zero bytes, and can be reduced to a
// canonical single-segment form for hashing with Canonicalize and Digest.
package flatptr
