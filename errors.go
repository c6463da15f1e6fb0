package flatptr

import "errors"

var (
	ErrOutOfBounds      = errors.New("address out of bounds")
	ErrTraverseLimit    = errors.New("traverse limit exceeded")
	ErrDepthLimit       = errors.New("depth limit exceeded")
	ErrTooManySegments  = errors.New("too many segments")
	ErrSegmentTooLarge  = errors.New("segment too large")
	ErrNoSegment        = errors.New("segment does not exist")
	ErrArenaNotEmpty    = errors.New("arena already holds data")
	ErrBadLandingPad    = errors.New("invalid far pointer landing pad")
	ErrBadTag           = errors.New("invalid composite list tag")
	ErrBadPointer       = errors.New("invalid pointer")
	ErrUnknownOther     = errors.New("unknown other-pointer type")
	ErrWrongPointerType = errors.New("pointer has unexpected type")
	ErrOffsetOverflow   = errors.New("pointer offset out of range")
	ErrInvalidSize      = errors.New("invalid object size")
	ErrOrphanUsed       = errors.New("orphan already adopted")
	ErrForeignOrphan    = errors.New("orphan belongs to another message")
	ErrMessageTooLarge  = errors.New("message exceeds size limit")
	ErrPackedTruncated  = errors.New("packed data truncated")
	ErrPackedAlignment  = errors.New("unpacked data is not word aligned")
)
