// Package frame wraps marshalled messages in a checksummed transport envelope.
//
// Every frame is laid out as
//
//	magic (0xF1 0xA7) | type | length u32 | flags | body | crc32
//
// with little-endian integers. length counts the whole frame, trailer
// included, and the IEEE CRC covers every byte after the magic. A data body
// is the message, optionally compressed, in which case it is prefixed by the
// varint length of the uncompressed message. An error body is a code byte
// followed by a varint-prefixed detail string.
package frame

import (
	"errors"
	"fmt"
)

const (
	Magic0 byte = 0xF1
	Magic1 byte = 0xA7
)

// Frame types.
const (
	TypeData  byte = 0x01
	TypeError byte = 0x02
)

const (
	// headerSize is magic, type, length and flags.
	headerSize  = 2 + 1 + 4 + 1
	trailerSize = 4
	minFrame    = headerSize + trailerSize

	// DefaultMaxFrameSize caps a frame when Options.MaxFrameSize is zero.
	DefaultMaxFrameSize = 64 << 20
)

var (
	ErrBadMagic           = errors.New("bad frame magic")
	ErrChecksum           = errors.New("frame checksum mismatch")
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrShortFrame         = errors.New("frame shorter than its header")
	ErrUnknownType        = errors.New("unknown frame type")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrBadBody            = errors.New("malformed frame body")
)

// A Frame is one decoded envelope. Payload holds the uncompressed message of
// a data frame; Code and Detail are set for error frames.
type Frame struct {
	Type    byte
	Flags   byte
	Payload []byte
	Code    byte
	Detail  string
}

// RemoteError is an error frame surfaced by Reader.ReadMessage.
type RemoteError struct {
	Code   byte
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Detail)
}
