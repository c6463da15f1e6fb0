package flatptr

import (
	"encoding/binary"
	"fmt"
	"io"
)

// An Encoder writes framed messages to a stream.
type Encoder struct {
	w      io.Writer
	packed bool
	buf    []byte
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// NewPackedEncoder returns an encoder that packs each message.
func NewPackedEncoder(w io.Writer) *Encoder { return &Encoder{w: w, packed: true} }

// Encode writes m to the stream.
func (e *Encoder) Encode(m *Message) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if e.packed {
		e.buf = Pack(e.buf[:0], data)
		data = e.buf
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// A Decoder reads framed messages from a stream.
type Decoder struct {
	r io.Reader

	// MaxMessageSize caps the bytes of a single message; zero falls back
	// to ReadOptions.MaxMessageSize, then DefaultMaxMessageSize.
	MaxMessageSize uint64
	ReadOptions    ReadOptions

	hdr [8]byte
}

// DefaultMaxMessageSize is the decoder's default message cap.
const DefaultMaxMessageSize = 32 << 20

func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// NewPackedDecoder returns a decoder for packed streams.
func NewPackedDecoder(r io.Reader) *Decoder { return &Decoder{r: NewPackedReader(r)} }

func (d *Decoder) maxSize() uint64 {
	switch {
	case d.MaxMessageSize != 0:
		return d.MaxMessageSize
	case d.ReadOptions.MaxMessageSize != 0:
		return d.ReadOptions.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

// Decode reads the next message. It returns io.EOF when the stream ends
// cleanly between messages.
func (d *Decoder) Decode() (*Message, error) {
	if _, err := io.ReadFull(d.r, d.hdr[:4]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	n := uint64(binary.LittleEndian.Uint32(d.hdr[:4])) + 1
	if n > MaxSegments {
		return nil, fmt.Errorf("decode: %d segments: %w", n, ErrTooManySegments)
	}
	hdrLen := uint64(headerSize(int(n)))
	if hdrLen > d.maxSize() {
		return nil, fmt.Errorf("decode: %w", ErrMessageTooLarge)
	}
	buf := make([]byte, hdrLen)
	copy(buf, d.hdr[:4])
	if _, err := io.ReadFull(d.r, buf[4:]); err != nil {
		return nil, fmt.Errorf("decode: segment table: %w", noEOF(err))
	}
	sizes, _, err := parseHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	total := hdrLen
	for _, sz := range sizes {
		total += uint64(sz)
	}
	if total > d.maxSize() {
		return nil, fmt.Errorf("decode: %d bytes: %w", total, ErrMessageTooLarge)
	}
	buf = append(buf, make([]byte, total-hdrLen)...)
	if _, err := io.ReadFull(d.r, buf[hdrLen:]); err != nil {
		return nil, fmt.Errorf("decode: segments: %w", noEOF(err))
	}
	return UnmarshalWith(buf, d.ReadOptions)
}
