package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/rawbytedev/flatptr"
	"github.com/rawbytedev/flatptr/internal/common"
	"go.uber.org/zap"
)

// A Reader reads frames from a stream.
type Reader struct {
	r    *bufio.Reader
	opts Options
	log  *zap.Logger
	hdr  [headerSize]byte
	off  int64
}

func NewReader(r io.Reader, opts Options) *Reader {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{r: bufio.NewReader(r), opts: opts, log: log}
}

// badFrame marks a frame that was read whole but could not be decoded, so
// the stream is still positioned at a frame boundary.
type badFrame struct{ err error }

func (e badFrame) Error() string { return e.err.Error() }
func (e badFrame) Unwrap() error { return e.err }

// ReadFrame returns the next frame. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF inside a frame.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		start := r.off
		f, err := r.next()
		if err == nil {
			return f, nil
		}
		var bad badFrame
		if !r.opts.SkipCorrupt || !errors.As(err, &bad) {
			return Frame{}, err
		}
		r.log.Warn("dropping corrupt frame",
			zap.Int64("offset", start),
			zap.Int64("size", r.off-start),
			zap.Error(bad.err))
	}
}

// ReadMessage returns the message in the next data frame. An error frame is
// returned as a *RemoteError.
func (r *Reader) ReadMessage() (*flatptr.Message, error) {
	f, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Type == TypeError {
		return nil, &RemoteError{Code: f.Code, Detail: f.Detail}
	}
	return flatptr.UnmarshalWith(f.Payload, r.opts.Read)
}

func (r *Reader) next() (Frame, error) {
	n, err := io.ReadFull(r.r, r.hdr[:])
	r.off += int64(n)
	if err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("frame header: %w", io.ErrUnexpectedEOF)
	}
	if r.hdr[0] != Magic0 || r.hdr[1] != Magic1 {
		return Frame{}, fmt.Errorf("at offset %d: %w", r.off-headerSize, ErrBadMagic)
	}
	f := Frame{Type: r.hdr[2], Flags: r.hdr[7]}
	length := binary.LittleEndian.Uint32(r.hdr[3:])
	if length < minFrame {
		return Frame{}, fmt.Errorf("length %d: %w", length, ErrShortFrame)
	}
	if length > r.opts.maxFrameSize() {
		return Frame{}, fmt.Errorf("length %d: %w", length, ErrFrameTooLarge)
	}

	// The message aliases the frame, so each frame gets its own buffer.
	rest := make([]byte, length-headerSize)
	n, err = io.ReadFull(r.r, rest)
	r.off += int64(n)
	if err != nil {
		return Frame{}, fmt.Errorf("frame body: %w", io.ErrUnexpectedEOF)
	}
	body := rest[:len(rest)-trailerSize]
	crc := crc32.NewIEEE()
	crc.Write(r.hdr[2:])
	crc.Write(body)
	if got, want := crc.Sum32(), binary.LittleEndian.Uint32(rest[len(body):]); got != want {
		return Frame{}, badFrame{fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, want)}
	}

	switch f.Type {
	case TypeData:
		f.Payload, err = r.decodeData(f.Flags, body)
	case TypeError:
		f.Code, f.Detail, err = decodeError(body)
	default:
		err = fmt.Errorf("type %#x: %w", f.Type, ErrUnknownType)
	}
	if err != nil {
		return Frame{}, badFrame{err}
	}
	return f, nil
}

func (r *Reader) decodeData(flags byte, body []byte) ([]byte, error) {
	code := flags & compMask
	if code == CompNone {
		return body, nil
	}
	size, k := common.ReadVarUint(body)
	if k == 0 {
		return nil, fmt.Errorf("uncompressed size: %w", ErrBadBody)
	}
	if size > uint64(r.opts.maxFrameSize()) {
		return nil, fmt.Errorf("uncompressed size %d: %w", size, ErrFrameTooLarge)
	}
	c, err := CompressorFor(code)
	if err != nil {
		return nil, err
	}
	out, err := c.Decode(body[k:], int(size))
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w: %w", c.Name(), ErrBadBody, err)
	}
	if uint64(len(out)) != size {
		return nil, fmt.Errorf("%s payload is %d bytes, header says %d: %w", c.Name(), len(out), size, ErrBadBody)
	}
	return out, nil
}

func decodeError(body []byte) (byte, string, error) {
	if len(body) == 0 {
		return 0, "", fmt.Errorf("missing error code: %w", ErrBadBody)
	}
	n, k := common.ReadVarUint(body[1:])
	if k == 0 || n != uint64(len(body)-1-k) {
		return 0, "", fmt.Errorf("detail length: %w", ErrBadBody)
	}
	return body[0], string(body[1+k:]), nil
}
