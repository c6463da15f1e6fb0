package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/rawbytedev/flatptr"
	"github.com/rawbytedev/flatptr/internal/common"
	"go.uber.org/zap"
)

// Options configures a Writer or Reader. The zero value writes uncompressed
// frames and fails on the first corrupt frame.
type Options struct {
	// Compression compresses data frames written; nil leaves them raw.
	// Readers pick the scheme from each frame's flags.
	Compression Compressor

	// MaxFrameSize caps both the frame and the uncompressed payload;
	// zero selects DefaultMaxFrameSize.
	MaxFrameSize uint32

	// SkipCorrupt makes a Reader drop frames that fail their checksum or
	// carry a malformed body, and continue with the next one.
	SkipCorrupt bool

	// Logger reports dropped frames. Nil discards.
	Logger *zap.Logger

	// Read is applied to every message returned by Reader.ReadMessage.
	Read flatptr.ReadOptions
}

func (o *Options) maxFrameSize() uint32 {
	if o.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return o.MaxFrameSize
}

// AppendFrame appends a complete frame holding body to dst.
func AppendFrame(dst []byte, typ, flags byte, body []byte) []byte {
	start := len(dst)
	dst = append(dst, Magic0, Magic1, typ, 0, 0, 0, 0, flags)
	binary.LittleEndian.PutUint32(dst[start+3:], uint32(minFrame+len(body)))
	dst = append(dst, body...)
	return binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start+2:]))
}

// A Writer writes frames to a stream.
type Writer struct {
	w    io.Writer
	opts Options
	buf  []byte
}

func NewWriter(w io.Writer, opts Options) *Writer {
	return &Writer{w: w, opts: opts}
}

// WriteMessage marshals msg into a data frame.
func (w *Writer) WriteMessage(msg *flatptr.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	return w.WriteData(data)
}

// WriteData writes an already marshalled message as a data frame.
func (w *Writer) WriteData(payload []byte) error {
	if uint64(len(payload)) > uint64(w.opts.maxFrameSize()) {
		return fmt.Errorf("payload of %d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	c := w.opts.Compression
	if c == nil {
		return w.writeFrame(TypeData, CompNone, payload)
	}
	enc, err := c.Encode(payload)
	if err != nil {
		return fmt.Errorf("%s encode: %w", c.Name(), err)
	}
	body := common.WriteVarUint(make([]byte, 0, binary.MaxVarintLen64+len(enc)), uint64(len(payload)))
	body = append(body, enc...)
	return w.writeFrame(TypeData, c.Code(), body)
}

// WriteError writes an error frame.
func (w *Writer) WriteError(code byte, detail string) error {
	body := make([]byte, 0, 1+binary.MaxVarintLen64+len(detail))
	body = append(body, code)
	body = common.WriteVarUint(body, uint64(len(detail)))
	body = append(body, detail...)
	return w.writeFrame(TypeError, 0, body)
}

func (w *Writer) writeFrame(typ, flags byte, body []byte) error {
	if uint64(minFrame+len(body)) > uint64(w.opts.maxFrameSize()) {
		return fmt.Errorf("frame of %d bytes: %w", minFrame+len(body), ErrFrameTooLarge)
	}
	w.buf = AppendFrame(w.buf[:0], typ, flags, body)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
