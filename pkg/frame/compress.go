package frame

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz"
)

// Compression codes, stored in the low bits of a data frame's flags.
const (
	CompNone byte = iota
	CompZstd
	CompLZ4
	CompXZ

	compMask = 0x03
)

// Compressor defines a single compression scheme for frame payloads.
type Compressor interface {
	// Name is the lower-case scheme name used on the command line.
	Name() string
	// Code is the value stored in the frame flags.
	Code() byte

	// Decode and Encode obey "x == Decode(Encode(x), len(x))". Decode
	// stops after size+1 bytes, so an oversized payload is never fully
	// inflated.
	Decode(encoded []byte, size int) ([]byte, error)
	Encode(decoded []byte) ([]byte, error)
}

// CompressorFor returns the compressor stored under code, or nil for CompNone.
func CompressorFor(code byte) (Compressor, error) {
	switch code {
	case CompNone:
		return nil, nil
	case CompZstd:
		return Zstd{}, nil
	case CompLZ4:
		return LZ4{}, nil
	case CompXZ:
		return XZ{}, nil
	}
	return nil, fmt.Errorf("compression %d: %w", code, ErrUnknownCompression)
}

// CompressorByName looks up a compressor by Name. "none" and "" return nil.
func CompressorByName(name string) (Compressor, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "zstd":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	case "xz":
		return XZ{}, nil
	}
	return nil, fmt.Errorf("compression %q: %w", name, ErrUnknownCompression)
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// zstdCodecs returns the shared encoder and decoder. EncodeAll and DecodeAll
// are safe for concurrent use. DecodeAll writes no further than cap(dst).
func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecodeAllCapLimit(true))
	})
	return zstdEnc, zstdDec, zstdErr
}

// Zstd implements Compressor with klauspost/compress.
type Zstd struct{}

func (Zstd) Name() string { return "zstd" }
func (Zstd) Code() byte   { return CompZstd }

func (Zstd) Decode(encoded []byte, size int) ([]byte, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(encoded, make([]byte, 0, size+1))
}

func (Zstd) Encode(decoded []byte) ([]byte, error) {
	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(decoded, nil), nil
}

// LZ4 implements Compressor with the lz4 frame format.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }
func (LZ4) Code() byte   { return CompLZ4 }

func (LZ4) Decode(encoded []byte, size int) ([]byte, error) {
	return readCapped(lz4.NewReader(bytes.NewReader(encoded)), size)
}

func (LZ4) Encode(decoded []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(decoded); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XZ implements Compressor with ulikunitz/xz.
type XZ struct{}

func (XZ) Name() string { return "xz" }
func (XZ) Code() byte   { return CompXZ }

func (XZ) Decode(encoded []byte, size int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	return readCapped(r, size)
}

func (XZ) Encode(decoded []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(decoded); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readCapped reads at most size+1 bytes from r.
func readCapped(r io.Reader, size int) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, int64(size)+1))
}
