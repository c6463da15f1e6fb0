package flatptr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Packing replaces each word by a tag byte with one bit per non-zero byte,
// followed by those bytes. A zero tag is followed by the count of further
// zero words; a 0xff tag is followed by a count of words copied verbatim.

// Pack appends the packed form of src to dst. len(src) must be a multiple of
// eight.
func Pack(dst, src []byte) []byte {
	if len(src)%int(wordSize) != 0 {
		panic("pack: source length is not a multiple of 8")
	}
	for len(src) > 0 {
		var tag byte
		tagIdx := len(dst)
		dst = append(dst, 0)
		for i, b := range src[:8] {
			if b != 0 {
				tag |= 1 << uint(i)
				dst = append(dst, b)
			}
		}
		dst[tagIdx] = tag
		src = src[8:]

		switch tag {
		case 0x00:
			n := 0
			for n < 255 && len(src) >= 8 && zeroBytes(src[:8]) == 8 {
				n++
				src = src[8:]
			}
			dst = append(dst, byte(n))
		case 0xff:
			n := 0
			for n < 255 && len(src) >= 8*(n+1) && zeroBytes(src[8*n:8*n+8]) < 2 {
				n++
			}
			dst = append(dst, byte(n))
			dst = append(dst, src[:8*n]...)
			src = src[8*n:]
		}
	}
	return dst
}

func zeroBytes(w []byte) int {
	n := 0
	for _, b := range w {
		if b == 0 {
			n++
		}
	}
	return n
}

// Unpack appends the unpacked form of src to dst. It fails with
// ErrMessageTooLarge once the output passes DefaultMaxMessageSize.
func Unpack(dst, src []byte) ([]byte, error) {
	return UnpackLimit(dst, src, DefaultMaxMessageSize)
}

// UnpackLimit is Unpack with a cap of limit unpacked bytes. A zero limit
// selects DefaultMaxMessageSize.
func UnpackLimit(dst, src []byte, limit uint64) ([]byte, error) {
	if limit == 0 {
		limit = DefaultMaxMessageSize
	}
	start := len(dst)
	grow := func(n int) error {
		if uint64(len(dst)-start)+uint64(n) > limit {
			return fmt.Errorf("unpack: more than %d bytes: %w", limit, ErrMessageTooLarge)
		}
		return nil
	}
	for len(src) > 0 {
		tag := src[0]
		src = src[1:]
		var word [8]byte
		for i := range word {
			if tag&(1<<uint(i)) == 0 {
				continue
			}
			if len(src) == 0 {
				return nil, ErrPackedTruncated
			}
			word[i] = src[0]
			src = src[1:]
		}
		if err := grow(8); err != nil {
			return nil, err
		}
		dst = append(dst, word[:]...)

		switch tag {
		case 0x00:
			if len(src) == 0 {
				return nil, ErrPackedTruncated
			}
			n := int(src[0]) * 8
			src = src[1:]
			if err := grow(n); err != nil {
				return nil, err
			}
			dst = append(dst, make([]byte, n)...)
		case 0xff:
			if len(src) == 0 {
				return nil, ErrPackedTruncated
			}
			n := int(src[0]) * 8
			src = src[1:]
			if len(src) < n {
				return nil, ErrPackedTruncated
			}
			if err := grow(n); err != nil {
				return nil, err
			}
			dst = append(dst, src[:n]...)
			src = src[n:]
		}
	}
	return dst, nil
}

// packedReader unpacks a stream one word at a time.
type packedReader struct {
	rd    *bufio.Reader
	word  [8]byte
	pos   int
	zeros int
	raw   int
}

// NewPackedReader returns a reader that unpacks r.
func NewPackedReader(r io.Reader) io.Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &packedReader{rd: br, pos: 8}
}

func (r *packedReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.pos < len(r.word) {
			c := copy(p[n:], r.word[r.pos:])
			r.pos += c
			n += c
			continue
		}
		if err := r.fill(); err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}

func (r *packedReader) fill() error {
	r.pos = 0
	switch {
	case r.zeros > 0:
		r.zeros--
		r.word = [8]byte{}
		return nil
	case r.raw > 0:
		r.raw--
		_, err := io.ReadFull(r.rd, r.word[:])
		return noEOF(err)
	}
	tag, err := r.rd.ReadByte()
	if err != nil {
		r.pos = len(r.word)
		return err
	}
	r.word = [8]byte{}
	for i := range r.word {
		if tag&(1<<uint(i)) == 0 {
			continue
		}
		if r.word[i], err = r.rd.ReadByte(); err != nil {
			return noEOF(err)
		}
	}
	switch tag {
	case 0x00, 0xff:
		c, err := r.rd.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		if tag == 0x00 {
			r.zeros = int(c)
		} else {
			r.raw = int(c)
		}
	}
	return nil
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
