package flatptr

import "fmt"

// An Arena loads and allocates the segments of a Message.
//
// Allocate reserves sz zeroed bytes at the end of some segment, preferring
// segment prefer, and returns that segment's id together with its data
// extended to cover the new region.
type Arena interface {
	NumSegments() int
	Data(id SegmentID) ([]byte, error)
	Allocate(sz Size, prefer SegmentID) (SegmentID, []byte, error)
	Release()
}

const minSegmentGrowth = 1024

// SingleSegment returns an arena that keeps every object in one segment,
// growing (and moving) it as needed. The bytes of b up to len(b) are
// treated as the segment's existing contents.
func SingleSegment(b []byte) Arena {
	return &singleSegmentArena{buf: b}
}

type singleSegmentArena struct {
	buf []byte
}

func (a *singleSegmentArena) NumSegments() int { return 1 }

func (a *singleSegmentArena) Data(id SegmentID) ([]byte, error) {
	if id != 0 {
		return nil, fmt.Errorf("segment %d: %w", id, ErrNoSegment)
	}
	return a.buf, nil
}

func (a *singleSegmentArena) Allocate(sz Size, _ SegmentID) (SegmentID, []byte, error) {
	buf, err := extend(a.buf, sz, true)
	if err != nil {
		return 0, nil, err
	}
	a.buf = buf
	return 0, a.buf, nil
}

func (a *singleSegmentArena) Release() { a.buf = nil }

func (a *singleSegmentArena) String() string {
	return fmt.Sprintf("single-segment arena [len=%d cap=%d]", len(a.buf), cap(a.buf))
}

// MultiSegment returns an arena that adds segments instead of moving them.
// Each b[i] is an existing segment; spare capacity is used for new objects.
func MultiSegment(b [][]byte) Arena {
	return &multiSegmentArena{segs: b}
}

type multiSegmentArena struct {
	segs [][]byte
}

func (a *multiSegmentArena) NumSegments() int { return len(a.segs) }

func (a *multiSegmentArena) Data(id SegmentID) ([]byte, error) {
	if int64(id) >= int64(len(a.segs)) {
		return nil, fmt.Errorf("segment %d: %w", id, ErrNoSegment)
	}
	return a.segs[id], nil
}

func (a *multiSegmentArena) Allocate(sz Size, prefer SegmentID) (SegmentID, []byte, error) {
	if int64(prefer) < int64(len(a.segs)) && hasRoom(a.segs[prefer], sz) {
		return a.grow(prefer, sz)
	}
	for i := len(a.segs) - 1; i >= 0; i-- {
		if hasRoom(a.segs[i], sz) {
			return a.grow(SegmentID(i), sz)
		}
	}
	if sz > maxSegmentSize {
		return 0, nil, ErrSegmentTooLarge
	}
	n := Size(minSegmentGrowth)
	if len(a.segs) > 0 {
		last := Size(cap(a.segs[len(a.segs)-1]))
		if last < maxSegmentSize/2 {
			n = max(n, last*2)
		} else {
			n = maxSegmentSize
		}
	}
	n = max(n, sz.padToWord())
	a.segs = append(a.segs, make([]byte, 0, n))
	return a.grow(SegmentID(len(a.segs)-1), sz)
}

func (a *multiSegmentArena) grow(id SegmentID, sz Size) (SegmentID, []byte, error) {
	buf, err := extend(a.segs[id], sz, false)
	if err != nil {
		return 0, nil, err
	}
	a.segs[id] = buf
	return id, buf, nil
}

func (a *multiSegmentArena) Release() { a.segs = nil }

func (a *multiSegmentArena) String() string {
	return fmt.Sprintf("multi-segment arena [%d segments]", len(a.segs))
}

func hasRoom(b []byte, sz Size) bool {
	return uint64(cap(b)-len(b)) >= uint64(sz) && uint64(len(b))+uint64(sz) <= uint64(maxSegmentSize)
}

// extend appends sz zero bytes to b. When move is false, b must already have
// the capacity.
func extend(b []byte, sz Size, move bool) ([]byte, error) {
	n := uint64(len(b)) + uint64(sz)
	if n > uint64(maxSegmentSize) {
		return nil, ErrSegmentTooLarge
	}
	if n > uint64(cap(b)) {
		if !move {
			return nil, ErrSegmentTooLarge
		}
		c := max(uint64(cap(b))*2, n, minSegmentGrowth)
		c = min(c, uint64(maxSegmentSize))
		nb := make([]byte, len(b), c)
		copy(nb, b)
		b = nb
	}
	start := len(b)
	b = b[:n]
	clear(b[start:])
	return b, nil
}
