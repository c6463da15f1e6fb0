package flatptr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxSegments is the largest segment count Unmarshal accepts.
const MaxSegments = 512

// ReadOptions configures the safety limits of a message being read.
// Zero values select the defaults.
type ReadOptions struct {
	TraverseLimit uint64 // bytes
	DepthLimit    uint

	// MaxMessageSize caps the bytes a packed or streamed message may
	// expand to.
	MaxMessageSize uint64
}

func (o ReadOptions) apply(m *Message) {
	m.TraverseLimit = o.TraverseLimit
	m.DepthLimit = o.DepthLimit
}

// A Message is a tree of structs and lists spread over one or more segments.
// Reads may run concurrently; writes must not overlap with anything else.
type Message struct {
	Arena Arena

	// TraverseLimit and DepthLimit apply to reads; zero selects the
	// default. Changing them after the first read requires ResetReadLimit.
	TraverseLimit uint64
	DepthLimit    uint

	mu       sync.Mutex
	segs     []*Segment
	rlimit   ReadLimiter
	rlimInit sync.Once
}

// NewMessage creates a message backed by an empty arena and reserves the root
// pointer. The returned segment is the first segment.
func NewMessage(arena Arena) (*Message, *Segment, error) {
	msg := &Message{Arena: arena}
	if err := msg.init(); err != nil {
		return nil, nil, err
	}
	seg, err := msg.Segment(0)
	if err != nil {
		return nil, nil, err
	}
	return msg, seg, nil
}

func (m *Message) init() error {
	switch m.Arena.NumSegments() {
	case 0:
	case 1:
		data, err := m.Arena.Data(0)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			return ErrArenaNotEmpty
		}
	default:
		return ErrArenaNotEmpty
	}
	seg, addr, err := m.alloc(wordSize, nil)
	if err != nil {
		return err
	}
	if seg.id != 0 || addr != 0 {
		return errors.New("arena did not place the root pointer at the start of segment 0")
	}
	return nil
}

// Reset clears the message, releasing its current arena and adopting arena.
func (m *Message) Reset(arena Arena) error {
	m.mu.Lock()
	if m.Arena != nil {
		m.Arena.Release()
	}
	m.Arena = arena
	m.segs = nil
	m.mu.Unlock()
	m.ResetReadLimit(m.traverseLimit())
	return m.init()
}

func (m *Message) traverseLimit() uint64 {
	if m.TraverseLimit == 0 {
		return DefaultTraverseLimit
	}
	return m.TraverseLimit
}

func (m *Message) depthLimit() uint {
	if m.DepthLimit == 0 {
		return DefaultDepthLimit
	}
	return m.DepthLimit
}

// ReadLimiter returns the limiter charged by pointer reads.
func (m *Message) ReadLimiter() *ReadLimiter {
	m.rlimInit.Do(func() { m.rlimit.Reset(m.traverseLimit()) })
	return &m.rlimit
}

// ResetReadLimit restores the traversal budget to limit bytes.
func (m *Message) ResetReadLimit(limit uint64) {
	m.rlimInit.Do(func() {})
	m.rlimit.Reset(limit)
}

func (m *Message) canRead(sz uint64) bool { return m.ReadLimiter().canRead(sz) }

// NumSegments returns the number of segments in the message.
func (m *Message) NumSegments() int { return m.Arena.NumSegments() }

// Segment returns the segment with the given id.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.segment(id)
}

func (m *Message) segment(id SegmentID) (*Segment, error) {
	if int64(id) < int64(len(m.segs)) && m.segs[id] != nil {
		return m.segs[id], nil
	}
	if int64(id) >= int64(m.Arena.NumSegments()) {
		return nil, fmt.Errorf("segment %d: %w", id, ErrNoSegment)
	}
	data, err := m.Arena.Data(id)
	if err != nil {
		return nil, err
	}
	if len(data)%int(wordSize) != 0 {
		return nil, fmt.Errorf("segment %d: length %d is not word aligned", id, len(data))
	}
	for int64(len(m.segs)) <= int64(id) {
		m.segs = append(m.segs, nil)
	}
	seg := &Segment{msg: m, id: id, data: data}
	m.segs[id] = seg
	return seg, nil
}

// alloc reserves sz bytes, rounded up to a word, preferring segment pref.
func (m *Message) alloc(sz Size, pref *Segment) (*Segment, address, error) {
	sz = sz.padToWord()
	if sz > maxSegmentSize {
		return nil, 0, ErrSegmentTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var prefID SegmentID
	if pref != nil {
		prefID = pref.id
	}
	id, data, err := m.Arena.Allocate(sz, prefID)
	if err != nil {
		return nil, 0, fmt.Errorf("allocate %d bytes: %w", sz, err)
	}
	seg, err := m.segment(id)
	if err != nil {
		return nil, 0, err
	}
	seg.data = data
	return seg, address(len(data)) - address(sz), nil
}

// Root returns the root pointer of the message.
func (m *Message) Root() (Ptr, error) {
	seg, err := m.Segment(0)
	if err != nil {
		return Ptr{}, err
	}
	p, err := seg.readPtr(0, m.depthLimit())
	if err != nil {
		return Ptr{}, fmt.Errorf("read root: %w", err)
	}
	return p, nil
}

// SetRoot points the root at p, copying p if it lives in another message.
func (m *Message) SetRoot(p Ptr) error {
	seg, err := m.Segment(0)
	if err != nil {
		return err
	}
	if err := seg.writePtr(0, p); err != nil {
		return fmt.Errorf("set root: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------------------
// Stream framing
// ------------------------------------------------------------------------------

// Marshal concatenates the segment table and the segments.
func (m *Message) Marshal() ([]byte, error) {
	n := m.Arena.NumSegments()
	if n == 0 {
		return nil, errors.New("marshal: message has no segments")
	}
	if n > MaxSegments {
		return nil, ErrTooManySegments
	}
	hdr := headerSize(n)
	total := uint64(hdr)
	datas := make([][]byte, n)
	for i := range datas {
		data, err := m.Arena.Data(SegmentID(i))
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		datas[i] = data
		total += uint64(len(data))
	}
	if total > uint64(maxSegmentSize) {
		return nil, ErrMessageTooLarge
	}
	buf := make([]byte, hdr, total)
	binary.LittleEndian.PutUint32(buf, uint32(n-1))
	for i, data := range datas {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(len(data)/int(wordSize)))
	}
	for _, data := range datas {
		buf = append(buf, data...)
	}
	return buf, nil
}

// MarshalPacked is Marshal followed by Pack.
func (m *Message) MarshalPacked() ([]byte, error) {
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	return Pack(make([]byte, 0, len(data)/2), data), nil
}

func headerSize(nsegs int) int {
	return int(Size(4 * (nsegs + 1)).padToWord())
}

// parseHeader decodes the segment table at the start of data, returning
// the segment sizes in bytes and the header length.
func parseHeader(data []byte) ([]Size, int, error) {
	if len(data) < 4 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	n := uint64(binary.LittleEndian.Uint32(data)) + 1
	if n > MaxSegments {
		return nil, 0, fmt.Errorf("%d segments: %w", n, ErrTooManySegments)
	}
	hdr := headerSize(int(n))
	if len(data) < hdr {
		return nil, 0, io.ErrUnexpectedEOF
	}
	sizes := make([]Size, n)
	for i := range sizes {
		words := uint64(binary.LittleEndian.Uint32(data[4+4*i:]))
		if words*uint64(wordSize) > uint64(maxSegmentSize) {
			return nil, 0, ErrSegmentTooLarge
		}
		sizes[i] = Size(words) * wordSize
	}
	return sizes, hdr, nil
}

// Unmarshal reads a framed message. The message aliases data; writes to
// existing objects modify it, while new objects go to fresh segments.
func Unmarshal(data []byte) (*Message, error) {
	return UnmarshalWith(data, ReadOptions{})
}

// UnmarshalWith is Unmarshal with explicit read limits.
func UnmarshalWith(data []byte, opts ReadOptions) (*Message, error) {
	sizes, hdr, err := parseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	rest := data[hdr:]
	segs := make([][]byte, len(sizes))
	for i, sz := range sizes {
		if uint64(sz) > uint64(len(rest)) {
			return nil, fmt.Errorf("unmarshal: segment %d: %w", i, io.ErrUnexpectedEOF)
		}
		segs[i] = rest[:sz:sz]
		rest = rest[sz:]
	}
	if len(segs[0]) < int(wordSize) {
		return nil, fmt.Errorf("unmarshal: first segment has no root pointer: %w", io.ErrUnexpectedEOF)
	}
	msg := &Message{Arena: MultiSegment(segs)}
	opts.apply(msg)
	return msg, nil
}

// UnmarshalPacked unpacks data and unmarshals the result.
func UnmarshalPacked(data []byte) (*Message, error) {
	return UnmarshalPackedWith(data, ReadOptions{})
}

// UnmarshalPackedWith is UnmarshalPacked with explicit limits.
func UnmarshalPackedWith(data []byte, opts ReadOptions) (*Message, error) {
	raw, err := UnpackLimit(make([]byte, 0, len(data)*2), data, opts.MaxMessageSize)
	if err != nil {
		return nil, fmt.Errorf("unmarshal packed: %w", err)
	}
	return UnmarshalWith(raw, opts)
}
