package flatptr

import "sync/atomic"

const (
	// DefaultTraverseLimit is the number of bytes a message may read before
	// further pointer follows fail with ErrTraverseLimit.
	DefaultTraverseLimit = 64 << 20

	// DefaultDepthLimit bounds nested pointer follows.
	DefaultDepthLimit = 64
)

// A ReadLimiter tracks the bytes remaining in a message's traversal budget.
// It is safe for concurrent use.
type ReadLimiter struct {
	remaining atomic.Uint64
}

// Reset sets the remaining budget to limit bytes.
func (rl *ReadLimiter) Reset(limit uint64) { rl.remaining.Store(limit) }

// Remaining reports the unspent budget.
func (rl *ReadLimiter) Remaining() uint64 { return rl.remaining.Load() }

// canRead charges sz bytes, reporting false if the budget is exhausted.
func (rl *ReadLimiter) canRead(sz uint64) bool {
	for {
		curr := rl.remaining.Load()
		if curr < sz {
			return false
		}
		if rl.remaining.CompareAndSwap(curr, curr-sz) {
			return true
		}
	}
}

// Unread returns sz bytes to the budget.
func (rl *ReadLimiter) Unread(sz Size) { rl.remaining.Add(uint64(sz)) }
