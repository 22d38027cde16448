// Package pool implements a best-fit memory pool that the execution
// engine draws intermediate tensor storage from, instead of
// allocating and freeing a fresh buffer per node. A block table tracks
// which byte range of the arena is free; a miss that would exceed the
// pool's configured cap tries to reclaim space first (release-unused,
// then defragment) but always proceeds with the growth rather than
// refusing the allocation (§4.6).
package pool

import (
	"sync"
	"time"

	ierrors "github.com/luocf/inferunity/pkg/errors"
	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/logging"
	"github.com/luocf/inferunity/pkg/tensor"
)

// alignment is the byte boundary every block is rounded up to, so
// blocks never straddle a cache line in a way that defeats reuse by
// one dtype family vs. another.
const alignment = 64

// defaultReleaseThreshold is the unused_memory/total_allocated ratio
// that marks a deferred release as due (§4.6).
const defaultReleaseThreshold = 0.5

// defragmentAge is how long a free block must sit unused before
// Defragment will release it.
const defragmentAge = 60 * time.Second

func alignUp(n int64) int64 {
	if rem := n % alignment; rem != 0 {
		n += alignment - rem
	}
	return n
}

// Block describes one span of the pool's arena. AllocatedAt records
// when its bytes were obtained from the system allocator (set once,
// at grow time — not refreshed on reuse), which is what ages it for
// Defragment.
type Block struct {
	Offset      int64
	Size        int64
	Free        bool
	Owner       ir.ValueID
	AllocatedAt time.Time
}

// Pool is a growable byte arena sliced into Blocks. MaxBytes of 0
// means unbounded. A non-zero MaxBytes is a soft cap: a miss that
// would exceed it tries to reclaim space first, but growth always
// succeeds in the end (§4.6 point 2).
type Pool struct {
	mu       sync.Mutex
	arena    []byte
	blocks   []*Block
	maxBytes int64
	logger   *logging.Logger
	now      func() time.Time

	totalAllocated   int64
	peakAllocated    int64
	unusedMemory     int64
	releaseThreshold float64
	releasePending   bool
}

// New returns an empty Pool. initialBytes pre-sizes the arena;
// maxBytes caps how large Grow will let it get before reclaiming space
// (0 for unbounded).
func New(initialBytes, maxBytes int64) *Pool {
	p := &Pool{
		arena:            make([]byte, initialBytes),
		maxBytes:         maxBytes,
		now:              time.Now,
		releaseThreshold: defaultReleaseThreshold,
	}
	if initialBytes > 0 {
		p.blocks = append(p.blocks, &Block{Offset: 0, Size: initialBytes, Free: true, AllocatedAt: p.now()})
		p.totalAllocated = initialBytes
		p.peakAllocated = initialBytes
		p.unusedMemory = initialBytes
	}
	return p
}

// SetLogger attaches the logger used to warn when growth must proceed
// past max_bytes anyway. Leaving it unset is a silent no-op.
func (p *Pool) SetLogger(l *logging.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = l
}

// Allocate reserves size bytes for owner using best-fit selection
// among free blocks, growing the arena if nothing fits.
func (p *Pool) Allocate(size int64, owner ir.ValueID) (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size = alignUp(size)
	if b := p.bestFitLocked(size); b != nil {
		return p.claimLocked(b, size, owner), nil
	}

	if err := p.growLocked(size); err != nil {
		return nil, err
	}
	b := p.bestFitLocked(size)
	if b == nil {
		return nil, ierrors.New(ierrors.OutOfMemory, "pool allocation failed for %d bytes after grow", size)
	}
	return p.claimLocked(b, size, owner), nil
}

func (p *Pool) bestFitLocked(size int64) *Block {
	var best *Block
	for _, b := range p.blocks {
		if !b.Free || b.Size < size {
			continue
		}
		if best == nil || b.Size < best.Size {
			best = b
		}
	}
	return best
}

func (p *Pool) claimLocked(b *Block, size int64, owner ir.ValueID) *Block {
	p.unusedMemory -= size
	if b.Size > size {
		remainder := &Block{Offset: b.Offset + size, Size: b.Size - size, Free: true, AllocatedAt: b.AllocatedAt}
		p.insertAfterLocked(b, remainder)
		b.Size = size
	}
	b.Free = false
	b.Owner = owner
	return b
}

func (p *Pool) insertAfterLocked(after, b *Block) {
	for i, existing := range p.blocks {
		if existing == after {
			p.blocks = append(p.blocks, nil)
			copy(p.blocks[i+2:], p.blocks[i+1:])
			p.blocks[i+1] = b
			return
		}
	}
	p.blocks = append(p.blocks, b)
}

// Free marks a block as reusable. The owner's data is left in place
// (not zeroed) since the block is only reused once something else
// claims it. If the resulting unused_memory/total_allocated ratio
// exceeds the release threshold, a deferred release is marked for the
// caller to run outside the hot path via RunDeferredRelease (§4.6).
func (p *Pool) Free(b *Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.Free {
		return
	}
	b.Free = true
	b.Owner = ir.NoValue
	p.unusedMemory += b.Size
	p.markReleasePendingLocked()
}

func (p *Pool) markReleasePendingLocked() {
	if p.totalAllocated > 0 && float64(p.unusedMemory)/float64(p.totalAllocated) > p.releaseThreshold {
		p.releasePending = true
	}
}

// ReleaseDead frees every block whose owner is in deadOwners. Used by
// the engine between scheduling steps once lifetime analysis says a
// value will never be read again.
func (p *Pool) ReleaseDead(deadOwners map[ir.ValueID]bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	released := 0
	for _, b := range p.blocks {
		if !b.Free && deadOwners[b.Owner] {
			b.Free = true
			b.Owner = ir.NoValue
			p.unusedMemory += b.Size
			released++
		}
	}
	if released > 0 {
		p.markReleasePendingLocked()
	}
	return released
}

// RunDeferredRelease performs a pending deferred release (marked by
// Free or ReleaseDead crossing the release threshold), if one is due.
// Callers invoke this outside the hot path — e.g. once per Run, not
// per node — since it walks the full block list.
func (p *Pool) RunDeferredRelease() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.releasePending {
		return
	}
	p.releasePending = false
	p.defragmentLocked()
}

// Defragment releases non-in-use blocks older than 60 seconds. It
// does NOT merge adjacent free blocks: the arena is a single
// non-relocatable allocation as far as callers are concerned, so
// compaction-by-coalescing is out of scope (§4.6) — a released block's
// bytes are simply dropped from the pool's own bookkeeping, as if
// handed back to the system allocator, and can never be reclaimed by a
// future Allocate.
func (p *Pool) Defragment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defragmentLocked()
}

func (p *Pool) defragmentLocked() {
	now := p.now()
	kept := p.blocks[:0]
	for _, b := range p.blocks {
		if b.Free && now.Sub(b.AllocatedAt) > defragmentAge {
			p.totalAllocated -= b.Size
			p.unusedMemory -= b.Size
			continue
		}
		kept = append(kept, b)
	}
	p.blocks = kept
}

// releaseUnusedLocked immediately drops every currently free block
// from the pool's bookkeeping, regardless of age. It is the
// unconditional first step growLocked tries before resorting to the
// age-gated Defragment when a grow would exceed max_bytes.
func (p *Pool) releaseUnusedLocked() {
	kept := p.blocks[:0]
	for _, b := range p.blocks {
		if b.Free {
			p.totalAllocated -= b.Size
			p.unusedMemory -= b.Size
			continue
		}
		kept = append(kept, b)
	}
	p.blocks = kept
}

// growLocked extends the arena by at least `need` bytes. A grow that
// would push total_allocated past max_bytes first tries
// releaseUnusedLocked, then the age-gated defragmentLocked, to make
// room within the cap — but growth always proceeds afterward even if
// still over, with a logged warning (§4.6 point 2, §8): the cap is
// advisory, not a hard allocation failure.
func (p *Pool) growLocked(need int64) error {
	grow := need
	if doubled := p.totalAllocated; doubled > grow {
		grow = doubled // amortize by at least doubling when the arena is already non-trivial
	}

	if p.maxBytes > 0 && p.totalAllocated+grow > p.maxBytes {
		grow = need
		if p.totalAllocated+grow > p.maxBytes {
			p.releaseUnusedLocked()
		}
		if p.totalAllocated+grow > p.maxBytes {
			p.defragmentLocked()
		}
		if p.totalAllocated+grow > p.maxBytes {
			p.warnf("pool growing to %d bytes past max_bytes=%d (need %d more, have %d)",
				p.totalAllocated+grow, p.maxBytes, need, p.totalAllocated)
		}
	}

	oldLen := int64(len(p.arena))
	p.arena = append(p.arena, make([]byte, grow)...)
	p.blocks = append(p.blocks, &Block{Offset: oldLen, Size: grow, Free: true, AllocatedAt: p.now()})
	p.totalAllocated += grow
	p.unusedMemory += grow
	if p.totalAllocated > p.peakAllocated {
		p.peakAllocated = p.totalAllocated
	}
	return nil
}

func (p *Pool) warnf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warnf(format, args...)
	}
}

// Bind wraps a Block's backing bytes as a Tensor of the given shape
// and dtype, with no copy.
func (p *Pool) Bind(b *Block, shape tensor.Shape, dtype tensor.DType) *tensor.Tensor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return tensor.FromBuffer(shape, dtype, p.arena[b.Offset:b.Offset+b.Size])
}

// Stats reports occupancy and §4.6's required bookkeeping totals for
// diagnostics/telemetry.
type Stats struct {
	ArenaBytes int64
	UsedBytes  int64
	FreeBytes  int64
	NumBlocks  int

	TotalAllocated   int64
	PeakAllocated    int64
	UnusedMemory     int64
	ReleaseThreshold float64
}

// Stats returns a snapshot of current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		ArenaBytes:       int64(len(p.arena)),
		NumBlocks:        len(p.blocks),
		TotalAllocated:   p.totalAllocated,
		PeakAllocated:    p.peakAllocated,
		UnusedMemory:     p.unusedMemory,
		ReleaseThreshold: p.releaseThreshold,
	}
	for _, b := range p.blocks {
		if b.Free {
			s.FreeBytes += b.Size
		} else {
			s.UsedBytes += b.Size
		}
	}
	return s
}
