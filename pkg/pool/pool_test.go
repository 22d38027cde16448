package pool

import (
	"bytes"
	"testing"
	"time"

	"github.com/luocf/inferunity/pkg/ir"
	"github.com/luocf/inferunity/pkg/logging"
	"github.com/luocf/inferunity/pkg/tensor"
)

func TestAllocateSplitsBlockOnPartialUse(t *testing.T) {
	p := New(1024, 0)
	b, err := p.Allocate(64, ir.ValueID(1))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if b.Size != 64 || b.Offset != 0 {
		t.Fatalf("unexpected block %+v", b)
	}
	stats := p.Stats()
	if stats.UsedBytes != 64 || stats.FreeBytes != 1024-64 {
		t.Fatalf("unexpected stats after split: %+v", stats)
	}
}

func TestFreeThenAllocateReusesBlock(t *testing.T) {
	p := New(128, 0)
	b1, err := p.Allocate(64, ir.ValueID(1))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Free(b1)

	b2, err := p.Allocate(64, ir.ValueID(2))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if b2.Offset != 0 {
		t.Fatalf("expected the freed block to be reused at offset 0, got %d", b2.Offset)
	}
}

func TestDefragmentReleasesOnlyFreeBlocksOlderThanSixtySeconds(t *testing.T) {
	p := New(128, 0)
	b1, _ := p.Allocate(64, ir.ValueID(1))
	b2, _ := p.Allocate(64, ir.ValueID(2))
	p.Free(b1)
	p.Free(b2)

	// b1 was allocated "a while ago"; b2 is fresh. Back-date b1's
	// AllocatedAt past the 60s threshold, then defragment.
	b1.AllocatedAt = b1.AllocatedAt.Add(-2 * time.Minute)
	p.Defragment()

	stats := p.Stats()
	if stats.NumBlocks != 1 {
		t.Fatalf("expected only b2 to remain tracked (b1 released, not merged into it), got %d blocks", stats.NumBlocks)
	}
	if stats.TotalAllocated != 64 {
		t.Fatalf("expected total_allocated to drop by b1's 64 released bytes, got %d", stats.TotalAllocated)
	}
	if stats.FreeBytes != 64 {
		t.Fatalf("expected the one remaining block to still be b2's 64 free bytes, got %d", stats.FreeBytes)
	}
}

func TestAllocateGrowsArenaWhenNothingFits(t *testing.T) {
	p := New(64, 0)
	p.Allocate(64, ir.ValueID(1))

	b, err := p.Allocate(128, ir.ValueID(2))
	if err != nil {
		t.Fatalf("Allocate after grow: %v", err)
	}
	if b.Size != 128 {
		t.Fatalf("expected grown block of size 128, got %d", b.Size)
	}
	if p.Stats().ArenaBytes < 64+128 {
		t.Fatalf("expected arena to have grown, stats: %+v", p.Stats())
	}
}

func TestAllocateSucceedsPastMaxBytesWithWarning(t *testing.T) {
	var buf bytes.Buffer
	p := New(64, 64)
	p.SetLogger(logging.New(logging.Config{Level: "warn", Output: &buf}))
	p.Allocate(64, ir.ValueID(1))

	// Nothing is free to reclaim, so growth must still proceed past
	// max_bytes=64 rather than failing (§4.6 point 2, §8).
	b, err := p.Allocate(64, ir.ValueID(2))
	if err != nil {
		t.Fatalf("expected allocation past max_bytes to still succeed, got: %v", err)
	}
	if b.Size != 64 {
		t.Fatalf("unexpected block size %d", b.Size)
	}
	if p.Stats().TotalAllocated <= 64 {
		t.Fatalf("expected total_allocated to have grown past max_bytes, got %+v", p.Stats())
	}
	if buf.Len() == 0 {
		t.Fatalf("expected a warning to be logged when growth exceeds max_bytes")
	}
}

func TestAllocateReclaimsFreeSpaceBeforeExceedingMaxBytes(t *testing.T) {
	p := New(128, 128)
	b1, _ := p.Allocate(64, ir.ValueID(1))
	p.Free(b1)

	// A free 64-byte block exists; a 128-byte request doesn't fit it,
	// but release-unused should reclaim it before growth is needed, so
	// the result still fits within max_bytes.
	if _, err := p.Allocate(128, ir.ValueID(2)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p.Stats().TotalAllocated > 128 {
		t.Fatalf("expected release-unused to avoid exceeding max_bytes, got %+v", p.Stats())
	}
}

func TestReleaseDeadFreesOnlyMatchingOwners(t *testing.T) {
	p := New(256, 0)
	b1, _ := p.Allocate(32, ir.ValueID(1))
	_, _ = p.Allocate(32, ir.ValueID(2))

	n := p.ReleaseDead(map[ir.ValueID]bool{ir.ValueID(1): true})
	if n != 1 {
		t.Fatalf("expected exactly one block released, got %d", n)
	}
	if !b1.Free {
		t.Fatalf("expected block owned by value 1 to be freed")
	}
}

func TestBindProducesTensorOverClaimedBytes(t *testing.T) {
	p := New(256, 0)
	b, err := p.Allocate(4*4, ir.ValueID(1))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	ten := p.Bind(b, tensor.NewShape(4), tensor.Float32)
	if err := ten.SetFloat32s([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetFloat32s: %v", err)
	}
	got := ten.Float32s()
	if got[0] != 1 || got[3] != 4 {
		t.Fatalf("unexpected tensor contents: %v", got)
	}
}
