// Package pool implements a user-space suballocator: a single pool carves a
// fixed-size byte region, obtained once from a host allocator, into
// allocated and free segments, tracking both with stable indices into a
// flat descriptor arena rather than raw addresses.
//
// A Pool is not safe for concurrent use; see the package-level registry
// functions Init and Free for the process-wide bookkeeping a caller must
// perform around a Pool's lifetime.
package pool

import (
	"fmt"
	"unsafe"

	"github.com/flier/subpool/internal/debug"
	"github.com/flier/subpool/pkg/arena"
	"github.com/flier/subpool/pkg/opt"
	"github.com/flier/subpool/pkg/res"
)

// Policy selects how Allocate chooses among gaps large enough to satisfy a
// request.
type Policy int

const (
	// FirstFit walks the segment list in offset order and picks the first
	// sufficiently large gap.
	FirstFit Policy = iota

	// BestFit picks the smallest sufficiently large gap, breaking ties by
	// earliest offset.
	BestFit
)

func (p Policy) String() string {
	switch p {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return "unknown-policy"
	}
}

// Handle names a live allocation within a Pool. It is an opaque value: the
// only valid uses are passing it back to Release or comparing it for
// equality. It is never a raw pointer into the pool's byte region.
//
// The zero Handle is not a distinguished "invalid" value: on a pool whose
// first descriptor has never been recycled, it aliases that descriptor's
// real handle. Always check the error Allocate returns rather than using a
// zero Handle as a sentinel.
type Handle struct {
	index      int
	generation uint32
}

// Segment is a read-only snapshot of one tile of a pool's byte region, as
// reported by Inspect.
type Segment struct {
	Size      int
	Allocated bool
}

// Pool owns one contiguous byte region and the bookkeeping that tiles it
// into allocated and free segments.
type Pool struct {
	policy Policy

	data []byte

	totalSize int
	allocSize int
	numAllocs int
	numGaps   int

	head  int
	nodes *nodeArena
	gaps  *gapIndex
}

// hostAllocator is the process-wide byte allocator every Pool draws its
// region from, standing in for the malloc a C pool manager would call. It
// is shared, not per-pool, so that closing one pool can hand its region's
// memory back for a later pool of similar size to reuse.
var hostAllocator arena.Recycled

// Open carves out a new pool of exactly size bytes from the host allocator
// and registers it with the process-wide registry. The registry must
// already have been initialized with Init; calling Open before Init is a
// caller error, not a recoverable Status, matching the source's assert.
func Open(size int, policy Policy) (*Pool, error) {
	if !reg.initialized {
		panic("pool: Open called before Init")
	}

	if size < 1 {
		return nil, fmt.Errorf("pool: size must be positive: %w", ErrAllocationFailed)
	}

	return open(size, policy)
}

func open(size int, policy Policy) (pool *Pool, err error) {
	defer func() {
		if r := recover(); r != nil {
			pool, err = nil, fmt.Errorf("pool: host allocator failed: %v: %w", r, ErrAllocationFailed)
		}
	}()

	registryGrowIfNeeded()

	raw := hostAllocator.Alloc(size)
	data := unsafe.Slice(raw, size)

	p := &Pool{
		policy:    policy,
		data:      data,
		totalSize: size,
		nodes:     newNodeArena(nodeArenaInitCapacity),
		gaps:      newGapIndex(gapIndexInitCapacity),
	}

	p.head = p.nodes.reserve(node{size: size, offset: 0})
	p.gaps.add(p.nodes, size, p.head)
	p.numGaps = 1

	registryAdd(p)

	debug.Log(nil, "Open", "opened pool of %d bytes with policy %s", size, policy)

	return p, nil
}

// Close releases a pool's region back to the host allocator. It fails with
// ErrNotFreed unless the pool has no live allocations and has coalesced
// back down to a single gap — i.e. the caller released everything it
// allocated.
func (p *Pool) Close() error {
	if p == nil {
		return ErrNotFreed
	}

	if p.numAllocs != 0 || p.numGaps != 1 {
		return ErrNotFreed
	}

	registryRemove(p)
	hostAllocator.Release(&p.data[0], p.totalSize)

	debug.Log(nil, "Close", "closed pool of %d bytes", p.totalSize)

	p.data = nil
	p.nodes = nil
	p.gaps = nil

	return nil
}

// Allocate carves a size-byte segment out of the pool's free space,
// choosing a gap according to the pool's Policy, splitting off any
// remainder, and returning a Handle identifying the new allocation.
func (p *Pool) Allocate(size int) (Handle, error) {
	if size < 1 {
		return Handle{}, fmt.Errorf("pool: size must be positive: %w", ErrNoMemory)
	}

	if p.numGaps == 0 {
		return Handle{}, ErrNoMemory
	}

	p.nodes.growIfNeeded()

	chosen, ok := p.findGap(size)
	if !ok {
		return Handle{}, ErrNoMemory
	}

	p.gaps.remove(chosen)

	remainder, hasRemainder := p.nodes.split(chosen, size)
	if hasRemainder {
		p.gaps.add(p.nodes, p.nodes.get(remainder).size, remainder)
	} else {
		p.numGaps--
	}

	p.numAllocs++
	p.allocSize += size

	debug.Log(nil, "Allocate", "allocated %d bytes at descriptor %d", size, chosen)

	return Handle{index: chosen, generation: p.nodes.get(chosen).generation}, nil
}

// AllocateResult is Allocate wrapped as a res.Result, for callers that
// prefer the combinator style over a plain (Handle, error) pair.
func (p *Pool) AllocateResult(size int) res.Result[Handle] {
	return res.Wrap(p.Allocate(size))
}

// Release returns a previously allocated segment to the pool's free space,
// coalescing with an immediately adjacent free segment on either side. It
// fails with ErrNotFreed if h does not name a currently live allocation.
func (p *Pool) Release(h Handle) error {
	if h.index < 0 || h.index >= p.nodes.len() {
		return ErrNotFreed
	}

	n := p.nodes.get(h.index)
	if !n.used || !n.allocated || n.generation != h.generation {
		return ErrNotFreed
	}

	idx := h.index

	n.allocated = false
	p.numAllocs--
	p.allocSize -= n.size
	p.numGaps++

	if next, ok := liveGap(p.nodes, p.nodes.get(idx).next); ok {
		p.gaps.remove(next)
		idx = p.nodes.absorbRight(idx)
		p.numGaps--
	}

	p.gaps.add(p.nodes, p.nodes.get(idx).size, idx)

	if prev, ok := liveGap(p.nodes, p.nodes.get(idx).prev); ok {
		p.gaps.remove(prev)
		p.gaps.remove(idx)
		idx = p.nodes.absorbLeft(idx)
		p.numGaps--
		p.gaps.add(p.nodes, p.nodes.get(idx).size, idx)
	}

	debug.Log(nil, "Release", "released descriptor %d, coalesced to size %d", idx, p.nodes.get(idx).size)

	return nil
}

// Inspect returns the pool's segments in offset order, allocated and free
// alike, tiling the entire region exactly.
func (p *Pool) Inspect() []Segment {
	segments := make([]Segment, 0, p.numAllocs+p.numGaps)

	cur := opt.Some(p.head)
	for cur.IsSome() {
		idx := cur.Unwrap()
		n := p.nodes.get(idx)
		segments = append(segments, Segment{Size: n.size, Allocated: n.allocated})
		cur = n.next
	}

	if want := p.numAllocs + p.numGaps; len(segments) != want {
		panic(fmt.Sprintf("pool: inspect walked %d segments, counters say %d", len(segments), want))
	}

	return segments
}

// findGap locates a gap at least size bytes, per the pool's Policy.
func (p *Pool) findGap(size int) (int, bool) {
	switch p.policy {
	case BestFit:
		for i := 0; i < p.gaps.len(); i++ {
			gapSize, idx := p.gaps.get(i)
			if gapSize >= size {
				return idx, true
			}
		}

		return 0, false

	default: // FirstFit
		cur := opt.Some(p.head)
		for cur.IsSome() {
			idx := cur.Unwrap()
			n := p.nodes.get(idx)
			if !n.allocated && n.size >= size {
				return idx, true
			}
			cur = n.next
		}

		return 0, false
	}
}
