package pool

import "github.com/flier/subpool/pkg/opt"

// node is a segment descriptor: a contiguous run of a pool's byte region,
// either allocated or a gap, linked to its immediate left/right neighbors by
// stable arena index rather than address. prev/next use opt.Option so "no
// neighbor" has no overlap with a valid index 0.
type node struct {
	size      int
	offset    int
	allocated bool
	used      bool // false for a free (reusable) arena slot

	// generation is bumped every time this slot is unlinked and later
	// reserved again. A Handle carries the generation it was issued with,
	// so a Handle into a slot that has since been recycled for an
	// unrelated allocation is detected rather than silently aliased.
	generation uint32

	prev, next opt.Option[int]
}

// nodeArena is the flat, growable array of segment descriptors backing a
// pool's segment list. Indices are stable for the life of the slot; only
// growth (which copies into a larger backing array but preserves indices)
// changes its capacity.
type nodeArena struct {
	nodes []node
	used  int
}

func newNodeArena(capacity int) *nodeArena {
	return &nodeArena{nodes: make([]node, capacity)}
}

func (a *nodeArena) len() int { return len(a.nodes) }

func (a *nodeArena) get(i int) *node { return &a.nodes[i] }

// growIfNeeded doubles the backing array once used/total crosses fillFactor.
// Existing indices are preserved by the copy.
func (a *nodeArena) growIfNeeded() {
	if float64(a.used)/float64(len(a.nodes)) <= fillFactor {
		return
	}

	grown := make([]node, len(a.nodes)*expandFactor)
	copy(grown, a.nodes)
	a.nodes = grown
}

// reserve finds a free slot by a linear scan from index 0, installs desc
// into it, and returns its index. The caller must have already grown the
// arena if fillFactor demanded it; reserve never grows on its own, since
// growth must happen before any handle is computed from the result.
func (a *nodeArena) reserve(desc node) int {
	for i := range a.nodes {
		if !a.nodes[i].used {
			desc.used = true
			desc.generation = a.nodes[i].generation
			a.nodes[i] = desc
			a.used++

			return i
		}
	}

	panic("pool: node arena exhausted immediately after growth")
}

// unlink removes a descriptor from the segment list, splicing its neighbors
// together, and returns the slot to the free pool with its generation
// bumped.
func (a *nodeArena) unlink(i int) {
	n := &a.nodes[i]

	if n.prev.IsSome() {
		a.nodes[n.prev.Unwrap()].next = n.next
	}
	if n.next.IsSome() {
		a.nodes[n.next.Unwrap()].prev = n.prev
	}

	a.nodes[i] = node{generation: n.generation + 1}
	a.used--
}

// split shrinks the descriptor at chosen to exactly requested bytes and
// marks it allocated. If bytes remain, a fresh gap descriptor is reserved
// for the remainder and spliced in immediately after chosen.
func (a *nodeArena) split(chosen, requested int) (remainder int, ok bool) {
	size := a.nodes[chosen].size
	offset := a.nodes[chosen].offset
	next := a.nodes[chosen].next

	a.nodes[chosen].size = requested
	a.nodes[chosen].allocated = true

	left := size - requested
	if left <= 0 {
		return 0, false
	}

	idx := a.reserve(node{
		size:   left,
		offset: offset + requested,
		prev:   opt.Some(chosen),
		next:   next,
	})

	a.nodes[chosen].next = opt.Some(idx)
	if next.IsSome() {
		a.nodes[next.Unwrap()].prev = opt.Some(idx)
	}

	return idx, true
}

// absorbRight grows idx by its right neighbor's size and unlinks the
// neighbor. idx survives; the neighbor's slot is freed.
func (a *nodeArena) absorbRight(idx int) int {
	next := a.nodes[idx].next.Unwrap()
	a.nodes[idx].size += a.nodes[next].size
	a.unlink(next)

	return idx
}

// absorbLeft grows idx's left neighbor by idx's size and unlinks idx. The
// neighbor survives; idx's slot is freed.
func (a *nodeArena) absorbLeft(idx int) int {
	prev := a.nodes[idx].prev.Unwrap()
	a.nodes[prev].size += a.nodes[idx].size
	a.unlink(idx)

	return prev
}

// liveGap reports whether link points at a descriptor that is both live and
// currently a gap, returning its index.
func liveGap(a *nodeArena, link opt.Option[int]) (int, bool) {
	if link.IsNone() {
		return 0, false
	}

	idx := link.Unwrap()
	n := a.nodes[idx]

	return idx, n.used && !n.allocated
}
