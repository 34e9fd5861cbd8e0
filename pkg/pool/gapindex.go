package pool

import "github.com/flier/subpool/pkg/tuple"

// gapEntry pairs a gap's size with the node-arena index of its descriptor,
// exactly the (size, descriptor-identity) entry spec'd for the gap index.
type gapEntry = tuple.Tuple2[int, int]

// gapIndex is a flat, growable array of gapEntry kept in ascending total
// order: by size, then by offset of the referenced descriptor on ties. It is
// a second, independent index over the same descriptors the node arena
// owns — it never owns descriptor state itself, only an (size, index) view
// of it, so every lookup that needs offset goes back through a *nodeArena.
type gapIndex struct {
	entries []gapEntry
	n       int
}

func newGapIndex(capacity int) *gapIndex {
	return &gapIndex{entries: make([]gapEntry, capacity)}
}

func (g *gapIndex) len() int { return g.n }

func (g *gapIndex) get(i int) (size, idx int) { return g.entries[i].Unpack() }

func (g *gapIndex) growIfNeeded() {
	if float64(g.n)/float64(len(g.entries)) <= fillFactor {
		return
	}

	grown := make([]gapEntry, len(g.entries)*expandFactor)
	copy(grown, g.entries)
	g.entries = grown
}

// add appends a new entry and bubbles it up to its sorted position.
func (g *gapIndex) add(nodes *nodeArena, size, idx int) {
	g.growIfNeeded()

	g.entries[g.n] = tuple.New2(size, idx)
	g.n++

	for i := g.n - 1; i > 0 && less(nodes, g.entries[i], g.entries[i-1]); i-- {
		g.entries[i], g.entries[i-1] = g.entries[i-1], g.entries[i]
	}
}

// remove finds the entry naming idx by a linear scan and shifts the tail
// left over it.
func (g *gapIndex) remove(idx int) {
	pos := -1

	for i := 0; i < g.n; i++ {
		if _, nodeIdx := g.entries[i].Unpack(); nodeIdx == idx {
			pos = i
			break
		}
	}

	if pos < 0 {
		panic("pool: gap index: descriptor not present")
	}

	copy(g.entries[pos:g.n-1], g.entries[pos+1:g.n])
	g.n--
	g.entries[g.n] = gapEntry{}
}

// less reports whether a sorts strictly before b: smaller size first, then
// smaller offset of the descriptor it names.
func less(nodes *nodeArena, a, b gapEntry) bool {
	aSize, aIdx := a.Unpack()
	bSize, bIdx := b.Unpack()

	if aSize != bSize {
		return aSize < bSize
	}

	return nodes.get(aIdx).offset < nodes.get(bIdx).offset
}
