package pool

// Tuning constants, carried over from the C source's MEM_* macros but
// Go-cased. A single fillFactor/expandFactor pair governs growth of the
// node arena, the gap index, and the pool registry.
const (
	// fillFactor is the used/total ratio past which a growable array
	// doubles. Corresponds to MEM_FILL_FACTOR in the original source.
	fillFactor = 0.75

	// expandFactor is how much a growable array grows by once fillFactor
	// is crossed. Corresponds to MEM_EXPAND_FACTOR.
	expandFactor = 2

	// nodeArenaInitCapacity is the initial descriptor count of a pool's
	// node arena. Corresponds to MEM_NODE_HEAP_INIT_CAPACITY.
	nodeArenaInitCapacity = 40

	// gapIndexInitCapacity is the initial entry count of a pool's gap
	// index. Corresponds to MEM_GAP_IX_INIT_CAPACITY.
	gapIndexInitCapacity = 40

	// registryInitCapacity is the initial slot count of the process-wide
	// pool registry. Corresponds to MEM_POOL_STORE_INIT_CAPACITY.
	registryInitCapacity = 20
)
