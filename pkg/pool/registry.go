package pool

import "fmt"

// registry is the process-wide, lazily-initialized table of live pools. It
// is a package-level singleton by design: the pools it tracks are a
// process-wide resource, not scoped to any one Pool value, matching the
// single-threaded caller obligation spec'd for this package (there is
// deliberately no mutex here).
type registry struct {
	pools       []*Pool
	size        int
	initialized bool
}

var reg registry

// Init prepares the process-wide pool registry. It must be called exactly
// once before the first call to Open; calling it again without an
// intervening Free fails with ErrCalledAgain.
func Init() error {
	if reg.initialized {
		return ErrCalledAgain
	}

	reg.pools = make([]*Pool, registryInitCapacity)
	reg.size = 0
	reg.initialized = true

	return nil
}

// Free closes every pool still registered and tears the registry down.
// A pool that fails to close does not stop the others from being closed or
// the registry from being torn down; the first such failure is returned,
// wrapping ErrAllocationFailed. Calling it without a prior Init fails with
// ErrCalledAgain.
func Free() error {
	if !reg.initialized {
		return ErrCalledAgain
	}

	var firstErr error

	for i, p := range reg.pools {
		if p == nil {
			continue
		}

		if err := p.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pool: registry teardown: pool %d still has live allocations: %v: %w", i, err, ErrAllocationFailed)
			}

			continue
		}

		reg.pools[i] = nil
	}

	reg.pools = nil
	reg.size = 0
	reg.initialized = false

	return firstErr
}

// registryGrowIfNeeded doubles the registry's slot table once used/total
// crosses fillFactor, same policy as a pool's own node arena and gap index.
func registryGrowIfNeeded() {
	if float64(reg.size)/float64(len(reg.pools)) <= fillFactor {
		return
	}

	grown := make([]*Pool, len(reg.pools)*expandFactor)
	copy(grown, reg.pools)
	reg.pools = grown
}

func registryAdd(p *Pool) {
	for i := range reg.pools {
		if reg.pools[i] == nil {
			reg.pools[i] = p
			reg.size++

			return
		}
	}

	panic("pool: registry has no empty slot immediately after growth")
}

func registryRemove(p *Pool) {
	for i := range reg.pools {
		if reg.pools[i] == p {
			reg.pools[i] = nil
			reg.size--

			return
		}
	}
}
