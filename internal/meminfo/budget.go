// Package meminfo answers one question for the ingester: how many path
// points may be allocated right now without starving the rest of the
// process. The ceiling is derived from free memory minus a fixed headroom,
// re-evaluated on every use so it tracks the live system.
package meminfo

import "math"

// DefaultReserve is the headroom subtracted from free memory before
// computing point capacity.
const DefaultReserve = 256

// Budget computes the point-capacity ceiling for path ingestion.
//
// Fixed, when non-zero, pins the available-memory figure regardless of the
// live system; bench setups and tests use it for determinism. Otherwise
// Query supplies the figure (nil means Free).
type Budget struct {
	Reserve uint64
	Fixed   uint64
	Query   func() (uint64, error)
}

// MaxPoints returns how many points of pointSize bytes fit in the budget.
// Unknown or exhausted memory yields 0, which makes every non-empty request
// fail validation rather than overcommit.
func (b Budget) MaxPoints(pointSize int) int {
	if pointSize <= 0 {
		return 0
	}

	avail := b.Fixed
	if avail == 0 {
		query := b.Query
		if query == nil {
			query = Free
		}
		v, err := query()
		if err != nil {
			return 0
		}
		avail = v
	}

	reserve := b.Reserve
	if reserve == 0 {
		reserve = DefaultReserve
	}
	if avail <= reserve {
		return 0
	}

	n := (avail - reserve) / uint64(pointSize)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
