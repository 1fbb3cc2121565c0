package market

// FindPrices walks one side of the book best-first, accumulating the
// aggregated quantity per level, and records for every volume target the
// price of the level at which the running total first exceeds it. Targets
// the book cannot cover stay Unset.
//
// With skipTop set, a target reached already at the top-of-book level is
// not recorded there (quoting at the inside is not wanted); after the
// walk every recorded price is shifted one tick toward the market, which
// stands in for the level preceding the recording one.
//
// The walk is O(depth) and is the expensive part of a quoting cycle;
// callers invoke it at most once per side per cycle.
func FindPrices(b View, side Side, volTargets []float64, skipTop bool, tick float64) []float64 {
	n := len(volTargets)
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = Unset()
	}

	cum := 0.0
	next := 0 // first tier still waiting for a price
	top := true

	b.Traverse(side, 0, func(_ int, px, aggQty float64) bool {
		if next >= n {
			return false
		}
		cum += aggQty
		for t := next; t < n; t++ {
			if cum <= volTargets[t] {
				break
			}
			if top && skipTop {
				// Top level satisfied the target: skip, the next
				// level records it instead.
				continue
			}
			prices[t] = px
			next++
		}
		top = false
		return true
	})

	if skipTop {
		for i := range prices {
			if !IsFinite(prices[i]) {
				continue
			}
			if side == Bid {
				prices[i] += tick
			} else {
				prices[i] -= tick
			}
		}
	}
	return prices
}
