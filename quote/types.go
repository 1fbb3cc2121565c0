package quote

import "quote-engine-go/market"

// Target is the desired quote for one (side, tier). An unset Price means
// no quote should exist at that tier, and then Qty is always 0.
type Target struct {
	// Price is the post-adjustment price to post.
	Price float64
	// ExpPrice is the discovered price before markup and skew, the fill
	// price the tier is expected to capture.
	ExpPrice float64
	Qty      float64
	// Unchanged reports that Price equals the previously posted price,
	// either by calculation or because resistance held it.
	Unchanged bool
}

// Grid holds the targets for both sides, indexed by market.Side and tier.
type Grid [2][]Target

// NewGrid allocates a grid with unset prices on every tier.
func NewGrid(tiers int) Grid {
	var g Grid
	for s := range g {
		g[s] = make([]Target, tiers)
		for i := range g[s] {
			g[s][i].Price = market.Unset()
			g[s][i].ExpPrice = market.Unset()
		}
	}
	return g
}

// Prices extracts one side's price column.
func (g *Grid) Prices(side market.Side) []float64 {
	out := make([]float64, len(g[side]))
	for i, t := range g[side] {
		out[i] = t.Price
	}
	return out
}
