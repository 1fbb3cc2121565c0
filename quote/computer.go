package quote

import (
	"math"

	"go.uber.org/zap"

	"quote-engine-go/market"
)

// Computer derives the target grid for one instrument. It is stateless
// between cycles; previously posted prices are passed in by the caller.
type Computer struct {
	cfg Config
	log *zap.Logger
}

func NewComputer(cfg Config, log *zap.Logger) *Computer {
	return &Computer{cfg: cfg, log: log}
}

func (qc *Computer) Config() Config { return qc.cfg }

// SetConfig swaps the parameter set between cycles (hot reload). The
// caller guarantees it runs on the reactor thread.
func (qc *Computer) SetConfig(cfg Config) { qc.cfg = cfg }

// Compute runs the full pipeline: price discovery, markup and one-sided
// position skew, rounding away from the inside, resistance, self-cross
// repair, the minimum-spread veto and quantity distribution.
//
// prevPxs holds the currently posted price per (side, tier), unset where
// no quote stands. cancelAll is set when the book supports only one side
// and the position is near flat; the caller should cancel all quotes for
// this cycle instead of using the grid.
func (qc *Computer) Compute(book market.View, position float64, prevPxs [2][]float64) (g Grid, cancelAll bool) {
	cfg := &qc.cfg
	tick := cfg.EffectiveTick()
	bestBid := book.BestBid()
	bestAsk := book.BestAsk()

	g = NewGrid(cfg.Tiers)
	var sideValid [2]bool

	for s := market.Side(0); s < 2; s++ {
		isBid := s == market.Bid
		pxs := market.FindPrices(book, s, cfg.VolTargets, cfg.SkipTopLevel, tick)

		for i := 0; i < cfg.Tiers; i++ {
			px := pxs[i]
			sideValid[s] = sideValid[s] || market.IsFinite(px)
			if !market.IsFinite(px) {
				continue
			}

			// Markup plus the position skew, applied only to the side
			// that would grow the position: a long lowers its bid but
			// leaves the ask alone, which keeps the captured spread.
			// Rounding always moves AWAY from the inside so it can
			// neither cross the market nor narrow the spread.
			if isBid {
				px -= cfg.Markup
				if position > 0 {
					px -= position * cfg.SkewCoeff
				}
				px = roundDown(px, tick)
			} else {
				px += cfg.Markup
				if position < 0 {
					px -= position * cfg.SkewCoeff
				}
				px = roundUp(px, tick)
			}
			g[s][i].ExpPrice = px

			// Resistance: hold the posted price when the move is small
			// relative to its distance from L1. Only applies while both
			// the old and the new price sit beyond the inside; a price
			// at L1 or better is worth posting, and one that was at L1
			// must move away regardless.
			if cfg.ResistCoeff > 0 && market.IsFinite(prevPxs[s][i]) {
				prev := prevPxs[s][i]
				dist := math.Abs(prev - px)
				bothRear := (isBid && prev < bestBid && px < bestBid) ||
					(!isBid && prev > bestAsk && px > bestAsk)
				if px != prev && bothRear {
					resist := cfg.ResistCoeff * rearDistance(isBid, bestBid, bestAsk, prev)
					if dist < resist {
						px = prev // stay put
					}
				}
			}

			g[s][i].Unchanged = prevPxs[s][i] == px
			g[s][i].Price = px
		}
	}

	qc.repairCrossings(&g, tick)
	qc.applySpreadVeto(&g, position)

	// One usable side and a near-flat position: quoting one-sided would
	// only build inventory into a thin book.
	oneSideValid := sideValid[market.Bid] != sideValid[market.Ask]
	if oneSideValid && math.Abs(position) < cfg.MinSize {
		qc.log.Warn("single-sided liquidity while flat, cancelling quotes",
			zap.String("symbol", cfg.Symbol),
			zap.Bool("bid_valid", sideValid[market.Bid]),
			zap.Bool("ask_valid", sideValid[market.Ask]))
		return g, true
	}

	for s := market.Side(0); s < 2; s++ {
		sideQty := qc.sideQty(s, position)
		qtys := Distribute(sideQty, g.Prices(s), cfg.QtyFracs, cfg.MinSize, qc.log)
		for i := range g[s] {
			g[s][i].Qty = qtys[i]
			if !market.IsFinite(g[s][i].Price) {
				g[s][i].Qty = 0
			}
		}
	}
	return g, false
}

// repairCrossings restores ask > bid per tier. The side whose price did
// not just move is kept where it is and the other side is pushed away;
// when both moved (or both held) the prices are pushed apart
// symmetrically one tick at a time.
func (qc *Computer) repairCrossings(g *Grid, tick float64) {
	for i := 0; i < qc.cfg.Tiers; i++ {
		bid := &(*g)[market.Bid][i]
		ask := &(*g)[market.Ask][i]
		// Only holds when both prices are set.
		if !(ask.Price <= bid.Price) {
			continue
		}
		switch {
		case bid.Unchanged && !ask.Unchanged:
			ask.Price = bid.Price + tick
		case ask.Unchanged && !bid.Unchanged:
			bid.Price = ask.Price - tick
		default:
			for ask.Price <= bid.Price {
				ask.Price += tick
				bid.Price -= tick
			}
		}
		bid.Unchanged = false
		ask.Unchanged = false
	}
}

// applySpreadVeto unsets both prices of a tier whose spread is below the
// configured basis-point floor. Skipped once the position reaches the
// soft limit: flattening through a tight market beats staying loaded.
func (qc *Computer) applySpreadVeto(g *Grid, position float64) {
	cfg := &qc.cfg
	if cfg.MinSpreadBps <= 0 || math.Abs(position) >= cfg.PosSoftLimit {
		return
	}
	for i := 0; i < cfg.Tiers; i++ {
		bid := &(*g)[market.Bid][i]
		ask := &(*g)[market.Ask][i]
		if !market.IsFinite(bid.Price) || !market.IsFinite(ask.Price) {
			continue
		}
		bps := (ask.Price - bid.Price) / ask.Price * 10000
		if bps < cfg.MinSpreadBps {
			qc.log.Warn("spread below threshold, tier vetoed",
				zap.String("symbol", cfg.Symbol),
				zap.Int("tier", i),
				zap.Float64("spread_bps", bps))
			bid.Price = market.Unset()
			ask.Price = market.Unset()
		}
	}
}

// sideQty returns the total quantity for one side given the position.
func (qc *Computer) sideQty(s market.Side, position float64) float64 {
	cfg := &qc.cfg
	absPos := math.Abs(position)
	increasing := (s == market.Bid && position > 0) || (s == market.Ask && position < 0)

	switch cfg.Policy {
	case PolicySoftLimit:
		room := cfg.PosSoftLimit - absPos
		if !increasing {
			room = cfg.PosSoftLimit + absPos
		}
		return math.Min(cfg.Qty, math.Max(room, 0))
	default: // PolicyFlipFlop
		if increasing {
			return math.Max(cfg.Qty-absPos, 0)
		}
		return cfg.Qty + absPos
	}
}

// rearDistance is the distance of the standing quote from the inside.
func rearDistance(isBid bool, bestBid, bestAsk, prev float64) float64 {
	if isBid {
		return bestBid - prev
	}
	return prev - bestAsk
}

func roundDown(px, tick float64) float64 {
	return math.Floor(px/tick+1e-9) * tick
}

func roundUp(px, tick float64) float64 {
	return math.Ceil(px/tick-1e-9) * tick
}
