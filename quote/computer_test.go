package quote

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"quote-engine-go/market"
)

// deep builds a book with one deep level per side so every volume target
// resolves at the top of book.
func deep(bid, ask float64) *market.Book {
	b := market.NewBook()
	b.ApplySnapshot(
		[]market.Level{{Price: bid, Qty: 1000}},
		[]market.Level{{Price: ask, Qty: 1000}},
	)
	return b
}

func noPrev(tiers int) [2][]float64 {
	var p [2][]float64
	for s := range p {
		p[s] = make([]float64, tiers)
		for i := range p[s] {
			p[s][i] = market.Unset()
		}
	}
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Symbol = "TEST"
	cfg.Qty = 10
	cfg.VolTargets = []float64{10}
	cfg.MinSize = 1
	cfg.Tick = 0.01
	cfg.PosSoftLimit = 100
	return cfg
}

func TestComputeBasicSingleTier(t *testing.T) {
	cfg := testConfig()
	cfg.Markup = 0.5
	qc := NewComputer(cfg, zap.NewNop())

	g, cancelAll := qc.Compute(deep(100.00, 101.00), 0, noPrev(1))

	if cancelAll {
		t.Fatal("unexpected cancelAll")
	}
	if got := g[market.Bid][0].Price; math.Abs(got-99.50) > 1e-9 {
		t.Errorf("bid price = %f, want 99.50", got)
	}
	if got := g[market.Ask][0].Price; math.Abs(got-101.50) > 1e-9 {
		t.Errorf("ask price = %f, want 101.50", got)
	}
	if g[market.Bid][0].Qty != 10 || g[market.Ask][0].Qty != 10 {
		t.Errorf("qtys = %f/%f, want 10/10",
			g[market.Bid][0].Qty, g[market.Ask][0].Qty)
	}
}

func TestComputeSkewOnlyRiskIncreasingSide(t *testing.T) {
	cfg := testConfig()
	cfg.SkewCoeff = 0.1
	qc := NewComputer(cfg, zap.NewNop())

	// Long 5: bid moves down by 0.5, ask stays at the discovered price.
	g, _ := qc.Compute(deep(100.00, 101.00), 5, noPrev(1))

	if got := g[market.Bid][0].Price; math.Abs(got-99.50) > 1e-9 {
		t.Errorf("bid price = %f, want 99.50", got)
	}
	if got := g[market.Ask][0].Price; math.Abs(got-101.00) > 1e-9 {
		t.Errorf("ask price = %f, want 101.00", got)
	}

	// Short 5: mirror image.
	g, _ = qc.Compute(deep(100.00, 101.00), -5, noPrev(1))

	if got := g[market.Bid][0].Price; math.Abs(got-100.00) > 1e-9 {
		t.Errorf("bid price = %f, want 100.00", got)
	}
	if got := g[market.Ask][0].Price; math.Abs(got-101.50) > 1e-9 {
		t.Errorf("ask price = %f, want 101.50", got)
	}
}

func TestComputeNoSelfCross(t *testing.T) {
	// A large markup in the wrong direction would cross without the
	// repair step.
	cfg := testConfig()
	cfg.Markup = -2.0
	qc := NewComputer(cfg, zap.NewNop())

	g, _ := qc.Compute(deep(100.00, 100.02), 0, noPrev(1))

	bid := g[market.Bid][0].Price
	ask := g[market.Ask][0].Price
	if market.IsFinite(bid) && market.IsFinite(ask) && ask <= bid {
		t.Errorf("self-cross survived: bid %f >= ask %f", bid, ask)
	}
}

func TestComputeSymmetricPushApart(t *testing.T) {
	// Both sides discover the same price; neither matches a previous
	// quote, so the repair pushes them apart symmetrically.
	b := market.NewBook()
	b.ApplySnapshot(
		[]market.Level{{Price: 100.00, Qty: 1000}},
		[]market.Level{{Price: 100.00, Qty: 1000}},
	)
	cfg := testConfig()
	qc := NewComputer(cfg, zap.NewNop())

	g, _ := qc.Compute(b, 0, noPrev(1))

	bid := g[market.Bid][0].Price
	ask := g[market.Ask][0].Price
	if math.Abs(ask-100.01) > 1e-9 || math.Abs(bid-99.99) > 1e-9 {
		t.Errorf("symmetric push gave bid %f / ask %f, want 99.99 / 100.01", bid, ask)
	}
}

func TestComputeKeepsUnchangedSideOnCross(t *testing.T) {
	cfg := testConfig()
	qc := NewComputer(cfg, zap.NewNop())

	// The bid side is already posted at the discovered price; only the
	// ask moved into a crossing position. The bid must be preserved.
	prev := noPrev(1)
	prev[market.Bid][0] = 100.00

	b := market.NewBook()
	b.ApplySnapshot(
		[]market.Level{{Price: 100.00, Qty: 1000}},
		[]market.Level{{Price: 99.50, Qty: 1000}},
	)
	g, _ := qc.Compute(b, 0, prev)

	if got := g[market.Bid][0].Price; got != 100.00 {
		t.Errorf("unchanged bid moved to %f", got)
	}
	if got := g[market.Ask][0].Price; math.Abs(got-100.01) > 1e-9 {
		t.Errorf("ask = %f, want 100.01 (one tick above the held bid)", got)
	}
}

func TestComputeResistanceHoldsSmallMove(t *testing.T) {
	cfg := testConfig()
	cfg.ResistCoeff = 0.5
	qc := NewComputer(cfg, zap.NewNop())

	// Previous bid quote one full point behind the market; the newly
	// discovered price differs by 0.2, the resistance is 0.5 * 1.0.
	b := market.NewBook()
	b.ApplySnapshot(
		[]market.Level{
			{Price: 100.00, Qty: 5},
			{Price: 99.20, Qty: 1000},
		},
		[]market.Level{{Price: 100.10, Qty: 1000}},
	)
	prev := noPrev(1)
	prev[market.Bid][0] = 99.00

	g, _ := qc.Compute(b, 0, prev)

	if got := g[market.Bid][0].Price; got != 99.00 {
		t.Errorf("bid = %f, want previous 99.00 held by resistance", got)
	}
	if !g[market.Bid][0].Unchanged {
		t.Error("held price should be flagged unchanged")
	}
}

func TestComputeResistanceReleasesLargeMove(t *testing.T) {
	cfg := testConfig()
	cfg.ResistCoeff = 0.1
	qc := NewComputer(cfg, zap.NewNop())

	b := market.NewBook()
	b.ApplySnapshot(
		[]market.Level{
			{Price: 100.00, Qty: 5},
			{Price: 99.20, Qty: 1000},
		},
		[]market.Level{{Price: 100.10, Qty: 1000}},
	)
	prev := noPrev(1)
	prev[market.Bid][0] = 99.00

	// Resistance is 0.1 * 1.0 = 0.1, the move is 0.2: it goes through.
	g, _ := qc.Compute(b, 0, prev)

	if got := g[market.Bid][0].Price; math.Abs(got-99.20) > 1e-9 {
		t.Errorf("bid = %f, want 99.20", got)
	}
}

func TestComputeSpreadVeto(t *testing.T) {
	cfg := testConfig()
	cfg.MinSpreadBps = 20
	qc := NewComputer(cfg, zap.NewNop())

	// Spread 0.01 on 100.01 is about 1 bps, well under 20.
	g, _ := qc.Compute(deep(100.00, 100.01), 0, noPrev(1))

	if market.IsFinite(g[market.Bid][0].Price) || market.IsFinite(g[market.Ask][0].Price) {
		t.Error("tier should be vetoed for a too-tight spread")
	}
	if g[market.Bid][0].Qty != 0 || g[market.Ask][0].Qty != 0 {
		t.Error("vetoed tier must carry zero quantity")
	}
}

func TestComputeSpreadVetoBypassedAtSoftLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MinSpreadBps = 20
	cfg.PosSoftLimit = 3
	qc := NewComputer(cfg, zap.NewNop())

	// At the soft limit the veto is skipped so the position can still
	// be worked off.
	g, _ := qc.Compute(deep(100.00, 100.01), 3, noPrev(1))

	if !market.IsFinite(g[market.Ask][0].Price) {
		t.Error("veto should be bypassed once |position| reaches the soft limit")
	}
}

func TestComputeOneSidedBookWhileFlat(t *testing.T) {
	cfg := testConfig()
	qc := NewComputer(cfg, zap.NewNop())

	b := market.NewBook()
	b.ApplySnapshot([]market.Level{{Price: 100.00, Qty: 1000}}, nil)

	_, cancelAll := qc.Compute(b, 0, noPrev(1))
	if !cancelAll {
		t.Error("one-sided depth while flat should request a cancel-all")
	}

	// With a position on, the engine keeps quoting the usable side.
	_, cancelAll = qc.Compute(b, 5, noPrev(1))
	if cancelAll {
		t.Error("cancel-all should not trigger while a position is held")
	}
}

func TestComputeQuantityFloorInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers = 3
	cfg.VolTargets = []float64{5, 10, 20}
	cfg.QtyFracs = []float64{0.05, 0.45, 0.5}
	qc := NewComputer(cfg, zap.NewNop())

	g, _ := qc.Compute(deep(100.00, 101.00), 0, noPrev(3))

	for s := market.Side(0); s < 2; s++ {
		for i, tgt := range g[s] {
			if tgt.Qty != 0 && tgt.Qty < cfg.MinSize {
				t.Errorf("%s tier %d qty %f under minimum", s, i, tgt.Qty)
			}
			if !market.IsFinite(tgt.Price) && tgt.Qty != 0 {
				t.Errorf("%s tier %d has qty without a price", s, i)
			}
		}
	}
}

func TestSideQtyPolicies(t *testing.T) {
	cfg := testConfig()
	cfg.Qty = 10
	cfg.PosSoftLimit = 12

	qc := NewComputer(cfg, zap.NewNop())

	// FlipFlop, long 4: bid (increasing) 6, ask (reducing) 14.
	if got := qc.sideQty(market.Bid, 4); got != 6 {
		t.Errorf("flipflop bid qty = %f, want 6", got)
	}
	if got := qc.sideQty(market.Ask, 4); got != 14 {
		t.Errorf("flipflop ask qty = %f, want 14", got)
	}
	// Position beyond the target: increasing side stops quoting.
	if got := qc.sideQty(market.Bid, 15); got != 0 {
		t.Errorf("flipflop bid qty = %f, want 0", got)
	}

	cfg.Policy = PolicySoftLimit
	qc = NewComputer(cfg, zap.NewNop())

	// Soft limit 12, long 4: bid capped at 8, ask keeps the full 10.
	if got := qc.sideQty(market.Bid, 4); got != 8 {
		t.Errorf("softlimit bid qty = %f, want 8", got)
	}
	if got := qc.sideQty(market.Ask, 4); got != 10 {
		t.Errorf("softlimit ask qty = %f, want 10", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := cfg
	bad.VolTargets = []float64{10, 5}
	bad.QtyFracs = []float64{0.5, 0.5}
	bad.Tiers = 2
	if err := bad.Validate(); err == nil {
		t.Error("non-increasing vol_targets accepted")
	}

	bad = cfg
	bad.QtyFracs = []float64{0.7}
	if err := bad.Validate(); err == nil {
		t.Error("fractions not summing to 1 accepted")
	}

	bad = cfg
	bad.Tick = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero tick accepted")
	}

	bad = cfg
	bad.Policy = "martingale"
	if err := bad.Validate(); err == nil {
		t.Error("unknown policy accepted")
	}
}

func TestEffectiveTickOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Tick = 0.01
	cfg.ForceTick = 0.05
	if cfg.EffectiveTick() != 0.05 {
		t.Errorf("EffectiveTick = %f, want forced 0.05", cfg.EffectiveTick())
	}
	cfg.ForceTick = 0
	if cfg.EffectiveTick() != 0.01 {
		t.Errorf("EffectiveTick = %f, want 0.01", cfg.EffectiveTick())
	}
}
