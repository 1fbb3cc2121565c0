// Package quote computes the per-tier (price, quantity) targets for both
// sides of one instrument from a live book view, the current position and
// the previously posted quotes.
package quote

import (
	"fmt"
	"math"
	"time"
)

// Maximum tiers per side; the slot arena is sized against this.
const MaxTiers = 8

// SidePolicy selects how the per-side total quantity is capped against
// the current position.
type SidePolicy string

const (
	// PolicyFlipFlop biases toward flattening: the risk-increasing side
	// quotes max(qty-|pos|, 0), the reducing side quotes qty+|pos|.
	PolicyFlipFlop SidePolicy = "flipflop"
	// PolicySoftLimit clips each side so a full fill cannot push the
	// absolute position past PosSoftLimit.
	PolicySoftLimit SidePolicy = "softlimit"
)

// Config is the immutable per-instrument quoting parameter set.
type Config struct {
	Symbol string `yaml:"symbol" json:"symbol"`

	// Qty is the total target quantity per side, split across tiers.
	Qty   float64 `yaml:"qty" json:"qty"`
	Tiers int     `yaml:"tiers" json:"tiers"`

	// VolTargets are the cumulative-depth thresholds per tier, strictly
	// increasing. QtyFracs are the per-tier shares of Qty, summing to 1.
	VolTargets []float64 `yaml:"vol_targets" json:"vol_targets"`
	QtyFracs   []float64 `yaml:"qty_fracs" json:"qty_fracs"`

	MinSize float64 `yaml:"min_size" json:"min_size"`

	// Tick is the venue price step; ForceTick overrides it when > 0.
	Tick      float64 `yaml:"tick" json:"tick"`
	ForceTick float64 `yaml:"force_tick" json:"force_tick"`

	// Markup widens the discovered price away from the market; SkewCoeff
	// scales the one-sided position adjustment.
	Markup    float64 `yaml:"markup" json:"markup"`
	SkewCoeff float64 `yaml:"skew_coeff" json:"skew_coeff"`

	// ResistCoeff scales the anti-flicker hysteresis; 0 disables it.
	ResistCoeff float64 `yaml:"resist_coeff" json:"resist_coeff"`

	// MinSpreadBps vetoes tiers whose resulting spread is tighter than
	// this many basis points; 0 disables the veto.
	MinSpreadBps float64 `yaml:"min_spread_bps" json:"min_spread_bps"`

	// CoolDown blocks new orders for this long after a fill.
	CoolDown time.Duration `yaml:"cool_down" json:"cool_down"`

	PosSoftLimit float64    `yaml:"pos_soft_limit" json:"pos_soft_limit"`
	Policy       SidePolicy `yaml:"policy" json:"policy"`

	// SkipTopLevel avoids quoting at the inside market (see
	// market.FindPrices).
	SkipTopLevel bool `yaml:"skip_top_level" json:"skip_top_level"`
}

// DefaultConfig returns a workable single-tier configuration.
func DefaultConfig() Config {
	return Config{
		Qty:          1.0,
		Tiers:        1,
		VolTargets:   []float64{10.0},
		QtyFracs:     []float64{1.0},
		MinSize:      0.1,
		Tick:         0.01,
		Markup:       0.0,
		SkewCoeff:    0.0,
		ResistCoeff:  0.0,
		MinSpreadBps: 0.0,
		CoolDown:     200 * time.Millisecond,
		PosSoftLimit: 5.0,
		Policy:       PolicyFlipFlop,
	}
}

// EffectiveTick returns ForceTick when set, the venue tick otherwise.
func (c *Config) EffectiveTick() float64 {
	if c.ForceTick > 0 {
		return c.ForceTick
	}
	return c.Tick
}

// Validate fails fast on an unusable configuration.
func (c *Config) Validate() error {
	if c.Tiers < 1 || c.Tiers > MaxTiers {
		return fmt.Errorf("tiers %d out of range [1,%d]", c.Tiers, MaxTiers)
	}
	if c.Qty <= 0 {
		return fmt.Errorf("qty %f must be positive", c.Qty)
	}
	if c.MinSize <= 0 {
		return fmt.Errorf("min_size %f must be positive", c.MinSize)
	}
	if c.EffectiveTick() <= 0 {
		return fmt.Errorf("tick %f must be positive", c.EffectiveTick())
	}
	if len(c.VolTargets) != c.Tiers {
		return fmt.Errorf("vol_targets has %d entries, want %d", len(c.VolTargets), c.Tiers)
	}
	if len(c.QtyFracs) != c.Tiers {
		return fmt.Errorf("qty_fracs has %d entries, want %d", len(c.QtyFracs), c.Tiers)
	}
	prev := 0.0
	for i, v := range c.VolTargets {
		if v <= prev {
			return fmt.Errorf("vol_targets must be strictly increasing, entry %d = %f", i, v)
		}
		prev = v
	}
	sum := 0.0
	for i, f := range c.QtyFracs {
		if f < 0 {
			return fmt.Errorf("qty_fracs entry %d = %f is negative", i, f)
		}
		sum += f
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("qty_fracs sum %f, want 1.0", sum)
	}
	if c.ResistCoeff < 0 {
		return fmt.Errorf("resist_coeff %f must not be negative", c.ResistCoeff)
	}
	if c.MinSpreadBps < 0 {
		return fmt.Errorf("min_spread_bps %f must not be negative", c.MinSpreadBps)
	}
	if c.CoolDown < 0 {
		return fmt.Errorf("cool_down %s must not be negative", c.CoolDown)
	}
	if c.PosSoftLimit <= 0 {
		return fmt.Errorf("pos_soft_limit %f must be positive", c.PosSoftLimit)
	}
	switch c.Policy {
	case PolicyFlipFlop, PolicySoftLimit:
	default:
		return fmt.Errorf("unknown side policy %q", c.Policy)
	}
	return nil
}
