// Package inventory tracks the signed position per instrument, fed by
// fill events from the quoting loop.
package inventory

import (
	"time"

	"quote-engine-go/market"
)

// Tracker holds the net position and cost basis for one instrument. It
// is owned by the instrument's reactor thread; no locking.
type Tracker struct {
	net      float64
	avgCost  float64
	realized float64
	lastFill time.Time
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// ApplyFill updates the position for a fill: buys add, sells subtract.
// Crossing through flat re-bases the cost; reducing books realized PnL.
func (t *Tracker) ApplyFill(side market.Side, qty, price float64, at time.Time) {
	signed := qty
	if side == market.Ask {
		signed = -qty
	}

	switch {
	case t.net == 0 || (t.net > 0) == (signed > 0):
		// Extending (or opening): blend the cost basis.
		total := t.net + signed
		if total != 0 {
			t.avgCost = (t.avgCost*t.net + price*signed) / total
		}
		t.net = total
	default:
		closed := signed
		if abs(signed) > abs(t.net) {
			closed = -t.net
		}
		if t.net > 0 {
			t.realized += (price - t.avgCost) * -closed
		} else {
			t.realized += (t.avgCost - price) * closed
		}
		t.net += signed
		if t.net == 0 {
			t.avgCost = 0
		} else if (t.net > 0) == (signed > 0) {
			// Flipped through flat: remainder opens at the fill price.
			t.avgCost = price
		}
	}
	t.lastFill = at
}

// Net returns the signed position in base units.
func (t *Tracker) Net() float64 { return t.net }

// AvgCost returns the average entry price of the open position.
func (t *Tracker) AvgCost() float64 { return t.avgCost }

// Realized returns the realized PnL booked so far.
func (t *Tracker) Realized() float64 { return t.realized }

// LastFill returns the strategy timestamp of the most recent fill, zero
// when none happened yet.
func (t *Tracker) LastFill() time.Time { return t.lastFill }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
