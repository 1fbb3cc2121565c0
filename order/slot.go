package order

import (
	"fmt"

	"quote-engine-go/market"
)

// SlotState tracks the lifecycle of one (side, tier) quote slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotPendingNew
	SlotActive
	SlotPartiallyFilled
	SlotCancelling
	SlotFilled
	SlotCancelled
	SlotRejected
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "EMPTY"
	case SlotPendingNew:
		return "PENDING_NEW"
	case SlotActive:
		return "ACTIVE"
	case SlotPartiallyFilled:
		return "PARTIALLY_FILLED"
	case SlotCancelling:
		return "CANCELLING"
	case SlotFilled:
		return "FILLED"
	case SlotCancelled:
		return "CANCELLED"
	case SlotRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports a state after which the slot is cleared.
func (s SlotState) IsTerminal() bool {
	switch s {
	case SlotFilled, SlotCancelled, SlotRejected:
		return true
	default:
		return false
	}
}

// IsWorking reports a state in which the order may still trade.
func (s SlotState) IsWorking() bool {
	switch s {
	case SlotPendingNew, SlotActive, SlotPartiallyFilled, SlotCancelling:
		return true
	default:
		return false
	}
}

type slotTransition struct {
	from, to SlotState
}

var legalSlotTransitions = map[slotTransition]bool{
	{SlotEmpty, SlotPendingNew}: true,

	{SlotPendingNew, SlotActive}:          true,
	{SlotPendingNew, SlotPartiallyFilled}: true,
	{SlotPendingNew, SlotFilled}:          true,
	{SlotPendingNew, SlotCancelling}:      true,
	{SlotPendingNew, SlotCancelled}:       true,
	{SlotPendingNew, SlotRejected}:        true,

	{SlotActive, SlotPartiallyFilled}: true,
	{SlotActive, SlotCancelling}:      true,
	{SlotActive, SlotFilled}:          true,
	{SlotActive, SlotCancelled}:       true,
	{SlotActive, SlotRejected}:        true,

	// Repeated partial fills keep the state.
	{SlotPartiallyFilled, SlotPartiallyFilled}: true,
	{SlotPartiallyFilled, SlotFilled}:          true,
	{SlotPartiallyFilled, SlotCancelling}:      true,
	{SlotPartiallyFilled, SlotCancelled}:       true,

	// A cancel in flight can still be filled.
	{SlotCancelling, SlotCancelled}:       true,
	{SlotCancelling, SlotPartiallyFilled}: true,
	{SlotCancelling, SlotFilled}:          true,

	{SlotFilled, SlotEmpty}:    true,
	{SlotCancelled, SlotEmpty}: true,
	{SlotRejected, SlotEmpty}:  true,
}

// ValidateTransition checks a slot state change. Same-state transitions
// are allowed for idempotency.
func ValidateTransition(from, to SlotState) error {
	if from == to {
		return nil
	}
	if !legalSlotTransitions[slotTransition{from, to}] {
		return fmt.Errorf("illegal slot transition: %s -> %s", from, to)
	}
	return nil
}

// Slot binds one (side, tier) to at most one outstanding order handle.
// An empty slot means no order exists for that coordinate; an occupied
// slot owns its handle reference exclusively.
type Slot struct {
	Side  market.Side
	Tier  int
	State SlotState

	Handle Handle

	// QuotePx is the last posted price; ExpPx the discovered price the
	// quote is expected to fill at, before markup and skew.
	QuotePx float64
	ExpPx   float64
}

// Occupied reports whether the slot currently references a handle.
func (s *Slot) Occupied() bool { return s.Handle != nil }

// Transition moves the slot state, returning an error on an illegal move.
func (s *Slot) Transition(to SlotState) error {
	if err := ValidateTransition(s.State, to); err != nil {
		return err
	}
	s.State = to
	return nil
}

// Clear drops the handle reference and resets the bookkeeping.
func (s *Slot) Clear() {
	s.Handle = nil
	s.State = SlotEmpty
	s.QuotePx = market.Unset()
	s.ExpPx = market.Unset()
}

// Arena is the per-instrument slot grid indexed by (side, tier).
type Arena struct {
	slots [2][]Slot
}

func NewArena(tiers int) *Arena {
	a := &Arena{}
	for s := range a.slots {
		a.slots[s] = make([]Slot, tiers)
		for i := range a.slots[s] {
			a.slots[s][i] = Slot{
				Side:    market.Side(s),
				Tier:    i,
				QuotePx: market.Unset(),
				ExpPx:   market.Unset(),
			}
		}
	}
	return a
}

func (a *Arena) Tiers() int { return len(a.slots[0]) }

// Slot returns the slot for one (side, tier) coordinate.
func (a *Arena) Slot(side market.Side, tier int) *Slot {
	return &a.slots[side][tier]
}

// Each visits every slot, bid side first.
func (a *Arena) Each(fn func(s *Slot)) {
	for side := range a.slots {
		for i := range a.slots[side] {
			fn(&a.slots[side][i])
		}
	}
}

// FindByHandle resolves an order event back to its slot, nil when no
// slot references the handle.
func (a *Arena) FindByHandle(id uint64) *Slot {
	var found *Slot
	a.Each(func(s *Slot) {
		if found == nil && s.Handle != nil && s.Handle.ID() == id {
			found = s
		}
	})
	return found
}

// QuotePrices returns the posted price per (side, tier), unset where no
// quote stands. This is the previous-price input to the next compute.
func (a *Arena) QuotePrices() [2][]float64 {
	var out [2][]float64
	for side := range a.slots {
		out[side] = make([]float64, len(a.slots[side]))
		for i := range a.slots[side] {
			out[side][i] = a.slots[side][i].QuotePx
		}
	}
	return out
}

// ActiveCount returns the number of occupied slots.
func (a *Arena) ActiveCount() int {
	n := 0
	a.Each(func(s *Slot) {
		if s.Occupied() {
			n++
		}
	})
	return n
}
