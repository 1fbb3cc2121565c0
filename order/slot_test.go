package order

import (
	"testing"

	"quote-engine-go/market"
)

func TestSlotTransitions(t *testing.T) {
	legal := []struct{ from, to SlotState }{
		{SlotEmpty, SlotPendingNew},
		{SlotPendingNew, SlotActive},
		{SlotActive, SlotPartiallyFilled},
		{SlotPartiallyFilled, SlotPartiallyFilled},
		{SlotPartiallyFilled, SlotFilled},
		{SlotActive, SlotCancelling},
		{SlotCancelling, SlotCancelled},
		{SlotCancelling, SlotFilled},
		{SlotPendingNew, SlotRejected},
		{SlotFilled, SlotEmpty},
	}
	for _, tr := range legal {
		if err := ValidateTransition(tr.from, tr.to); err != nil {
			t.Errorf("legal transition rejected: %s -> %s: %v", tr.from, tr.to, err)
		}
	}

	illegal := []struct{ from, to SlotState }{
		{SlotEmpty, SlotActive},
		{SlotFilled, SlotActive},
		{SlotCancelled, SlotPendingNew},
		{SlotRejected, SlotActive},
		{SlotEmpty, SlotFilled},
	}
	for _, tr := range illegal {
		if err := ValidateTransition(tr.from, tr.to); err == nil {
			t.Errorf("illegal transition accepted: %s -> %s", tr.from, tr.to)
		}
	}
}

func TestSlotStatePredicates(t *testing.T) {
	for _, s := range []SlotState{SlotFilled, SlotCancelled, SlotRejected} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.IsWorking() {
			t.Errorf("%s should not be working", s)
		}
	}
	for _, s := range []SlotState{SlotPendingNew, SlotActive, SlotPartiallyFilled, SlotCancelling} {
		if !s.IsWorking() {
			t.Errorf("%s should be working", s)
		}
	}
	if SlotEmpty.IsTerminal() || SlotEmpty.IsWorking() {
		t.Error("EMPTY is neither terminal nor working")
	}
}

func TestArenaLayout(t *testing.T) {
	a := NewArena(3)
	if a.Tiers() != 3 {
		t.Errorf("Tiers = %d, want 3", a.Tiers())
	}

	s := a.Slot(market.Ask, 2)
	if s.Side != market.Ask || s.Tier != 2 {
		t.Errorf("slot coordinates = %s/%d, want ask/2", s.Side, s.Tier)
	}
	if s.Occupied() {
		t.Error("fresh slot should be empty")
	}
	if market.IsFinite(s.QuotePx) {
		t.Error("fresh slot should have an unset quote price")
	}

	count := 0
	a.Each(func(*Slot) { count++ })
	if count != 6 {
		t.Errorf("Each visited %d slots, want 6", count)
	}
}

func TestArenaFindByHandle(t *testing.T) {
	a := NewArena(2)
	h := &mockHandle{id: 42, side: market.Bid}
	slot := a.Slot(market.Bid, 1)
	slot.Handle = h
	slot.State = SlotActive

	found := a.FindByHandle(42)
	if found != slot {
		t.Fatal("FindByHandle did not resolve the owning slot")
	}
	if a.FindByHandle(7) != nil {
		t.Error("unknown handle should resolve to nil")
	}

	slot.Clear()
	if a.FindByHandle(42) != nil {
		t.Error("cleared slot should no longer resolve")
	}
	if slot.State != SlotEmpty || slot.Occupied() {
		t.Error("Clear should reset state and handle")
	}
}

func TestArenaQuotePrices(t *testing.T) {
	a := NewArena(2)
	a.Slot(market.Bid, 0).QuotePx = 99.5

	pxs := a.QuotePrices()
	if pxs[market.Bid][0] != 99.5 {
		t.Errorf("bid tier 0 price = %f, want 99.5", pxs[market.Bid][0])
	}
	if market.IsFinite(pxs[market.Ask][1]) {
		t.Error("untouched slot should report an unset price")
	}
	if a.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 (price without handle)", a.ActiveCount())
	}
}
