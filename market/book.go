// Package market provides the order-book view consumed by the quoting
// engine: best prices, a depth-limited traversal of aggregated levels,
// and the cumulative-depth price finder.
package market

import (
	"math"
	"sort"
	"sync"
)

// Side of the book.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Unset is the "no price" value. All unset prices are NaN so that any
// comparison against them fails.
func Unset() float64 { return math.NaN() }

// IsFinite reports whether px is a usable price (not NaN, not Inf).
func IsFinite(px float64) bool {
	return !math.IsNaN(px) && !math.IsInf(px, 0)
}

// Level is one aggregated price level.
type Level struct {
	Price float64
	Qty   float64
}

// Visitor receives levels best-first. Returning false stops the traversal.
type Visitor func(level int, price, aggQty float64) bool

// View is the read-only book surface the quoting core depends on. Bid
// levels are non-increasing in price, ask levels non-decreasing.
type View interface {
	BestBid() float64
	BestAsk() float64
	Traverse(side Side, maxLevels int, visit Visitor)
}

// Book keeps both sides sorted best-first. Writers (the feed goroutine)
// and the reactor thread are separated by the RWMutex; the quoting cycle
// itself only reads.
type Book struct {
	mu   sync.RWMutex
	bids []Level // price descending
	asks []Level // price ascending
}

func NewBook() *Book {
	return &Book{}
}

// ApplySnapshot replaces both sides. Input order is not trusted.
func (b *Book) ApplySnapshot(bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = append(b.bids[:0], bids...)
	b.asks = append(b.asks[:0], asks...)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price > b.bids[j].Price })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price < b.asks[j].Price })
}

// ApplyDelta updates a single level; qty 0 removes it.
func (b *Book) ApplyDelta(side Side, price, qty float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := &b.bids
	less := func(i int) bool { return (*levels)[i].Price < price }
	if side == Ask {
		levels = &b.asks
		less = func(i int) bool { return (*levels)[i].Price > price }
	}

	i := sort.Search(len(*levels), func(i int) bool { return !less(i) })
	found := i < len(*levels) && (*levels)[i].Price == price

	switch {
	case qty == 0 && found:
		*levels = append((*levels)[:i], (*levels)[i+1:]...)
	case qty == 0:
		// Removal of an unknown level, nothing to do.
	case found:
		(*levels)[i].Qty = qty
	default:
		*levels = append(*levels, Level{})
		copy((*levels)[i+1:], (*levels)[i:])
		(*levels)[i] = Level{Price: price, Qty: qty}
	}
}

// BestBid returns the highest bid, or Unset when the side is empty.
func (b *Book) BestBid() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return Unset()
	}
	return b.bids[0].Price
}

// BestAsk returns the lowest ask, or Unset when the side is empty.
func (b *Book) BestAsk() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return Unset()
	}
	return b.asks[0].Price
}

// Mid returns the mid price, or Unset when either side is empty.
func (b *Book) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if !IsFinite(bid) || !IsFinite(ask) {
		return Unset()
	}
	return (bid + ask) / 2
}

// Traverse visits levels best-first. maxLevels <= 0 means no limit.
func (b *Book) Traverse(side Side, maxLevels int, visit Visitor) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	levels := b.bids
	if side == Ask {
		levels = b.asks
	}
	for i, lvl := range levels {
		if maxLevels > 0 && i >= maxLevels {
			return
		}
		if !visit(i, lvl.Price, lvl.Qty) {
			return
		}
	}
}

// Depth returns the number of levels on one side.
func (b *Book) Depth(side Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if side == Bid {
		return len(b.bids)
	}
	return len(b.asks)
}
