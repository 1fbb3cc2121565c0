// Package order binds desired quote state to outstanding orders: the
// per-instrument slot arena, the slot state machine, and the reconciler
// that issues New/Modify/Cancel actions through a connector.
package order

import (
	"errors"

	"quote-engine-go/market"
)

// TimeInForce of a new order.
type TimeInForce string

const (
	TifDay TimeInForce = "DAY"
	TifGTC TimeInForce = "GTC"
)

// Handle is the connector's view of one outstanding order. Handles are
// owned by the connector; the arena references them by ID and drops the
// reference once the order is terminal.
type Handle interface {
	ID() uint64
	Side() market.Side
	IsInactive() bool
	IsCancelPending() bool
	CumulativeFilledQty() float64
}

// Connector places, amends and cancels orders. Implementations buffer
// requests until FlushOrders so a cycle's actions go out together.
type Connector interface {
	NewOrder(side market.Side, price, qty float64, aggressive bool, tif TimeInForce) (Handle, error)
	ModifyOrder(h Handle, newPrice, newQty float64) error
	CancelOrder(h Handle) error
	FlushOrders() error
}

var (
	// ErrRunAbort signals an externally requested shutdown of the whole
	// event loop. It is never swallowed: every layer rethrows it.
	ErrRunAbort = errors.New("run abort requested")

	// ErrUnknownHandle marks an order the connector cannot map.
	ErrUnknownHandle = errors.New("unknown order handle")
)
