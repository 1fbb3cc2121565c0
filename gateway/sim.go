// Package gateway holds the concrete edges of the process: the
// websocket depth feed, the simulated order connector used for paper
// trading and tests, and request throttling. The quoting core never
// imports this package; it sees only the interfaces it defines itself.
package gateway

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"quote-engine-go/market"
	"quote-engine-go/order"
)

// SimOrder is an in-process order handle.
type SimOrder struct {
	id         uint64
	side       market.Side
	price      float64
	qty        float64
	filled     float64
	inactive   bool
	cxlPending bool
}

func (o *SimOrder) ID() uint64                   { return o.id }
func (o *SimOrder) Side() market.Side            { return o.side }
func (o *SimOrder) IsInactive() bool             { return o.inactive }
func (o *SimOrder) IsCancelPending() bool        { return o.cxlPending }
func (o *SimOrder) CumulativeFilledQty() float64 { return o.filled }

func (o *SimOrder) Price() float64 { return o.price }
func (o *SimOrder) Qty() float64   { return o.qty }

// SimConnector implements order.Connector in process. Cancels complete
// on flush, mirroring a buffered venue connection; fills are injected
// by the caller (paper-trading loop or test).
type SimConnector struct {
	mu      sync.Mutex
	log     *zap.Logger
	limiter *TokenBucketLimiter // optional

	nextID  uint64
	orders  map[uint64]*SimOrder
	pending []uint64 // cancels waiting for flush
	flushes int

	// Failure injection.
	FailNew    error
	FailModify error
	FailCancel error

	// OnCancelled fires when a flushed cancel completes.
	OnCancelled func(id uint64)
}

func NewSimConnector(log *zap.Logger, limiter *TokenBucketLimiter) *SimConnector {
	return &SimConnector{
		log:     log,
		limiter: limiter,
		orders:  make(map[uint64]*SimOrder),
	}
}

func (c *SimConnector) NewOrder(side market.Side, price, qty float64, aggressive bool, tif order.TimeInForce) (order.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNew != nil {
		return nil, c.FailNew
	}
	c.nextID++
	o := &SimOrder{id: c.nextID, side: side, price: price, qty: qty}
	c.orders[o.id] = o
	c.log.Debug("sim new order",
		zap.Uint64("id", o.id),
		zap.String("side", side.String()),
		zap.Float64("price", price),
		zap.Float64("qty", qty))
	return o, nil
}

func (c *SimConnector) ModifyOrder(h order.Handle, newPrice, newQty float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailModify != nil {
		return c.FailModify
	}
	o, ok := c.orders[h.ID()]
	if !ok {
		return fmt.Errorf("modify order %d: %w", h.ID(), order.ErrUnknownHandle)
	}
	if o.inactive || o.cxlPending {
		return errors.New("order not modifiable")
	}
	o.price = newPrice
	o.qty = newQty
	return nil
}

func (c *SimConnector) CancelOrder(h order.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCancel != nil {
		return c.FailCancel
	}
	o, ok := c.orders[h.ID()]
	if !ok {
		return fmt.Errorf("cancel order %d: %w", h.ID(), order.ErrUnknownHandle)
	}
	if o.inactive || o.cxlPending {
		return errors.New("order not cancellable")
	}
	o.cxlPending = true
	c.pending = append(c.pending, o.id)
	return nil
}

// FlushOrders completes the buffered cancels. The limiter, when set,
// throttles the batch rate, not individual orders.
func (c *SimConnector) FlushOrders() error {
	if c.limiter != nil {
		c.limiter.Wait()
	}
	c.mu.Lock()
	done := c.pending
	c.pending = nil
	c.flushes++
	for _, id := range done {
		if o := c.orders[id]; o != nil {
			o.inactive = true
			o.cxlPending = false
		}
	}
	cb := c.OnCancelled
	c.mu.Unlock()

	if cb != nil {
		for _, id := range done {
			cb(id)
		}
	}
	return nil
}

// Fill marks qty of an order filled and returns its handle; full fills
// deactivate the order. The caller routes the event into the loop.
func (c *SimConnector) Fill(id uint64, qty float64) (*SimOrder, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return nil, false, fmt.Errorf("fill order %d: %w", id, order.ErrUnknownHandle)
	}
	if o.inactive {
		return nil, false, errors.New("order already inactive")
	}
	o.filled += qty
	full := o.filled >= o.qty
	if full {
		o.inactive = true
		o.cxlPending = false
	}
	return o, full, nil
}

// Flushes reports how many flush batches went out.
func (c *SimConnector) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Order looks up a handle by ID, nil when unknown.
func (c *SimConnector) Order(id uint64) *SimOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orders[id]
}

// OpenOrders counts orders that are still working.
func (c *SimConnector) OpenOrders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, o := range c.orders {
		if !o.inactive {
			n++
		}
	}
	return n
}
