package order

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quote-engine-go/market"
	"quote-engine-go/quote"
	"quote-engine-go/risk"
)

// CycleState is the per-cycle mutable input to a reconcile pass. Times
// come from the event callback, never from a wall clock read inside the
// pass.
type CycleState struct {
	Now      time.Time // strategy timestamp of the triggering event
	LastFill time.Time // zero when no fill has happened yet
	Stopping bool
}

// Reconciler drives the outstanding orders of one instrument toward a
// target grid. All errors from the connector are contained here except
// ErrRunAbort, which always propagates to the caller.
type Reconciler struct {
	cfg   quote.Config
	arena *Arena
	conn  Connector
	risk  risk.Signal
	log   *zap.Logger
}

func NewReconciler(cfg quote.Config, arena *Arena, conn Connector, sig risk.Signal, log *zap.Logger) *Reconciler {
	return &Reconciler{cfg: cfg, arena: arena, conn: conn, risk: sig, log: log}
}

// SetConfig swaps the parameter set between cycles (hot reload).
func (r *Reconciler) SetConfig(cfg quote.Config) { r.cfg = cfg }

// Reconcile walks the grid once per (side, tier) and issues the order
// actions needed to match it, then flushes the connector's buffer if
// anything went out.
func (r *Reconciler) Reconcile(g quote.Grid, cs CycleState) (Stats, error) {
	var st Stats
	for s := market.Side(0); s < 2; s++ {
		for i := range g[s] {
			if err := r.reconcileTier(&g[s][i], r.arena.Slot(s, i), cs, &st); err != nil {
				return st, err
			}
		}
	}
	if st.Acted() {
		if err := r.flush(); err != nil {
			return st, err
		}
	}
	return st, nil
}

// CancelAll cancels every occupied slot and flushes. Used for the
// liquidity-evaporation guard and the stop sequence.
func (r *Reconciler) CancelAll() (Stats, error) {
	var st Stats
	var abort error
	r.arena.Each(func(s *Slot) {
		if abort != nil {
			return
		}
		res, err := r.cancel(s)
		if err != nil {
			abort = err
			return
		}
		st.count(res, &st.Cancelled)
	})
	if abort != nil {
		return st, abort
	}
	if st.Acted() {
		if err := r.flush(); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (r *Reconciler) reconcileTier(t *quote.Target, slot *Slot, cs CycleState, st *Stats) error {
	wantQuote := market.IsFinite(t.Price) && t.Qty > 0

	switch {
	case wantQuote && !slot.Occupied():
		res, err := r.placeNew(t, slot, cs)
		if err != nil {
			return err
		}
		st.count(res, &st.Placed)
		if res == Done {
			slot.QuotePx = t.Price
			slot.ExpPx = t.ExpPrice
		}

	case wantQuote && t.Price != slot.QuotePx:
		res, cancelled, err := r.modify(t, slot, cs)
		if err != nil {
			return err
		}
		if cancelled {
			st.count(res, &st.Cancelled)
		} else {
			st.count(res, &st.Modified)
		}
		if res == Done && !cancelled {
			slot.QuotePx = t.Price
			slot.ExpPx = t.ExpPrice
		}

	case !wantQuote && slot.Occupied():
		res, err := r.cancel(slot)
		if err != nil {
			return err
		}
		st.count(res, &st.Cancelled)
	}
	return nil
}

// placeNew issues a New order for an empty slot, subject to the gates:
// Safe mode, stopping, the post-fill cool-down, and a sanity floor on
// the quantity.
func (r *Reconciler) placeNew(t *quote.Target, slot *Slot, cs CycleState) (Result, error) {
	if r.risk.CurrentMode() == risk.Safe {
		r.log.Warn("safe mode, new order suppressed",
			zap.String("symbol", r.cfg.Symbol),
			zap.String("side", slot.Side.String()),
			zap.Int("tier", slot.Tier))
		return Skipped, nil
	}
	if cs.Stopping {
		return Skipped, nil
	}
	if !cs.LastFill.IsZero() && cs.Now.Sub(cs.LastFill) < r.cfg.CoolDown {
		// Re-quoting straight after a fill invites passive slippage.
		return Skipped, nil
	}
	if t.Qty < r.cfg.MinSize/2 {
		return Skipped, nil
	}

	h, err := r.conn.NewOrder(slot.Side, t.Price, t.Qty, false, TifDay)
	if err != nil {
		if errors.Is(err, ErrRunAbort) {
			return Failed, err
		}
		r.log.Error("new order failed",
			zap.String("symbol", r.cfg.Symbol),
			zap.String("side", slot.Side.String()),
			zap.Int("tier", slot.Tier),
			zap.Float64("price", t.Price),
			zap.Float64("qty", t.Qty),
			zap.Error(err))
		return Failed, nil
	}

	slot.Handle = h
	if err := slot.Transition(SlotPendingNew); err != nil {
		return Failed, fmt.Errorf("slot %s/%d: %w", slot.Side, slot.Tier, err)
	}
	r.log.Info("order placed",
		zap.String("symbol", r.cfg.Symbol),
		zap.Uint64("order_id", h.ID()),
		zap.String("side", slot.Side.String()),
		zap.Int("tier", slot.Tier),
		zap.Float64("price", t.Price),
		zap.Float64("qty", t.Qty))
	return Done, nil
}

// modify re-prices an occupied slot. A handle that is inactive or has a
// cancel in flight makes this a no-op, not an error; a stale inactive
// handle is dropped from the slot on the way out. A target quantity
// under the minimum turns the modify into a cancel.
func (r *Reconciler) modify(t *quote.Target, slot *Slot, cs CycleState) (res Result, cancelled bool, err error) {
	h := slot.Handle
	if h == nil || h.IsInactive() || h.IsCancelPending() || cs.Stopping {
		r.log.Warn("modify not possible",
			zap.String("symbol", r.cfg.Symbol),
			zap.String("side", slot.Side.String()),
			zap.Int("tier", slot.Tier),
			zap.Bool("inactive", h != nil && h.IsInactive()),
			zap.Bool("cancel_pending", h != nil && h.IsCancelPending()),
			zap.Bool("stopping", cs.Stopping))
		if h != nil && h.IsInactive() {
			slot.Clear()
		}
		return Skipped, false, nil
	}

	if t.Qty < r.cfg.MinSize {
		res, err = r.cancel(slot)
		return res, true, err
	}

	if err := r.conn.ModifyOrder(h, t.Price, t.Qty); err != nil {
		if errors.Is(err, ErrRunAbort) {
			return Failed, false, err
		}
		r.log.Warn("modify failed, cancelling the quote",
			zap.String("symbol", r.cfg.Symbol),
			zap.Uint64("order_id", h.ID()),
			zap.Float64("price", t.Price),
			zap.Error(err))
		if _, cerr := r.cancel(slot); cerr != nil {
			return Failed, false, cerr
		}
		return Failed, false, nil
	}

	r.log.Info("order modified",
		zap.String("symbol", r.cfg.Symbol),
		zap.Uint64("order_id", h.ID()),
		zap.String("side", slot.Side.String()),
		zap.Int("tier", slot.Tier),
		zap.Float64("price", t.Price),
		zap.Float64("qty", t.Qty))
	return Done, false, nil
}

// cancel requests cancellation of an occupied slot. Missing, inactive or
// already-cancelling handles are silently skipped. A failed cancel is
// logged and ignored: the order resolves itself through its own event.
func (r *Reconciler) cancel(slot *Slot) (Result, error) {
	h := slot.Handle
	if h == nil || h.IsInactive() || h.IsCancelPending() {
		return Skipped, nil
	}

	if err := r.conn.CancelOrder(h); err != nil {
		if errors.Is(err, ErrRunAbort) {
			return Failed, err
		}
		r.log.Error("cancel failed",
			zap.String("symbol", r.cfg.Symbol),
			zap.Uint64("order_id", h.ID()),
			zap.String("side", slot.Side.String()),
			zap.Error(err))
		return Failed, nil
	}

	if err := slot.Transition(SlotCancelling); err != nil {
		r.log.Error("slot state error on cancel",
			zap.Uint64("order_id", h.ID()),
			zap.Error(err))
	}
	r.log.Info("order cancel requested",
		zap.String("symbol", r.cfg.Symbol),
		zap.Uint64("order_id", h.ID()),
		zap.String("side", slot.Side.String()),
		zap.Int("tier", slot.Tier))
	return Done, nil
}

func (r *Reconciler) flush() error {
	if err := r.conn.FlushOrders(); err != nil {
		if errors.Is(err, ErrRunAbort) {
			return err
		}
		r.log.Error("flush failed", zap.String("symbol", r.cfg.Symbol), zap.Error(err))
	}
	return nil
}

// count folds one action result into the stats.
func (st *Stats) count(res Result, done *int) {
	switch res {
	case Done:
		*done++
	case Skipped:
		st.Skipped++
	case Failed:
		st.Failed++
	}
}
