// Package engine owns the per-instrument quoting loop: it reacts to
// book updates and order events delivered by the reactor thread,
// computes the target grid and reconciles outstanding orders against it.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"quote-engine-go/infrastructure/monitor"
	"quote-engine-go/inventory"
	"quote-engine-go/market"
	"quote-engine-go/order"
	"quote-engine-go/quote"
	"quote-engine-go/risk"
)

// Timestamps carries the event times delivered with every callback:
// exchange time, receipt time and strategy time. The loop never reads a
// wall clock; cool-down and resistance work off these.
type Timestamps struct {
	Exch  time.Time
	Recv  time.Time
	Strat time.Time
}

// State of the loop.
type State int

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Loop drives quoting for one instrument. All methods run on the
// instrument's reactor thread; there is no internal locking.
type Loop struct {
	cfg   quote.Config
	book  market.View
	comp  *quote.Computer
	arena *order.Arena
	rec   *order.Reconciler
	pos   *inventory.Tracker
	sig   risk.Signal
	log   *zap.Logger
	mon   *monitor.Monitor // may be nil

	state State
	// stopRequested defers a graceful stop to the top of the next
	// cycle, so the current callback finishes consistently.
	stopRequested bool
	stopReason    string
}

// New wires a loop for one instrument. The configuration is validated
// here; an unusable one is fatal at construction.
func New(cfg quote.Config, book market.View, conn order.Connector, sig risk.Signal, log *zap.Logger, mon *monitor.Monitor) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("quote config for %s: %w", cfg.Symbol, err)
	}
	arena := order.NewArena(cfg.Tiers)
	return &Loop{
		cfg:   cfg,
		book:  book,
		comp:  quote.NewComputer(cfg, log),
		arena: arena,
		rec:   order.NewReconciler(cfg, arena, conn, sig, log),
		pos:   inventory.NewTracker(),
		sig:   sig,
		log:   log,
		mon:   mon,
	}, nil
}

func (l *Loop) State() State { return l.state }

func (l *Loop) Position() float64 { return l.pos.Net() }

func (l *Loop) Inventory() *inventory.Tracker { return l.pos }

func (l *Loop) Arena() *order.Arena { return l.arena }

// ApplyConfig swaps the tunable parameters between cycles (hot reload).
// The tier structure is fixed for the life of the loop; a config with a
// different tier count is rejected.
func (l *Loop) ApplyConfig(cfg quote.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Tiers != l.cfg.Tiers {
		return fmt.Errorf("tier count change %d -> %d requires a restart", l.cfg.Tiers, cfg.Tiers)
	}
	l.cfg = cfg
	l.comp.SetConfig(cfg)
	l.rec.SetConfig(cfg)
	l.log.Info("quote parameters applied", zap.String("symbol", cfg.Symbol))
	return nil
}

// RequestStop schedules a graceful stop, observed at the top of the
// next book-update cycle. Used for serious but non-fatal conditions
// like an order event that cannot be mapped to a slot.
func (l *Loop) RequestStop(reason string) {
	if l.stopRequested || l.state != StateRunning {
		return
	}
	l.stopRequested = true
	l.stopReason = reason
	l.log.Error("graceful stop requested",
		zap.String("symbol", l.cfg.Symbol),
		zap.String("reason", reason))
}

// Stop cancels every outstanding quote and marks the loop stopping; it
// reports stopped once no slot is occupied.
func (l *Loop) Stop() error {
	if l.state == StateStopped {
		return nil
	}
	l.state = StateStopping
	if _, err := l.rec.CancelAll(); err != nil {
		return err
	}
	if l.arena.ActiveCount() == 0 {
		l.state = StateStopped
	}
	l.log.Info("loop stopping",
		zap.String("symbol", l.cfg.Symbol),
		zap.Int("open_orders", l.arena.ActiveCount()))
	return nil
}

// OnBookUpdate runs one quoting cycle. Only ErrRunAbort escapes; every
// other failure is logged and the next update retries from fresh state.
func (l *Loop) OnBookUpdate(ts Timestamps) error {
	if l.state == StateStopped {
		return nil
	}
	if l.stopRequested {
		l.stopRequested = false
		return l.Stop()
	}
	if l.state == StateStopping {
		// Keep sweeping until every slot drains.
		if _, err := l.rec.CancelAll(); err != nil {
			return err
		}
		if l.arena.ActiveCount() == 0 {
			l.state = StateStopped
		}
		return nil
	}

	started := time.Now()
	if l.mon != nil {
		l.mon.RecordBookUpdate()
		l.mon.UpdateRiskMode(int(l.sig.CurrentMode()))
	}

	bestBid := l.book.BestBid()
	bestAsk := l.book.BestAsk()
	if !market.IsFinite(bestBid) || !market.IsFinite(bestAsk) {
		// Liquidity evaporated on one side: pull this instrument's
		// quotes and wait for the next update. Not an error.
		l.log.Warn("insufficient liquidity, cancelling quotes",
			zap.String("symbol", l.cfg.Symbol),
			zap.Bool("bid_gone", !market.IsFinite(bestBid)),
			zap.Bool("ask_gone", !market.IsFinite(bestAsk)))
		if l.mon != nil {
			l.mon.RecordLiquidityCancel()
		}
		_, err := l.rec.CancelAll()
		return err
	}
	if l.mon != nil {
		l.mon.UpdateBidAsk(bestBid, bestAsk)
	}

	grid, cancelAll := l.comp.Compute(l.book, l.pos.Net(), l.arena.QuotePrices())

	var st order.Stats
	var err error
	if cancelAll {
		st, err = l.rec.CancelAll()
	} else {
		st, err = l.rec.Reconcile(grid, order.CycleState{
			Now:      ts.Strat,
			LastFill: l.pos.LastFill(),
			Stopping: false,
		})
	}
	if err != nil {
		return err
	}

	if l.mon != nil {
		l.mon.RecordCycleDuration(time.Since(started).Seconds())
		l.mon.UpdateActiveQuotes(l.arena.ActiveCount())
		l.mon.UpdatePosition(l.pos.Net())
		l.mon.RecordActions("new", "done", st.Placed)
		l.mon.RecordActions("modify", "done", st.Modified)
		l.mon.RecordActions("cancel", "done", st.Cancelled)
		l.mon.RecordActions("order", "skipped", st.Skipped)
		l.mon.RecordActions("order", "failed", st.Failed)
		if st.Acted() {
			l.mon.RecordFlush()
		}
	}
	if st.Acted() {
		l.log.Debug("quote cycle",
			zap.String("symbol", l.cfg.Symbol),
			zap.Float64("best_bid", bestBid),
			zap.Float64("best_ask", bestAsk),
			zap.Float64("position", l.pos.Net()),
			zap.Int("placed", st.Placed),
			zap.Int("modified", st.Modified),
			zap.Int("cancelled", st.Cancelled))
	}
	return nil
}

// OnFill applies a fill event: position, last-fill time and the slot.
// A handle no slot owns is an inconsistency serious enough to wind the
// loop down, but not to crash it.
func (l *Loop) OnFill(handleID uint64, price, qty float64, full bool, ts Timestamps) {
	slot := l.arena.FindByHandle(handleID)
	if slot == nil {
		l.RequestStop(fmt.Sprintf("fill for unknown order %d", handleID))
		return
	}

	l.pos.ApplyFill(slot.Side, qty, price, ts.Strat)
	if l.mon != nil {
		l.mon.RecordFill(qty)
		l.mon.UpdatePosition(l.pos.Net())
		l.mon.UpdateRealizedPnL(l.pos.Realized())
	}
	l.log.Info("fill",
		zap.String("symbol", l.cfg.Symbol),
		zap.Uint64("order_id", handleID),
		zap.String("side", slot.Side.String()),
		zap.Float64("price", price),
		zap.Float64("qty", qty),
		zap.Bool("full", full),
		zap.Float64("position", l.pos.Net()))

	if full {
		if err := slot.Transition(order.SlotFilled); err != nil {
			l.log.Error("slot state error on fill", zap.Error(err))
		}
		slot.Clear()
	} else if err := slot.Transition(order.SlotPartiallyFilled); err != nil {
		l.log.Error("slot state error on partial fill", zap.Error(err))
	}
}

// OnCancelled clears the slot of a cancelled order.
func (l *Loop) OnCancelled(handleID uint64, ts Timestamps) {
	slot := l.arena.FindByHandle(handleID)
	if slot == nil {
		l.RequestStop(fmt.Sprintf("cancel for unknown order %d", handleID))
		return
	}
	if err := slot.Transition(order.SlotCancelled); err != nil {
		l.log.Error("slot state error on cancel", zap.Error(err))
	}
	slot.Clear()
	if l.state == StateStopping && l.arena.ActiveCount() == 0 {
		l.state = StateStopped
		l.log.Info("loop stopped", zap.String("symbol", l.cfg.Symbol))
	}
}

// OnRejected clears the slot of a rejected order.
func (l *Loop) OnRejected(handleID uint64, reason string, ts Timestamps) {
	slot := l.arena.FindByHandle(handleID)
	if slot == nil {
		l.RequestStop(fmt.Sprintf("reject for unknown order %d", handleID))
		return
	}
	l.log.Warn("order rejected",
		zap.String("symbol", l.cfg.Symbol),
		zap.Uint64("order_id", handleID),
		zap.String("side", slot.Side.String()),
		zap.String("reason", reason))
	if err := slot.Transition(order.SlotRejected); err != nil {
		l.log.Error("slot state error on reject", zap.Error(err))
	}
	slot.Clear()
}
