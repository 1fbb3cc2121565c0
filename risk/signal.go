// Package risk carries the externally produced risk-mode signal the
// quoting engine reacts to. How the mode is computed (margin, limits,
// PnL) lives outside this repository; only the signal crosses the
// boundary.
package risk

import "sync/atomic"

// Mode is the current risk state.
type Mode int32

const (
	// Normal allows the full order flow.
	Normal Mode = iota
	// Safe blocks new order placement; standing quotes are wound down
	// by the owner's stop sequence, not by the quoting engine.
	Safe
)

func (m Mode) String() string {
	if m == Safe {
		return "safe"
	}
	return "normal"
}

// Signal exposes the current risk mode.
type Signal interface {
	CurrentMode() Mode
}

// Static is a fixed-mode signal, useful for tests and paper trading.
type Static Mode

func (s Static) CurrentMode() Mode { return Mode(s) }

// Switch is a thread-safe flip signal: a monitor goroutine sets it, the
// reactor thread reads it every cycle.
type Switch struct {
	v atomic.Int32
}

func (s *Switch) Set(m Mode)        { s.v.Store(int32(m)) }
func (s *Switch) CurrentMode() Mode { return Mode(s.v.Load()) }
