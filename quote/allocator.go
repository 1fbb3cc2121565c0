package quote

import (
	"go.uber.org/zap"

	"quote-engine-go/market"
)

// Distribute splits targetQty across tiers by fracs. A tier whose share
// ends up below minSize, or whose price is unset, rolls its amount into
// the next tier and is zeroed, so every non-zero output is at least
// minSize. Quantity rolled past the last tier is logged and dropped; the
// total quoted exposure shrinks rather than erroring out.
//
// A targetQty below minSize yields all zeros (logged, not an error).
func Distribute(targetQty float64, prices, fracs []float64, minSize float64, log *zap.Logger) []float64 {
	n := len(fracs)
	// One spare slot catches the roll past the last tier.
	qtys := make([]float64, n+1)

	if targetQty < minSize {
		log.Debug("target qty below minimum, not quoting",
			zap.Float64("target_qty", targetQty),
			zap.Float64("min_size", minSize))
		return qtys[:n]
	}

	for i := 0; i < n; i++ {
		qtys[i] += targetQty * fracs[i]
		if qtys[i] < minSize || !market.IsFinite(prices[i]) {
			qtys[i+1] = qtys[i]
			qtys[i] = 0
		}
	}
	if qtys[n] > 0 {
		log.Warn("leftover quantity dropped past last tier",
			zap.Float64("leftover", qtys[n]))
	}
	return qtys[:n]
}
