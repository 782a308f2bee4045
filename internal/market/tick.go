package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TICK - One trade observation for a symbol
// ═══════════════════════════════════════════════════════════════════════════════

// Tick is an immutable trade observation. Source of truth for all derived state.
type Tick struct {
	Symbol    string
	Price     decimal.Decimal
	Size      int64
	Timestamp time.Time
}

// DollarVolume returns price × size for this tick.
func (t Tick) DollarVolume() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Size))
}

// PriceFloat returns the tick price as float64 for indicator math.
func (t Tick) PriceFloat() float64 {
	f, _ := t.Price.Float64()
	return f
}
