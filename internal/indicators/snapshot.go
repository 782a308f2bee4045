package indicators

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// Snapshot is the derived indicator set for one symbol, recomputed every
// evaluation cycle from the current history. Never persisted.
type Snapshot struct {
	Symbol string

	LastPrice    decimal.Decimal
	WindowVolume int64

	VWAP             Value
	RSI              Value
	SMA              Value
	EMA              Value
	VolumeRatio      Value
	PriceChange1m    Value
	PriceChange5m    Value
	DayChangePercent Value

	ComputedAt time.Time
}

const (
	rsiPeriod = 14
	maPeriod  = 20
)

// Compute derives a Snapshot from a tick window. previousClose and
// baselineVolume come from the reference collaborator; either may be absent
// (zero), in which case the dependent indicators report absent. The trailing
// baseline protects the volume ratio from comparing pre-market trickle to a
// regular-session denominator.
func Compute(ticks []market.Tick, previousClose decimal.Decimal, baselineVolume float64) Snapshot {
	snap := Snapshot{ComputedAt: time.Now()}
	if len(ticks) == 0 {
		return snap
	}

	latest := ticks[len(ticks)-1]
	snap.Symbol = latest.Symbol
	snap.LastPrice = latest.Price
	snap.WindowVolume = WindowVolume(ticks)

	minutePrices := ResampleMinute(ticks)

	snap.VWAP = VWAP(ticks)
	snap.RSI = RSI(minutePrices, rsiPeriod)
	snap.SMA = SMA(minutePrices, maPeriod)
	snap.EMA = EMA(minutePrices, maPeriod)
	snap.PriceChange1m = PercentChange(ticks, time.Minute)
	snap.PriceChange5m = PercentChange(ticks, 5*time.Minute)
	snap.DayChangePercent = DayChangePercent(latest.Price, previousClose)

	if baselineVolume > 0 {
		snap.VolumeRatio = Some(float64(snap.WindowVolume) / baselineVolume)
	}

	return snap
}
