package indicators

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDICATOR MATH - VWAP, RSI, moving averages, percent change
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every indicator that lacks the history it needs reports an invalid Value.
// Absent is never masked as zero or a "neutral" default: a cold-start symbol
// must not classify.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Value is an indicator result that may be absent.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some wraps a present value.
func Some(f float64) Value { return Value{Float64: f, Valid: true} }

// None is the absent value.
func None() Value { return Value{} }

// RSI computes the relative strength index over a price series.
// Needs at least period+1 samples; otherwise absent.
func RSI(prices []float64, period int) Value {
	if len(prices) < period+1 {
		return None()
	}

	var gains, losses []float64
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])

	// Wilder smoothing over the remaining samples
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return Some(100)
	}

	rs := avgGain / avgLoss
	return Some(100 - (100 / (1 + rs)))
}

// EMA computes an exponential moving average. Needs at least period samples.
func EMA(prices []float64, period int) Value {
	if len(prices) < period || period <= 0 {
		return None()
	}

	multiplier := 2.0 / float64(period+1)
	ema := average(prices[:period])
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return Some(ema)
}

// SMA computes a simple moving average over the trailing period.
func SMA(prices []float64, period int) Value {
	if len(prices) < period || period <= 0 {
		return None()
	}
	return Some(average(prices[len(prices)-period:]))
}

// VWAP computes the volume-weighted average price over a tick window.
// Undefined (absent) when total volume is zero — never NaN, never 0.
func VWAP(ticks []market.Tick) Value {
	var pv, vol float64
	for _, t := range ticks {
		p := t.PriceFloat()
		pv += p * float64(t.Size)
		vol += float64(t.Size)
	}
	if vol == 0 {
		return None()
	}
	return Some(pv / vol)
}

// PercentChange computes the move from the nearest sample at or before
// now−lookback to the latest tick. Absent if no sample is that old.
func PercentChange(ticks []market.Tick, lookback time.Duration) Value {
	if len(ticks) == 0 {
		return None()
	}

	latest := ticks[len(ticks)-1]
	cutoff := latest.Timestamp.Add(-lookback)

	// Walk back to the newest tick at or before the cutoff.
	var base *market.Tick
	for i := len(ticks) - 1; i >= 0; i-- {
		if !ticks[i].Timestamp.After(cutoff) {
			base = &ticks[i]
			break
		}
	}
	if base == nil || base.Price.IsZero() {
		return None()
	}

	basePrice := base.PriceFloat()
	return Some((latest.PriceFloat() - basePrice) / basePrice * 100)
}

// WindowChange computes the move from the oldest to the newest tick of a
// window slice. Unlike PercentChange it never needs a sample older than the
// window, so it works on short rolling snapshots whose first retained tick
// sits just inside the boundary. Absent for empty windows or a zero base.
func WindowChange(ticks []market.Tick) Value {
	if len(ticks) == 0 || ticks[0].Price.IsZero() {
		return None()
	}

	base := ticks[0].PriceFloat()
	return Some((ticks[len(ticks)-1].PriceFloat() - base) / base * 100)
}

// DayChangePercent is always reconstructed from previousClose. Upstream
// pre-computed change fields are never trusted: observed provider values
// disagree with the reconstructed number.
func DayChangePercent(current, previousClose decimal.Decimal) Value {
	if previousClose.IsZero() {
		return None()
	}
	change, _ := current.Sub(previousClose).Div(previousClose).Mul(decimal.NewFromInt(100)).Float64()
	return Some(change)
}

// ResampleMinute collapses ticks into fixed 1-minute buckets, taking the last
// price per bucket. Feeds RSI a fixed cadence instead of raw tick rate.
func ResampleMinute(ticks []market.Tick) []float64 {
	if len(ticks) == 0 {
		return nil
	}

	var out []float64
	currentBucket := ticks[0].Timestamp.Truncate(time.Minute)
	last := ticks[0].PriceFloat()

	for _, t := range ticks[1:] {
		bucket := t.Timestamp.Truncate(time.Minute)
		if !bucket.Equal(currentBucket) {
			out = append(out, last)
			currentBucket = bucket
		}
		last = t.PriceFloat()
	}
	return append(out, last)
}

// WindowVolume sums share volume over the ticks.
func WindowVolume(ticks []market.Tick) int64 {
	var vol int64
	for _, t := range ticks {
		vol += t.Size
	}
	return vol
}

// DollarVolume sums price×size over the ticks.
func DollarVolume(ticks []market.Tick) decimal.Decimal {
	total := decimal.Zero
	for _, t := range ticks {
		total = total.Add(t.DollarVolume())
	}
	return total
}

func average(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}
