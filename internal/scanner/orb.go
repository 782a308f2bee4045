package scanner

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OPENING RANGE / GAP ENGINE - unarmed → armed → locked
// ═══════════════════════════════════════════════════════════════════════════════
//
// Arms at the regular-session open, tracks the running high/low until the lock
// duration elapses, then freezes the range. Breakouts are edge-triggered: each
// direction fires once and re-arms only after price re-enters the range.
// The gap is computed exactly once per session, at arming.
//
// ═══════════════════════════════════════════════════════════════════════════════

type rangePhase int

const (
	rangeUnarmed rangePhase = iota
	rangeArmed
	rangeLocked
)

// OpeningRange is the frozen post-open range for one symbol.
type OpeningRange struct {
	Symbol   string
	High     decimal.Decimal
	Low      decimal.Decimal
	ArmedAt  time.Time
	LockedAt time.Time
}

// symbolRange is the per-symbol state machine.
type symbolRange struct {
	phase rangePhase

	high    decimal.Decimal
	low     decimal.Decimal
	armedAt time.Time
	locked  time.Time

	gapEmitted bool

	// edge triggers, reset when price re-enters the range
	brokeUp   bool
	brokeDown bool
}

// RangeEngine owns the per-symbol opening ranges for the current session.
type RangeEngine struct {
	mu     sync.Mutex
	states map[string]*symbolRange
}

// NewRangeEngine creates an empty engine.
func NewRangeEngine() *RangeEngine {
	return &RangeEngine{states: make(map[string]*symbolRange)}
}

// Reset discards all per-symbol state. Called on the session transition out
// of market hours so the next open starts clean.
func (e *RangeEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = make(map[string]*symbolRange)
}

// Evaluate advances one symbol's state machine. openBell is the session's
// 09:30 instant; ticks is the retained window; previousClose may be zero when
// the reference collaborator has no figure yet (gap is then skipped).
func (e *RangeEngine) Evaluate(symbol string, ticks []market.Tick, session market.Session, openBell time.Time, previousClose decimal.Decimal, cfg config.Thresholds, now time.Time) []events.Alert {
	if !session.IsMarketHours() {
		return nil
	}

	// Only ticks printed at or after the bell participate.
	var regular []market.Tick
	for _, t := range ticks {
		if !t.Timestamp.Before(openBell) {
			regular = append(regular, t)
		}
	}
	if len(regular) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[symbol]
	if !ok {
		st = &symbolRange{}
		e.states[symbol] = st
	}

	var alerts []events.Alert

	if st.phase == rangeUnarmed {
		first := regular[0]
		st.phase = rangeArmed
		st.high = first.Price
		st.low = first.Price
		st.armedAt = openBell

		if !st.gapEmitted && !previousClose.IsZero() {
			st.gapEmitted = true
			gapPct, _ := first.Price.Sub(previousClose).Div(previousClose).Mul(decimal.NewFromInt(100)).Float64()
			if abs(gapPct) >= cfg.MinGapPercent {
				direction := "up"
				severity := events.SeverityLow
				if gapPct < 0 {
					direction = "down"
				}
				alert := events.New(events.KindGap, symbol, severity)
				alert.Gap = &events.GapPayload{
					Direction:     direction,
					GapPercent:    gapPct,
					OpenPrice:     first.Price,
					PreviousClose: previousClose,
				}
				alerts = append(alerts, alert)
			}
		}
	}

	if st.phase == rangeArmed {
		for _, t := range regular {
			if t.Price.GreaterThan(st.high) {
				st.high = t.Price
			}
			if t.Price.LessThan(st.low) {
				st.low = t.Price
			}
		}
		if now.Sub(st.armedAt) >= cfg.OpeningRangeLock {
			st.phase = rangeLocked
			st.locked = now
		}
		return alerts
	}

	// Locked: compare the latest print against the frozen range.
	last := regular[len(regular)-1]
	switch {
	case last.Price.GreaterThan(st.high):
		if !st.brokeUp {
			st.brokeUp = true
			alerts = append(alerts, e.breakoutAlert(symbol, "up", st, last.Price))
		}
	case last.Price.LessThan(st.low):
		if !st.brokeDown {
			st.brokeDown = true
			alerts = append(alerts, e.breakoutAlert(symbol, "down", st, last.Price))
		}
	default:
		// Back inside the range: both directions may fire again.
		st.brokeUp = false
		st.brokeDown = false
	}

	return alerts
}

// Range returns the locked opening range for a symbol, if it exists yet.
func (e *RangeEngine) Range(symbol string) (OpeningRange, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[symbol]
	if !ok || st.phase != rangeLocked {
		return OpeningRange{}, false
	}
	return OpeningRange{
		Symbol:   symbol,
		High:     st.high,
		Low:      st.low,
		ArmedAt:  st.armedAt,
		LockedAt: st.locked,
	}, true
}

func (e *RangeEngine) breakoutAlert(symbol, direction string, st *symbolRange, price decimal.Decimal) events.Alert {
	alert := events.New(events.KindRangeBreakout, symbol, events.SeverityHigh)
	alert.Breakout = &events.BreakoutPayload{
		Direction: direction,
		RangeHigh: st.high,
		RangeLow:  st.low,
		Price:     price,
		LockedAt:  st.locked,
	}
	return alert
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
