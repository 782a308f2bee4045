package scanner

import (
	"sync"
	"time"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HALT/SUSPENSION HEURISTIC - Trading-status inference from the tape
// ═══════════════════════════════════════════════════════════════════════════════
//
// Best-effort inference from observable behavior, not authoritative exchange
// halt data. Precedence: no data at all during market hours beats a flat
// print followed by silence, which beats plain staleness.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TradingStatus is the inferred per-symbol state.
type TradingStatus string

const (
	StatusActive             TradingStatus = "active"
	StatusStale              TradingStatus = "stale"
	StatusHaltedSuspected    TradingStatus = "halted_suspected"
	StatusSuspendedSuspected TradingStatus = "suspended_suspected"
)

// HaltMonitor classifies symbols each cycle and reports transitions.
type HaltMonitor struct {
	mu       sync.Mutex
	statuses map[string]TradingStatus
}

// NewHaltMonitor creates a monitor with every symbol implicitly active.
func NewHaltMonitor() *HaltMonitor {
	return &HaltMonitor{statuses: make(map[string]TradingStatus)}
}

// classify applies the fixed precedence to one symbol's observable state.
func classify(ticks []market.Tick, lastTick time.Time, hasData bool, session market.Session, staleAfter time.Duration, now time.Time) (TradingStatus, string) {
	if !session.IsMarketHours() {
		return StatusActive, "outside market hours"
	}

	if !hasData {
		return StatusSuspendedSuspected, "no trade data during market hours"
	}

	if now.Sub(lastTick) < staleAfter {
		return StatusActive, ""
	}

	// Flat high=low=close with nonzero volume, once the tape has also gone
	// silent, reads like a halt print. A recent trade at a single price is
	// just a thin symbol, never a halt signal on its own.
	if len(ticks) > 0 {
		flat := true
		var volume int64
		first := ticks[0].Price
		for _, t := range ticks {
			if !t.Price.Equal(first) {
				flat = false
				break
			}
			volume += t.Size
		}
		if flat && volume > 0 {
			return StatusHaltedSuspected, "flat price then silence"
		}
	}

	return StatusStale, "no ticks beyond staleness threshold"
}

// Evaluate reclassifies a symbol and returns an alert on status change.
func (m *HaltMonitor) Evaluate(symbol string, ticks []market.Tick, lastTick time.Time, hasData bool, session market.Session, staleAfter time.Duration, now time.Time) *events.Alert {
	status, reason := classify(ticks, lastTick, hasData, session, staleAfter, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, known := m.statuses[symbol]
	if !known {
		prev = StatusActive
	}
	if status == prev {
		return nil
	}
	m.statuses[symbol] = status

	severity := events.SeverityMedium
	if status == StatusActive {
		severity = events.SeverityInfo
	}

	alert := events.New(events.KindHaltStatusChange, symbol, severity)
	alert.Halt = &events.HaltPayload{
		Status:         string(status),
		PreviousStatus: string(prev),
		LastTickAt:     lastTick,
		Reason:         reason,
	}
	return &alert
}

// Status returns the last classified status for a symbol.
func (m *HaltMonitor) Status(symbol string) TradingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.statuses[symbol]; ok {
		return s
	}
	return StatusActive
}
