package scanner

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/indicators"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SPIKE DETECTOR - Short-horizon burst lifecycle
// ═══════════════════════════════════════════════════════════════════════════════
//
// Independent of the rocket classifier: different timescale, different intent.
// A spike is born when price move, volume burst, dollar volume and price
// ceiling all line up inside a short rolling window; it dies only after the
// exit condition holds for the full grace period. A single tick dipping below
// threshold mid-burst never terminates it.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Spike is one burst entity. Identity is (symbol, startedAt); a later burst on
// the same symbol is a new spike.
type Spike struct {
	ID     string
	Symbol string

	StartPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	PeakPrice    decimal.Decimal
	MovePercent  float64
	BurstRatio   float64
	DollarVolume decimal.Decimal

	StartedAt time.Time
	EndedAt   *time.Time
}

// Duration is how long the spike has been (or was) active.
func (s Spike) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// spikeState tracks an active spike plus its exit bookkeeping.
type spikeState struct {
	spike      Spike
	belowSince time.Time // exit condition first observed; zero while healthy
	lastUpdate time.Time // last spikeUpdate emission
}

// SpikeDetector owns spike lifecycles for all symbols.
type SpikeDetector struct {
	mu        sync.RWMutex
	active    map[string]*spikeState
	completed []Spike // most recent last, bounded

	maxCompleted int
}

// NewSpikeDetector creates an empty detector.
func NewSpikeDetector() *SpikeDetector {
	return &SpikeDetector{
		active:       make(map[string]*spikeState),
		maxCompleted: 256,
	}
}

// Evaluate runs one symbol through the spike lifecycle. ticks is the short
// rolling window ending at the latest tick; baselineVolume is the trailing
// per-window baseline for the burst ratio.
func (d *SpikeDetector) Evaluate(symbol string, ticks []market.Tick, baselineVolume float64, cfg config.SpikeThresholds, now time.Time) []events.Alert {
	if len(ticks) == 0 {
		return nil
	}

	// The move is measured across the window slice itself. Live snapshots
	// rarely retain a sample exactly one window old, so anchoring on the
	// oldest retained tick is what keeps real bursts detectable.
	move := indicators.WindowChange(ticks)
	windowVol := indicators.WindowVolume(ticks)
	dollarVol := indicators.DollarVolume(ticks)
	price := ticks[len(ticks)-1].Price

	burst := 0.0
	if baselineVolume > 0 {
		burst = float64(windowVol) / baselineVolume
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	state, activeNow := d.active[symbol]

	if !activeNow {
		if !move.Valid || move.Float64 < cfg.MinMovePercent {
			return nil
		}
		if burst < cfg.MinBurstRatio {
			return nil
		}
		if dollarVol.LessThan(cfg.MinDollarVolume) {
			return nil
		}
		if !cfg.PriceCeiling.IsZero() && price.GreaterThan(cfg.PriceCeiling) {
			return nil
		}

		spike := Spike{
			ID:           uuid.NewString(),
			Symbol:       symbol,
			StartPrice:   ticks[0].Price,
			CurrentPrice: price,
			PeakPrice:    price,
			MovePercent:  move.Float64,
			BurstRatio:   burst,
			DollarVolume: dollarVol,
			StartedAt:    now,
		}
		d.active[symbol] = &spikeState{spike: spike, lastUpdate: now}

		alert := events.New(events.KindSpikeStart, symbol, events.SeverityHigh)
		alert.Spike = spikePayload(spike, now)
		return []events.Alert{alert}
	}

	// Active: refresh the entity.
	sp := &state.spike
	sp.CurrentPrice = price
	if price.GreaterThan(sp.PeakPrice) {
		sp.PeakPrice = price
	}
	if move.Valid {
		sp.MovePercent = move.Float64
	}
	sp.BurstRatio = burst
	sp.DollarVolume = dollarVol

	// Exit condition: momentum or burst falls below the scaled-down exit
	// threshold, continuously, for the grace period.
	exiting := burst < cfg.MinBurstRatio*cfg.ExitRatio ||
		(move.Valid && move.Float64 < cfg.MinMovePercent*cfg.ExitRatio)

	if !exiting {
		state.belowSince = time.Time{}
		if now.Sub(state.lastUpdate) >= cfg.UpdateInterval {
			state.lastUpdate = now
			alert := events.New(events.KindSpikeUpdate, symbol, events.SeverityMedium)
			alert.Spike = spikePayload(*sp, now)
			return []events.Alert{alert}
		}
		return nil
	}

	if state.belowSince.IsZero() {
		state.belowSince = now
		return nil
	}
	if now.Sub(state.belowSince) < cfg.GracePeriod {
		return nil
	}

	// Completed: freeze the record.
	ended := now
	sp.EndedAt = &ended
	delete(d.active, symbol)
	d.completed = append(d.completed, *sp)
	if len(d.completed) > d.maxCompleted {
		d.completed = d.completed[len(d.completed)-d.maxCompleted:]
	}

	alert := events.New(events.KindSpikeComplete, symbol, events.SeverityCritical)
	alert.Spike = spikePayload(*sp, now)
	return []events.Alert{alert}
}

// Active returns all in-flight spikes.
func (d *SpikeDetector) Active() []Spike {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Spike, 0, len(d.active))
	for _, s := range d.active {
		out = append(out, s.spike)
	}
	return out
}

// Completed returns the retained historical spikes, oldest first.
func (d *SpikeDetector) Completed() []Spike {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Spike, len(d.completed))
	copy(out, d.completed)
	return out
}

func spikePayload(s Spike, now time.Time) *events.SpikePayload {
	return &events.SpikePayload{
		SpikeID:        s.ID,
		StartPrice:     s.StartPrice,
		CurrentPrice:   s.CurrentPrice,
		PeakPrice:      s.PeakPrice,
		MovePercent:    s.MovePercent,
		VolumeBurst:    s.BurstRatio,
		DollarVolume:   s.DollarVolume,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		DurationSecond: s.Duration(now).Seconds(),
	}
}
