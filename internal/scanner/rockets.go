package scanner

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/indicators"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ROCKET CLASSIFIER - Ordered severity levels with hysteresis
// ═══════════════════════════════════════════════════════════════════════════════
//
// Escalation is immediate: missing an upward move costs more than a duplicate
// alert. De-escalation requires the metrics to fail the current tier
// continuously for the dwell time, so a single noisy tick never drops a level.
//
// ═══════════════════════════════════════════════════════════════════════════════

// RocketState is the current classification for one symbol.
type RocketState struct {
	Symbol    string
	Level     int
	LastLevel int
	EnteredAt time.Time

	// failingSince is set while the metrics fail the current tier; zero when
	// the tier holds.
	failingSince time.Time
}

// RocketClassifier maps indicator snapshots to levels 0..4.
type RocketClassifier struct {
	mu     sync.RWMutex
	states map[string]*RocketState
}

// NewRocketClassifier creates an empty classifier.
func NewRocketClassifier() *RocketClassifier {
	return &RocketClassifier{states: make(map[string]*RocketState)}
}

// qualifiedLevel returns the highest tier the metrics clear. Both the change
// and volume floors must pass; a big percent move on negligible volume does
// not qualify.
func qualifiedLevel(snap indicators.Snapshot, tiers []config.RocketTier) int {
	change := snap.DayChangePercent.Float64
	if change < 0 {
		change = -change
	}

	level := 0
	for _, tier := range tiers {
		if change < tier.MinChangePercent {
			break
		}
		if snap.WindowVolume < tier.MinVolume {
			break
		}
		if !tier.MaxPrice.IsZero() && snap.LastPrice.GreaterThan(tier.MaxPrice) {
			break
		}
		level = tier.Level
	}
	return level
}

// Evaluate reclassifies one symbol. Returns an alert only on a level change.
// An absent day-change indicator leaves the state untouched: cold-start
// symbols never classify, and elevated symbols never decay on missing data.
func (c *RocketClassifier) Evaluate(snap indicators.Snapshot, tiers []config.RocketTier, dwell time.Duration, now time.Time) *events.Alert {
	if !snap.DayChangePercent.Valid {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[snap.Symbol]
	if !ok {
		state = &RocketState{Symbol: snap.Symbol}
		c.states[snap.Symbol] = state
	}

	candidate := qualifiedLevel(snap, tiers)

	switch {
	case candidate > state.Level:
		// Escalate immediately.
		return c.transition(state, candidate, snap, now, "threshold tier cleared")

	case candidate < state.Level:
		if state.failingSince.IsZero() {
			state.failingSince = now
			return nil
		}
		if now.Sub(state.failingSince) < dwell {
			return nil
		}
		return c.transition(state, candidate, snap, now,
			fmt.Sprintf("below tier for %s", dwell))

	default:
		state.failingSince = time.Time{}
		return nil
	}
}

// transition applies a level change and builds the alert.
func (c *RocketClassifier) transition(state *RocketState, level int, snap indicators.Snapshot, now time.Time, reason string) *events.Alert {
	state.LastLevel = state.Level
	state.Level = level
	state.EnteredAt = now
	state.failingSince = time.Time{}

	alert := events.New(events.KindRocketLevelChange, state.Symbol, rocketSeverity(level))
	alert.Rocket = &events.RocketPayload{
		Level:            level,
		PreviousLevel:    state.LastLevel,
		Price:            snap.LastPrice,
		DayChangePercent: snap.DayChangePercent.Float64,
		Volume:           snap.WindowVolume,
		DollarVolume:     snap.LastPrice.Mul(decimal.NewFromInt(snap.WindowVolume)),
		Reason:           reason,
	}
	return &alert
}

// State returns the current classification for a symbol.
func (c *RocketClassifier) State(symbol string) (RocketState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[symbol]
	if !ok {
		return RocketState{}, false
	}
	return *s, true
}

// Elevated returns all symbols currently above level 0, for the movers query.
func (c *RocketClassifier) Elevated() []RocketState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []RocketState
	for _, s := range c.states {
		if s.Level > 0 {
			out = append(out, *s)
		}
	}
	return out
}

func rocketSeverity(level int) events.Severity {
	switch {
	case level >= 4:
		return events.SeverityCritical
	case level == 3:
		return events.SeverityHigh
	case level == 2:
		return events.SeverityMedium
	case level == 1:
		return events.SeverityLow
	default:
		return events.SeverityInfo
	}
}
