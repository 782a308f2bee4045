package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ALERT EVENTS - Closed set of tagged variants
// ═══════════════════════════════════════════════════════════════════════════════
//
// One event kind per detector output. Each carries a fixed, typed payload;
// no loosely-typed maps on the wire.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Kind tags an alert event variant.
type Kind string

const (
	KindRocketLevelChange Kind = "rocket_level_change"
	KindSpikeStart        Kind = "spike_start"
	KindSpikeUpdate       Kind = "spike_update"
	KindSpikeComplete     Kind = "spike_complete"
	KindRangeBreakout     Kind = "range_breakout"
	KindGap               Kind = "gap"
	KindHaltStatusChange  Kind = "halt_status_change"
)

// Severity orders events for routing and for overflow drop policy.
// Higher is more urgent.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Alert is an immutable event produced by the classifiers and detectors,
// consumed exactly once by the dispatcher.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Symbol    string    `json:"symbol"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`

	// Exactly one payload is set, matching Kind.
	Rocket   *RocketPayload   `json:"rocket,omitempty"`
	Spike    *SpikePayload    `json:"spike,omitempty"`
	Breakout *BreakoutPayload `json:"breakout,omitempty"`
	Gap      *GapPayload      `json:"gap,omitempty"`
	Halt     *HaltPayload     `json:"halt,omitempty"`
}

// New creates an alert with a fresh identity.
func New(kind Kind, symbol string, severity Severity) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Symbol:    symbol,
		Severity:  severity,
		CreatedAt: time.Now(),
	}
}

// DedupeKey groups alerts the dispatcher considers identical within its
// dedupe window.
func (a Alert) DedupeKey() string {
	key := a.Symbol + ":" + string(a.Kind)
	if a.Rocket != nil {
		key += ":" + strconv.Itoa(a.Rocket.Level)
	}
	if a.Breakout != nil {
		key += ":" + a.Breakout.Direction
	}
	if a.Halt != nil {
		key += ":" + a.Halt.Status
	}
	return key
}

// RocketPayload describes a rocket level transition.
type RocketPayload struct {
	Level            int             `json:"level"`
	PreviousLevel    int             `json:"previous_level"`
	Price            decimal.Decimal `json:"price"`
	DayChangePercent float64         `json:"day_change_percent"`
	Volume           int64           `json:"volume"`
	DollarVolume     decimal.Decimal `json:"dollar_volume"`
	Reason           string          `json:"reason"`
}

// SpikePayload describes a spike lifecycle event.
type SpikePayload struct {
	SpikeID        string          `json:"spike_id"`
	StartPrice     decimal.Decimal `json:"start_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PeakPrice      decimal.Decimal `json:"peak_price"`
	MovePercent    float64         `json:"move_percent"`
	VolumeBurst    float64         `json:"volume_burst"`
	DollarVolume   decimal.Decimal `json:"dollar_volume"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	DurationSecond float64         `json:"duration_seconds"`
}

// BreakoutPayload describes an opening-range breakout.
type BreakoutPayload struct {
	Direction string          `json:"direction"` // "up" or "down"
	RangeHigh decimal.Decimal `json:"range_high"`
	RangeLow  decimal.Decimal `json:"range_low"`
	Price     decimal.Decimal `json:"price"`
	LockedAt  time.Time       `json:"locked_at"`
}

// GapPayload describes the session-open gap vs previous close.
type GapPayload struct {
	Direction     string          `json:"direction"` // "up" or "down"
	GapPercent    float64         `json:"gap_percent"`
	OpenPrice     decimal.Decimal `json:"open_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
}

// HaltPayload describes a trading-status inference change.
type HaltPayload struct {
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	LastTickAt     time.Time `json:"last_tick_at"`
	Reason         string    `json:"reason"`
}
