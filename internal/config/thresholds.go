package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// THRESHOLDS - Admin-tunable classifier and dispatcher settings
// ═══════════════════════════════════════════════════════════════════════════════
//
// Refreshed between evaluation cycles, never mid-cycle: the engine takes one
// consistent snapshot per pass. Malformed updates are rejected at the admin
// boundary and the engine keeps running on the last valid set.
//
// ═══════════════════════════════════════════════════════════════════════════════

// RocketTier is one ascending severity tier. A symbol qualifies only when it
// clears both the change and volume floors (and the price ceiling, if set).
type RocketTier struct {
	Level            int             `json:"level"`
	MinChangePercent float64         `json:"min_change_percent"`
	MinVolume        int64           `json:"min_volume"`
	MaxPrice         decimal.Decimal `json:"max_price"` // zero = no ceiling
}

// SpikeThresholds configure the short-horizon burst detector.
type SpikeThresholds struct {
	Window          time.Duration   `json:"window"`
	MinMovePercent  float64         `json:"min_move_percent"`
	MinBurstRatio   float64         `json:"min_burst_ratio"`
	MinDollarVolume decimal.Decimal `json:"min_dollar_volume"`
	PriceCeiling    decimal.Decimal `json:"price_ceiling"`
	ExitRatio       float64         `json:"exit_ratio"` // fraction of entry thresholds that ends a spike
	GracePeriod     time.Duration   `json:"grace_period"`
	UpdateInterval  time.Duration   `json:"update_interval"`
}

// DispatchThresholds configure dedupe, queueing and delivery.
type DispatchThresholds struct {
	DedupeWindow  time.Duration `json:"dedupe_window"`
	QueueSize     int           `json:"queue_size"`
	RatePerMinute int           `json:"rate_per_minute"`
	MaxRetries    int           `json:"max_retries"`
	RetryBackoff  time.Duration `json:"retry_backoff"`

	// Webhook destination per minimum severity; empty disables the channel.
	WebhookDefault  string `json:"webhook_default"`
	WebhookCritical string `json:"webhook_critical"`
}

// Thresholds is the full admin-tunable set.
type Thresholds struct {
	RocketTiers []RocketTier  `json:"rocket_tiers"`
	RocketDwell time.Duration `json:"rocket_dwell"`

	Spike SpikeThresholds `json:"spike"`

	OpeningRangeLock time.Duration `json:"opening_range_lock"`
	MinGapPercent    float64       `json:"min_gap_percent"`

	StaleAfter time.Duration `json:"stale_after"`

	Dispatch DispatchThresholds `json:"dispatch"`
}

// DefaultThresholds returns the operating defaults. All heuristic, all
// operator-tunable.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RocketTiers: []RocketTier{
			{Level: 1, MinChangePercent: 5, MinVolume: 5_000},
			{Level: 2, MinChangePercent: 10, MinVolume: 20_000},
			{Level: 3, MinChangePercent: 20, MinVolume: 50_000},
			{Level: 4, MinChangePercent: 35, MinVolume: 100_000},
		},
		RocketDwell: 30 * time.Second,

		Spike: SpikeThresholds{
			Window:          10 * time.Second,
			MinMovePercent:  2,
			MinBurstRatio:   3,
			MinDollarVolume: decimal.NewFromInt(25_000),
			PriceCeiling:    decimal.NewFromInt(20),
			ExitRatio:       0.5,
			GracePeriod:     5 * time.Second,
			UpdateInterval:  3 * time.Second,
		},

		OpeningRangeLock: 5 * time.Minute,
		MinGapPercent:    2,

		StaleAfter: 15 * time.Minute,

		Dispatch: DispatchThresholds{
			DedupeWindow:  30 * time.Second,
			QueueSize:     1024,
			RatePerMinute: 60,
			MaxRetries:    3,
			RetryBackoff:  time.Second,

			WebhookDefault:  getEnv("WEBHOOK_URL", ""),
			WebhookCritical: getEnv("WEBHOOK_URL_CRITICAL", ""),
		},
	}
}

// Validate rejects malformed threshold sets. Called at the admin mutation
// boundary so a bad update never reaches a running cycle.
func (t Thresholds) Validate() error {
	if len(t.RocketTiers) == 0 {
		return fmt.Errorf("at least one rocket tier required")
	}
	prevLevel := 0
	prevChange := 0.0
	var prevVolume int64
	for _, tier := range t.RocketTiers {
		if tier.Level != prevLevel+1 {
			return fmt.Errorf("rocket tiers must be contiguous from level 1, got level %d after %d", tier.Level, prevLevel)
		}
		if tier.MinChangePercent <= prevChange {
			return fmt.Errorf("rocket tier %d change threshold must exceed tier %d", tier.Level, prevLevel)
		}
		if tier.MinVolume < prevVolume {
			return fmt.Errorf("rocket tier %d volume threshold must not fall below tier %d", tier.Level, prevLevel)
		}
		if tier.MaxPrice.IsNegative() {
			return fmt.Errorf("rocket tier %d price ceiling is negative", tier.Level)
		}
		prevLevel = tier.Level
		prevChange = tier.MinChangePercent
		prevVolume = tier.MinVolume
	}
	if t.RocketDwell < 0 {
		return fmt.Errorf("rocket dwell must not be negative")
	}

	s := t.Spike
	if s.Window <= 0 || s.MinMovePercent <= 0 || s.MinBurstRatio <= 0 {
		return fmt.Errorf("spike window, move and burst thresholds must be positive")
	}
	if s.ExitRatio <= 0 || s.ExitRatio >= 1 {
		return fmt.Errorf("spike exit ratio must be in (0,1)")
	}
	if s.GracePeriod < 0 || s.UpdateInterval < 0 {
		return fmt.Errorf("spike grace period and update interval must not be negative")
	}

	if t.OpeningRangeLock <= 0 {
		return fmt.Errorf("opening range lock duration must be positive")
	}
	if t.StaleAfter <= 0 {
		return fmt.Errorf("stale threshold must be positive")
	}

	d := t.Dispatch
	if d.QueueSize <= 0 {
		return fmt.Errorf("dispatch queue size must be positive")
	}
	if d.DedupeWindow < 0 || d.RetryBackoff < 0 {
		return fmt.Errorf("dispatch windows must not be negative")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("dispatch retry count must not be negative")
	}
	return nil
}
