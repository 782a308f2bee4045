package scanner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

func spikeCfg() config.SpikeThresholds {
	return config.SpikeThresholds{
		Window:          10 * time.Second,
		MinMovePercent:  2,
		MinBurstRatio:   3,
		MinDollarVolume: decimal.NewFromInt(25_000),
		PriceCeiling:    decimal.NewFromInt(20),
		ExitRatio:       0.5,
		GracePeriod:     5 * time.Second,
		UpdateInterval:  3 * time.Second,
	}
}

// burstTicks builds a two-print window ending at base+11s with the given move
// and volume split evenly.
func burstTicks(startPrice, endPrice float64, volume int64, base time.Time) []market.Tick {
	return []market.Tick{
		{Symbol: "SPKE", Price: decimal.NewFromFloat(startPrice), Size: volume / 2, Timestamp: base},
		{Symbol: "SPKE", Price: decimal.NewFromFloat(endPrice), Size: volume / 2, Timestamp: base.Add(11 * time.Second)},
	}
}

func TestSpikeLifecycle(t *testing.T) {
	d := NewSpikeDetector()
	cfg := spikeCfg()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	baseline := 10_000.0

	// Entry: +3% on 5x burst.
	alerts := d.Evaluate("SPKE", burstTicks(5.00, 5.15, 50_000, base), baseline, cfg, base.Add(11*time.Second))
	if len(alerts) != 1 || alerts[0].Kind != events.KindSpikeStart {
		t.Fatalf("entry alerts = %+v", alerts)
	}
	if alerts[0].Severity != events.SeverityHigh {
		t.Fatalf("spike start severity = %v", alerts[0].Severity)
	}
	spikeID := alerts[0].Spike.SpikeID

	if active := d.Active(); len(active) != 1 || active[0].ID != spikeID {
		t.Fatalf("active spikes = %+v", active)
	}

	// Still burning: update after the throttle interval, peak tracked.
	now := base.Add(15 * time.Second)
	alerts = d.Evaluate("SPKE", burstTicks(5.10, 5.40, 60_000, base.Add(4*time.Second)), baseline, cfg, now)
	if len(alerts) != 1 || alerts[0].Kind != events.KindSpikeUpdate {
		t.Fatalf("update alerts = %+v", alerts)
	}
	if !alerts[0].Spike.PeakPrice.Equal(decimal.NewFromFloat(5.40)) {
		t.Fatalf("peak = %v", alerts[0].Spike.PeakPrice)
	}

	// Exit condition holds; first observation only starts the grace clock.
	now = now.Add(3 * time.Second)
	dead := burstTicks(5.30, 5.31, 5_000, now.Add(-11*time.Second))
	if alerts = d.Evaluate("SPKE", dead, baseline, cfg, now); len(alerts) != 0 {
		t.Fatalf("completed before grace period: %+v", alerts)
	}

	// Grace period elapses with the exit condition still holding.
	now = now.Add(6 * time.Second)
	dead = burstTicks(5.30, 5.31, 5_000, now.Add(-11*time.Second))
	alerts = d.Evaluate("SPKE", dead, baseline, cfg, now)
	if len(alerts) != 1 || alerts[0].Kind != events.KindSpikeComplete {
		t.Fatalf("completion alerts = %+v", alerts)
	}
	if alerts[0].Severity != events.SeverityCritical {
		t.Fatalf("completion severity = %v", alerts[0].Severity)
	}
	if alerts[0].Spike.EndedAt == nil {
		t.Fatal("completed spike has no end time")
	}

	if len(d.Active()) != 0 {
		t.Fatal("spike still active after completion")
	}
	completed := d.Completed()
	if len(completed) != 1 || completed[0].ID != spikeID {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestSpikeSurvivesSingleDip(t *testing.T) {
	d := NewSpikeDetector()
	cfg := spikeCfg()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	baseline := 10_000.0

	d.Evaluate("SPKE", burstTicks(5.00, 5.15, 50_000, base), baseline, cfg, base.Add(11*time.Second))

	// One cycle below threshold...
	now := base.Add(14 * time.Second)
	d.Evaluate("SPKE", burstTicks(5.10, 5.11, 5_000, now.Add(-11*time.Second)), baseline, cfg, now)

	// ...then momentum returns before the grace period elapses.
	now = now.Add(2 * time.Second)
	d.Evaluate("SPKE", burstTicks(5.10, 5.30, 50_000, now.Add(-11*time.Second)), baseline, cfg, now)

	// A later dip must start a fresh grace clock, not inherit the old one.
	now = now.Add(2 * time.Second)
	alerts := d.Evaluate("SPKE", burstTicks(5.25, 5.26, 5_000, now.Add(-11*time.Second)), baseline, cfg, now)
	if len(alerts) != 0 {
		t.Fatalf("dip with reset clock completed the spike: %+v", alerts)
	}
	if len(d.Active()) != 1 {
		t.Fatal("spike lost to a transient dip")
	}
}

func TestSpikeEntryGates(t *testing.T) {
	cfg := spikeCfg()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := base.Add(11 * time.Second)

	cases := []struct {
		name     string
		ticks    []market.Tick
		baseline float64
	}{
		{"move too small", burstTicks(5.00, 5.05, 50_000, base), 10_000},
		{"burst too weak", burstTicks(5.00, 5.15, 50_000, base), 40_000},
		{"dollar volume too thin", burstTicks(0.05, 0.06, 50_000, base), 10_000},
		{"price above ceiling", burstTicks(100, 103, 50_000, base), 10_000},
		{"no baseline", burstTicks(5.00, 5.15, 50_000, base), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewSpikeDetector()
			if alerts := d.Evaluate("SPKE", tc.ticks, tc.baseline, cfg, now); len(alerts) != 0 {
				t.Fatalf("spike started: %+v", alerts)
			}
		})
	}
}

func TestSpikeUpdateThrottled(t *testing.T) {
	d := NewSpikeDetector()
	cfg := spikeCfg()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	baseline := 10_000.0

	d.Evaluate("SPKE", burstTicks(5.00, 5.15, 50_000, base), baseline, cfg, base.Add(11*time.Second))

	// One second later: still burning but inside the update interval.
	now := base.Add(12 * time.Second)
	alerts := d.Evaluate("SPKE", burstTicks(5.05, 5.20, 50_000, now.Add(-11*time.Second)), baseline, cfg, now)
	if len(alerts) != 0 {
		t.Fatalf("update emitted inside throttle interval: %+v", alerts)
	}
}

func TestSpikeNewBurstIsNewIdentity(t *testing.T) {
	d := NewSpikeDetector()
	cfg := spikeCfg()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	baseline := 10_000.0

	start := d.Evaluate("SPKE", burstTicks(5.00, 5.15, 50_000, base), baseline, cfg, base.Add(11*time.Second))
	firstID := start[0].Spike.SpikeID

	// Kill it.
	now := base.Add(20 * time.Second)
	d.Evaluate("SPKE", burstTicks(5.10, 5.11, 5_000, now.Add(-11*time.Second)), baseline, cfg, now)
	now = now.Add(6 * time.Second)
	d.Evaluate("SPKE", burstTicks(5.10, 5.11, 5_000, now.Add(-11*time.Second)), baseline, cfg, now)

	// A fresh burst on the same symbol is a distinct spike.
	now = now.Add(30 * time.Second)
	again := d.Evaluate("SPKE", burstTicks(5.20, 5.40, 50_000, now.Add(-11*time.Second)), baseline, cfg, now)
	if len(again) != 1 || again[0].Kind != events.KindSpikeStart {
		t.Fatalf("second burst alerts = %+v", again)
	}
	if again[0].Spike.SpikeID == firstID {
		t.Fatal("second burst reused the first spike's identity")
	}
}
