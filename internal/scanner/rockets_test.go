package scanner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/indicators"
)

func testTiers() []config.RocketTier {
	return []config.RocketTier{
		{Level: 1, MinChangePercent: 5, MinVolume: 5_000},
		{Level: 2, MinChangePercent: 20, MinVolume: 20_000},
	}
}

func snapshot(symbol string, price float64, dayChange float64, volume int64) indicators.Snapshot {
	return indicators.Snapshot{
		Symbol:           symbol,
		LastPrice:        decimal.NewFromFloat(price),
		WindowVolume:     volume,
		DayChangePercent: indicators.Some(dayChange),
	}
}

func TestRocketEscalatesImmediately(t *testing.T) {
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// 10.00 → 11.00 day move on enough volume: level 1.
	alert := c.Evaluate(snapshot("LMND", 11, 10, 8_000), testTiers(), 30*time.Second, now)
	if alert == nil {
		t.Fatal("no alert on first qualification")
	}
	if alert.Kind != events.KindRocketLevelChange || alert.Rocket.Level != 1 || alert.Rocket.PreviousLevel != 0 {
		t.Fatalf("unexpected transition payload: %+v", alert.Rocket)
	}
	if alert.Severity != events.SeverityLow {
		t.Fatalf("level 1 severity = %v", alert.Severity)
	}

	// 10.00 → 15.00 with a volume ramp: straight to level 2, same cycle
	// semantics, no dwell.
	alert = c.Evaluate(snapshot("LMND", 15, 50, 60_000), testTiers(), 30*time.Second, now.Add(2*time.Second))
	if alert == nil || alert.Rocket.Level != 2 || alert.Rocket.PreviousLevel != 1 {
		t.Fatalf("escalation to level 2 = %+v", alert)
	}
}

func TestRocketVolumeFloorGatesLevel(t *testing.T) {
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Huge percent move on negligible volume must not classify.
	if alert := c.Evaluate(snapshot("THIN", 15, 50, 100), testTiers(), 30*time.Second, now); alert != nil {
		t.Fatalf("thin symbol classified: %+v", alert.Rocket)
	}
}

func TestRocketDeEscalationRequiresDwell(t *testing.T) {
	c := NewRocketClassifier()
	dwell := 30 * time.Second
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c.Evaluate(snapshot("DIP", 15, 50, 60_000), testTiers(), dwell, now)

	// Metrics fall below tier 2; no de-escalation until dwell elapses.
	if alert := c.Evaluate(snapshot("DIP", 11, 10, 60_000), testTiers(), dwell, now.Add(2*time.Second)); alert != nil {
		t.Fatalf("dropped level before dwell: %+v", alert.Rocket)
	}
	if alert := c.Evaluate(snapshot("DIP", 11, 10, 60_000), testTiers(), dwell, now.Add(20*time.Second)); alert != nil {
		t.Fatal("dropped level mid-dwell")
	}

	alert := c.Evaluate(snapshot("DIP", 11, 10, 60_000), testTiers(), dwell, now.Add(40*time.Second))
	if alert == nil || alert.Rocket.Level != 1 || alert.Rocket.PreviousLevel != 2 {
		t.Fatalf("de-escalation after dwell = %+v", alert)
	}
}

func TestRocketRecoveryResetsDwellClock(t *testing.T) {
	c := NewRocketClassifier()
	dwell := 30 * time.Second
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c.Evaluate(snapshot("CHOP", 15, 50, 60_000), testTiers(), dwell, now)

	// Dip, recover, dip again: the failing clock restarts on recovery.
	c.Evaluate(snapshot("CHOP", 11, 10, 60_000), testTiers(), dwell, now.Add(10*time.Second))
	c.Evaluate(snapshot("CHOP", 15, 50, 60_000), testTiers(), dwell, now.Add(20*time.Second))
	if alert := c.Evaluate(snapshot("CHOP", 11, 10, 60_000), testTiers(), dwell, now.Add(45*time.Second)); alert != nil {
		t.Fatalf("de-escalated using a stale failing clock: %+v", alert.Rocket)
	}
}

func TestRocketIgnoresAbsentDayChange(t *testing.T) {
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c.Evaluate(snapshot("COLD", 15, 50, 60_000), testTiers(), 30*time.Second, now)

	blind := indicators.Snapshot{
		Symbol:       "COLD",
		LastPrice:    decimal.NewFromInt(15),
		WindowVolume: 60_000,
	}
	if alert := c.Evaluate(blind, testTiers(), 30*time.Second, now.Add(time.Minute)); alert != nil {
		t.Fatal("absent indicator produced a transition")
	}
	if state, _ := c.State("COLD"); state.Level != 2 {
		t.Fatalf("level decayed on missing data: %d", state.Level)
	}
}

func TestRocketNegativeMoveQualifies(t *testing.T) {
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	alert := c.Evaluate(snapshot("DUMP", 8, -22, 60_000), testTiers(), 30*time.Second, now)
	if alert == nil || alert.Rocket.Level != 2 {
		t.Fatalf("downside move did not classify: %+v", alert)
	}
}

func TestRocketPriceCeiling(t *testing.T) {
	tiers := []config.RocketTier{
		{Level: 1, MinChangePercent: 5, MinVolume: 5_000, MaxPrice: decimal.NewFromInt(20)},
	}
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if alert := c.Evaluate(snapshot("EXPN", 120, 10, 60_000), tiers, 30*time.Second, now); alert != nil {
		t.Fatal("price above ceiling classified")
	}
	if alert := c.Evaluate(snapshot("CHEAP", 12, 10, 60_000), tiers, 30*time.Second, now); alert == nil {
		t.Fatal("price under ceiling did not classify")
	}
}

func TestElevatedListsOnlyNonZero(t *testing.T) {
	c := NewRocketClassifier()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c.Evaluate(snapshot("UP", 11, 10, 8_000), testTiers(), 30*time.Second, now)
	c.Evaluate(snapshot("FLAT", 10, 0.5, 8_000), testTiers(), 30*time.Second, now)

	elevated := c.Elevated()
	if len(elevated) != 1 || elevated[0].Symbol != "UP" {
		t.Fatalf("Elevated() = %+v", elevated)
	}
}
