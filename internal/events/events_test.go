package events

import (
	"testing"
)

func TestDedupeKeyDiscriminators(t *testing.T) {
	rocket := New(KindRocketLevelChange, "AAPL", SeverityLow)
	rocket.Rocket = &RocketPayload{Level: 2}
	if got := rocket.DedupeKey(); got != "AAPL:rocket_level_change:2" {
		t.Fatalf("rocket key = %q", got)
	}

	breakout := New(KindRangeBreakout, "TSLA", SeverityHigh)
	breakout.Breakout = &BreakoutPayload{Direction: "up"}
	if got := breakout.DedupeKey(); got != "TSLA:range_breakout:up" {
		t.Fatalf("breakout key = %q", got)
	}

	halt := New(KindHaltStatusChange, "HALT", SeverityMedium)
	halt.Halt = &HaltPayload{Status: "stale"}
	if got := halt.DedupeKey(); got != "HALT:halt_status_change:stale" {
		t.Fatalf("halt key = %q", got)
	}

	gap := New(KindGap, "GAPR", SeverityLow)
	if got := gap.DedupeKey(); got != "GAPR:gap" {
		t.Fatalf("gap key = %q", got)
	}
}

func TestSeverityOrdering(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Fatalf("%v not below %v", order[i-1], order[i])
		}
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:     "info",
		SeverityLow:      "low",
		SeverityMedium:   "medium",
		SeverityHigh:     "high",
		SeverityCritical: "critical",
	}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", sev, got, want)
		}
	}
}

func TestNewAssignsIdentity(t *testing.T) {
	a := New(KindSpikeStart, "SPKE", SeverityHigh)
	b := New(KindSpikeStart, "SPKE", SeverityHigh)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids = %q, %q", a.ID, b.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Fatal("created-at unset")
	}
}
