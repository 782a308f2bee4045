package scanner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

const staleAfter = 15 * time.Minute

func flatTicks(symbol string, price float64, sizeEach int64, n int, base time.Time) []market.Tick {
	ticks := make([]market.Tick, n)
	for i := range ticks {
		ticks[i] = market.Tick{
			Symbol:    symbol,
			Price:     decimal.NewFromFloat(price),
			Size:      sizeEach,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return ticks
}

func TestHaltSuspectedOnFlatPrints(t *testing.T) {
	m := NewHaltMonitor()
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	// 40k shares all at 3.00, then 20 minutes of silence.
	ticks := flatTicks("HALT", 3.00, 4_000, 10, base)
	lastAt := ticks[len(ticks)-1].Timestamp
	now := base.Add(20 * time.Minute)

	alert := m.Evaluate("HALT", ticks, lastAt, true, market.SessionRegular, staleAfter, now)
	if alert == nil || alert.Kind != events.KindHaltStatusChange {
		t.Fatalf("alert = %+v", alert)
	}
	if alert.Halt.Status != string(StatusHaltedSuspected) || alert.Halt.PreviousStatus != string(StatusActive) {
		t.Fatalf("halt payload = %+v", alert.Halt)
	}
	if m.Status("HALT") != StatusHaltedSuspected {
		t.Fatalf("status = %v", m.Status("HALT"))
	}

	// Same classification next cycle: no repeat alert.
	if alert = m.Evaluate("HALT", ticks, lastAt, true, market.SessionRegular, staleAfter, now.Add(2*time.Second)); alert != nil {
		t.Fatalf("repeat alert: %+v", alert)
	}
}

func TestFreshSingleTradeStaysActive(t *testing.T) {
	m := NewHaltMonitor()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	// A symbol's first print just arrived. One price, nonzero volume, but
	// no silence: this is a thin tape, not a halt.
	ticks := []market.Tick{
		{Symbol: "NEWB", Price: decimal.NewFromFloat(7.00), Size: 200, Timestamp: now.Add(-2 * time.Second)},
	}
	if alert := m.Evaluate("NEWB", ticks, ticks[0].Timestamp, true, market.SessionRegular, staleAfter, now); alert != nil {
		t.Fatalf("first trade alerted: %+v", alert)
	}
	if m.Status("NEWB") != StatusActive {
		t.Fatalf("status = %v", m.Status("NEWB"))
	}

	// The same flat tape only becomes a halt suspicion after the silence
	// threshold passes.
	later := now.Add(staleAfter)
	alert := m.Evaluate("NEWB", ticks, ticks[0].Timestamp, true, market.SessionRegular, staleAfter, later)
	if alert == nil || alert.Halt.Status != string(StatusHaltedSuspected) {
		t.Fatalf("silent flat tape classification = %+v", alert)
	}
}

func TestSuspensionBeatsFlatAndStale(t *testing.T) {
	m := NewHaltMonitor()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	alert := m.Evaluate("GONE", nil, time.Time{}, false, market.SessionRegular, staleAfter, now)
	if alert == nil || alert.Halt.Status != string(StatusSuspendedSuspected) {
		t.Fatalf("no-data classification = %+v", alert)
	}
}

func TestStaleRequiresMovementAndAge(t *testing.T) {
	m := NewHaltMonitor()
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	// Mixed prices (not a flat print), last tick past the staleness
	// threshold.
	ticks := []market.Tick{
		{Symbol: "SLOW", Price: decimal.NewFromFloat(7.00), Size: 100, Timestamp: base},
		{Symbol: "SLOW", Price: decimal.NewFromFloat(7.05), Size: 100, Timestamp: base.Add(time.Minute)},
	}
	now := base.Add(20 * time.Minute)

	alert := m.Evaluate("SLOW", ticks, ticks[1].Timestamp, true, market.SessionRegular, staleAfter, now)
	if alert == nil || alert.Halt.Status != string(StatusStale) {
		t.Fatalf("stale classification = %+v", alert)
	}
}

func TestActiveSymbolStaysQuiet(t *testing.T) {
	m := NewHaltMonitor()
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	ticks := []market.Tick{
		{Symbol: "LIVE", Price: decimal.NewFromFloat(7.00), Size: 100, Timestamp: base},
		{Symbol: "LIVE", Price: decimal.NewFromFloat(7.10), Size: 100, Timestamp: base.Add(time.Minute)},
	}
	if alert := m.Evaluate("LIVE", ticks, ticks[1].Timestamp, true, market.SessionRegular, staleAfter, base.Add(2*time.Minute)); alert != nil {
		t.Fatalf("healthy symbol alerted: %+v", alert)
	}
	if m.Status("LIVE") != StatusActive {
		t.Fatalf("status = %v", m.Status("LIVE"))
	}
}

func TestHaltRecoveryIsInfoSeverity(t *testing.T) {
	m := NewHaltMonitor()
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	flat := flatTicks("BACK", 3.00, 4_000, 10, base)
	m.Evaluate("BACK", flat, flat[len(flat)-1].Timestamp, true, market.SessionRegular, staleAfter, base.Add(20*time.Minute))

	// Trading resumes with moving prices.
	resumed := []market.Tick{
		{Symbol: "BACK", Price: decimal.NewFromFloat(3.00), Size: 100, Timestamp: base.Add(25 * time.Minute)},
		{Symbol: "BACK", Price: decimal.NewFromFloat(3.10), Size: 100, Timestamp: base.Add(26 * time.Minute)},
	}
	alert := m.Evaluate("BACK", resumed, resumed[1].Timestamp, true, market.SessionRegular, staleAfter, base.Add(26*time.Minute))
	if alert == nil || alert.Halt.Status != string(StatusActive) {
		t.Fatalf("recovery alert = %+v", alert)
	}
	if alert.Severity != events.SeverityInfo {
		t.Fatalf("recovery severity = %v", alert.Severity)
	}
}

func TestNoInferenceOutsideMarketHours(t *testing.T) {
	m := NewHaltMonitor()
	now := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

	// Silence overnight is normal, not a suspension.
	if alert := m.Evaluate("NGHT", nil, time.Time{}, false, market.SessionClosed, staleAfter, now); alert != nil {
		t.Fatalf("overnight silence alerted: %+v", alert)
	}
	if m.Status("NGHT") != StatusActive {
		t.Fatalf("status = %v", m.Status("NGHT"))
	}
}
