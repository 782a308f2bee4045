package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/feeds"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/indicators"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/store"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SCANNER ENGINE - Ingestion plus the periodic evaluation cycle
// ═══════════════════════════════════════════════════════════════════════════════
//
// One goroutine ingests feed ticks into the store; another runs the evaluation
// cycle on a fixed interval. Each cycle takes a single threshold snapshot and
// walks every symbol through indicators, rockets, spikes, opening range and
// the halt heuristic. Detectors never block on delivery: everything they emit
// goes through the publisher.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Publisher receives every alert the engine produces.
type Publisher interface {
	Publish(alert events.Alert)
}

// momentumDepth bounds the per-symbol snapshot history kept for queries.
const momentumDepth = 180

// Engine owns the detectors and drives them from the tick store.
type Engine struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	store     *store.Store
	reference *feeds.ReferenceClient
	publisher Publisher

	rockets *RocketClassifier
	spikes  *SpikeDetector
	ranges  *RangeEngine
	halts   *HaltMonitor

	calendar *market.Calendar
	tracker  *market.SessionTracker

	thresholds atomic.Pointer[config.Thresholds]

	evalInterval time.Duration
	retention    time.Duration
	watchlist    []string

	history map[string][]indicators.Snapshot

	// OnSpikeComplete, if set before Start, receives every completed spike.
	OnSpikeComplete func(Spike)
	// OnThresholdChange, if set before Start, observes applied admin updates.
	OnThresholdChange func(previous, applied config.Thresholds)
	// OnStateSnapshot, if set before Start, receives the full evaluated state
	// at the end of every cycle.
	OnStateSnapshot func(feeds.StateSnapshot)
}

// NewEngine wires the detectors around the given store and reference data.
func NewEngine(cfg *config.Config, st *store.Store, ref *feeds.ReferenceClient, pub Publisher) *Engine {
	e := &Engine{
		store:     st,
		reference: ref,
		publisher: pub,

		rockets: NewRocketClassifier(),
		spikes:  NewSpikeDetector(),
		ranges:  NewRangeEngine(),
		halts:   NewHaltMonitor(),

		calendar: market.NewCalendar(),

		evalInterval: cfg.EvalInterval,
		retention:    cfg.Retention,
		watchlist:    append([]string(nil), cfg.Symbols...),

		history: make(map[string][]indicators.Snapshot),
	}
	e.tracker = market.NewSessionTracker(e.calendar)

	t := cfg.Thresholds
	e.thresholds.Store(&t)
	return e
}

// Start begins consuming ticks and running evaluation cycles.
func (e *Engine) Start(ticks <-chan market.Tick) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(2)
	go e.ingestLoop(ticks)
	go e.evalLoop()

	log.Info().
		Dur("interval", e.evalInterval).
		Int("watchlist", len(e.watchlist)).
		Msg("🔍 Scanner engine started")
}

// Stop finishes the in-flight cycle and shuts both loops down.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	log.Info().Msg("Scanner engine stopped")
}

func (e *Engine) ingestLoop(ticks <-chan market.Tick) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			e.store.Append(tick)
		}
	}
}

func (e *Engine) evalLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.evalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			// One last pass so nothing observed stays unreported.
			e.runCycle(time.Now())
			return
		case now := <-ticker.C:
			e.runCycle(now)
		}
	}
}

// runCycle evaluates every symbol once against a single threshold snapshot.
func (e *Engine) runCycle(now time.Time) {
	t := e.thresholds.Load()

	session, changed := e.tracker.Update(now)
	if changed {
		log.Info().Str("session", session.String()).Msg("📅 Market session change")
		if !session.IsMarketHours() {
			e.ranges.Reset()
		}
	}
	openBell := e.calendar.OpenTime(now.In(e.calendar.Location()))

	symbols := e.universe()
	state := make([]indicators.Snapshot, 0, len(symbols))

	for _, symbol := range symbols {
		ticks := e.store.Snapshot(symbol, e.retention)
		last, hasData := e.store.Last(symbol)

		prevClose, _ := e.reference.PreviousClose(symbol)
		baseVolume, _ := e.reference.BaselineVolume(symbol)

		snap := indicators.Compute(ticks, prevClose, baseVolume)
		snap.Symbol = symbol
		snap.ComputedAt = now
		e.recordSnapshot(snap)
		state = append(state, snap)

		if alert := e.rockets.Evaluate(snap, t.RocketTiers, t.RocketDwell, now); alert != nil {
			e.publish(*alert)
		}

		burst := e.store.Snapshot(symbol, t.Spike.Window)
		for _, alert := range e.spikes.Evaluate(symbol, burst, baseVolume, t.Spike, now) {
			e.publish(alert)
		}

		for _, alert := range e.ranges.Evaluate(symbol, ticks, session, openBell, prevClose, *t, now) {
			e.publish(alert)
		}

		if alert := e.halts.Evaluate(symbol, ticks, last.Timestamp, hasData, session, t.StaleAfter, now); alert != nil {
			e.publish(*alert)
		}
	}

	if e.OnStateSnapshot != nil {
		e.OnStateSnapshot(feeds.StateSnapshot{Session: session, At: now, Symbols: state})
	}
}

// universe is the watchlist plus every symbol the feed has shown us. Watchlist
// symbols stay in play even before their first tick, so the halt heuristic can
// flag them.
func (e *Engine) universe() []string {
	seen := make(map[string]struct{}, len(e.watchlist))
	out := make([]string, 0, len(e.watchlist))
	for _, s := range e.watchlist {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range e.store.Symbols() {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) publish(alert events.Alert) {
	if alert.Kind == events.KindSpikeComplete && alert.Spike != nil && e.OnSpikeComplete != nil {
		e.OnSpikeComplete(spikeFromPayload(alert.Symbol, alert.Spike))
	}
	if e.publisher != nil {
		e.publisher.Publish(alert)
	}
}

func (e *Engine) recordSnapshot(snap indicators.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hist := append(e.history[snap.Symbol], snap)
	if len(hist) > momentumDepth {
		hist = hist[len(hist)-momentumDepth:]
	}
	e.history[snap.Symbol] = hist
}

// ─────────────────────────────────────────────────────────────────────────────
// Query API
// ─────────────────────────────────────────────────────────────────────────────

// Movers returns every symbol currently classified above rocket level 0.
func (e *Engine) Movers() []RocketState {
	return e.rockets.Elevated()
}

// RocketState returns the classification for one symbol.
func (e *Engine) RocketState(symbol string) (RocketState, bool) {
	return e.rockets.State(symbol)
}

// ActiveSpikes returns all in-flight spikes.
func (e *Engine) ActiveSpikes() []Spike {
	return e.spikes.Active()
}

// CompletedSpikes returns the retained spike history, oldest first.
func (e *Engine) CompletedSpikes() []Spike {
	return e.spikes.Completed()
}

// OpeningRange returns the locked opening range for a symbol, if any.
func (e *Engine) OpeningRange(symbol string) (OpeningRange, bool) {
	return e.ranges.Range(symbol)
}

// TradingStatus returns the halt heuristic's view of a symbol.
func (e *Engine) TradingStatus(symbol string) TradingStatus {
	return e.halts.Status(symbol)
}

// MomentumHistory returns recent indicator snapshots for a symbol, oldest
// first.
func (e *Engine) MomentumHistory(symbol string) []indicators.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hist := e.history[symbol]
	out := make([]indicators.Snapshot, len(hist))
	copy(out, hist)
	return out
}

// Session returns the current market session.
func (e *Engine) Session() market.Session {
	s, _ := e.tracker.Current()
	return s
}

// Thresholds returns the threshold set the next cycle will use.
func (e *Engine) Thresholds() config.Thresholds {
	return *e.thresholds.Load()
}

// UpdateThresholds swaps in a new threshold set between cycles. A set that
// fails validation is rejected and the engine keeps the last valid one.
func (e *Engine) UpdateThresholds(t config.Thresholds) error {
	if err := t.Validate(); err != nil {
		log.Warn().Err(err).Msg("Rejected threshold update")
		return err
	}

	previous := e.thresholds.Swap(&t)
	log.Info().Msg("⚙️ Thresholds updated")
	if e.OnThresholdChange != nil {
		e.OnThresholdChange(*previous, t)
	}
	return nil
}

// Watch adds symbols to the watchlist and the reference poller. Safe only
// before Start.
func (e *Engine) Watch(symbols ...string) {
	e.watchlist = append(e.watchlist, symbols...)
	if e.reference != nil {
		e.reference.Track(symbols...)
	}
}

// spikeFromPayload rebuilds the spike entity from its alert payload.
func spikeFromPayload(symbol string, p *events.SpikePayload) Spike {
	return Spike{
		ID:           p.SpikeID,
		Symbol:       symbol,
		StartPrice:   p.StartPrice,
		CurrentPrice: p.CurrentPrice,
		PeakPrice:    p.PeakPrice,
		MovePercent:  p.MovePercent,
		BurstRatio:   p.VolumeBurst,
		DollarVolume: p.DollarVolume,
		StartedAt:    p.StartedAt,
		EndedAt:      p.EndedAt,
	}
}
