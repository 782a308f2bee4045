package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SYMBOL STATE STORE - Bounded per-symbol tick history
// ═══════════════════════════════════════════════════════════════════════════════
//
// Single writer of SymbolHistory. Everything downstream reads snapshots.
// Per-symbol locking only: appends on one symbol never block reads on another.
//
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultRetention bounds history by time, not count, so memory stays capped
// regardless of tick rate.
const DefaultRetention = 15 * time.Minute

// history holds the ordered tick sequence for one symbol.
type history struct {
	mu          sync.RWMutex
	ticks       []market.Tick
	lastUpdated time.Time
	dropped     int64 // out-of-order ticks rejected
}

// Store owns all per-symbol histories.
type Store struct {
	mu        sync.RWMutex
	symbols   map[string]*history
	retention time.Duration

	droppedTotal atomic.Int64
}

// New creates a store with the given retention window.
func New(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		symbols:   make(map[string]*history),
		retention: retention,
	}
}

// Append applies a tick. Ticks older than the last applied timestamp for the
// symbol are dropped and counted, never applied — a late tick must not
// retroactively corrupt windowed aggregates. Equal timestamps are accepted so
// duplicate delivery stays a harmless no-op for ordering.
func (s *Store) Append(tick market.Tick) bool {
	h := s.historyFor(tick.Symbol)

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.ticks); n > 0 && tick.Timestamp.Before(h.ticks[n-1].Timestamp) {
		h.dropped++
		s.droppedTotal.Add(1)
		return false
	}

	h.ticks = append(h.ticks, tick)
	h.lastUpdated = time.Now()

	// Lazy eviction on append bounds memory without a sweep thread.
	horizon := tick.Timestamp.Add(-s.retention)
	cut := 0
	for cut < len(h.ticks) && h.ticks[cut].Timestamp.Before(horizon) {
		cut++
	}
	if cut > 0 {
		h.ticks = append(h.ticks[:0], h.ticks[cut:]...)
	}
	return true
}

// Snapshot returns an immutable copy of the ticks within the trailing window,
// ending at the most recent tick.
func (s *Store) Snapshot(symbol string, window time.Duration) []market.Tick {
	h := s.peek(symbol)
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.ticks) == 0 {
		return nil
	}

	from := h.ticks[len(h.ticks)-1].Timestamp.Add(-window)
	start := 0
	for start < len(h.ticks) && h.ticks[start].Timestamp.Before(from) {
		start++
	}

	out := make([]market.Tick, len(h.ticks)-start)
	copy(out, h.ticks[start:])
	return out
}

// Last returns the most recent tick for a symbol.
func (s *Store) Last(symbol string) (market.Tick, bool) {
	h := s.peek(symbol)
	if h == nil {
		return market.Tick{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.ticks) == 0 {
		return market.Tick{}, false
	}
	return h.ticks[len(h.ticks)-1], true
}

// LastUpdated returns when a symbol last received a tick. Used by the halt
// heuristic for staleness checks.
func (s *Store) LastUpdated(symbol string) (time.Time, bool) {
	h := s.peek(symbol)
	if h == nil {
		return time.Time{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastUpdated, !h.lastUpdated.IsZero()
}

// Symbols returns all tracked symbols.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// Dropped returns out-of-order drop counts for a symbol and the whole store.
func (s *Store) Dropped(symbol string) (symbolDrops, total int64) {
	total = s.droppedTotal.Load()
	if h := s.peek(symbol); h != nil {
		h.mu.RLock()
		symbolDrops = h.dropped
		h.mu.RUnlock()
	}
	return symbolDrops, total
}

// historyFor returns the history for a symbol, creating it if needed.
func (s *Store) historyFor(symbol string) *history {
	s.mu.RLock()
	h, ok := s.symbols[symbol]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.symbols[symbol]; ok {
		return h
	}
	h = &history{}
	s.symbols[symbol] = h
	return h
}

// peek returns the history for a symbol without creating it.
func (s *Store) peek(symbol string) *history {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbols[symbol]
}
