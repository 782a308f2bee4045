package feeds

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/indicators"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BROADCASTER - Live alert fan-out for connected subscribers
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every alert reaches every subscriber regardless of severity. Sends never
// block: a slow subscriber loses messages, not the engine.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StateSnapshot is the periodic full-scanner picture pushed alongside alerts:
// one indicator snapshot per evaluated symbol plus the current session.
type StateSnapshot struct {
	Session market.Session        `json:"session"`
	At      time.Time             `json:"at"`
	Symbols []indicators.Snapshot `json:"symbols"`
}

// Broadcaster is the publish side of the live channel. Downstream fan-out to
// actual sockets is an external concern.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan events.Alert]struct{}
	stateSubs   map[chan StateSnapshot]struct{}
}

// NewBroadcaster creates an empty hub.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan events.Alert]struct{}),
		stateSubs:   make(map[chan StateSnapshot]struct{}),
	}
}

// Subscribe returns a channel that receives all published alerts.
func (b *Broadcaster) Subscribe() chan events.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan events.Alert, 256)
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(ch chan events.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish sends an alert to every subscriber without blocking.
func (b *Broadcaster) Publish(alert events.Alert) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- alert:
		default:
			log.Debug().Str("kind", string(alert.Kind)).Msg("Slow subscriber, alert skipped")
		}
	}
}

// SubscribeState returns a channel that receives periodic full-state snapshots.
func (b *Broadcaster) SubscribeState() chan StateSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StateSnapshot, 16)
	b.stateSubs[ch] = struct{}{}
	return ch
}

// UnsubscribeState removes and closes a state subscriber channel.
func (b *Broadcaster) UnsubscribeState(ch chan StateSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.stateSubs[ch]; ok {
		delete(b.stateSubs, ch)
		close(ch)
	}
}

// PublishState sends a full-state snapshot to every state subscriber without
// blocking. A subscriber that falls behind sees the next snapshot instead.
func (b *Broadcaster) PublishState(snap StateSnapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.stateSubs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Count returns the number of connected subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
