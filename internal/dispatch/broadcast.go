package dispatch

import (
	"context"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/feeds"
)

// BroadcastChannel routes every alert, regardless of severity, to the live
// subscriber hub. Exempt from per-channel rate limits.
type BroadcastChannel struct {
	hub *feeds.Broadcaster
}

// NewBroadcastChannel wraps a broadcaster as a dispatch destination.
func NewBroadcastChannel(hub *feeds.Broadcaster) *BroadcastChannel {
	return &BroadcastChannel{hub: hub}
}

func (b *BroadcastChannel) Name() string { return "broadcast" }

func (b *BroadcastChannel) Accepts(events.Alert) bool { return true }

func (b *BroadcastChannel) Unthrottled() bool { return true }

// Send publishes to the hub; in-process, cannot fail.
func (b *BroadcastChannel) Send(_ context.Context, alert events.Alert) error {
	b.hub.Publish(alert)
	return nil
}
