package dispatch

import (
	"sync"
	"time"
)

// slidingWindow is a per-channel rate limiter: at most limit deliveries per
// window.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sent   []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, window: window}
}

// Allow reports whether one more delivery fits in the window and records it.
func (sw *slidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.limit <= 0 {
		return true
	}

	cutoff := time.Now().Add(-sw.window)
	valid := sw.sent[:0]
	for _, ts := range sw.sent {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	sw.sent = valid

	if len(sw.sent) >= sw.limit {
		return false
	}
	sw.sent = append(sw.sent, time.Now())
	return true
}
