package feeds

import (
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RECONNECT POLICY - One backoff rule for every upstream connection
// ═══════════════════════════════════════════════════════════════════════════════

// ReconnectPolicy tracks consecutive failures and produces the next delay:
// exponential from Base, capped at Max, reset on a successful connection.
type ReconnectPolicy struct {
	Base time.Duration
	Max  time.Duration

	attempts int
}

// DefaultReconnectPolicy is the standard feed policy.
func DefaultReconnectPolicy() *ReconnectPolicy {
	return &ReconnectPolicy{Base: time.Second, Max: time.Minute}
}

// NextDelay records a failed attempt and returns how long to wait.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	delay := p.Base << p.attempts
	if delay > p.Max || delay <= 0 {
		delay = p.Max
	}
	if p.attempts < 30 {
		p.attempts++
	}
	return delay
}

// Reset clears the failure streak after a successful connection.
func (p *ReconnectPolicy) Reset() {
	p.attempts = 0
}

// Attempts returns the current failure streak.
func (p *ReconnectPolicy) Attempts() int {
	return p.attempts
}
