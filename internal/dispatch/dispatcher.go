package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ALERT DISPATCHER - Dedupe, rate-limit, route
// ═══════════════════════════════════════════════════════════════════════════════
//
// Emission and delivery are decoupled through a bounded queue so a slow
// webhook endpoint can never stall the evaluation loop. On overflow the
// oldest, lowest-severity event gives way first; critical events (spike
// completions, level-4 rockets) are never dropped ahead of lesser ones.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Channel delivers alerts to one destination.
type Channel interface {
	Name() string
	// Accepts filters by severity/kind before rate limiting.
	Accepts(events.Alert) bool
	Send(ctx context.Context, alert events.Alert) error
}

// Unthrottled marks channels exempt from per-channel rate limits, such as
// the in-process live broadcast.
type Unthrottled interface {
	Unthrottled() bool
}

// Dispatcher consumes alerts from the classifiers and detectors.
type Dispatcher struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wakeCh  chan struct{}
	done    chan struct{}

	queue []events.Alert
	cfg   config.DispatchThresholds

	channels []Channel
	limiters map[string]*slidingWindow

	lastSeen map[string]time.Time // dedupe key -> last dispatch

	// drop/delivery counters for operators
	dropped   int64
	delivered int64
	failed    int64
}

// NewDispatcher creates a dispatcher with the given delivery channels.
func NewDispatcher(cfg config.DispatchThresholds, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		stopCh:   make(chan struct{}),
		wakeCh:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		cfg:      cfg,
		channels: channels,
		limiters: make(map[string]*slidingWindow),
		lastSeen: make(map[string]time.Time),
	}
	for _, ch := range channels {
		if u, ok := ch.(Unthrottled); ok && u.Unthrottled() {
			continue
		}
		d.limiters[ch.Name()] = newSlidingWindow(cfg.RatePerMinute, time.Minute)
	}
	return d
}

// Start begins the delivery loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go d.deliveryLoop()
	log.Info().Int("channels", len(d.channels)).Msg("📣 Dispatcher started")
}

// Stop flushes queued high-severity events, then terminates.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	<-d.done
	log.Info().Msg("Dispatcher stopped")
}

// Publish enqueues an alert. Never blocks; duplicate and overflowed events
// are dropped here, not delivered late.
func (d *Dispatcher) Publish(alert events.Alert) {
	d.mu.Lock()

	// Dedupe identical events inside the window.
	key := alert.DedupeKey()
	if last, seen := d.lastSeen[key]; seen && alert.CreatedAt.Sub(last) < d.cfg.DedupeWindow {
		d.dropped++
		d.mu.Unlock()
		return
	}
	d.lastSeen[key] = alert.CreatedAt
	d.pruneSeenLocked(alert.CreatedAt)

	if len(d.queue) >= d.cfg.QueueSize {
		victim := d.victimLocked(alert.Severity)
		if victim < 0 {
			// Nothing in the queue outranks the newcomer downward; drop it.
			d.dropped++
			d.mu.Unlock()
			log.Warn().Str("kind", string(alert.Kind)).Str("symbol", alert.Symbol).Msg("Alert queue full, dropped")
			return
		}
		d.queue = append(d.queue[:victim], d.queue[victim+1:]...)
		d.dropped++
	}

	d.queue = append(d.queue, alert)
	d.mu.Unlock()

	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

// victimLocked finds the oldest queued event with the lowest severity that is
// strictly below critical and not above the incoming severity. Returns -1
// when the incoming alert should be dropped instead.
func (d *Dispatcher) victimLocked(incoming events.Severity) int {
	victim := -1
	lowest := events.SeverityCritical
	for i, queued := range d.queue {
		if queued.Severity < lowest {
			lowest = queued.Severity
			victim = i
		}
	}
	if victim >= 0 && lowest <= incoming {
		return victim
	}
	if incoming == events.SeverityCritical && victim >= 0 {
		return victim
	}
	return -1
}

// pruneSeenLocked drops dedupe entries older than the window.
func (d *Dispatcher) pruneSeenLocked(now time.Time) {
	if len(d.lastSeen) < 4096 {
		return
	}
	for k, ts := range d.lastSeen {
		if now.Sub(ts) > d.cfg.DedupeWindow {
			delete(d.lastSeen, k)
		}
	}
}

// deliveryLoop drains the queue until stopped, then flushes what remains of
// the high-severity backlog.
func (d *Dispatcher) deliveryLoop() {
	defer close(d.done)

	for {
		select {
		case <-d.stopCh:
			d.flushHighSeverity()
			return
		case <-d.wakeCh:
			for {
				alert, ok := d.dequeue()
				if !ok {
					break
				}
				d.deliver(alert)
			}
		}
	}
}

func (d *Dispatcher) dequeue() (events.Alert, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return events.Alert{}, false
	}
	alert := d.queue[0]
	d.queue = d.queue[1:]
	return alert, true
}

// flushHighSeverity delivers remaining high/critical events during shutdown.
func (d *Dispatcher) flushHighSeverity() {
	for {
		alert, ok := d.dequeue()
		if !ok {
			return
		}
		if alert.Severity >= events.SeverityHigh {
			d.deliver(alert)
		}
	}
}

// deliver fans one alert out to every accepting channel, with bounded retry.
// Failures are an observability signal, never an error raised upstream.
func (d *Dispatcher) deliver(alert events.Alert) {
	for _, ch := range d.channels {
		if !ch.Accepts(alert) {
			continue
		}
		if limiter := d.limiters[ch.Name()]; limiter != nil && !limiter.Allow() {
			d.mu.Lock()
			d.dropped++
			d.mu.Unlock()
			log.Debug().Str("channel", ch.Name()).Str("symbol", alert.Symbol).Msg("Rate limited, alert skipped")
			continue
		}

		if err := d.sendWithRetry(ch, alert); err != nil {
			d.mu.Lock()
			d.failed++
			d.mu.Unlock()
			log.Error().Err(err).
				Str("channel", ch.Name()).
				Str("kind", string(alert.Kind)).
				Str("symbol", alert.Symbol).
				Msg("Alert delivery failed, dropped")
			continue
		}

		d.mu.Lock()
		d.delivered++
		d.mu.Unlock()
	}
}

// sendWithRetry retries with exponential backoff up to the configured count.
func (d *Dispatcher) sendWithRetry(ch Channel, alert events.Alert) error {
	backoff := d.cfg.RetryBackoff
	var err error

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.stopCh:
				return err
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = ch.Send(ctx, alert)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() (delivered, dropped, failed int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered, d.dropped, d.failed
}
