package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE FEED - WebSocket tick ingestion
// ═══════════════════════════════════════════════════════════════════════════════
//
// Connects to the upstream trade stream and fans ticks out to subscribers.
// Duplicate delivery from the provider is harmless: replaying an identical
// tick is a no-op under the store's ordering check.
//
// ═══════════════════════════════════════════════════════════════════════════════

const pingInterval = 30 * time.Second

// TradeFeed manages the WebSocket connection and tick distribution.
type TradeFeed struct {
	mu sync.RWMutex

	wsURL     string
	symbols   []string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	policy *ReconnectPolicy

	subscribers []chan market.Tick
}

// NewTradeFeed creates a feed for the given endpoint and symbols.
func NewTradeFeed(wsURL string, symbols []string) *TradeFeed {
	return &TradeFeed{
		wsURL:       wsURL,
		symbols:     symbols,
		stopCh:      make(chan struct{}),
		policy:      DefaultReconnectPolicy(),
		subscribers: make([]chan market.Tick, 0),
	}
}

// Start connects and begins processing.
func (f *TradeFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("📡 Trade feed started")
}

// Stop closes the connection.
func (f *TradeFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}

	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}

	log.Info().Msg("Trade feed stopped")
}

// Subscribe returns a channel that receives ticks.
func (f *TradeFeed) Subscribe() chan market.Tick {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan market.Tick, 1000)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

// connectionLoop maintains the connection under the shared reconnect policy.
func (f *TradeFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			delay := f.policy.NextDelay()
			log.Error().Err(err).Int("attempt", f.policy.Attempts()).Dur("retry_in", delay).Msg("Feed connection failed")
			select {
			case <-f.stopCh:
				return
			case <-time.After(delay):
			}
			continue
		}

		f.policy.Reset()
		f.readLoop()

		select {
		case <-f.stopCh:
			return
		case <-time.After(f.policy.NextDelay()):
		}
	}
}

// connect establishes the WebSocket connection and subscribes symbols.
func (f *TradeFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	log.Info().Msg("🔌 Feed connected")

	if len(f.symbols) > 0 {
		msg := map[string]interface{}{
			"action":  "subscribe",
			"symbols": f.symbols,
			"channel": "trades",
		}
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}

	go f.pingLoop()

	return nil
}

// pingLoop keeps the connection alive.
func (f *TradeFeed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			connected := f.connected
			f.mu.RUnlock()

			if !connected || conn == nil {
				return
			}
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

// readLoop reads messages until the connection drops.
func (f *TradeFeed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Feed read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}

		f.processMessage(message)
	}
}

// tradeMessage is one upstream trade event.
type tradeMessage struct {
	Event     string  `json:"ev"`
	Symbol    string  `json:"sym"`
	Price     float64 `json:"p"`
	Size      int64   `json:"s"`
	Timestamp int64   `json:"t"` // epoch milliseconds
}

// processMessage parses trade events into ticks. Non-trade events (status,
// quotes) are ignored here.
func (f *TradeFeed) processMessage(data []byte) {
	var msgs []tradeMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var msg tradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		msgs = []tradeMessage{msg}
	}

	for _, msg := range msgs {
		if msg.Event != "T" || msg.Symbol == "" {
			continue
		}
		tick := market.Tick{
			Symbol:    msg.Symbol,
			Price:     decimal.NewFromFloat(msg.Price),
			Size:      msg.Size,
			Timestamp: time.UnixMilli(msg.Timestamp),
		}
		f.broadcast(tick)
	}
}

// broadcast sends a tick to every subscriber, dropping when one is full.
func (f *TradeFeed) broadcast(tick market.Tick) {
	f.mu.RLock()
	subs := f.subscribers
	f.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
		}
	}
}
