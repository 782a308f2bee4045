package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REFERENCE CLIENT - Polled previous-close and baseline-volume figures
// ═══════════════════════════════════════════════════════════════════════════════
//
// Polled, not streamed. The engine reads the cached snapshot; a failed poll
// leaves the previous figures in place.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SymbolReference is the per-symbol reference data set.
type SymbolReference struct {
	PreviousClose  decimal.Decimal
	BaselineVolume float64
	UpdatedAt      time.Time
}

// ReferenceClient polls the snapshot API for reference figures.
type ReferenceClient struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	client   *resty.Client
	symbols  []string
	interval time.Duration

	refs map[string]SymbolReference
}

// NewReferenceClient creates a poller for the given API host.
func NewReferenceClient(baseURL string, symbols []string, interval time.Duration) *ReferenceClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &ReferenceClient{
		stopCh:   make(chan struct{}),
		client:   client,
		symbols:  symbols,
		interval: interval,
		refs:     make(map[string]SymbolReference),
	}
}

// Start begins polling.
func (c *ReferenceClient) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.pollLoop()
	log.Info().Dur("interval", c.interval).Msg("📊 Reference poller started")
}

// Stop stops polling.
func (c *ReferenceClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.running = false
	close(c.stopCh)
	log.Info().Msg("Reference poller stopped")
}

// Track adds symbols to the polled set.
func (c *ReferenceClient) Track(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols = append(c.symbols, symbols...)
}

// PreviousClose returns the cached previous close for a symbol.
func (c *ReferenceClient) PreviousClose(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.refs[symbol]
	if !ok || ref.PreviousClose.IsZero() {
		return decimal.Zero, false
	}
	return ref.PreviousClose, true
}

// BaselineVolume returns the cached baseline volume for a symbol.
func (c *ReferenceClient) BaselineVolume(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.refs[symbol]
	if !ok || ref.BaselineVolume <= 0 {
		return 0, false
	}
	return ref.BaselineVolume, true
}

// SetReference primes or overrides a symbol's figures. Used at startup and
// by tests.
func (c *ReferenceClient) SetReference(symbol string, ref SymbolReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref.UpdatedAt = time.Now()
	c.refs[symbol] = ref
}

func (c *ReferenceClient) pollLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.refresh()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

// snapshotResponse is the upstream per-symbol snapshot shape. The upstream
// also reports a todaysChangePerc field; it is deliberately ignored — day
// change is always reconstructed locally from prevDay.c.
type snapshotResponse struct {
	Ticker struct {
		Symbol  string `json:"ticker"`
		PrevDay struct {
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
		} `json:"prevDay"`
		TodaysChangePerc float64 `json:"todaysChangePerc"`
	} `json:"ticker"`
}

// refresh polls every tracked symbol once.
func (c *ReferenceClient) refresh() {
	c.mu.RLock()
	symbols := make([]string, len(c.symbols))
	copy(symbols, c.symbols)
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, symbol := range symbols {
		var snap snapshotResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(&snap).
			Get(fmt.Sprintf("/v2/snapshot/locale/us/markets/stocks/tickers/%s", symbol))
		if err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("Reference poll failed")
			continue
		}
		if resp.IsError() {
			log.Debug().Int("status", resp.StatusCode()).Str("symbol", symbol).Msg("Reference poll rejected")
			continue
		}

		prevClose := decimal.NewFromFloat(snap.Ticker.PrevDay.Close)
		if prevClose.IsZero() {
			continue
		}

		c.mu.Lock()
		c.refs[symbol] = SymbolReference{
			PreviousClose: prevClose,
			// Rough per-window baseline: spread the prior day's volume over
			// the regular session in detector-window units.
			BaselineVolume: snap.Ticker.PrevDay.Volume / (6.5 * 60 * 6),
			UpdatedAt:      time.Now(),
		}
		c.mu.Unlock()
	}
}
