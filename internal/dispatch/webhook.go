package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WEBHOOK CHANNEL - Severity-tiered HTTP delivery
// ═══════════════════════════════════════════════════════════════════════════════

// WebhookChannel POSTs formatted alert payloads to one endpoint. Only events
// at or above minSeverity route here.
type WebhookChannel struct {
	name        string
	url         string
	minSeverity events.Severity
	client      *http.Client
}

// NewWebhookChannel creates a webhook destination.
func NewWebhookChannel(name, url string, minSeverity events.Severity) *WebhookChannel {
	return &WebhookChannel{
		name:        name,
		url:         url,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookChannel) Name() string { return w.name }

// Accepts filters by severity tier.
func (w *WebhookChannel) Accepts(alert events.Alert) bool {
	return w.url != "" && alert.Severity >= w.minSeverity
}

// webhookPayload is the content contract: symbol, level, price, change,
// volume, reason — flattened for arbitrary receivers.
type webhookPayload struct {
	Kind      string    `json:"kind"`
	Symbol    string    `json:"symbol"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`

	Level         int     `json:"level,omitempty"`
	Price         string  `json:"price,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`
	Volume        int64   `json:"volume,omitempty"`
	Reason        string  `json:"reason,omitempty"`

	Alert events.Alert `json:"alert"`
}

// Send delivers one alert. Transport retries live in the dispatcher.
func (w *WebhookChannel) Send(ctx context.Context, alert events.Alert) error {
	payload := webhookPayload{
		Kind:      string(alert.Kind),
		Symbol:    alert.Symbol,
		Severity:  alert.Severity.String(),
		CreatedAt: alert.CreatedAt,
		Alert:     alert,
	}
	if alert.Rocket != nil {
		payload.Level = alert.Rocket.Level
		payload.Price = alert.Rocket.Price.String()
		payload.ChangePercent = alert.Rocket.DayChangePercent
		payload.Volume = alert.Rocket.Volume
		payload.Reason = alert.Rocket.Reason
	}
	if alert.Spike != nil {
		payload.Price = alert.Spike.CurrentPrice.String()
		payload.ChangePercent = alert.Spike.MovePercent
	}
	if alert.Halt != nil {
		payload.Reason = alert.Halt.Reason
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", w.name, resp.StatusCode)
	}
	return nil
}
