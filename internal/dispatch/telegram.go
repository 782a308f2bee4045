package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM CHANNEL - Operator notifications
// ═══════════════════════════════════════════════════════════════════════════════

// TelegramChannel pushes high-severity alerts to an operator chat.
type TelegramChannel struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	minSeverity events.Severity
}

// NewTelegramChannel creates a channel for the given bot token and chat.
func NewTelegramChannel(token string, chatID int64, minSeverity events.Severity) (*TelegramChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram channel initialized")

	return &TelegramChannel{api: api, chatID: chatID, minSeverity: minSeverity}, nil
}

func (t *TelegramChannel) Name() string { return "telegram" }

// Accepts filters by severity tier.
func (t *TelegramChannel) Accepts(alert events.Alert) bool {
	return alert.Severity >= t.minSeverity
}

// Send formats and delivers one alert message.
func (t *TelegramChannel) Send(ctx context.Context, alert events.Alert) error {
	msg := tgbotapi.NewMessage(t.chatID, formatAlert(alert))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.api.Send(msg)
	return err
}

// formatAlert renders a compact human-readable message per event kind.
func formatAlert(alert events.Alert) string {
	switch alert.Kind {
	case events.KindRocketLevelChange:
		r := alert.Rocket
		arrow := "🚀"
		if r.Level < r.PreviousLevel {
			arrow = "📉"
		}
		return fmt.Sprintf("%s *%s* L%d → L%d\nPrice: $%s | Change: %.1f%% | Vol: %d",
			arrow, alert.Symbol, r.PreviousLevel, r.Level, r.Price.StringFixed(2), r.DayChangePercent, r.Volume)

	case events.KindSpikeStart:
		s := alert.Spike
		return fmt.Sprintf("⚡ *%s* spike started\n$%s → $%s (%.1f%%) | burst %.1fx",
			alert.Symbol, s.StartPrice.StringFixed(2), s.CurrentPrice.StringFixed(2), s.MovePercent, s.VolumeBurst)

	case events.KindSpikeUpdate:
		s := alert.Spike
		return fmt.Sprintf("⚡ *%s* spike %.0fs in\nPeak $%s | %.1f%% | burst %.1fx",
			alert.Symbol, s.DurationSecond, s.PeakPrice.StringFixed(2), s.MovePercent, s.VolumeBurst)

	case events.KindSpikeComplete:
		s := alert.Spike
		return fmt.Sprintf("🏁 *%s* spike complete\nPeak $%s | %.0fs | $%s traded",
			alert.Symbol, s.PeakPrice.StringFixed(2), s.DurationSecond, s.DollarVolume.StringFixed(0))

	case events.KindRangeBreakout:
		b := alert.Breakout
		return fmt.Sprintf("📊 *%s* range breakout %s\nRange $%s–$%s | now $%s",
			alert.Symbol, b.Direction, b.RangeLow.StringFixed(2), b.RangeHigh.StringFixed(2), b.Price.StringFixed(2))

	case events.KindGap:
		g := alert.Gap
		return fmt.Sprintf("🌅 *%s* gap %s %.1f%%\nOpen $%s vs close $%s",
			alert.Symbol, g.Direction, g.GapPercent, g.OpenPrice.StringFixed(2), g.PreviousClose.StringFixed(2))

	case events.KindHaltStatusChange:
		h := alert.Halt
		return fmt.Sprintf("⛔ *%s* %s → %s\n%s", alert.Symbol, h.PreviousStatus, h.Status, h.Reason)

	default:
		return fmt.Sprintf("*%s* %s", alert.Symbol, alert.Kind)
	}
}
