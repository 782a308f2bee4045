// Scanner - Real-Time Market Momentum Scanner
//
// Consumes a live equity trade feed, maintains bounded per-symbol tick
// history, and classifies momentum each cycle:
//
// 1. Rocket levels - day-change tiers with volume floors and hysteresis
// 2. Spikes - short-horizon price/volume bursts with a full lifecycle
// 3. Opening range - gap detection and edge-triggered breakouts
// 4. Halt heuristic - inferred trading status from the tape
//
// Alerts fan out through webhooks, Telegram and an in-process broadcast hub.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/dispatch"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/feeds"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/scanner"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/storage"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/store"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if len(cfg.Symbols) == 0 {
		log.Warn().Msg("⚠️ No SYMBOLS configured - scanning only symbols seen on the feed")
	}

	log.Info().
		Str("version", version).
		Strs("symbols", cfg.Symbols).
		Dur("interval", cfg.EvalInterval).
		Msg("🚀 Market scanner starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. Tick store - bounded per-symbol history
	tickStore := store.New(cfg.Retention)

	// 2. Reference client - previous closes and baseline volumes
	reference := feeds.NewReferenceClient(cfg.ReferenceAPIURL, cfg.Symbols, cfg.ReferenceRefresh)
	reference.Start()
	log.Info().Msg("📊 Reference data poller started")

	// 3. Broadcast hub - in-process alert fan-out
	hub := feeds.NewBroadcaster()

	// 4. Dispatcher - dedupe, queue and deliver
	channels := []dispatch.Channel{
		dispatch.NewBroadcastChannel(hub),
	}
	if url := cfg.Thresholds.Dispatch.WebhookDefault; url != "" {
		channels = append(channels, dispatch.NewWebhookChannel("webhook", url, events.SeverityLow))
		log.Info().Msg("🔗 Webhook channel enabled")
	}
	if url := cfg.Thresholds.Dispatch.WebhookCritical; url != "" {
		channels = append(channels, dispatch.NewWebhookChannel("webhook-critical", url, events.SeverityCritical))
		log.Info().Msg("🔗 Critical webhook channel enabled")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := dispatch.NewTelegramChannel(cfg.TelegramToken, cfg.TelegramChatID, events.SeverityMedium)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to initialize Telegram - channel disabled")
		} else {
			channels = append(channels, tg)
			log.Info().Msg("💬 Telegram channel enabled")
		}
	}
	dispatcher := dispatch.NewDispatcher(cfg.Thresholds.Dispatch, channels...)
	dispatcher.Start()

	// 5. Trade feed - live ticks over WebSocket
	feed := feeds.NewTradeFeed(cfg.FeedURL, cfg.Symbols)
	feed.Start()
	log.Info().Msg("📈 Trade feed connected")

	// 6. Scanner engine - drives the detectors
	engine := scanner.NewEngine(cfg, tickStore, reference, dispatcher)
	engine.OnSpikeComplete = db.SaveSpike
	engine.OnThresholdChange = db.AuditThresholds
	engine.OnStateSnapshot = hub.PublishState
	engine.Start(feed.Subscribe())

	// Persist every alert the hub sees, best effort.
	alertLog := hub.Subscribe()
	go func() {
		for alert := range alertLog {
			db.SaveAlert(alert)
		}
	}()

	// ====== STARTUP COMPLETE ======
	log.Info().Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown: stop intake first, then the engine, then flush the
	// dispatcher so queued high-severity alerts still go out.
	log.Info().Msg("Shutting down...")

	feed.Stop()
	engine.Stop()
	dispatcher.Stop()
	reference.Stop()
	hub.Unsubscribe(alertLog)

	log.Info().Msg("👋 Goodbye!")
}
