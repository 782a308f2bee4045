package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/config"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/events"
	"github.com/KingKoopa08/vee-hour-strategy-sub001/internal/scanner"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Completed spikes, alert log, threshold audit
// ═══════════════════════════════════════════════════════════════════════════════
//
// Best-effort persistence. The engine works entirely from live state; a
// storage failure is logged and otherwise ignored.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

// SpikeRecord is an immutable completed spike.
type SpikeRecord struct {
	ID           string          `gorm:"primaryKey"`
	Symbol       string          `gorm:"index"`
	StartPrice   decimal.Decimal `gorm:"type:decimal(18,6)"`
	PeakPrice    decimal.Decimal `gorm:"type:decimal(18,6)"`
	EndPrice     decimal.Decimal `gorm:"type:decimal(18,6)"`
	MovePercent  float64
	BurstRatio   float64
	DollarVolume decimal.Decimal `gorm:"type:decimal(20,2)"`
	StartedAt    time.Time
	EndedAt      time.Time
	CreatedAt    time.Time
}

// AlertRecord is one dispatched alert.
type AlertRecord struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	Symbol    string `gorm:"index"`
	Severity  string
	Payload   string // JSON of the full event
	CreatedAt time.Time
}

// ThresholdAudit is one admin threshold change, old and new sets as JSON.
type ThresholdAudit struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Previous  string
	Applied   string
	CreatedAt time.Time
}

// New opens the database: a postgres:// URL or a sqlite file path. An empty
// path disables persistence.
func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		log.Warn().Msg("No database path, running without persistence")
		return &Database{}, nil
	}

	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&SpikeRecord{}, &AlertRecord{}, &ThresholdAudit{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Enabled reports whether persistence is active.
func (d *Database) Enabled() bool { return d != nil && d.db != nil }

// SaveSpike persists a completed spike.
func (d *Database) SaveSpike(s scanner.Spike) {
	if !d.Enabled() || s.EndedAt == nil {
		return
	}
	rec := SpikeRecord{
		ID:           s.ID,
		Symbol:       s.Symbol,
		StartPrice:   s.StartPrice,
		PeakPrice:    s.PeakPrice,
		EndPrice:     s.CurrentPrice,
		MovePercent:  s.MovePercent,
		BurstRatio:   s.BurstRatio,
		DollarVolume: s.DollarVolume,
		StartedAt:    s.StartedAt,
		EndedAt:      *s.EndedAt,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Str("symbol", s.Symbol).Msg("Failed to persist spike")
	}
}

// SaveAlert persists one dispatched alert.
func (d *Database) SaveAlert(alert events.Alert) {
	if !d.Enabled() {
		return
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}
	rec := AlertRecord{
		ID:        alert.ID,
		Kind:      string(alert.Kind),
		Symbol:    alert.Symbol,
		Severity:  alert.Severity.String(),
		Payload:   string(payload),
		CreatedAt: alert.CreatedAt,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Str("id", alert.ID).Msg("Failed to persist alert")
	}
}

// AuditThresholds records an admin threshold change.
func (d *Database) AuditThresholds(previous, applied config.Thresholds) {
	if !d.Enabled() {
		return
	}
	prev, _ := json.Marshal(previous)
	next, _ := json.Marshal(applied)
	if err := d.db.Create(&ThresholdAudit{Previous: string(prev), Applied: string(next)}).Error; err != nil {
		log.Error().Err(err).Msg("Failed to persist threshold audit")
	}
}

// RecentSpikes returns the most recent persisted spikes.
func (d *Database) RecentSpikes(limit int) ([]SpikeRecord, error) {
	if !d.Enabled() {
		return nil, nil
	}
	var recs []SpikeRecord
	err := d.db.Order("ended_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// RecentAlerts returns the most recent persisted alerts.
func (d *Database) RecentAlerts(limit int) ([]AlertRecord, error) {
	if !d.Enabled() {
		return nil, nil
	}
	var recs []AlertRecord
	err := d.db.Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}
