package server

import (
	"os"

	"github.com/nicktill/skilltrend/pkg/compaction"
	"github.com/nicktill/skilltrend/pkg/config"
	"github.com/nicktill/skilltrend/pkg/events"
	"github.com/nicktill/skilltrend/pkg/live"
	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/server/monitor"
	"github.com/nicktill/skilltrend/pkg/snapshot"
	"github.com/nicktill/skilltrend/pkg/storage"
	"github.com/nicktill/skilltrend/pkg/storage/badger"
	"github.com/nicktill/skilltrend/pkg/trend"
)

// InitializeStorage opens the BadgerDB backend at the configured data
// directory, creating it if needed.
func InitializeStorage(cfg *config.Config, log *logger.Logger) (storage.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Info("storage initialized", "data_dir", cfg.DataDir, "max_memory_mb", cfg.MaxMemoryMB)
	return store, nil
}

// InitializeCompactor creates the compaction pipeline with its health
// monitor. The monitor treats compaction as stale after two missed
// intervals.
func InitializeCompactor(store storage.Store, cfg *config.Config, log *logger.Logger) (*compaction.Compactor, *monitor.CompactionMonitor) {
	retention := compaction.Retention{
		RawDays:     cfg.RawRetentionDays,
		HourlyDays:  cfg.HourlyRetentionDays,
		DailyDays:   cfg.DailyRetentionDays,
		WeeklyYears: cfg.WeeklyRetentionYears,
	}
	compactor := compaction.New(store, retention, log)
	staleAfter := 2 * cfg.CompactionInterval()
	compactionMonitor := monitor.New(staleAfter)
	log.Info("compaction pipeline ready",
		"interval", cfg.CompactionInterval(),
		"raw_days", retention.RawDays,
		"hourly_days", retention.HourlyDays,
		"daily_days", retention.DailyDays,
		"weekly_years", retention.WeeklyYears)
	return compactor, compactionMonitor
}

// InitializeProducer creates the snapshot producer over the live player
// registry.
func InitializeProducer(store storage.Store, registry *live.Registry, cfg *config.Config, log *logger.Logger) *snapshot.Producer {
	producer := snapshot.New(store, registry, cfg.SnapshotInterval(), log)
	log.Info("snapshot producer ready",
		"interval", cfg.SnapshotInterval(), "online_only", cfg.OnlineOnly)
	return producer
}

// InitializeServices creates the trend query service, the level-up
// recorder, and the websocket feed they publish to.
func InitializeServices(store storage.Store, log *logger.Logger) (*trend.Service, *events.Recorder, *events.Feed) {
	feed := events.NewFeed(log)
	recorder := events.NewRecorder(store, feed, log)
	trendService := trend.New(store, log)
	return trendService, recorder, feed
}
