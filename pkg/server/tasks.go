package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nicktill/skilltrend/pkg/compaction"
	"github.com/nicktill/skilltrend/pkg/config"
	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/server/monitor"
	"github.com/nicktill/skilltrend/pkg/storage"
	"github.com/nicktill/skilltrend/pkg/storage/badger"
)

// RunCompaction runs the compaction pipeline periodically until the stop
// channel closes. Failed runs retry with exponential backoff before waiting
// for the next scheduled tick.
func RunCompaction(compactor *compaction.Compactor, mon *monitor.CompactionMonitor, interval time.Duration, log *logger.Logger, stop chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	log = log.Named("tasks")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runWithRetry := func(ctx context.Context) {
		for attempt := 0; attempt <= config.CompactionMaxRetries; attempt++ {
			if attempt > 0 {
				// Exponential backoff: 30s, 60s, 120s
				delay := config.CompactionRetryDelay * time.Duration(1<<(attempt-1))
				log.Info("retrying compaction", "delay", delay, "attempt", attempt+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			report, err := compactor.Run(ctx)
			if err == nil {
				mon.RecordSuccess(report)
				return
			}
			if errors.Is(err, compaction.ErrAlreadyRunning) {
				// A previous run is still going; this tick is simply skipped.
				log.Warn("compaction still running from previous tick, skipping")
				return
			}

			mon.RecordFailure(err)
			log.Error("compaction failed", "attempt", attempt+1, "err", err)

			if status := mon.Status(); status.ConsecutiveErrors > 3 {
				log.Error("compaction has been failing repeatedly",
					"consecutive_errors", status.ConsecutiveErrors)
			}
		}
		log.Error("compaction failed after all retries, waiting for next schedule",
			"attempts", config.CompactionMaxRetries+1)
	}

	// Run once on startup so a daemon restarted after downtime catches up
	// without waiting a full interval.
	go runWithRetry(context.Background())

	for {
		select {
		case <-ticker.C:
			runWithRetry(context.Background())
		case <-stop:
			log.Info("stopping compaction scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB value log garbage collection periodically.
// Retention deletes accumulate in the value log; without GC disk usage
// grows without bound.
func RunBadgerGC(store storage.Store, log *logger.Logger, stop chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	log = log.Named("badger-gc")

	badgerStore, ok := store.(*badger.Store)
	if !ok {
		log.Info("storage is not BadgerDB, skipping GC scheduler")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Info("badger GC scheduler started", "interval", config.BadgerGCInterval)
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// RunValueLogGC returns an error when nothing needed rewriting;
			// one iteration per tick keeps the pause bounded.
			if err := badgerStore.RunGC(config.BadgerGCDiscardRatio); err != nil {
				log.Debug("badger GC: no rewrite needed",
					"elapsed", time.Since(start).Round(time.Millisecond))
			} else {
				log.Info("badger GC reclaimed disk space",
					"elapsed", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Info("stopping badger GC scheduler")
			return
		}
	}
}
