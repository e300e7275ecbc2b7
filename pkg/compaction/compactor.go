package compaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// ErrAlreadyRunning is returned when Run is invoked while a previous run is
// still in flight. The interval is expected to exceed worst-case run time,
// but that is not something to rely on.
var ErrAlreadyRunning = errors.New("compaction: run already in progress")

// Compactor rolls progression history through the retention tiers. One full
// run performs five ordered stages against a single reference time:
// raw->hourly, hourly->daily, daily->weekly, weekly expiry, event pruning.
type Compactor struct {
	store     storage.Store
	retention Retention
	log       *logger.Logger

	// Guards single-flight execution across overlapping timer ticks.
	running sync.Mutex
}

// New creates a compactor over the given store.
func New(store storage.Store, retention Retention, log *logger.Logger) *Compactor {
	return &Compactor{
		store:     store,
		retention: retention,
		log:       log.Named("compaction"),
	}
}

// Run executes one full pipeline invocation. Stages run strictly in order;
// a stage whose candidate read fails is recorded and the remaining stages
// still run, since later tiers do not depend on the failed stage's output
// within a single invocation being complete. Per-group upsert failures are
// logged, counted, and skipped.
//
// Returns ErrAlreadyRunning without touching storage if a previous run has
// not finished.
func (c *Compactor) Run(ctx context.Context) (*Report, error) {
	if !c.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer c.running.Unlock()

	now := time.Now()
	start := now
	report := &Report{}
	var errs []error

	report.RawToHourly = c.promote(ctx, progression.TierRaw, StageRawToHourly,
		now.AddDate(0, 0, -c.retention.RawDays), &errs)
	report.HourlyToDaily = c.promote(ctx, progression.TierHourly, StageHourlyToDaily,
		now.AddDate(0, 0, -c.retention.HourlyDays), &errs)
	report.DailyToWeekly = c.promote(ctx, progression.TierDaily, StageDailyToWeekly,
		now.AddDate(0, 0, -c.retention.DailyDays), &errs)

	// Stage 4: weekly rows age out with no further tier.
	weeklyCutoff := now.AddDate(0, 0, -c.retention.WeeklyYears*365)
	deleted, err := c.store.DeleteSourceRowsOlderThan(ctx, progression.TierWeekly, weeklyCutoff)
	if err != nil {
		c.log.Error("weekly expiry failed", "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", StageWeeklyExpiry, err))
	} else {
		report.WeeklyDeleted = deleted
		metrics.RowsDeleted.WithLabelValues(StageWeeklyExpiry).Add(float64(deleted))
	}

	// Stage 5: level-up events are pruned by age alone, independent of the
	// snapshot/summary pipeline.
	eventCutoff := now.AddDate(0, 0, -c.retention.TotalDays())
	deleted, err = c.store.DeleteLevelUpEventsOlderThan(ctx, eventCutoff)
	if err != nil {
		c.log.Error("event pruning failed", "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", StageEventPruning, err))
	} else {
		report.EventsDeleted = deleted
		metrics.RowsDeleted.WithLabelValues(StageEventPruning).Add(float64(deleted))
	}

	report.Duration = time.Since(start)
	metrics.CompactionDuration.Observe(report.Duration.Seconds())

	result := "ok"
	if len(errs) > 0 {
		result = "error"
	}
	metrics.CompactionRuns.WithLabelValues(result).Inc()

	c.log.Info("compaction run finished",
		"duration", report.Duration.Round(time.Millisecond),
		"promoted", report.TotalPromoted(),
		"deleted", report.TotalDeleted(),
		"group_errors", report.GroupErrors(),
		"stage_errors", len(errs))

	return report, errors.Join(errs...)
}

// promote runs one source-deleting promotion stage: aggregate every
// (bucket, player) group older than the cutoff, upsert the target summary,
// then delete the consumed source rows.
//
// A bucket straddling the cutoff is aggregated from its older portion only;
// the upsert makes that summary provisional, and the next run whose cutoff
// has passed the whole bucket replaces it with the complete aggregate.
func (c *Compactor) promote(ctx context.Context, source progression.Tier, stage string, cutoff time.Time, errs *[]error) StageReport {
	var report StageReport

	target, ok := progression.NextTier(source)
	if !ok {
		*errs = append(*errs, fmt.Errorf("%s: %w", stage, storage.ErrUnknownTier))
		return report
	}

	groups, err := c.store.CompactionCandidates(ctx, source, cutoff)
	if err != nil {
		c.log.Error("candidate read failed", "stage", stage, "err", err)
		*errs = append(*errs, fmt.Errorf("%s: %w", stage, err))
		return report
	}
	if len(groups) == 0 {
		c.log.Debug("no compaction candidates", "stage", stage)
		return report
	}

	for _, group := range groups {
		if err := c.store.InsertPeriodSummary(ctx, target, group.Summary()); err != nil {
			c.log.Warn("group promotion failed, skipping",
				"stage", stage, "bucket", group.Bucket, "player", group.PlayerID, "err", err)
			report.GroupErrors++
			metrics.CompactionGroupErrors.Inc()
			continue
		}
		report.Promoted++
	}
	metrics.RowsPromoted.WithLabelValues(stage).Add(float64(report.Promoted))

	// Deleting sources while any group failed to upsert would lose that
	// group's unaggregated rows; upserts are idempotent, so leave the whole
	// window for the next run instead.
	if report.GroupErrors > 0 {
		c.log.Warn("withholding source deletion after group failures",
			"stage", stage, "group_errors", report.GroupErrors)
		return report
	}

	deleted, err := c.store.DeleteSourceRowsOlderThan(ctx, source, cutoff)
	if err != nil {
		c.log.Error("source deletion failed", "stage", stage, "err", err)
		*errs = append(*errs, fmt.Errorf("%s delete: %w", stage, err))
		return report
	}
	report.Deleted = deleted
	metrics.RowsDeleted.WithLabelValues(stage).Add(float64(deleted))

	c.log.Debug("stage complete", "stage", stage,
		"promoted", report.Promoted, "deleted", report.Deleted)
	return report
}
