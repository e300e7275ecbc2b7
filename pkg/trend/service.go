// Package trend answers "how has this player progressed" questions by
// reading the coarsest storage tier that still satisfies the requested
// resolution.
package trend

import (
	"context"
	"fmt"
	"time"

	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// Status tags a Result variant. "No data" is an expected, common outcome,
// not a failure; callers render an empty state for it.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
	StatusError   Status = "error"
)

// Result is the tagged outcome of a trend query. Points is populated only
// for StatusSuccess; Reason only for the other two.
type Result struct {
	Status Status                   `json:"status"`
	Points []progression.TrendPoint `json:"points,omitempty"`
	Reason string                   `json:"reason,omitempty"`
}

// Timeframe selects how far back a query reaches. AllTime overrides Days.
type Timeframe struct {
	Days    int  `json:"days"`
	AllTime bool `json:"all_time"`
}

// Tier selection policy: short recent windows read fine tiers at full
// precision, long windows read coarse tiers so the row count stays bounded
// regardless of history length.
//
//	1-7 days    raw snapshots
//	8-30 days   hourly summaries
//	31-180 days daily summaries
//	>180 / all  weekly summaries
func (tf Timeframe) tier() progression.Tier {
	switch {
	case tf.AllTime:
		return progression.TierWeekly
	case tf.Days <= 7:
		return progression.TierRaw
	case tf.Days <= 30:
		return progression.TierHourly
	case tf.Days <= 180:
		return progression.TierDaily
	default:
		return progression.TierWeekly
	}
}

// Service resolves trend queries against the store. Queries are synchronous
// and bounded by a handful of indexed reads; storage failures surface as a
// typed Error result, never a panic across the package boundary.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New creates a trend query service.
func New(store storage.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log.Named("trend")}
}

// GetTrend returns the requested series for one player over a timeframe,
// oldest point first. Callers must handle all three result variants.
func (s *Service) GetTrend(ctx context.Context, playerID string, series progression.Series, tf Timeframe) Result {
	start := time.Now()
	result := s.getTrend(ctx, playerID, series, tf)
	metrics.TrendQueryDuration.Observe(time.Since(start).Seconds())
	metrics.TrendQueries.WithLabelValues(string(result.Status)).Inc()
	return result
}

func (s *Service) getTrend(ctx context.Context, playerID string, series progression.Series, tf Timeframe) Result {
	if playerID == "" {
		return Result{Status: StatusError, Reason: "player id is required"}
	}
	if series == "" {
		return Result{Status: StatusError, Reason: "series is required"}
	}
	if !tf.AllTime && tf.Days < 1 {
		return Result{Status: StatusError, Reason: fmt.Sprintf("timeframe days must be >= 1, got %d", tf.Days)}
	}

	tier := tf.tier()

	// All-time queries pass the zero-time sentinel: the earliest possible
	// bucket, not a computed cutoff.
	var since time.Time
	if !tf.AllTime {
		since = time.Now().AddDate(0, 0, -tf.Days)
	}

	points, err := s.store.QueryTrend(ctx, tier, playerID, series, since)
	if err != nil {
		s.log.Error("trend query failed",
			"player", playerID, "series", series, "tier", tier, "err", err)
		return Result{Status: StatusError, Reason: err.Error()}
	}
	if len(points) == 0 {
		return Result{Status: StatusNoData, Reason: fmt.Sprintf("no %s history for player", tier)}
	}
	return Result{Status: StatusSuccess, Points: points}
}
