// Package events records level-up events and streams them to feed
// subscribers. The event log is independent of the snapshot/summary
// pipeline and is pruned solely by age.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nicktill/skilltrend/pkg/logger"
	"github.com/nicktill/skilltrend/pkg/metrics"
	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// Recorder persists level-up events and fans them out to the live feed.
type Recorder struct {
	store storage.Store
	feed  *Feed
	log   *logger.Logger
}

// NewRecorder creates a recorder. The feed may be nil when no live
// streaming is wanted (tests, batch tools).
func NewRecorder(store storage.Store, feed *Feed, log *logger.Logger) *Recorder {
	return &Recorder{store: store, feed: feed, log: log.Named("events")}
}

// Record appends one level-up event. Intended as fire-and-forget from the
// event source's perspective: a storage failure is reported but must not
// disturb the caller's flow, and feed delivery is best-effort.
func (r *Recorder) Record(ctx context.Context, ev progression.LevelUpEvent) error {
	if ev.PlayerID == "" || ev.Skill == "" {
		return fmt.Errorf("events: player id and skill are required")
	}
	if ev.NewLevel <= ev.OldLevel {
		return fmt.Errorf("events: new level %d is not above old level %d", ev.NewLevel, ev.OldLevel)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	if err := r.store.InsertLevelUpEvent(ctx, ev); err != nil {
		r.log.Error("failed to record level-up",
			"player", ev.PlayerID, "skill", ev.Skill, "err", err)
		return err
	}
	metrics.LevelUpEvents.Inc()

	if r.feed != nil && r.feed.HasClients() {
		if err := r.feed.Broadcast(ev); err != nil {
			r.log.Warn("feed broadcast failed", "err", err)
		}
	}

	r.log.Debug("level-up recorded",
		"player", ev.PlayerName, "skill", ev.Skill, "level", ev.NewLevel)
	return nil
}
