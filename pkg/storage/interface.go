package storage

import (
	"context"
	"errors"
	"time"

	"github.com/nicktill/skilltrend/pkg/progression"
)

// ErrUnknownTier is returned when an operation names a tier the store
// has no record family for.
var ErrUnknownTier = errors.New("storage: unknown tier")

// Store defines the interface for progression storage backends.
// Implementations: memory (testing), badger (production).
//
// Writes from the snapshot producer and the compaction pipeline can overlap
// in wall-clock time; implementations must serialize them internally.
// Readers may run concurrently with writes and tolerate a consistent but
// possibly stale view.
type Store interface {
	// InsertSnapshot appends one raw snapshot row. Rows are never mutated.
	InsertSnapshot(ctx context.Context, snap progression.Snapshot) error

	// InsertPeriodSummary upserts a summary row, fully replacing any prior
	// row for the same (tier, periodKey, playerID). There is no merge.
	InsertPeriodSummary(ctx context.Context, tier progression.Tier, sum progression.PeriodSummary) error

	// CompactionCandidates returns, per (bucket, player) group with at least
	// one source row strictly older than olderThan, the aggregate inputs the
	// compaction pipeline needs. Rows at or after the cutoff are excluded.
	// Valid source tiers: raw, hourly, daily.
	CompactionCandidates(ctx context.Context, source progression.Tier, olderThan time.Time) ([]CandidateGroup, error)

	// DeleteSourceRowsOlderThan irreversibly removes a tier's rows strictly
	// older than the cutoff and reports how many were removed. Callers must
	// only invoke it after the corresponding summary upserts for the same
	// cutoff have completed.
	DeleteSourceRowsOlderThan(ctx context.Context, tier progression.Tier, olderThan time.Time) (int, error)

	// InsertLevelUpEvent appends one level-up event.
	InsertLevelUpEvent(ctx context.Context, ev progression.LevelUpEvent) error

	// DeleteLevelUpEventsOlderThan prunes events strictly older than cutoff.
	DeleteLevelUpEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// QueryTrend returns one player's trend points from one tier, oldest
	// first. A zero since means "from the earliest possible bucket".
	QueryTrend(ctx context.Context, tier progression.Tier, playerID string, series progression.Series, since time.Time) ([]progression.TrendPoint, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage
	Close() error
}

// CandidateGroup carries the aggregate inputs for one (bucket, player)
// compaction group. MinPower/MaxPower are the extreme power levels observed
// in the bucket; FirstSkills/LastSkills are the skills-state of the
// chronologically first and last participating row.
//
// Deriving start/end power from min/max assumes skill levels never decrease
// for a player over time. If the live-state provider ever reports a decrease
// (admin reset, data migration), summaries built from these groups become
// incorrect.
type CandidateGroup struct {
	Bucket      string // target-tier period key
	PlayerID    string
	PlayerName  string
	MinPower    int
	MaxPower    int
	FirstSkills map[progression.Skill]int
	LastSkills  map[progression.Skill]int
}

// Summary builds the replacement summary row for this group.
// Per-skill gain is recomputed from the two endpoints.
func (g CandidateGroup) Summary() progression.PeriodSummary {
	skills := make(map[progression.Skill]progression.SkillDelta, len(g.LastSkills))
	for skill, end := range g.LastSkills {
		start, ok := g.FirstSkills[skill]
		if !ok {
			// Skill first observed mid-bucket; its first sighting is the
			// only baseline available.
			start = end
		}
		skills[skill] = progression.SkillDelta{Start: start, End: end, Gain: end - start}
	}
	return progression.PeriodSummary{
		PeriodKey:  g.Bucket,
		PlayerID:   g.PlayerID,
		PlayerName: g.PlayerName,
		StartPower: g.MinPower,
		EndPower:   g.MaxPower,
		Skills:     skills,
	}
}

// Stats provides storage health and usage info
type Stats struct {
	// Row counts per record family
	Snapshots       uint64
	HourlySummaries uint64
	DailySummaries  uint64
	WeeklySummaries uint64
	LevelUpEvents   uint64

	// Unique players seen across all families
	Players uint64

	// Storage size in bytes (estimate for the memory backend)
	SizeBytes uint64

	// Oldest and newest raw snapshot timestamps
	OldestSnapshot time.Time
	NewestSnapshot time.Time
}
